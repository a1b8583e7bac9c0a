package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ericpp/thumbs/domain"
)

// ReconcileJob 定时对账，修复缓存和数据库之间的漂移。
// 缓存有标记而数据库没有记录的 (user, blog) 对，说明发布或落库在哪一步
// 静默丢了，补发一条 INCR 事件走正常管道，靠消费者的幂等落库治愈。
// 对账周期就是缓存落后于数据库的最大时间窗口。
type ReconcileJob struct {
	cache       domain.ThumbCache
	thumbRepo   domain.ThumbDBRepository
	broker      domain.EventBroker
	interval    time.Duration
	concurrency int
}

func NewReconcileJob(cache domain.ThumbCache, thumbRepo domain.ThumbDBRepository, broker domain.EventBroker, interval time.Duration, concurrency int) *ReconcileJob {
	return &ReconcileJob{
		cache:       cache,
		thumbRepo:   thumbRepo,
		broker:      broker,
		interval:    interval,
		concurrency: concurrency,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				logrus.Errorf("reconcile run failed: %v", err)
			}
		case <-ctx.Done():
			logrus.Info("shutting down reconcile job")
			return
		}
	}
}

// RunOnce 扫一遍所有带点赞标记的用户。单个用户失败只记日志，不中断扫描。
// 每个用户的修复互相独立，可以并行。
func (j *ReconcileJob) RunOnce(ctx context.Context) error {
	start := time.Now()

	userIDs, err := j.cache.ScanMarkerUsers(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(j.concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			if err := j.reconcileUser(ctx, userID); err != nil {
				logrus.Errorf("failed to reconcile user %d: %v", userID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	logrus.Infof("reconcile finished, %d users scanned in %s", len(userIDs), time.Since(start))
	return nil
}

func (j *ReconcileJob) reconcileUser(ctx context.Context, userID int64) error {
	cachedIDs, err := j.cache.MarkedBlogIDs(ctx, userID)
	if err != nil {
		return err
	}
	storedIDs, err := j.thumbRepo.FetchUserLikedBlogs(ctx, userID)
	if err != nil {
		return err
	}

	stored := make(map[int64]struct{}, len(storedIDs))
	for _, id := range storedIDs {
		stored[id] = struct{}{}
	}

	for _, blogID := range cachedIDs {
		if _, ok := stored[blogID]; ok {
			continue
		}
		// 缓存有、库里没有：补一条点赞事件
		ev := domain.ToggleEvent{
			UserID:    userID,
			BlogID:    blogID,
			Type:      domain.EventIncr,
			EventTime: time.Now(),
		}
		if err := j.broker.Publish(ctx, ev); err != nil {
			logrus.Errorf("failed to publish compensation event, user %d blog %d: %v", userID, blogID, err)
		}
	}
	return nil
}
