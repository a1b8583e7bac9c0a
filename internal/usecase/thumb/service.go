package thumb

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ericpp/thumbs/domain"
)

const publishTimeout = 5 * time.Second

// Service 点赞网关：缓存侧的原子开关 + 异步事件发布。
// 同一 (userId, blogId) 的检查和写入在一条 Lua 脚本里完成，
// 并发请求不可能都通过"未点赞"检查，这是整条链路的正确性根基。
type Service struct {
	cache     domain.ThumbCache
	thumbRepo domain.ThumbDBRepository
	broker    domain.EventBroker
	mirror    domain.MirrorCache
	bloomRepo domain.BloomRepository
	evictor   domain.MarkerEvictor
}

var _ domain.ThumbUsecase = (*Service)(nil)

// NewService will create a new thumb service object
func NewService(
	cache domain.ThumbCache,
	thumbRepo domain.ThumbDBRepository,
	broker domain.EventBroker,
	mirror domain.MirrorCache,
	bloomRepo domain.BloomRepository,
	evictor domain.MarkerEvictor,
) *Service {
	return &Service{
		cache:     cache,
		thumbRepo: thumbRepo,
		broker:    broker,
		mirror:    mirror,
		bloomRepo: bloomRepo,
		evictor:   evictor,
	}
}

func (s *Service) Like(ctx context.Context, userID, blogID int64) error {
	if userID <= 0 || blogID <= 0 {
		return domain.ErrBadParamInput
	}
	if err := s.mustExist(ctx, blogID); err != nil {
		return err
	}

	expireAt := time.Now().Add(domain.MarkerTTL)
	if err := s.cache.AddMarker(ctx, userID, blogID, expireAt); err != nil {
		return err
	}
	s.mirror.Put(userID, blogID, domain.StatusLiked)

	ev := domain.ToggleEvent{
		UserID:    userID,
		BlogID:    blogID,
		Type:      domain.EventIncr,
		EventTime: time.Now(),
	}
	// 调用方已经拿到成功响应，发布失败对它不可见，靠补偿回滚缓存
	s.publishAsync(ev, func(ctx context.Context) {
		if err := s.cache.DeleteMarker(ctx, userID, blogID); err != nil {
			logrus.Errorf("failed to compensate like, user %d blog %d: %v", userID, blogID, err)
		}
		s.mirror.Delete(userID, blogID)
	})

	return nil
}

func (s *Service) Unlike(ctx context.Context, userID, blogID int64) error {
	if userID <= 0 || blogID <= 0 {
		return domain.ErrBadParamInput
	}

	if err := s.cache.RemoveMarker(ctx, userID, blogID); err != nil {
		return err
	}
	s.mirror.Put(userID, blogID, domain.StatusNotLiked)

	ev := domain.ToggleEvent{
		UserID:    userID,
		BlogID:    blogID,
		Type:      domain.EventDecr,
		EventTime: time.Now(),
	}
	s.publishAsync(ev, func(ctx context.Context) {
		// 取消点赞的事件没发出去，把标记放回去，否则缓存永远和库对不上
		expireAt := time.Now().Add(domain.MarkerTTL)
		if err := s.cache.RestoreMarker(ctx, userID, blogID, expireAt); err != nil {
			logrus.Errorf("failed to compensate unlike, user %d blog %d: %v", userID, blogID, err)
		}
		s.mirror.Put(userID, blogID, domain.StatusLiked)
	})

	return nil
}

// publishAsync 在后台发布事件，失败走补偿，不阻塞调用方
func (s *Service) publishAsync(ev domain.ToggleEvent, compensate func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := s.broker.Publish(ctx, ev); err != nil {
			logrus.Errorf("failed to publish toggle event, user %d blog %d type %s: %v",
				ev.UserID, ev.BlogID, ev.Type, err)
			compensate(ctx)
		}
	}()
}

func (s *Service) HasLiked(ctx context.Context, userID, blogID int64) (bool, error) {
	if userID <= 0 || blogID <= 0 {
		return false, domain.ErrBadParamInput
	}

	switch s.mirror.Get(userID, blogID) {
	case domain.StatusLiked:
		return true, nil
	case domain.StatusNotLiked:
		return false, nil
	}

	expireAt, err := s.cache.GetMarker(ctx, userID, blogID)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logrus.Warnf("cache get marker error, falling back to db: %v", err)
		}
		// 缓存没有结论，以数据库为准
		liked, err := s.thumbRepo.HasThumb(ctx, userID, blogID)
		if err != nil {
			return false, err
		}
		if liked {
			s.mirror.Put(userID, blogID, domain.StatusLiked)
		} else {
			s.mirror.Put(userID, blogID, domain.StatusNotLiked)
		}
		return liked, nil
	}

	// 标记是惰性过期的：缓存不管TTL，读的时候比较时间戳，
	// 过期了就安排后台清理，立即按未点赞返回
	if expireAt.Before(time.Now()) {
		s.evictor.Enqueue(userID, blogID)
		s.mirror.Put(userID, blogID, domain.StatusNotLiked)
		return false, nil
	}

	s.mirror.Put(userID, blogID, domain.StatusLiked)
	return true, nil
}

// HasLikedBatch 一次 multi-get 解决列表页的点赞状态。
// 列表场景缺失就当未点赞，不逐条回源数据库。
func (s *Service) HasLikedBatch(ctx context.Context, userID int64, blogIDs []int64) (map[int64]bool, error) {
	if userID <= 0 {
		return nil, domain.ErrBadParamInput
	}
	if len(blogIDs) == 0 {
		return map[int64]bool{}, nil
	}

	markers, err := s.cache.GetMarkers(ctx, userID, blogIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := make(map[int64]bool, len(blogIDs))
	for _, id := range blogIDs {
		expireAt, ok := markers[id]
		if !ok {
			res[id] = false
			continue
		}
		if expireAt.Before(now) {
			s.evictor.Enqueue(userID, id)
			res[id] = false
			continue
		}
		res[id] = true
	}
	return res, nil
}

func (s *Service) mustExist(ctx context.Context, blogID int64) error {
	exists, err := s.bloomRepo.Exists(ctx, blogID)
	if err != nil {
		// 布隆过滤器不可用不该挡点赞
		logrus.Warnf("bloom filter check failed for blog %d: %v", blogID, err)
		return nil
	}
	if !exists {
		logrus.Warnf("bloom filter says blog %d does not exist", blogID)
		return domain.ErrNotFound
	}
	return nil
}
