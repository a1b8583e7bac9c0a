package workers

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ericpp/thumbs/domain"
)

type evictTask struct {
	userID int64
	blogID int64
}

// MarkerEvictor 有界的后台清理队列，删掉读路径上发现的过期点赞标记。
// 尽力而为：队列满了直接丢任务，正确性只依赖读时的过期判断，不依赖删除成功。
type MarkerEvictor struct {
	cache   domain.ThumbCache
	ch      chan evictTask
	workers int
}

var _ domain.MarkerEvictor = (*MarkerEvictor)(nil)

func NewMarkerEvictor(cache domain.ThumbCache, queueSize, workers int) *MarkerEvictor {
	return &MarkerEvictor{
		cache:   cache,
		ch:      make(chan evictTask, queueSize),
		workers: workers,
	}
}

// Enqueue never blocks the caller.
func (e *MarkerEvictor) Enqueue(userID, blogID int64) {
	select {
	case e.ch <- evictTask{userID, blogID}:
	default:
		logrus.Info("MarkerEvictor's queue is full, task dropped")
	}
}

func (e *MarkerEvictor) Start(ctx context.Context) {
	for range e.workers {
		go e.run(ctx)
	}
}

func (e *MarkerEvictor) run(ctx context.Context) {
	for {
		select {
		case task := <-e.ch:
			if err := e.cache.DeleteMarker(ctx, task.userID, task.blogID); err != nil {
				logrus.Warnf("failed to evict expired marker, user %d blog %d: %v", task.userID, task.blogID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
