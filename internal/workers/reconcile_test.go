package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericpp/thumbs/domain"
)

type fakeThumbCache struct {
	mu      sync.Mutex
	users   []int64
	marked  map[int64][]int64
	scanErr error
	deleted [][2]int64
}

func (c *fakeThumbCache) AddMarker(context.Context, int64, int64, time.Time) error { return nil }
func (c *fakeThumbCache) RemoveMarker(context.Context, int64, int64) error         { return nil }

func (c *fakeThumbCache) GetMarker(context.Context, int64, int64) (time.Time, error) {
	return time.Time{}, domain.ErrCacheMiss
}

func (c *fakeThumbCache) GetMarkers(context.Context, int64, []int64) (map[int64]time.Time, error) {
	return nil, nil
}

func (c *fakeThumbCache) DeleteMarker(_ context.Context, userID, blogID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, [2]int64{userID, blogID})
	return nil
}

func (c *fakeThumbCache) RestoreMarker(context.Context, int64, int64, time.Time) error { return nil }

func (c *fakeThumbCache) ScanMarkerUsers(context.Context) ([]int64, error) {
	if c.scanErr != nil {
		return nil, c.scanErr
	}
	return c.users, nil
}

func (c *fakeThumbCache) MarkedBlogIDs(_ context.Context, userID int64) ([]int64, error) {
	return c.marked[userID], nil
}

func TestReconcileRunOnce_RepublishesDrift(t *testing.T) {
	cache := &fakeThumbCache{
		users: []int64{1, 2},
		marked: map[int64][]int64{
			1: {10, 20, 30},
			2: {10},
		},
	}
	// 用户1的博客20没有落库记录，用户2完全一致
	repo := &fakeThumbRepo{likedBlogs: map[int64][]int64{
		1: {10, 30},
		2: {10},
	}}
	broker := newFakeBroker()

	job := NewReconcileJob(cache, repo, broker, time.Hour, 4)
	err := job.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, broker.published, 1)
	assert.Equal(t, int64(1), broker.published[0].UserID)
	assert.Equal(t, int64(20), broker.published[0].BlogID)
	assert.Equal(t, domain.EventIncr, broker.published[0].Type)
}

func TestReconcileRunOnce_NoDriftNoEvents(t *testing.T) {
	cache := &fakeThumbCache{
		users:  []int64{1},
		marked: map[int64][]int64{1: {10}},
	}
	repo := &fakeThumbRepo{likedBlogs: map[int64][]int64{1: {10}}}
	broker := newFakeBroker()

	job := NewReconcileJob(cache, repo, broker, time.Hour, 4)
	require.NoError(t, job.RunOnce(context.Background()))
	assert.Empty(t, broker.published)
}

func TestReconcileRunOnce_ScanFailure(t *testing.T) {
	cache := &fakeThumbCache{scanErr: errors.New("redis down")}
	job := NewReconcileJob(cache, &fakeThumbRepo{}, newFakeBroker(), time.Hour, 4)

	err := job.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestReconcileRunOnce_UserFailureIsolated(t *testing.T) {
	// 发布失败只影响当前用户，其他用户照常补偿
	cache := &fakeThumbCache{
		users: []int64{1, 2},
		marked: map[int64][]int64{
			1: {10},
			2: {20},
		},
	}
	repo := &fakeThumbRepo{likedBlogs: map[int64][]int64{}}
	broker := newFakeBroker()

	job := NewReconcileJob(cache, repo, broker, time.Hour, 1)
	require.NoError(t, job.RunOnce(context.Background()))
	assert.Len(t, broker.published, 2)
}

func TestMarkerEvictor_DeletesEnqueued(t *testing.T) {
	cache := &fakeThumbCache{}
	evictor := NewMarkerEvictor(cache, 16, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evictor.Start(ctx)

	evictor.Enqueue(1, 10)
	evictor.Enqueue(2, 20)

	require.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		return len(cache.deleted) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestMarkerEvictor_FullQueueDropsSilently(t *testing.T) {
	cache := &fakeThumbCache{}
	// 不启动worker，队列只有1个位置
	evictor := NewMarkerEvictor(cache, 1, 0)

	evictor.Enqueue(1, 10)
	// 不阻塞即通过
	evictor.Enqueue(2, 20)
}
