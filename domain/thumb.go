package domain

import (
	"context"
	"time"
)

const (
	// 点赞标记的过期提示：30天，读取时惰性判断，不依赖redis的TTL
	MarkerTTL = 30 * 24 * time.Hour
)

// ThumbRecord is representing a like record in the durable store.
// At most one record exists per (UserID, BlogID).
type ThumbRecord struct {
	UserID    int64
	BlogID    int64
	CreatedAt time.Time
}

// EventType 点赞事件类型
type EventType string

const (
	EventIncr EventType = "INCR"
	EventDecr EventType = "DECR"
)

// ToggleEvent is the immutable fact published after a successful cache mutation.
type ToggleEvent struct {
	UserID    int64     `json:"userId"`
	BlogID    int64     `json:"blogId"`
	Type      EventType `json:"type"`
	EventTime time.Time `json:"eventTime"`
}

// EventMessage wraps a ToggleEvent as delivered by the broker.
type EventMessage struct {
	ID         string
	Partition  int
	Deliveries int64
	Event      ToggleEvent
}

// ThumbStatus 三态点赞状态，区分"没查到"和"确定未点赞"
type ThumbStatus int8

const (
	StatusUnknown ThumbStatus = iota
	StatusLiked
	StatusNotLiked
)

// ToggleChanges is the net effect of one consumed batch, applied to the
// durable store as a single transaction.
type ToggleChanges struct {
	// CountDeltas maps blog id to the signed thumb-count delta
	CountDeltas map[int64]int64
	// ToInsert are the new like records for net INCR groups
	ToInsert []ThumbRecord
	// ToRemove are the (user, blog) pairs for net DECR groups
	ToRemove []ThumbRecord
}

// ThumbCache is the shared-cache contract for per-user like markers.
// 标记的值是过期时间戳（epoch millis），存在且未过期代表已点赞。
type ThumbCache interface {
	// AddMarker atomically checks-then-sets the marker and bumps the
	// provisional counter. Returns ErrAlreadyLiked if the marker exists.
	AddMarker(ctx context.Context, userID, blogID int64, expireAt time.Time) error

	// RemoveMarker is the mirror of AddMarker.
	// Returns ErrNotLiked if no marker exists.
	RemoveMarker(ctx context.Context, userID, blogID int64) error

	// GetMarker reads the expiry hint. Returns ErrCacheMiss when absent.
	GetMarker(ctx context.Context, userID, blogID int64) (expireAt time.Time, err error)

	// GetMarkers multi-gets markers for the given blog ids.
	// Absent fields are missing from the result map.
	GetMarkers(ctx context.Context, userID int64, blogIDs []int64) (map[int64]time.Time, error)

	// DeleteMarker removes the marker field (lazy eviction, compensation).
	DeleteMarker(ctx context.Context, userID, blogID int64) error

	// RestoreMarker puts the marker back after a failed unlike publish.
	RestoreMarker(ctx context.Context, userID, blogID int64, expireAt time.Time) error

	// ScanMarkerUsers 扫描所有带点赞标记的用户ID，供对账任务使用
	ScanMarkerUsers(ctx context.Context) ([]int64, error)

	// MarkedBlogIDs lists every blog id marked liked for the user.
	MarkedBlogIDs(ctx context.Context, userID int64) ([]int64, error)
}

// ThumbDBRepository is the durable-store contract.
type ThumbDBRepository interface {
	// HasThumb is the authoritative existence check (cache-miss cold path).
	HasThumb(ctx context.Context, userID, blogID int64) (bool, error)

	// FetchUserLikedBlogs 查询某用户点赞的所有博客ID
	FetchUserLikedBlogs(ctx context.Context, userID int64) ([]int64, error)

	// ApplyToggleChanges applies counter deltas, removals and inserts in one
	// transaction. Re-applying the same changes must be safe.
	ApplyToggleChanges(ctx context.Context, changes ToggleChanges) error
}

// EventBroker is the publish/consume contract over the partitioned event
// stream. All events for one (user, blog) key land on the same partition.
type EventBroker interface {
	Publish(ctx context.Context, ev ToggleEvent) error

	// ReceiveBatch blocks up to the broker's poll window and returns at most
	// max messages from one partition.
	ReceiveBatch(ctx context.Context, partition int, max int64) ([]EventMessage, error)

	// Reclaim returns messages whose ack timed out (consumer crash mid-batch).
	Reclaim(ctx context.Context, partition int, minIdle time.Duration, max int64) ([]EventMessage, error)

	Ack(ctx context.Context, partition int, ids ...string) error

	// DeadLetter routes an over-delivered message out of band and acks it.
	DeadLetter(ctx context.Context, msg EventMessage) error

	Partitions() int
}

// MirrorCache 进程内点赞状态镜像，写穿透更新，读不到再回源
type MirrorCache interface {
	Get(userID, blogID int64) ThumbStatus
	Put(userID, blogID int64, status ThumbStatus)
	Delete(userID, blogID int64)
}

// MarkerEvictor schedules best-effort asynchronous removal of expired markers.
type MarkerEvictor interface {
	// Enqueue never blocks; the eviction may be dropped under load.
	Enqueue(userID, blogID int64)
}

// ThumbUsecase defines the toggle operations exposed to the REST layer.
type ThumbUsecase interface {
	// Like fails with ErrAlreadyLiked if the user already liked the blog.
	Like(ctx context.Context, userID, blogID int64) error

	// Unlike fails with ErrNotLiked if the user has not liked the blog.
	Unlike(ctx context.Context, userID, blogID int64) error

	HasLiked(ctx context.Context, userID, blogID int64) (bool, error)

	// HasLikedBatch resolves like state for many blogs in one cache round trip.
	HasLikedBatch(ctx context.Context, userID int64, blogIDs []int64) (map[int64]bool, error)
}
