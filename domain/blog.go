package domain

import (
	"context"
	"time"
)

// Blog is representing the Blog data struct
type Blog struct {
	ID         int64     // Unique identifier for the blog
	Title      string    // Blog title
	Content    string    // Blog body content
	User       User      // Author information
	ThumbCount int64     // Number of likes, authoritative in the durable store
	CreatedAt  time.Time // Creation timestamp
	UpdatedAt  time.Time // Last update timestamp

	// HasThumb 当前登录用户是否点赞，仅在读侧填充
	HasThumb bool
}

// BlogRepository defines the contract for blog data persistence
type BlogRepository interface {
	// GetByID retrieves a single blog by its ID.
	// Returns ErrNotFound if the blog doesn't exist.
	GetByID(ctx context.Context, id int64) (Blog, error)

	// Fetch retrieves a page of blogs ordered by creation time descending.
	Fetch(ctx context.Context, cursor string, num int64) ([]Blog, error)

	// Store creates a new blog and backfills its ID.
	Store(ctx context.Context, b *Blog) error

	// FetchIDs 按ID升序分页取出所有博客ID，用于布隆过滤器初始化
	FetchIDs(ctx context.Context, cursor, limit int64) ([]int64, error)
}

// BlogUsecase is the read side consumed by the REST layer.
type BlogUsecase interface {
	// GetByID returns the blog with HasThumb filled for the viewer.
	// viewerID <= 0 means anonymous.
	GetByID(ctx context.Context, id int64, viewerID int64) (Blog, error)

	// Fetch returns a page of blogs with HasThumb filled in one batch lookup.
	Fetch(ctx context.Context, cursor string, num int64, viewerID int64) ([]Blog, string, error)

	Store(ctx context.Context, b *Blog) error

	// InitBloomFilter 把全部博客ID灌入布隆过滤器
	InitBloomFilter(ctx context.Context) error
}
