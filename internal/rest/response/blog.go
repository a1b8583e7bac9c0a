package response

import (
	"github.com/ericpp/thumbs/domain"
)

type Blog struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	UserName   string `json:"user_name"`
	ThumbCount int64  `json:"thumb_count"`
	HasThumb   bool   `json:"has_thumb"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// FromDomain: Domain -> Response
func NewBlogFromDomain(b *domain.Blog) Blog {
	return Blog{
		ID:         b.ID,
		Title:      b.Title,
		Content:    b.Content,
		UserName:   b.User.Name,
		ThumbCount: b.ThumbCount,
		HasThumb:   b.HasThumb,
		CreatedAt:  b.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:  b.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}
