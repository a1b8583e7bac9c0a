package model

import (
	"time"

	"github.com/ericpp/thumbs/domain"
)

type Blog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Title      string    `gorm:"type:varchar(45);not null"`
	Content    string    `gorm:"type:longtext;not null"`
	UserID     int64     `gorm:"column:user_id;not null"`
	ThumbCount int64     `gorm:"column:thumb_count;default:0"`
	CreatedAt  time.Time `gorm:"type:datetime"`
	UpdatedAt  time.Time `gorm:"type:datetime"`
}

func (Blog) TableName() string {
	return "blog"
}

func (m *Blog) ToDomain() domain.Blog {
	return domain.Blog{
		ID:      m.ID,
		Title:   m.Title,
		Content: m.Content,
		User: domain.User{
			ID: m.UserID,
		},
		ThumbCount: m.ThumbCount,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func NewBlogFromDomain(b *domain.Blog) *Blog {
	return &Blog{
		ID:         b.ID,
		Title:      b.Title,
		Content:    b.Content,
		UserID:     b.User.ID,
		ThumbCount: b.ThumbCount,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}
