package model

import (
	"time"

	"github.com/ericpp/thumbs/domain"
)

type Thumb struct {
	UserID    int64     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	BlogID    int64     `gorm:"column:blog_id;primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"type:datetime"`
}

// 复合主键 (user_id, blog_id) 保证每人每博客至多一条点赞记录
func (Thumb) TableName() string {
	return "thumb"
}

func (m *Thumb) ToDomain() domain.ThumbRecord {
	return domain.ThumbRecord{
		UserID:    m.UserID,
		BlogID:    m.BlogID,
		CreatedAt: m.CreatedAt,
	}
}

func NewThumbFromDomain(t domain.ThumbRecord) Thumb {
	return Thumb{
		UserID:    t.UserID,
		BlogID:    t.BlogID,
		CreatedAt: t.CreatedAt,
	}
}
