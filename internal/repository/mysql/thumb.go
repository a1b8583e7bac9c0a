package mysql

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ericpp/thumbs/domain"
	"github.com/ericpp/thumbs/internal/repository/mysql/model"
)

const (
	// insertChunkSize bounds the size of a single batched INSERT statement
	insertChunkSize = 500
)

type thumbRepository struct {
	DB *gorm.DB
}

var _ domain.ThumbDBRepository = (*thumbRepository)(nil)

// NewThumbRepository 创建点赞记录的数据库操作层
func NewThumbRepository(db *gorm.DB) *thumbRepository {
	return &thumbRepository{db}
}

func (m *thumbRepository) HasThumb(ctx context.Context, userID, blogID int64) (bool, error) {
	var count int64
	err := m.DB.WithContext(ctx).
		Model(&model.Thumb{}).
		Where("user_id = ? AND blog_id = ?", userID, blogID).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (m *thumbRepository) FetchUserLikedBlogs(ctx context.Context, userID int64) ([]int64, error) {
	var res []int64
	err := m.DB.WithContext(ctx).
		Model(&model.Thumb{}).
		Select("blog_id").
		Where("user_id = ?", userID).
		Order("blog_id desc").
		Find(&res).Error

	return res, err
}

// ApplyToggleChanges 在一个事务内完成：一条批量计数更新、一条合并谓词删除、分批插入。
// 要么全部提交要么全部回滚，重放同一批变更是安全的。
func (m *thumbRepository) ApplyToggleChanges(ctx context.Context, changes domain.ToggleChanges) error {
	if len(changes.CountDeltas) == 0 && len(changes.ToInsert) == 0 && len(changes.ToRemove) == 0 {
		return nil
	}

	return m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(changes.ToRemove) > 0 {
			pred, args := removePredicate(changes.ToRemove)
			if err := tx.Where(pred, args...).Delete(&model.Thumb{}).Error; err != nil {
				return err
			}
		}

		if len(changes.CountDeltas) > 0 {
			query, args := countDeltaStatement(changes.CountDeltas)
			if err := tx.Exec(query, args...).Error; err != nil {
				return err
			}
		}

		if len(changes.ToInsert) > 0 {
			rows := make([]model.Thumb, len(changes.ToInsert))
			for i, rec := range changes.ToInsert {
				rows[i] = model.NewThumbFromDomain(rec)
			}
			// 记录可能已经落库（消息重投），冲突时原样跳过
			if err := tx.Clauses(clause.OnConflict{
				DoNothing: true,
			}).CreateInBatches(&rows, insertChunkSize).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// removePredicate 把 (user_id, blog_id) 对拼成一个 OR 谓词
func removePredicate(pairs []domain.ThumbRecord) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, 2*len(pairs))
	for i, p := range pairs {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("(user_id = ? AND blog_id = ?)")
		args = append(args, p.UserID, p.BlogID)
	}
	return sb.String(), args
}

// countDeltaStatement 把 blogID→delta 映射拼成一条带 CASE 的批量更新
func countDeltaStatement(deltas map[int64]int64) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, 3*len(deltas))
	ids := make([]any, 0, len(deltas))

	sb.WriteString("UPDATE blog SET thumb_count = thumb_count + CASE id")
	for id, delta := range deltas {
		sb.WriteString(" WHEN ? THEN ?")
		args = append(args, id, delta)
		ids = append(ids, id)
	}
	sb.WriteString(" ELSE 0 END WHERE id IN (?")
	sb.WriteString(strings.Repeat(",?", len(ids)-1))
	sb.WriteString(")")
	args = append(args, ids...)

	return sb.String(), args
}
