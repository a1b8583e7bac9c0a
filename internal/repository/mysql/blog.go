package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/ericpp/thumbs/domain"
	"github.com/ericpp/thumbs/internal/repository"
	"github.com/ericpp/thumbs/internal/repository/mysql/model"
)

type blogRepository struct {
	DB *gorm.DB
}

var _ domain.BlogRepository = (*blogRepository)(nil)

// NewBlogRepository 创建博客的数据库操作层
func NewBlogRepository(db *gorm.DB) *blogRepository {
	return &blogRepository{db}
}

func (m *blogRepository) GetByID(ctx context.Context, id int64) (res domain.Blog, err error) {
	var blog model.Blog
	err = m.DB.WithContext(ctx).First(&blog, "id = ?", id).Error
	if err != nil {
		return res, domain.ErrNotFound
	}
	res = blog.ToDomain()
	return
}

func (m *blogRepository) Fetch(ctx context.Context, cursor string, num int64) (res []domain.Blog, err error) {
	var blogs []model.Blog
	decodedCursor, err := repository.DecodeCursor(cursor)
	if err != nil && cursor != "" {
		return nil, domain.ErrBadParamInput
	}

	repository.PageVerify(&num)
	query := m.DB.WithContext(ctx).
		Select("id, title, user_id, thumb_count, created_at, updated_at").
		Order("created_at desc").
		Limit(int(num))
	if cursor != "" {
		query = query.Where("created_at < ?", decodedCursor)
	}
	if err = query.Find(&blogs).Error; err != nil {
		return
	}

	for _, blog := range blogs {
		res = append(res, blog.ToDomain())
	}

	return
}

func (m *blogRepository) Store(ctx context.Context, b *domain.Blog) (err error) {
	blogModel := model.NewBlogFromDomain(b)
	result := m.DB.WithContext(ctx).Create(&blogModel)
	if result.Error != nil {
		return result.Error
	}
	b.ID = blogModel.ID
	b.CreatedAt = blogModel.CreatedAt
	b.UpdatedAt = blogModel.UpdatedAt
	return
}

func (m *blogRepository) FetchIDs(ctx context.Context, cursor, limit int64) (ids []int64, err error) {
	err = m.DB.WithContext(ctx).
		Model(&model.Blog{}).
		Select("id").
		Where("id > ?", cursor).
		Order("id").
		Limit(int(limit)).
		Find(&ids).Error
	return
}
