package blog

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ericpp/thumbs/domain"
	"github.com/ericpp/thumbs/internal/repository"
)

const bloomInitPageSize = 1000

// Service 博客读侧：取内容，补作者信息，再用一次批量查询填充当前用户的点赞状态
type Service struct {
	blogRepo  domain.BlogRepository
	userRepo  domain.UserRepository
	thumbSvc  domain.ThumbUsecase
	bloomRepo domain.BloomRepository
}

var _ domain.BlogUsecase = (*Service)(nil)

// NewService will create a new blog service object
func NewService(b domain.BlogRepository, u domain.UserRepository, t domain.ThumbUsecase, bloom domain.BloomRepository) *Service {
	return &Service{
		blogRepo:  b,
		userRepo:  u,
		thumbSvc:  t,
		bloomRepo: bloom,
	}
}

func (s *Service) GetByID(ctx context.Context, id int64, viewerID int64) (domain.Blog, error) {
	res, err := s.blogRepo.GetByID(ctx, id)
	if err != nil {
		return domain.Blog{}, err
	}

	author, err := s.userRepo.GetByID(ctx, res.User.ID)
	if err != nil {
		return domain.Blog{}, err
	}
	res.User = author

	if viewerID > 0 {
		liked, err := s.thumbSvc.HasLiked(ctx, viewerID, id)
		if err != nil {
			logrus.Warnf("failed to resolve thumb state, user %d blog %d: %v", viewerID, id, err)
		} else {
			res.HasThumb = liked
		}
	}

	return res, nil
}

func (s *Service) Fetch(ctx context.Context, cursor string, num int64, viewerID int64) ([]domain.Blog, string, error) {
	res, err := s.blogRepo.Fetch(ctx, cursor, num)
	if err != nil {
		return nil, "", err
	}
	if len(res) == 0 {
		return []domain.Blog{}, "", nil
	}

	res, err = s.fillUserDetails(ctx, res)
	if err != nil {
		return nil, "", err
	}

	if viewerID > 0 {
		ids := make([]int64, len(res))
		for i := range res {
			ids[i] = res[i].ID
		}
		likedMap, err := s.thumbSvc.HasLikedBatch(ctx, viewerID, ids)
		if err != nil {
			logrus.Warnf("failed to batch resolve thumb state for user %d: %v", viewerID, err)
		} else {
			for i := range res {
				res[i].HasThumb = likedMap[res[i].ID]
			}
		}
	}

	nextCursor := repository.EncodeCursor(res[len(res)-1].CreatedAt)
	return res, nextCursor, nil
}

func (s *Service) Store(ctx context.Context, b *domain.Blog) error {
	if err := s.blogRepo.Store(ctx, b); err != nil {
		return err
	}
	// 新博客要进布隆过滤器，否则点赞会被挡掉
	if err := s.bloomRepo.Add(ctx, b.ID); err != nil {
		logrus.Errorf("failed to add blog %d to bloom filter: %v", b.ID, err)
	}
	return nil
}

// InitBloomFilter 启动时把全部博客ID灌进过滤器
func (s *Service) InitBloomFilter(ctx context.Context) error {
	var cursor int64 = 0
	for {
		ids, err := s.blogRepo.FetchIDs(ctx, cursor, bloomInitPageSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := s.bloomRepo.BulkAdd(ctx, ids); err != nil {
			return err
		}
		cursor = ids[len(ids)-1]
	}
}

// fillUserDetails 批量填充作者信息
func (s *Service) fillUserDetails(ctx context.Context, blogs []domain.Blog) ([]domain.Blog, error) {
	if len(blogs) == 0 {
		return blogs, nil
	}

	userIDs := make([]int64, 0, len(blogs))
	existMap := make(map[int64]bool)
	for _, item := range blogs {
		if !existMap[item.User.ID] {
			userIDs = append(userIDs, item.User.ID)
			existMap[item.User.ID] = true
		}
	}

	users, err := s.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	userMap := make(map[int64]domain.User)
	for _, u := range users {
		userMap[u.ID] = u
	}

	for i := range blogs {
		if u, ok := userMap[blogs[i].User.ID]; ok {
			blogs[i].User = u
		}
	}

	return blogs, nil
}
