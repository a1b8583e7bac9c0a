package request

import "github.com/ericpp/thumbs/domain"

type Blog struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ToDomain: Request -> Domain
func (r *Blog) ToDomain() domain.Blog {
	return domain.Blog{
		Title:   r.Title,
		Content: r.Content,
	}
}
