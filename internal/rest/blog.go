package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ericpp/thumbs/domain"
	"github.com/ericpp/thumbs/internal/rest/request"
	"github.com/ericpp/thumbs/internal/rest/response"
)

// BlogHandler represent the httphandler for blog
type BlogHandler struct {
	Service domain.BlogUsecase
}

const (
	DefaultPageNum = 10
	PageMinNum     = 5
	PageMaxNum     = 30
)

func NewBlogHandler(svc domain.BlogUsecase) *BlogHandler {
	return &BlogHandler{
		Service: svc,
	}
}

// viewerID 已登录用户从认证中间件拿 user_id，匿名返回 0
func viewerID(c *gin.Context) int64 {
	uid, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	return uid.(int64)
}

// GetByID will get blog by given id
func (h *BlogHandler) GetByID(c *gin.Context) {
	idP, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ResponseError{Message: domain.ErrNotFound.Error()})
		return
	}
	id := int64(idP)

	b, err := h.Service.GetByID(c.Request.Context(), id, viewerID(c))
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.NewBlogFromDomain(&b))
}

// Fetch will fetch the blogs based on given params
func (h *BlogHandler) Fetch(c *gin.Context) {
	numS := c.Query("num")
	num, err := strconv.Atoi(numS)
	if err != nil || num < PageMinNum || num > PageMaxNum {
		num = DefaultPageNum
	}

	cursor := c.Query("cursor")

	list, nextCursor, err := h.Service.Fetch(c.Request.Context(), cursor, int64(num), viewerID(c))
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	res := make([]response.Blog, len(list))
	for i := range list {
		res[i] = response.NewBlogFromDomain(&list[i])
	}
	c.Header(`X-cursor`, nextCursor)
	c.JSON(http.StatusOK, res)
}

// Store will store the blog by given request body
func (h *BlogHandler) Store(c *gin.Context) {
	var req request.Blog
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		return
	}

	uid := viewerID(c)
	if uid <= 0 {
		c.JSON(http.StatusUnauthorized, ResponseError{Message: domain.ErrNotAuthenticated.Error()})
		return
	}

	b := req.ToDomain()
	b.User.ID = uid

	if err := h.Service.Store(c.Request.Context(), &b); err != nil {
		logrus.Errorf("failed to store blog: %v", err)
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, response.NewBlogFromDomain(&b))
}
