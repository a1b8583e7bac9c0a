package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ericpp/thumbs/domain"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

// ThumbHandler represent the httphandler for thumb
type ThumbHandler struct {
	Service domain.ThumbUsecase
}

func NewThumbHandler(svc domain.ThumbUsecase) *ThumbHandler {
	return &ThumbHandler{
		Service: svc,
	}
}

// Like adds a like marker for the current user
func (h *ThumbHandler) Like(c *gin.Context) {
	blogID, userID, ok := h.params(c)
	if !ok {
		return
	}

	if err := h.Service.Like(c.Request.Context(), userID, blogID); err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": true})
}

// Unlike removes the like marker for the current user
func (h *ThumbHandler) Unlike(c *gin.Context) {
	blogID, userID, ok := h.params(c)
	if !ok {
		return
	}

	if err := h.Service.Unlike(c.Request.Context(), userID, blogID); err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": false})
}

// HasLiked reports whether the current user liked the blog
func (h *ThumbHandler) HasLiked(c *gin.Context) {
	blogID, userID, ok := h.params(c)
	if !ok {
		return
	}

	liked, err := h.Service.HasLiked(c.Request.Context(), userID, blogID)
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func (h *ThumbHandler) params(c *gin.Context) (blogID, userID int64, ok bool) {
	idP, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ResponseError{Message: domain.ErrNotFound.Error()})
		return 0, 0, false
	}

	uid, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ResponseError{Message: domain.ErrNotAuthenticated.Error()})
		return 0, 0, false
	}

	return int64(idP), uid.(int64), true
}

// getStatusCode will get the code of the error from the usecases
func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	logrus.Error(err)
	switch {
	case errors.Is(err, domain.ErrInternalServerError):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyLiked),
		errors.Is(err, domain.ErrNotLiked):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBadParamInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
