package domain

import "errors"

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("internal server error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("your requested item is not found")
	// ErrConflict will throw if the current action already exists
	ErrConflict = errors.New("your item already exist")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("given param is not valid")
	// ErrNotAuthenticated will throw if the request carries no valid login state
	ErrNotAuthenticated = errors.New("user not authenticated")

	// ErrAlreadyLiked 重复点赞
	ErrAlreadyLiked = errors.New("user already liked this blog")
	// ErrNotLiked 未点赞却取消点赞
	ErrNotLiked = errors.New("user has not liked this blog")

	// ErrCacheMiss indicates the cache holds no state for the key
	ErrCacheMiss = errors.New("cache miss")
)
