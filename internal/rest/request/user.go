package request

import "github.com/go-playground/validator/v10"

var validate = validator.New()

type Register struct {
	Name     string `json:"name" validate:"required,max=45"`
	Username string `json:"username" validate:"required,min=3,max=45"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r *Register) Validate() error {
	return validate.Struct(r)
}

type Login struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
