package req

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IsValid validates payload against its `validate` tags.
func IsValid[T any](payload T) error {
	return validate.Struct(payload)
}

// BindURI binds path parameters into T and validates them.
func BindURI[T any](c *gin.Context) (*T, error) {
	var params T
	if err := c.ShouldBindUri(&params); err != nil {
		return nil, fmt.Errorf("bind path parameters: %w", err)
	}
	if err := IsValid(params); err != nil {
		return nil, err
	}
	return &params, nil
}

// ValidationDetails flattens validator errors into field -> failed tag.
func ValidationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}
