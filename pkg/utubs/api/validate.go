package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// Report fields by their JSON names so clients can map errors to inputs.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// Fail aborts the request with an ErrorResponse.
func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, NewError(message, nil))
}

// FailFields aborts with a 400 carrying field errors.
func FailFields(c *gin.Context, message string, fields map[string][]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewError(message, fields))
}

// BindJSON binds the request body into req. On failure it answers 400 with
// per-field messages and returns false.
func BindJSON(c *gin.Context, req any, message string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	FailFields(c, message, FieldErrors(err))
	return false
}

// FieldErrors flattens a binding error into field -> messages.
func FieldErrors(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string][]string{"body": {"Invalid JSON body"}}
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field required"
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "email":
		return "Invalid email address"
	default:
		return "Invalid value"
	}
}
