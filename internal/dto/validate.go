package dto

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

func init() {
	// Report json field names rather than Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate runs struct validation and converts failures into an
// InvalidArgument error naming each offending field.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Wrap(apperr.InvalidArgument, "Invalid input", err)
	}

	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, describe(fe))
	}
	sort.Strings(fields)
	return apperr.New(apperr.InvalidArgument, "Invalid input: "+strings.Join(fields, "; "))
}

// Bind parses the JSON body into req and validates it.
func Bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return apperr.New(apperr.InvalidArgument, "Invalid request body")
	}
	return Validate(req)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email"
	case "dive", "gt", "lte":
		return fmt.Sprintf("%s is out of range", fe.Field())
	default:
		return fe.Field() + " is invalid (" + fe.Tag() + ")"
	}
}
