package utils

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	registerOnce sync.Once
)

// ValidateStruct runs the binding tags of obj outside a request, for
// callers that did not come through gin
func ValidateStruct(obj interface{}) error {
	RegisterCustomValidators()
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		return FormatValidationError(err)
	}
	return nil
}

// FormatValidationError turns binding errors into a single validation AppError
func FormatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return NewError(CodeInvalidParam, strings.Join(messages, "; "))
	}
	return WrapError(err, CodeInvalidParam, "invalid request body")
}

func getFieldErrorMessage(fieldError validator.FieldError) string {
	field := camelToSnake(fieldError.Field())
	param := fieldError.Param()

	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "positive":
		return fmt.Sprintf("%s must be positive", field)
	case "nonnegative":
		return fmt.Sprintf("%s must be non-negative", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "numeric":
		return fmt.Sprintf("%s must be a number", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "dive":
		return fmt.Sprintf("%s contains an invalid item", field)
	default:
		return fmt.Sprintf("%s validation failed", field)
	}
}

// camelToSnake converts camelCase to snake_case
func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			// keep acronyms together unless a lowercase letter follows
			if s[i-1] >= 'A' && s[i-1] <= 'Z' {
				if i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z' {
					result.WriteRune('_')
				}
			} else {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// RegisterCustomValidators registers the custom tags, validates decimals
// by value and names fields after their json tags. Safe to call repeatedly.
func RegisterCustomValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("email", validateEmail)
		_ = v.RegisterValidation("positive", validatePositive)
		_ = v.RegisterValidation("nonnegative", validateNonNegative)
		_ = v.RegisterValidation("notblank", validateNotBlank)

		// decimals are checked as their sign-preserving float value
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateEmail(fl validator.FieldLevel) bool {
	return IsValidEmail(fl.Field().String())
}

// IsValidEmail reports whether s looks like a deliverable address
func IsValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

func validatePositive(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() > 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fl.Field().Uint() > 0
	case reflect.Float32, reflect.Float64:
		return fl.Field().Float() > 0
	default:
		return false
	}
}

func validateNonNegative(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		return fl.Field().Float() >= 0
	default:
		return false
	}
}

// ValidateID parses a positive path id
func ValidateID(id string) (uint64, error) {
	if id == "" {
		return 0, NewError(CodeInvalidParam, "ID cannot be empty")
	}

	idInt, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, NewError(CodeInvalidParam, "ID must be a positive integer")
	}

	if idInt == 0 {
		return 0, NewError(CodeInvalidParam, "ID must be positive")
	}

	return idInt, nil
}

// ValidatePage validates pagination parameters
func ValidatePage(page, pageSize int) error {
	if page <= 0 {
		return NewError(CodeInvalidParam, "page must be positive")
	}

	if pageSize <= 0 || pageSize > 100 {
		return NewError(CodeInvalidParam, "pageSize must be between 1 and 100")
	}

	return nil
}
