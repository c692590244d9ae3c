package errors

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail names the request field a problem was found in
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field problems of one request
type ValidationErrors []ErrorDetail

// NewValidationErrors converts the result of validator.Struct. Any other
// non-nil error is reported against the whole request.
func NewValidationErrors(err error) ValidationErrors {
	var v ValidationErrors
	if err == nil {
		return v
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.Add("request", err.Error())
		return v
	}
	for _, fe := range fieldErrs {
		v.Add(fe.Field(), ruleMessage(fe))
	}
	return v
}

// Add records a problem with field
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ErrorDetail{Field: field, Message: message})
}

// HasErrors returns true if any problem was recorded
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// ToErrorDetails returns the problems in response form
func (v ValidationErrors) ToErrorDetails() []ErrorDetail {
	if len(v) == 0 {
		return nil
	}
	details := make([]ErrorDetail, len(v))
	copy(details, v)
	return details
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		return fmt.Sprintf("must have at most %s entries or characters", fe.Param())
	case "printascii":
		return "must contain printable ASCII characters only"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return fmt.Sprintf("failed the %s rule", fe.Tag())
}
