package chat

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"aidiary/internal/apperr"
	"aidiary/internal/datekey"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
		return datekey.Valid(fl.Field().String())
	})
	return v
}

// ValidateMessage checks the required message fields.
func ValidateMessage(m Message) error {
	if problems := Problems(m); len(problems) > 0 {
		return apperr.Validation("message", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateConversation checks a full record, including every message.
func ValidateConversation(c Conversation) error {
	if problems := Problems(c); len(problems) > 0 {
		return apperr.Validation("conversation", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// Problems returns one readable line per failed field, or nil when s is valid.
func Problems(s any) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, formatFieldError(fe))
	}
	return out
}

func formatFieldError(e validator.FieldError) string {
	field := fieldPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "datekey":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date, got %q", field, e.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// fieldPath drops the root type name: "Conversation.messages[0].id" -> "messages[0].id".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
