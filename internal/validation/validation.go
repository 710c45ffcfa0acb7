// Package validation wraps go-playground/validator with JSON field naming and
// human readable messages shared by every input schema.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error carries per-field messages for rejected input.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}

	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field builds an Error for a single field.
func Field(name, message string) *Error {
	return &Error{Fields: map[string]string{name: message}}
}

// Merge folds other into e, returning whichever is non-nil.
func (e *Error) Merge(other *Error) *Error {
	if other == nil || len(other.Fields) == 0 {
		return e
	}
	if e == nil {
		return other
	}
	for key, message := range other.Fields {
		if _, exists := e.Fields[key]; !exists {
			e.Fields[key] = message
		}
	}
	return e
}

// AsError converts a possibly-nil *Error into an error without the typed-nil trap.
func (e *Error) AsError() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validator validates structs using `validate` tags.
type Validator struct {
	v *validator.Validate
}

// New constructs a Validator reporting field names from json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return field.Name
		default:
			return name
		}
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return true
		}
		return strings.TrimSpace(field.String()) != ""
	})

	_ = v.RegisterValidation("abspath", func(fl validator.FieldLevel) bool {
		return strings.HasPrefix(fl.Field().String(), "/")
	})

	return &Validator{v: v}
}

// Struct validates input and returns an *Error describing each failing field.
func (v *Validator) Struct(input any) *Error {
	err := v.v.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Field("body", err.Error())
	}

	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		name := fieldPath(fe)
		if _, exists := out.Fields[name]; exists {
			continue
		}
		out.Fields[name] = describe(fe)
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	namespace := fe.Namespace()
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "abspath":
		return "must start with /"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
