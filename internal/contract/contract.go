// Package contract validates generative model output against the per-stage
// schemas. Output that does not conform is rejected, never coerced.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/Conceptual-Machines/algorhythm-api/internal/music"
	"github.com/go-playground/validator/v10"
)

const unknownFieldPrefix = "json: unknown field "

// ViolationError reports model output that does not satisfy a contract
type ViolationError struct {
	Contract string
	Field    string
	Reason   string
}

func (e *ViolationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s contract violation: %s", e.Contract, e.Reason)
	}
	return fmt.Sprintf("%s contract violation: %s %s", e.Contract, e.Field, e.Reason)
}

// Contract pairs the JSON schema sent to the model with a strict decoder for its output.
// W is the wire payload, T the domain type it normalises to.
type Contract[W any, T any] struct {
	Name        string
	Description string
	Schema      map[string]any

	rules     []func(*W) *ViolationError
	normalise func(*W) *T
}

// OutputSchema returns the schema in the form providers expect
func (c *Contract[W, T]) OutputSchema() *llm.OutputSchema {
	return &llm.OutputSchema{
		Name:        c.Name,
		Description: c.Description,
		Schema:      c.Schema,
	}
}

// Decode parses raw model output and validates it. Unknown fields, trailing
// data, missing fields and wrong types are all violations.
func (c *Contract[W, T]) Decode(raw string) (*T, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ViolationError{Contract: c.Name, Reason: "empty output"}
	}

	var payload W
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, c.decodeViolation(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ViolationError{Contract: c.Name, Reason: "trailing data after JSON object"}
	}

	if err := validate().Struct(&payload); err != nil {
		return nil, c.validationViolation(err)
	}

	for _, rule := range c.rules {
		if v := rule(&payload); v != nil {
			v.Contract = c.Name
			return nil, v
		}
	}

	return c.normalise(&payload), nil
}

func (c *Contract[W, T]) decodeViolation(err error) *ViolationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ViolationError{
			Contract: c.Name,
			Field:    typeErr.Field,
			Reason:   fmt.Sprintf("has wrong type (got %s, want %s)", typeErr.Value, typeErr.Type),
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ViolationError{Contract: c.Name, Reason: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}
	}

	// encoding/json reports unknown fields as plain errors
	if name, ok := strings.CutPrefix(err.Error(), unknownFieldPrefix); ok {
		return &ViolationError{Contract: c.Name, Field: strings.Trim(name, `"`), Reason: "is not part of the schema"}
	}
	return &ViolationError{Contract: c.Name, Reason: err.Error()}
}

func (c *Contract[W, T]) validationViolation(err error) *ViolationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ViolationError{Contract: c.Name, Reason: err.Error()}
	}

	fe := fieldErrs[0]
	return &ViolationError{
		Contract: c.Name,
		Field:    fieldPath(fe),
		Reason:   describeTag(fe),
	}
}

// fieldPath drops the struct name prefix validator puts on namespaces
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s element(s)", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "timesig":
		return fmt.Sprintf("must look like N/M (got %v)", fe.Value())
	case "pitch":
		return fmt.Sprintf("is not a valid pitch (got %v)", fe.Value())
	case "tempo":
		return fmt.Sprintf("must be between %g and %g BPM (got %v)", models.MinTempo, models.MaxTempo, fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate

	timeSignaturePattern = regexp.MustCompile(`^\s*[1-9]\d*\s*/\s*[1-9]\d*\s*$`)
)

// validate returns the shared validator with our custom tags registered
func validate() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report JSON field names rather than Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("timesig", func(fl validator.FieldLevel) bool {
			return timeSignaturePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("tempo", func(fl validator.FieldLevel) bool {
			return models.ValidTempo(fl.Field().Float())
		})
		_ = v.RegisterValidation("pitch", func(fl validator.FieldLevel) bool {
			_, err := music.ParsePitch(fl.Field().String())
			return err == nil
		})

		validateInst = v
	})
	return validateInst
}

// ValidateURL checks that s is an absolute http(s) URL
func ValidateURL(s string) error {
	return validate().Var(s, "required,http_url")
}
