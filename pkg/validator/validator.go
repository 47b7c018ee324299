// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kaliumosint/api/pkg/domain/scan"
)

// sessionRegex matches browser session ids used as websocket channels.
var sessionRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %s", e.Field, e.Message)
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	_ = v.RegisterValidation("session_id", validateSessionID)
	_ = v.RegisterValidation("scan_target", validateScanTarget)
	_ = v.RegisterValidation("port_range", validatePortRange)
	_ = v.RegisterValidation("engine_type", validateEngineType)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}
	return result
}

// jsonFieldName reports fields by their JSON name so errors match the
// request body.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func validateSessionID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return sessionRegex.MatchString(value)
}

// validateScanTarget rejects targets with nothing printable in them. Any
// other shape is left to target parsing, which accepts unknown forms.
func validateScanTarget(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), func(r rune) bool {
		return !unicode.IsSpace(r) && unicode.IsPrint(r)
	}) >= 0
}

func validatePortRange(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || slices.Contains(scan.PortRanges(), value)
}

func validateEngineType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || slices.Contains(scan.EngineTypes(), value)
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "session_id":
		return "must be 1-64 letters, digits, '-' or '_'"
	case "scan_target":
		return "must contain a hostname, IP address or URL"
	case "port_range":
		return "must be one of: " + strings.Join(scan.PortRanges(), ", ")
	case "engine_type":
		return "must be one of: " + strings.Join(scan.EngineTypes(), ", ")
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
