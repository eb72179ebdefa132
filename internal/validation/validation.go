// Package validation provides input validation helpers for the Pointsguard API.
package validation

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// Field length caps for free-text request fields.
const (
	MaxFieldLength = 256
	MaxNoteLength  = 2000
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeString trims whitespace, limits length, and strips null bytes.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// Error represents a single field validation failure.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is a collection of validation errors.
type Errors []Error

// Error implements the error interface
func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + " " + e[0].Message
}

// Validate runs validators and collects their failures. Returns nil when
// everything passes.
func Validate(validators ...func() *Error) Errors {
	var errs Errors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks that a field is non-empty.
func Required(field, value string) func() *Error {
	return func() *Error {
		if strings.TrimSpace(value) == "" {
			return &Error{Field: field, Message: "is required"}
		}
		return nil
	}
}

// MaxLength checks that a field does not exceed max bytes.
func MaxLength(field, value string, max int) func() *Error {
	return func() *Error {
		if len(value) > max {
			return &Error{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// NonNegative checks that an optional points value is not negative.
// A nil pointer passes: absent is a valid state, distinct from zero.
func NonNegative(field string, value *int64) func() *Error {
	return func() *Error {
		if value != nil && *value < 0 {
			return &Error{Field: field, Message: "must not be negative"}
		}
		return nil
	}
}

// DateFormat checks that an optional business date is YYYY-MM-DD.
func DateFormat(field, value string) func() *Error {
	return func() *Error {
		if value == "" {
			return nil
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return &Error{Field: field, Message: "must be a YYYY-MM-DD date"}
		}
		return nil
	}
}
