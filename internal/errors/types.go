package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a missing or invalid configuration value.
type ConfigError struct {
	Section string   // logical section, e.g. "LLM" or "memory"
	Fields  []string // offending keys
	Message string   // optional override rendered as-is
}

func (e *ConfigError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s configuration", e.Section)
	}
	return fmt.Sprintf("Missing required %s configuration (%s)", e.Section, strings.Join(e.Fields, ", "))
}

// MissingFields builds a ConfigError for absent required keys.
func MissingFields(section string, fields ...string) *ConfigError {
	return &ConfigError{Section: section, Fields: fields}
}

// Invalidf builds a ConfigError with a formatted message.
func Invalidf(section, field, format string, args ...any) *ConfigError {
	return &ConfigError{
		Section: section,
		Fields:  []string{field},
		Message: fmt.Sprintf(format, args...),
	}
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// InitError is returned by the service container when a lazily built service
// could not be produced.
type InitError struct {
	Service string
	Err     error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to initialize %s", e.Service)
	}
	return fmt.Sprintf("failed to initialize %s: %v", e.Service, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// NewInitError wraps err for the named service.
func NewInitError(service string, err error) *InitError {
	return &InitError{Service: service, Err: err}
}

// IsInitError reports whether err wraps an *InitError.
func IsInitError(err error) bool {
	var initErr *InitError
	return errors.As(err, &initErr)
}
