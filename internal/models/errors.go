package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelUnavailable indicates the model runtime could not serve the request
// at all (connection refused, proxy error, non-JSON response).
type ErrModelUnavailable struct {
	Provider string
	Body     string
	Cause    error
}

func (e *ErrModelUnavailable) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s backend unavailable: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("%s backend unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrModelUnavailable) Unwrap() error { return e.Cause }

// OOMError signals the runtime ran out of memory loading or running a model.
// The executor treats it as a cue to fall back to a smaller model.
type OOMError struct {
	Model string
	Cause error
}

func (e *OOMError) Error() string {
	return fmt.Sprintf("model %s out of memory: %v", e.Model, e.Cause)
}

func (e *OOMError) Unwrap() error { return e.Cause }

// IsOOM reports whether err indicates memory pressure in the model runtime.
func IsOOM(err error) bool {
	if err == nil {
		return false
	}
	var oom *OOMError
	if errors.As(err, &oom) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "out of memory") ||
		strings.Contains(s, "oom") ||
		strings.Contains(s, "cuda error") ||
		strings.Contains(s, "not enough memory")
}

// WrapError classifies a raw runtime error for the named model.
// OOM gets its own type so callers can branch on it; everything else is
// rewrapped with a readable prefix.
func WrapError(model string, err error) error {
	if err == nil {
		return nil
	}
	if IsOOM(err) {
		return &OOMError{Model: model, Cause: err}
	}

	errStr := strings.ToLower(err.Error())
	if containsAny(errStr, "context length", "too many tokens", "token limit") {
		return fmt.Errorf("context too long: %w", err)
	}
	if containsAny(errStr, "model not found", "404", "not found") {
		return fmt.Errorf("model not found: %w", err)
	}
	if containsAny(errStr, "connection", "eof", "timeout", "dial", "refused") {
		return fmt.Errorf("connection error: %w", err)
	}
	return err
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
