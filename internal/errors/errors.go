package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNotConfigured       = errors.New("media server not configured")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNoActiveQueue       = errors.New("no active play queue")
	ErrItemNotFound        = errors.New("queue item not found")
	ErrActionInFlight      = errors.New("action already in progress")
	ErrCannotRemoveCurrent = errors.New("cannot remove the now-playing item")
	ErrShuffleNotAllowed   = errors.New("shuffle not allowed for this queue")
	ErrAudioUnavailable    = errors.New("audio output not available in this build")
	ErrNetworkError        = errors.New("network error")
	ErrTimeout             = errors.New("request timeout")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// SpoolError wraps an error with a user-friendly suggestion.
type SpoolError struct {
	Err        error
	Suggestion string
}

func (e *SpoolError) Error() string {
	return e.Err.Error()
}

func (e *SpoolError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &SpoolError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var spoolErr *SpoolError
	if errors.As(err, &spoolErr) && spoolErr.Suggestion != "" {
		return spoolErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrNotConfigured) {
		return "Set server.url and server.token in ~/.spoolrc"
	}

	if errors.Is(err, ErrUnauthorized) || strings.Contains(errStr, "401") {
		return "Check server.token in ~/.spoolrc (or SPOOL_SERVER_TOKEN)"
	}

	if errors.Is(err, ErrNoActiveQueue) {
		return "Start something with 'spool play <uri>' first"
	}

	if errors.Is(err, ErrItemNotFound) {
		return "Run 'spool queue' to see current item IDs"
	}

	if errors.Is(err, ErrActionInFlight) {
		return "Wait for the previous request to finish"
	}

	if errors.Is(err, ErrAudioUnavailable) {
		return "Rebuild with CGO_ENABLED=1 to enable audio output"
	}

	if errors.Is(err, ErrNetworkError) || errors.Is(err, ErrTimeout) ||
		strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") {
		return "Check that the media server is reachable and try again"
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "server error") {
		return "The media server is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}
