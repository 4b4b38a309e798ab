package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrBackendUnreachable wraps transport failures: refused connections, DNS errors, timeouts.
	ErrBackendUnreachable = errors.New("analytics server unreachable")
	ErrEmptyQuestion      = errors.New("question is required")
)

// StatusError is a non-2xx answer from the analytics server.
type StatusError struct {
	StatusCode int
	ErrorText  string
	Message    string
}

func (e *StatusError) Error() string {
	text := e.ErrorText
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	if e.Message != "" {
		return fmt.Sprintf("analytics server returned %d: %s: %s", e.StatusCode, text, e.Message)
	}
	return fmt.Sprintf("analytics server returned %d: %s", e.StatusCode, text)
}

const (
	msgUnreachable = "Unable to connect to the analytics server. Please ensure the Google Analytics service is running."
	msgAuth        = "Authentication issue with Google Analytics. Please check the configuration."
	msgProperty    = "Google Analytics property not found or not accessible. Please verify the property ID."
	msgGeneric     = "Failed to process your analytics query."
)

// UserMessage turns a request failure into a sentence fit for an end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrBackendUnreachable) {
		return msgUnreachable
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return msgAuth
		case http.StatusBadGateway:
			return msgUnreachable
		}
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "auth") || strings.Contains(text, "credential") || strings.Contains(text, "permission"):
		return msgAuth
	case strings.Contains(text, "property"):
		return msgProperty
	}
	return msgGeneric
}
