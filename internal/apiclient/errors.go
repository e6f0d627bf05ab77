package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the scheduling API, or a local
// failure mapped to a user-facing message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsCanceled reports whether err comes from a canceled context. A deadline
// exceeded error is a genuine failure, not a cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// ErrorMessage extracts a human-readable message from an error body: the
// "message" (or "error") field of a JSON object, or the trimmed text.
func ErrorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, "{") {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(text), &payload); err == nil {
			if msg := strings.TrimSpace(payload.Message); msg != "" {
				return msg
			}
			if msg := strings.TrimSpace(payload.Error); msg != "" {
				return msg
			}
			return ""
		}
	}
	return text
}

// NewAPIError reads resp's body and builds an APIError. fallback is used
// when the body carries no message; a single %d in it receives the status.
func NewAPIError(resp *http.Response, fallback string) *APIError {
	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(resp.Body)
	}
	msg := ErrorMessage(body)
	if msg == "" {
		msg = fallback
		if strings.Contains(fallback, "%d") {
			msg = fmt.Sprintf(fallback, resp.StatusCode)
		}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
