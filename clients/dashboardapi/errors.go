package dashboardapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TransportError is a network failure; no response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx answer. Message is the JSON "message" field
// when the body carries one, otherwise the trimmed body text.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status=%d", e.StatusCode)
	}
	return fmt.Sprintf("status=%d: %s", e.StatusCode, e.Message)
}

// DecodeError means the body was not the JSON the endpoint promises.
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "…"
	}
	return fmt.Sprintf("decode json: %v (body=%q)", e.Err, body)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newStatusError(code int, body []byte) *StatusError {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return &StatusError{StatusCode: code, Message: payload.Message}
	}
	return &StatusError{StatusCode: code, Message: strings.TrimSpace(string(body))}
}
