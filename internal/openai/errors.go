package openai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RemoteError is a non-2xx response from the transcription or generation
// endpoint, with the message extracted from the response body when present.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (http %d): %s", e.Status, e.Message)
}

// NetworkError is a transport failure reaching an endpoint.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// remoteErrorFromBody builds a RemoteError from a failed response body.
// A missing or malformed error field falls back to the raw body, and an
// empty body to a fixed message, never to a decode failure.
func remoteErrorFromBody(status int, body []byte) *RemoteError {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return &RemoteError{Status: status, Message: parsed.Error.Message}
	}
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		raw = "unknown remote error"
	}
	return &RemoteError{Status: status, Message: raw}
}
