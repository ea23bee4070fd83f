package capture

import (
	"context"
	"errors"
	"time"
)

// Role distinguishes the initial voice-note capture from the shorter
// revision-instruction capture.
type Role string

const (
	RolePrimary Role = "primary"
	RoleTweak   Role = "tweak"
)

// State is the capture session lifecycle per role.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateStopping   State = "stopping"
)

var (
	// ErrPermissionDenied is returned when the capture platform refuses
	// microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrAlreadyInProgress is returned when a capture start would overlap
	// an active session.
	ErrAlreadyInProgress = errors.New("capture already in progress")
	// ErrNotRecording is returned when audio arrives with no active session.
	ErrNotRecording = errors.New("no capture in progress")
)

// Stream is an exclusively owned audio input handle. Close releases the
// underlying tracks and must be called exactly once per acquisition.
type Stream interface {
	Close() error
}

// Device models the capture platform: it grants or denies access to an
// audio input stream.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Clip is the product of one completed capture session.
type Clip struct {
	Data     []byte
	MIME     string
	Duration time.Duration
}
