package capture

import (
	"context"
	"sync"
)

// PushDevice is the capture platform used by the HTTP transport: the
// browser has already been granted microphone access by the time chunks
// arrive, so acquisition always succeeds and the stream handle only
// tracks its own release.
type PushDevice struct{}

func NewPushDevice() *PushDevice { return &PushDevice{} }

func (d *PushDevice) Acquire(_ context.Context) (Stream, error) {
	return &pushStream{}, nil
}

type pushStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *pushStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// DeniedDevice refuses every acquisition. Used when the client reports a
// permission failure and in tests.
type DeniedDevice struct{}

func (DeniedDevice) Acquire(_ context.Context) (Stream, error) {
	return nil, ErrPermissionDenied
}
