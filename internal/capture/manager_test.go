package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voicedraft/voicedraft/internal/audio"
)

type countingStream struct {
	mu     sync.Mutex
	closes int
}

func (s *countingStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

type countingDevice struct {
	mu       sync.Mutex
	acquires int
	stream   *countingStream
}

func (d *countingDevice) Acquire(_ context.Context) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquires++
	d.stream = &countingStream{}
	return d.stream, nil
}

func TestStartPushStopAssemblesClip(t *testing.T) {
	dev := &countingDevice{}
	m := NewManager(dev, time.Minute, time.Minute)

	if _, err := m.Start(context.Background(), RolePrimary); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if st := m.State(RolePrimary); st != StateRecording {
		t.Fatalf("state = %q, want %q", st, StateRecording)
	}

	if err := m.Push(RolePrimary, []byte("abc"), "audio/webm"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := m.Push(RolePrimary, []byte("def"), ""); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	clip, stopped, err := m.Stop(RolePrimary)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !stopped {
		t.Fatalf("Stop() stopped = false, want true")
	}
	if string(clip.Data) != "abcdef" {
		t.Fatalf("clip data = %q, want %q", clip.Data, "abcdef")
	}
	if clip.MIME != "audio/webm" {
		t.Fatalf("clip mime = %q, want audio/webm", clip.MIME)
	}
	if dev.stream.closes != 1 {
		t.Fatalf("stream closed %d times, want exactly once", dev.stream.closes)
	}
	if st := m.State(RolePrimary); st != StateIdle {
		t.Fatalf("state after stop = %q, want %q", st, StateIdle)
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	m := NewManager(&countingDevice{}, time.Minute, time.Minute)
	if _, stopped, err := m.Stop(RolePrimary); err != nil || stopped {
		t.Fatalf("Stop() = (stopped=%v, err=%v), want no-op", stopped, err)
	}
}

func TestSecondStartFailsWithoutAcquisition(t *testing.T) {
	dev := &countingDevice{}
	m := NewManager(dev, time.Minute, time.Minute)

	if _, err := m.Start(context.Background(), RolePrimary); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := m.Start(context.Background(), RoleTweak); !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("tweak Start() error = %v, want ErrAlreadyInProgress", err)
	}
	if _, err := m.Start(context.Background(), RoleTweak); !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("repeated tweak Start() error = %v, want ErrAlreadyInProgress", err)
	}
	if dev.acquires != 1 {
		t.Fatalf("device acquired %d times, want 1 (guard must not acquire)", dev.acquires)
	}
}

func TestDeniedDeviceLeavesSessionIdle(t *testing.T) {
	m := NewManager(DeniedDevice{}, time.Minute, time.Minute)
	if _, err := m.Start(context.Background(), RolePrimary); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start() error = %v, want ErrPermissionDenied", err)
	}
	if st := m.State(RolePrimary); st != StateIdle {
		t.Fatalf("state after denial = %q, want %q", st, StateIdle)
	}
	// Denial must not poison later starts.
	m2 := NewManager(&countingDevice{}, time.Minute, time.Minute)
	if _, err := m2.Start(context.Background(), RolePrimary); err != nil {
		t.Fatalf("Start() after fresh manager error = %v", err)
	}
}

func TestBufferResetBetweenSessions(t *testing.T) {
	m := NewManager(&countingDevice{}, time.Minute, time.Minute)

	if _, err := m.Start(context.Background(), RolePrimary); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Push(RolePrimary, []byte("primary-audio"), "audio/webm"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if _, _, err := m.Stop(RolePrimary); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if _, err := m.Start(context.Background(), RoleTweak); err != nil {
		t.Fatalf("tweak Start() error = %v", err)
	}
	if err := m.Push(RoleTweak, []byte("tweak-audio"), "audio/webm"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	clip, _, err := m.Stop(RoleTweak)
	if err != nil {
		t.Fatalf("tweak Stop() error = %v", err)
	}
	if string(clip.Data) != "tweak-audio" {
		t.Fatalf("tweak clip = %q, must not contain primary audio", clip.Data)
	}
}

func TestPushWithoutActiveSession(t *testing.T) {
	m := NewManager(&countingDevice{}, time.Minute, time.Minute)
	if err := m.Push(RolePrimary, []byte("x"), ""); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Push() error = %v, want ErrNotRecording", err)
	}
}

func TestAutoStopFiresHookOnce(t *testing.T) {
	m := NewManager(&countingDevice{}, 30*time.Millisecond, time.Minute)

	fired := make(chan Role, 1)
	m.SetAutoStopHook(func(role Role) {
		fired <- role
		m.Stop(role)
	})

	if _, err := m.Start(context.Background(), RolePrimary); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case role := <-fired:
		if role != RolePrimary {
			t.Fatalf("auto-stop role = %q, want primary", role)
		}
	case <-time.After(time.Second):
		t.Fatalf("auto-stop hook did not fire")
	}

	if st := m.State(RolePrimary); st != StateIdle {
		t.Fatalf("state after auto-stop = %q, want idle", st)
	}
}

func TestTimerAfterManualStopIsNoOp(t *testing.T) {
	m := NewManager(&countingDevice{}, 40*time.Millisecond, time.Minute)

	var mu sync.Mutex
	hookCalls := 0
	m.SetAutoStopHook(func(role Role) {
		mu.Lock()
		hookCalls++
		mu.Unlock()
		m.Stop(role)
	})

	if _, err := m.Start(context.Background(), RolePrimary); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, stopped, err := m.Stop(RolePrimary); err != nil || !stopped {
		t.Fatalf("manual Stop() = (stopped=%v, err=%v)", stopped, err)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if hookCalls != 0 {
		t.Fatalf("auto-stop hook fired %d times after manual stop, want 0", hookCalls)
	}
}

func TestClipDurationFromWAVMetadata(t *testing.T) {
	m := NewManager(&countingDevice{}, time.Minute, time.Minute)

	const sampleRate = 16000
	pcm := make([]byte, sampleRate*2*3) // 3 seconds
	wav, err := audio.EncodeWAVPCM16LE(pcm, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}

	if _, err := m.Start(context.Background(), RolePrimary); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Push(RolePrimary, wav, "audio/wav"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	clip, _, err := m.Stop(RolePrimary)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if clip.Duration != 3*time.Second {
		t.Fatalf("duration = %v, want 3s from WAV metadata", clip.Duration)
	}
}

func TestStopRecontainersRawPCMAsWAV(t *testing.T) {
	m := NewManager(&countingDevice{}, time.Minute, time.Minute)

	const sampleRate = 8000
	pcm := make([]byte, sampleRate*2) // 1 second of PCM16LE mono

	if _, err := m.Start(context.Background(), RolePrimary); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Push(RolePrimary, pcm, "audio/l16;rate=8000"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	clip, _, err := m.Stop(RolePrimary)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if clip.MIME != "audio/wav" {
		t.Fatalf("mime = %q, want audio/wav", clip.MIME)
	}
	if clip.Duration != time.Second {
		t.Fatalf("duration = %v, want 1s from the WAV header", clip.Duration)
	}
	if got, err := audio.ProbeDuration(clip.Data); err != nil || got != time.Second {
		t.Fatalf("ProbeDuration() = (%v, %v), want (1s, nil)", got, err)
	}
}
