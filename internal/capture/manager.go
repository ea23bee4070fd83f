package capture

import (
	"context"
	"mime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicedraft/voicedraft/internal/audio"
)

// pcmSampleRate reports whether mimeType describes raw PCM16LE audio and
// at what sample rate (rate parameter, default 16 kHz).
func pcmSampleRate(mimeType string) (int, bool) {
	mt, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0, false
	}
	if mt != "audio/pcm" && mt != "audio/l16" {
		return 0, false
	}
	rate := 16000
	if v, ok := params["rate"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, false
		}
		rate = n
	}
	return rate, true
}

// Manager owns at most one active capture session at a time. Both roles
// share a single chunk buffer; ownership is handed off at Start, which
// fully resets it so primary and tweak audio can never mix.
type Manager struct {
	mu          sync.Mutex
	device      Device
	maxDuration map[Role]time.Duration
	autoStop    func(Role)

	states    map[Role]State
	active    Role
	sessionID string
	stream    Stream
	chunks    [][]byte
	mime      string
	startedAt time.Time
	timer     *time.Timer
}

func NewManager(device Device, primaryMax, tweakMax time.Duration) *Manager {
	if primaryMax <= 0 {
		primaryMax = 5 * time.Minute
	}
	if tweakMax <= 0 {
		tweakMax = 2 * time.Minute
	}
	return &Manager{
		device: device,
		maxDuration: map[Role]time.Duration{
			RolePrimary: primaryMax,
			RoleTweak:   tweakMax,
		},
		states: map[Role]State{
			RolePrimary: StateIdle,
			RoleTweak:   StateIdle,
		},
	}
}

// SetAutoStopHook registers the callback invoked when a session hits its
// deadline. The hook runs on the timer goroutine and is expected to call
// Stop, which is a no-op if a manual stop already won the race.
func (m *Manager) SetAutoStopHook(hook func(Role)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoStop = hook
}

// State reports the lifecycle state for one role.
func (m *Manager) State(role Role) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[role]
}

// Start acquires the input stream for role and begins recording. It fails
// with ErrAlreadyInProgress when any session is active, and with
// ErrPermissionDenied (no resources acquired) when the device refuses.
func (m *Manager) Start(ctx context.Context, role Role) (string, error) {
	m.mu.Lock()
	for _, st := range m.states {
		if st != StateIdle {
			m.mu.Unlock()
			return "", ErrAlreadyInProgress
		}
	}
	m.states[role] = StateRequesting
	m.mu.Unlock()

	stream, err := m.device.Acquire(ctx)
	if err != nil {
		m.mu.Lock()
		m.states[role] = StateIdle
		m.mu.Unlock()
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.states[role] = StateRecording
	m.active = role
	m.sessionID = id
	m.stream = stream
	m.chunks = m.chunks[:0]
	m.mime = ""
	m.startedAt = time.Now()

	deadline := m.maxDuration[role]
	m.timer = time.AfterFunc(deadline, func() {
		m.fireAutoStop(role, id)
	})
	return id, nil
}

func (m *Manager) fireAutoStop(role Role, sessionID string) {
	m.mu.Lock()
	stale := m.sessionID != sessionID || m.states[role] != StateRecording
	hook := m.autoStop
	m.mu.Unlock()
	// A timer that outlives its session must do nothing.
	if stale || hook == nil {
		return
	}
	hook(role)
}

// Push appends one audio chunk to the active session's buffer. Chunks are
// push-based: the transport delivers them as they become available.
func (m *Manager) Push(role Role, chunk []byte, mime string) error {
	if len(chunk) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[role] != StateRecording || m.active != role {
		return ErrNotRecording
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	m.chunks = append(m.chunks, buf)
	if m.mime == "" && mime != "" {
		m.mime = mime
	}
	return nil
}

// Stop halts the active session for role, releases the input stream and
// returns the assembled clip. Calling Stop when role is not recording is
// a no-op and reports stopped=false.
func (m *Manager) Stop(role Role) (Clip, bool, error) {
	m.mu.Lock()
	if m.states[role] != StateRecording || m.active != role {
		m.mu.Unlock()
		return Clip{}, false, nil
	}
	m.states[role] = StateStopping
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	stream := m.stream
	m.stream = nil
	chunks := m.chunks
	m.chunks = nil
	mime := m.mime
	startedAt := m.startedAt
	m.mu.Unlock()

	var closeErr error
	if stream != nil {
		closeErr = stream.Close()
	}

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}
	if mime == "" {
		mime = "audio/webm"
	}

	// Raw PCM pushes are re-containered as WAV so the transcription
	// endpoint and the duration probe both understand them.
	if rate, ok := pcmSampleRate(mime); ok {
		if wav, err := audio.EncodeWAVPCM16LE(data, rate); err == nil {
			data = wav
			mime = "audio/wav"
		}
	}

	duration, err := audio.ProbeDuration(data)
	if err != nil {
		// Container without readable metadata: fall back to wall clock.
		duration = time.Since(startedAt)
	}

	m.mu.Lock()
	m.states[role] = StateIdle
	m.active = ""
	m.sessionID = ""
	m.mu.Unlock()

	return Clip{Data: data, MIME: mime, Duration: duration}, true, closeErr
}
