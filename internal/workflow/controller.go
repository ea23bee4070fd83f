package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/voicedraft/voicedraft/internal/capture"
	"github.com/voicedraft/voicedraft/internal/clipboard"
	"github.com/voicedraft/voicedraft/internal/credential"
	"github.com/voicedraft/voicedraft/internal/observability"
	"github.com/voicedraft/voicedraft/internal/openai"
	"github.com/voicedraft/voicedraft/internal/protocol"
	"github.com/voicedraft/voicedraft/internal/status"
)

// Phase is the top-level workflow state shared by the primary and tweak
// paths.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseRecording       Phase = "recording"
	PhaseTranscribing    Phase = "transcribing"
	PhaseTranscriptReady Phase = "transcript_ready"
	PhaseGenerating      Phase = "generating"
	PhaseEmailReady      Phase = "email_ready"
	PhaseTweakRecording  Phase = "tweak_recording"
	PhaseTweakProcessing Phase = "tweak_processing"
)

// Transcript is the text produced from the primary recording. Replaced
// wholesale on each new cycle, never mutated in place.
type Transcript struct {
	Text            string  `json:"text"`
	DurationMinutes float64 `json:"duration_minutes"`
	Model           string  `json:"model"`
}

// EmailDraft is the generated email. Replaced wholesale by the initial
// generation or a successful tweak.
type EmailDraft struct {
	Text        string `json:"text"`
	TotalTokens int    `json:"total_tokens"`
	Model       string `json:"model"`
}

// Notifier is the UI event sink: a blocking modal primitive for
// user-visible errors and confirmations, plus a ping that tells the UI
// to re-fetch the state snapshot. StateChanged fires on every phase or
// affordance transition; it is the only way a client learns about
// timer-driven stops, which complete with no HTTP response in flight.
type Notifier interface {
	Notify(level, message string)
	StateChanged()
}

// Config carries the model and style selection for remote calls.
type Config struct {
	TranscribeModel string
	TextModel       string
	Style           string
}

// Controller owns all transient workflow state: capture sessions, the
// transcript, the email draft and the view affordances. Every error is
// handled here — logged to the status reporter and surfaced through the
// notifier — and never propagates past the HTTP boundary undone.
type Controller struct {
	cfg         Config
	captures    *capture.Manager
	creds       credential.Store
	transcriber openai.Transcriber
	generator   openai.Generator
	reporter    *status.Reporter
	notifier    Notifier
	clip        clipboard.Clipboard
	metrics     *observability.Metrics

	mu                sync.Mutex
	phase             Phase
	style             string
	recordingEnabled  bool
	transcript        Transcript
	email             EmailDraft
	transcriptVisible bool
	emailVisible      bool
}

func NewController(
	cfg Config,
	captures *capture.Manager,
	creds credential.Store,
	transcriber openai.Transcriber,
	generator openai.Generator,
	reporter *status.Reporter,
	notifier Notifier,
	clip clipboard.Clipboard,
	metrics *observability.Metrics,
) *Controller {
	c := &Controller{
		cfg:         cfg,
		captures:    captures,
		creds:       creds,
		transcriber: transcriber,
		generator:   generator,
		reporter:    reporter,
		notifier:    notifier,
		clip:        clip,
		metrics:     metrics,
		phase:       PhaseIdle,
		style:       cfg.Style,
	}

	if _, err := creds.Get(context.Background()); err == nil {
		c.recordingEnabled = true
	}

	captures.SetAutoStopHook(func(role capture.Role) {
		switch role {
		case capture.RolePrimary:
			c.reporter.Append("Recording reached the maximum duration, stopping")
			_ = c.StopRecording(context.Background())
		case capture.RoleTweak:
			c.reporter.Append("Tweak recording reached the maximum duration, stopping")
			_ = c.StopTweak(context.Background())
		}
	})

	return c
}

// Snapshot is the view state rendered by the UI.
type Snapshot struct {
	Phase             Phase      `json:"phase"`
	RecordingEnabled  bool       `json:"recording_enabled"`
	StopEnabled       bool       `json:"stop_enabled"`
	TweakEnabled      bool       `json:"tweak_enabled"`
	TweakStopEnabled  bool       `json:"tweak_stop_enabled"`
	TranscriptVisible bool       `json:"transcript_visible"`
	EmailVisible      bool       `json:"email_visible"`
	Transcript        Transcript `json:"transcript"`
	Email             EmailDraft `json:"email"`
	TranscribeModel   string     `json:"transcribe_model"`
	TextModel         string     `json:"text_model"`
	Style             string     `json:"style"`
	HasCredential     bool       `json:"has_credential"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:             c.phase,
		RecordingEnabled:  c.recordingEnabled && c.phase != PhaseRecording && c.phase != PhaseTweakRecording,
		StopEnabled:       c.phase == PhaseRecording,
		TweakEnabled:      c.recordingEnabled && c.emailVisible && c.phase == PhaseEmailReady,
		TweakStopEnabled:  c.phase == PhaseTweakRecording,
		TranscriptVisible: c.transcriptVisible,
		EmailVisible:      c.emailVisible,
		Transcript:        c.transcript,
		Email:             c.email,
		TranscribeModel:   c.cfg.TranscribeModel,
		TextModel:         c.cfg.TextModel,
		Style:             c.style,
		HasCredential:     c.recordingEnabled,
	}
}

// SaveSecret persists the API credential and enables the recording
// affordance.
func (c *Controller) SaveSecret(ctx context.Context, secret string) error {
	if err := c.creds.Save(ctx, secret); err != nil {
		if errors.Is(err, credential.ErrEmptySecret) {
			c.notifier.Notify(protocol.LevelError, "Please enter an API key")
		} else {
			c.notifier.Notify(protocol.LevelError, "Saving API key failed: "+err.Error())
		}
		return err
	}

	c.mu.Lock()
	c.recordingEnabled = true
	c.mu.Unlock()
	c.notifier.StateChanged()

	c.reporter.Append("API key saved")
	c.notifier.Notify(protocol.LevelInfo, "API key saved")
	return nil
}

// ClearSecret removes the credential and disables recording.
func (c *Controller) ClearSecret(ctx context.Context) error {
	if err := c.creds.Clear(ctx); err != nil {
		c.notifier.Notify(protocol.LevelError, "Clearing API key failed: "+err.Error())
		return err
	}

	c.mu.Lock()
	c.recordingEnabled = false
	c.mu.Unlock()
	c.notifier.StateChanged()

	c.reporter.Append("API key cleared")
	c.notifier.Notify(protocol.LevelInfo, "API key cleared")
	return nil
}

// StartRecording begins a fresh primary cycle: prior transcript and email
// state is cleared before the microphone is acquired.
func (c *Controller) StartRecording(ctx context.Context) error {
	secret, err := c.creds.Get(ctx)
	if err != nil || strings.TrimSpace(secret) == "" {
		c.notifier.Notify(protocol.LevelError, "Please enter and save your OpenAI API key first.")
		return credential.ErrNotFound
	}

	c.reporter.Append("Microphone access requested")
	if _, err := c.captures.Start(ctx, capture.RolePrimary); err != nil {
		if errors.Is(err, capture.ErrPermissionDenied) {
			c.reporter.Append("Microphone permission denied")
			c.notifier.Notify(protocol.LevelError, "Microphone permission is required.")
		} else {
			c.reporter.Append("Recording could not start: " + err.Error())
			c.notifier.Notify(protocol.LevelError, "Recording could not start: "+err.Error())
		}
		return err
	}
	c.reporter.Append("Microphone access granted")

	c.mu.Lock()
	c.phase = PhaseRecording
	c.transcript = Transcript{}
	c.email = EmailDraft{}
	c.transcriptVisible = false
	c.emailVisible = false
	c.style = c.cfg.Style
	c.mu.Unlock()
	c.notifier.StateChanged()

	c.metrics.ActiveCaptures.Inc()
	c.metrics.WorkflowEvents.WithLabelValues("recording_started").Inc()
	c.reporter.Append("Recording started")
	return nil
}

// PushAudio forwards one captured chunk into the active session.
func (c *Controller) PushAudio(role capture.Role, chunk []byte, mime string) error {
	return c.captures.Push(role, chunk, mime)
}

// StopRecording halts the primary capture and runs it through
// transcription. Safe to call again after a stop has completed: the
// capture layer reports the duplicate as a no-op.
func (c *Controller) StopRecording(ctx context.Context) error {
	clip, stopped, closeErr := c.captures.Stop(capture.RolePrimary)
	if !stopped {
		return nil
	}
	if closeErr != nil {
		c.reporter.Append("Releasing microphone stream failed: " + closeErr.Error())
	}

	c.metrics.ActiveCaptures.Dec()
	c.metrics.WorkflowEvents.WithLabelValues("recording_stopped").Inc()

	c.mu.Lock()
	c.phase = PhaseTranscribing
	c.mu.Unlock()
	c.notifier.StateChanged()
	c.reporter.Appendf("Recording stopped after %.1fs", clip.Duration.Seconds())
	c.reporter.Append("Processing recording...")

	result, err := c.transcribe(ctx, clip, "voice.webm")
	if err != nil {
		c.mu.Lock()
		c.phase = PhaseIdle
		c.mu.Unlock()
		c.notifier.StateChanged()
		c.reporter.Append("Transcription failed")
		c.notifier.Notify(protocol.LevelError, "Transcription error: "+userMessage(err))
		return err
	}

	c.mu.Lock()
	c.phase = PhaseTranscriptReady
	c.transcript = Transcript{
		Text:            result.Text,
		DurationMinutes: result.DurationMinutes,
		Model:           c.cfg.TranscribeModel,
	}
	c.transcriptVisible = true
	c.mu.Unlock()
	c.notifier.StateChanged()

	c.reporter.Append("Transcription complete")
	c.logTranscriptionCost(result.DurationMinutes)
	return nil
}

// DiscardTranscript throws the current transcript away for a re-record.
func (c *Controller) DiscardTranscript() {
	c.mu.Lock()
	c.transcript = Transcript{}
	c.transcriptVisible = false
	c.phase = PhaseIdle
	c.mu.Unlock()
	c.notifier.StateChanged()

	c.metrics.WorkflowEvents.WithLabelValues("transcript_discarded").Inc()
	c.reporter.Append("Transcript discarded")
}

// GenerateEmail turns the current transcript into an email draft. A
// non-empty style overrides the configured default and sticks for the
// rest of the cycle, so tweaks re-generate in the same style.
func (c *Controller) GenerateEmail(ctx context.Context, style string) error {
	c.mu.Lock()
	if s := strings.TrimSpace(style); s != "" {
		c.style = s
	}
	transcriptText := strings.TrimSpace(c.transcript.Text)
	c.mu.Unlock()

	if transcriptText == "" {
		c.notifier.Notify(protocol.LevelError, "No transcript present")
		return errors.New("no transcript present")
	}

	secret, err := c.creds.Get(ctx)
	if err != nil {
		c.notifier.Notify(protocol.LevelError, "Please enter and save your OpenAI API key first.")
		return err
	}

	c.mu.Lock()
	c.phase = PhaseGenerating
	activeStyle := c.style
	c.mu.Unlock()
	c.notifier.StateChanged()
	c.reporter.Append("Generating email...")

	prompt := fmt.Sprintf("Style: %s\n\nNotes:\n%s", activeStyle, transcriptText)
	started := time.Now()
	result, err := c.generator.Generate(ctx, openai.GenerateRequest{
		Prompt: prompt,
		Model:  c.cfg.TextModel,
		Secret: secret,
	})
	c.metrics.ObserveRemoteLatency("generation", time.Since(started))
	if err != nil {
		c.countProviderError("generation", err)
		c.mu.Lock()
		c.phase = PhaseTranscriptReady
		c.mu.Unlock()
		c.notifier.StateChanged()
		c.reporter.Append("Generation failed")
		c.notifier.Notify(protocol.LevelError, "Generation error: "+userMessage(err))
		return err
	}

	c.mu.Lock()
	c.phase = PhaseEmailReady
	c.email = EmailDraft{Text: result.Text, TotalTokens: result.TotalTokens, Model: c.cfg.TextModel}
	c.emailVisible = true
	c.mu.Unlock()
	c.notifier.StateChanged()

	c.metrics.WorkflowEvents.WithLabelValues("email_generated").Inc()
	c.reporter.Append("Email generated")
	c.logGenerationCost(result.TotalTokens)
	return nil
}

// StartTweak begins the short revision-instruction capture. A second
// start while one is active fails without acquiring anything.
func (c *Controller) StartTweak(ctx context.Context) error {
	c.mu.Lock()
	hasEmail := c.emailVisible && strings.TrimSpace(c.email.Text) != ""
	c.mu.Unlock()
	if !hasEmail {
		c.notifier.Notify(protocol.LevelError, "Generate an email before recording tweaks")
		return errors.New("no email draft to tweak")
	}

	secret, err := c.creds.Get(ctx)
	if err != nil || strings.TrimSpace(secret) == "" {
		c.notifier.Notify(protocol.LevelError, "Please enter and save your OpenAI API key first.")
		return credential.ErrNotFound
	}

	if _, err := c.captures.Start(ctx, capture.RoleTweak); err != nil {
		switch {
		case errors.Is(err, capture.ErrAlreadyInProgress):
			c.notifier.Notify(protocol.LevelError, "Tweak recording already in progress.")
		case errors.Is(err, capture.ErrPermissionDenied):
			c.reporter.Append("Microphone permission denied")
			c.notifier.Notify(protocol.LevelError, "Microphone permission is required.")
		default:
			c.notifier.Notify(protocol.LevelError, "Tweak recording could not start: "+err.Error())
		}
		return err
	}

	c.mu.Lock()
	c.phase = PhaseTweakRecording
	c.mu.Unlock()
	c.notifier.StateChanged()

	c.metrics.ActiveCaptures.Inc()
	c.metrics.WorkflowEvents.WithLabelValues("tweak_started").Inc()
	c.reporter.Append("Recording tweak instructions (max 2 minutes)...")
	return nil
}

// StopTweak halts the tweak capture, transcribes the instructions and
// re-generates the email. Any failure leaves the prior draft intact.
func (c *Controller) StopTweak(ctx context.Context) error {
	clip, stopped, closeErr := c.captures.Stop(capture.RoleTweak)
	if !stopped {
		return nil
	}
	if closeErr != nil {
		c.reporter.Append("Releasing microphone stream failed: " + closeErr.Error())
	}

	c.metrics.ActiveCaptures.Dec()
	c.metrics.WorkflowEvents.WithLabelValues("tweak_stopped").Inc()

	c.mu.Lock()
	c.phase = PhaseTweakProcessing
	originalTranscript := strings.TrimSpace(c.transcript.Text)
	activeStyle := c.style
	c.mu.Unlock()
	c.notifier.StateChanged()
	c.reporter.Append("Processing tweak instructions...")

	tweak, err := c.transcribe(ctx, clip, "tweak.webm")
	if err != nil {
		c.mu.Lock()
		c.phase = PhaseEmailReady
		c.mu.Unlock()
		c.notifier.StateChanged()
		c.reporter.Append("Tweak transcription failed")
		c.notifier.Notify(protocol.LevelError, "Tweak transcription error: "+userMessage(err))
		return err
	}
	c.logTranscriptionCost(tweak.DurationMinutes)

	secret, getErr := c.creds.Get(ctx)
	if getErr != nil {
		c.mu.Lock()
		c.phase = PhaseEmailReady
		c.mu.Unlock()
		c.notifier.StateChanged()
		c.notifier.Notify(protocol.LevelError, "Please enter and save your OpenAI API key first.")
		return getErr
	}

	prompt := fmt.Sprintf(
		"Style: %s\n\nOriginal Notes:\n%s\n\nTweak Instructions:\n%s",
		activeStyle, originalTranscript, tweak.Text,
	)
	started := time.Now()
	result, err := c.generator.Generate(ctx, openai.GenerateRequest{
		Prompt:   prompt,
		Model:    c.cfg.TextModel,
		Secret:   secret,
		Revision: true,
	})
	c.metrics.ObserveRemoteLatency("generation", time.Since(started))
	if err != nil {
		c.countProviderError("generation", err)
		c.mu.Lock()
		c.phase = PhaseEmailReady
		c.mu.Unlock()
		c.notifier.StateChanged()
		c.reporter.Append("Tweak generation failed")
		c.notifier.Notify(protocol.LevelError, "Generation error: "+userMessage(err))
		return err
	}

	c.mu.Lock()
	c.phase = PhaseEmailReady
	c.email = EmailDraft{Text: result.Text, TotalTokens: result.TotalTokens, Model: c.cfg.TextModel}
	c.emailVisible = true
	c.mu.Unlock()
	c.notifier.StateChanged()

	c.metrics.WorkflowEvents.WithLabelValues("email_tweaked").Inc()
	c.reporter.Append("Email updated with tweaks")
	c.logGenerationCost(result.TotalTokens)
	return nil
}

// CopyTranscript writes the normalized transcript to the clipboard.
func (c *Controller) CopyTranscript(ctx context.Context) error {
	c.mu.Lock()
	text := c.transcript.Text
	c.mu.Unlock()
	return c.copyText(ctx, text, "Transcript")
}

// CopyEmail writes the normalized email draft to the clipboard.
func (c *Controller) CopyEmail(ctx context.Context) error {
	c.mu.Lock()
	text := c.email.Text
	c.mu.Unlock()
	return c.copyText(ctx, text, "Email")
}

func (c *Controller) copyText(ctx context.Context, text, label string) error {
	if err := c.clip.WriteText(ctx, NormalizeForClipboard(text)); err != nil {
		c.notifier.Notify(protocol.LevelError, "Copy failed: "+err.Error())
		return err
	}
	c.notifier.Notify(protocol.LevelInfo, label+" copied to clipboard")
	return nil
}

func (c *Controller) transcribe(ctx context.Context, clip capture.Clip, filename string) (openai.TranscribeResult, error) {
	secret, err := c.creds.Get(ctx)
	if err != nil {
		return openai.TranscribeResult{}, err
	}

	started := time.Now()
	result, err := c.transcriber.Transcribe(ctx, openai.TranscribeRequest{
		Audio:           clip.Data,
		Filename:        filename,
		Model:           c.cfg.TranscribeModel,
		Secret:          secret,
		DurationMinutes: clip.Duration.Minutes(),
	})
	c.metrics.ObserveRemoteLatency("transcription", time.Since(started))
	if err != nil {
		c.countProviderError("transcription", err)
		return openai.TranscribeResult{}, err
	}
	return result, nil
}

func (c *Controller) logTranscriptionCost(durationMinutes float64) {
	cost, ok := openai.TranscriptionCost(c.cfg.TranscribeModel, durationMinutes)
	if !ok {
		return
	}
	c.metrics.EstimatedCost.WithLabelValues("transcription").Add(cost)
	c.reporter.Appendf("Estimated transcription cost: $%.4f (%s, %.1f min)", cost, c.cfg.TranscribeModel, durationMinutes)
}

func (c *Controller) logGenerationCost(totalTokens int) {
	cost, ok := openai.GenerationCost(c.cfg.TextModel, totalTokens)
	if !ok {
		return
	}
	c.metrics.EstimatedCost.WithLabelValues("generation").Add(cost)
	c.reporter.Appendf("Estimated generation cost: $%.4f (%s, %d tokens)", cost, c.cfg.TextModel, totalTokens)
}

func (c *Controller) countProviderError(stage string, err error) {
	kind := "other"
	var remote *openai.RemoteError
	var network *openai.NetworkError
	switch {
	case errors.As(err, &remote):
		kind = "remote"
	case errors.As(err, &network):
		kind = "network"
	}
	c.metrics.ProviderErrors.WithLabelValues(stage, kind).Inc()
}

// userMessage extracts the human-readable part of a remote failure.
func userMessage(err error) string {
	var remote *openai.RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	return err.Error()
}

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// NormalizeForClipboard collapses runs of blank lines to single line
// breaks and trims surrounding whitespace.
func NormalizeForClipboard(text string) string {
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n"))
}
