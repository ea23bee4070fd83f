package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/voicedraft/voicedraft/internal/capture"
	"github.com/voicedraft/voicedraft/internal/clipboard"
	"github.com/voicedraft/voicedraft/internal/config"
	"github.com/voicedraft/voicedraft/internal/credential"
	"github.com/voicedraft/voicedraft/internal/observability"
	"github.com/voicedraft/voicedraft/internal/openai"
	"github.com/voicedraft/voicedraft/internal/protocol"
	"github.com/voicedraft/voicedraft/internal/status"
	"github.com/voicedraft/voicedraft/internal/workflow"
)

const maxChunkBytes = 4 << 20

type Server struct {
	cfg        config.Config
	controller *workflow.Controller
	reporter   *status.Reporter
	hub        *Hub
	clip       *clipboard.Buffer
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, controller *workflow.Controller, reporter *status.Reporter, hub *Hub, clip *clipboard.Buffer) *Server {
	return &Server{
		cfg:        cfg,
		controller: controller,
		reporter:   reporter,
		hub:        hub,
		clip:       clip,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser clients may watch the event
				// stream unless explicitly relaxed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/credential", s.handleSaveCredential)
	r.Delete("/v1/credential", s.handleClearCredential)

	r.Get("/v1/state", s.handleState)
	r.Get("/v1/status", s.handleStatusLog)
	r.Get("/v1/events", s.handleEvents)

	r.Post("/v1/record/start", s.handleRecordStart)
	r.Post("/v1/record/chunk", s.handleChunk(capture.RolePrimary))
	r.Post("/v1/record/stop", s.handleRecordStop)

	r.Post("/v1/transcript/discard", s.handleDiscardTranscript)
	r.Post("/v1/transcript/copy", s.handleCopyTranscript)
	r.Post("/v1/email/generate", s.handleGenerateEmail)
	r.Post("/v1/email/copy", s.handleCopyEmail)
	r.Get("/v1/clipboard", s.handleClipboard)

	r.Post("/v1/tweak/start", s.handleTweakStart)
	r.Post("/v1/tweak/chunk", s.handleChunk(capture.RoleTweak))
	r.Post("/v1/tweak/stop", s.handleTweakStop)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type credentialRequest struct {
	Secret string `json:"secret"`
}

func (s *Server) handleSaveCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.controller.SaveSecret(r.Context(), req.Secret); err != nil {
		if errors.Is(err, credential.ErrEmptySecret) {
			respondError(w, http.StatusBadRequest, "empty_secret", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	s.stateChanged(w)
}

func (s *Server) handleClearCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.ClearSecret(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "clear_failed", err.Error())
		return
	}
	s.stateChanged(w)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleStatusLog(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"entries": s.reporter.Entries()})
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StartRecording(r.Context()); err != nil {
		respondWorkflowError(w, err)
		return
	}
	s.stateChanged(w)
}

func (s *Server) handleChunk(role capture.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChunkBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, http.StatusRequestEntityTooLarge, "chunk_too_large", err.Error())
				return
			}
			respondError(w, http.StatusBadRequest, "read_failed", err.Error())
			return
		}
		if err := s.controller.PushAudio(role, data, r.Header.Get("Content-Type")); err != nil {
			respondError(w, http.StatusConflict, "not_recording", err.Error())
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StopRecording(r.Context()); err != nil {
		respondWorkflowError(w, err)
		return
	}
	s.stateChanged(w)
}

func (s *Server) handleDiscardTranscript(w http.ResponseWriter, _ *http.Request) {
	s.controller.DiscardTranscript()
	s.stateChanged(w)
}

type generateRequest struct {
	Style string `json:"style"`
}

func (s *Server) handleGenerateEmail(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	// The body is optional; an absent or empty style keeps the default.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := s.controller.GenerateEmail(r.Context(), req.Style); err != nil {
		respondWorkflowError(w, err)
		return
	}
	s.stateChanged(w)
}

func (s *Server) handleCopyTranscript(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.CopyTranscript(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "copy_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCopyEmail(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.CopyEmail(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "copy_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClipboard(w http.ResponseWriter, _ *http.Request) {
	text, ok := s.clip.Read()
	respondJSON(w, http.StatusOK, map[string]any{"text": text, "set": ok})
}

func (s *Server) handleTweakStart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StartTweak(r.Context()); err != nil {
		respondWorkflowError(w, err)
		return
	}
	s.stateChanged(w)
}

func (s *Server) handleTweakStop(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StopTweak(r.Context()); err != nil {
		respondWorkflowError(w, err)
		return
	}
	s.stateChanged(w)
}

// handleEvents streams status entries and notifications to the UI over a
// websocket.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	statusCh, cancelStatus := s.reporter.Subscribe()
	defer cancelStatus()
	notifyCh, cancelNotify := s.hub.Subscribe()
	defer cancelNotify()

	// Reads are discarded; the stream is one-way. The read loop exists to
	// detect the peer closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case entry, ok := <-statusCh:
			if !ok {
				return
			}
			evt := protocol.StatusEntryEvent{
				Type:      protocol.TypeStatusEntry,
				ID:        entry.ID,
				Message:   entry.Message,
				CreatedAt: entry.CreatedAt,
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case evt, ok := <-notifyCh:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}

func (s *Server) stateChanged(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

// respondWorkflowError maps controller failures onto HTTP statuses. The
// user-facing handling (status log, notification) has already happened
// inside the controller.
func respondWorkflowError(w http.ResponseWriter, err error) {
	var remote *openai.RemoteError
	var network *openai.NetworkError
	switch {
	case errors.Is(err, capture.ErrAlreadyInProgress):
		respondError(w, http.StatusConflict, "already_in_progress", err.Error())
	case errors.Is(err, capture.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, credential.ErrNotFound):
		respondError(w, http.StatusPreconditionFailed, "credential_missing", err.Error())
	case errors.As(err, &remote):
		respondError(w, http.StatusBadGateway, "remote_error", remote.Message)
	case errors.As(err, &network):
		respondError(w, http.StatusBadGateway, "network_error", err.Error())
	default:
		respondError(w, http.StatusBadRequest, "workflow_error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, map[string]string{"code": code, "detail": detail})
}
