package httpapi

import (
	"sync"

	"github.com/google/uuid"

	"github.com/voicedraft/voicedraft/internal/protocol"
)

// Hub fans workflow events out to connected websocket clients: blocking
// notifications (rendered as modals) and state-update pings telling the
// UI to refresh its affordances from the snapshot endpoint.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan any
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan any)}
}

// Notify implements workflow.Notifier.
func (h *Hub) Notify(level, message string) {
	h.broadcast(protocol.NotificationEvent{
		Type:    protocol.TypeNotification,
		Level:   level,
		Message: message,
	})
}

// StateChanged implements workflow.Notifier. It matters most for
// timer-driven transitions, where no HTTP response carries the new
// snapshot back to the client.
func (h *Hub) StateChanged() {
	h.broadcast(protocol.StateUpdateEvent{Type: protocol.TypeStateUpdate})
}

func (h *Hub) broadcast(evt any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *Hub) Subscribe() (<-chan any, func()) {
	id := uuid.NewString()
	ch := make(chan any, 16)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
