package clipboard

import (
	"context"
	"sync"
)

// Clipboard abstracts the platform clipboard write.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Buffer is the service-side clipboard: the UI reads the last written
// text back over HTTP and hands it to the platform clipboard.
type Buffer struct {
	mu   sync.Mutex
	text string
	set  bool
}

func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) WriteText(_ context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	b.set = true
	return nil
}

// Read returns the last written text and whether anything has been
// written yet.
func (b *Buffer) Read() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text, b.set
}
