package runner

import (
	"bytes"
	"sync"
)

// streamWriter buffers output while forwarding each chunk to an optional
// callback, so callers see long-running commands progress instead of a
// single blob at completion.
type streamWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	onChunk func([]byte)
}

func newStreamWriter(onChunk func([]byte)) *streamWriter {
	return &streamWriter{onChunk: onChunk}
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf.Write(p)
	w.mu.Unlock()

	if w.onChunk != nil {
		// Hand the callback its own copy; the writer's buffer may be reused.
		chunk := make([]byte, len(p))
		copy(chunk, p)
		w.onChunk(chunk)
	}
	return len(p), nil
}

func (w *streamWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
