package trace

import (
	"bufio"
	"context"
	"io"
	"sync"

	linbus "github.com/notnil/linbus"
)

// Writer appends trace lines to an underlying writer. It is safe for
// concurrent use.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write buffers one line for m.
func (w *Writer) Write(m linbus.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.WriteString(FormatLine(m)); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush writes buffered lines through.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Flush()
}

// Record writes every message of msgs to w until ctx is done or msgs is
// closed, flushing after each line so the trace can be followed live.
func Record(ctx context.Context, msgs <-chan linbus.Message, w io.Writer) error {
	tw := NewWriter(w)
	defer tw.Flush()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := tw.Write(m); err != nil {
				return err
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
	}
}
