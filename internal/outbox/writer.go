package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// Writer prints documents to an io.Writer, one per line, defaulting to
// os.Stdout. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	// w is the output destination.
	w      io.Writer
	pretty bool
}

// NewWriter creates a Writer that writes to os.Stdout.
func NewWriter(pretty bool) *Writer {
	return &Writer{w: os.Stdout, pretty: pretty}
}

// NewWriterTo creates a Writer that writes to the given writer.
// This is useful for testing.
func NewWriterTo(w io.Writer, pretty bool) *Writer {
	return &Writer{w: w, pretty: pretty}
}

// Put writes the document followed by a newline. The key is not written;
// documents appear in the order they are put.
func (o *Writer) Put(_ context.Context, key string, doc []byte) error {
	var buf bytes.Buffer
	if o.pretty {
		if err := json.Indent(&buf, doc, "", "  "); err != nil {
			return NewError(o.Name(), key, ReasonIO, err)
		}
	} else if err := json.Compact(&buf, doc); err != nil {
		return NewError(o.Name(), key, ReasonIO, err)
	}
	buf.WriteByte('\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.w.Write(buf.Bytes()); err != nil {
		return NewError(o.Name(), key, ReasonIO, err)
	}
	return nil
}

// Name returns the outbox name.
func (o *Writer) Name() string {
	return "stdout"
}
