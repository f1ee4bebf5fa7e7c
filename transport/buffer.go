package transport

import (
	iolib "browser-core/lib/io"
	"io"

	"github.com/pkg/errors"
)

// WriteBuffer queues outgoing bytes and flushes them, resuming short writes.
type WriteBuffer struct {
	w    io.Writer
	data []byte

	// OnProgress is called after every write that moved bytes.
	OnProgress func(n int)
}

func NewWriteBuffer(w io.Writer) *WriteBuffer {
	return &WriteBuffer{w: w}
}

func (wb *WriteBuffer) Enqueue(p []byte) {
	wb.data = append(wb.data, p...)
}

func (wb *WriteBuffer) Pending() int { return len(wb.data) }

// Flush writes everything queued and calls done once the queue is empty.
// On error the unwritten bytes stay queued.
func (wb *WriteBuffer) Flush(done func()) error {
	n, err := iolib.WriteFull(wb.w, wb.data, wb.OnProgress)
	wb.data = wb.data[n:]
	if err != nil {
		return errors.Wrap(MapError(err), "writing buffered data")
	}

	wb.data = nil
	if done != nil {
		done()
	}
	return nil
}

const (
	minReadSize        = 4096
	DefaultReadPerCall = 64 * 1024
)

// ReadBuffer accumulates incoming bytes. Its storage grows geometrically and one
// ReadMore call consumes at most PerCall bytes before handing control back.
type ReadBuffer struct {
	r    io.Reader
	data []byte
	eof  bool

	PerCall int

	// OnProgress is called after every read that moved bytes.
	OnProgress func(n int)
}

var _ io.Reader = (*ReadBuffer)(nil)

func NewReadBuffer(r io.Reader) *ReadBuffer {
	return &ReadBuffer{r: r, PerCall: DefaultReadPerCall}
}

func (rb *ReadBuffer) Bytes() []byte { return rb.data }
func (rb *ReadBuffer) Len() int      { return len(rb.data) }
func (rb *ReadBuffer) EOF() bool     { return rb.eof }

// Consume drops n bytes from the front.
func (rb *ReadBuffer) Consume(n int) {
	if n >= len(rb.data) {
		rb.data = rb.data[:0]
		return
	}
	rb.data = rb.data[:copy(rb.data, rb.data[n:])]
}

func (rb *ReadBuffer) grow() {
	if cap(rb.data)-len(rb.data) >= minReadSize {
		return
	}

	newCap := max(2*cap(rb.data), len(rb.data)+minReadSize)
	grown := make([]byte, len(rb.data), newCap)
	copy(grown, rb.data)
	rb.data = grown
}

// ReadMore reads from the stream, calling onChunk after each read, until onChunk
// reports done, the stream ends or PerCall bytes were read in this call.
// It returns done=false only when the per-call limit cut it short.
// The end of the stream is reported to onChunk through EOF before io.EOF is returned.
func (rb *ReadBuffer) ReadMore(onChunk func(rb *ReadBuffer) (done bool, err error)) (done bool, err error) {
	read := 0
	for {
		if rb.eof {
			if done, err := onChunk(rb); done || err != nil {
				return done, err
			}
			return true, io.EOF
		}

		rb.grow()
		n, err := rb.r.Read(rb.data[len(rb.data):cap(rb.data)])
		if n > 0 {
			rb.data = rb.data[:len(rb.data)+n]
			read += n
			if rb.OnProgress != nil {
				rb.OnProgress(n)
			}
		}

		if err != nil {
			if !endOfStream(err) {
				return false, errors.Wrap(MapError(err), "reading into buffer")
			}
			rb.eof = true
			continue
		}

		if n == 0 {
			continue
		}

		if done, err := onChunk(rb); done || err != nil {
			return done, err
		}

		if rb.PerCall > 0 && read >= rb.PerCall {
			return false, nil
		}
	}
}

// Read drains buffered bytes first, then reads the stream directly.
func (rb *ReadBuffer) Read(p []byte) (int, error) {
	if len(rb.data) > 0 {
		n := copy(p, rb.data)
		rb.Consume(n)
		return n, nil
	}
	if rb.eof {
		return 0, io.EOF
	}

	n, err := rb.r.Read(p)
	if n > 0 && rb.OnProgress != nil {
		rb.OnProgress(n)
	}
	if err != nil {
		if endOfStream(err) {
			rb.eof = true
			return n, io.EOF
		}
		return n, errors.Wrap(MapError(err), "reading stream")
	}
	return n, nil
}

// endOfStream reports a read error that only means no more data comes,
// including a read on a connection closed locally.
func endOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(MapError(err), ErrConnClosed)
}
