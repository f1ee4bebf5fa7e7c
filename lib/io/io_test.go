package iolib

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// trickleWriter accepts at most max bytes per call and fails after limit bytes.
type trickleWriter struct {
	bytes.Buffer
	max, limit int
}

func (tw *trickleWriter) Write(p []byte) (int, error) {
	if tw.Len() >= tw.limit {
		return 0, io.ErrClosedPipe
	}
	p = p[:min(len(p), tw.max, tw.limit-tw.Len())]
	return tw.Buffer.Write(p)
}

func TestWriteFull(t *testing.T) {
	data := []byte("Hello, World!")
	tw := &trickleWriter{max: 5, limit: 100}

	var writes []int
	written, err := WriteFull(tw, data, func(n int) { writes = append(writes, n) })
	assert.NoError(t, err)
	assert.Equal(t, len(data), written)
	assert.Equal(t, data, tw.Bytes())
	assert.Equal(t, []int{5, 5, 3}, writes)
}

func TestWriteFullError(t *testing.T) {
	tw := &trickleWriter{max: 4, limit: 6}

	written, err := WriteFull(tw, []byte("Hello, World!"), nil)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, 6, written)
	assert.Equal(t, "Hello,", tw.String())
}

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

func TestWriteFullNoProgress(t *testing.T) {
	written, err := WriteFull(stuckWriter{}, []byte("x"), nil)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Zero(t, written)
}
