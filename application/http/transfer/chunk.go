package transfer

import (
	"browser-core/application/http"
	"browser-core/application/util/rule"
	iolib "browser-core/lib/io"
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

var ErrMalformedChunk = errors.New("malformed chunked framing")

// maxChunkLineLength bounds a chunk size line including its extensions.
const maxChunkLineLength = 4096

type chunkedDecoder struct{}

func (chunkedDecoder) Coding() Coding { return CodingChunked }

func (chunkedDecoder) NewReader(r io.Reader) io.Reader { return NewChunkedReader(r) }

type chunkState uint8

const (
	stateSize chunkState = iota
	stateData
	stateDataEnd
	stateTrailer
	stateDone
)

// ChunkedReader reads the payload of a chunked body. Chunk extensions are
// skipped; trailer fields are kept for [ChunkedReader.Trailer].
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1
type ChunkedReader struct {
	r       *iolib.UntilReader
	state   chunkState
	remain  uint64
	trailer http.Header
	err     error
}

func NewChunkedReader(r io.Reader) *ChunkedReader {
	ur, ok := r.(*iolib.UntilReader)
	if !ok {
		ur = iolib.NewUntilReader(r)
	}
	return &ChunkedReader{r: ur}
}

// Trailer returns the trailer fields once Read has reported io.EOF.
func (cr *ChunkedReader) Trailer() http.Header { return cr.trailer }

func (cr *ChunkedReader) Read(p []byte) (int, error) {
	for cr.err == nil {
		switch cr.state {
		case stateSize:
			cr.err = cr.readSize()

		case stateData:
			if len(p) == 0 {
				return 0, nil
			}
			if uint64(len(p)) > cr.remain {
				p = p[:cr.remain]
			}

			n, err := cr.r.Read(p)
			cr.remain -= uint64(n)
			if cr.remain == 0 {
				cr.state = stateDataEnd
			}
			if err != nil && (cr.remain > 0 || !errors.Is(err, io.EOF)) {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				cr.err = errors.Wrap(err, "reading chunk data")
			}
			if n > 0 {
				return n, nil
			}

		case stateDataEnd:
			line, err := cr.line()
			switch {
			case err != nil:
				cr.err = err
			case len(line) != 0:
				cr.err = errors.Wrap(ErrMalformedChunk, "chunk data not followed by CRLF")
			default:
				cr.state = stateSize
			}

		case stateTrailer:
			cr.err = cr.readTrailer()

		case stateDone:
			return 0, io.EOF
		}
	}
	return 0, cr.err
}

func (cr *ChunkedReader) readSize() error {
	line, err := cr.line()
	if err != nil {
		return err
	}

	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimFunc(line, rule.IsWhitespace)

	size, err := strconv.ParseUint(string(line), 16, 63)
	if err != nil {
		return errors.Wrapf(ErrMalformedChunk, "chunk size %q", line)
	}

	if size == 0 {
		cr.state = stateTrailer
	} else {
		cr.remain, cr.state = size, stateData
	}
	return nil
}

// readTrailer reads up to the blank line ending the body. Malformed trailer
// lines are dropped.
func (cr *ChunkedReader) readTrailer() error {
	for {
		line, err := cr.line()
		if err != nil {
			return errors.Wrap(err, "reading trailer")
		}
		if len(line) == 0 {
			cr.state = stateDone
			return nil
		}

		if field, err := http.ParseField(line); err == nil {
			cr.trailer = append(cr.trailer, field)
		}
	}
}

// line reads up to LF and cuts the terminator. The CR before it is optional.
func (cr *ChunkedReader) line() ([]byte, error) {
	b, err := cr.r.ReadUntilLimit([]byte{rule.LF}, maxChunkLineLength)
	switch {
	case errors.Is(err, iolib.ErrLimitExceeded):
		return nil, errors.Wrap(ErrMalformedChunk, "line too long")
	case errors.Is(err, io.EOF):
		return nil, io.ErrUnexpectedEOF
	case err != nil:
		return nil, err
	}

	return bytes.TrimSuffix(b[:len(b)-1], []byte{rule.CR}), nil
}
