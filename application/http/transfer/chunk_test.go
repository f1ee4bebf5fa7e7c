package transfer

import (
	"browser-core/application/http"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkedReader(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		expected string
		trailer  http.Header
	}{
		{
			desc:     "single chunk",
			input:    "5\r\nhello\r\n0\r\n\r\n",
			expected: "hello",
		},
		{
			desc:     "several chunks",
			input:    "3\r\nfoo\r\n3\r\nbar\r\n1\r\n!\r\n0\r\n\r\n",
			expected: "foobar!",
		},
		{
			desc:     "upper and lower case hex",
			input:    "A\r\n0123456789\r\nb\r\nabcdefghijk\r\n0\r\n\r\n",
			expected: "0123456789abcdefghijk",
		},
		{
			desc:     "extensions are skipped",
			input:    "4;name=\"quoted;value\"\r\nbody\r\n0;last\r\n\r\n",
			expected: "body",
		},
		{
			desc:     "bare LF terminators",
			input:    "2\nok\n0\n\n",
			expected: "ok",
		},
		{
			desc:     "whitespace around size",
			input:    " 2 \r\nok\r\n0\r\n\r\n",
			expected: "ok",
		},
		{
			desc:     "trailer fields",
			input:    "2\r\nok\r\n0\r\nExpires: 0\r\nbroken trailer\r\nX-Checksum: abc\r\n\r\n",
			expected: "ok",
			trailer:  http.Header{http.NewField("Expires", "0"), http.NewField("X-Checksum", "abc")},
		},
		{
			desc:  "empty body",
			input: "0\r\n\r\n",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			// One byte at a time exercises every state boundary.
			cr := NewChunkedReader(iotest.OneByteReader(strings.NewReader(tc.input)))

			out, err := io.ReadAll(cr)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(out))
			assert.Equal(t, tc.trailer, cr.Trailer())
		})
	}
}

func TestChunkedReaderErrors(t *testing.T) {
	testcases := []struct {
		desc    string
		input   string
		wantErr error
	}{
		{desc: "size is not hex", input: "zz\r\n", wantErr: ErrMalformedChunk},
		{desc: "empty size", input: "\r\nabc", wantErr: ErrMalformedChunk},
		{desc: "negative size", input: "-1\r\n", wantErr: ErrMalformedChunk},
		{desc: "size overflows", input: "8000000000000000\r\n", wantErr: ErrMalformedChunk},
		{desc: "data longer than size", input: "2\r\nabc\r\n0\r\n\r\n", wantErr: ErrMalformedChunk},
		{desc: "size line too long", input: strings.Repeat("0", maxChunkLineLength+1) + "1\r\n", wantErr: ErrMalformedChunk},
		{desc: "ends inside data", input: "5\r\nhel", wantErr: io.ErrUnexpectedEOF},
		{desc: "ends before terminator", input: "2\r\nok", wantErr: io.ErrUnexpectedEOF},
		{desc: "ends before last chunk", input: "2\r\nok\r\n", wantErr: io.ErrUnexpectedEOF},
		{desc: "ends inside trailer", input: "0\r\nExpires: 0\r\n", wantErr: io.ErrUnexpectedEOF},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			cr := NewChunkedReader(strings.NewReader(tc.input))

			_, err := io.ReadAll(cr)
			assert.ErrorIs(t, err, tc.wantErr)

			// The error sticks.
			_, again := cr.Read(make([]byte, 8))
			assert.ErrorIs(t, again, tc.wantErr)
		})
	}
}

func TestChunkedReaderLeavesFollowingBytes(t *testing.T) {
	src := strings.NewReader("2\r\nok\r\n0\r\n\r\nHTTP/1.1 200 OK\r\n")
	cr := NewChunkedReader(src)

	out, err := io.ReadAll(cr)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))

	// The reader stops at the end of the body; what follows stays readable
	// through the same buffered source.
	rest, err := io.ReadAll(cr.r)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", string(rest))
}
