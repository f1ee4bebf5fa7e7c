package content

import (
	"browser-core/application/http/transfer"
	"io"

	"github.com/klauspost/compress/gzip"
)

// TransferDecoders undo gzip and deflate applied as transfer codings.
func TransferDecoders() []transfer.Decoder {
	return []transfer.Decoder{gzipCoder{}, deflateCoder{}}
}

type gzipCoder struct{}

func (gzipCoder) Coding() transfer.Coding { return transfer.CodingGzip }

func (gzipCoder) NewReader(r io.Reader) io.Reader {
	return &lazyReader{open: func() (io.ReadCloser, error) { return gzip.NewReader(r) }}
}

type deflateCoder struct{}

func (deflateCoder) Coding() transfer.Coding { return transfer.CodingDeflate }

func (deflateCoder) NewReader(r io.Reader) io.Reader {
	return &lazyReader{open: func() (io.ReadCloser, error) { return newDeflateReader(r) }}
}

// lazyReader defers reading the stream header to the first Read,
// since [transfer.Decoder] cannot report an error on construction.
type lazyReader struct {
	open func() (io.ReadCloser, error)
	r    io.ReadCloser
	err  error
}

func (lr *lazyReader) Read(p []byte) (int, error) {
	if lr.r == nil && lr.err == nil {
		lr.r, lr.err = lr.open()
	}
	if lr.err != nil {
		return 0, lr.err
	}

	n, err := lr.r.Read(p)
	if err == io.EOF {
		lr.r.Close()
	}
	return n, err
}
