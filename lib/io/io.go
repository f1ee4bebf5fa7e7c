// Package iolib holds the stream helpers the protocol codecs share.
package iolib

import "io"

// WriteFull writes all of buf, reporting every partial write to progress when
// it is not nil. A writer that makes no progress without an error gets
// [io.ErrShortWrite].
func WriteFull(w io.Writer, buf []byte, progress func(n int)) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if n > 0 && progress != nil {
			progress(n)
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
