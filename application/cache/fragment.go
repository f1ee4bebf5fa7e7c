package cache

import "bytes"

// PageSize is the allocation granularity of fragment buffers.
const PageSize = 4096

// Fragment is a contiguous byte range of an entry.
// Its buffer is over-allocated to a page boundary so sequential appends grow it in place.
type Fragment struct {
	Offset int64
	data   []byte
}

func newFragment(off int64) *Fragment {
	return &Fragment{Offset: off}
}

func (f *Fragment) Len() int64 { return int64(len(f.data)) }
func (f *Fragment) End() int64 { return f.Offset + f.Len() }

// Cap is the allocated capacity, always a multiple of [PageSize] unless the fragment was finalized.
func (f *Fragment) Cap() int64 { return int64(cap(f.data)) }

func (f *Fragment) Bytes() []byte { return f.data }

// grow extends the fragment to n bytes. It reallocates only when n exceeds the capacity.
func (f *Fragment) grow(n int64) {
	if n <= f.Cap() {
		f.data = f.data[:n]
		return
	}

	data := make([]byte, n, roundPage(n))
	copy(data, f.data)
	f.data = data
}

// shorten keeps the first n bytes. clip releases the unused capacity.
func (f *Fragment) shorten(n int64, clip bool) {
	f.data = f.data[:n]
	if clip {
		f.data = exact(f.data)
	}
}

// dropFront discards the bytes before off.
func (f *Fragment) dropFront(off int64) {
	f.data = exact(f.data[off-f.Offset:])
	f.Offset = off
}

func exact(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (f *Fragment) clone() Fragment {
	return Fragment{Offset: f.Offset, data: bytes.Clone(f.data)}
}

func roundPage(n int64) int64 {
	return (n + PageSize - 1) / PageSize * PageSize
}
