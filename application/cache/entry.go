package cache

import (
	"bytes"
	"container/list"
	"io"
	"math"
	"slices"
	"sort"

	"github.com/pkg/errors"
)

var ErrLargeFile = errors.New("file too large")

// Entry holds what is known about one URL: response metadata and the received byte ranges.
//
// Fragments are kept in ascending offset order and never overlap or abut.
type Entry struct {
	c    *Cache
	url  string
	elem *list.Element

	head         string
	code         int
	redirect     string
	redirectGet  bool
	lastModified string

	frags      []*Fragment
	size       int64
	length     int64
	maxLength  int64
	incomplete bool

	refcount int
	inUse    int
	deleted  bool

	version    uint64
	generation uint64

	derived        []byte
	derivedVersion uint64
}

func newEntry(c *Cache, url string) *Entry {
	return &Entry{
		c:          c,
		url:        url,
		maxLength:  -1,
		incomplete: true,
	}
}

func (e *Entry) URL() string { return e.url }

// AddFragment writes data at off.
//
// Bytes that overlap stored data are compared first: when they differ the source changed,
// so everything after the written range is dropped. Ranges that overlap or abut after
// the write are merged. changed is false when the write added nothing new.
func (e *Entry) AddFragment(off int64, data []byte) (changed bool, err error) {
	if len(data) == 0 {
		return false, nil
	}
	if off < 0 || int64(len(data)) > math.MaxInt64-off {
		return false, errors.Wrapf(ErrLargeFile, "offset %d, length %d", off, len(data))
	}

	end := off + int64(len(data))

	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	sizeBefore := e.size
	if end > e.length {
		e.length = end
	}

	idx := sort.Search(len(e.frags), func(i int) bool { return e.frags[i].End() >= off })

	var f *Fragment
	if idx < len(e.frags) && e.frags[idx].Offset <= off {
		f = e.frags[idx]
	} else {
		f = newFragment(off)
		e.frags = slices.Insert(e.frags, idx, f)
	}

	diverged := false

	rel := off - f.Offset
	if overlap := min(f.End(), end) - off; overlap > 0 {
		if !bytes.Equal(f.data[rel:rel+overlap], data[:overlap]) {
			diverged = true
		}
	}

	if end > f.End() {
		oldLen := f.Len()
		f.grow(end - f.Offset)
		e.account(f.Len() - oldLen)
		changed = true
	}
	copy(f.data[rel:], data)

	// Merge what follows into f.
	for idx+1 < len(e.frags) {
		next := e.frags[idx+1]
		if next.Offset > f.End() {
			break
		}

		lo, hi := max(next.Offset, off), min(next.End(), end)
		if hi > lo && !bytes.Equal(next.data[lo-next.Offset:hi-next.Offset], data[lo-off:hi-off]) {
			diverged = true
		}

		if next.End() > f.End() {
			oldEnd := f.End()
			tail := next.data[oldEnd-next.Offset:]
			f.grow(next.End() - f.Offset)
			copy(f.data[oldEnd-f.Offset:], tail)
			e.account(int64(len(tail)))
		}

		e.account(-next.Len())
		e.frags = slices.Delete(e.frags, idx+1, idx+2)
		changed = true
	}

	if diverged {
		changed = true
		e.truncate(end, false)
	}

	if changed {
		e.bump()
	}

	if e.size > sizeBefore {
		e.c.shrink(ShrinkNormal, e)
	}

	return changed, nil
}

// Truncate drops every byte at or after off. final also releases unused fragment capacity,
// which a producer does once the entry's true length is known.
func (e *Entry) Truncate(off int64, final bool) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	if e.truncate(off, final) {
		e.bump()
	}
}

func (e *Entry) truncate(off int64, final bool) (changed bool) {
	if off < 0 {
		off = 0
	}

	if e.length > off {
		e.length = off
		e.incomplete = true
		changed = true
	}

	for i, f := range e.frags {
		if f.Offset >= off {
			for _, dropped := range e.frags[i:] {
				e.account(-dropped.Len())
			}
			e.frags = e.frags[:i]
			e.generation++
			return true
		}

		if f.End() > off {
			e.account(-(f.End() - off))
			f.shorten(off-f.Offset, final)
			e.generation++
			changed = true
		} else if final && i == len(e.frags)-1 {
			f.shorten(f.Len(), true)
		}
	}

	return changed
}

// FreeUpTo drops every byte before off. Streaming consumers use it to bound memory.
func (e *Entry) FreeUpTo(off int64) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	changed := false
	for len(e.frags) > 0 {
		f := e.frags[0]
		if f.Offset >= off {
			break
		}

		if f.End() <= off {
			e.account(-f.Len())
			e.frags = e.frags[1:]
		} else {
			e.account(-(off - f.Offset))
			f.dropFront(off)
		}
		changed = true
	}

	if changed {
		e.generation++
		e.bump()
	}
}

// ReadAt copies stored bytes starting at off. It stops at the first gap.
func (e *Entry) ReadAt(p []byte, off int64) (int, error) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	idx := sort.Search(len(e.frags), func(i int) bool { return e.frags[i].End() > off })
	if idx == len(e.frags) || e.frags[idx].Offset > off {
		return 0, io.EOF
	}

	f := e.frags[idx]
	n := copy(p, f.data[off-f.Offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns a copy of the data contiguous from offset zero.
func (e *Entry) Bytes() []byte {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	if len(e.frags) == 0 || e.frags[0].Offset != 0 {
		return nil
	}
	return bytes.Clone(e.frags[0].data)
}

// Fragments returns a snapshot of the stored ranges.
func (e *Entry) Fragments() []Fragment {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	out := make([]Fragment, len(e.frags))
	for i, f := range e.frags {
		out[i] = f.clone()
	}
	return out
}

// Lock pins the entry against eviction.
func (e *Entry) Lock() {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	if e.deleted {
		panic("cache: locking deleted entry " + e.url)
	}
	e.refcount++
}

func (e *Entry) Unlock() {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	if e.refcount <= 0 {
		panic("cache: unlocking entry that is not locked " + e.url)
	}
	e.refcount--
}

// Use marks a pending read. Entries in use keep their derived data.
func (e *Entry) Use() {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	e.inUse++
}

func (e *Entry) Release() {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	if e.inUse <= 0 {
		panic("cache: releasing entry that is not in use " + e.url)
	}
	e.inUse--
}

func (e *Entry) Locked() bool {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.refcount > 0
}

func (e *Entry) Deleted() bool {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.deleted
}

// Size is the number of stored bytes, derived data excluded.
func (e *Entry) Size() int64 {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.size
}

// Length is the high-water mark: the end of the furthest byte ever written and not truncated.
func (e *Entry) Length() int64 {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.length
}

// Contiguous is the number of bytes stored without a gap from offset 0.
func (e *Entry) Contiguous() int64 {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	if len(e.frags) == 0 || e.frags[0].Offset != 0 {
		return 0
	}
	return e.frags[0].End()
}

// MaxLength is the length the server announced, or -1.
func (e *Entry) MaxLength() int64 {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.maxLength
}

func (e *Entry) SetMaxLength(n int64) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	e.maxLength = n
}

func (e *Entry) Complete() bool {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return !e.incomplete
}

func (e *Entry) SetComplete(complete bool) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	e.incomplete = !complete
}

// Version changes whenever the stored content changes.
func (e *Entry) Version() uint64 {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.version
}

// Generation changes only when stored bytes are removed, so content derived from
// an older generation must be rebuilt rather than extended.
func (e *Entry) Generation() uint64 {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.generation
}

// Head is the raw response header block.
func (e *Entry) Head() string {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.head
}

func (e *Entry) SetHead(head string) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	e.head = head
}

// Code is the HTTP status of the stored response.
func (e *Entry) Code() int {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.code
}

func (e *Entry) SetCode(code int) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	e.code = code
}

// Redirect returns the redirect target. get reports whether following it switches to GET.
func (e *Entry) Redirect() (target string, get bool) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.redirect, e.redirectGet
}

func (e *Entry) SetRedirect(target string, get bool) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	e.redirect, e.redirectGet = target, get
}

func (e *Entry) LastModified() string {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.lastModified
}

func (e *Entry) SetLastModified(v string) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	e.lastModified = v
}

// Derived returns data computed from the current content, if any.
func (e *Entry) Derived() ([]byte, bool) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	if e.derived == nil || e.derivedVersion != e.version {
		return nil, false
	}
	return e.derived, true
}

// SetDerived stores data computed from the content at version.
// It is dropped as soon as the content changes.
func (e *Entry) SetDerived(version uint64, data []byte) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	if version != e.version {
		return
	}

	e.dropDerived()
	e.derived = data
	e.derivedVersion = version
	if !e.deleted {
		e.c.derivedSize += int64(len(data))
	}

	e.c.shrink(ShrinkNormal, e)
}

func (e *Entry) dropDerived() int64 {
	n := int64(len(e.derived))
	if !e.deleted {
		e.c.derivedSize -= n
	}
	e.derived = nil
	return n
}

func (e *Entry) bump() {
	e.version++
	e.dropDerived()
}

func (e *Entry) account(delta int64) {
	e.size += delta
	if !e.deleted {
		e.c.size += delta
	}
}
