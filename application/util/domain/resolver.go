package domain

import (
	"browser-core/network/ip"
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

type Options struct {
	Preference Preference
	// CacheTimeout is the age after which a cached lookup is resolved again.
	CacheTimeout time.Duration
	// MaxAddresses bounds the number of addresses kept for one host.
	MaxAddresses int
	// LookupTimeout bounds one lookup of a host, every family included. Zero waits indefinitely.
	LookupTimeout time.Duration
}

var DefaultOptions = Options{
	Preference:    PreferDefault,
	CacheTimeout:  time.Hour,
	MaxAddresses:  16,
	LookupTimeout: 30 * time.Second,
}

type ResolveOptions struct {
	// NoCache skips cached results. The fresh result still replaces the cached one.
	NoCache bool
}

type cacheEntry struct {
	host      string
	result    *LookupResult
	err       error
	createdAt time.Time
	pref      Preference
}

type call struct {
	done   chan struct{}
	result *LookupResult
	err    error
}

// Resolver turns host names into ordered address lists and remembers them.
// Both found and not-found outcomes are cached.
type Resolver struct {
	lookuper Lookuper
	logger   *slog.Logger
	clock    clock.Clock

	opts Options

	entries  map[string]*list.Element
	mru      *list.List // front is the most recently used.
	inflight map[string]*call
	mu       sync.Mutex
}

func NewResolver(lookuper Lookuper, logger *slog.Logger, clock clock.Clock, opts Options) *Resolver {
	if opts.MaxAddresses <= 0 {
		opts.MaxAddresses = DefaultOptions.MaxAddresses
	}
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = DefaultOptions.CacheTimeout
	}

	return &Resolver{
		lookuper: lookuper,
		logger:   logger,
		clock:    clock,
		opts:     opts,
		entries:  make(map[string]*list.Element),
		mru:      list.New(),
		inflight: make(map[string]*call),
	}
}

func normalizeHost(host string) string {
	host = strings.TrimSuffix(host, ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return strings.ToLower(host)
}

// Resolve returns the address list of host. A cache hit returns the very same
// *LookupResult that was stored; callers that reorder addresses must Clone it first.
func (r *Resolver) Resolve(ctx context.Context, host string, opts ResolveOptions) (*LookupResult, error) {
	if addr, err := ip.ParseLiteral(host); err == nil {
		result := NewLookupResult(1)
		result.Addrs = append(result.Addrs, addr)
		return result, nil
	}

	key := normalizeHost(host)

	r.mu.Lock()
	if !opts.NoCache {
		if entry, ok := r.findLocked(key); ok {
			r.mu.Unlock()
			r.logger.Debug("dns cache hit", slog.String("host", key))
			if entry.err != nil {
				return nil, entry.err
			}
			return entry.result, nil
		}
	}

	c, ok := r.inflight[key]
	if !ok {
		c = &call{done: make(chan struct{})}
		r.inflight[key] = c
		pref := r.opts.Preference
		r.mu.Unlock()

		// Lookups run detached from the caller so that one impatient caller
		// doesn't fail the others waiting for the same host.
		go r.doLookup(key, pref, c)
	} else {
		r.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return c.result, c.err
	}
}

// Lookup is Resolve returning a private copy, safe to reorder.
func (r *Resolver) Lookup(ctx context.Context, host string, opts ResolveOptions) (*LookupResult, error) {
	result, err := r.Resolve(ctx, host, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return result.Clone(), nil
}

// ResolveAsync resolves on a separate goroutine and reports through fn.
func (r *Resolver) ResolveAsync(host string, opts ResolveOptions, fn func(*LookupResult, error)) {
	go func() {
		fn(r.Resolve(context.Background(), host, opts))
	}()
}

func (r *Resolver) doLookup(key string, pref Preference, c *call) {
	ctx := context.Background()
	if r.opts.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = r.clock.WithTimeout(ctx, r.opts.LookupTimeout)
		defer cancel()
	}

	result := NewLookupResult(r.opts.MaxAddresses)
	var lookupErr error

	for _, family := range pref.families() {
		addrs, err := r.lookuper.LookupIP(ctx, key, family)
		if err != nil {
			lookupErr = err
			continue
		}
		for _, addr := range addrs {
			result.Add(addr, pref)
		}
	}

	var err error
	switch {
	case result.Len() > 0:
	case lookupErr == nil, errors.Is(lookupErr, ErrDomainNotFound):
		err = errors.Wrapf(ErrDomainNotFound, "host %q", key)
	default:
		err = errors.Wrapf(lookupErr, "host %q", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inflight, key)

	if err == nil || errors.Is(err, ErrDomainNotFound) {
		r.storeLocked(&cacheEntry{
			host:      key,
			result:    result,
			err:       err,
			createdAt: r.clock.Now(),
			pref:      pref,
		})
	}

	if err != nil {
		result = nil
	}
	c.result, c.err = result, err
	close(c.done)

	r.logger.Debug("dns lookup",
		slog.String("host", key), slog.Int("addrs", len(addrsOf(result))), slog.Any("error", err))
}

func addrsOf(r *LookupResult) []ip.Addr {
	if r == nil {
		return nil
	}
	return r.Addrs
}

// findLocked returns a live entry and moves it to the most recently used position.
// Entries that are too old or were made under another preference are dropped.
func (r *Resolver) findLocked(key string) (*cacheEntry, bool) {
	elem, ok := r.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if r.clock.Since(entry.createdAt) > r.opts.CacheTimeout || entry.pref != r.opts.Preference {
		r.mru.Remove(elem)
		delete(r.entries, key)
		return nil, false
	}

	r.mru.MoveToFront(elem)
	return entry, true
}

func (r *Resolver) storeLocked(entry *cacheEntry) {
	if elem, ok := r.entries[entry.host]; ok {
		r.mru.Remove(elem)
	}
	r.entries[entry.host] = r.mru.PushFront(entry)
}

// SetPriority moves addr to the front (prefer) or back of the cached list for host.
func (r *Resolver) SetPriority(host string, addr ip.Addr, prefer bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.entries[normalizeHost(host)]
	if !ok {
		return
	}

	entry := elem.Value.(*cacheEntry)
	if entry.result != nil {
		entry.result.setPriority(addr, prefer)
	}
}

// Promote records that tried[idx] was the first address to work: every address
// tried before it is demoted and it goes to the front.
func (r *Resolver) Promote(host string, tried []ip.Addr, idx int) {
	if idx <= 0 || idx >= len(tried) {
		return
	}

	for _, addr := range tried[:idx] {
		r.SetPriority(host, addr, false)
	}
	r.SetPriority(host, tried[idx], true)

	r.logger.Debug("dns priority",
		slog.String("host", host), slog.String("promoted", tried[idx].String()))
}

func (r *Resolver) ClearHost(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeHost(host)
	if elem, ok := r.entries[key]; ok {
		r.mru.Remove(elem)
		delete(r.entries, key)
	}
}

func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*list.Element)
	r.mru.Init()
}

// SetPreference changes the family preference. Entries made under the old one
// are resolved again when next used.
func (r *Resolver) SetPreference(pref Preference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.Preference = pref
}

func (r *Resolver) Preference() Preference {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.Preference
}

// Hosts lists cached hosts, most recently used first.
func (r *Resolver) Hosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	hosts := make([]string, 0, r.mru.Len())
	for elem := r.mru.Front(); elem != nil; elem = elem.Next() {
		hosts = append(hosts, elem.Value.(*cacheEntry).host)
	}
	return hosts
}
