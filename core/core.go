// Package core assembles the resolver, connector, HTTP client and cache into
// a retriever that follows a URL to its final content.
package core

import (
	"browser-core/application/cache"
	"browser-core/application/http"
	"browser-core/application/http/actor/client"
	"browser-core/application/http/content"
	"browser-core/application/http/status"
	"browser-core/application/util/domain"
	"browser-core/config"
	"browser-core/transport"
	"browser-core/transport/connect"
	"browser-core/transport/tcp"
	"context"
	"io"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Deps replace the collaborators New would otherwise build from the configuration.
type Deps struct {
	Lookuper domain.Lookuper
	Dialer   transport.ConnDialer
	Jar      client.CookieJar
}

type Core struct {
	resolver  *domain.Resolver
	cache     *cache.Cache
	blacklist *client.Blacklist
	connector *connect.Connector
	client    *client.Client
	decoder   *content.Decoder

	cfg config.Config

	logger *slog.Logger
	clock  clock.Clock
}

func New(cfg config.Config, logger *slog.Logger, clock clock.Clock) (*Core, error) {
	return NewWithDeps(cfg, Deps{}, logger, clock)
}

func NewWithDeps(cfg config.Config, deps Deps, logger *slog.Logger, clock clock.Clock) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.Lookuper == nil {
		deps.Lookuper = cfg.Lookuper()
	}
	if deps.Dialer == nil {
		deps.Dialer = tcp.Dialer{}
	}

	resolver := domain.NewResolver(deps.Lookuper, logger, clock, cfg.DomainOptions())
	connector := connect.New(resolver, deps.Dialer, nil, logger, clock, cfg.ConnectOptions())
	blacklist := client.NewBlacklist()

	return &Core{
		resolver:  resolver,
		cache:     cache.New(logger, cfg.CacheOptions()),
		blacklist: blacklist,
		connector: connector,
		client:    client.New(connector, blacklist, deps.Jar, logger, clock, cfg.ClientOptions()),
		decoder:   content.NewDecoder(logger),
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
	}, nil
}

func (c *Core) Cache() *cache.Cache { return c.cache }

func (c *Core) Resolver() *domain.Resolver { return c.resolver }

func (c *Core) Blacklist() *client.Blacklist { return c.blacklist }

// Close drops kept-alive connections. Cached content stays available.
func (c *Core) Close() {
	c.client.Close()
}

type FetchOptions struct {
	// Reload bypasses cached content and the resolver cache.
	Reload bool
	// Decode undoes the Content-Encoding of the final response.
	Decode bool
}

type Result struct {
	// URL is where the last redirect led.
	URL     string
	Entry   *cache.Entry
	Outcome client.Outcome
	// Redirects is the number of redirects followed.
	Redirects int
	// Body is the stored content, decoded when asked to.
	Body []byte
}

// Fetch retrieves rawURL, following redirects up to the configured limit.
// An AuthRequired or error status is a successful fetch; its Result carries the code.
func (c *Core) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Result, error) {
	current := rawURL
	for redirects := 0; ; redirects++ {
		entry, outcome, err := c.fetchOne(ctx, current, opts)
		if err != nil {
			return nil, err
		}

		if outcome.Kind != client.Redirect {
			res := &Result{URL: current, Entry: entry, Outcome: outcome, Redirects: redirects}
			if res.Body, err = c.body(entry, opts.Decode); err != nil {
				return res, err
			}
			return res, nil
		}

		if redirects >= c.cfg.Fetch.MaxRedirects {
			return nil, errors.Wrapf(ErrTooManyRedirects, "%d redirects from %s", redirects, rawURL)
		}
		c.logger.Debug("following redirect",
			slog.String("from", current), slog.String("to", outcome.Location), slog.Int("code", int(outcome.Code)))
		current = outcome.Location
	}
}

// fetchOne runs the tries of one URL. A failure that may pass on its own is
// tried again up to MaxTries; a Retry outcome gets one more try with the
// workaround the client recorded.
func (c *Core) fetchOne(ctx context.Context, rawURL string, opts FetchOptions) (*cache.Entry, client.Outcome, error) {
	entry, _ := c.cache.GetOrCreate(rawURL)
	entry.Lock()
	defer entry.Unlock()

	if !opts.Reload && entry.Complete() && c.fresh(entry) {
		target, _ := entry.Redirect()
		if target != "" {
			return entry, client.Outcome{Kind: client.Redirect, Code: uint(entry.Code()), Location: target}, nil
		}
	}

	maxTries := c.cfg.Fetch.MaxTries
	retried := 0
	var lastErr error
	for try := 1; try <= maxTries+retried; try++ {
		outcome, err := c.client.Do(ctx, client.Request{
			URL:     rawURL,
			Entry:   entry,
			Reload:  opts.Reload,
			LastTry: try >= maxTries+retried,
		})
		if err != nil {
			if ctx.Err() != nil || !Retryable(err) {
				return entry, client.Outcome{}, err
			}
			c.logger.Debug("try failed", slog.String("url", rawURL), slog.Int("try", try), slog.Any("error", err))
			lastErr = err
			continue
		}

		if outcome.Kind == client.Retry {
			if retried < maxTries {
				retried++
			}
			c.logger.Debug("retrying with workaround", slog.String("url", rawURL), slog.Int("code", int(outcome.Code)))
			lastErr = errors.Errorf("server answered %d", outcome.Code)
			continue
		}
		return entry, outcome, nil
	}

	return entry, client.Outcome{}, errors.Wrapf(ErrRetriesExhausted, "%s: %v", rawURL, lastErr)
}

// fresh reports a cached redirect worth following without asking again.
// Only permanent redirects qualify.
func (c *Core) fresh(entry *cache.Entry) bool {
	return entry.Code() > 0 && status.IsPermanent(uint(entry.Code()))
}

func (c *Core) body(entry *cache.Entry, decode bool) ([]byte, error) {
	if !decode {
		return entry.Bytes(), nil
	}

	res, err := http.ParseResponseHead([]byte(entry.Head()), http.BrowserDecodeOptions)
	if err != nil {
		return entry.Bytes(), nil
	}
	v, ok := res.Headers.Get("Content-Encoding")
	if !ok {
		return entry.Bytes(), nil
	}

	enc, err := content.ParseEncoding(v)
	if err != nil {
		c.logger.Warn("leaving content encoded", slog.String("url", entry.URL()), slog.Any("error", err))
		return entry.Bytes(), nil
	}
	return c.decoder.Entry(entry, enc)
}

// Retryable reports a failure another try may get past: the connection broke
// or went silent, or the server hung up before finishing.
func Retryable(err error) bool {
	switch {
	case transport.IsRetryable(err),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, client.ErrEmptyResponse):
		return true
	}
	return false
}
