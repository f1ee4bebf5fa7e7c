// Package config loads the settings of the retrieval core and turns them into
// the options of each package.
package config

import (
	"browser-core/application/cache"
	"browser-core/application/http"
	"browser-core/application/http/actor/client"
	"browser-core/application/util/domain"
	"browser-core/session/tls"
	"browser-core/transport/connect"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
	Connect  ConnectConfig  `yaml:"connect"`
	HTTP     HTTPConfig     `yaml:"http"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Cache    CacheConfig    `yaml:"cache"`
	TLS      TLSConfig      `yaml:"tls"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

type ResolverConfig struct {
	// Preference is one of default, ipv4-only, ipv6-only, prefer-ipv4, prefer-ipv6.
	Preference   string        `yaml:"preference"`
	CacheTimeout time.Duration `yaml:"cache_timeout"`
	MaxAddresses int           `yaml:"max_addresses"`
	// Nameserver, when set, is queried directly instead of the system resolver.
	Nameserver        string        `yaml:"nameserver"`
	NameserverTimeout time.Duration `yaml:"nameserver_timeout"`
	LookupTimeout     time.Duration `yaml:"lookup_timeout"`
}

type ConnectConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type HTTPConfig struct {
	UserAgent      string `yaml:"user_agent"`
	Referer        string `yaml:"referer"`
	AcceptLanguage string `yaml:"accept_language"`
	AcceptCharset  string `yaml:"accept_charset"`
	// ExtraHeaders are "Name: value" lines.
	ExtraHeaders []string `yaml:"extra_headers"`

	Compression         bool `yaml:"compression"`
	ForceHTTP10         bool `yaml:"force_http10"`
	UpgradeInsecure     bool `yaml:"upgrade_insecure"`
	UseBlacklist        bool `yaml:"use_blacklist"`
	RetryInternalErrors bool `yaml:"retry_internal_errors"`

	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxIdle        int           `yaml:"max_idle"`
}

type ProxyConfig struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
	Socks string `yaml:"socks"`
}

type CacheConfig struct {
	Quota     int64   `yaml:"quota"`
	Watermark float64 `yaml:"watermark"`
}

type TLSConfig struct {
	// Policy is one of ignore, warn, strict.
	Policy string `yaml:"policy"`
}

type FetchConfig struct {
	MaxRedirects int `yaml:"max_redirects"`
	MaxTries     int `yaml:"max_tries"`
}

func Default() Config {
	h := client.DefaultOptions
	return Config{
		Resolver: ResolverConfig{
			Preference:        "default",
			CacheTimeout:      domain.DefaultOptions.CacheTimeout,
			MaxAddresses:      domain.DefaultOptions.MaxAddresses,
			NameserverTimeout: 5 * time.Second,
			LookupTimeout:     domain.DefaultOptions.LookupTimeout,
		},
		Connect: ConnectConfig{Timeout: connect.DefaultOptions.ConnectTimeout},
		HTTP: HTTPConfig{
			UserAgent:           h.Send.UserAgent,
			Compression:         h.Send.Compression,
			UseBlacklist:        h.Receive.UseBlacklist,
			RetryInternalErrors: h.Receive.RetryInternalErrors,
			ReceiveTimeout:      h.Timeout.Receive,
			IdleTimeout:         h.Timeout.Idle,
			MaxIdle:             int(h.Conn.MaxIdle),
		},
		Cache: CacheConfig{
			Quota:     cache.DefaultOptions.Quota,
			Watermark: cache.DefaultOptions.Watermark,
		},
		TLS: TLSConfig{Policy: h.TLSPolicy.Level.String()},
		Fetch: FetchConfig{
			MaxRedirects: 10,
			MaxTries:     3,
		},
	}
}

// The file mirror keeps sizes and durations as strings and leaves absent
// settings nil so they keep their defaults.
type yamlConfig struct {
	Resolver struct {
		Preference        *string `yaml:"preference"`
		CacheTimeout      *string `yaml:"cache_timeout"`
		MaxAddresses      *int    `yaml:"max_addresses"`
		Nameserver        *string `yaml:"nameserver"`
		NameserverTimeout *string `yaml:"nameserver_timeout"`
		LookupTimeout     *string `yaml:"lookup_timeout"`
	} `yaml:"resolver"`
	Connect struct {
		Timeout *string `yaml:"timeout"`
	} `yaml:"connect"`
	HTTP struct {
		UserAgent           *string  `yaml:"user_agent"`
		Referer             *string  `yaml:"referer"`
		AcceptLanguage      *string  `yaml:"accept_language"`
		AcceptCharset       *string  `yaml:"accept_charset"`
		ExtraHeaders        []string `yaml:"extra_headers"`
		Compression         *bool    `yaml:"compression"`
		ForceHTTP10         *bool    `yaml:"force_http10"`
		UpgradeInsecure     *bool    `yaml:"upgrade_insecure"`
		UseBlacklist        *bool    `yaml:"use_blacklist"`
		RetryInternalErrors *bool    `yaml:"retry_internal_errors"`
		ReceiveTimeout      *string  `yaml:"receive_timeout"`
		IdleTimeout         *string  `yaml:"idle_timeout"`
		MaxIdle             *int     `yaml:"max_idle"`
	} `yaml:"http"`
	Proxy struct {
		HTTP  *string `yaml:"http"`
		HTTPS *string `yaml:"https"`
		Socks *string `yaml:"socks"`
	} `yaml:"proxy"`
	Cache struct {
		Quota     *string  `yaml:"quota"`
		Watermark *float64 `yaml:"watermark"`
	} `yaml:"cache"`
	TLS struct {
		Policy *string `yaml:"policy"`
	} `yaml:"tls"`
	Fetch struct {
		MaxRedirects *int `yaml:"max_redirects"`
		MaxTries     *int `yaml:"max_tries"`
	} `yaml:"fetch"`
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config file")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, errors.Wrap(err, "parsing config file")
	}

	cfg := Default()
	var errs []error
	str := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	flag := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	num := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	dur := func(dst *time.Duration, v *string, key string) {
		if v == nil {
			return
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "parsing %s", key))
			return
		}
		*dst = d
	}

	r := yc.Resolver
	str(&cfg.Resolver.Preference, r.Preference)
	dur(&cfg.Resolver.CacheTimeout, r.CacheTimeout, "resolver.cache_timeout")
	num(&cfg.Resolver.MaxAddresses, r.MaxAddresses)
	str(&cfg.Resolver.Nameserver, r.Nameserver)
	dur(&cfg.Resolver.NameserverTimeout, r.NameserverTimeout, "resolver.nameserver_timeout")
	dur(&cfg.Resolver.LookupTimeout, r.LookupTimeout, "resolver.lookup_timeout")

	dur(&cfg.Connect.Timeout, yc.Connect.Timeout, "connect.timeout")

	h := yc.HTTP
	str(&cfg.HTTP.UserAgent, h.UserAgent)
	str(&cfg.HTTP.Referer, h.Referer)
	str(&cfg.HTTP.AcceptLanguage, h.AcceptLanguage)
	str(&cfg.HTTP.AcceptCharset, h.AcceptCharset)
	if h.ExtraHeaders != nil {
		cfg.HTTP.ExtraHeaders = h.ExtraHeaders
	}
	flag(&cfg.HTTP.Compression, h.Compression)
	flag(&cfg.HTTP.ForceHTTP10, h.ForceHTTP10)
	flag(&cfg.HTTP.UpgradeInsecure, h.UpgradeInsecure)
	flag(&cfg.HTTP.UseBlacklist, h.UseBlacklist)
	flag(&cfg.HTTP.RetryInternalErrors, h.RetryInternalErrors)
	dur(&cfg.HTTP.ReceiveTimeout, h.ReceiveTimeout, "http.receive_timeout")
	dur(&cfg.HTTP.IdleTimeout, h.IdleTimeout, "http.idle_timeout")
	num(&cfg.HTTP.MaxIdle, h.MaxIdle)

	str(&cfg.Proxy.HTTP, yc.Proxy.HTTP)
	str(&cfg.Proxy.HTTPS, yc.Proxy.HTTPS)
	str(&cfg.Proxy.Socks, yc.Proxy.Socks)

	if yc.Cache.Quota != nil {
		size, err := ParseSize(*yc.Cache.Quota)
		if err != nil {
			errs = append(errs, errors.Wrap(err, "parsing cache.quota"))
		} else {
			cfg.Cache.Quota = size
		}
	}
	if yc.Cache.Watermark != nil {
		cfg.Cache.Watermark = *yc.Cache.Watermark
	}

	str(&cfg.TLS.Policy, yc.TLS.Policy)

	num(&cfg.Fetch.MaxRedirects, yc.Fetch.MaxRedirects)
	num(&cfg.Fetch.MaxTries, yc.Fetch.MaxTries)

	if len(errs) > 0 {
		return Config{}, errs[0]
	}
	return cfg, nil
}

// Validate reports the first setting the packages would not accept.
func (c *Config) Validate() error {
	if _, ok := domain.ParsePreference(c.Resolver.Preference); !ok {
		return errors.Wrapf(ErrInvalid, "resolver.preference %q", c.Resolver.Preference)
	}
	if c.Resolver.MaxAddresses <= 0 {
		return errors.Wrap(ErrInvalid, "resolver.max_addresses must be positive")
	}
	if c.Resolver.CacheTimeout < 0 || c.Resolver.LookupTimeout < 0 || c.Connect.Timeout < 0 ||
		c.HTTP.ReceiveTimeout < 0 || c.HTTP.IdleTimeout < 0 {
		return errors.Wrap(ErrInvalid, "timeouts must not be negative")
	}
	if c.HTTP.MaxIdle < 0 {
		return errors.Wrap(ErrInvalid, "http.max_idle must not be negative")
	}
	if _, err := c.extraHeaders(); err != nil {
		return errors.Wrapf(ErrInvalid, "http.extra_headers: %v", err)
	}
	if c.Cache.Watermark <= 0 || c.Cache.Watermark > 1 {
		return errors.Wrap(ErrInvalid, "cache.watermark must be in (0, 1]")
	}
	if _, ok := tls.ParseLevel(c.TLS.Policy); !ok {
		return errors.Wrapf(ErrInvalid, "tls.policy %q", c.TLS.Policy)
	}
	if c.Fetch.MaxRedirects < 0 {
		return errors.Wrap(ErrInvalid, "fetch.max_redirects must not be negative")
	}
	if c.Fetch.MaxTries <= 0 {
		return errors.Wrap(ErrInvalid, "fetch.max_tries must be positive")
	}
	return nil
}

func (c *Config) extraHeaders() (http.Header, error) {
	var h http.Header
	for _, line := range c.HTTP.ExtraHeaders {
		f, err := http.ParseField([]byte(line))
		if err == nil {
			err = http.CheckField(f)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%q", line)
		}
		h = append(h, f)
	}
	return h, nil
}

// DomainOptions assumes a validated config.
func (c *Config) DomainOptions() domain.Options {
	pref, _ := domain.ParsePreference(c.Resolver.Preference)
	return domain.Options{
		Preference:    pref,
		CacheTimeout:  c.Resolver.CacheTimeout,
		MaxAddresses:  c.Resolver.MaxAddresses,
		LookupTimeout: c.Resolver.LookupTimeout,
	}
}

// Lookuper is the lookup backend the resolver should use.
func (c *Config) Lookuper() domain.Lookuper {
	if c.Resolver.Nameserver != "" {
		return domain.NewNameserverLookuper(c.Resolver.Nameserver, c.Resolver.NameserverTimeout)
	}
	return domain.SystemLookuper{}
}

func (c *Config) ConnectOptions() connect.Options {
	return connect.Options{ConnectTimeout: c.Connect.Timeout, IdleTimeout: c.HTTP.ReceiveTimeout}
}

func (c *Config) CacheOptions() cache.Options {
	return cache.Options{Quota: c.Cache.Quota, Watermark: c.Cache.Watermark}
}

// ClientOptions assumes a validated config.
func (c *Config) ClientOptions() client.Options {
	opts := client.DefaultOptions

	s := &opts.Send
	s.UserAgent = c.HTTP.UserAgent
	s.Referer = c.HTTP.Referer
	s.AcceptLanguage = c.HTTP.AcceptLanguage
	s.AcceptCharset = c.HTTP.AcceptCharset
	s.Compression = c.HTTP.Compression
	s.ForceHTTP10 = c.HTTP.ForceHTTP10
	s.UpgradeInsecure = c.HTTP.UpgradeInsecure
	s.ExtraHeaders, _ = c.extraHeaders()

	opts.Receive.UseBlacklist = c.HTTP.UseBlacklist
	opts.Receive.RetryInternalErrors = c.HTTP.RetryInternalErrors

	opts.Conn.MaxIdle = uint(c.HTTP.MaxIdle)
	opts.Timeout.Receive = c.HTTP.ReceiveTimeout
	opts.Timeout.Idle = c.HTTP.IdleTimeout

	opts.Proxy = client.ProxyOptions{
		HTTP:  c.Proxy.HTTP,
		HTTPS: c.Proxy.HTTPS,
		Socks: c.Proxy.Socks,
	}

	level, _ := tls.ParseLevel(c.TLS.Policy)
	opts.TLSPolicy = tls.Policy{Level: level}

	return opts
}
