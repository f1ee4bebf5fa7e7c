package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const EnvPrefix = "BROWSER_CORE_"

// LoadFromEnv overrides c with the BROWSER_CORE_* variables that are set.
// EXTRA_HEADERS separates its lines with newlines.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"RESOLVER_PREFERENCE":  &c.Resolver.Preference,
		"RESOLVER_NAMESERVER":  &c.Resolver.Nameserver,
		"HTTP_USER_AGENT":      &c.HTTP.UserAgent,
		"HTTP_REFERER":         &c.HTTP.Referer,
		"HTTP_ACCEPT_LANGUAGE": &c.HTTP.AcceptLanguage,
		"HTTP_ACCEPT_CHARSET":  &c.HTTP.AcceptCharset,
		"PROXY_HTTP":           &c.Proxy.HTTP,
		"PROXY_HTTPS":          &c.Proxy.HTTPS,
		"PROXY_SOCKS":          &c.Proxy.Socks,
		"TLS_POLICY":           &c.TLS.Policy,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"HTTP_COMPRESSION":           &c.HTTP.Compression,
		"HTTP_FORCE_HTTP10":          &c.HTTP.ForceHTTP10,
		"HTTP_UPGRADE_INSECURE":      &c.HTTP.UpgradeInsecure,
		"HTTP_USE_BLACKLIST":         &c.HTTP.UseBlacklist,
		"HTTP_RETRY_INTERNAL_ERRORS": &c.HTTP.RetryInternalErrors,
	}
	for key, dst := range flags {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.Wrapf(err, "parsing %s%s", EnvPrefix, key)
			}
			*dst = b
		}
	}

	nums := map[string]*int{
		"RESOLVER_MAX_ADDRESSES": &c.Resolver.MaxAddresses,
		"HTTP_MAX_IDLE":          &c.HTTP.MaxIdle,
		"FETCH_MAX_REDIRECTS":    &c.Fetch.MaxRedirects,
		"FETCH_MAX_TRIES":        &c.Fetch.MaxTries,
	}
	for key, dst := range nums {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "parsing %s%s", EnvPrefix, key)
			}
			*dst = n
		}
	}

	durs := map[string]*time.Duration{
		"RESOLVER_CACHE_TIMEOUT":      &c.Resolver.CacheTimeout,
		"RESOLVER_NAMESERVER_TIMEOUT": &c.Resolver.NameserverTimeout,
		"RESOLVER_LOOKUP_TIMEOUT":     &c.Resolver.LookupTimeout,
		"CONNECT_TIMEOUT":             &c.Connect.Timeout,
		"HTTP_RECEIVE_TIMEOUT":        &c.HTTP.ReceiveTimeout,
		"HTTP_IDLE_TIMEOUT":           &c.HTTP.IdleTimeout,
	}
	for key, dst := range durs {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrapf(err, "parsing %s%s", EnvPrefix, key)
			}
			*dst = d
		}
	}

	if v, ok := lookup("HTTP_EXTRA_HEADERS"); ok {
		c.HTTP.ExtraHeaders = nil
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				c.HTTP.ExtraHeaders = append(c.HTTP.ExtraHeaders, line)
			}
		}
	}

	if v, ok := lookup("CACHE_QUOTA"); ok {
		size, err := ParseSize(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %sCACHE_QUOTA", EnvPrefix)
		}
		c.Cache.Quota = size
	}
	if v, ok := lookup("CACHE_WATERMARK"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing %sCACHE_WATERMARK", EnvPrefix)
		}
		c.Cache.Watermark = f
	}

	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	return v, ok && v != ""
}
