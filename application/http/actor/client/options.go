package client

import (
	"browser-core/application/http"
	"browser-core/application/http/transfer"
	"browser-core/session/tls"
	"time"
)

type Options struct {
	Send    SendOptions
	Receive ReceiveOptions
	Conn    ConnOptions
	Proxy   ProxyOptions
	Timeout TimeoutOptions

	// TLSPolicy is consulted after every handshake.
	TLSPolicy tls.Policy

	// ExtraTransferDecoders add transfer codings beyond chunked, gzip and deflate.
	ExtraTransferDecoders []transfer.Decoder
}

type SendOptions struct {
	Encode http.EncodeOptions

	UserAgent      string
	AcceptLanguage string
	AcceptCharset  string
	// Referer is sent when the request names none of its own.
	Referer string

	// Compression advertises the content encodings the content package decodes.
	Compression bool
	// ForceHTTP10 sends every request as HTTP/1.0.
	ForceHTTP10 bool
	// UpgradeInsecure sends Upgrade-Insecure-Requests on plain requests through a proxy.
	UpgradeInsecure bool

	// ExtraHeaders are appended after the generated fields. A Cookie entry replaces
	// the cookie line from the jar instead of adding a second one.
	ExtraHeaders http.Header
}

type ReceiveOptions struct {
	Decode http.DecodeOptions

	// UseBlacklist remembers workarounds for hosts whose Server header is known to be buggy.
	UseBlacklist bool
	// RetryInternalErrors retries a 5xx on the last try with bzip2 no longer advertised.
	RetryInternalErrors bool
}

type ConnOptions struct {
	// MaxIdle bounds kept-alive connections across every host. Zero disables keep-alive.
	MaxIdle uint
}

type ProxyOptions struct {
	// HTTP and HTTPS are "[user:password@]host:port" of a proxy taking absolute-form requests.
	HTTP  string
	HTTPS string
	// Socks is a "socks://[user@]host[:port]/" SOCKS4a proxy used to reach origins directly.
	Socks string
}

type TimeoutOptions struct {
	// Receive closes a connection that made no progress for this long.
	Receive time.Duration
	// Idle closes a kept-alive connection nobody reused for this long.
	Idle time.Duration
}

var DefaultOptions = Options{
	Send: SendOptions{
		Encode:      http.DefaultEncodeOptions,
		UserAgent:   "browser-core/1.0",
		Compression: true,
	},
	Receive: ReceiveOptions{
		Decode:              http.BrowserDecodeOptions,
		UseBlacklist:        true,
		RetryInternalErrors: true,
	},
	Conn: ConnOptions{MaxIdle: 10},
	Timeout: TimeoutOptions{
		Receive: 120 * time.Second,
		Idle:    60 * time.Second,
	},
	TLSPolicy: tls.Policy{Level: tls.LevelWarn},
}
