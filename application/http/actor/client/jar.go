package client

import "browser-core/application/util/uri"

// CookieJar stores cookies on behalf of the client.
type CookieJar interface {
	// Cookies returns the value of the Cookie field for a request to u, or "".
	Cookies(u uri.URI) string
	// SetCookies records the raw Set-Cookie values received from host.
	SetCookies(host string, values []string)
}

type NopJar struct{}

var _ CookieJar = NopJar{}

func (NopJar) Cookies(uri.URI) string      { return "" }
func (NopJar) SetCookies(string, []string) {}
