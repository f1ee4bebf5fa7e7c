// Package status names the HTTP status codes the client reacts to.
package status

import "strconv"

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-15
const (
	Continue           = 100
	SwitchingProtocols = 101

	OK             = 200
	NoContent      = 204
	PartialContent = 206

	MovedPermanently  = 301
	Found             = 302
	SeeOther          = 303
	NotModified       = 304
	TemporaryRedirect = 307
	PermanentRedirect = 308

	Unauthorized                = 401
	NotFound                    = 404
	ProxyAuthRequired           = 407
	RangeNotSatisfiable         = 416
	RequestHeaderFieldsTooLarge = 431

	InternalServerError = 500
	BadGateway          = 502
	ServiceUnavailable  = 503
	GatewayTimeout      = 504
)

var reasons = map[uint]string{
	Continue:                    "Continue",
	SwitchingProtocols:          "Switching Protocols",
	OK:                          "OK",
	NoContent:                   "No Content",
	PartialContent:              "Partial Content",
	MovedPermanently:            "Moved Permanently",
	Found:                       "Found",
	SeeOther:                    "See Other",
	NotModified:                 "Not Modified",
	TemporaryRedirect:           "Temporary Redirect",
	PermanentRedirect:           "Permanent Redirect",
	Unauthorized:                "Unauthorized",
	NotFound:                    "Not Found",
	ProxyAuthRequired:           "Proxy Authentication Required",
	RangeNotSatisfiable:         "Range Not Satisfiable",
	RequestHeaderFieldsTooLarge: "Request Header Fields Too Large",
	InternalServerError:         "Internal Server Error",
	BadGateway:                  "Bad Gateway",
	ServiceUnavailable:          "Service Unavailable",
	GatewayTimeout:              "Gateway Timeout",
}

// Text returns the reason phrase of code, or "" for codes not listed here.
func Text(code uint) string { return reasons[code] }

// String formats code with its reason phrase when one is known.
func String(code uint) string {
	s := strconv.FormatUint(uint64(code), 10)
	if reason := Text(code); reason != "" {
		s += " " + reason
	}
	return s
}

func IsInformational(code uint) bool { return 100 <= code && code < 200 }
func IsSuccessful(code uint) bool    { return 200 <= code && code < 300 }
func IsClientError(code uint) bool   { return 400 <= code && code < 500 }
func IsServerError(code uint) bool   { return 500 <= code && code < 600 }

// IsRedirect reports codes that carry a Location to follow.
func IsRedirect(code uint) bool {
	switch code {
	case MovedPermanently, Found, SeeOther, TemporaryRedirect, PermanentRedirect:
		return true
	}
	return false
}

// KeepsMethod reports redirects that must repeat the original method and body.
func KeepsMethod(code uint) bool {
	return code == TemporaryRedirect || code == PermanentRedirect
}

// IsPermanent reports redirects a cache may follow without asking again.
func IsPermanent(code uint) bool {
	return code == MovedPermanently || code == PermanentRedirect
}

// IsTransientServerError reports the server errors another try may get past.
func IsTransientServerError(code uint) bool {
	switch code {
	case InternalServerError, BadGateway, ServiceUnavailable, GatewayTimeout:
		return true
	}
	return false
}

// NeedsAuth reports challenges from the origin or from a proxy.
func NeedsAuth(code uint) (yes, proxy bool) {
	return code == Unauthorized || code == ProxyAuthRequired, code == ProxyAuthRequired
}
