// Package http implements the HTTP/1.x wire format as a browser client speaks it:
// message heads, header fields and the leniencies real servers need.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
//
// - https://www.w3.org/Protocols/HTTP/AsImplemented.html (HTTP/0.9)
package http
