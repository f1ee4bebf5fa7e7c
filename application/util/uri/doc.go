// Package uri parses, prints and resolves the URLs handed to the retrieval
// core. On top of RFC 3986 references it understands the proxy prefix and the
// POST payload appended after a marker byte.
//
// Components are stored unescaped; String escapes them again.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc3986
package uri
