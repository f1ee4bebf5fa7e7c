package http

import (
	"browser-core/application/util/rule"
	"bytes"
	"strings"
)

// Header is a header block in wire order. Names compare case-insensitively.
type Header []Field

// Get returns the first value of name.
func (h Header) Get(name string) (string, bool) {
	for _, f := range h {
		if bytes.EqualFold(f.Name, []byte(name)) {
			return string(f.Value), true
		}
	}
	return "", false
}

// Values returns every value of name in order.
func (h Header) Values(name string) []string {
	var values []string
	for _, f := range h {
		if bytes.EqualFold(f.Name, []byte(name)) {
			values = append(values, string(f.Value))
		}
	}
	return values
}

// Tokens splits every value of a list-based field on commas outside quotes.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.1
func (h Header) Tokens(name string) []string {
	var tokens []string
	for _, f := range h {
		if bytes.EqualFold(f.Name, []byte(name)) {
			tokens = append(tokens, splitList(f.Value)...)
		}
	}
	return tokens
}

func (h Header) HasToken(name, token string) bool {
	for _, t := range h.Tokens(name) {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

// Set replaces every line of name with a single one, kept where the first one was.
func (h *Header) Set(name, value string) {
	idx := -1
	out := (*h)[:0]
	for _, f := range *h {
		if bytes.EqualFold(f.Name, []byte(name)) {
			if idx >= 0 {
				continue
			}
			idx = len(out)
		}
		out = append(out, f)
	}

	if idx < 0 {
		out = append(out, NewField(name, value))
	} else {
		out[idx] = NewField(name, value)
	}
	*h = out
}

func (h *Header) Add(name, value string) {
	*h = append(*h, NewField(name, value))
}

func (h *Header) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !bytes.EqualFold(f.Name, []byte(name)) {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone copies the header block, field bytes included.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for i, f := range h {
		out[i] = Field{Name: bytes.Clone(f.Name), Value: bytes.Clone(f.Value)}
	}
	return out
}

// splitList splits a list-based field value on commas outside quoted strings.
// An unterminated quote runs to the end of the value.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.4
func splitList(v []byte) []string {
	var items []string
	start, quoted, escaped := 0, false, false
	for i, c := range v {
		switch {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			items = appendItem(items, v[start:i])
			start = i + 1
		}
	}
	return appendItem(items, v[start:])
}

// appendItem drops empty list elements.
func appendItem(items []string, item []byte) []string {
	item = rule.Unquote(bytes.TrimFunc(item, rule.IsWhitespace))
	if len(item) == 0 {
		return items
	}
	return append(items, string(item))
}
