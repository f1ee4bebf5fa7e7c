package uri

import (
	"strings"

	"github.com/pkg/errors"
)

const upperHex = "0123456789ABCDEF"

func fromHex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	}
	return c - '0'
}

func unhex(hi, lo byte) byte { return fromHex(hi)<<4 | fromHex(lo) }

func writeEscaped(b *strings.Builder, c byte) {
	b.WriteByte('%')
	b.WriteByte(upperHex[c>>4])
	b.WriteByte(upperHex[c&0xf])
}

// escape percent-encodes every byte of s that comp does not allow literally.
func escape(s string, comp component) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !allowed(s[i], comp) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		if c := s[i]; allowed(c, comp) {
			b.WriteByte(c)
		} else {
			writeEscaped(&b, c)
		}
	}
	return b.String()
}

func unescape(s string) (string, error) {
	i := strings.IndexByte(s, '%')
	if i < 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:i])
	for ; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if !isPercentTriple(s, i) {
			return "", errors.Errorf("malformed percent-encoding %q", s[i:min(len(s), i+3)])
		}
		b.WriteByte(unhex(s[i+1], s[i+2]))
		i += 2
	}
	return b.String(), nil
}
