package ip

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseV4 accepts exactly four decimal octets without leading zeros.
func parseV4(s string) (out [4]byte, _ error) {
	for i := range out {
		octet, rest, ok := strings.Cut(s, ".")
		if ok != (i < 3) {
			return [4]byte{}, errors.New("address needs four dot-separated octets")
		}
		s = rest
		if len(octet) > 1 && octet[0] == '0' {
			return [4]byte{}, errors.Errorf("leading zero in octet %q", octet)
		}
		n, err := strconv.ParseUint(octet, 10, 8)
		if err != nil {
			return [4]byte{}, errors.Wrapf(err, "octet %d", i+1)
		}
		out[i] = byte(n)
	}
	return out, nil
}

// parseV6 accepts the RFC 4291 text forms: eight groups, a single "::"
// standing for one or more zero groups, and a dotted quad in place of the
// last two groups.
func parseV6(s string) ([16]byte, error) {
	head, tail, compressed := strings.Cut(s, "::")

	front, err := v6Groups(head, !compressed)
	if err != nil {
		return [16]byte{}, err
	}
	var back []byte
	if compressed {
		if back, err = v6Groups(tail, true); err != nil {
			return [16]byte{}, err
		}
	}

	var out [16]byte
	switch n := len(front) + len(back); {
	case !compressed && n != len(out):
		return out, errors.Errorf("%q is not 128 bits long", s)
	case compressed && n > len(out)-2:
		return out, errors.Errorf("%q leaves nothing for \"::\" to stand for", s)
	}
	copy(out[:], front)
	copy(out[len(out)-len(back):], back)
	return out, nil
}

// v6Groups decodes colon-separated hex groups. Only the final group of the
// address may be a dotted quad.
func v6Groups(s string, final bool) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	groups := strings.Split(s, ":")
	out := make([]byte, 0, 2*len(groups))
	for i, g := range groups {
		if final && i == len(groups)-1 && strings.Contains(g, ".") {
			v4, err := parseV4(g)
			if err != nil {
				return nil, errors.Wrap(err, "embedded ipv4")
			}
			out = append(out, v4[:]...)
			continue
		}

		if g == "" || len(g) > 4 {
			return nil, errors.Errorf("bad group %q", g)
		}
		n, err := strconv.ParseUint(g, 16, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "group %q", g)
		}
		out = append(out, byte(n>>8), byte(n))
	}
	return out, nil
}
