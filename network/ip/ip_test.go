package ip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseV4(t *testing.T) {
	parsed, err := parseV4("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, [4]byte{127, 0, 0, 1}, parsed)

	parsed, err = parseV4("0.0.0.0")
	require.NoError(t, err)
	assert.Zero(t, parsed)

	for _, input := range []string{"127.0.0", "1.2.3.4.5", "foo.0.0.1", "256.0.0.1", "127.0.0.01", "1..2.3", "1.2.3.", "-1.2.3.4"} {
		parsed, err := parseV4(input)
		assert.Error(t, err, input)
		assert.Zero(t, parsed, input)
	}
}

func TestParseV6(t *testing.T) {
	valid := map[string][16]byte{
		"ffff:fff:ff:f:0:f0:ff0:fff0": {0xff, 0xff, 0x0f, 0xff, 0x00, 0xff, 0x00, 0x0f, 0x00, 0x00, 0x00, 0xf0, 0x0f, 0xf0, 0xff, 0xf0},
		"::":                          {},
		"::1":                         {15: 1},
		"fe80::":                      {0: 0xfe, 1: 0x80},
		"1:12::FFFF:0:13":             {1: 0x01, 3: 0x12, 10: 0xff, 11: 0xff, 15: 0x13},
		"::ffff:1.2.3.4":              {10: 0xff, 11: 0xff, 12: 1, 13: 2, 14: 3, 15: 4},
		"1:2:3:4:5:6:1.2.3.4":         {1: 1, 3: 2, 5: 3, 7: 4, 9: 5, 11: 6, 12: 1, 13: 2, 14: 3, 15: 4},
	}
	for input, expected := range valid {
		parsed, err := parseV6(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, parsed, input)
	}

	for _, input := range []string{
		"1:2:3:4:5:6:7::8",
		"1:2:3:4:5:6:7",
		"1:2:3:4:5:6:7:8:9",
		"1:::2",
		"1::2::3",
		"12345::",
		"1.2.3.4::",
		"::g",
	} {
		_, err := parseV6(input)
		assert.Error(t, err, input)
	}
}

func TestParseLiteral(t *testing.T) {
	addr, err := ParseLiteral("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, FromV4([4]byte{10, 0, 0, 1}), addr)
	assert.Equal(t, "10.0.0.1", addr.String())

	addr, err = ParseLiteral("[::1]")
	require.NoError(t, err)
	assert.Equal(t, V6, addr.Family)
	assert.Equal(t, "::1", addr.String())

	addr, err = ParseLiteral("fe80::1%7")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), addr.Scope)
	assert.Equal(t, "fe80::1%7", addr.String())

	for _, host := range []string{"example.com", "10.0.0", "[]", "1::2::3"} {
		_, err = ParseLiteral(host)
		assert.ErrorIs(t, err, ErrNotLiteral, host)
	}
}

func TestAddrEquality(t *testing.T) {
	a := FromV6([16]byte{15: 1}, 0)
	b := FromV6([16]byte{15: 1}, 3)

	assert.False(t, a.Equal(b), "scope takes part in identity")
	assert.True(t, a.Equal(FromV6([16]byte{15: 1}, 0)))
	assert.Len(t, FromV4([4]byte{1, 2, 3, 4}).Raw(), 4)
	assert.True(t, Addr{}.IsZero())
}
