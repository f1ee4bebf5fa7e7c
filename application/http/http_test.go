package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	valid := map[string]Version{
		"HTTP/1.1":  Version11,
		"HTTP/1.0":  Version10,
		"http/1.1":  Version11,
		"HTTP/0.9":  Version09,
		"HTTP/2.0":  {2, 0},
		"HTTP/12.3": {12, 3},
	}
	for input, expected := range valid {
		ver, err := ParseVersion([]byte(input))
		require.NoError(t, err, input)
		assert.Equal(t, expected, ver, input)
	}

	for _, input := range []string{"", "HTTP", "1.1", "HTTP1.1", "HTTP/1", "HTTP/1.", "HTTP/.1", "HTTP/1.1.1", "HTTP/+1.1", "HTTP/1.-1", "HTTP/x.y"} {
		_, err := ParseVersion([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "HTTP/1.1", Version11.String())
	assert.Equal(t, "HTTP/0.9", Version09.String())
	assert.Equal(t, "HTTP/10.20", Version{10, 20}.String())
}

func TestParseField(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		expected Field
		wantErr  bool
	}{
		{desc: "plain", input: "Host: example.com", expected: NewField("Host", "example.com")},
		{desc: "surrounding whitespace", input: "Content-Type: \t text/html\t ", expected: NewField("Content-Type", "text/html")},
		{desc: "no space after colon", input: "A:b", expected: NewField("A", "b")},
		{desc: "colon in value", input: "Location: http://x/", expected: NewField("Location", "http://x/")},
		{desc: "empty value", input: "X-Empty:", expected: NewField("X-Empty", "")},
		{desc: "odd name kept", input: "odd name: v", expected: NewField("odd name", "v")},
		{desc: "no colon", input: "just text", wantErr: true},
		{desc: "empty name", input: ": value", wantErr: true},
		{desc: "space before colon", input: "Host : example.com", wantErr: true},
		{desc: "tab before colon", input: "Host\t: example.com", wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			f, err := ParseField([]byte(tc.input))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected.String(), f.String())
		})
	}
}

func TestCheckField(t *testing.T) {
	assert.NoError(t, CheckField(NewField("X-Token", "a b; c=\"d\"")))
	assert.NoError(t, CheckField(NewField("X-Empty", "")))

	for _, f := range []Field{
		NewField("", "v"),
		NewField("Bad Name", "v"),
		NewField("Bad:Name", "v"),
		NewField("X-Split", "a\r\nInjected: yes"),
		NewField("X-Nul", "a\x00b"),
	} {
		assert.ErrorIs(t, CheckField(f), ErrInvalidField, f.String())
	}
}
