package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	base, err := Parse("http://a/b/c/d;p?q")
	require.NoError(t, err)

	// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.4
	testcases := map[string]string{
		"g:h":     "g:h",
		"g":       "http://a/b/c/g",
		"./g":     "http://a/b/c/g",
		"g/":      "http://a/b/c/g/",
		"/g":      "http://a/g",
		"//g":     "http://g",
		"?y":      "http://a/b/c/d;p?y",
		"g?y":     "http://a/b/c/g?y",
		"#s":      "http://a/b/c/d;p?q#s",
		"g#s":     "http://a/b/c/g#s",
		"g?y#s":   "http://a/b/c/g?y#s",
		";x":      "http://a/b/c/;x",
		"g;x?y#s": "http://a/b/c/g;x?y#s",
		"":        "http://a/b/c/d;p?q",
		".":       "http://a/b/c/",
		"./":      "http://a/b/c/",
		"..":      "http://a/b/",
		"../":     "http://a/b/",
		"../g":    "http://a/b/g",
		"../..":   "http://a/",
		"../../":  "http://a/",
		"../../g": "http://a/g",

		"../../../g":    "http://a/g",
		"../../../../g": "http://a/g",
		"/./g":          "http://a/g",
		"/../g":         "http://a/g",
		"g.":            "http://a/b/c/g.",
		".g":            "http://a/b/c/.g",
		"g..":           "http://a/b/c/g..",
		"..g":           "http://a/b/c/..g",
		"./../g":        "http://a/b/g",
		"./g/.":         "http://a/b/c/g/",
		"g/./h":         "http://a/b/c/g/h",
		"g/../h":        "http://a/b/c/h",
		"g;x=1/./y":     "http://a/b/c/g;x=1/y",
		"g;x=1/../y":    "http://a/b/c/y",
		"g?y/./x":       "http://a/b/c/g?y/./x",
		"g#s/../x":      "http://a/b/c/g#s/../x",
		"http:g":        "http:g",
	}

	for input, expected := range testcases {
		t.Run(input, func(t *testing.T) {
			ref, err := Parse(input)
			require.NoError(t, err)

			target, err := Resolve(base, ref)
			require.NoError(t, err)
			assert.Equal(t, expected, target.String())
		})
	}
}

func TestResolveRelativeBase(t *testing.T) {
	base, err := Parse("relative/path")
	require.NoError(t, err)

	_, err = Resolve(base, URI{Path: "g"})
	assert.ErrorIs(t, err, ErrRelativeBase)
}

func TestResolveEmptyBasePath(t *testing.T) {
	base, err := Parse("http://example.com")
	require.NoError(t, err)

	target, err := Resolve(base, URI{Path: "page"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/page", target.String())
}

func TestRemoveDotSegments(t *testing.T) {
	testcases := map[string]string{
		"":                    "",
		"/":                   "/",
		"/a//b":               "/a//b",
		"/a/b/c/./../../g":    "/a/g",
		"mid/content=5/../6":  "mid/6",
		"/..":                 "/",
		"../a":                "a",
		"/no/dots/at/all.txt": "/no/dots/at/all.txt",
	}

	for input, expected := range testcases {
		assert.Equal(t, expected, removeDotSegments(input), input)
	}
}
