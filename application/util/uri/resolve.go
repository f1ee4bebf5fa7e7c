package uri

import (
	"browser-core/lib/ds/stack"
	"strings"

	"github.com/pkg/errors"
)

var ErrRelativeBase = errors.New("base URI is a relative reference")

// Resolve returns the target ref points to from base.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.2.2
func Resolve(base, ref URI) (URI, error) {
	if base.IsRelativeRef() {
		return URI{}, errors.Wrap(ErrRelativeBase, base.String())
	}

	target := ref
	switch {
	case ref.Scheme != "":
	case ref.Authority != nil:
		target.Scheme = base.Scheme
	case ref.Path == "":
		target.Scheme, target.Authority, target.Path = base.Scheme, base.Authority, base.Path
		if ref.Query == nil {
			target.Query = base.Query
		}
	default:
		target.Scheme, target.Authority = base.Scheme, base.Authority
		if ref.Path[0] != '/' {
			target.Path = mergePath(base, ref.Path)
		}
	}

	target.Path = removeDotSegments(target.Path)
	return target, nil
}

func mergePath(base URI, ref string) string {
	if base.Authority != nil && base.Path == "" {
		return "/" + ref
	}
	if i := strings.LastIndexByte(base.Path, '/'); i >= 0 {
		return base.Path[:i+1] + ref
	}
	return ref
}

// removeDotSegments drops "." segments and lets ".." cancel the segment
// before it. A trailing dot segment leaves the path ending in '/'.
func removeDotSegments(path string) string {
	if !strings.Contains(path, ".") {
		return path
	}

	rooted := strings.HasPrefix(path, "/")
	if rooted {
		path = path[1:]
	}

	segments := strings.Split(path, "/")
	out := stack.New[string](uint(len(segments)))
	for i, seg := range segments {
		last := i == len(segments)-1
		switch seg {
		case "..":
			out.Pop()
			fallthrough
		case ".":
			if last {
				out.Push("")
			}
		default:
			out.Push(seg)
		}
	}

	joined := strings.Join(out.Bottom(), "/")
	if rooted {
		return "/" + joined
	}
	return joined
}
