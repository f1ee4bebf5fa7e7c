package content

import (
	"browser-core/application/cache"
	"log/slog"

	"github.com/pkg/errors"
)

// Decoder serves decoded bodies of cache entries, keeping the result in the entry's derived slot
// until the entry changes or the cache needs the memory back.
type Decoder struct {
	logger *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Entry returns the decoded body of e. Incomplete entries are decoded as far as possible
// and the result is not kept.
func (d *Decoder) Entry(e *cache.Entry, enc Encoding) ([]byte, error) {
	if enc == Identity {
		return e.Bytes(), nil
	}

	if data, ok := e.Derived(); ok {
		return data, nil
	}

	version := e.Version()
	complete := e.Complete()

	decoded, err := Decode(enc, e.Bytes())
	if err != nil {
		if !complete {
			return decoded, nil
		}
		return nil, errors.Wrap(err, e.URL())
	}

	if complete {
		e.SetDerived(version, decoded)
		d.logger.Debug("decoded entry",
			slog.String("url", e.URL()),
			slog.String("encoding", string(enc)),
			slog.Int("size", len(decoded)),
		)
	}

	return decoded, nil
}
