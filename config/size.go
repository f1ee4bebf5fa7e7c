package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidSize = errors.New("invalid size")

var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize reads a byte count such as "512", "64KB" or "1.5GB". Units are binary.
func ParseSize(s string) (int64, error) {
	num := strings.TrimSpace(s)
	mult := int64(1)
	for _, u := range sizeUnits {
		if rest, ok := strings.CutSuffix(strings.ToUpper(num), u.suffix); ok {
			num, mult = strings.TrimSpace(rest), u.mult
			break
		}
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, errors.Wrapf(ErrInvalidSize, "%q", s)
	}
	return int64(v * float64(mult)), nil
}
