// Package formatting reads and writes the byte sizes used for limits in
// configuration, such as "50MB".
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// units are base-1024 multiples; index i scales by 1024^i.
var units = []string{"B", "KB", "MB", "GB", "TB"}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// FormatBytes renders n in the largest unit that divides it exactly, in the
// form ParseBytes accepts, so a configured limit reads back as it was written.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0B"
	}

	i := 0
	for i < len(units)-1 && n%1024 == 0 {
		n /= 1024
		i++
	}
	return strconv.FormatInt(n, 10) + units[i]
}

// ParseBytes parses a size such as "50MB", "1.5 GB" or "4096" into bytes.
// A bare number is bytes and units are case-insensitive.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	exp := 0
	if unit := strings.ToUpper(m[2]); unit != "" {
		exp = slices.Index(units, unit)
		if exp < 0 {
			return 0, fmt.Errorf("unknown byte size unit %q", m[2])
		}
	}

	return int64(value * math.Pow(1024, float64(exp))), nil
}
