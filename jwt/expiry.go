package jwt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseExpiry converts a human expiry such as "15m", "1h", "7d" or "2w" into a
// duration. A bare integer is read as seconds.
func ParseExpiry(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidExpiry)
	}

	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 || secs > math.MaxInt64/int64(time.Second) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
		}
		return time.Duration(secs) * time.Second, nil
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(value, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(value, "w"):
		unit = 7 * 24 * time.Hour
	}
	if unit > 0 {
		n, err := strconv.ParseFloat(value[:len(value)-1], 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
		}
		// float64(MaxInt64) rounds up to 2^63, so equality already overflows.
		d := n * float64(unit)
		if d >= float64(math.MaxInt64) {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidExpiry, value)
		}
		return time.Duration(d), nil
	}

	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidExpiry, value)
	}
	return d, nil
}
