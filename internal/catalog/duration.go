package catalog

import (
	"fmt"
	"strconv"
	"time"
)

// ParseISODuration parses the ISO 8601 durations the YouTube API returns,
// e.g. "PT1H2M3S", "PT45S" or "P1DT2H". Year and month designators are
// rejected since their length is not fixed.
func ParseISODuration(s string) (time.Duration, error) {
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}

	var (
		total  time.Duration
		num    []byte
		inTime bool
		parts  int
	)
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9' || c == '.':
			num = append(num, c)
		case c == 'T':
			if inTime || len(num) > 0 {
				return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
			}
			inTime = true
		default:
			if len(num) == 0 {
				return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
			}
			v, err := strconv.ParseFloat(string(num), 64)
			if err != nil {
				return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
			}
			num = num[:0]

			var unit time.Duration
			switch {
			case c == 'W' && !inTime:
				unit = 7 * 24 * time.Hour
			case c == 'D' && !inTime:
				unit = 24 * time.Hour
			case c == 'H' && inTime:
				unit = time.Hour
			case c == 'M' && inTime:
				unit = time.Minute
			case c == 'S' && inTime:
				unit = time.Second
			default:
				return 0, fmt.Errorf("unsupported designator %q in duration %q", c, s)
			}
			total += time.Duration(v * float64(unit))
			parts++
		}
	}
	if len(num) > 0 || parts == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}
	return total, nil
}
