package queryargs

import (
	"strconv"
	"strings"
	"time"

	"github.com/tybug/snitchvisbot/internal/domain"
)

// ParseDate parses an absolute date in `mm/dd/yyyy` or `mm/dd/yy` form.
// Two-digit years are taken as 20xx.
func ParseDate(val string) (time.Time, error) {
	parts := strings.Split(val, "/")
	if len(parts) != 3 {
		return time.Time{}, domain.Validationf("invalid date `%s`. Expected format `mm/dd/yyyy`", val)
	}

	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, domain.Validationf("invalid month `%s`", parts[0])
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, domain.Validationf("invalid day `%s`", parts[1])
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, domain.Validationf("invalid year `%s`", parts[2])
	}

	switch len(parts[2]) {
	case 2:
		year += 2000
	case 4:
	default:
		return time.Time{}, domain.Validationf("invalid year `%s`. Must be either 2 or 4 digits", parts[2])
	}

	if month < 1 || month > 12 {
		return time.Time{}, domain.Validationf("invalid month `%d`. Must be between `1` and `12` inclusive", month)
	}
	if day < 1 || day > 31 {
		return time.Time{}, domain.Validationf("invalid day `%d`. Must be between `1` and `31` inclusive", day)
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}
