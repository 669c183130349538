package queryargs

import (
	"strconv"
	"time"

	"github.com/tybug/snitchvisbot/internal/domain"
)

// duration units in parse-priority order. "mo" must be tried before "m" so
// "2mo" is two months, not two minutes followed by a stray "o".
var durationUnits = []string{"y", "mo", "w", "d", "h", "m", "s"}

var unitSeconds = map[string]int64{
	// a year as 52 weeks and a month as 4, matching how players reckon them
	"y":  52 * 7 * 24 * 3600,
	"mo": 4 * 7 * 24 * 3600,
	"w":  7 * 24 * 3600,
	"d":  24 * 3600,
	"h":  3600,
	"m":  60,
	"s":  1,
}

// ParseDuration parses a concatenated relative duration such as
// "1y2mo5w2d3h5m2s". The special literal "all" reports unbounded=true with a
// zero duration. Malformed input yields a ValidationError.
func ParseDuration(val string) (time.Duration, bool, error) {
	if val == "all" {
		return 0, true, nil
	}
	if val == "" {
		return 0, false, domain.Validationf("empty duration")
	}

	isUnit := func(s string) bool {
		_, ok := unitSeconds[s]
		return ok
	}

	if !isUnit(val[len(val)-1:]) && (len(val) < 2 || !isUnit(val[len(val)-2:])) {
		return 0, false, domain.Validationf("expected duration to end with one of `y, mo, w, d, h, m, s`, got `%s`", val[len(val)-1:])
	}

	seen := map[string]bool{}
	var total int64
	currentInt := ""

	i := 0
	for i < len(val) {
		unit := ""
		// try the two-char unit first to disambiguate `mo` from `m`
		if i+2 <= len(val) && isUnit(val[i:i+2]) {
			unit = val[i : i+2]
		} else if isUnit(val[i : i+1]) {
			unit = val[i : i+1]
		}

		if unit == "" {
			currentInt += val[i : i+1]
			i++
			continue
		}
		i += len(unit)

		if currentInt == "" {
			return 0, false, domain.Validationf("`%s` must be preceded by an integer", unit)
		}
		n, err := strconv.ParseInt(currentInt, 10, 64)
		if err != nil {
			return 0, false, domain.Validationf("expected a valid integer to precede `%s`, got `%s`", unit, currentInt)
		}
		if seen[unit] {
			return 0, false, domain.Validationf("cannot specify `%s` twice", unit)
		}
		seen[unit] = true

		total += n * unitSeconds[unit]
		currentInt = ""
	}

	if currentInt != "" {
		return 0, false, domain.Validationf("trailing `%s` has no unit", currentInt)
	}

	return time.Duration(total) * time.Second, false, nil
}
