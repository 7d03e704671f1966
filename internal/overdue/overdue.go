package overdue

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Status is the outcome of an overdue check.
type Status struct {
	Overdue bool
	Hours   float64
}

// Label formats the overdue magnitude, or "" when not overdue.
func (s Status) Label() string {
	if !s.Overdue {
		return ""
	}
	return FormatOverdue(s.Hours)
}

// ParseStart parses a stored loan start time in loc.
func ParseStart(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TimeLayout, strings.TrimSpace(raw), loc)
}

// Compute checks a stored loan. A start time that does not parse reports
// not overdue instead of failing.
func Compute(startRaw string, hours *float64, days *int, now time.Time, policy Policy) Status {
	start, err := ParseStart(startRaw, now.Location())
	if err != nil {
		return Status{}
	}
	return ComputeAt(start, hours, days, now, policy)
}

// ComputeAt is Compute for an already parsed start time. Loans with neither
// hours nor days follow the policy given here, so a changed default applies
// to them immediately.
func ComputeAt(start time.Time, hours *float64, days *int, now time.Time, policy Policy) Status {
	if start.IsZero() {
		return Status{}
	}
	due := ResolveDueAt(start, SpecFromFields(hours, days), policy)
	late := wallSub(now.In(start.Location()), due)
	if late <= 0 {
		return Status{}
	}
	return Status{Overdue: true, Hours: late.Hours()}
}

// FormatOverdue renders "{H}h{MM}" under a day, whole days otherwise.
func FormatOverdue(hours float64) string {
	if hours < 24 {
		h := int(hours)
		m := int(math.Mod(hours, 1) * 60)
		return fmt.Sprintf("%dh%02d", h, m)
	}
	return fmt.Sprintf("%d jour(s)", int(hours/24))
}

// FormatDuration describes the duration a loan was created with.
// Zero values are treated as unset.
func FormatDuration(durationType string, hours *float64, days *int, cutoff Cutoff) string {
	if durationType == KindEndOfDay.String() {
		return fmt.Sprintf("Fin de journée (%02dh%02d)", cutoff.Hour, cutoff.Minute)
	}
	switch {
	case hours != nil && *hours != 0:
		v := *hours
		if v < 24 {
			h := int(v)
			m := int((v - float64(h)) * 60)
			if m > 0 {
				return fmt.Sprintf("%dh%02d", h, m)
			}
			return fmt.Sprintf("%d heure(s)", h)
		}
		d := v / 24
		if d == math.Trunc(d) {
			return fmt.Sprintf("%d jour(s)", int(d))
		}
		return fmt.Sprintf("%.1f jour(s)", d)
	case days != nil && *days != 0:
		return fmt.Sprintf("%d jour(s)", *days)
	default:
		return "Durée par défaut"
	}
}
