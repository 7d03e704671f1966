// Package overdue resolves loan duration specs into due dates and decides
// whether an unreturned loan is overdue.
//
// Everything here is a pure function of its arguments: callers pass the
// installation policy and the current time explicitly.
package overdue

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the storage format of loan timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// EndOfDayGraceHours is the duration given to an end-of-day loan created at
// or after the cutoff.
const EndOfDayGraceHours = 0.5

// Unit is the unit of the installation default duration.
type Unit string

const (
	UnitHours Unit = "heures"
	UnitDays  Unit = "jours"
)

// ParseUnit maps a stored unit to a Unit. Anything that is not hours is days.
func ParseUnit(raw string) Unit {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(UnitHours), "hours", "heure", "h":
		return UnitHours
	default:
		return UnitDays
	}
}

// Label returns the human readable unit.
func (u Unit) Label() string {
	if u == UnitHours {
		return "heure(s)"
	}
	return "jour(s)"
}

// Kind tells which variant a Spec holds.
type Kind int

const (
	KindDefault Kind = iota
	KindHours
	KindDays
	KindEndOfDay
)

func (k Kind) String() string {
	switch k {
	case KindHours:
		return "heures"
	case KindDays:
		return "jours"
	case KindEndOfDay:
		return "fin_journee"
	default:
		return "defaut"
	}
}

// Spec is a loan duration specification. Only the payload matching Kind is
// meaningful.
type Spec struct {
	Kind  Kind
	Hours float64
	Days  int
}

func Hours(h float64) Spec { return Spec{Kind: KindHours, Hours: h} }
func Days(d int) Spec      { return Spec{Kind: KindDays, Days: d} }
func EndOfDay() Spec       { return Spec{Kind: KindEndOfDay} }
func Default() Spec        { return Spec{Kind: KindDefault} }

// Fields returns the nullable columns a loan stores for this spec.
// EndOfDay must be resolved before persisting; it yields no fields here.
func (s Spec) Fields() (hours *float64, days *int) {
	switch s.Kind {
	case KindHours:
		h := s.Hours
		return &h, nil
	case KindDays:
		d := s.Days
		return nil, &d
	default:
		return nil, nil
	}
}

// SpecFromFields rebuilds a spec from stored columns. Hours wins over days;
// neither means the live installation default.
func SpecFromFields(hours *float64, days *int) Spec {
	if hours != nil {
		return Hours(*hours)
	}
	if days != nil {
		return Days(*days)
	}
	return Default()
}

// Cutoff is a wall-clock time of day.
type Cutoff struct {
	Hour   int
	Minute int
}

// DefaultCutoff is 17:45.
var DefaultCutoff = Cutoff{Hour: 17, Minute: 45}

var cutoffPattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// ParseCutoff parses "HH:MM".
func ParseCutoff(raw string) (Cutoff, error) {
	raw = strings.TrimSpace(raw)
	if !cutoffPattern.MatchString(raw) {
		return Cutoff{}, fmt.Errorf("invalid cutoff %q: expected HH:MM", raw)
	}
	parts := strings.SplitN(raw, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	if h > 23 || m > 59 {
		return Cutoff{}, fmt.Errorf("invalid cutoff %q: out of range", raw)
	}
	return Cutoff{Hour: h, Minute: m}, nil
}

func (c Cutoff) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the cutoff on the calendar date of t, in t's location.
func (c Cutoff) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
}

// Policy is a snapshot of the installation settings the resolver needs.
type Policy struct {
	Duration float64
	Unit     Unit
	Cutoff   Cutoff
}

// DefaultPolicy is the policy of a fresh installation: 7 days, 17:45.
func DefaultPolicy() Policy {
	return Policy{Duration: 7, Unit: UnitDays, Cutoff: DefaultCutoff}
}

// ParsePolicy converts the string encoded settings. The cutoff is optional:
// an empty value keeps DefaultCutoff.
func ParsePolicy(durationRaw, unitRaw, cutoffRaw string) (Policy, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(durationRaw), 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		return Policy{}, fmt.Errorf("invalid default duration %q", durationRaw)
	}
	if d <= 0 {
		return Policy{}, fmt.Errorf("default duration must be positive, got %v", d)
	}

	p := Policy{Duration: d, Unit: ParseUnit(unitRaw), Cutoff: DefaultCutoff}
	if strings.TrimSpace(cutoffRaw) != "" {
		c, err := ParseCutoff(cutoffRaw)
		if err != nil {
			return Policy{}, err
		}
		p.Cutoff = c
	}
	return p, nil
}

// ResolveEndOfDay freezes an end-of-day loan into a fixed hour count measured
// from start. The result does not depend on later cutoff changes.
func ResolveEndOfDay(start time.Time, cutoff Cutoff) Spec {
	end := cutoff.On(start)
	if !end.After(start) {
		return Hours(EndOfDayGraceHours)
	}
	hours, _ := decimal.NewFromFloat(wallSub(end, start).Hours()).RoundBank(2).Float64()
	return Hours(hours)
}

// ResolveDueAt returns the theoretical return time of a loan.
func ResolveDueAt(start time.Time, spec Spec, policy Policy) time.Time {
	switch spec.Kind {
	case KindHours:
		return wallAdd(start, hoursToDuration(spec.Hours))
	case KindDays:
		return start.AddDate(0, 0, spec.Days)
	case KindEndOfDay:
		return ResolveDueAt(start, ResolveEndOfDay(start, policy.Cutoff), policy)
	default:
		if policy.Unit == UnitHours {
			return wallAdd(start, hoursToDuration(policy.Duration))
		}
		if policy.Duration == math.Trunc(policy.Duration) {
			return start.AddDate(0, 0, int(policy.Duration))
		}
		return wallAdd(start, hoursToDuration(policy.Duration*24))
	}
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(math.Round(h * float64(time.Hour)))
}

// wallClock re-reads t's local fields as UTC. Loan durations are counted on
// this clock: 24 hours after 20:00 is 20:00 the next day across a clock change.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func wallAdd(t time.Time, d time.Duration) time.Time {
	w := wallClock(t).Add(d)
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), t.Location())
}

func wallSub(a, b time.Time) time.Duration {
	return wallClock(a).Sub(wallClock(b.In(a.Location())))
}

// ParseSpec turns the loan form choice and raw numeric input into a spec.
// Input that does not parse falls through to Default. An end-of-day choice
// is resolved immediately against start.
func ParseSpec(choice, rawHours, rawDays string, start time.Time, cutoff Cutoff) Spec {
	switch strings.TrimSpace(choice) {
	case "heures", "hours":
		h, err := strconv.ParseFloat(strings.TrimSpace(rawHours), 64)
		if err != nil || math.IsNaN(h) || math.IsInf(h, 0) {
			return Default()
		}
		return Hours(h)
	case "jours", "days":
		d, err := strconv.Atoi(strings.TrimSpace(rawDays))
		if err != nil {
			return Default()
		}
		return Days(d)
	case "fin_journee", "end_of_day":
		return ResolveEndOfDay(start, cutoff)
	default:
		return Default()
	}
}
