package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultSessions 上期所镍、不锈钢交易时段（含夜盘）
var DefaultSessions = []string{"09:00-10:15", "10:30-11:30", "13:30-15:00", "21:00-23:00"}

// Session is a daily trading window in minutes since midnight. End is inclusive
// and may be earlier than Start for windows that cross midnight.
type Session struct {
	Start int
	End   int
}

func (s Session) contains(minute int) bool {
	if s.End >= s.Start {
		return minute >= s.Start && minute <= s.End
	}
	return minute >= s.Start || minute <= s.End
}

func (s Session) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", s.Start/60, s.Start%60, s.End/60, s.End%60)
}

// Sessions is a set of trading windows evaluated in a fixed location.
type Sessions struct {
	Windows  []Session
	Location *time.Location
}

// ParseSessions parses "HH:MM-HH:MM" windows. loc defaults to time.Local.
func ParseSessions(specs []string, loc *time.Location) (Sessions, error) {
	if loc == nil {
		loc = time.Local
	}
	out := Sessions{Location: loc}
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.SplitN(spec, "-", 2)
		if len(parts) != 2 {
			return Sessions{}, fmt.Errorf("invalid session %q: want HH:MM-HH:MM", spec)
		}
		start, err := parseClock(parts[0])
		if err != nil {
			return Sessions{}, fmt.Errorf("invalid session %q: %w", spec, err)
		}
		end, err := parseClock(parts[1])
		if err != nil {
			return Sessions{}, fmt.Errorf("invalid session %q: %w", spec, err)
		}
		out.Windows = append(out.Windows, Session{Start: start, End: end})
	}
	sort.Slice(out.Windows, func(i, j int) bool { return out.Windows[i].Start < out.Windows[j].Start })
	return out, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Empty reports whether no windows are configured.
func (s Sessions) Empty() bool {
	return len(s.Windows) == 0
}

// Contains reports whether t falls inside any window.
func (s Sessions) Contains(t time.Time) bool {
	local := t.In(s.location())
	minute := local.Hour()*60 + local.Minute()
	for _, w := range s.Windows {
		if w.contains(minute) {
			return true
		}
	}
	return false
}

// NextOpen returns the next window start strictly after t, zero when empty.
func (s Sessions) NextOpen(t time.Time) time.Time {
	if s.Empty() {
		return time.Time{}
	}
	local := t.In(s.location())
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	for d := 0; d <= 1; d++ {
		base := midnight.AddDate(0, 0, d)
		for _, w := range s.Windows {
			start := base.Add(time.Duration(w.Start) * time.Minute)
			if start.After(local) {
				return start
			}
		}
	}
	return time.Time{}
}

// String renders the windows comma separated.
func (s Sessions) String() string {
	parts := make([]string, len(s.Windows))
	for i, w := range s.Windows {
		parts[i] = w.String()
	}
	return strings.Join(parts, ",")
}

func (s Sessions) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}
