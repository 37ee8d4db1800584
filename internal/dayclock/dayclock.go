// Package dayclock maps wall-clock instants onto leaderboard days.
//
// A leaderboard day is a calendar date under a fixed UTC+8 offset. The host
// timezone is never consulted.
package dayclock

import (
	"time"

	"daily-leaderboard/internal/constants"
)

// Zone is the fixed offset every record date is computed in.
var Zone = time.FixedZone("UTC+8", constants.DayOffsetSeconds)

// Clock is the source of "now". Tests swap in a controllable implementation.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the process clock.
func SystemClock() Clock { return systemClock{} }

type Provider struct {
	clock Clock
}

func New(clock Clock) *Provider {
	if clock == nil {
		clock = SystemClock()
	}
	return &Provider{clock: clock}
}

// NewSystem is the fx constructor.
func NewSystem() *Provider {
	return New(SystemClock())
}

func (p *Provider) Now() time.Time {
	return p.clock.Now()
}

// Today returns the current record date as YYYY-MM-DD.
func (p *Provider) Today() string {
	return DateOf(p.clock.Now())
}

// HourOfDay returns 0-23 under the fixed offset.
func (p *Provider) HourOfDay() int {
	return p.clock.Now().In(Zone).Hour()
}

// UntilNextMidnight is the duration until the next 00:00 under the fixed offset.
func (p *Provider) UntilNextMidnight() time.Duration {
	now := p.clock.Now().In(Zone)
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, Zone)
	return next.Sub(now)
}

func DateOf(t time.Time) string {
	return t.In(Zone).Format(constants.DateLayout)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.ParseInLocation(constants.DateLayout, s, Zone)
	return err == nil
}
