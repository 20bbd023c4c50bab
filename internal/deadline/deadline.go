// Package deadline reconstructs a participant's remaining exam time from the
// instant they started, so a restart of the participant never resets the clock.
package deadline

import (
	"fmt"
	"time"
)

// TickInterval is how often a running countdown is sampled.
const TickInterval = time.Second

// Remaining returns how much of durationMinutes is left at now for an exam
// started at start, floored at zero.
func Remaining(start time.Time, durationMinutes int, now time.Time) time.Duration {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	left := end.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Reading is one sample of a countdown.
type Reading struct {
	Remaining time.Duration
	// Expired is true only on the sample where the countdown first reached zero.
	Expired bool
}

// Countdown is an edge-triggered view over Remaining. It is a value: Sample
// returns the next Countdown instead of mutating the receiver.
type Countdown struct {
	start time.Time
	fired bool
}

// NewCountdown starts a countdown anchored at start.
func NewCountdown(start time.Time) Countdown {
	return Countdown{start: start}
}

// Start returns the anchor instant.
func (c Countdown) Start() time.Time { return c.start }

// Fired reports whether expiry has already been signalled.
func (c Countdown) Fired() bool { return c.fired }

// Sample reads the countdown at now using the latest known duration.
// Duration is re-read on every sample, so examiner edits move the deadline.
func (c Countdown) Sample(durationMinutes int, now time.Time) (Countdown, Reading) {
	left := Remaining(c.start, durationMinutes, now)
	r := Reading{Remaining: left}
	if left == 0 && !c.fired {
		c.fired = true
		r.Expired = true
	}
	return c, r
}

// Format renders a remaining duration as MM:SS, or H:MM:SS past an hour.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
