// Package cheat turns platform visibility and fullscreen signals into a
// self-reported violation counter. The counter is telemetry: the examiner
// never verifies it.
package cheat

import "time"

// WarningDuration is how long the "you left the exam" notice stays visible
// after the participant returns.
const WarningDuration = 5 * time.Second

// Signal is what a platform event meant to the monitor.
type Signal int

const (
	SignalNone Signal = iota
	// SignalViolation means the counter was incremented.
	SignalViolation
	// SignalReturned means the page became visible again and a warning is showing.
	SignalReturned
	// SignalUnblocked means fullscreen was re-entered and answering may resume.
	SignalUnblocked
)

// Monitor counts violations while active. It starts inactive; fullscreen
// state is tracked even then so Blocked is correct the moment it activates.
type Monitor struct {
	active     bool
	enforce    bool
	fullscreen bool
	count      int
	warnUntil  time.Time
}

// NewMonitor returns an inactive monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Activate begins observation.
func (m *Monitor) Activate(enforceFullscreen, fullscreen bool) {
	m.active = true
	m.enforce = enforceFullscreen
	m.fullscreen = fullscreen
}

// Deactivate stops observation. The counter is kept.
func (m *Monitor) Deactivate() {
	m.active = false
	m.warnUntil = time.Time{}
}

// Active reports whether signals are currently counted.
func (m *Monitor) Active() bool { return m.active }

// SetEnforce follows the examiner's enforceFullscreen setting.
func (m *Monitor) SetEnforce(enforce bool) { m.enforce = enforce }

// VisibilityChanged handles a page visibility change.
func (m *Monitor) VisibilityChanged(hidden bool, now time.Time) Signal {
	if !m.active {
		return SignalNone
	}
	if hidden {
		m.count++
		return SignalViolation
	}
	m.warnUntil = now.Add(WarningDuration)
	return SignalReturned
}

// FullscreenChanged handles entering or leaving fullscreen. Only a
// transition out of fullscreen with enforcement on is a violation.
func (m *Monitor) FullscreenChanged(on bool) Signal {
	was := m.fullscreen
	m.fullscreen = on
	if !m.active || !m.enforce {
		return SignalNone
	}
	switch {
	case was && !on:
		m.count++
		return SignalViolation
	case !was && on:
		return SignalUnblocked
	}
	return SignalNone
}

// Violations returns the monotonic violation count.
func (m *Monitor) Violations() int { return m.count }

// Blocked reports whether answering must be prevented until fullscreen is
// re-entered.
func (m *Monitor) Blocked() bool {
	return m.active && m.enforce && !m.fullscreen
}

// Warning reports whether the return notice is still showing at now.
func (m *Monitor) Warning(now time.Time) bool {
	return m.active && now.Before(m.warnUntil)
}
