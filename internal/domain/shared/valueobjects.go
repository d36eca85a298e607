package shared

import (
	"regexp"
	"sync"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Identifiers issued by the event service are opaque strings (UUIDs or
// slugs). We only guard against obviously malformed input.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// EventID identifies an event owned by the event service.
type EventID string

// IsValid checks if the event ID is well-formed.
func (e EventID) IsValid() bool { return idRegex.MatchString(string(e)) }

// String returns the string representation.
func (e EventID) String() string { return string(e) }

// NewEventID creates a new EventID with validation.
func NewEventID(id string) (EventID, error) {
	if !EventID(id).IsValid() {
		return "", Validation("shared", "NewEventID", "invalid event id %q", id)
	}
	return EventID(id), nil
}

// ParticipantID identifies a participant registration in an event.
type ParticipantID string

// IsValid checks if the participant ID is well-formed.
func (p ParticipantID) IsValid() bool { return idRegex.MatchString(string(p)) }

// String returns the string representation.
func (p ParticipantID) String() string { return string(p) }

// NewParticipantID creates a new ParticipantID with validation.
func NewParticipantID(id string) (ParticipantID, error) {
	if !ParticipantID(id).IsValid() {
		return "", Validation("shared", "NewParticipantID", "invalid participant id %q", id)
	}
	return ParticipantID(id), nil
}

// IsValidID reports whether s looks like an identifier issued by a collaborator.
func IsValidID(s string) bool { return idRegex.MatchString(s) }

// ═══════════════════════════════════════════════════════════════════════════
// Clock
// ═══════════════════════════════════════════════════════════════════════════

// Clock abstracts the current time so that time-dependent rules
// (cancel before start, completion sweep) are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ManualClock is a Clock under test control.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
