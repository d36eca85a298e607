package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Profile events
	EventProfileUpdated EventType = "profile.updated"
	EventProfileDeleted EventType = "profile.deleted"

	// Appointment events
	EventAppointmentRequested EventType = "appointment.requested"
	EventAppointmentAccepted  EventType = "appointment.accepted"
	EventAppointmentDeclined  EventType = "appointment.declined"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventAppointmentCompleted EventType = "appointment.completed"

	// Suggestion events
	EventSuggestionsRegenerated EventType = "suggestions.regenerated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// Correlation returns the correlation ID (empty when unset).
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// ProfileChangedEvent is emitted when a profile is upserted or deleted.
// Both variants invalidate cached suggestions of the event.
type ProfileChangedEvent struct {
	BaseEvent
	EventID       string `json:"event_id"`
	ParticipantID string `json:"participant_id"`
}

// Payload implements Event interface.
func (e ProfileChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":       e.EventID,
		"participant_id": e.ParticipantID,
	}
}

// NewProfileUpdatedEvent creates a profile.updated event.
func NewProfileUpdatedEvent(profileID, eventID, participantID string) ProfileChangedEvent {
	return ProfileChangedEvent{
		BaseEvent:     NewBaseEvent(EventProfileUpdated, profileID),
		EventID:       eventID,
		ParticipantID: participantID,
	}
}

// NewProfileDeletedEvent creates a profile.deleted event.
func NewProfileDeletedEvent(profileID, eventID, participantID string) ProfileChangedEvent {
	return ProfileChangedEvent{
		BaseEvent:     NewBaseEvent(EventProfileDeleted, profileID),
		EventID:       eventID,
		ParticipantID: participantID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Appointment Events
// ═══════════════════════════════════════════════════════════════════════════

// AppointmentEvent is emitted on every appointment state change.
type AppointmentEvent struct {
	BaseEvent
	EventID     string `json:"event_id"`
	RequesterID string `json:"requester_id"`
	RecipientID string `json:"recipient_id"`
	TimeSlotID  string `json:"time_slot_id"`
	LocationID  string `json:"location_id,omitempty"`
	Status      string `json:"status"`
	ActorID     string `json:"actor_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Payload implements Event interface.
func (e AppointmentEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"event_id":     e.EventID,
		"requester_id": e.RequesterID,
		"recipient_id": e.RecipientID,
		"time_slot_id": e.TimeSlotID,
		"status":       e.Status,
	}
	if e.LocationID != "" {
		p["location_id"] = e.LocationID
	}
	if e.ActorID != "" {
		p["actor_id"] = e.ActorID
	}
	if e.Reason != "" {
		p["reason"] = e.Reason
	}
	return p
}

// AppointmentEventParams carries the data for NewAppointmentEvent.
type AppointmentEventParams struct {
	AppointmentID string
	EventID       string
	RequesterID   string
	RecipientID   string
	TimeSlotID    string
	LocationID    string
	Status        string
	ActorID       string
	Reason        string
}

// NewAppointmentEvent creates an appointment event of the given type.
func NewAppointmentEvent(eventType EventType, p AppointmentEventParams) AppointmentEvent {
	return AppointmentEvent{
		BaseEvent:   NewBaseEvent(eventType, p.AppointmentID),
		EventID:     p.EventID,
		RequesterID: p.RequesterID,
		RecipientID: p.RecipientID,
		TimeSlotID:  p.TimeSlotID,
		LocationID:  p.LocationID,
		Status:      p.Status,
		ActorID:     p.ActorID,
		Reason:      p.Reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Suggestion Events
// ═══════════════════════════════════════════════════════════════════════════

// SuggestionsRegeneratedEvent is emitted after a full recomputation.
type SuggestionsRegeneratedEvent struct {
	BaseEvent
	Profiles int           `json:"profiles"`
	Took     time.Duration `json:"took"`
}

// Payload implements Event interface.
func (e SuggestionsRegeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profiles": e.Profiles,
		"took_ms":  e.Took.Milliseconds(),
	}
}

// NewSuggestionsRegeneratedEvent creates a suggestions.regenerated event.
func NewSuggestionsRegeneratedEvent(eventID string, profiles int, took time.Duration) SuggestionsRegeneratedEvent {
	return SuggestionsRegeneratedEvent{
		BaseEvent: NewBaseEvent(EventSuggestionsRegenerated, eventID),
		Profiles:  profiles,
		Took:      took,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
