package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY (organizer-owned tables)
// ══════════════════════════════════════════════════════════════════════════════

// Directory implements scheduling.Directory over the shared database.
type Directory struct {
	conn *Connection

	// loc is the event time zone used to derive slot days.
	loc *time.Location
}

// NewDirectory creates a new Directory.
func NewDirectory(conn *Connection, loc *time.Location) *Directory {
	if loc == nil {
		loc = time.UTC
	}
	return &Directory{conn: conn, loc: loc}
}

// GetRegistration returns the participant's registration for the event.
func (d *Directory) GetRegistration(ctx context.Context, eventID, participantID string) (*scheduling.Registration, error) {
	query := `
		SELECT id, event_id, first_name, last_name, email, registration_type
		FROM event_registrations
		WHERE event_id = $1 AND participant_id = $2
	`

	var reg scheduling.Registration
	err := d.conn.QueryRow(ctx, query, eventID, participantID).Scan(
		&reg.ID,
		&reg.EventID,
		&reg.FirstName,
		&reg.LastName,
		&reg.Email,
		&reg.Type,
	)
	if IsNoRows(err) {
		return nil, shared.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	return &reg, nil
}

// GetEventActiveSlots returns the active slots of the event ordered by start.
func (d *Directory) GetEventActiveSlots(ctx context.Context, eventID string) ([]scheduling.TimeSlot, error) {
	query := `
		SELECT id, event_id, starts_at, ends_at, capacity, is_active
		FROM time_slots
		WHERE event_id = $1 AND is_active
		ORDER BY starts_at, id
	`

	rows, err := d.conn.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	defer rows.Close()

	slots := make([]scheduling.TimeSlot, 0)
	for rows.Next() {
		var s scheduling.TimeSlot
		if err := rows.Scan(&s.ID, &s.EventID, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan time slot: %w", err)
		}
		s.StartsAt = s.StartsAt.UTC()
		s.EndsAt = s.EndsAt.UTC()
		s.Day = timeutil.StartOfDay(s.StartsAt, d.loc)
		slots = append(slots, s)
	}

	return slots, rows.Err()
}

// GetEventLocations returns all meeting locations of the event.
func (d *Directory) GetEventLocations(ctx context.Context, eventID string) ([]scheduling.MeetingLocation, error) {
	query := `
		SELECT id, event_id, name, location_type, capacity, is_active
		FROM meeting_locations
		WHERE event_id = $1
		ORDER BY name, id
	`

	rows, err := d.conn.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meeting locations: %w", err)
	}
	defer rows.Close()

	locations := make([]scheduling.MeetingLocation, 0)
	for rows.Next() {
		var l scheduling.MeetingLocation
		var locType string
		if err := rows.Scan(&l.ID, &l.EventID, &l.Name, &locType, &l.Capacity, &l.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan meeting location: %w", err)
		}
		l.Type = scheduling.LocationType(locType)
		locations = append(locations, l)
	}

	return locations, rows.Err()
}
