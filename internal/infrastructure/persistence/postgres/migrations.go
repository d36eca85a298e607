package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrator applies embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every pending migration in its own transaction. The api
// and worker may both migrate on start: each step takes an advisory lock and
// rechecks schema_migrations before applying.
func (m *Migrator) Migrate(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, mig := range m.migrations {
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if err := AcquireXactLocks(ctx, tx, "schema_migrations"); err != nil {
				return err
			}

			var applied bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version).Scan(&applied); err != nil {
				return err
			}
			if applied {
				return nil
			}

			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// GetMigrations returns all embedded migrations in apply order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_event_directory",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "create_match_profiles",
			UpSQL:   migration002Up,
		},
		{
			Version: 3,
			Name:    "create_appointments",
			UpSQL:   migration003Up,
		},
		{
			Version: 4,
			Name:    "index_reservation_tokens",
			UpSQL:   migration004Up,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: EVENT DIRECTORY
// Organizer-owned tables. This service only reads them; they are created here
// so a single database can serve local runs and integration tests.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS event_registrations (
    id VARCHAR(128) NOT NULL,
    event_id VARCHAR(128) NOT NULL,
    participant_id VARCHAR(128) NOT NULL,
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL DEFAULT '',
    registration_type VARCHAR(30) NOT NULL DEFAULT 'ATTENDEE',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (event_id, participant_id)
);

CREATE TABLE IF NOT EXISTS time_slots (
    id VARCHAR(128) PRIMARY KEY,
    event_id VARCHAR(128) NOT NULL,
    starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
    ends_at TIMESTAMP WITH TIME ZONE NOT NULL,
    capacity INTEGER,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,

    CONSTRAINT valid_slot_range CHECK (starts_at < ends_at),
    CONSTRAINT valid_slot_capacity CHECK (capacity IS NULL OR capacity >= 0)
);

CREATE INDEX IF NOT EXISTS idx_time_slots_event_active ON time_slots(event_id, starts_at) WHERE is_active;

CREATE TABLE IF NOT EXISTS meeting_locations (
    id VARCHAR(128) PRIMARY KEY,
    event_id VARCHAR(128) NOT NULL,
    name VARCHAR(200) NOT NULL,
    location_type VARCHAR(30) NOT NULL,
    capacity INTEGER,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,

    CONSTRAINT valid_location_type CHECK (location_type IN ('CONFERENCE_ROOM', 'CAFE', 'OUTDOOR', 'VIRTUAL', 'OTHER')),
    CONSTRAINT valid_location_capacity CHECK (capacity IS NULL OR capacity >= 0)
);

CREATE INDEX IF NOT EXISTS idx_meeting_locations_event ON meeting_locations(event_id);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: MATCH PROFILES
// Profiles are removed together with the owning registration. A trigger is
// used instead of a foreign key so the table also works when registrations
// live in the external event service.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS match_profiles (
    id VARCHAR(64) PRIMARY KEY,
    event_id VARCHAR(128) NOT NULL,
    participant_id VARCHAR(128) NOT NULL,
    headline VARCHAR(140) NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    job_title VARCHAR(200) NOT NULL DEFAULT '',
    company VARCHAR(200) NOT NULL DEFAULT '',
    interests TEXT[] NOT NULL DEFAULT '{}',
    goals TEXT[] NOT NULL DEFAULT '{}',
    availability TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_match_profiles_participant UNIQUE (event_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_match_profiles_event ON match_profiles(event_id);

CREATE OR REPLACE FUNCTION delete_profile_with_registration()
RETURNS TRIGGER AS $$
BEGIN
    DELETE FROM match_profiles
    WHERE event_id = OLD.event_id AND participant_id = OLD.participant_id;
    RETURN OLD;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS cascade_registration_profile ON event_registrations;
CREATE TRIGGER cascade_registration_profile
    AFTER DELETE ON event_registrations
    FOR EACH ROW
    EXECUTE FUNCTION delete_profile_with_registration();
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: APPOINTMENTS AND RESERVATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS slot_reservations (
    token VARCHAR(64) PRIMARY KEY,
    time_slot_id VARCHAR(128) NOT NULL,
    location_id VARCHAR(128) NOT NULL DEFAULT '',
    state VARCHAR(20) NOT NULL DEFAULT 'HELD',
    capacity_limit INTEGER,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_reservation_state CHECK (state IN ('HELD', 'CONFIRMED', 'RELEASED'))
);

CREATE INDEX IF NOT EXISTS idx_slot_reservations_key_active
    ON slot_reservations(time_slot_id, location_id) WHERE state <> 'RELEASED';

-- One live commitment per (slot, participant), regardless of location.
CREATE TABLE IF NOT EXISTS reservation_holders (
    token VARCHAR(64) NOT NULL REFERENCES slot_reservations(token) ON DELETE CASCADE,
    time_slot_id VARCHAR(128) NOT NULL,
    participant_id VARCHAR(128) NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,

    PRIMARY KEY (token, participant_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_reservation_holders_live
    ON reservation_holders(time_slot_id, participant_id) WHERE active;

CREATE TABLE IF NOT EXISTS appointment_requests (
    id VARCHAR(64) PRIMARY KEY,
    event_id VARCHAR(128) NOT NULL,
    requester_id VARCHAR(128) NOT NULL,
    recipient_id VARCHAR(128) NOT NULL,
    time_slot_id VARCHAR(128) NOT NULL,
    location_id VARCHAR(128),
    message VARCHAR(1000) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    reservation_token VARCHAR(64) NOT NULL DEFAULT '',
    decision_reason TEXT NOT NULL DEFAULT '',
    cancelled_by VARCHAR(128) NOT NULL DEFAULT '',
    slot_day TIMESTAMP WITH TIME ZONE NOT NULL,
    slot_starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
    slot_ends_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    decided_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_appointment_status CHECK (status IN ('PENDING', 'ACCEPTED', 'DECLINED', 'CANCELLED', 'COMPLETED')),
    CONSTRAINT distinct_parties CHECK (requester_id <> recipient_id)
);

CREATE INDEX IF NOT EXISTS idx_appointments_requester ON appointment_requests(event_id, requester_id);
CREATE INDEX IF NOT EXISTS idx_appointments_recipient ON appointment_requests(event_id, recipient_id);
CREATE INDEX IF NOT EXISTS idx_appointments_due
    ON appointment_requests(slot_ends_at) WHERE status IN ('PENDING', 'ACCEPTED');
`

// Reconciliation in the sweep looks requests up by reservation token.
const migration004Up = `
CREATE INDEX IF NOT EXISTS idx_appointment_requests_reservation
    ON appointment_requests(reservation_token) WHERE reservation_token <> '';
`
