package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements matchmaking.ProfileRepository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `
	id, event_id, participant_id, headline, bio, job_title, company,
	interests, goals, availability, created_at, updated_at
`

// Upsert inserts the profile or overwrites the editable fields of the
// existing (event, participant) row. The stored id and created_at win.
func (r *ProfileRepository) Upsert(ctx context.Context, p *matchmaking.MatchProfile) (*matchmaking.MatchProfile, error) {
	query := `
		INSERT INTO match_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id, participant_id) DO UPDATE SET
			headline = EXCLUDED.headline,
			bio = EXCLUDED.bio,
			job_title = EXCLUDED.job_title,
			company = EXCLUDED.company,
			interests = EXCLUDED.interests,
			goals = EXCLUDED.goals,
			availability = EXCLUDED.availability,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns

	row := r.conn.QueryRow(ctx, query,
		p.ID,
		p.EventID,
		p.ParticipantID,
		p.Headline,
		p.Bio,
		p.JobTitle,
		p.Company,
		nonNil(p.Interests),
		nonNil(p.Goals),
		nonNil(p.Availability),
		p.CreatedAt,
		p.UpdatedAt,
	)

	saved, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return saved, nil
}

// GetByID returns a profile by id within an event.
func (r *ProfileRepository) GetByID(ctx context.Context, eventID, profileID string) (*matchmaking.MatchProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM match_profiles WHERE event_id = $1 AND id = $2`
	return scanProfile(r.conn.QueryRow(ctx, query, eventID, profileID))
}

// GetByParticipant returns the participant's profile for an event.
func (r *ProfileRepository) GetByParticipant(ctx context.Context, eventID, participantID string) (*matchmaking.MatchProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM match_profiles WHERE event_id = $1 AND participant_id = $2`
	return scanProfile(r.conn.QueryRow(ctx, query, eventID, participantID))
}

// ListByEvent returns every profile of the event ordered by id.
func (r *ProfileRepository) ListByEvent(ctx context.Context, eventID string) ([]*matchmaking.MatchProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM match_profiles WHERE event_id = $1 ORDER BY id`

	rows, err := r.conn.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*matchmaking.MatchProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// Delete removes the participant's profile.
func (r *ProfileRepository) Delete(ctx context.Context, eventID, participantID string) error {
	result, err := r.conn.Exec(ctx,
		`DELETE FROM match_profiles WHERE event_id = $1 AND participant_id = $2`,
		eventID, participantID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanProfile(row pgx.Row) (*matchmaking.MatchProfile, error) {
	var p matchmaking.MatchProfile

	err := row.Scan(
		&p.ID,
		&p.EventID,
		&p.ParticipantID,
		&p.Headline,
		&p.Bio,
		&p.JobTitle,
		&p.Company,
		&p.Interests,
		&p.Goals,
		&p.Availability,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return &p, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
