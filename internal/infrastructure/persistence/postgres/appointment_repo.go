package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPOINTMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AppointmentRepository implements scheduling.AppointmentRepository for PostgreSQL.
type AppointmentRepository struct {
	conn *Connection
}

// NewAppointmentRepository creates a new AppointmentRepository.
func NewAppointmentRepository(conn *Connection) *AppointmentRepository {
	return &AppointmentRepository{conn: conn}
}

const appointmentColumns = `
	id, event_id, requester_id, recipient_id, time_slot_id, location_id,
	message, status, reservation_token, decision_reason, cancelled_by,
	slot_day, slot_starts_at, slot_ends_at, created_at, updated_at, decided_at
`

// Create inserts a new appointment request.
func (r *AppointmentRepository) Create(ctx context.Context, a *scheduling.AppointmentRequest) error {
	query := `
		INSERT INTO appointment_requests (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.conn.Exec(ctx, query,
		a.ID,
		a.EventID,
		a.RequesterID,
		a.RecipientID,
		a.TimeSlotID,
		nullableString(a.LocationID),
		a.Message,
		string(a.Status),
		a.ReservationToken,
		a.DecisionReason,
		a.CancelledBy,
		a.SlotDay,
		a.SlotStartsAt,
		a.SlotEndsAt,
		a.CreatedAt,
		a.UpdatedAt,
		a.DecidedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("scheduling", "CreateAppointment", shared.ErrAlreadyExists, shared.CodeValidation, "appointment already exists")
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	return nil
}

// GetByID returns an appointment request by id.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*scheduling.AppointmentRequest, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointment_requests WHERE id = $1`
	return scanAppointment(r.conn.QueryRow(ctx, query, id))
}

// Update writes the mutable fields when the stored status still equals expected.
func (r *AppointmentRepository) Update(ctx context.Context, a *scheduling.AppointmentRequest, expected scheduling.Status) error {
	query := `
		UPDATE appointment_requests SET
			status = $1,
			reservation_token = $2,
			decision_reason = $3,
			cancelled_by = $4,
			updated_at = $5,
			decided_at = $6
		WHERE id = $7 AND status = $8
	`

	result, err := r.conn.Exec(ctx, query,
		string(a.Status),
		a.ReservationToken,
		a.DecisionReason,
		a.CancelledBy,
		a.UpdatedAt,
		a.DecidedAt,
		a.ID,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either the row is gone or someone moved it out of the expected status.
		if _, getErr := r.GetByID(ctx, a.ID); getErr != nil {
			return getErr
		}
		return shared.ErrInvalidTransition.WithMessage("appointment %s is no longer %s", a.ID, expected)
	}

	return nil
}

// ListByParticipant returns requests where the participant is either party.
func (r *AppointmentRepository) ListByParticipant(ctx context.Context, f scheduling.AppointmentFilter) ([]*scheduling.AppointmentRequest, error) {
	var sb strings.Builder
	args := []interface{}{f.ParticipantID}

	sb.WriteString(`SELECT ` + appointmentColumns + ` FROM appointment_requests
		WHERE (requester_id = $1 OR recipient_id = $1)`)

	if f.EventID != "" {
		args = append(args, f.EventID)
		fmt.Fprintf(&sb, " AND event_id = $%d", len(args))
	}
	if len(f.Statuses) > 0 {
		args = append(args, statusStrings(f.Statuses))
		fmt.Fprintf(&sb, " AND status = ANY($%d)", len(args))
	}

	sb.WriteString(" ORDER BY slot_starts_at, created_at, id")

	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// ListDue returns requests in the given statuses whose slot ended by endedBefore.
func (r *AppointmentRepository) ListDue(ctx context.Context, statuses []scheduling.Status, endedBefore time.Time, limit int) ([]*scheduling.AppointmentRequest, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointment_requests
		WHERE status = ANY($1) AND slot_ends_at <= $2
		ORDER BY slot_ends_at, id
		LIMIT $3`

	rows, err := r.conn.Query(ctx, query, statusStrings(statuses), endedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due appointments: %w", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// ListByReservationTokens returns requests holding one of the tokens.
func (r *AppointmentRepository) ListByReservationTokens(ctx context.Context, tokens []string) ([]*scheduling.AppointmentRequest, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointment_requests
		WHERE reservation_token = ANY($1)`

	rows, err := r.conn.Query(ctx, query, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments by reservation: %w", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanAppointment(row pgx.Row) (*scheduling.AppointmentRequest, error) {
	var a scheduling.AppointmentRequest
	var locationID *string
	var status string

	err := row.Scan(
		&a.ID,
		&a.EventID,
		&a.RequesterID,
		&a.RecipientID,
		&a.TimeSlotID,
		&locationID,
		&a.Message,
		&status,
		&a.ReservationToken,
		&a.DecisionReason,
		&a.CancelledBy,
		&a.SlotDay,
		&a.SlotStartsAt,
		&a.SlotEndsAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.DecidedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan appointment: %w", err)
	}

	if locationID != nil {
		a.LocationID = *locationID
	}
	a.Status = scheduling.Status(status)

	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]*scheduling.AppointmentRequest, error) {
	out := make([]*scheduling.AppointmentRequest, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func statusStrings(statuses []scheduling.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
