package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SLOT REGISTRY IMPLEMENTATION
// Every call is one transaction. Transaction-scoped advisory locks on the
// (slot, location) key and on each (slot, participant) key, for the slot and
// every slot overlapping it, serialize competing callers; the partial unique index on reservation_holders is
// the last line for the participant invariant.
// ══════════════════════════════════════════════════════════════════════════════

// SlotRegistry implements scheduling.SlotRegistry for PostgreSQL.
type SlotRegistry struct {
	conn  *Connection
	clock shared.Clock
}

// NewSlotRegistry creates a new SlotRegistry.
func NewSlotRegistry(conn *Connection, clock shared.Clock) *SlotRegistry {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &SlotRegistry{conn: conn, clock: clock}
}

// Reserve places a HELD reservation for the requester and counterpart.
func (r *SlotRegistry) Reserve(ctx context.Context, params scheduling.ReserveParams) (scheduling.ReservationToken, error) {
	holders := params.Holders()
	if params.TimeSlotID == "" || len(holders) == 0 {
		return "", shared.Validation("scheduling", "Reserve", "time slot and participant are required")
	}

	token := scheduling.ReservationToken(uuid.NewString())
	now := r.clock.Now()

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := AcquireXactLocks(ctx, tx, params.LockKeys()...); err != nil {
			return err
		}

		var booked int
		err := tx.QueryRow(ctx, `
			SELECT count(*) FROM reservation_holders
			WHERE time_slot_id = ANY($1) AND participant_id = ANY($2) AND active
		`, params.CommitmentSlots(), holders).Scan(&booked)
		if err != nil {
			return fmt.Errorf("count participant holds: %w", err)
		}
		if booked > 0 {
			return shared.ErrParticipantDoubleBooked
		}

		occupied, err := countActive(ctx, tx, params.TimeSlotID, params.LocationID, false)
		if err != nil {
			return err
		}
		if !params.Capacity.Allows(occupied) {
			return shared.ErrSlotFull
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO slot_reservations (token, time_slot_id, location_id, state, capacity_limit, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
		`, string(token), params.TimeSlotID, params.LocationID, string(scheduling.ReservationHeld), capacityLimit(params.Capacity), now)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}

		for _, h := range holders {
			_, err = tx.Exec(ctx, `
				INSERT INTO reservation_holders (token, time_slot_id, participant_id, active)
				VALUES ($1, $2, $3, TRUE)
			`, string(token), params.TimeSlotID, h)
			if err != nil {
				if IsUniqueViolation(err) && constraintName(err) == "uq_reservation_holders_live" {
					return shared.ErrParticipantDoubleBooked
				}
				return fmt.Errorf("insert reservation holder: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// Confirm moves HELD to CONFIRMED if confirmed occupancy leaves room.
func (r *SlotRegistry) Confirm(ctx context.Context, token scheduling.ReservationToken) error {
	return r.withLockedReservation(ctx, token, func(tx pgx.Tx, res *scheduling.Reservation) error {
		switch res.State {
		case scheduling.ReservationConfirmed:
			return nil
		case scheduling.ReservationReleased:
			return shared.ErrReservationReleased
		}

		confirmed, err := countActive(ctx, tx, res.TimeSlotID, res.LocationID, true)
		if err != nil {
			return err
		}
		if !res.Capacity.Allows(confirmed) {
			return shared.ErrSlotFull
		}

		return setState(ctx, tx, token, scheduling.ReservationConfirmed, r.clock)
	})
}

// Release frees the reservation. Releasing twice is a no-op.
func (r *SlotRegistry) Release(ctx context.Context, token scheduling.ReservationToken) error {
	return r.withLockedReservation(ctx, token, func(tx pgx.Tx, res *scheduling.Reservation) error {
		if res.State == scheduling.ReservationReleased {
			return nil
		}

		if err := setState(ctx, tx, token, scheduling.ReservationReleased, r.clock); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `UPDATE reservation_holders SET active = FALSE WHERE token = $1`, string(token))
		if err != nil {
			return fmt.Errorf("release holders: %w", err)
		}
		return nil
	})
}

// SetCapacity updates the capacity recorded on live reservations of the key.
func (r *SlotRegistry) SetCapacity(ctx context.Context, timeSlotID, locationID string, capacity scheduling.Capacity) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := AcquireXactLocks(ctx, tx, scheduling.SlotKey(timeSlotID, locationID)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE slot_reservations SET capacity_limit = $3
			WHERE time_slot_id = $1 AND location_id = $2 AND state <> 'RELEASED'
		`, timeSlotID, locationID, capacityLimit(capacity))
		if err != nil {
			return fmt.Errorf("update capacity: %w", err)
		}
		return nil
	})
}

// CurrentOccupancy counts HELD and CONFIRMED reservations on the key.
func (r *SlotRegistry) CurrentOccupancy(ctx context.Context, timeSlotID, locationID string) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT count(*) FROM slot_reservations
		WHERE time_slot_id = $1 AND location_id = $2 AND state <> 'RELEASED'
	`, timeSlotID, locationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count occupancy: %w", err)
	}
	return n, nil
}

// Get returns the reservation with its holders.
func (r *SlotRegistry) Get(ctx context.Context, token scheduling.ReservationToken) (*scheduling.Reservation, error) {
	res, err := loadReservation(ctx, r.conn, token, false)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT participant_id FROM reservation_holders WHERE token = $1 ORDER BY participant_id
	`, string(token))
	if err != nil {
		return nil, fmt.Errorf("load holders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		res.Holders = append(res.Holders, id)
	}

	return res, rows.Err()
}

// ListLive returns HELD and CONFIRMED reservations ordered by token.
func (r *SlotRegistry) ListLive(ctx context.Context, params scheduling.ListLiveParams) ([]*scheduling.Reservation, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 500
	}
	createdBefore := params.CreatedBefore
	if createdBefore.IsZero() {
		createdBefore = r.clock.Now()
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM slot_reservations
		WHERE state <> 'RELEASED' AND token > $1 AND created_at < $2
		ORDER BY token
		LIMIT $3
	`, string(params.After), createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list live reservations: %w", err)
	}
	defer rows.Close()

	out := make([]*scheduling.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// withLockedReservation resolves the key of token, locks it and re-reads the
// row inside the same transaction.
func (r *SlotRegistry) withLockedReservation(ctx context.Context, token scheduling.ReservationToken, fn func(pgx.Tx, *scheduling.Reservation) error) error {
	peek, err := loadReservation(ctx, r.conn, token, false)
	if err != nil {
		return err
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := AcquireXactLocks(ctx, tx, scheduling.SlotKey(peek.TimeSlotID, peek.LocationID)); err != nil {
			return err
		}
		res, err := loadReservation(ctx, tx, token, true)
		if err != nil {
			return err
		}
		return fn(tx, res)
	})
}

const reservationColumns = `token, time_slot_id, location_id, state, capacity_limit, created_at, updated_at`

func loadReservation(ctx context.Context, q Querier, token scheduling.ReservationToken, forUpdate bool) (*scheduling.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM slot_reservations WHERE token = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	res, err := scanReservation(q.QueryRow(ctx, query, string(token)))
	if IsNoRows(err) {
		return nil, shared.ErrReservationNotFound
	}
	return res, err
}

func scanReservation(row pgx.Row) (*scheduling.Reservation, error) {
	var res scheduling.Reservation
	var tok, state string
	var limit *int

	err := row.Scan(
		&tok,
		&res.TimeSlotID,
		&res.LocationID,
		&state,
		&limit,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan reservation: %w", err)
	}

	res.Token = scheduling.ReservationToken(tok)
	res.State = scheduling.ReservationState(state)
	if limit == nil {
		res.Capacity = scheduling.Unlimited()
	} else {
		res.Capacity = scheduling.Limited(*limit)
	}

	return &res, nil
}

func countActive(ctx context.Context, tx pgx.Tx, timeSlotID, locationID string, confirmedOnly bool) (int, error) {
	query := `
		SELECT count(*) FROM slot_reservations
		WHERE time_slot_id = $1 AND location_id = $2 AND state <> 'RELEASED'
	`
	if confirmedOnly {
		query = `
			SELECT count(*) FROM slot_reservations
			WHERE time_slot_id = $1 AND location_id = $2 AND state = 'CONFIRMED'
		`
	}

	var n int
	if err := tx.QueryRow(ctx, query, timeSlotID, locationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}

func setState(ctx context.Context, tx pgx.Tx, token scheduling.ReservationToken, state scheduling.ReservationState, clock shared.Clock) error {
	_, err := tx.Exec(ctx, `
		UPDATE slot_reservations SET state = $1, updated_at = $2 WHERE token = $3
	`, string(state), clock.Now(), string(token))
	if err != nil {
		return fmt.Errorf("set reservation state: %w", err)
	}
	return nil
}

func capacityLimit(c scheduling.Capacity) *int {
	if c.Unlimited {
		return nil
	}
	n := c.Limit
	return &n
}
