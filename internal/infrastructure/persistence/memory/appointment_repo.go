package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// AppointmentRepository implements scheduling.AppointmentRepository in memory.
type AppointmentRepository struct {
	mu           sync.RWMutex
	appointments map[string]*scheduling.AppointmentRequest
}

// NewAppointmentRepository creates an empty repository.
func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{appointments: make(map[string]*scheduling.AppointmentRequest)}
}

// Create stores a new request.
func (r *AppointmentRepository) Create(ctx context.Context, a *scheduling.AppointmentRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[a.ID]; ok {
		return shared.NewDomainError("scheduling", "CreateAppointment", shared.ErrAlreadyExists, shared.CodeValidation, "appointment already exists")
	}
	r.appointments[a.ID] = cloneAppointment(a)
	return nil
}

// GetByID returns a copy of the request.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*scheduling.AppointmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, shared.ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

// Update replaces the request if its stored status equals expected.
func (r *AppointmentRepository) Update(ctx context.Context, a *scheduling.AppointmentRequest, expected scheduling.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.appointments[a.ID]
	if !ok {
		return shared.ErrAppointmentNotFound
	}
	if current.Status != expected {
		return shared.ErrInvalidTransition.WithMessage("appointment %s is no longer %s", a.ID, expected)
	}
	r.appointments[a.ID] = cloneAppointment(a)
	return nil
}

// ListByParticipant returns requests where the participant is either party.
func (r *AppointmentRepository) ListByParticipant(ctx context.Context, f scheduling.AppointmentFilter) ([]*scheduling.AppointmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*scheduling.AppointmentRequest, 0)
	for _, a := range r.appointments {
		if !a.IsParty(f.ParticipantID) {
			continue
		}
		if f.EventID != "" && a.EventID != f.EventID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, a.Status) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	r.mu.RUnlock()

	sortAppointments(out, func(a *scheduling.AppointmentRequest) time.Time { return a.SlotStartsAt })
	return paginate(out, f.Offset, f.Limit), nil
}

// ListDue returns requests in statuses whose slot ended by endedBefore.
func (r *AppointmentRepository) ListDue(ctx context.Context, statuses []scheduling.Status, endedBefore time.Time, limit int) ([]*scheduling.AppointmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*scheduling.AppointmentRequest, 0)
	for _, a := range r.appointments {
		if hasStatus(statuses, a.Status) && !a.SlotEndsAt.After(endedBefore) {
			out = append(out, cloneAppointment(a))
		}
	}
	r.mu.RUnlock()

	sortAppointments(out, func(a *scheduling.AppointmentRequest) time.Time { return a.SlotEndsAt })
	return paginate(out, 0, limit), nil
}

// ListByReservationTokens returns requests holding one of the tokens.
func (r *AppointmentRepository) ListByReservationTokens(ctx context.Context, tokens []string) ([]*scheduling.AppointmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		wanted[t] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*scheduling.AppointmentRequest, 0, len(tokens))
	for _, a := range r.appointments {
		if _, ok := wanted[a.ReservationToken]; ok && a.ReservationToken != "" {
			out = append(out, cloneAppointment(a))
		}
	}
	return out, nil
}

func sortAppointments(list []*scheduling.AppointmentRequest, at func(*scheduling.AppointmentRequest) time.Time) {
	sort.Slice(list, func(i, j int) bool {
		ti, tj := at(list[i]), at(list[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func paginate(list []*scheduling.AppointmentRequest, offset, limit int) []*scheduling.AppointmentRequest {
	if offset > 0 {
		if offset >= len(list) {
			return list[:0]
		}
		list = list[offset:]
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

func hasStatus(statuses []scheduling.Status, s scheduling.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func cloneAppointment(a *scheduling.AppointmentRequest) *scheduling.AppointmentRequest {
	cp := *a
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		cp.DecidedAt = &t
	}
	return &cp
}
