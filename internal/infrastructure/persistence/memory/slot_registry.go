// Package memory implements the persistence ports in process memory. It backs
// local runs (STORAGE_BACKEND=memory) and the application tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYED MUTEX
// ══════════════════════════════════════════════════════════════════════════════

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key. Keys are locked in sorted order.
// Entries are dropped once nobody holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires every key and returns the release function.
func (k *keyedMutex) Lock(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	acquired := make([]string, 0, len(sorted))
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}

		k.mu.Lock()
		l, ok := k.locks[key]
		if !ok {
			l = &keyLock{}
			k.locks[key] = l
		}
		l.refs++
		k.mu.Unlock()

		l.mu.Lock()
		acquired = append(acquired, key)
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			k.unlock(acquired[i])
		}
	}
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l := k.locks[key]
	l.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// size reports how many keys are currently tracked.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// ══════════════════════════════════════════════════════════════════════════════
// SLOT REGISTRY
// The keyed mutex serializes the check-and-write of each operation per
// (slot, location) and (slot, participant) key. r.mu only guards the maps and
// is never held across a whole operation, so different keys proceed in
// parallel.
// ══════════════════════════════════════════════════════════════════════════════

// SlotRegistry implements scheduling.SlotRegistry in memory.
type SlotRegistry struct {
	keys  *keyedMutex
	clock shared.Clock

	mu           sync.RWMutex
	reservations map[scheduling.ReservationToken]*scheduling.Reservation
	byKey        map[string]map[scheduling.ReservationToken]struct{}
	holders      map[string]scheduling.ReservationToken
}

// NewSlotRegistry creates an empty registry.
func NewSlotRegistry(clock shared.Clock) *SlotRegistry {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &SlotRegistry{
		keys:         newKeyedMutex(),
		clock:        clock,
		reservations: make(map[scheduling.ReservationToken]*scheduling.Reservation),
		byKey:        make(map[string]map[scheduling.ReservationToken]struct{}),
		holders:      make(map[string]scheduling.ReservationToken),
	}
}

// Reserve places a HELD reservation.
func (r *SlotRegistry) Reserve(ctx context.Context, params scheduling.ReserveParams) (scheduling.ReservationToken, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	holders := params.Holders()
	if params.TimeSlotID == "" || len(holders) == 0 {
		return "", shared.Validation("scheduling", "Reserve", "time slot and participant are required")
	}

	unlock := r.keys.Lock(params.LockKeys()...)
	defer unlock()

	if r.holdsAny(params.CommitmentSlots(), holders) {
		return "", shared.ErrParticipantDoubleBooked
	}
	if !params.Capacity.Allows(r.count(params.Key(), false)) {
		return "", shared.ErrSlotFull
	}

	now := r.clock.Now()
	res := &scheduling.Reservation{
		Token:      scheduling.ReservationToken(uuid.NewString()),
		TimeSlotID: params.TimeSlotID,
		LocationID: params.LocationID,
		Holders:    holders,
		Capacity:   params.Capacity,
		State:      scheduling.ReservationHeld,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	r.reservations[res.Token] = res
	if r.byKey[params.Key()] == nil {
		r.byKey[params.Key()] = make(map[scheduling.ReservationToken]struct{})
	}
	r.byKey[params.Key()][res.Token] = struct{}{}
	for _, h := range holders {
		r.holders[scheduling.ParticipantKey(params.TimeSlotID, h)] = res.Token
	}
	r.mu.Unlock()

	return res.Token, nil
}

// Confirm moves HELD to CONFIRMED.
func (r *SlotRegistry) Confirm(ctx context.Context, token scheduling.ReservationToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := r.keyOf(token)
	if err != nil {
		return err
	}
	unlock := r.keys.Lock(key)
	defer unlock()

	r.mu.RLock()
	res := r.reservations[token]
	state, capacity := res.State, res.Capacity
	r.mu.RUnlock()

	switch state {
	case scheduling.ReservationConfirmed:
		return nil
	case scheduling.ReservationReleased:
		return shared.ErrReservationReleased
	}

	if !capacity.Allows(r.count(key, true)) {
		return shared.ErrSlotFull
	}

	r.mu.Lock()
	res.State = scheduling.ReservationConfirmed
	res.UpdatedAt = r.clock.Now()
	r.mu.Unlock()
	return nil
}

// Release frees the reservation. Idempotent.
func (r *SlotRegistry) Release(ctx context.Context, token scheduling.ReservationToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := r.keyOf(token)
	if err != nil {
		return err
	}
	unlock := r.keys.Lock(key)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.reservations[token]
	if res.State == scheduling.ReservationReleased {
		return nil
	}

	res.State = scheduling.ReservationReleased
	res.UpdatedAt = r.clock.Now()
	delete(r.byKey[key], token)
	if len(r.byKey[key]) == 0 {
		delete(r.byKey, key)
	}
	for _, h := range res.Holders {
		pk := scheduling.ParticipantKey(res.TimeSlotID, h)
		if r.holders[pk] == token {
			delete(r.holders, pk)
		}
	}
	return nil
}

// SetCapacity updates the capacity of live reservations on the key.
func (r *SlotRegistry) SetCapacity(ctx context.Context, timeSlotID, locationID string, capacity scheduling.Capacity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := scheduling.SlotKey(timeSlotID, locationID)
	unlock := r.keys.Lock(key)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	for token := range r.byKey[key] {
		r.reservations[token].Capacity = capacity
	}
	return nil
}

// CurrentOccupancy counts HELD and CONFIRMED reservations on the key.
func (r *SlotRegistry) CurrentOccupancy(ctx context.Context, timeSlotID, locationID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return r.count(scheduling.SlotKey(timeSlotID, locationID), false), nil
}

// Get returns a copy of the reservation.
func (r *SlotRegistry) Get(ctx context.Context, token scheduling.ReservationToken) (*scheduling.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.reservations[token]
	if !ok {
		return nil, shared.ErrReservationNotFound
	}

	return cloneReservation(res), nil
}

// ListLive returns live reservations ordered by token.
func (r *SlotRegistry) ListLive(ctx context.Context, params scheduling.ListLiveParams) ([]*scheduling.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*scheduling.Reservation, 0)
	for token, res := range r.reservations {
		if !res.State.IsActive() || token <= params.After {
			continue
		}
		if !params.CreatedBefore.IsZero() && !res.CreatedAt.Before(params.CreatedBefore) {
			continue
		}
		out = append(out, cloneReservation(res))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func cloneReservation(res *scheduling.Reservation) *scheduling.Reservation {
	cp := *res
	cp.Holders = append([]string(nil), res.Holders...)
	return &cp
}

func (r *SlotRegistry) keyOf(token scheduling.ReservationToken) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.reservations[token]
	if !ok {
		return "", shared.ErrReservationNotFound
	}
	return scheduling.SlotKey(res.TimeSlotID, res.LocationID), nil
}

// holdsAny reports whether any participant has a live reservation in any slot.
func (r *SlotRegistry) holdsAny(slotIDs, participants []string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, slotID := range slotIDs {
		for _, p := range participants {
			if _, ok := r.holders[scheduling.ParticipantKey(slotID, p)]; ok {
				return true
			}
		}
	}
	return false
}

// count counts live reservations of the key.
func (r *SlotRegistry) count(key string, confirmedOnly bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for token := range r.byKey[key] {
		res := r.reservations[token]
		if confirmedOnly && res.State != scheduling.ReservationConfirmed {
			continue
		}
		if res.State.IsActive() {
			n++
		}
	}
	return n
}
