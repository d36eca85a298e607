package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ProfileRepository implements matchmaking.ProfileRepository in memory.
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*matchmaking.MatchProfile // key: event|participant
}

// NewProfileRepository creates an empty repository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]*matchmaking.MatchProfile)}
}

func profileKey(eventID, participantID string) string {
	return eventID + "|" + participantID
}

// Upsert stores the profile, keeping the id and creation time of an existing one.
func (r *ProfileRepository) Upsert(ctx context.Context, p *matchmaking.MatchProfile) (*matchmaking.MatchProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := profileKey(p.EventID, p.ParticipantID)
	saved := cloneProfile(p)
	if existing, ok := r.profiles[key]; ok {
		saved.ID = existing.ID
		saved.CreatedAt = existing.CreatedAt
	}
	r.profiles[key] = saved

	return cloneProfile(saved), nil
}

// GetByID returns a profile by id within an event.
func (r *ProfileRepository) GetByID(ctx context.Context, eventID, profileID string) (*matchmaking.MatchProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.EventID == eventID && p.ID == profileID {
			return cloneProfile(p), nil
		}
	}
	return nil, shared.ErrProfileNotFound
}

// GetByParticipant returns the participant's profile.
func (r *ProfileRepository) GetByParticipant(ctx context.Context, eventID, participantID string) (*matchmaking.MatchProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[profileKey(eventID, participantID)]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

// ListByEvent returns the event's profiles ordered by id.
func (r *ProfileRepository) ListByEvent(ctx context.Context, eventID string) ([]*matchmaking.MatchProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*matchmaking.MatchProfile, 0)
	for _, p := range r.profiles {
		if p.EventID == eventID {
			out = append(out, cloneProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes the participant's profile.
func (r *ProfileRepository) Delete(ctx context.Context, eventID, participantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := profileKey(eventID, participantID)
	if _, ok := r.profiles[key]; !ok {
		return shared.ErrProfileNotFound
	}
	delete(r.profiles, key)
	return nil
}

func cloneProfile(p *matchmaking.MatchProfile) *matchmaking.MatchProfile {
	cp := *p
	cp.Interests = append([]string{}, p.Interests...)
	cp.Goals = append([]string{}, p.Goals...)
	cp.Availability = append([]string{}, p.Availability...)
	return &cp
}
