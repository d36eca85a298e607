// Package scheduling содержит доменную модель встреч: временные слоты,
// места встреч, резервирование вместимости и жизненный цикл запроса на встречу.
package scheduling

import (
	"strings"
	"time"

	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIME SLOT
// Управляется организатором (внешний сервис). Для ядра - только чтение.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultSlotCapacity - вместимость слота без явного значения (эксклюзивный слот).
const DefaultSlotCapacity = 1

// TimeSlot - ограниченный интервал, в который могут проходить встречи.
type TimeSlot struct {
	ID      string
	EventID string

	// Day - календарный день слота (полночь в часовом поясе мероприятия).
	Day time.Time

	StartsAt time.Time
	EndsAt   time.Time

	// Capacity - сколько встреч одновременно вмещает слот без места встречи.
	// nil означает DefaultSlotCapacity.
	Capacity *int

	IsActive bool
}

// TimeSlotParams - параметры создания слота.
type TimeSlotParams struct {
	ID       string
	EventID  string
	StartsAt time.Time
	EndsAt   time.Time
	Capacity *int
	IsActive bool

	// Location - часовой пояс мероприятия для вычисления Day.
	Location *time.Location
}

// NewTimeSlot создаёт слот с проверкой инвариантов (start < end, capacity >= 0).
func NewTimeSlot(p TimeSlotParams) (*TimeSlot, error) {
	const op = "NewTimeSlot"

	if !shared.IsValidID(p.ID) {
		return nil, shared.Validation("scheduling", op, "invalid time slot id %q", p.ID)
	}
	if !shared.IsValidID(p.EventID) {
		return nil, shared.Validation("scheduling", op, "invalid event id %q", p.EventID)
	}
	if p.StartsAt.IsZero() || p.EndsAt.IsZero() {
		return nil, shared.Validation("scheduling", op, "slot %s: start and end are required", p.ID)
	}
	if !p.StartsAt.Before(p.EndsAt) {
		return nil, shared.Validation("scheduling", op, "slot %s: start must be before end", p.ID)
	}
	if p.Capacity != nil && *p.Capacity < 0 {
		return nil, shared.Validation("scheduling", op, "slot %s: capacity cannot be negative", p.ID)
	}

	return &TimeSlot{
		ID:       p.ID,
		EventID:  p.EventID,
		Day:      timeutil.StartOfDay(p.StartsAt, p.Location),
		StartsAt: p.StartsAt,
		EndsAt:   p.EndsAt,
		Capacity: p.Capacity,
		IsActive: p.IsActive,
	}, nil
}

// Duration возвращает длительность слота.
func (s TimeSlot) Duration() time.Duration {
	return s.EndsAt.Sub(s.StartsAt)
}

// HasStarted возвращает true, если слот уже начался к моменту now.
func (s TimeSlot) HasStarted(now time.Time) bool {
	return !now.Before(s.StartsAt)
}

// SlotCapacity возвращает вместимость слота с учётом значения по умолчанию.
func (s TimeSlot) SlotCapacity() Capacity {
	if s.Capacity == nil {
		return Limited(DefaultSlotCapacity)
	}
	return Limited(*s.Capacity)
}

// ══════════════════════════════════════════════════════════════════════════════
// MEETING LOCATION
// ══════════════════════════════════════════════════════════════════════════════

// LocationType - тип места встречи.
type LocationType string

const (
	LocationConferenceRoom LocationType = "CONFERENCE_ROOM"
	LocationCafe           LocationType = "CAFE"
	LocationOutdoor        LocationType = "OUTDOOR"
	LocationVirtual        LocationType = "VIRTUAL"
	LocationOther          LocationType = "OTHER"
)

// IsValid проверяет корректность типа.
func (t LocationType) IsValid() bool {
	switch t {
	case LocationConferenceRoom, LocationCafe, LocationOutdoor, LocationVirtual, LocationOther:
		return true
	default:
		return false
	}
}

// ParseLocationType разбирает тип без учёта регистра.
func ParseLocationType(s string) (LocationType, error) {
	t := LocationType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.Validation("scheduling", "ParseLocationType", "unknown location type %q", s)
	}
	return t, nil
}

// MeetingLocation - физическое или виртуальное место встречи.
type MeetingLocation struct {
	ID      string
	EventID string
	Name    string
	Type    LocationType

	// Capacity - nil означает неограниченную вместимость.
	Capacity *int

	IsActive bool
}

// LocationCapacity возвращает вместимость места. VIRTUAL всегда безлимитно.
func (l MeetingLocation) LocationCapacity() Capacity {
	if l.Type == LocationVirtual || l.Capacity == nil {
		return Unlimited()
	}
	return Limited(*l.Capacity)
}

// ══════════════════════════════════════════════════════════════════════════════
// CAPACITY
// ══════════════════════════════════════════════════════════════════════════════

// Capacity - ограничение занятости для ключа (слот, место).
type Capacity struct {
	Limit     int
	Unlimited bool
}

// Limited создаёт ограниченную вместимость.
func Limited(n int) Capacity {
	if n < 0 {
		n = 0
	}
	return Capacity{Limit: n}
}

// Unlimited создаёт неограниченную вместимость.
func Unlimited() Capacity {
	return Capacity{Unlimited: true}
}

// Allows возвращает true, если при текущей занятости occupied
// можно занять ещё одно место.
func (c Capacity) Allows(occupied int) bool {
	return c.Unlimited || occupied < c.Limit
}

// EffectiveCapacity определяет вместимость для бронирования: с местом встречи
// действует вместимость места, без места - вместимость самого слота.
// Вместимость слота при указанном месте не учитывается: эксклюзивный слот
// может принять несколько встреч в разных местах.
func EffectiveCapacity(slot TimeSlot, location *MeetingLocation) Capacity {
	if location != nil {
		return location.LocationCapacity()
	}
	return slot.SlotCapacity()
}
