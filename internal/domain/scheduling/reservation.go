package scheduling

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESERVATION
// Мягкая бронь вместимости на ключе (слот, место). Создаётся при запросе,
// разрешается ровно одним из двух способов: Confirm или Release.
// ══════════════════════════════════════════════════════════════════════════════

// ReservationToken - непрозрачный идентификатор брони.
type ReservationToken string

// String returns the token value.
func (t ReservationToken) String() string { return string(t) }

// ReservationState - состояние брони.
type ReservationState string

const (
	// ReservationHeld - мягкая бронь (запрос PENDING).
	ReservationHeld ReservationState = "HELD"

	// ReservationConfirmed - подтверждённая бронь (запрос ACCEPTED).
	ReservationConfirmed ReservationState = "CONFIRMED"

	// ReservationReleased - бронь освобождена.
	ReservationReleased ReservationState = "RELEASED"
)

// IsActive возвращает true, если бронь занимает вместимость.
func (s ReservationState) IsActive() bool {
	return s == ReservationHeld || s == ReservationConfirmed
}

// Reservation - запись реестра слотов.
type Reservation struct {
	Token      ReservationToken
	TimeSlotID string

	// LocationID - пустая строка для брони без места.
	LocationID string

	// Holders - участники, для которых бронь считается обязательством в слоте.
	Holders []string

	// Capacity - вместимость ключа на момент бронирования.
	Capacity Capacity

	State     ReservationState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReserveParams - параметры Reserve.
type ReserveParams struct {
	TimeSlotID string
	LocationID string

	// ParticipantID - инициатор брони.
	ParticipantID string

	// CounterpartID - вторая сторона; если задана, тоже проверяется на двойное бронирование.
	CounterpartID string

	// Capacity - эффективная вместимость ключа (см. EffectiveCapacity).
	Capacity Capacity

	// OverlappingSlotIDs - другие слоты мероприятия, пересекающиеся с TimeSlotID
	// (см. OverlappingSlotIDs). Живая бронь участника в любом из них
	// тоже даёт ParticipantDoubleBooked.
	OverlappingSlotIDs []string
}

// CommitmentSlots возвращает TimeSlotID и пересекающиеся слоты без дублей,
// отсортированными.
func (p ReserveParams) CommitmentSlots() []string {
	seen := map[string]struct{}{p.TimeSlotID: {}}
	out := []string{p.TimeSlotID}
	for _, id := range p.OverlappingSlotIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LockKeys возвращает ключи критической секции Reserve: (слот, место) и
// (слот, участник) для каждого участника и каждого слота из CommitmentSlots.
// Два запроса в пересекающихся слотах всегда делят хотя бы один ключ.
func (p ReserveParams) LockKeys() []string {
	keys := []string{p.Key()}
	for _, slotID := range p.CommitmentSlots() {
		for _, h := range p.Holders() {
			keys = append(keys, ParticipantKey(slotID, h))
		}
	}
	return keys
}

// ListLiveParams - параметры постраничного обхода живых броней.
type ListLiveParams struct {
	// CreatedBefore - только брони, созданные раньше этого момента.
	CreatedBefore time.Time

	// After - курсор: брони с токеном строго больше.
	After ReservationToken

	Limit int
}

// Holders возвращает непустых участников брони без дублей.
func (p ReserveParams) Holders() []string {
	out := make([]string, 0, 2)
	if p.ParticipantID != "" {
		out = append(out, p.ParticipantID)
	}
	if p.CounterpartID != "" && p.CounterpartID != p.ParticipantID {
		out = append(out, p.CounterpartID)
	}
	return out
}

// Key возвращает ключ критической секции (слот, место).
func (p ReserveParams) Key() string {
	return SlotKey(p.TimeSlotID, p.LocationID)
}

// SlotKey строит ключ (слот, место) для блокировок и подсчёта занятости.
func SlotKey(timeSlotID, locationID string) string {
	return "slot:" + timeSlotID + "|loc:" + locationID
}

// ParticipantKey строит ключ (слот, участник) для проверки двойного бронирования.
func ParticipantKey(timeSlotID, participantID string) string {
	return "slot:" + timeSlotID + "|participant:" + participantID
}
