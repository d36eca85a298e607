package scheduling

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// AppointmentFilter - фильтр выборки встреч участника.
type AppointmentFilter struct {
	EventID       string
	ParticipantID string

	// Statuses - пустой список означает любые статусы.
	Statuses []Status

	Limit  int
	Offset int
}

// AppointmentRepository - хранилище запросов на встречу.
type AppointmentRepository interface {
	// Create сохраняет новый запрос.
	Create(ctx context.Context, a *AppointmentRequest) error

	// GetByID возвращает запрос или shared.ErrAppointmentNotFound.
	GetByID(ctx context.Context, id string) (*AppointmentRequest, error)

	// Update сохраняет изменения, если текущий статус в хранилище равен expected.
	// Иначе shared.ErrInvalidTransition (устаревшая запись).
	Update(ctx context.Context, a *AppointmentRequest, expected Status) error

	// ListByParticipant возвращает запросы, где участник - одна из сторон,
	// упорядоченные по началу слота, затем по дате создания.
	ListByParticipant(ctx context.Context, filter AppointmentFilter) ([]*AppointmentRequest, error)

	// ListDue возвращает запросы в статусах statuses, слот которых закончился
	// не позже endedBefore.
	ListDue(ctx context.Context, statuses []Status, endedBefore time.Time, limit int) ([]*AppointmentRequest, error)

	// ListByReservationTokens возвращает запросы с указанными токенами брони.
	// Неизвестные токены пропускаются.
	ListByReservationTokens(ctx context.Context, tokens []string) ([]*AppointmentRequest, error)
}

// SlotRegistry - аллокатор вместимости (слот, место) с мягкими бронями.
// Все операции атомарны по ключу (слот, место).
type SlotRegistry interface {
	// Reserve создаёт бронь HELD.
	// shared.ErrSlotFull - вместимость исчерпана;
	// shared.ErrParticipantDoubleBooked - у участника уже есть бронь в слоте
	// или в одном из params.OverlappingSlotIDs.
	Reserve(ctx context.Context, params ReserveParams) (ReservationToken, error)

	// Confirm переводит HELD в CONFIRMED. Идемпотентна для CONFIRMED.
	// shared.ErrReservationReleased - бронь уже освобождена;
	// shared.ErrSlotFull - подтверждённые брони уже занимают всю вместимость.
	Confirm(ctx context.Context, token ReservationToken) error

	// Release освобождает бронь. Идемпотентна для RELEASED.
	Release(ctx context.Context, token ReservationToken) error

	// SetCapacity обновляет вместимость живых броней ключа, если организатор
	// изменил слот или место после бронирования. Учитывается в Confirm.
	SetCapacity(ctx context.Context, timeSlotID, locationID string, capacity Capacity) error

	// CurrentOccupancy - число броней HELD и CONFIRMED на ключе.
	CurrentOccupancy(ctx context.Context, timeSlotID, locationID string) (int, error)

	// Get возвращает бронь или shared.ErrReservationNotFound.
	Get(ctx context.Context, token ReservationToken) (*Reservation, error)

	// ListLive возвращает брони HELD и CONFIRMED по возрастанию токена.
	ListLive(ctx context.Context, params ListLiveParams) ([]*Reservation, error)
}
