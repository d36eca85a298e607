package scheduling

import (
	"time"
	"unicode/utf8"

	"github.com/alem-hub/event-networking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPOINTMENT STATUS
//
//   PENDING ──► ACCEPTED ──► COMPLETED   (по времени, после конца слота)
//      │            │
//      │            └──────► CANCELLED   (любая сторона, до начала слота)
//      ├──► DECLINED                     (только получатель)
//      └──► CANCELLED                    (любая сторона, до начала слота)
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние запроса на встречу.
type Status string

const (
	// StatusPending - ожидает решения получателя, держит мягкую бронь.
	StatusPending Status = "PENDING"

	// StatusAccepted - принято, бронь подтверждена.
	StatusAccepted Status = "ACCEPTED"

	// StatusDeclined - отклонено получателем или системой.
	StatusDeclined Status = "DECLINED"

	// StatusCancelled - отменено одной из сторон или системой.
	StatusCancelled Status = "CANCELLED"

	// StatusCompleted - встреча состоялась (слот завершился).
	StatusCompleted Status = "COMPLETED"
)

// IsValid проверяет корректность статуса.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsLive возвращает true для нетерминальных статусов (PENDING, ACCEPTED).
func (s Status) IsLive() bool {
	return s == StatusPending || s == StatusAccepted
}

// IsFinal возвращает true, если статус терминальный.
func (s Status) IsFinal() bool {
	return s.IsValid() && !s.IsLive()
}

// LiveStatuses - статусы, удерживающие бронь.
func LiveStatuses() []Status {
	return []Status{StatusPending, StatusAccepted}
}

// Системные причины.
const (
	ReasonConfirmationFailed = "slot could not be confirmed: "
	ReasonExpired            = "expired without decision"
)

// MaxMessageLength - максимальная длина сообщения к запросу.
const MaxMessageLength = 1000

// ══════════════════════════════════════════════════════════════════════════════
// APPOINTMENT REQUEST
// ══════════════════════════════════════════════════════════════════════════════

// AppointmentRequest - предложение встречи двух участников в слоте.
type AppointmentRequest struct {
	ID          string
	EventID     string
	RequesterID string
	RecipientID string

	TimeSlotID string

	// LocationID - пустая строка, если место не указано.
	LocationID string

	Message string
	Status  Status

	// ReservationToken - бронь в реестре слотов.
	ReservationToken string

	// DecisionReason - причина системного решения (отказ при подтверждении, истечение).
	DecisionReason string

	// CancelledBy - кто отменил (пусто для системной отмены).
	CancelledBy string

	// Снимок слота на момент запроса: нужен для отмены "до начала"
	// и для фоновой отметки COMPLETED без обращения к сервису мероприятий.
	SlotDay      time.Time
	SlotStartsAt time.Time
	SlotEndsAt   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DecidedAt *time.Time
}

// NewAppointmentParams - параметры создания запроса.
type NewAppointmentParams struct {
	ID               string
	EventID          string
	RequesterID      string
	RecipientID      string
	Slot             TimeSlot
	LocationID       string
	Message          string
	ReservationToken string
	Now              time.Time
}

// NewAppointmentRequest создаёт запрос в статусе PENDING.
func NewAppointmentRequest(p NewAppointmentParams) (*AppointmentRequest, error) {
	if err := ValidateRequestParties(p.RequesterID, p.RecipientID); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, shared.Validation("scheduling", "NewAppointmentRequest", "appointment id is required")
	}
	if p.Slot.EventID != p.EventID {
		return nil, shared.Validation("scheduling", "NewAppointmentRequest", "time slot %s does not belong to event %s", p.Slot.ID, p.EventID)
	}
	if err := ValidateMessage(p.Message); err != nil {
		return nil, err
	}

	return &AppointmentRequest{
		ID:               p.ID,
		EventID:          p.EventID,
		RequesterID:      p.RequesterID,
		RecipientID:      p.RecipientID,
		TimeSlotID:       p.Slot.ID,
		LocationID:       p.LocationID,
		Message:          p.Message,
		Status:           StatusPending,
		ReservationToken: p.ReservationToken,
		SlotDay:          p.Slot.Day,
		SlotStartsAt:     p.Slot.StartsAt,
		SlotEndsAt:       p.Slot.EndsAt,
		CreatedAt:        p.Now,
		UpdatedAt:        p.Now,
	}, nil
}

// ValidateRequestParties проверяет, что участник не приглашает сам себя.
func ValidateRequestParties(requesterID, recipientID string) error {
	const op = "Request"
	if !shared.IsValidID(requesterID) {
		return shared.Validation("scheduling", op, "invalid requester id %q", requesterID)
	}
	if !shared.IsValidID(recipientID) {
		return shared.Validation("scheduling", op, "invalid recipient id %q", recipientID)
	}
	if requesterID == recipientID {
		return shared.Validation("scheduling", op, "requester and recipient must differ")
	}
	return nil
}

// ValidateMessage проверяет длину сообщения.
func ValidateMessage(msg string) error {
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return shared.Validation("scheduling", "Request", "message exceeds %d characters", MaxMessageLength)
	}
	return nil
}

// SlotSnapshot восстанавливает слот из снимка для проверки пересечений.
func (a *AppointmentRequest) SlotSnapshot() TimeSlot {
	return TimeSlot{
		ID:       a.TimeSlotID,
		EventID:  a.EventID,
		Day:      a.SlotDay,
		StartsAt: a.SlotStartsAt,
		EndsAt:   a.SlotEndsAt,
		IsActive: true,
	}
}

// IsParty возвращает true, если участник - одна из сторон встречи.
func (a *AppointmentRequest) IsParty(participantID string) bool {
	return participantID == a.RequesterID || participantID == a.RecipientID
}

// Counterpart возвращает вторую сторону встречи.
func (a *AppointmentRequest) Counterpart(participantID string) string {
	if participantID == a.RequesterID {
		return a.RecipientID
	}
	return a.RequesterID
}

// ══════════════════════════════════════════════════════════════════════════════
// ПЕРЕХОДЫ
// Каждый переход либо полностью применяется, либо возвращает ошибку
// без изменения сущности.
// ══════════════════════════════════════════════════════════════════════════════

// Accept: PENDING -> ACCEPTED. Только получатель.
func (a *AppointmentRequest) Accept(actorID string, now time.Time) error {
	if actorID != a.RecipientID {
		return shared.ErrNotAppointmentParty.WithMessage("only the recipient may accept appointment %s", a.ID)
	}
	if a.Status != StatusPending {
		return a.invalid("accept")
	}
	a.Status = StatusAccepted
	a.decide(now)
	return nil
}

// Decline: PENDING -> DECLINED. Только получатель.
func (a *AppointmentRequest) Decline(actorID string, now time.Time) error {
	if actorID != a.RecipientID {
		return shared.ErrNotAppointmentParty.WithMessage("only the recipient may decline appointment %s", a.ID)
	}
	if a.Status != StatusPending {
		return a.invalid("decline")
	}
	a.Status = StatusDeclined
	a.decide(now)
	return nil
}

// DeclineBySystem переводит PENDING в DECLINED, когда бронь не удалось подтвердить.
func (a *AppointmentRequest) DeclineBySystem(reason string, now time.Time) error {
	if a.Status != StatusPending {
		return a.invalid("decline")
	}
	a.Status = StatusDeclined
	a.DecisionReason = reason
	a.decide(now)
	return nil
}

// Cancel: PENDING|ACCEPTED -> CANCELLED. Любая сторона, строго до начала слота.
func (a *AppointmentRequest) Cancel(actorID string, now time.Time) error {
	if !a.IsParty(actorID) {
		return shared.ErrNotAppointmentParty.WithMessage("participant %s is not a party of appointment %s", actorID, a.ID)
	}
	if !a.Status.IsLive() {
		return a.invalid("cancel")
	}
	if !now.Before(a.SlotStartsAt) {
		return shared.ErrInvalidTransition.WithMessage("appointment %s: cannot cancel after the slot has started", a.ID)
	}
	a.Status = StatusCancelled
	a.CancelledBy = actorID
	a.decide(now)
	return nil
}

// Expire: PENDING -> CANCELLED системой, если слот закончился без решения.
func (a *AppointmentRequest) Expire(now time.Time) error {
	if a.Status != StatusPending || now.Before(a.SlotEndsAt) {
		return a.invalid("expire")
	}
	a.Status = StatusCancelled
	a.DecisionReason = ReasonExpired
	a.decide(now)
	return nil
}

// Complete: ACCEPTED -> COMPLETED после окончания слота.
func (a *AppointmentRequest) Complete(now time.Time) error {
	if a.Status != StatusAccepted {
		return a.invalid("complete")
	}
	if now.Before(a.SlotEndsAt) {
		return shared.ErrInvalidTransition.WithMessage("appointment %s: slot has not ended yet", a.ID)
	}
	a.Status = StatusCompleted
	a.UpdatedAt = now
	return nil
}

func (a *AppointmentRequest) decide(now time.Time) {
	t := now
	a.DecidedAt = &t
	a.UpdatedAt = now
}

func (a *AppointmentRequest) invalid(action string) error {
	return shared.ErrInvalidTransition.WithMessage("appointment %s: cannot %s from %s", a.ID, action, a.Status)
}
