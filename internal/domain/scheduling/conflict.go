package scheduling

import (
	"sort"

	"github.com/alem-hub/event-networking/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFLICT CHECKER
// Чистые предикаты без состояния. Используются менеджером встреч
// (пересекающиеся обязательства участника) и проверкой расписания организатора.
// ══════════════════════════════════════════════════════════════════════════════

// Overlaps возвращает true, если слоты приходятся на один день и их
// интервалы [start, end) пересекаются. Соприкасающиеся слоты не пересекаются.
func Overlaps(a, b TimeSlot) bool {
	if !timeutil.IsSameDay(a.Day, b.Day) {
		return false
	}
	return timeutil.RangesIntersect(a.StartsAt, a.EndsAt, b.StartsAt, b.EndsAt)
}

// SlotConflict - пара активных слотов, которые молча конкурируют друг с другом.
type SlotConflict struct {
	First    TimeSlot
	Second   TimeSlot
	Capacity Capacity
}

// FindCompetingSlots находит пары активных слотов мероприятия, которые
// пересекаются по времени и имеют одинаковую вместимость.
// Результат детерминирован: пары упорядочены по времени начала и ID.
func FindCompetingSlots(slots []TimeSlot) []SlotConflict {
	active := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.IsActive {
			active = append(active, s)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].StartsAt.Equal(active[j].StartsAt) {
			return active[i].StartsAt.Before(active[j].StartsAt)
		}
		return active[i].ID < active[j].ID
	})

	conflicts := make([]SlotConflict, 0)
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			// Отсортированы по началу: дальше пересечений с active[i] нет.
			if !active[j].StartsAt.Before(active[i].EndsAt) {
				break
			}
			if !Overlaps(active[i], active[j]) {
				continue
			}
			ci, cj := active[i].SlotCapacity(), active[j].SlotCapacity()
			if ci != cj {
				continue
			}
			conflicts = append(conflicts, SlotConflict{
				First:    active[i],
				Second:   active[j],
				Capacity: ci,
			})
		}
	}
	return conflicts
}

// OverlappingCommitments возвращает ID встреч из live, слот которых
// пересекается с candidate. Встречи в том же самом слоте не считаются:
// их отсекает реестр слотов (ParticipantDoubleBooked).
func OverlappingCommitments(candidate TimeSlot, live []*AppointmentRequest) []string {
	out := make([]string, 0)
	for _, a := range live {
		if a == nil || !a.Status.IsLive() || a.TimeSlotID == candidate.ID {
			continue
		}
		if Overlaps(candidate, a.SlotSnapshot()) {
			out = append(out, a.ID)
		}
	}
	return out
}

// OverlappingSlotIDs возвращает ID слотов из slots, пересекающихся с
// candidate (кроме него самого), по возрастанию.
func OverlappingSlotIDs(candidate TimeSlot, slots []TimeSlot) []string {
	out := make([]string, 0)
	for _, s := range slots {
		if s.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate, s) {
			out = append(out, s.ID)
		}
	}
	sort.Strings(out)
	return out
}
