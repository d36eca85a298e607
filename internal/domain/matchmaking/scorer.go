package matchmaking

import (
	"fmt"
	"math"
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPATIBILITY SCORER
//
// Оценка совместимости двух профилей - взвешенное пересечение трёх измерений:
//
//   interests    |A∩B| / |A∪B|                 (Жаккар, 0 если одно из множеств пусто)
//   goals        |A∩B| / |A∪B|
//   availability min(1, |A∩B| / min(|A|,|B|))   (общие свободные слоты)
//
//   score = wI*interests + wG*goals + wA*availability
//
// Функция детерминирована, симметрична и не имеет побочных эффектов.
// ══════════════════════════════════════════════════════════════════════════════

// Weights - веса измерений. Сумма весов должна быть равна 1.
type Weights struct {
	Interests    float64
	Goals        float64
	Availability float64
}

// DefaultWeights возвращает веса по умолчанию (0.5 / 0.3 / 0.2).
func DefaultWeights() Weights {
	return Weights{
		Interests:    0.5,
		Goals:        0.3,
		Availability: 0.2,
	}
}

// Validate проверяет, что веса неотрицательны и в сумме дают 1.
func (w Weights) Validate() error {
	if w.Interests < 0 || w.Goals < 0 || w.Availability < 0 {
		return fmt.Errorf("matchmaking: weights must be non-negative: %+v", w)
	}
	if sum := w.Interests + w.Goals + w.Availability; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("matchmaking: weights must sum to 1, got %.6f", sum)
	}
	return nil
}

// Breakdown - подробности расчёта оценки.
type Breakdown struct {
	InterestOverlap     float64
	GoalOverlap         float64
	AvailabilityOverlap float64
	Score               float64

	MatchedInterests []string
	MatchedGoals     []string
	SharedSlots      []string
}

// Scorer вычисляет оценку совместимости.
type Scorer struct {
	weights Weights
}

// NewScorer создаёт Scorer с указанными весами.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// MustNewScorer как NewScorer, но паникует на невалидных весах.
func MustNewScorer(w Weights) *Scorer {
	s, err := NewScorer(w)
	if err != nil {
		panic(err)
	}
	return s
}

// Weights возвращает используемые веса.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score возвращает оценку в диапазоне [0, 1], округлённую до 4 знаков.
// Сравнение профиля с самим собой исключается вызывающей стороной.
func (s *Scorer) Score(a, b *MatchProfile) float64 {
	return s.Explain(a, b).Score
}

// Explain возвращает оценку вместе с совпавшими тегами и слотами.
func (s *Scorer) Explain(a, b *MatchProfile) Breakdown {
	interests := intersect(a.Interests, b.Interests)
	goals := intersect(a.Goals, b.Goals)
	slots := intersect(a.Availability, b.Availability)

	bd := Breakdown{
		InterestOverlap:     jaccard(len(interests), len(a.Interests), len(b.Interests)),
		GoalOverlap:         jaccard(len(goals), len(a.Goals), len(b.Goals)),
		AvailabilityOverlap: minOverlap(len(slots), len(a.Availability), len(b.Availability)),
		MatchedInterests:    interests,
		MatchedGoals:        goals,
		SharedSlots:         slots,
	}

	raw := s.weights.Interests*bd.InterestOverlap +
		s.weights.Goals*bd.GoalOverlap +
		s.weights.Availability*bd.AvailabilityOverlap

	bd.Score = round4(clamp01(raw))
	return bd
}

// jaccard = |A∩B| / |A∪B|; пустое множество с любой стороны даёт 0.
func jaccard(common, sizeA, sizeB int) float64 {
	if sizeA == 0 || sizeB == 0 {
		return 0
	}
	union := sizeA + sizeB - common
	if union <= 0 {
		return 0
	}
	return float64(common) / float64(union)
}

// minOverlap = |A∩B| / min(|A|,|B|), не больше 1.
func minOverlap(common, sizeA, sizeB int) float64 {
	smaller := sizeA
	if sizeB < smaller {
		smaller = sizeB
	}
	if smaller == 0 {
		return 0
	}
	return math.Min(1, float64(common)/float64(smaller))
}

// intersect возвращает отсортированное пересечение двух множеств.
func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return []string{}
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	set := make(map[string]struct{}, len(large))
	for _, v := range large {
		set[v] = struct{}{}
	}

	out := make([]string, 0, len(small))
	seen := make(map[string]struct{}, len(small))
	for _, v := range small {
		if _, ok := set[v]; !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
