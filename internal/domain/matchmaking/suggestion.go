package matchmaking

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH SUGGESTION
// Производные данные: могут кешироваться, но никогда не являются
// источником истины для вместимости слотов.
// ══════════════════════════════════════════════════════════════════════════════

// MatchSuggestion - кандидат для профиля с оценкой совместимости.
type MatchSuggestion struct {
	SourceProfileID        string    `json:"sourceProfileId"`
	CandidateProfileID     string    `json:"candidateProfileId"`
	CandidateParticipantID string    `json:"candidateId"`
	Score                  float64   `json:"score"`
	MatchedInterests       []string  `json:"matchedInterests"`
	MatchedGoals           []string  `json:"matchedGoals"`
	SharedSlots            []string  `json:"sharedSlots"`
	CandidateUpdatedAt     time.Time `json:"candidateUpdatedAt"`
}

// SuggestionList - ранжированный список предложений.
type SuggestionList []MatchSuggestion

// Sort упорядочивает список: оценка по убыванию, затем более свежее
// обновление профиля кандидата, затем идентификатор профиля кандидата.
func (l SuggestionList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i], l[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CandidateUpdatedAt.Equal(b.CandidateUpdatedAt) {
			return a.CandidateUpdatedAt.After(b.CandidateUpdatedAt)
		}
		return a.CandidateProfileID < b.CandidateProfileID
	})
}

// Without возвращает список без кандидатов-участников из exclude.
func (l SuggestionList) Without(exclude map[string]struct{}) SuggestionList {
	if len(exclude) == 0 {
		return l
	}
	out := make(SuggestionList, 0, len(l))
	for _, s := range l {
		if _, skip := exclude[s.CandidateParticipantID]; skip {
			continue
		}
		out = append(out, s)
	}
	return out
}

// TopN возвращает первые n элементов (n <= 0 - весь список).
func (l SuggestionList) TopN(n int) SuggestionList {
	if n <= 0 || n >= len(l) {
		return l
	}
	return l[:n]
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Ranker строит ранжированный список кандидатов для профиля.
type Ranker struct {
	scorer *Scorer
}

// NewRanker создаёт Ranker поверх Scorer.
func NewRanker(scorer *Scorer) *Ranker {
	return &Ranker{scorer: scorer}
}

// Scorer возвращает используемый Scorer.
func (r *Ranker) Scorer() *Scorer {
	return r.scorer
}

// Rank оценивает source против всех candidates того же мероприятия.
// Сам профиль и кандидаты с нулевой оценкой в список не попадают.
// Несравнимый профиль даёт пустой список, а не ошибку.
func (r *Ranker) Rank(source *MatchProfile, candidates []*MatchProfile) SuggestionList {
	out := make(SuggestionList, 0, len(candidates))
	if source == nil || !source.IsComparable() {
		return out
	}

	for _, c := range candidates {
		if c == nil || c.ID == source.ID || c.ParticipantID == source.ParticipantID {
			continue
		}
		if c.EventID != source.EventID {
			continue
		}
		bd := r.scorer.Explain(source, c)
		if bd.Score <= 0 {
			continue
		}
		out = append(out, MatchSuggestion{
			SourceProfileID:        source.ID,
			CandidateProfileID:     c.ID,
			CandidateParticipantID: c.ParticipantID,
			Score:                  bd.Score,
			MatchedInterests:       bd.MatchedInterests,
			MatchedGoals:           bd.MatchedGoals,
			SharedSlots:            bd.SharedSlots,
			CandidateUpdatedAt:     c.UpdatedAt,
		})
	}

	out.Sort()
	return out
}
