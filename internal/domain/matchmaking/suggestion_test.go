package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanker_OrderingAndTieBreaks(t *testing.T) {
	ranker := NewRanker(MustNewScorer(DefaultWeights()))
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	source := profile(t, "src", []string{"ai", "cloud"}, []string{"hiring"}, nil)

	strong := profile(t, "strong", []string{"ai", "cloud"}, []string{"hiring"}, nil)
	tieOld := profile(t, "tie-b", []string{"ai"}, nil, nil)
	tieNew := profile(t, "tie-c", []string{"ai"}, nil, nil)
	tieSameTime := profile(t, "tie-a", []string{"ai"}, nil, nil)
	none := profile(t, "none", []string{"sales"}, nil, nil)

	tieOld.UpdatedAt = base
	tieSameTime.UpdatedAt = base
	tieNew.UpdatedAt = base.Add(time.Hour)

	list := ranker.Rank(source, []*MatchProfile{none, tieOld, source, tieSameTime, strong, tieNew})

	ids := make([]string, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.CandidateProfileID)
	}
	assert.Equal(t, []string{"strong", "tie-c", "tie-a", "tie-b"}, ids)
	// Без общего расписания доступность даёт 0: 0.5 + 0.3 + 0.
	assert.Equal(t, 0.8, list[0].Score)
	assert.Equal(t, "participant-strong", list[0].CandidateParticipantID)
}

func TestRanker_FullScoreWithSharedAvailability(t *testing.T) {
	ranker := NewRanker(MustNewScorer(DefaultWeights()))

	source := profile(t, "src", []string{"ai", "cloud"}, []string{"hiring"}, []string{"s1", "s2"})
	twin := profile(t, "twin", []string{"ai", "cloud"}, []string{"hiring"}, []string{"s1", "s2"})
	partial := profile(t, "partial", []string{"ai", "cloud"}, []string{"hiring"}, []string{"s2", "s3"})

	list := ranker.Rank(source, []*MatchProfile{partial, twin})
	require.Len(t, list, 2)

	assert.Equal(t, "twin", list[0].CandidateProfileID)
	assert.Equal(t, 1.0, list[0].Score)
	assert.Equal(t, "partial", list[1].CandidateProfileID)
	assert.Less(t, list[1].Score, 1.0)
	assert.Greater(t, list[1].Score, 0.8)
}

func TestRanker_NotComparableYieldsEmpty(t *testing.T) {
	ranker := NewRanker(MustNewScorer(DefaultWeights()))

	empty := profile(t, "empty", nil, nil, nil)
	other := profile(t, "other", []string{"ai"}, nil, nil)

	assert.Empty(t, ranker.Rank(empty, []*MatchProfile{other}))
	assert.Empty(t, ranker.Rank(other, nil))
}

func TestRanker_SkipsOtherEvents(t *testing.T) {
	ranker := NewRanker(MustNewScorer(DefaultWeights()))

	source := profile(t, "src", []string{"ai"}, nil, nil)
	foreign := profile(t, "foreign", []string{"ai"}, nil, nil)
	foreign.EventID = "event-2"

	assert.Empty(t, ranker.Rank(source, []*MatchProfile{foreign}))
}

func TestSuggestionList_WithoutAndTopN(t *testing.T) {
	list := SuggestionList{
		{CandidateProfileID: "1", CandidateParticipantID: "p1", Score: 0.9},
		{CandidateProfileID: "2", CandidateParticipantID: "p2", Score: 0.8},
		{CandidateProfileID: "3", CandidateParticipantID: "p3", Score: 0.7},
	}

	filtered := list.Without(map[string]struct{}{"p2": {}})
	require.Len(t, filtered, 2)
	assert.Equal(t, "3", filtered[1].CandidateProfileID)

	assert.Len(t, list.TopN(2), 2)
	assert.Len(t, list.TopN(0), 3)
	assert.Len(t, list.TopN(10), 3)
}
