package verification

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomAnalyses(r *rand.Rand) (*ContentAnalysis, *BehaviorAnalysis, *RatingAnalysis, *LocationData) {
	var (
		content  *ContentAnalysis
		behavior *BehaviorAnalysis
		rating   *RatingAnalysis
		location *LocationData
	)
	if r.Intn(2) == 0 {
		content = &ContentAnalysis{
			InappropriateContentScore: r.Float64(),
			SpamScore:                 r.Float64(),
			SentimentScore:            r.Float64()*2 - 1,
			LanguageQualityScore:      r.Float64(),
		}
	}
	if r.Intn(2) == 0 {
		behavior = &BehaviorAnalysis{
			ReviewerHistoryScore: r.Float64(),
			HasWorkedTogether:    r.Intn(2) == 0,
			ReviewFrequency:      r.Float64() * 30,
		}
	}
	if r.Intn(2) == 0 {
		rating = &RatingAnalysis{
			RatingDeviation:     r.Float64()*10 - 5,
			CategoryConsistency: 0.5,
		}
	}
	if r.Intn(2) == 0 {
		location = &LocationData{
			IsIPMismatch:         r.Intn(2) == 0,
			IsSuspiciousLocation: r.Intn(2) == 0,
		}
	}
	return content, behavior, rating, location
}

func TestCalculateVerificationScore_RangeAndStatus(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		content, behavior, rating, location := randomAnalyses(r)
		v := &ReviewVerification{
			ContentAnalysis:  content,
			BehaviorAnalysis: behavior,
			RatingAnalysis:   rating,
			LocationData:     location,
		}

		score := v.CalculateVerificationScore()

		require.GreaterOrEqual(t, score, 0.0)
		require.LessOrEqual(t, score, 1.0)
		assert.Equal(t, score, v.Score)

		switch {
		case score >= 0.8:
			assert.Equal(t, StatusVerified, v.Status)
			assert.True(t, v.AutoApproved)
			assert.False(t, v.RequiresManualReview)
		case score >= 0.5:
			assert.Equal(t, StatusPending, v.Status)
			assert.False(t, v.AutoApproved)
			assert.True(t, v.RequiresManualReview)
		default:
			assert.Equal(t, StatusSuspicious, v.Status)
			assert.False(t, v.AutoApproved)
			assert.True(t, v.RequiresManualReview)
		}
	}
}

func TestCalculateVerificationScore_NoAnalysesIsNeutral(t *testing.T) {
	v := &ReviewVerification{}

	score := v.CalculateVerificationScore()

	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Equal(t, StatusPending, v.Status)
	assert.True(t, v.RequiresManualReview)
	assert.False(t, v.AutoApproved)
}

func TestStatusForScore_Boundaries(t *testing.T) {
	tests := []struct {
		score  float64
		status VerificationStatus
		auto   bool
		manual bool
	}{
		{1.0, StatusVerified, true, false},
		{0.8, StatusVerified, true, false},
		{0.7999, StatusPending, false, true},
		{0.5, StatusPending, false, true},
		{0.4999, StatusSuspicious, false, true},
		{0, StatusSuspicious, false, true},
	}

	for _, tt := range tests {
		status, auto, manual := StatusForScore(tt.score)
		assert.Equal(t, tt.status, status, "score %v", tt.score)
		assert.Equal(t, tt.auto, auto, "score %v", tt.score)
		assert.Equal(t, tt.manual, manual, "score %v", tt.score)
	}
}

func TestScoreFactors(t *testing.T) {
	factors := ScoreFactors(
		&ContentAnalysis{InappropriateContentScore: 0.2, SpamScore: 0.4, LanguageQualityScore: 0.6},
		&BehaviorAnalysis{ReviewerHistoryScore: 0.7, HasWorkedTogether: true},
		&RatingAnalysis{RatingDeviation: -7, CategoryConsistency: 0.5},
		&LocationData{IsIPMismatch: true},
	)

	got := make(map[string]float64, len(factors))
	for _, f := range factors {
		assert.Equal(t, 1.0, f.Weight)
		got[f.Name] = f.Contribution
	}

	assert.Len(t, factors, 9)
	assert.InDelta(t, 0.8, got["appropriate_content"], 1e-9)
	assert.InDelta(t, 0.6, got["not_spam"], 1e-9)
	assert.InDelta(t, 0.6, got["language_quality"], 1e-9)
	assert.InDelta(t, 0.7, got["reviewer_history"], 1e-9)
	assert.InDelta(t, 1.0, got["worked_together"], 1e-9)
	assert.InDelta(t, 0.5, got["category_consistency"], 1e-9)
	assert.Equal(t, 0.0, got["rating_deviation"], "deviation is capped at 5")
	assert.Equal(t, 0.0, got["ip_match"])
	assert.InDelta(t, 1.0, got["clean_location"], 1e-9)
}

func TestScoreFactors_OnlyPresentAnalyses(t *testing.T) {
	factors := ScoreFactors(nil, nil, &RatingAnalysis{RatingDeviation: 1, CategoryConsistency: 0.5}, nil)

	require.Len(t, factors, 2)
	assert.InDelta(t, (0.5+0.8)/2, WeightedScore(factors), 1e-9)
}

func TestWeightedScore_UsesWeights(t *testing.T) {
	score := WeightedScore([]Factor{
		{Name: "a", Weight: 3, Contribution: 1},
		{Name: "b", Weight: 1, Contribution: 0},
	})
	assert.InDelta(t, 0.75, score, 1e-9)
	assert.Equal(t, 0.5, WeightedScore(nil))
}

func TestComputeFlags(t *testing.T) {
	flags := ComputeFlags(
		&ContentAnalysis{InappropriateContentScore: 0.71, SpamScore: 0.9},
		&BehaviorAnalysis{ReviewerHistoryScore: 0.2, HasWorkedTogether: false, ReviewFrequency: 11},
		&RatingAnalysis{RatingDeviation: -2.6},
		&LocationData{IsIPMismatch: true, IsSuspiciousLocation: true},
	)

	assert.Equal(t, []Flag{
		FlagInappropriateContent,
		FlagSpamDetected,
		FlagLowReviewerHistory,
		FlagNeverWorkedTogether,
		FlagHighReviewFrequency,
		FlagExtremeRating,
		FlagIPMismatch,
		FlagSuspiciousLocation,
	}, flags)
	assert.NotContains(t, flags, FlagFakeReviewSuspected)
}

func TestComputeFlags_ThresholdsAreStrict(t *testing.T) {
	flags := ComputeFlags(
		&ContentAnalysis{InappropriateContentScore: 0.7, SpamScore: 0.7},
		&BehaviorAnalysis{ReviewerHistoryScore: 0.3, HasWorkedTogether: true, ReviewFrequency: 10},
		&RatingAnalysis{RatingDeviation: 2.5},
		&LocationData{},
	)
	assert.Empty(t, flags)
	assert.NotNil(t, flags)
}

func TestSetVerificationFlags_IsDeterministicAndReplaces(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		content, behavior, rating, location := randomAnalyses(r)
		v := &ReviewVerification{
			ContentAnalysis:  content,
			BehaviorAnalysis: behavior,
			RatingAnalysis:   rating,
			LocationData:     location,
			Flags:            []Flag{FlagFakeReviewSuspected},
		}

		first := slices.Clone(v.SetVerificationFlags())
		second := v.SetVerificationFlags()

		assert.Equal(t, first, second)
		assert.False(t, v.HasFlag(FlagFakeReviewSuspected), "flags are recomputed, not appended")
	}
}
