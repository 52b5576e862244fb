package textanalysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	scores *ExternalScores
	err    error
	calls  int
}

func (s *stubScorer) Score(ctx context.Context, text string) (*ExternalScores, error) {
	s.calls++
	return s.scores, s.err
}

func float(v float64) *float64 { return &v }

func TestAnalyze_PositiveReview(t *testing.T) {
	result, err := NewAnalyzer(nil).Analyze(context.Background(), "Excellent work, highly recommended!!! punctual")
	require.NoError(t, err)

	// 3 marks over 46 characters stays under the punctuation threshold
	assert.Equal(t, 0.0, result.SpamScore)
	assert.Equal(t, 0.0, result.InappropriateScore)
	assert.InDelta(t, 0.8, result.SentimentScore, 1e-9)
	assert.InDelta(t, 0.5, result.QualityScore, 1e-9)
	assert.Empty(t, result.FlaggedKeywords)
}

func TestAnalyze_SpamSignals(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		spam     float64
		keywords []string
	}{
		{
			name:     "keywords",
			text:     "this is a scam, total fraud",
			spam:     0.4,
			keywords: []string{"scam", "fraud"},
		},
		{
			name:     "keywords are case insensitive",
			text:     "Click HERE for Free Money",
			spam:     0.4,
			keywords: []string{"click here", "free money"},
		},
		{
			name: "uppercase",
			text: "THIS WORKER WAS FANTASTIC",
			spam: 0.2,
		},
		{
			name: "punctuation",
			text: "ok?? really!! wow!!! yes!",
			spam: 0.2,
		},
		{
			name: "short text ignores shape bonuses",
			text: "WOW!!!!",
			spam: 0,
		},
		{
			name:     "clamped to one",
			text:     "FAKE SCAM FRAUD GUARANTEED BUY NOW CLICK HERE!!!!!!!!",
			spam:     1,
			keywords: []string{"fake", "scam", "fraud", "click here", "buy now", "guaranteed"},
		},
	}

	analyzer := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := analyzer.Analyze(context.Background(), tt.text)
			require.NoError(t, err)

			assert.InDelta(t, tt.spam, result.SpamScore, 1e-9)
			assert.InDelta(t, 0.5*tt.spam, result.InappropriateScore, 1e-9)
			if tt.keywords == nil {
				assert.Empty(t, result.FlaggedKeywords)
			} else {
				assert.ElementsMatch(t, tt.keywords, result.FlaggedKeywords)
			}
		})
	}
}

func TestAnalyze_Sentiment(t *testing.T) {
	analyzer := NewAnalyzer(nil)

	result, _ := analyzer.Analyze(context.Background(), "rude and late, terrible")
	assert.InDelta(t, -1.0, result.SentimentScore, 1e-9)

	result, _ = analyzer.Analyze(context.Background(), "good job but late")
	assert.InDelta(t, 0.0, result.SentimentScore, 1e-9)

	result, _ = analyzer.Analyze(context.Background(), "")
	assert.Equal(t, 0.0, result.SentimentScore)
}

func TestAnalyze_Quality(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		quality float64
	}{
		{name: "too short", text: "ok", quality: 0.3},
		{name: "neutral length", text: "fixed the sink fine.", quality: 0.5},
		{name: "good length with punctuation", text: "He arrived on time and fixed the leaking pipe in the kitchen.", quality: 0.6},
		{name: "good length without punctuation", text: "he arrived on time and fixed the leaking pipe in the kitchen", quality: 0.5},
		{name: "missing punctuation", text: "came fixed the pipe went home", quality: 0.4},
		{name: "very long", text: strings.Repeat("word ", 501) + ".", quality: 0.4},
	}

	analyzer := NewAnalyzer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := analyzer.Analyze(context.Background(), tt.text)
			require.NoError(t, err)
			assert.InDelta(t, tt.quality, result.QualityScore, 1e-9)
		})
	}
}

func TestAnalyze_ExternalOverridesPresentFields(t *testing.T) {
	scorer := &stubScorer{scores: &ExternalScores{Toxicity: float(0.9), Sentiment: float(-0.4)}}

	result, err := NewAnalyzer(scorer).Analyze(context.Background(), "this is a scam")
	require.NoError(t, err)

	assert.Equal(t, 1, scorer.calls)
	assert.InDelta(t, 0.9, result.InappropriateScore, 1e-9)
	assert.Equal(t, -0.4, result.SentimentScore)
	assert.InDelta(t, 0.2, result.SpamScore, 1e-9, "absent external spam keeps the local value")
	assert.Equal(t, []string{"scam"}, result.FlaggedKeywords)
}

func TestAnalyze_ExternalFailureKeepsLocal(t *testing.T) {
	scorer := &stubScorer{err: errors.New("timeout")}
	local, _ := NewAnalyzer(nil).Analyze(context.Background(), "great plumber, reliable")

	result, err := NewAnalyzer(scorer).Analyze(context.Background(), "great plumber, reliable")

	assert.Error(t, err)
	assert.Equal(t, local, result)
}

func TestAnalyze_ExternalClamped(t *testing.T) {
	scorer := &stubScorer{scores: &ExternalScores{Spam: float(1.7), Sentiment: float(-3)}}

	result, err := NewAnalyzer(scorer).Analyze(context.Background(), "fine")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.SpamScore, 1e-9)
	assert.Equal(t, -1.0, result.SentimentScore)
}
