package textanalysis

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/cloudflare/ahocorasick"
)

// Result holds the content scores for a piece of review text. Sentiment is
// in [-1,1]; every other score is in [0,1].
type Result struct {
	InappropriateScore float64  `json:"inappropriateScore"`
	SpamScore          float64  `json:"spamScore"`
	SentimentScore     float64  `json:"sentimentScore"`
	QualityScore       float64  `json:"qualityScore"`
	FlaggedKeywords    []string `json:"flaggedKeywords"`
}

// Scorer is an external NLP service. Nil fields in its answer leave the
// local score in place.
type Scorer interface {
	Score(ctx context.Context, text string) (*ExternalScores, error)
}

// ExternalScores is the answer of an external NLP service
type ExternalScores struct {
	Toxicity  *float64 `json:"toxicity"`
	Spam      *float64 `json:"spam"`
	Sentiment *float64 `json:"sentiment"`
	Quality   *float64 `json:"quality"`
}

// Analyzer scores review text with local heuristics and, when configured,
// an external NLP service
type Analyzer struct {
	// Matcher keeps per-scan state, so scans are serialized
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	keywords []string
	external Scorer
}

// NewAnalyzer creates an analyzer. external may be nil.
func NewAnalyzer(external Scorer) *Analyzer {
	return &Analyzer{
		matcher:  ahocorasick.NewStringMatcher(suspiciousKeywords),
		keywords: suspiciousKeywords,
		external: external,
	}
}

// Analyze always returns a result. A non-nil error means the external
// service failed and the result is purely local.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Result, error) {
	result := a.analyzeLocal(text)

	if a.external == nil || strings.TrimSpace(text) == "" {
		return result, nil
	}

	scores, err := a.external.Score(ctx, text)
	if err != nil {
		return result, err
	}
	if scores.Toxicity != nil {
		result.InappropriateScore = clamp(*scores.Toxicity, 0, 1)
	}
	if scores.Spam != nil {
		result.SpamScore = clamp(*scores.Spam, 0, 1)
	}
	if scores.Sentiment != nil {
		result.SentimentScore = clamp(*scores.Sentiment, -1, 1)
	}
	if scores.Quality != nil {
		result.QualityScore = clamp(*scores.Quality, 0, 1)
	}
	return result, nil
}

func (a *Analyzer) analyzeLocal(text string) *Result {
	flagged := a.flaggedKeywords(text)
	words := strings.Fields(text)

	spam := spamScore(text, len(flagged))
	return &Result{
		InappropriateScore: 0.5 * spam,
		SpamScore:          spam,
		SentimentScore:     sentimentScore(words),
		QualityScore:       qualityScore(text, len(words)),
		FlaggedKeywords:    flagged,
	}
}

func (a *Analyzer) flaggedKeywords(text string) []string {
	a.mu.Lock()
	hits := a.matcher.Match([]byte(strings.ToLower(text)))
	a.mu.Unlock()

	sort.Ints(hits)
	flagged := make([]string, 0, len(hits))
	for _, i := range hits {
		flagged = append(flagged, a.keywords[i])
	}
	return flagged
}

func spamScore(text string, keywordHits int) float64 {
	score := math.Min(1, float64(keywordHits)/5)

	runes := []rune(text)
	if len(runes) > 20 {
		var upper, marks int
		for _, r := range runes {
			switch {
			case unicode.IsUpper(r):
				upper++
			case r == '!' || r == '?':
				marks++
			}
		}
		length := float64(len(runes))
		if float64(upper)/length > 0.3 {
			score += 0.2
		}
		if float64(marks)/length > 0.1 {
			score += 0.2
		}
	}

	return clamp(score, 0, 1)
}

func sentimentScore(words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	var positive, negative int
	for _, w := range words {
		w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r)
		}))
		if _, ok := positiveWords[w]; ok {
			positive++
		}
		if _, ok := negativeWords[w]; ok {
			negative++
		}
	}

	return clamp(2*float64(positive-negative)/float64(len(words)), -1, 1)
}

func qualityScore(text string, wordCount int) float64 {
	score := 0.5
	if wordCount < 3 {
		score -= 0.2
	}
	if wordCount >= 10 && wordCount <= 200 {
		score += 0.1
	}
	if wordCount > 500 {
		score -= 0.1
	}
	if wordCount > 5 && !strings.ContainsAny(text, ".!?") {
		score -= 0.1
	}
	return clamp(score, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
