package verification

import (
	"math"
	"strings"
	"time"
)

// Analyzer names used in outcomes, logs and metrics
const (
	AnalyzerContent  = "content"
	AnalyzerBehavior = "behavior"
	AnalyzerRating   = "rating"
	AnalyzerLocation = "location"
)

// OutcomeStatus tells apart a real result from neutral fallbacks
type OutcomeStatus string

const (
	OutcomeOK     OutcomeStatus = "ok"
	OutcomeNoData OutcomeStatus = "no_data"
	OutcomeFailed OutcomeStatus = "failed"
)

// AnalyzerOutcome records how one analyzer finished. Failed outcomes keep
// the cause for logging; the score is computed the same way either way.
type AnalyzerOutcome struct {
	Analyzer string
	Status   OutcomeStatus
	Err      error
}

func okOutcome(analyzer string) AnalyzerOutcome {
	return AnalyzerOutcome{Analyzer: analyzer, Status: OutcomeOK}
}

func failedOutcome(analyzer string, err error) AnalyzerOutcome {
	return AnalyzerOutcome{Analyzer: analyzer, Status: OutcomeFailed, Err: err}
}

func noDataOutcome(analyzer string) AnalyzerOutcome {
	return AnalyzerOutcome{Analyzer: analyzer, Status: OutcomeNoData}
}

const (
	daysPerMonth      = 30.0
	frequencyCeiling  = 5.0
	maxAgeBonus       = 0.2
	maxCountBonus     = 0.1
	maxFrequencyCut   = 0.2
	photoBonus        = 0.1
	fullProfileBonus  = 0.1
	neutralScore      = 0.5
	ratingBiasCutoff  = 1.0
	maxRatingDistance = 5.0
)

// NeutralBehavior is the behavior analysis used when it cannot be computed
func NeutralBehavior() *BehaviorAnalysis {
	return &BehaviorAnalysis{ReviewerHistoryScore: neutralScore}
}

// AnalyzeBehavior derives reviewer trust signals. reviewCount is the
// reviewer's total number of reviews including this one; contract is the
// completed contract between reviewer and worker, if any.
func AnalyzeBehavior(reviewer *User, reviewCount int, contract *Contract, review *Review, now time.Time) *BehaviorAnalysis {
	analysis := NeutralBehavior()
	if reviewer == nil || review == nil {
		return analysis
	}

	ageDays := now.Sub(reviewer.CreatedAt).Hours() / 24
	months := ageDays / daysPerMonth

	analysis.IsFirstReview = reviewCount <= 1
	if months > 0 {
		analysis.ReviewFrequency = float64(reviewCount) / months
	} else {
		analysis.ReviewFrequency = float64(reviewCount)
	}

	if contract != nil {
		analysis.HasWorkedTogether = true
		if contract.CompletedAt != nil {
			completed := *contract.CompletedAt
			analysis.ContractCompletionDate = &completed
			// Negative when the review predates completion
			analysis.DaysAfterCompletion = int(math.Floor(review.CreatedAt.Sub(completed).Hours() / 24))
		}
	}

	score := neutralScore
	if ageDays > 0 {
		score += math.Min(maxAgeBonus, ageDays/365*maxAgeBonus)
	}
	score += math.Min(maxCountBonus, float64(reviewCount)/10*maxCountBonus)
	if strings.TrimSpace(reviewer.ProfilePicture) != "" {
		score += photoBonus
	}
	if hasCompleteProfile(reviewer) {
		score += fullProfileBonus
	}
	if analysis.ReviewFrequency > frequencyCeiling {
		score -= math.Min(maxFrequencyCut, (analysis.ReviewFrequency-frequencyCeiling)/10)
	}
	analysis.ReviewerHistoryScore = clamp01(score)

	return analysis
}

func hasCompleteProfile(u *User) bool {
	for _, field := range []string{u.FirstName, u.LastName, u.Email, u.Phone} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}

// AnalyzeRating compares the review's rating with the worker's current
// average, before this review is counted
func AnalyzeRating(review *Review, worker *User) *RatingAnalysis {
	if review == nil || worker == nil {
		return nil
	}

	deviation := review.Rating - worker.Rating
	bias := RatingBiasNone
	switch {
	case deviation > ratingBiasCutoff:
		bias = RatingBiasPositive
	case deviation < -ratingBiasCutoff:
		bias = RatingBiasNegative
	}

	return &RatingAnalysis{
		RatingDeviation: deviation,
		// No per-category ratings exist, so consistency stays neutral
		CategoryConsistency: neutralScore,
		RatingBias:          bias,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
