package verification

import "math"

const (
	verifiedThreshold = 0.8
	pendingThreshold  = 0.5

	inappropriateFlagThreshold = 0.7
	spamFlagThreshold          = 0.7
	lowHistoryThreshold        = 0.3
	highFrequencyThreshold     = 10.0
	extremeDeviation           = 2.5
)

// Factor is one named contribution to the verification score
type Factor struct {
	Name         string
	Weight       float64
	Contribution float64
}

// ScoreFactors lists the contributions of whichever analyses are present
func ScoreFactors(content *ContentAnalysis, behavior *BehaviorAnalysis, rating *RatingAnalysis, location *LocationData) []Factor {
	var factors []Factor
	add := func(name string, contribution float64) {
		factors = append(factors, Factor{Name: name, Weight: 1, Contribution: contribution})
	}

	if content != nil {
		add("appropriate_content", 1-content.InappropriateContentScore)
		add("not_spam", 1-content.SpamScore)
		add("language_quality", content.LanguageQualityScore)
	}
	if behavior != nil {
		add("reviewer_history", behavior.ReviewerHistoryScore)
		add("worked_together", boolScore(behavior.HasWorkedTogether))
	}
	if rating != nil {
		add("category_consistency", rating.CategoryConsistency)
		add("rating_deviation", 1-math.Min(math.Abs(rating.RatingDeviation), maxRatingDistance)/maxRatingDistance)
	}
	if location != nil {
		add("ip_match", boolScore(!location.IsIPMismatch))
		add("clean_location", boolScore(!location.IsSuspiciousLocation))
	}

	return factors
}

// WeightedScore reduces factors to their weighted mean, or the neutral
// 0.5 when there are none
func WeightedScore(factors []Factor) float64 {
	var sum, weights float64
	for _, f := range factors {
		sum += f.Weight * f.Contribution
		weights += f.Weight
	}
	if weights == 0 {
		return neutralScore
	}
	return clamp01(sum / weights)
}

// StatusForScore maps a score onto the review workflow
func StatusForScore(score float64) (status VerificationStatus, autoApproved, requiresManualReview bool) {
	switch {
	case score >= verifiedThreshold:
		return StatusVerified, true, false
	case score >= pendingThreshold:
		return StatusPending, false, true
	default:
		return StatusSuspicious, false, true
	}
}

// CalculateVerificationScore scores the attached analyses and sets the
// score, status and workflow flags
func (v *ReviewVerification) CalculateVerificationScore() float64 {
	score := WeightedScore(ScoreFactors(v.ContentAnalysis, v.BehaviorAnalysis, v.RatingAnalysis, v.LocationData))

	v.Score = score
	v.Status, v.AutoApproved, v.RequiresManualReview = StatusForScore(score)
	return score
}

// ComputeFlags returns the threshold breaches of the given analyses in a
// fixed order
func ComputeFlags(content *ContentAnalysis, behavior *BehaviorAnalysis, rating *RatingAnalysis, location *LocationData) []Flag {
	flags := []Flag{}

	if content != nil {
		if content.InappropriateContentScore > inappropriateFlagThreshold {
			flags = append(flags, FlagInappropriateContent)
		}
		if content.SpamScore > spamFlagThreshold {
			flags = append(flags, FlagSpamDetected)
		}
	}
	if behavior != nil {
		if behavior.ReviewerHistoryScore < lowHistoryThreshold {
			flags = append(flags, FlagLowReviewerHistory)
		}
		if !behavior.HasWorkedTogether {
			flags = append(flags, FlagNeverWorkedTogether)
		}
		if behavior.ReviewFrequency > highFrequencyThreshold {
			flags = append(flags, FlagHighReviewFrequency)
		}
	}
	if rating != nil && math.Abs(rating.RatingDeviation) > extremeDeviation {
		flags = append(flags, FlagExtremeRating)
	}
	if location != nil {
		if location.IsIPMismatch {
			flags = append(flags, FlagIPMismatch)
		}
		if location.IsSuspiciousLocation {
			flags = append(flags, FlagSuspiciousLocation)
		}
	}

	return flags
}

// SetVerificationFlags replaces the record's flags with a fresh computation
func (v *ReviewVerification) SetVerificationFlags() []Flag {
	v.Flags = ComputeFlags(v.ContentAnalysis, v.BehaviorAnalysis, v.RatingAnalysis, v.LocationData)
	return v.Flags
}

// HasFlag reports whether f is set on the record
func (v *ReviewVerification) HasFlag(f Flag) bool {
	for _, existing := range v.Flags {
		if existing == f {
			return true
		}
	}
	return false
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
