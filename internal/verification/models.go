package verification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by the repository when a row does not exist
var ErrNotFound = errors.New("not found")

// ErrAlreadyVerified is wrapped by the error returned when a review already
// has a verification record
var ErrAlreadyVerified = errors.New("review already has a verification record")

// VerificationStatus is the outcome of scoring or of an admin decision
type VerificationStatus string

const (
	StatusPending    VerificationStatus = "pending"
	StatusVerified   VerificationStatus = "verified"
	StatusSuspicious VerificationStatus = "suspicious"
	StatusRejected   VerificationStatus = "rejected"
)

// RatingBias describes how far a rating strays from the worker's average
type RatingBias string

const (
	RatingBiasNone     RatingBias = "none"
	RatingBiasPositive RatingBias = "positive"
	RatingBiasNegative RatingBias = "negative"
)

// Flag is a named threshold breach attached to a verification for triage
type Flag string

const (
	FlagInappropriateContent Flag = "inappropriate_content"
	FlagSpamDetected         Flag = "spam_detected"
	FlagLowReviewerHistory   Flag = "low_reviewer_history"
	FlagNeverWorkedTogether  Flag = "never_worked_together"
	FlagHighReviewFrequency  Flag = "high_review_frequency"
	FlagExtremeRating        Flag = "extreme_rating"
	FlagIPMismatch           Flag = "ip_mismatch"
	FlagSuspiciousLocation   Flag = "suspicious_location"
	// FlagFakeReviewSuspected is part of the stored vocabulary but no
	// rule raises it yet.
	FlagFakeReviewSuspected Flag = "fake_review_suspected"
)

// ReviewStatus is the moderation state of a review
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// ContentAnalysis holds the text scores. Sentiment is in [-1,1], the rest in [0,1].
type ContentAnalysis struct {
	InappropriateContentScore float64  `json:"inappropriate_content_score"`
	SpamScore                 float64  `json:"spam_score"`
	SentimentScore            float64  `json:"sentiment_score"`
	LanguageQualityScore      float64  `json:"language_quality_score"`
	FlaggedKeywords           []string `json:"flagged_keywords"`
}

// BehaviorAnalysis holds the reviewer trust signals
type BehaviorAnalysis struct {
	ReviewerHistoryScore   float64    `json:"reviewer_history_score"`
	IsFirstReview          bool       `json:"is_first_review"`
	ReviewFrequency        float64    `json:"review_frequency"`
	HasWorkedTogether      bool       `json:"has_worked_together"`
	ContractCompletionDate *time.Time `json:"contract_completion_date"`
	DaysAfterCompletion    int        `json:"days_after_completion"`
}

// RatingAnalysis compares the review rating with the worker's average
type RatingAnalysis struct {
	RatingDeviation     float64    `json:"rating_deviation"`
	CategoryConsistency float64    `json:"category_consistency"`
	RatingBias          RatingBias `json:"rating_bias"`
}

// LocationData is the IP risk outcome for the reviewer's request
type LocationData struct {
	IPAddress            string `json:"ip_address"`
	Country              string `json:"country,omitempty"`
	City                 string `json:"city,omitempty"`
	IsIPMismatch         bool   `json:"is_ip_mismatch"`
	IsSuspiciousLocation bool   `json:"is_suspicious_location"`
}

// ReviewVerification is the trust scoring record kept for one review
type ReviewVerification struct {
	ID         uuid.UUID `json:"id"`
	ReviewID   uuid.UUID `json:"review_id"`
	ReviewerID uuid.UUID `json:"reviewer_id"`
	WorkerID   uuid.UUID `json:"worker_id"`

	ContentAnalysis  *ContentAnalysis  `json:"content_analysis,omitempty"`
	BehaviorAnalysis *BehaviorAnalysis `json:"behavior_analysis,omitempty"`
	RatingAnalysis   *RatingAnalysis   `json:"rating_analysis,omitempty"`
	LocationData     *LocationData     `json:"location_data,omitempty"`

	Score                float64            `json:"score"`
	Status               VerificationStatus `json:"status"`
	AutoApproved         bool               `json:"auto_approved"`
	RequiresManualReview bool               `json:"requires_manual_review"`
	Flags                []Flag             `json:"flags"`
	// DegradedAnalyzers lists analyzers that fell back to neutral values
	// because a dependency failed
	DegradedAnalyzers []string   `json:"degraded_analyzers,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerifiedBy        *uuid.UUID `json:"verified_by,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review is the subset of a review the verification engine reads and moderates
type Review struct {
	ID          uuid.UUID    `json:"id"`
	ClientID    uuid.UUID    `json:"client_id"`
	WorkerID    uuid.UUID    `json:"worker_id"`
	Rating      float64      `json:"rating"`
	Comment     string       `json:"comment"`
	Strengths   []string     `json:"strengths"`
	Status      ReviewStatus `json:"status"`
	ModeratedAt *time.Time   `json:"moderated_at,omitempty"`
	ModeratedBy *uuid.UUID   `json:"moderated_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// User is a reviewer or worker account
type User struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	ProfilePicture string    `json:"profile_picture"`
	Role           string    `json:"role"`
	Country        string    `json:"country"`
	City           string    `json:"city"`
	Rating         float64   `json:"rating"`
	ReviewCount    int       `json:"review_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Contract is a completed engagement between a hirer and a worker
type Contract struct {
	ID          uuid.UUID  `json:"id"`
	HirerID     uuid.UUID  `json:"hirer_id"`
	WorkerID    uuid.UUID  `json:"worker_id"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at"`
}

// UserSummary is the public view of a user embedded in verification details
type UserSummary struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	Rating         float64   `json:"rating"`
}

// ReviewSummary is the view of a review embedded in verification details
type ReviewSummary struct {
	ID        uuid.UUID    `json:"id"`
	Rating    float64      `json:"rating"`
	Comment   string       `json:"comment"`
	Status    ReviewStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// VerificationDetails is a verification with its review and parties
type VerificationDetails struct {
	*ReviewVerification
	Review   *ReviewSummary `json:"review,omitempty"`
	Reviewer *UserSummary   `json:"reviewer,omitempty"`
	Worker   *UserSummary   `json:"worker,omitempty"`
}

// VerificationStats backs the admin dashboard
type VerificationStats struct {
	Total      int64                        `json:"total"`
	ByStatus   map[VerificationStatus]int64 `json:"by_status"`
	FlagCounts map[Flag]int64               `json:"flag_counts"`
}

// ManualVerificationRequest is an admin decision on a queued verification
type ManualVerificationRequest struct {
	Status string `json:"status" validate:"required,verification_decision"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// RatingSummary is the result of a worker rating recomputation
type RatingSummary struct {
	WorkerID    uuid.UUID `json:"worker_id"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
}

func summarizeUser(u *User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
		Rating:         u.Rating,
	}
}

func summarizeReview(r *Review) *ReviewSummary {
	if r == nil {
		return nil
	}
	return &ReviewSummary{
		ID:        r.ID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}
