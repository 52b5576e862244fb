package verification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelmah/review-verification/internal/iprisk"
	"github.com/kelmah/review-verification/pkg/common"
	"github.com/kelmah/review-verification/pkg/eventbus"
	"github.com/kelmah/review-verification/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service runs review verification and the admin moderation workflow
type Service struct {
	repo   RepositoryInterface
	text   TextAnalyzer
	ip     IPLookup
	events eventbus.Publisher
	now    func() time.Time
}

// NewService creates a new verification service. text and ip may be nil,
// in which case the content analysis is skipped and every IP resolves to
// unknown. A nil publisher drops events.
func NewService(repo RepositoryInterface, text TextAnalyzer, ip IPLookup, events eventbus.Publisher) *Service {
	if events == nil {
		events = eventbus.NoopPublisher{}
	}
	return &Service{
		repo:   repo,
		text:   text,
		ip:     ip,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// parties holds the entities a verification is computed from. Lookup
// errors are kept so the analyzers can degrade instead of failing.
type parties struct {
	reviewer    *User
	worker      *User
	contract    *Contract
	reviewCount int

	reviewerErr error
	workerErr   error
	contractErr error
	countErr    error
}

// CreateVerification scores a freshly created review, stores the record
// and auto-approves the review when the score allows it
func (s *Service) CreateVerification(ctx context.Context, reviewID uuid.UUID, clientIP string) (*ReviewVerification, error) {
	review, err := s.repo.GetReviewByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, common.NewNotFoundError("Review not found", err)
		}
		return nil, common.NewInternalError("failed to get review", err)
	}

	existing, err := s.repo.GetVerificationByReviewID(ctx, reviewID)
	if err == nil && existing != nil {
		return nil, alreadyVerified()
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, common.NewInternalError("failed to check existing verification", err)
	}

	now := s.now()
	v := &ReviewVerification{
		ID:         uuid.New(),
		ReviewID:   review.ID,
		ReviewerID: review.ClientID,
		WorkerID:   review.WorkerID,
		Flags:      []Flag{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	p := s.loadParties(ctx, review)
	s.runAnalyzers(ctx, v, review, p, clientIP, now)

	v.CalculateVerificationScore()
	v.SetVerificationFlags()

	if err := s.repo.CreateVerification(ctx, v); err != nil {
		if errors.Is(err, ErrAlreadyVerified) {
			return nil, alreadyVerified()
		}
		return nil, common.NewInternalError("failed to save verification", err)
	}
	recordVerification(v)

	logger.WithContext(ctx).Info("Review verification created",
		zap.String("review_id", review.ID.String()),
		zap.Float64("score", v.Score),
		zap.String("status", string(v.Status)),
		zap.Strings("degraded_analyzers", v.DegradedAnalyzers),
	)

	if v.AutoApproved {
		// Not transactional: a failure here leaves the verification stored
		// while the review stays pending.
		if err := s.repo.UpdateReviewStatus(ctx, review.ID, ReviewStatusApproved, now, nil); err != nil {
			return nil, common.NewInternalError("failed to approve review", err)
		}
		if _, err := s.RecomputeWorkerRating(ctx, review.WorkerID); err != nil {
			return nil, err
		}
		s.publishResolved(ctx, v)
	}

	return v, nil
}

func alreadyVerified() *common.AppError {
	return common.NewBadRequestError("Verification already exists for this review", ErrAlreadyVerified)
}

func (s *Service) loadParties(ctx context.Context, review *Review) *parties {
	p := &parties{}

	var g errgroup.Group
	g.Go(func() error {
		p.reviewer, p.reviewerErr = s.repo.GetUserByID(ctx, review.ClientID)
		return nil
	})
	g.Go(func() error {
		p.worker, p.workerErr = s.repo.GetUserByID(ctx, review.WorkerID)
		return nil
	})
	g.Go(func() error {
		p.contract, p.contractErr = s.repo.GetCompletedContract(ctx, review.ClientID, review.WorkerID)
		return nil
	})
	g.Go(func() error {
		p.reviewCount, p.countErr = s.repo.CountReviewsByClient(ctx, review.ClientID)
		return nil
	})
	_ = g.Wait()

	return p
}

func (s *Service) runAnalyzers(ctx context.Context, v *ReviewVerification, review *Review, p *parties, clientIP string, now time.Time) {
	var contentOutcome, locationOutcome AnalyzerOutcome

	var g errgroup.Group
	g.Go(func() error {
		v.ContentAnalysis, contentOutcome = s.analyzeContent(ctx, review)
		return nil
	})
	g.Go(func() error {
		v.LocationData, locationOutcome = s.analyzeLocation(ctx, clientIP, p.reviewer)
		return nil
	})
	_ = g.Wait()

	var behaviorOutcome, ratingOutcome AnalyzerOutcome
	v.BehaviorAnalysis, behaviorOutcome = analyzeBehavior(review, p, now)
	v.RatingAnalysis, ratingOutcome = analyzeRating(review, p)

	for _, outcome := range []AnalyzerOutcome{contentOutcome, behaviorOutcome, ratingOutcome, locationOutcome} {
		if outcome.Status != OutcomeFailed {
			continue
		}
		v.DegradedAnalyzers = append(v.DegradedAnalyzers, outcome.Analyzer)
		logger.WithContext(ctx).Warn("Analyzer degraded to neutral defaults",
			zap.String("review_id", review.ID.String()),
			zap.String("analyzer", outcome.Analyzer),
			zap.Error(outcome.Err),
		)
	}
}

func (s *Service) analyzeContent(ctx context.Context, review *Review) (*ContentAnalysis, AnalyzerOutcome) {
	if s.text == nil {
		return nil, noDataOutcome(AnalyzerContent)
	}

	text := strings.TrimSpace(review.Comment + " " + strings.Join(review.Strengths, " "))
	result, err := s.text.Analyze(ctx, text)
	if result == nil {
		if err == nil {
			err = errors.New("text analyzer returned no result")
		}
		return nil, failedOutcome(AnalyzerContent, err)
	}

	content := &ContentAnalysis{
		InappropriateContentScore: result.InappropriateScore,
		SpamScore:                 result.SpamScore,
		SentimentScore:            result.SentimentScore,
		LanguageQualityScore:      result.QualityScore,
		FlaggedKeywords:           result.FlaggedKeywords,
	}
	if content.FlaggedKeywords == nil {
		content.FlaggedKeywords = []string{}
	}

	// Local scores are still valid when only the external service failed
	if err != nil {
		return content, failedOutcome(AnalyzerContent, err)
	}
	return content, okOutcome(AnalyzerContent)
}

func (s *Service) analyzeLocation(ctx context.Context, clientIP string, reviewer *User) (*LocationData, AnalyzerOutcome) {
	info := iprisk.Default()
	outcome := okOutcome(AnalyzerLocation)

	if s.ip != nil {
		resolved, err := s.ip.Lookup(ctx, clientIP)
		if err != nil {
			outcome = failedOutcome(AnalyzerLocation, err)
		} else if resolved != nil {
			info = resolved
		}
	}

	storedCountry := ""
	if reviewer != nil {
		storedCountry = reviewer.Country
	}

	return &LocationData{
		IPAddress:            clientIP,
		Country:              info.Country,
		City:                 info.City,
		IsIPMismatch:         iprisk.IsMismatch(storedCountry, info),
		IsSuspiciousLocation: info.Anonymized(),
	}, outcome
}

func analyzeBehavior(review *Review, p *parties, now time.Time) (*BehaviorAnalysis, AnalyzerOutcome) {
	for _, err := range []error{p.reviewerErr, p.contractErr, p.countErr} {
		if err != nil {
			return NeutralBehavior(), failedOutcome(AnalyzerBehavior, err)
		}
	}
	return AnalyzeBehavior(p.reviewer, p.reviewCount, p.contract, review, now), okOutcome(AnalyzerBehavior)
}

func analyzeRating(review *Review, p *parties) (*RatingAnalysis, AnalyzerOutcome) {
	if p.workerErr != nil {
		if errors.Is(p.workerErr, ErrNotFound) {
			return nil, noDataOutcome(AnalyzerRating)
		}
		return nil, failedOutcome(AnalyzerRating, p.workerErr)
	}
	return AnalyzeRating(review, p.worker), okOutcome(AnalyzerRating)
}

// GetVerification returns the verification of a review with summaries of
// the review and both parties
func (s *Service) GetVerification(ctx context.Context, reviewID uuid.UUID) (*VerificationDetails, error) {
	v, err := s.repo.GetVerificationByReviewID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, common.NewNotFoundError("Verification not found", err)
		}
		return nil, common.NewInternalError("failed to get verification", err)
	}

	details := &VerificationDetails{ReviewVerification: v}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		review, err := s.repo.GetReviewByID(gctx, v.ReviewID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		details.Review = summarizeReview(review)
		return nil
	})
	g.Go(func() error {
		reviewer, err := s.repo.GetUserByID(gctx, v.ReviewerID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		details.Reviewer = summarizeUser(reviewer)
		return nil
	})
	g.Go(func() error {
		worker, err := s.repo.GetUserByID(gctx, v.WorkerID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		details.Worker = summarizeUser(worker)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, common.NewInternalError("failed to load verification details", err)
	}

	return details, nil
}

// ListPending returns the manual review queue
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*ReviewVerification, int64, error) {
	verifications, total, err := s.repo.ListPendingVerifications(ctx, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list pending verifications", err)
	}
	return verifications, total, nil
}

// ManuallyVerify records an admin decision and moderates the review
func (s *Service) ManuallyVerify(ctx context.Context, verificationID, adminID uuid.UUID, status VerificationStatus, notes string) (*ReviewVerification, error) {
	var reviewStatus ReviewStatus
	switch status {
	case StatusVerified:
		reviewStatus = ReviewStatusApproved
	case StatusRejected:
		reviewStatus = ReviewStatusRejected
	default:
		return nil, common.NewBadRequestError("Invalid status. Must be verified or rejected", nil)
	}

	v, err := s.repo.GetVerificationByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, common.NewNotFoundError("Verification not found", err)
		}
		return nil, common.NewInternalError("failed to get verification", err)
	}

	review, err := s.repo.GetReviewByID(ctx, v.ReviewID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, common.NewNotFoundError("Review not found", err)
		}
		return nil, common.NewInternalError("failed to get review", err)
	}

	// Rejecting a review that already counted toward the rating has to pull
	// it back out of the aggregate.
	wasApproved := review.Status == ReviewStatusApproved

	now := s.now()
	admin := adminID
	v.Status = status
	v.VerifiedAt = &now
	v.VerifiedBy = &admin
	v.VerificationNotes = notes
	v.RequiresManualReview = false
	v.UpdatedAt = now

	if err := s.repo.UpdateVerification(ctx, v); err != nil {
		return nil, common.NewInternalError("failed to update verification", err)
	}

	if err := s.repo.UpdateReviewStatus(ctx, review.ID, reviewStatus, now, &admin); err != nil {
		return nil, common.NewInternalError("failed to update review status", err)
	}

	if status == StatusVerified || wasApproved {
		if _, err := s.RecomputeWorkerRating(ctx, review.WorkerID); err != nil {
			return nil, err
		}
	}

	manualDecisionsTotal.WithLabelValues(string(status)).Inc()
	logger.WithContext(ctx).Info("Review verification decided",
		zap.String("verification_id", v.ID.String()),
		zap.String("status", string(status)),
		zap.String("admin_id", adminID.String()),
	)
	s.publishResolved(ctx, v)

	return v, nil
}

// GetStats returns counts by status and flag frequencies
func (s *Service) GetStats(ctx context.Context) (*VerificationStats, error) {
	stats, err := s.repo.GetVerificationStats(ctx)
	if err != nil {
		return nil, common.NewInternalError("failed to get verification stats", err)
	}

	if stats.ByStatus == nil {
		stats.ByStatus = make(map[VerificationStatus]int64)
	}
	if stats.FlagCounts == nil {
		stats.FlagCounts = make(map[Flag]int64)
	}
	for _, status := range []VerificationStatus{StatusPending, StatusVerified, StatusSuspicious, StatusRejected} {
		if _, ok := stats.ByStatus[status]; !ok {
			stats.ByStatus[status] = 0
		}
	}

	return stats, nil
}

// RecomputeWorkerRating recalculates a worker's rating from their
// approved reviews and stores it
func (s *Service) RecomputeWorkerRating(ctx context.Context, workerID uuid.UUID) (*RatingSummary, error) {
	reviews, err := s.repo.GetWorkerReviews(ctx, workerID)
	if err != nil {
		return nil, common.NewInternalError("failed to get worker reviews", err)
	}

	summary := AggregateRating(workerID, reviews)
	if err := s.repo.UpdateWorkerRating(ctx, workerID, summary.Rating, summary.ReviewCount); err != nil {
		return nil, common.NewInternalError("failed to update worker rating", err)
	}

	return summary, nil
}

// AggregateRating averages the ratings of approved reviews. With none the
// rating is 0.
func AggregateRating(workerID uuid.UUID, reviews []*Review) *RatingSummary {
	summary := &RatingSummary{WorkerID: workerID}

	var sum float64
	for _, r := range reviews {
		if r.Status != ReviewStatusApproved {
			continue
		}
		sum += r.Rating
		summary.ReviewCount++
	}
	if summary.ReviewCount > 0 {
		summary.Rating = sum / float64(summary.ReviewCount)
	}

	return summary
}
