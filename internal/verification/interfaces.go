package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kelmah/review-verification/internal/iprisk"
	"github.com/kelmah/review-verification/internal/textanalysis"
)

// RepositoryInterface defines the persistence operations the service needs
type RepositoryInterface interface {
	GetReviewByID(ctx context.Context, id uuid.UUID) (*Review, error)
	UpdateReviewStatus(ctx context.Context, reviewID uuid.UUID, status ReviewStatus, moderatedAt time.Time, moderatedBy *uuid.UUID) error
	GetWorkerReviews(ctx context.Context, workerID uuid.UUID) ([]*Review, error)
	CountReviewsByClient(ctx context.Context, clientID uuid.UUID) (int, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateWorkerRating(ctx context.Context, workerID uuid.UUID, rating float64, reviewCount int) error
	GetCompletedContract(ctx context.Context, hirerID, workerID uuid.UUID) (*Contract, error)

	CreateVerification(ctx context.Context, v *ReviewVerification) error
	UpdateVerification(ctx context.Context, v *ReviewVerification) error
	GetVerificationByID(ctx context.Context, id uuid.UUID) (*ReviewVerification, error)
	GetVerificationByReviewID(ctx context.Context, reviewID uuid.UUID) (*ReviewVerification, error)
	ListPendingVerifications(ctx context.Context, limit, offset int) ([]*ReviewVerification, int64, error)
	GetVerificationStats(ctx context.Context) (*VerificationStats, error)
}

// ServiceInterface is what the HTTP handler needs from the service
type ServiceInterface interface {
	CreateVerification(ctx context.Context, reviewID uuid.UUID, clientIP string) (*ReviewVerification, error)
	GetVerification(ctx context.Context, reviewID uuid.UUID) (*VerificationDetails, error)
	ListPending(ctx context.Context, limit, offset int) ([]*ReviewVerification, int64, error)
	ManuallyVerify(ctx context.Context, verificationID, adminID uuid.UUID, status VerificationStatus, notes string) (*ReviewVerification, error)
	GetStats(ctx context.Context) (*VerificationStats, error)
}

// TextAnalyzer scores review text. It always returns a result; an error
// means an optional external dependency failed.
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (*textanalysis.Result, error)
}

// IPLookup resolves a client IP
type IPLookup interface {
	Lookup(ctx context.Context, ip string) (*iprisk.IPInfo, error)
}
