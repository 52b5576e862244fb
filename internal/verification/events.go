package verification

import (
	"context"

	"github.com/google/uuid"
	"github.com/kelmah/review-verification/pkg/eventbus"
	"github.com/kelmah/review-verification/pkg/logger"
	"go.uber.org/zap"
)

const (
	eventSource           = "review-verification"
	EventVerificationDone = "verification.resolved"
)

// ResolvedEvent is published when a review leaves the verification
// workflow, either auto-approved or decided by an admin
type ResolvedEvent struct {
	VerificationID uuid.UUID          `json:"verification_id"`
	ReviewID       uuid.UUID          `json:"review_id"`
	WorkerID       uuid.UUID          `json:"worker_id"`
	Status         VerificationStatus `json:"status"`
	Score          float64            `json:"score"`
	AutoApproved   bool               `json:"auto_approved"`
	ResolvedBy     *uuid.UUID         `json:"resolved_by,omitempty"`
}

// publishResolved is best effort: failures are logged and dropped
func (s *Service) publishResolved(ctx context.Context, v *ReviewVerification) {
	event, err := eventbus.NewEvent(EventVerificationDone, eventSource, ResolvedEvent{
		VerificationID: v.ID,
		ReviewID:       v.ReviewID,
		WorkerID:       v.WorkerID,
		Status:         v.Status,
		Score:          v.Score,
		AutoApproved:   v.AutoApproved,
		ResolvedBy:     v.VerifiedBy,
	})
	if err == nil {
		err = s.events.Publish(ctx, event)
	}
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to publish verification event",
			zap.String("verification_id", v.ID.String()),
			zap.Error(err),
		)
	}
}
