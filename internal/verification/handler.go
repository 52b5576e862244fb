package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kelmah/review-verification/pkg/common"
	"github.com/kelmah/review-verification/pkg/logger"
	"github.com/kelmah/review-verification/pkg/middleware"
	"github.com/kelmah/review-verification/pkg/pagination"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for review verification
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new verification handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the verification routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	auth := middleware.AuthMiddleware(jwtSecret)

	reviews := r.Group("/api/reviews/verify")
	reviews.Use(auth)
	{
		reviews.POST("/:reviewId", h.CreateVerification)
		reviews.GET("/:reviewId", h.GetVerification)
	}

	admin := r.Group("/api/admin/reviews/verification")
	admin.Use(auth, middleware.RequireAdmin())
	{
		admin.GET("", h.ListPending)
		admin.GET("/stats", h.GetStats)
		admin.PUT("/:verificationId", h.ManuallyVerify)
	}
}

// CreateVerification runs verification for a review
func (h *Handler) CreateVerification(c *gin.Context) {
	reviewID, err := uuid.Parse(c.Param("reviewId"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid review ID")
		return
	}

	v, err := h.service.CreateVerification(c.Request.Context(), reviewID, c.ClientIP())
	if err != nil {
		h.respondError(c, err, "failed to verify review")
		return
	}

	common.CreatedResponse(c, v, "Review verification completed")
}

// GetVerification returns the verification of a review
func (h *Handler) GetVerification(c *gin.Context) {
	reviewID, err := uuid.Parse(c.Param("reviewId"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid review ID")
		return
	}

	details, err := h.service.GetVerification(c.Request.Context(), reviewID)
	if err != nil {
		h.respondError(c, err, "failed to get verification")
		return
	}

	common.SuccessResponse(c, details)
}

// ListPending returns the manual review queue (admin)
func (h *Handler) ListPending(c *gin.Context) {
	params := pagination.ParseParams(c)

	verifications, total, err := h.service.ListPending(c.Request.Context(), params.Limit, params.Offset)
	if err != nil {
		h.respondError(c, err, "failed to list pending verifications")
		return
	}

	common.SuccessResponseWithMeta(c, verifications, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// ManuallyVerify records an admin decision (admin)
func (h *Handler) ManuallyVerify(c *gin.Context) {
	adminID, err := middleware.GetUserID(c)
	if err != nil {
		common.AppErrorResponse(c, common.NewUnauthorizedError("unauthorized"))
		return
	}

	verificationID, err := uuid.Parse(c.Param("verificationId"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid verification ID")
		return
	}

	var req ManualVerificationRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	v, err := h.service.ManuallyVerify(c.Request.Context(), verificationID, adminID, VerificationStatus(req.Status), req.Notes)
	if err != nil {
		h.respondError(c, err, "failed to update verification")
		return
	}

	common.SuccessResponseWithStatus(c, http.StatusOK, v, "Review verification updated")
}

// GetStats returns verification statistics (admin)
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to get verification stats")
		return
	}

	common.SuccessResponse(c, stats)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	if appErr, ok := err.(*common.AppError); ok {
		if appErr.Code >= http.StatusInternalServerError {
			logger.WithContext(c.Request.Context()).Error(appErr.Message, zap.Error(appErr.Err))
		}
		common.AppErrorResponse(c, appErr)
		return
	}

	logger.WithContext(c.Request.Context()).Error(fallback, zap.Error(err))
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}
