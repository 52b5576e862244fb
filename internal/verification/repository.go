package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository handles review verification data operations
type Repository struct {
	db *pgxpool.Pool
}

// Ensure the concrete repository satisfies the service's requirements.
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new verification repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetReviewByID retrieves a review by ID
func (r *Repository) GetReviewByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	query := `
		SELECT id, client_id, worker_id, rating, comment, strengths, status,
		       moderated_at, moderated_by, created_at
		FROM reviews
		WHERE id = $1
	`

	review, err := scanReview(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// UpdateReviewStatus sets the moderation outcome of a review
func (r *Repository) UpdateReviewStatus(ctx context.Context, reviewID uuid.UUID, status ReviewStatus, moderatedAt time.Time, moderatedBy *uuid.UUID) error {
	query := `
		UPDATE reviews
		SET status = $2, moderated_at = $3, moderated_by = $4
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, reviewID, string(status), moderatedAt, moderatedBy)
	if err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetWorkerReviews retrieves every review written about a worker
func (r *Repository) GetWorkerReviews(ctx context.Context, workerID uuid.UUID) ([]*Review, error) {
	query := `
		SELECT id, client_id, worker_id, rating, comment, strengths, status,
		       moderated_at, moderated_by, created_at
		FROM reviews
		WHERE worker_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get worker reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]*Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	return reviews, rows.Err()
}

// CountReviewsByClient counts the reviews a user has written
func (r *Repository) CountReviewsByClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE client_id = $1`, clientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, profile_picture, role,
		       country, city, rating, review_count, created_at
		FROM users
		WHERE id = $1
	`

	var user User
	var country, city sql.NullString

	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Phone,
		&user.ProfilePicture,
		&user.Role,
		&country,
		&city,
		&user.Rating,
		&user.ReviewCount,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Country = country.String
	user.City = city.String
	return &user, nil
}

// UpdateWorkerRating writes back a worker's aggregate rating
func (r *Repository) UpdateWorkerRating(ctx context.Context, workerID uuid.UUID, rating float64, reviewCount int) error {
	query := `
		UPDATE users
		SET rating = $2, review_count = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, workerID, rating, reviewCount)
	if err != nil {
		return fmt.Errorf("failed to update worker rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCompletedContract returns the latest completed contract between a
// hirer and a worker, or nil when they never completed one
func (r *Repository) GetCompletedContract(ctx context.Context, hirerID, workerID uuid.UUID) (*Contract, error) {
	query := `
		SELECT id, hirer_id, worker_id, status, completed_at
		FROM contracts
		WHERE hirer_id = $1 AND worker_id = $2 AND status = 'completed'
		ORDER BY completed_at DESC NULLS LAST
		LIMIT 1
	`

	var contract Contract
	var completedAt sql.NullTime

	err := r.db.QueryRow(ctx, query, hirerID, workerID).Scan(
		&contract.ID,
		&contract.HirerID,
		&contract.WorkerID,
		&contract.Status,
		&completedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}

	if completedAt.Valid {
		contract.CompletedAt = &completedAt.Time
	}
	return &contract, nil
}

// CreateVerification inserts a verification record. A second record for
// the same review fails with ErrAlreadyVerified.
func (r *Repository) CreateVerification(ctx context.Context, v *ReviewVerification) error {
	analyses, err := marshalAnalyses(v)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO review_verifications (
			id, review_id, reviewer_id, worker_id,
			content_analysis, behavior_analysis, rating_analysis, location_data,
			score, status, auto_approved, requires_manual_review,
			flags, degraded_analyzers, verified_at, verified_by, verification_notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.db.Exec(ctx, query,
		v.ID,
		v.ReviewID,
		v.ReviewerID,
		v.WorkerID,
		analyses[0],
		analyses[1],
		analyses[2],
		analyses[3],
		v.Score,
		string(v.Status),
		v.AutoApproved,
		v.RequiresManualReview,
		flagStrings(v.Flags),
		nonNil(v.DegradedAnalyzers),
		v.VerifiedAt,
		v.VerifiedBy,
		v.VerificationNotes,
		v.CreatedAt,
		v.UpdatedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyVerified
	}
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}
	return nil
}

// UpdateVerification persists the mutable parts of a verification record
func (r *Repository) UpdateVerification(ctx context.Context, v *ReviewVerification) error {
	query := `
		UPDATE review_verifications
		SET score = $2, status = $3, auto_approved = $4, requires_manual_review = $5,
		    flags = $6, verified_at = $7, verified_by = $8, verification_notes = $9,
		    updated_at = $10
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		v.ID,
		v.Score,
		string(v.Status),
		v.AutoApproved,
		v.RequiresManualReview,
		flagStrings(v.Flags),
		v.VerifiedAt,
		v.VerifiedBy,
		v.VerificationNotes,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const verificationColumns = `
	id, review_id, reviewer_id, worker_id,
	content_analysis, behavior_analysis, rating_analysis, location_data,
	score, status, auto_approved, requires_manual_review,
	flags, degraded_analyzers, verified_at, verified_by, verification_notes,
	created_at, updated_at
`

// GetVerificationByID retrieves a verification by its own ID
func (r *Repository) GetVerificationByID(ctx context.Context, id uuid.UUID) (*ReviewVerification, error) {
	query := `SELECT ` + verificationColumns + ` FROM review_verifications WHERE id = $1`
	return r.getVerification(ctx, query, id)
}

// GetVerificationByReviewID retrieves the verification of a review
func (r *Repository) GetVerificationByReviewID(ctx context.Context, reviewID uuid.UUID) (*ReviewVerification, error) {
	query := `SELECT ` + verificationColumns + ` FROM review_verifications WHERE review_id = $1`
	return r.getVerification(ctx, query, reviewID)
}

func (r *Repository) getVerification(ctx context.Context, query string, arg uuid.UUID) (*ReviewVerification, error) {
	v, err := scanVerification(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return v, nil
}

// ListPendingVerifications returns the manual review queue, lowest score
// first and newest first among equal scores
func (r *Repository) ListPendingVerifications(ctx context.Context, limit, offset int) ([]*ReviewVerification, int64, error) {
	const filter = `
		WHERE requires_manual_review = TRUE
		  AND status IN ('pending', 'suspicious')
	`

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM review_verifications `+filter).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count pending verifications: %w", err)
	}

	query := `SELECT ` + verificationColumns + ` FROM review_verifications ` + filter + `
		ORDER BY score ASC, created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending verifications: %w", err)
	}
	defer rows.Close()

	verifications := make([]*ReviewVerification, 0)
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan verification: %w", err)
		}
		verifications = append(verifications, v)
	}

	return verifications, total, rows.Err()
}

// GetVerificationStats counts records by status and by flag
func (r *Repository) GetVerificationStats(ctx context.Context) (*VerificationStats, error) {
	stats := &VerificationStats{
		ByStatus:   make(map[VerificationStatus]int64),
		FlagCounts: make(map[Flag]int64),
	}

	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM review_verifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count verifications by status: %w", err)
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus[VerificationStatus(status)] = count
		stats.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT flag, COUNT(*)
		FROM review_verifications, unnest(flags) AS flag
		GROUP BY flag
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count verification flags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var flag string
		var count int64
		if err := rows.Scan(&flag, &count); err != nil {
			return nil, err
		}
		stats.FlagCounts[Flag(flag)] = count
	}

	return stats, rows.Err()
}

func scanReview(row pgx.Row) (*Review, error) {
	var review Review
	var status string
	var moderatedAt sql.NullTime
	var moderatedBy sql.NullString

	err := row.Scan(
		&review.ID,
		&review.ClientID,
		&review.WorkerID,
		&review.Rating,
		&review.Comment,
		&review.Strengths,
		&status,
		&moderatedAt,
		&moderatedBy,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	review.Status = ReviewStatus(status)
	if moderatedAt.Valid {
		review.ModeratedAt = &moderatedAt.Time
	}
	if moderatedBy.Valid {
		id, _ := uuid.Parse(moderatedBy.String)
		review.ModeratedBy = &id
	}
	return &review, nil
}

func scanVerification(row pgx.Row) (*ReviewVerification, error) {
	var v ReviewVerification
	var contentJSON, behaviorJSON, ratingJSON, locationJSON []byte
	var status string
	var flags []string
	var verifiedAt sql.NullTime
	var verifiedBy sql.NullString

	err := row.Scan(
		&v.ID,
		&v.ReviewID,
		&v.ReviewerID,
		&v.WorkerID,
		&contentJSON,
		&behaviorJSON,
		&ratingJSON,
		&locationJSON,
		&v.Score,
		&status,
		&v.AutoApproved,
		&v.RequiresManualReview,
		&flags,
		&v.DegradedAnalyzers,
		&verifiedAt,
		&verifiedBy,
		&v.VerificationNotes,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Status = VerificationStatus(status)
	v.Flags = make([]Flag, 0, len(flags))
	for _, f := range flags {
		v.Flags = append(v.Flags, Flag(f))
	}
	if verifiedAt.Valid {
		v.VerifiedAt = &verifiedAt.Time
	}
	if verifiedBy.Valid {
		id, _ := uuid.Parse(verifiedBy.String)
		v.VerifiedBy = &id
	}

	if err := unmarshalOptional(contentJSON, &v.ContentAnalysis); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(behaviorJSON, &v.BehaviorAnalysis); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(ratingJSON, &v.RatingAnalysis); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(locationJSON, &v.LocationData); err != nil {
		return nil, err
	}

	return &v, nil
}

// marshalAnalyses encodes the four analyses, leaving absent ones as SQL NULL
func marshalAnalyses(v *ReviewVerification) ([4][]byte, error) {
	var out [4][]byte
	parts := []interface{}{v.ContentAnalysis, v.BehaviorAnalysis, v.RatingAnalysis, v.LocationData}
	present := []bool{v.ContentAnalysis != nil, v.BehaviorAnalysis != nil, v.RatingAnalysis != nil, v.LocationData != nil}

	for i, part := range parts {
		if !present[i] {
			continue
		}
		data, err := json.Marshal(part)
		if err != nil {
			return out, fmt.Errorf("failed to marshal analysis: %w", err)
		}
		out[i] = data
	}
	return out, nil
}

func unmarshalOptional[T any](data []byte, dest **T) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("failed to decode analysis: %w", err)
	}
	*dest = &value
	return nil
}

func flagStrings(flags []Flag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, string(f))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
