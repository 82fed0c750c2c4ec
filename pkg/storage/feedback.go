package storage

import (
	"context"
	"fmt"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// CreateFeedback implements FeedbackStore
func (s *PostgresStore) CreateFeedback(ctx context.Context, cardID int64, content string) (int64, error) {
	query := `
		INSERT INTO error_feedback (card_id, content, status, submitted_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING feedback_id`

	var id int64
	err := s.db.QueryRowxContext(ctx, query, cardID, content, string(models.FeedbackStatusNew)).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%w: card %d", utils.ErrNotFound, cardID)
		}
		return 0, dbErr("create feedback", err)
	}
	return id, nil
}

// ListFeedback implements FeedbackStore
func (s *PostgresStore) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	query := `
		SELECT f.feedback_id, f.card_id, c.name AS card_name, f.content, f.submitted_at,
			f.status, f.processed_by, f.processed_at, f.resolution
		FROM error_feedback f
		LEFT JOIN cards c ON f.card_id = c.id
		ORDER BY f.submitted_at DESC`

	feedback := []models.Feedback{}
	if err := s.db.SelectContext(ctx, &feedback, query); err != nil {
		return nil, dbErr("list feedback", err)
	}
	return feedback, nil
}

// UpdateFeedback implements FeedbackStore
func (s *PostgresStore) UpdateFeedback(ctx context.Context, id int64, update FeedbackUpdate) error {
	query := `
		UPDATE error_feedback
		SET status = $2, processed_by = $3, resolution = $4, processed_at = NOW()
		WHERE feedback_id = $1`

	result, err := s.db.ExecContext(ctx, query, id, string(update.Status), update.ProcessedBy, update.Resolution)
	if err != nil {
		return dbErr("update feedback", err)
	}
	return execRequireRows(result, nil, fmt.Errorf("%w: feedback %d", utils.ErrNotFound, id))
}
