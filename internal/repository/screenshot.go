package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/model"
)

type ScreenshotRepository struct {
	pool *pgxpool.Pool
}

func NewScreenshotRepository(pool *pgxpool.Pool) *ScreenshotRepository {
	return &ScreenshotRepository{pool: pool}
}

func (r *ScreenshotRepository) Create(ctx context.Context, s *model.Screenshot) error {
	defer logger.DeferLogDuration("screenshot.Create", time.Now())()
	var sysMsgID *string
	if s.SystemMessageID != "" {
		sysMsgID = &s.SystemMessageID
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO screenshots (id, conversation_id, captured_by, image_url, file_name,
		                          file_size, mime_type, width, height, system_message_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.ConversationID, s.CapturedBy, s.ImageURL, s.FileName,
		s.FileSize, s.MimeType, s.Width, s.Height, sysMsgID, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("screenshotRepo.Create: %w", err)
	}
	return nil
}

func (r *ScreenshotRepository) GetByID(ctx context.Context, id string) (*model.Screenshot, error) {
	s := &model.Screenshot{}
	row := r.pool.QueryRow(ctx,
		`SELECT id, conversation_id, captured_by, image_url, file_name, file_size,
		        mime_type, width, height, COALESCE(system_message_id::text,''), created_at
		 FROM screenshots WHERE id = $1`, id)
	err := row.Scan(&s.ID, &s.ConversationID, &s.CapturedBy, &s.ImageURL, &s.FileName,
		&s.FileSize, &s.MimeType, &s.Width, &s.Height, &s.SystemMessageID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("screenshotRepo.GetByID: %w", err)
	}
	return s, nil
}

func (r *ScreenshotRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.Screenshot, error) {
	defer logger.DeferLogDuration("screenshot.ListByConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, captured_by, image_url, file_name, file_size,
		        mime_type, width, height, COALESCE(system_message_id::text,''), created_at
		 FROM screenshots WHERE conversation_id = $1
		 ORDER BY created_at DESC LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("screenshotRepo.ListByConversation query: %w", err)
	}
	defer rows.Close()

	var list []model.Screenshot
	for rows.Next() {
		var s model.Screenshot
		if err := rows.Scan(&s.ID, &s.ConversationID, &s.CapturedBy, &s.ImageURL, &s.FileName,
			&s.FileSize, &s.MimeType, &s.Width, &s.Height, &s.SystemMessageID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("screenshotRepo.ListByConversation scan: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Delete удаляет запись скриншота. Системное сообщение остаётся в истории.
func (r *ScreenshotRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM screenshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("screenshotRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
