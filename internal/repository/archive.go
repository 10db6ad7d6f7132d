package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasmos/internal/logger"
)

// ArchiveRepository хранит персональный архив бесед: каждый пользователь
// прячет беседу только у себя. Общий архив группы живёт в conversations.
type ArchiveRepository struct {
	pool *pgxpool.Pool
}

func NewArchiveRepository(pool *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{pool: pool}
}

func (r *ArchiveRepository) Archive(ctx context.Context, userID, conversationID string) error {
	defer logger.DeferLogDuration("archive.Archive", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO archived_conversations (user_id, conversation_id, archived_at)
		 VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`, userID, conversationID)
	if err != nil {
		return fmt.Errorf("archiveRepo.Archive: %w", err)
	}
	return nil
}

func (r *ArchiveRepository) Unarchive(ctx context.Context, userID, conversationID string) error {
	defer logger.DeferLogDuration("archive.Unarchive", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM archived_conversations WHERE user_id = $1 AND conversation_id = $2`,
		userID, conversationID)
	if err != nil {
		return fmt.Errorf("archiveRepo.Unarchive: %w", err)
	}
	return nil
}

// IDSet — множество conversation_id, заархивированных пользователем.
func (r *ArchiveRepository) IDSet(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT conversation_id FROM archived_conversations WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("archiveRepo.IDSet: %w", err)
	}
	defer rows.Close()
	set := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}
