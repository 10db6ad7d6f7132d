package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/model"
)

type BlockRepository struct {
	pool *pgxpool.Pool
}

func NewBlockRepository(pool *pgxpool.Pool) *BlockRepository {
	return &BlockRepository{pool: pool}
}

// Block идемпотентен. Возвращает true если блокировка была новой
// (для решения, отправлять ли системное сообщение).
func (r *BlockRepository) Block(ctx context.Context, userID, blockedID string) (bool, error) {
	defer logger.DeferLogDuration("block.Block", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO blocked_users (user_id, blocked_id, created_at)
		 VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`, userID, blockedID)
	if err != nil {
		return false, fmt.Errorf("blockRepo.Block: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *BlockRepository) Unblock(ctx context.Context, userID, blockedID string) (bool, error) {
	defer logger.DeferLogDuration("block.Unblock", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM blocked_users WHERE user_id = $1 AND blocked_id = $2`, userID, blockedID)
	if err != nil {
		return false, fmt.Errorf("blockRepo.Unblock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List возвращает пользователей, заблокированных вызывающим, свежие первыми.
func (r *BlockRepository) List(ctx context.Context, userID string) ([]model.UserPublic, error) {
	defer logger.DeferLogDuration("block.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.username, u.email, u.avatar_url, COALESCE(u.about,''), u.is_online, u.last_seen_at
		 FROM blocked_users b
		 JOIN users u ON u.id = b.blocked_id
		 WHERE b.user_id = $1
		 ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("blockRepo.List query: %w", err)
	}
	defer rows.Close()

	var list []model.UserPublic
	for rows.Next() {
		var u model.UserPublic
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.AvatarURL, &u.About, &u.IsOnline, &u.LastSeenAt); err != nil {
			return nil, fmt.Errorf("blockRepo.List scan: %w", err)
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Status возвращает блокировку в обе стороны одним запросом:
// iBlocked — вызывающий заблокировал другого, blockedMe — наоборот.
func (r *BlockRepository) Status(ctx context.Context, userID, otherID string) (iBlocked, blockedMe bool, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM blocked_users WHERE user_id = $1 AND blocked_id = $2),
		   EXISTS (SELECT 1 FROM blocked_users WHERE user_id = $2 AND blocked_id = $1)`,
		userID, otherID).Scan(&iBlocked, &blockedMe)
	if err != nil {
		return false, false, fmt.Errorf("blockRepo.Status: %w", err)
	}
	return iBlocked, blockedMe, nil
}

// AnyBlockBetween — есть ли блокировка хотя бы в одну сторону.
func (r *BlockRepository) AnyBlockBetween(ctx context.Context, userA, userB string) (bool, error) {
	a, b, err := r.Status(ctx, userA, userB)
	if err != nil {
		return false, err
	}
	return a || b, nil
}
