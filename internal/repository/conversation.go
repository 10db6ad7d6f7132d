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

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

const convCols = `id, kind, name, COALESCE(description,''), avatar_url, created_by, archived, archived_by, archived_at, created_at`

func scanConversation(s interface{ Scan(dest ...any) error }, c *model.Conversation) error {
	return s.Scan(&c.ID, &c.Kind, &c.Name, &c.Description, &c.AvatarURL, &c.CreatedBy, &c.Archived, &c.ArchivedBy, &c.ArchivedAt, &c.CreatedAt)
}

// Create создаёт беседу и добавляет участников одной транзакцией.
func (r *ConversationRepository) Create(ctx context.Context, c *model.Conversation, members []model.ConversationMember) error {
	defer logger.DeferLogDuration("conversation.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("convRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, kind, name, description, avatar_url, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Kind, c.Name, c.Description, c.AvatarURL, c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("convRepo.Create insert: %w", err)
	}
	for _, m := range members {
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id, role, joined_at)
			 VALUES ($1, $2, $3, $4)`,
			c.ID, m.UserID, m.Role, m.JoinedAt,
		)
		if err != nil {
			return fmt.Errorf("convRepo.Create member: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("convRepo.Create commit: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conversation.GetByID", time.Now())()
	c := &model.Conversation{}
	row := r.pool.QueryRow(ctx, `SELECT `+convCols+` FROM conversations WHERE id = $1`, id)
	if err := scanConversation(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("convRepo.GetByID: %w", err)
	}
	return c, nil
}

// FindDirect возвращает существующий личный диалог между двумя пользователями.
func (r *ConversationRepository) FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conversation.FindDirect", time.Now())()
	c := &model.Conversation{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+convCols+` FROM conversations c
		 WHERE c.kind = 'direct'
		   AND EXISTS (SELECT 1 FROM conversation_members m WHERE m.conversation_id = c.id AND m.user_id = $1)
		   AND EXISTS (SELECT 1 FROM conversation_members m WHERE m.conversation_id = c.id AND m.user_id = $2)
		 LIMIT 1`, userA, userB)
	if err := scanConversation(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("convRepo.FindDirect: %w", err)
	}
	return c, nil
}

// ListByUserID возвращает беседы пользователя, отсортированные по времени последнего сообщения.
func (r *ConversationRepository) ListByUserID(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("conversation.ListByUserID", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+convCols+` FROM conversations c
		 JOIN conversation_members cm ON cm.conversation_id = c.id
		 WHERE cm.user_id = $1
		 ORDER BY COALESCE(
			(SELECT MAX(created_at) FROM messages msg WHERE msg.conversation_id = c.id),
			c.created_at) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("convRepo.ListByUserID query: %w", err)
	}
	defer rows.Close()

	var list []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := scanConversation(rows, &c); err != nil {
			return nil, fmt.Errorf("convRepo.ListByUserID scan: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *ConversationRepository) Members(ctx context.Context, conversationID string) ([]model.ConversationMember, error) {
	defer logger.DeferLogDuration("conversation.Members", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT cm.conversation_id, cm.user_id, cm.role, cm.joined_at, cm.last_read_at,
		        u.username, u.avatar_url, u.is_online
		 FROM conversation_members cm
		 JOIN users u ON u.id = cm.user_id
		 WHERE cm.conversation_id = $1
		 ORDER BY cm.joined_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("convRepo.Members query: %w", err)
	}
	defer rows.Close()

	var members []model.ConversationMember
	for rows.Next() {
		var m model.ConversationMember
		if err := rows.Scan(&m.ConversationID, &m.UserID, &m.Role, &m.JoinedAt, &m.LastReadAt,
			&m.Username, &m.AvatarURL, &m.IsOnline); err != nil {
			return nil, fmt.Errorf("convRepo.Members scan: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberIDs — лёгкий вариант Members для рассылки событий через хаб.
func (r *ConversationRepository) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM conversation_members WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("convRepo.MemberIDs: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ConversationRepository) GetMember(ctx context.Context, conversationID, userID string) (*model.ConversationMember, error) {
	m := &model.ConversationMember{}
	row := r.pool.QueryRow(ctx,
		`SELECT conversation_id, user_id, role, joined_at, last_read_at
		 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID)
	err := row.Scan(&m.ConversationID, &m.UserID, &m.Role, &m.JoinedAt, &m.LastReadAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("convRepo.GetMember: %w", err)
	}
	return m, nil
}

func (r *ConversationRepository) AddMember(ctx context.Context, m *model.ConversationMember) error {
	defer logger.DeferLogDuration("conversation.AddMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_members (conversation_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		m.ConversationID, m.UserID, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("convRepo.AddMember: %w", err)
	}
	return nil
}

func (r *ConversationRepository) RemoveMember(ctx context.Context, conversationID, userID string) error {
	defer logger.DeferLogDuration("conversation.RemoveMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("convRepo.RemoveMember: %w", err)
	}
	return nil
}

func (r *ConversationRepository) UpdateInfo(ctx context.Context, id, name, description, avatarURL string) error {
	defer logger.DeferLogDuration("conversation.UpdateInfo", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET name = $1, description = $2, avatar_url = $3 WHERE id = $4`,
		name, description, avatarURL, id,
	)
	if err != nil {
		return fmt.Errorf("convRepo.UpdateInfo: %w", err)
	}
	return nil
}

// SetArchived — архив для всех участников (только группы, проверяется в хендлере).
func (r *ConversationRepository) SetArchived(ctx context.Context, id string, archived bool, byUserID string) error {
	defer logger.DeferLogDuration("conversation.SetArchived", time.Now())()
	var err error
	if archived {
		_, err = r.pool.Exec(ctx,
			`UPDATE conversations SET archived = TRUE, archived_by = $1, archived_at = NOW() WHERE id = $2`, byUserID, id)
	} else {
		_, err = r.pool.Exec(ctx,
			`UPDATE conversations SET archived = FALSE, archived_by = NULL, archived_at = NULL WHERE id = $1`, id)
	}
	if err != nil {
		return fmt.Errorf("convRepo.SetArchived: %w", err)
	}
	return nil
}

func (r *ConversationRepository) SetLastRead(ctx context.Context, conversationID, userID string, t time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation_members SET last_read_at = $1 WHERE conversation_id = $2 AND user_id = $3`,
		t, conversationID, userID)
	if err != nil {
		return fmt.Errorf("convRepo.SetLastRead: %w", err)
	}
	return nil
}

// UnreadCount — входящие сообщения после last_read_at, без системных.
func (r *ConversationRepository) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 WHERE m.conversation_id = $1 AND m.sender_id <> $2 AND m.is_deleted = FALSE AND m.kind <> 'system'
		   AND m.created_at > (SELECT last_read_at FROM conversation_members
		                       WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("convRepo.UnreadCount: %w", err)
	}
	return n, nil
}
