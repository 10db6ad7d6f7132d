package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chasmos/internal/logger"
	"github.com/chasmos/internal/model"
)

type PinnedRepository struct {
	pool *pgxpool.Pool
}

func NewPinnedRepository(pool *pgxpool.Pool) *PinnedRepository {
	return &PinnedRepository{pool: pool}
}

// Pin идемпотентен: повторное закрепление того же сообщения не ошибка.
func (r *PinnedRepository) Pin(ctx context.Context, conversationID, messageID, pinnedBy string) error {
	defer logger.DeferLogDuration("pinned.Pin", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO pinned_messages (conversation_id, message_id, pinned_by, pinned_at)
		 VALUES ($1, $2, $3, NOW()) ON CONFLICT DO NOTHING`,
		conversationID, messageID, pinnedBy,
	)
	if err != nil {
		return fmt.Errorf("pinnedRepo.Pin: %w", err)
	}
	return nil
}

func (r *PinnedRepository) Unpin(ctx context.Context, conversationID, messageID string) error {
	defer logger.DeferLogDuration("pinned.Unpin", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM pinned_messages WHERE conversation_id = $1 AND message_id = $2`,
		conversationID, messageID,
	)
	if err != nil {
		return fmt.Errorf("pinnedRepo.Unpin: %w", err)
	}
	return nil
}

func (r *PinnedRepository) ListByConversation(ctx context.Context, conversationID string) ([]model.PinnedMessage, error) {
	defer logger.DeferLogDuration("pinned.ListByConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT p.conversation_id, p.message_id, p.pinned_by, p.pinned_at, `+msgCols+`
		 FROM pinned_messages p
		 JOIN messages m ON m.id = p.message_id
		 JOIN users u ON u.id = m.sender_id
		 WHERE p.conversation_id = $1 AND m.is_deleted = FALSE
		 ORDER BY p.pinned_at DESC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("pinnedRepo.ListByConversation query: %w", err)
	}
	defer rows.Close()

	var list []model.PinnedMessage
	for rows.Next() {
		var p model.PinnedMessage
		var msg model.Message
		pinScan := &pinnedRowScanner{rows: rows, pin: &p, msg: &msg}
		if err := pinScan.scan(); err != nil {
			return nil, fmt.Errorf("pinnedRepo.ListByConversation scan: %w", err)
		}
		msg.Pinned = true
		p.Message = &msg
		list = append(list, p)
	}
	return list, rows.Err()
}

// IDSet возвращает множество закреплённых message_id для пометки Pinned при листинге.
func (r *PinnedRepository) IDSet(ctx context.Context, conversationID string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT message_id FROM pinned_messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("pinnedRepo.IDSet: %w", err)
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

// pinnedRowScanner склеивает колонки pinned_messages и messages в одном проходе.
type pinnedRowScanner struct {
	rows interface{ Scan(dest ...any) error }
	pin  *model.PinnedMessage
	msg  *model.Message
}

func (s *pinnedRowScanner) scan() error {
	var fileURL, fileName, mimeType string
	var fileSize int64
	sender := model.UserPublic{}
	m := s.msg
	err := s.rows.Scan(
		&s.pin.ConversationID, &s.pin.MessageID, &s.pin.PinnedBy, &s.pin.PinnedAt,
		&m.ID, &m.ConversationID, &m.SenderID, &m.Kind,
		&m.Content, &fileURL, &fileName, &fileSize, &mimeType, &m.PollID,
		&m.Status, &m.IsDeleted, &m.CreatedAt,
		&sender.Username, &sender.AvatarURL, &sender.IsOnline)
	if err != nil {
		return err
	}
	if fileURL != "" {
		m.Attachment = &model.Attachment{URL: fileURL, FileName: fileName, FileSize: fileSize, MimeType: mimeType}
	}
	sender.ID = m.SenderID
	m.Sender = &sender
	return nil
}
