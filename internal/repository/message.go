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

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// msgCols и scanMessage разворачивают tagged union: file_* собираются
// в Attachment только если file_url не пуст.
const msgCols = `m.id, m.conversation_id, m.sender_id, m.kind,
	COALESCE(m.content,''), COALESCE(m.file_url,''), COALESCE(m.file_name,''),
	COALESCE(m.file_size,0), COALESCE(m.mime_type,''), COALESCE(m.poll_id::text,''),
	m.status, m.is_deleted, m.created_at,
	u.username, u.avatar_url, u.is_online`

func scanMessage(s interface{ Scan(dest ...any) error }, msg *model.Message) error {
	var fileURL, fileName, mimeType string
	var fileSize int64
	sender := model.UserPublic{}
	err := s.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Kind,
		&msg.Content, &fileURL, &fileName, &fileSize, &mimeType, &msg.PollID,
		&msg.Status, &msg.IsDeleted, &msg.CreatedAt,
		&sender.Username, &sender.AvatarURL, &sender.IsOnline)
	if err != nil {
		return err
	}
	if fileURL != "" {
		msg.Attachment = &model.Attachment{URL: fileURL, FileName: fileName, FileSize: fileSize, MimeType: mimeType}
	}
	sender.ID = msg.SenderID
	msg.Sender = &sender
	return nil
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	defer logger.DeferLogDuration("message.Create", time.Now())()
	var fileURL, fileName, mimeType *string
	var fileSize *int64
	if a := msg.Attachment; a != nil {
		fileURL, fileName, fileSize, mimeType = &a.URL, &a.FileName, &a.FileSize, &a.MimeType
	}
	var pollID *string
	if msg.PollID != "" {
		pollID = &msg.PollID
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, kind, content,
		                       file_url, file_name, file_size, mime_type, poll_id,
		                       status, is_deleted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Kind, msg.Content,
		fileURL, fileName, fileSize, mimeType, pollID,
		msg.Status, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("message.GetByID", time.Now())()
	msg := &model.Message{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+msgCols+` FROM messages m JOIN users u ON u.id = m.sender_id WHERE m.id = $1`, id)
	if err := scanMessage(row, msg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return msg, nil
}

// ListByConversation — страница истории до курсора before (не включая),
// возвращается в хронологическом порядке.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("message.ListByConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+msgCols+` FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1 AND m.is_deleted = FALSE AND m.created_at < $2
		 ORDER BY m.created_at DESC LIMIT $3`, conversationID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListByConversation query: %w", err)
	}
	defer rows.Close()

	var list []model.Message
	for rows.Next() {
		var msg model.Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, fmt.Errorf("msgRepo.ListByConversation scan: %w", err)
		}
		list = append(list, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListByConversation rows: %w", err)
	}
	// DESC из базы -> хронологический порядок для клиента.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// LastVisible — последнее сообщение для превью списка бесед.
// Системные сообщения (скриншоты, блокировки) превью не меняют.
func (r *MessageRepository) LastVisible(ctx context.Context, conversationID string) (*model.Message, error) {
	msg := &model.Message{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+msgCols+` FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1 AND m.is_deleted = FALSE AND m.kind <> 'system'
		 ORDER BY m.created_at DESC LIMIT 1`, conversationID)
	if err := scanMessage(row, msg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("msgRepo.LastVisible: %w", err)
	}
	return msg, nil
}

// Search ищет по подстроке текста внутри одной беседы.
func (r *MessageRepository) Search(ctx context.Context, conversationID, term string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("message.Search", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+msgCols+` FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1 AND m.is_deleted = FALSE
		   AND (m.content ILIKE '%' || $2 || '%' OR m.file_name ILIKE '%' || $2 || '%')
		 ORDER BY m.created_at DESC LIMIT $3`, conversationID, term, limit)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Search query: %w", err)
	}
	defer rows.Close()

	var list []model.Message
	for rows.Next() {
		var msg model.Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, fmt.Errorf("msgRepo.Search scan: %w", err)
		}
		list = append(list, msg)
	}
	return list, rows.Err()
}

func (r *MessageRepository) UpdateContent(ctx context.Context, id, content string) error {
	defer logger.DeferLogDuration("message.UpdateContent", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $1 WHERE id = $2 AND kind = 'text'`, content, id)
	if err != nil {
		return fmt.Errorf("msgRepo.UpdateContent: %w", err)
	}
	return nil
}

func (r *MessageRepository) SoftDelete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("message.SoftDelete", time.Now())()
	_, err := r.pool.Exec(ctx, `UPDATE messages SET is_deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("msgRepo.SoftDelete: %w", err)
	}
	return nil
}

// MarkRead помечает прочитанными входящие сообщения до момента upTo.
// Возвращает id затронутых сообщений для события message_read.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string, upTo time.Time) ([]string, error) {
	defer logger.DeferLogDuration("message.MarkRead", time.Now())()
	rows, err := r.pool.Query(ctx,
		`UPDATE messages SET status = 'read'
		 WHERE conversation_id = $1 AND sender_id <> $2 AND status = 'sent' AND created_at <= $3
		 RETURNING id`, conversationID, readerID, upTo)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.MarkRead: %w", err)
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
