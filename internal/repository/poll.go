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

type PollRepository struct {
	pool *pgxpool.Pool
}

func NewPollRepository(pool *pgxpool.Pool) *PollRepository {
	return &PollRepository{pool: pool}
}

// Create сохраняет опрос вместе с вариантами одной транзакцией.
// Варианты должны иметь заполненные ID и Position.
func (r *PollRepository) Create(ctx context.Context, p *model.Poll) error {
	defer logger.DeferLogDuration("poll.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pollRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var messageID *string
	if p.MessageID != "" {
		messageID = &p.MessageID
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO polls (id, conversation_id, message_id, question, description,
		                    created_by, allow_multiple, is_closed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`,
		p.ID, p.ConversationID, messageID, p.Question, p.Description,
		p.CreatedBy, p.AllowMultiple, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pollRepo.Create insert: %w", err)
	}
	for _, opt := range p.Options {
		_, err = tx.Exec(ctx,
			`INSERT INTO poll_options (id, poll_id, position, text) VALUES ($1, $2, $3, $4)`,
			opt.ID, p.ID, opt.Position, opt.Text,
		)
		if err != nil {
			return fmt.Errorf("pollRepo.Create option: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pollRepo.Create commit: %w", err)
	}
	return nil
}

// GetByID возвращает опрос с вариантами и голосами.
func (r *PollRepository) GetByID(ctx context.Context, id string) (*model.Poll, error) {
	defer logger.DeferLogDuration("poll.GetByID", time.Now())()
	p := &model.Poll{}
	row := r.pool.QueryRow(ctx,
		`SELECT id, conversation_id, COALESCE(message_id::text,''), question, description,
		        created_by, allow_multiple, is_closed, closed_at, created_at
		 FROM polls WHERE id = $1`, id)
	err := row.Scan(&p.ID, &p.ConversationID, &p.MessageID, &p.Question, &p.Description,
		&p.CreatedBy, &p.AllowMultiple, &p.IsClosed, &p.ClosedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pollRepo.GetByID: %w", err)
	}
	if err := r.loadOptions(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PollRepository) loadOptions(ctx context.Context, p *model.Poll) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, position, text FROM poll_options WHERE poll_id = $1 ORDER BY position`, p.ID)
	if err != nil {
		return fmt.Errorf("pollRepo.loadOptions query: %w", err)
	}
	defer rows.Close()
	byID := make(map[string]int)
	for rows.Next() {
		var opt model.PollOption
		if err := rows.Scan(&opt.ID, &opt.Position, &opt.Text); err != nil {
			return fmt.Errorf("pollRepo.loadOptions scan: %w", err)
		}
		opt.Votes = []model.PollVote{}
		byID[opt.ID] = len(p.Options)
		p.Options = append(p.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	vrows, err := r.pool.Query(ctx,
		`SELECT v.option_id, v.user_id, v.voted_at, u.username, u.avatar_url
		 FROM poll_votes v
		 JOIN poll_options o ON o.id = v.option_id
		 JOIN users u ON u.id = v.user_id
		 WHERE o.poll_id = $1
		 ORDER BY v.voted_at`, p.ID)
	if err != nil {
		return fmt.Errorf("pollRepo.loadOptions votes: %w", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var optionID string
		var v model.PollVote
		voter := model.UserPublic{}
		if err := vrows.Scan(&optionID, &v.UserID, &v.VotedAt, &voter.Username, &voter.AvatarURL); err != nil {
			return fmt.Errorf("pollRepo.loadOptions vote scan: %w", err)
		}
		voter.ID = v.UserID
		v.Voter = &voter
		if i, ok := byID[optionID]; ok {
			p.Options[i].Votes = append(p.Options[i].Votes, v)
		}
	}
	return vrows.Err()
}

// SetMessageID привязывает опрос к сообщению-носителю после его создания.
func (r *PollRepository) SetMessageID(ctx context.Context, pollID, messageID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE polls SET message_id = $1 WHERE id = $2`, messageID, pollID)
	if err != nil {
		return fmt.Errorf("pollRepo.SetMessageID: %w", err)
	}
	return nil
}

// Vote добавляет голос. В режиме одного голоса предыдущий голос пользователя
// в этом опросе снимается той же транзакцией (голос "переносится").
func (r *PollRepository) Vote(ctx context.Context, pollID, optionID, userID string, allowMultiple bool) error {
	defer logger.DeferLogDuration("poll.Vote", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pollRepo.Vote begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if !allowMultiple {
		_, err = tx.Exec(ctx,
			`DELETE FROM poll_votes WHERE user_id = $1
			 AND option_id IN (SELECT id FROM poll_options WHERE poll_id = $2)`,
			userID, pollID)
		if err != nil {
			return fmt.Errorf("pollRepo.Vote clear: %w", err)
		}
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO poll_votes (option_id, user_id, voted_at) VALUES ($1, $2, NOW())
		 ON CONFLICT DO NOTHING`, optionID, userID)
	if err != nil {
		return fmt.Errorf("pollRepo.Vote insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPollDuplicateVote
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pollRepo.Vote commit: %w", err)
	}
	return nil
}

// RemoveVote снимает голос пользователя с варианта.
func (r *PollRepository) RemoveVote(ctx context.Context, optionID, userID string) error {
	defer logger.DeferLogDuration("poll.RemoveVote", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM poll_votes WHERE option_id = $1 AND user_id = $2`, optionID, userID)
	if err != nil {
		return fmt.Errorf("pollRepo.RemoveVote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPollNoVote
	}
	return nil
}

func (r *PollRepository) Close(ctx context.Context, pollID string) error {
	defer logger.DeferLogDuration("poll.Close", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE polls SET is_closed = TRUE, closed_at = NOW() WHERE id = $1 AND is_closed = FALSE`, pollID)
	if err != nil {
		return fmt.Errorf("pollRepo.Close: %w", err)
	}
	return nil
}

// OptionBelongs проверяет, что вариант принадлежит опросу.
func (r *PollRepository) OptionBelongs(ctx context.Context, pollID, optionID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM poll_options WHERE id = $1 AND poll_id = $2)`,
		optionID, pollID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("pollRepo.OptionBelongs: %w", err)
	}
	return ok, nil
}

// ListByConversation возвращает опросы беседы с вариантами и голосами,
// свежие первыми.
func (r *PollRepository) ListByConversation(ctx context.Context, conversationID string) ([]*model.Poll, error) {
	defer logger.DeferLogDuration("poll.ListByConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, COALESCE(message_id::text,''), question, description,
		        created_by, allow_multiple, is_closed, closed_at, created_at
		 FROM polls WHERE conversation_id = $1
		 ORDER BY created_at DESC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("pollRepo.ListByConversation query: %w", err)
	}
	defer rows.Close()

	var polls []*model.Poll
	for rows.Next() {
		p := &model.Poll{}
		if err := rows.Scan(&p.ID, &p.ConversationID, &p.MessageID, &p.Question, &p.Description,
			&p.CreatedBy, &p.AllowMultiple, &p.IsClosed, &p.ClosedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("pollRepo.ListByConversation scan: %w", err)
		}
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range polls {
		if err := r.loadOptions(ctx, p); err != nil {
			return nil, err
		}
	}
	return polls, nil
}
