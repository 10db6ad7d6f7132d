package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrPollTooFewOptions = errors.New("poll must have a question and at least 2 options")
	ErrPollClosed        = errors.New("poll is closed")
	ErrPollDuplicateVote = errors.New("already voted for this option")
	ErrPollNoVote        = errors.New("no vote for this option")
)

type PollVote struct {
	UserID  string      `json:"user_id"`
	VotedAt time.Time   `json:"voted_at"`
	Voter   *UserPublic `json:"voter,omitempty"`
}

type PollOption struct {
	ID       string     `json:"id"`
	Position int        `json:"position"`
	Text     string     `json:"text"`
	Votes    []PollVote `json:"votes"`
}

type Poll struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	MessageID      string       `json:"message_id,omitempty"`
	Question       string       `json:"question"`
	Description    string       `json:"description,omitempty"`
	Options        []PollOption `json:"options"`
	CreatedBy      string       `json:"created_by"`
	AllowMultiple  bool         `json:"allow_multiple"`
	IsClosed       bool         `json:"is_closed"`
	ClosedAt       *time.Time   `json:"closed_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	Creator        *UserPublic  `json:"creator,omitempty"`
}

// ValidatePollInput checks a creation request: a non-blank question and at
// least two non-blank options are required. Returns the trimmed values.
func ValidatePollInput(question string, options []string) (string, []string, error) {
	question = strings.TrimSpace(question)
	trimmed := make([]string, 0, len(options))
	for _, opt := range options {
		if s := strings.TrimSpace(opt); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if question == "" || len(trimmed) < 2 {
		return "", nil, ErrPollTooFewOptions
	}
	return question, trimmed, nil
}

// HasVoted reports whether the user has a vote on the given option.
func (o *PollOption) HasVoted(userID string) bool {
	for _, v := range o.Votes {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

// VoterCount returns the total number of votes across all options.
func (p *Poll) VoterCount() int {
	n := 0
	for _, o := range p.Options {
		n += len(o.Votes)
	}
	return n
}
