package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePollInput_TrimsAndAccepts(t *testing.T) {
	q, opts, err := ValidatePollInput("  Lunch?  ", []string{" pizza ", "", "sushi", "   "})
	require.NoError(t, err)
	require.Equal(t, "Lunch?", q)
	require.Equal(t, []string{"pizza", "sushi"}, opts)
}

func TestValidatePollInput_Rejects(t *testing.T) {
	cases := []struct {
		name     string
		question string
		options  []string
	}{
		{"blank question", "   ", []string{"a", "b"}},
		{"one option", "Lunch?", []string{"pizza"}},
		{"blank options", "Lunch?", []string{"  ", ""}},
		{"no options", "Lunch?", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ValidatePollInput(tc.question, tc.options)
			require.ErrorIs(t, err, ErrPollTooFewOptions)
		})
	}
}

func TestPollOption_HasVoted(t *testing.T) {
	opt := PollOption{Votes: []PollVote{{UserID: "u1"}, {UserID: "u2"}}}
	require.True(t, opt.HasVoted("u1"))
	require.False(t, opt.HasVoted("u3"))
}

func TestPoll_VoterCount(t *testing.T) {
	p := Poll{Options: []PollOption{
		{Votes: []PollVote{{UserID: "u1"}, {UserID: "u2"}}},
		{Votes: []PollVote{{UserID: "u3"}}},
		{},
	}}
	require.Equal(t, 3, p.VoterCount())
}
