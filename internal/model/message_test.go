package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreview_ByKind(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want string
	}{
		{"text", Message{Kind: MessageText, Content: "hello"}, "hello"},
		{"system", Message{Kind: MessageSystem, Content: "X покинул(а) беседу"}, "X покинул(а) беседу"},
		{"poll", Message{Kind: MessagePoll, PollID: "p1"}, "📊 Poll"},
		{"image", Message{Kind: MessageImage}, "📷 Photo"},
		{"named document", Message{Kind: MessageDocument, Attachment: &Attachment{FileName: "report.pdf"}}, "📄 report.pdf"},
		{"unnamed document", Message{Kind: MessageDocument}, "📄 Document"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.msg.Preview())
		})
	}
}
