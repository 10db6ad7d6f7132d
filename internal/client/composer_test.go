package client

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chasmos/internal/model"
)

type fakeBackend struct {
	sent      []*model.Message
	sendErr   error
	uploadErr error
	marked    []string
}

func (f *fakeBackend) SendMessage(_ context.Context, m *model.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeBackend) UploadDocument(_ context.Context, fileName string, r io.Reader) (*model.Attachment, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, _ := io.ReadAll(r)
	return &model.Attachment{URL: "/api/files/documents/" + fileName, FileName: fileName, FileSize: int64(len(data))}, nil
}

func (f *fakeBackend) MarkRead(_ context.Context, conversationID string) error {
	f.marked = append(f.marked, conversationID)
	return nil
}

func newComposerFixture() (*Composer, *MessageStore, *Directory, *fakeBackend) {
	dir := NewDirectory()
	dir.Add(conv("c1", "Alice Johnson"))
	store := NewMessageStore(dir)
	backend := &fakeBackend{}
	self := model.UserPublic{ID: "u1", Username: "me"}
	return NewComposer(store, dir, backend, self), store, dir, backend
}

func TestSubmit_BlankInputIsNoOp(t *testing.T) {
	c, store, dir, backend := newComposerFixture()
	dir.Select("c1")

	require.NoError(t, c.Submit(context.Background(), "   "))
	require.Empty(t, store.List("c1"))
	require.Empty(t, backend.sent)
}

func TestSubmit_NoActiveConversationIsNoOp(t *testing.T) {
	c, store, _, backend := newComposerFixture()

	require.NoError(t, c.Submit(context.Background(), "hello"))
	require.Empty(t, store.List("c1"))
	require.Empty(t, backend.sent)
}

func TestSubmit_AppendsAndMirrors(t *testing.T) {
	c, store, dir, backend := newComposerFixture()
	dir.Select("c1")

	require.NoError(t, c.Submit(context.Background(), "hello"))
	msgs := store.List("c1")
	require.Len(t, msgs, 1)
	require.Equal(t, model.MessageText, msgs[0].Kind)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, model.MessageStatusRead, msgs[0].Status)
	require.Len(t, backend.sent, 1)
}

func TestAttach_RejectsUnsupportedKind(t *testing.T) {
	c, store, dir, _ := newComposerFixture()
	dir.Select("c1")

	err := c.Attach(context.Background(), model.MessagePoll, "x.bin", strings.NewReader("data"))
	require.Error(t, err)
	require.Empty(t, store.List("c1"))
}

func TestAttach_UploadFailureLeavesStoreUntouched(t *testing.T) {
	c, store, dir, backend := newComposerFixture()
	dir.Select("c1")
	backend.uploadErr = errors.New("disk full")

	err := c.Attach(context.Background(), model.MessageDocument, "report.pdf", strings.NewReader("data"))
	require.Error(t, err)
	require.Empty(t, store.List("c1"))
}

func TestAttach_AppendsDocumentMessage(t *testing.T) {
	c, store, dir, _ := newComposerFixture()
	dir.Select("c1")

	require.NoError(t, c.Attach(context.Background(), model.MessageDocument, "report.pdf", strings.NewReader("data")))
	msgs := store.List("c1")
	require.Len(t, msgs, 1)
	require.Equal(t, model.MessageDocument, msgs[0].Kind)
	require.Equal(t, "report.pdf", msgs[0].Attachment.FileName)
	require.Equal(t, "📄 report.pdf", dir.Get("c1").LastMessage.Preview())
}

func TestAttachMenu_ClosedAfterSelection(t *testing.T) {
	c, _, dir, _ := newComposerFixture()
	dir.Select("c1")

	c.OpenMenu()
	require.True(t, c.MenuOpen())
	require.NoError(t, c.Attach(context.Background(), model.MessageImage, "pic.png", strings.NewReader("data")))
	require.False(t, c.MenuOpen())
}
