package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasmos/internal/model"
)

func conv(id, name string) *model.ConversationView {
	return &model.ConversationView{
		Conversation: model.Conversation{ID: id, Kind: model.ConversationDirect, Name: name},
	}
}

func textMsg(id, convID, content string, at time.Time) *model.Message {
	return &model.Message{
		ID:             id,
		ConversationID: convID,
		Kind:           model.MessageText,
		Content:        content,
		Status:         model.MessageStatusSent,
		CreatedAt:      at,
	}
}

func TestAppend_LastElementAndPreview(t *testing.T) {
	dir := NewDirectory()
	dir.Add(conv("c1", "Alice Johnson"))
	store := NewMessageStore(dir)

	base := time.Now()
	m1 := textMsg("m1", "c1", "first", base)
	m2 := textMsg("m2", "c1", "second", base.Add(time.Second))
	store.Append("c1", m1)
	store.Append("c1", m2)

	msgs := store.List("c1")
	require.Len(t, msgs, 2)
	require.Equal(t, "m2", msgs[len(msgs)-1].ID)
	require.Equal(t, "second", dir.Get("c1").LastMessage.Preview())
}

func TestAppend_OutOfOrderArrivalSortedByCreation(t *testing.T) {
	store := NewMessageStore(nil)
	base := time.Now()

	store.Append("c1", textMsg("m3", "c1", "three", base.Add(2*time.Second)))
	store.Append("c1", textMsg("m1", "c1", "one", base))
	store.Append("c1", textMsg("m2", "c1", "two", base.Add(time.Second)))

	msgs := store.List("c1")
	require.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestAppend_LateArrivalKeepsNewestPreview(t *testing.T) {
	dir := NewDirectory()
	dir.Add(conv("c1", "Alice Johnson"))
	store := NewMessageStore(dir)

	base := time.Now()
	store.Append("c1", textMsg("m2", "c1", "later", base.Add(time.Second)))
	store.Append("c1", textMsg("m1", "c1", "earlier", base))

	msgs := store.List("c1")
	require.Equal(t, []string{"m1", "m2"}, []string{msgs[0].ID, msgs[1].ID})
	require.Equal(t, "later", dir.Get("c1").LastMessage.Preview())
}

func TestAppend_LateArrivalDoesNotReorderDirectory(t *testing.T) {
	dir := NewDirectory()
	dir.Add(conv("c1", "Alice Johnson"))
	dir.Add(conv("c2", "Bob Smith"))
	store := NewMessageStore(dir)

	base := time.Now()
	store.Append("c1", textMsg("m1", "c1", "recent", base.Add(-time.Minute)))
	store.Append("c2", textMsg("m2", "c2", "fresh", base))

	// A two-hour-stale message must not bump the idle conversation above
	// the one holding the genuinely newest message.
	store.Append("c1", textMsg("m3", "c1", "stale", base.Add(-2*time.Hour)))

	list := dir.List("", "")
	require.Equal(t, "c2", list[0].Conversation.ID)
	require.Equal(t, "recent", dir.Get("c1").LastMessage.Preview())
}

func TestSearch_EmptyTermIsIdentity(t *testing.T) {
	store := NewMessageStore(nil)
	base := time.Now()
	store.Append("c1", textMsg("m1", "c1", "hello world", base))
	doc := textMsg("m2", "c1", "", base.Add(time.Second))
	doc.Kind = model.MessageDocument
	doc.Attachment = &model.Attachment{FileName: "report.pdf"}
	store.Append("c1", doc)

	all := store.Search("c1", "")
	require.Len(t, all, 2)
	require.Equal(t, store.List("c1"), all)
}

func TestSearch_TextOnlyCaseInsensitive(t *testing.T) {
	store := NewMessageStore(nil)
	base := time.Now()
	store.Append("c1", textMsg("m1", "c1", "Hello World", base))
	doc := textMsg("m2", "c1", "hello in a doc name", base.Add(time.Second))
	doc.Kind = model.MessageDocument
	store.Append("c1", doc)

	found := store.Search("c1", "HELLO")
	require.Len(t, found, 1)
	require.Equal(t, "m1", found[0].ID)
}

func TestTogglePin_Involution(t *testing.T) {
	store := NewMessageStore(nil)
	m := textMsg("m1", "c1", "pin me", time.Now())
	store.Append("c1", m)

	before := store.List("c1")[0].Pinned
	store.TogglePin("m1")
	store.TogglePin("m1")
	require.Equal(t, before, store.List("c1")[0].Pinned)

	// Unknown id is a no-op.
	store.TogglePin("nope")
}

func TestSystemMessageDoesNotTouchPreview(t *testing.T) {
	dir := NewDirectory()
	dir.Add(conv("c1", "Alice Johnson"))
	store := NewMessageStore(dir)

	base := time.Now()
	store.Append("c1", textMsg("m1", "c1", "hello", base))
	sys := textMsg("m2", "c1", "Alice сделал(а) скриншот чата", base.Add(time.Second))
	sys.Kind = model.MessageSystem
	store.Append("c1", sys)

	require.Equal(t, "hello", dir.Get("c1").LastMessage.Preview())
}
