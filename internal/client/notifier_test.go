package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasmos/internal/model"
)

type fakeNav struct {
	openedID    string
	openedGroup bool
}

func (f *fakeNav) OpenConversation(id string, isGroup bool) {
	f.openedID = id
	f.openedGroup = isGroup
}

func toast(id, convID string) Notification {
	return Notification{ID: id, ConversationID: convID, SenderName: "alice", Preview: "hey", CreatedAt: time.Now()}
}

func newNotifierFixture(maxVisible int) (*Notifier, *ManualScheduler, *fakeBackend, *MessageStore, *fakeNav) {
	sched := NewManualScheduler()
	dir := NewDirectory()
	dir.Add(conv("c1", "Alice Johnson"))
	store := NewMessageStore(dir)
	backend := &fakeBackend{}
	nav := &fakeNav{}
	n := NewNotifier(sched, store, backend, nav, model.UserPublic{ID: "u1"}, 10*time.Second, maxVisible)
	return n, sched, backend, store, nav
}

func TestEnqueue_AutoDismissAfterTenSeconds(t *testing.T) {
	n, sched, _, _, _ := newNotifierFixture(3)
	n.Enqueue(toast("n1", "c1"))
	require.Len(t, n.Visible(), 1)

	sched.Advance(10*time.Second + 100*time.Millisecond)
	require.Empty(t, n.Visible())
}

func TestVisible_CappedByMaxInArrivalOrder(t *testing.T) {
	n, _, _, _, _ := newNotifierFixture(2)
	n.Enqueue(toast("n1", "c1"))
	n.Enqueue(toast("n2", "c1"))
	n.Enqueue(toast("n3", "c1"))

	visible := n.Visible()
	require.Len(t, visible, 2)
	require.Equal(t, "n1", visible[0].ID)
	require.Equal(t, "n2", visible[1].ID)
}

func TestDismiss_MiddleEntryKeepsOtherTimers(t *testing.T) {
	n, sched, _, _, _ := newNotifierFixture(5)
	n.Enqueue(toast("n1", "c1"))
	sched.Advance(5 * time.Second)
	n.Enqueue(toast("n2", "c1"))
	n.Enqueue(toast("n3", "c1"))

	n.Dismiss("n2")
	require.Len(t, n.Visible(), 2)

	// n1 was enqueued 5s earlier and expires on its own schedule.
	sched.Advance(5*time.Second + 100*time.Millisecond)
	visible := n.Visible()
	require.Len(t, visible, 1)
	require.Equal(t, "n3", visible[0].ID)
}

func TestReply_SendsWithoutChangingActiveConversation(t *testing.T) {
	n, _, backend, store, _ := newNotifierFixture(3)
	n.Enqueue(toast("n1", "c1"))

	require.NoError(t, n.Reply(context.Background(), "n1", "on my way"))
	require.Len(t, backend.sent, 1)
	require.Equal(t, "c1", backend.sent[0].ConversationID)
	require.Len(t, store.List("c1"), 1)
	require.Empty(t, n.Visible())
}

func TestOpen_RoutesByGroupFlag(t *testing.T) {
	n, _, _, _, nav := newNotifierFixture(3)
	g := toast("n1", "c1")
	g.IsGroup = true
	n.Enqueue(g)

	n.Open("n1")
	require.Equal(t, "c1", nav.openedID)
	require.True(t, nav.openedGroup)
	require.Empty(t, n.Visible())
}

func TestClose_CancelsAllTimers(t *testing.T) {
	n, sched, _, _, _ := newNotifierFixture(3)
	n.Enqueue(toast("n1", "c1"))
	n.Enqueue(toast("n2", "c1"))

	n.Close()
	require.Empty(t, n.Visible())
	sched.Advance(time.Minute)
	require.Empty(t, n.Visible())
}
