package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasmos/internal/model"
)

func TestList_FilterByNameSubstring(t *testing.T) {
	dir := NewDirectory()
	entry := conv("c1", "Alice Johnson")
	entry.LastMessage = textMsg("m1", "c1", "Hey", time.Now())
	dir.Add(entry)

	found := dir.List("", "alice")
	require.Len(t, found, 1)
	require.Equal(t, "c1", found[0].Conversation.ID)

	require.Empty(t, dir.List("", "bob"))
}

func TestList_FilterPreservesRecencyOrder(t *testing.T) {
	dir := NewDirectory()
	dir.Add(conv("c1", "alpha group"))
	dir.Add(conv("c2", "alpha team"))
	dir.Add(conv("c3", "beta"))

	found := dir.List("", "alpha")
	require.Len(t, found, 2)
	require.Equal(t, "c2", found[0].Conversation.ID)
	require.Equal(t, "c1", found[1].Conversation.ID)
}

func TestList_FilterByKind(t *testing.T) {
	dir := NewDirectory()
	g := conv("c1", "team")
	g.Conversation.Kind = model.ConversationGroup
	dir.Add(g)
	dir.Add(conv("c2", "alice"))

	found := dir.List(model.ConversationGroup, "")
	require.Len(t, found, 1)
	require.Equal(t, "c1", found[0].Conversation.ID)
}

func TestSelect_ZeroesUnreadAndClosesOverlays(t *testing.T) {
	dir := NewDirectory()
	e := conv("c1", "alice")
	e.UnreadCount = 5
	dir.Add(e)
	dir.OpenSearch()
	dir.OpenMenu()

	dir.Select("c1")
	require.Equal(t, "c1", dir.ActiveID())
	require.Zero(t, dir.Get("c1").UnreadCount)
	require.False(t, dir.OverlayOpen())
}

func TestSelect_UnknownIDIsNoOp(t *testing.T) {
	dir := NewDirectory()
	dir.Add(conv("c1", "alice"))
	dir.Select("c1")

	dir.Select("missing")
	require.Equal(t, "c1", dir.ActiveID())
}

func TestTouch_MovesConversationToHead(t *testing.T) {
	dir := NewDirectory()
	dir.Add(conv("c1", "older"))
	dir.Add(conv("c2", "newer"))

	dir.Touch("c1", textMsg("m1", "c1", "bump", time.Now()))
	list := dir.List("", "")
	require.Equal(t, "c1", list[0].Conversation.ID)
}

func TestIncrementUnread_SkipsActiveConversation(t *testing.T) {
	dir := NewDirectory()
	dir.Add(conv("c1", "alice"))
	dir.Add(conv("c2", "bob"))
	dir.Select("c1")

	dir.IncrementUnread("c1")
	dir.IncrementUnread("c2")
	require.Zero(t, dir.Get("c1").UnreadCount)
	require.Equal(t, 1, dir.Get("c2").UnreadCount)
}
