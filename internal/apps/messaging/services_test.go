package messaging

import (
	"context"
	"strings"
	"testing"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = "california_merced_uc_merced"

type fakeUsers map[string]*models.User

func (f fakeUsers) ResolveUser(_ context.Context, _ string, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperr.New(apperr.NotFound, "User not found")
}

func (f fakeUsers) add(id, name string, role identity.Role) identity.Context {
	u := &models.User{Name: name, UserType: string(role)}
	u.ID = id
	f[id] = u
	return identity.Context{UID: "uid-" + id, Role: role, TenantPath: testTenant, DirectoryID: id}
}

func newService(t *testing.T) (*MessagingService, fakeUsers) {
	t.Helper()
	db := testutil.NewDB(t, &Conversation{}, &ConversationMember{}, &Message{})
	users := fakeUsers{}
	return NewMessagingService(db, users), users
}

func member(t *testing.T, svc *MessagingService, conversationID, userID string) ConversationMember {
	t.Helper()
	var m ConversationMember
	require.NoError(t, membersIn(svc.store, testTenant).Get(context.Background(), memberID(conversationID, userID), &m))
	return m
}

func TestConversationID_Sorted(t *testing.T) {
	assert.Equal(t, "alice__bob", ConversationID("bob", "alice"))
	assert.Equal(t, ConversationID("alice", "bob"), ConversationID("bob", "alice"))
}

func TestCreateConversation_Idempotent(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()
	bob := users.add("bob", "Bob", identity.RoleMentee)
	users.add("alice", "Alice", identity.RoleMentor)

	res, err := svc.CreateConversation(ctx, bob, &CreateConversationRequest{OtherUserID: "alice"})
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, "alice__bob", res.Conversation.ID)
	assert.Equal(t, []string{"alice", "bob"}, []string(res.Conversation.Participants))

	res, err = svc.CreateConversation(ctx, bob, &CreateConversationRequest{OtherUserID: "alice"})
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.Equal(t, "Alice", res.Conversation.ParticipantNames.Data()["alice"])
}

func TestCreateConversation_CallerMustParticipate(t *testing.T) {
	svc, users := newService(t)
	eve := users.add("eve", "Eve", identity.RoleMentee)
	users.add("alice", "Alice", identity.RoleMentor)
	users.add("bob", "Bob", identity.RoleMentee)

	_, err := svc.CreateConversation(context.Background(), eve, &CreateConversationRequest{UserID: "alice", OtherUserID: "bob"})
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.CreateConversation(context.Background(), eve, &CreateConversationRequest{OtherUserID: "eve"})
	assert.ErrorIs(t, err, ErrSelfConversation)
}

func TestSendAndMarkRead(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()
	bob := users.add("bob", "Bob", identity.RoleMentee)
	alice := users.add("alice", "Alice", identity.RoleMentor)
	eve := users.add("eve", "Eve", identity.RoleMentee)

	res, err := svc.CreateConversation(ctx, bob, &CreateConversationRequest{OtherUserID: "alice"})
	require.NoError(t, err)
	id := res.Conversation.ID

	first, err := svc.SendMessage(ctx, bob, id, &SendMessageRequest{Message: " hello "})
	require.NoError(t, err)
	assert.Equal(t, "hello", first.Body)
	assert.Equal(t, "Bob", first.SenderName)
	_, err = svc.SendMessage(ctx, bob, id, &SendMessageRequest{Message: "are you there?"})
	require.NoError(t, err)

	assert.Equal(t, 2, member(t, svc, id, "alice").UnreadCount)
	assert.Equal(t, 0, member(t, svc, id, "bob").UnreadCount)

	var conv Conversation
	require.NoError(t, conversationsIn(svc.store, testTenant).Get(ctx, id, &conv))
	assert.Equal(t, "are you there?", conv.LastMessage.Text)
	assert.Equal(t, "bob", conv.LastMessage.SenderID)

	_, err = svc.SendMessage(ctx, eve, id, &SendMessageRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.SendMessage(ctx, bob, id, &SendMessageRequest{Message: strings.Repeat("x", MaxMessageLength+1)})
	assert.ErrorIs(t, err, ErrMessageTooLong)

	marked, err := svc.MarkMessagesRead(ctx, alice, id, &MarkReadRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, marked.Marked)
	m := member(t, svc, id, "alice")
	assert.Equal(t, 0, m.UnreadCount)
	assert.NotNil(t, m.LastRead)

	page, err := svc.GetMessages(ctx, alice, id, &PageQuery{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	for _, msg := range page.Messages {
		assert.True(t, msg.readBy("alice"))
	}

	marked, err = svc.MarkMessagesRead(ctx, alice, id, &MarkReadRequest{MessageIDs: []string{first.ID}})
	require.NoError(t, err)
	assert.Equal(t, 0, marked.Marked)
}

func TestUpdateConversationSettings(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()
	bob := users.add("bob", "Bob", identity.RoleMentee)
	users.add("alice", "Alice", identity.RoleMentor)

	res, err := svc.CreateConversation(ctx, bob, &CreateConversationRequest{OtherUserID: "alice"})
	require.NoError(t, err)

	pinned, muted, nick := true, false, "Prof A"
	m, err := svc.UpdateConversationSettings(ctx, bob, res.Conversation.ID, &ConversationSettingsRequest{
		Pinned: &pinned, NotificationsEnabled: &muted, CustomNickname: &nick,
	})
	require.NoError(t, err)
	assert.True(t, m.Pinned)
	assert.False(t, m.NotificationsEnabled)
	assert.Equal(t, "Prof A", *m.CustomNickname)

	other := member(t, svc, res.Conversation.ID, "alice")
	assert.False(t, other.Pinned)
	assert.True(t, other.NotificationsEnabled)

	_, err = svc.UpdateConversationSettings(ctx, bob, res.Conversation.ID, &ConversationSettingsRequest{})
	assert.ErrorIs(t, err, ErrNoSettings)
}

func TestGetUserConversations_Paging(t *testing.T) {
	svc, users := newService(t)
	ctx := context.Background()
	alice := users.add("alice", "Alice", identity.RoleMentor)

	var ids []string
	for _, peer := range []string{"bob", "carol", "dave"} {
		users.add(peer, strings.ToUpper(peer[:1])+peer[1:], identity.RoleMentee)
		res, err := svc.CreateConversation(ctx, alice, &CreateConversationRequest{OtherUserID: peer})
		require.NoError(t, err)
		_, err = svc.SendMessage(ctx, alice, res.Conversation.ID, &SendMessageRequest{Message: "welcome " + peer})
		require.NoError(t, err)
		ids = append(ids, res.Conversation.ID)
	}

	page, err := svc.GetUserConversations(ctx, alice, &PageQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[2], page.Conversations[0].ID)
	assert.Equal(t, ids[1], page.Conversations[1].ID)

	page, err = svc.GetUserConversations(ctx, alice, &PageQuery{Limit: 2, StartAfter: ids[1]})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids[0], page.Conversations[0].ID)
}

func TestCallerWithoutDirectoryRecord(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetUserConversations(context.Background(), identity.Context{UID: "uid-x", TenantPath: testTenant}, &PageQuery{})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
