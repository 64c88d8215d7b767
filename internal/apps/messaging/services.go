package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/models"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = apperr.New(apperr.NotFound, "Conversation not found")
	ErrProfileNotFound      = apperr.New(apperr.NotFound, "User profile not found")
	ErrNotParticipant       = apperr.New(apperr.PermissionDenied, "You are not a participant in this conversation")
	ErrSelfConversation     = apperr.New(apperr.InvalidArgument, "Cannot start a conversation with yourself")
	ErrEmptyMessage         = apperr.New(apperr.InvalidArgument, "Message is required")
	ErrMessageTooLong       = apperr.Newf(apperr.InvalidArgument, "Message is too long (max %d characters)", MaxMessageLength)
	ErrNoSettings           = apperr.New(apperr.InvalidArgument, "No settings to update")
	ErrCursorNotFound       = apperr.New(apperr.InvalidArgument, "start_after does not name a known document")
)

// UserResolver finds directory records by directory id or provider uid.
type UserResolver interface {
	ResolveUser(ctx context.Context, tenantPath, id string) (*models.User, error)
}

type MessagingService struct {
	store *store.Store
	users UserResolver
}

func NewMessagingService(db *gorm.DB, users UserResolver) *MessagingService {
	return &MessagingService{store: store.New(db), users: users}
}

func conversationsIn(st *store.Store, tenantPath string) *store.Collection {
	return st.Collection(tenantPath, CollectionConversations)
}

func membersIn(st *store.Store, tenantPath string) *store.Collection {
	return st.Collection(tenantPath, CollectionMembers)
}

func messagesIn(st *store.Store, tenantPath string) *store.Collection {
	return st.Collection(tenantPath, CollectionMessages)
}

func pageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// caller returns the caller's directory id; messaging addresses users by it.
func caller(ic identity.Context) (string, error) {
	if ic.UID == "" {
		return "", identity.ErrUnauthenticated
	}
	if ic.DirectoryID == "" {
		return "", ErrProfileNotFound
	}
	return ic.DirectoryID, nil
}

// participantConversation loads a conversation the caller takes part in.
func participantConversation(ctx context.Context, st *store.Store, tenantPath, id, userID string, scopes ...store.Scope) (*Conversation, error) {
	var conv Conversation
	if err := conversationsIn(st, tenantPath).Get(ctx, id, &conv, scopes...); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if !conv.hasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return &conv, nil
}

// CreateConversation opens the direct conversation between two users, or
// returns the existing one with IsNew false.
func (s *MessagingService) CreateConversation(ctx context.Context, ic identity.Context, req *CreateConversationRequest) (*CreateConversationResult, error) {
	me, err := caller(ic)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	userID := req.UserID
	if userID == "" {
		userID = me
	}
	first, err := s.users.ResolveUser(ctx, ic.TenantPath, userID)
	if err != nil {
		return nil, err
	}
	second, err := s.users.ResolveUser(ctx, ic.TenantPath, req.OtherUserID)
	if err != nil {
		return nil, err
	}
	if first.ID == second.ID {
		return nil, ErrSelfConversation
	}
	if !ic.IsSelf(first.ID) && !ic.IsSelf(second.ID) {
		return nil, ErrNotParticipant
	}

	id := ConversationID(first.ID, second.ID)
	result := &CreateConversationResult{}
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		col := conversationsIn(tx, ic.TenantPath)

		var existing Conversation
		err := col.Get(ctx, id, &existing)
		if err == nil {
			result.Conversation = &existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := time.Now()
		conv := &Conversation{
			Doc:          store.Doc{ID: id},
			Participants: datatypes.JSONSlice[string](sortedPair(first.ID, second.ID)),
			ParticipantNames: datatypes.NewJSONType(map[string]string{
				first.ID:  first.Name,
				second.ID: second.Name,
			}),
			Type:      "direct",
			CreatedBy: me,
		}
		if req.MentorshipID != "" {
			conv.MentorshipID = &req.MentorshipID
		}
		if err := col.Create(ctx, conv); err != nil {
			return err
		}
		for _, uid := range conv.Participants {
			member := &ConversationMember{
				Doc:                  store.Doc{ID: memberID(id, uid)},
				ConversationID:       id,
				UserID:               uid,
				NotificationsEnabled: true,
				LastRead:             &now,
				JoinedAt:             now,
			}
			if err := membersIn(tx, ic.TenantPath).Create(ctx, member); err != nil {
				return err
			}
		}
		result.Conversation = conv
		result.IsNew = true
		return nil
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent create; the winner's row is the answer.
		var existing Conversation
		if err := conversationsIn(s.store, ic.TenantPath).Get(ctx, id, &existing); err != nil {
			return nil, err
		}
		return &CreateConversationResult{Conversation: &existing}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.IsNew {
		slog.Info("conversation created", "tenant_path", ic.TenantPath, "conversation_id", id,
			"user_id", ic.UID, "action", "create_conversation")
	}
	return result, nil
}

func sortedPair(a, b string) []string {
	if b < a {
		return []string{b, a}
	}
	return []string{a, b}
}

// SendMessage appends a message, refreshes the last_message snapshot and
// bumps the recipient's unread count in one transaction.
func (s *MessagingService) SendMessage(ctx context.Context, ic identity.Context, conversationID string, req *SendMessageRequest) (*Message, error) {
	me, err := caller(ic)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	var msg *Message
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		conv, err := participantConversation(ctx, tx, ic.TenantPath, conversationID, me, store.ForUpdate())
		if err != nil {
			return err
		}

		now := time.Now()
		msg = &Message{
			Doc:            store.Doc{ID: uuid.New().String()},
			ConversationID: conv.ID,
			SenderID:       me,
			SenderName:     conv.ParticipantNames.Data()[me],
			Body:           text,
			Type:           "text",
			Status:         "sent",
			ReadBy:         datatypes.NewJSONType(map[string]time.Time{me: now}),
			CreatedAt:      now,
		}
		if err := messagesIn(tx, ic.TenantPath).Create(ctx, msg); err != nil {
			return err
		}

		if err := conversationsIn(tx, ic.TenantPath).Update(ctx, &Conversation{}, conv.ID, map[string]interface{}{
			"last_message_text":      text,
			"last_message_sender_id": me,
			"last_message_timestamp": now,
			"updated_at":             now,
		}); err != nil {
			return err
		}

		recipient := conv.otherParticipant(me)
		if recipient == "" {
			return nil
		}
		err = membersIn(tx, ic.TenantPath).Update(ctx, &ConversationMember{}, memberID(conv.ID, recipient), map[string]interface{}{
			"unread_count": gorm.Expr("unread_count + ?", 1),
		})
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("recipient has no member row", "tenant_path", ic.TenantPath,
				"conversation_id", conv.ID, "recipient", recipient)
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkMessagesRead stamps the caller's read time on the given messages, or
// on every message not yet read by the caller when none are given, and
// zeroes the caller's unread count.
func (s *MessagingService) MarkMessagesRead(ctx context.Context, ic identity.Context, conversationID string, req *MarkReadRequest) (*MarkReadResult, error) {
	me, err := caller(ic)
	if err != nil {
		return nil, err
	}

	result := &MarkReadResult{}
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		conv, err := participantConversation(ctx, tx, ic.TenantPath, conversationID, me, store.ForUpdate())
		if err != nil {
			return err
		}

		scopes := []store.Scope{store.Where("conversation_id = ?", conv.ID)}
		if len(req.MessageIDs) > 0 {
			scopes = append(scopes, store.Where("id IN ?", req.MessageIDs))
		} else {
			scopes = append(scopes, store.Where("sender_id <> ?", me))
		}

		var msgs []Message
		col := messagesIn(tx, ic.TenantPath)
		if err := col.Query(ctx, &msgs, scopes...); err != nil {
			return err
		}

		now := time.Now()
		for i := range msgs {
			m := &msgs[i]
			if m.readBy(me) {
				continue
			}
			readBy := map[string]time.Time{}
			for k, v := range m.ReadBy.Data() {
				readBy[k] = v
			}
			readBy[me] = now
			if err := col.Update(ctx, &Message{}, m.ID, map[string]interface{}{
				"read_by": datatypes.NewJSONType(readBy),
			}); err != nil {
				return err
			}
			result.Marked++
		}

		return membersIn(tx, ic.TenantPath).Update(ctx, &ConversationMember{}, memberID(conv.ID, me), map[string]interface{}{
			"unread_count": 0,
			"last_read":    now,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *MessagingService) UpdateConversationSettings(ctx context.Context, ic identity.Context, conversationID string, req *ConversationSettingsRequest) (*ConversationMember, error) {
	me, err := caller(ic)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Archived != nil {
		updates["archived"] = *req.Archived
	}
	if req.Pinned != nil {
		updates["pinned"] = *req.Pinned
	}
	if req.NotificationsEnabled != nil {
		updates["notifications_enabled"] = *req.NotificationsEnabled
	}
	if req.CustomNickname != nil {
		if nick := strings.TrimSpace(*req.CustomNickname); nick != "" {
			updates["custom_nickname"] = nick
		} else {
			updates["custom_nickname"] = nil
		}
	}
	if len(updates) == 0 {
		return nil, ErrNoSettings
	}

	if _, err := participantConversation(ctx, s.store, ic.TenantPath, conversationID, me); err != nil {
		return nil, err
	}

	col := membersIn(s.store, ic.TenantPath)
	id := memberID(conversationID, me)
	if err := col.Update(ctx, &ConversationMember{}, id, updates); err != nil {
		return nil, err
	}
	var member ConversationMember
	if err := col.Get(ctx, id, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// GetUserConversations pages through the caller's conversations, most
// recently active first. StartAfter is the last conversation id of the
// previous page.
func (s *MessagingService) GetUserConversations(ctx context.Context, ic identity.Context, q *PageQuery) (*ConversationPage, error) {
	me, err := caller(ic)
	if err != nil {
		return nil, err
	}
	limit := pageSize(q.Limit)

	var members []ConversationMember
	if err := membersIn(s.store, ic.TenantPath).Query(ctx, &members, store.Where("user_id = ?", me)); err != nil {
		return nil, err
	}
	page := &ConversationPage{Conversations: []ConversationView{}}
	if len(members) == 0 {
		return page, nil
	}

	settings := make(map[string]ConversationMember, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		settings[m.ConversationID] = m
		ids = append(ids, m.ConversationID)
	}

	col := conversationsIn(s.store, ic.TenantPath)
	scopes := []store.Scope{store.Where("id IN ?", ids)}
	if q.StartAfter != "" {
		var cursor Conversation
		if err := col.Get(ctx, q.StartAfter, &cursor); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrCursorNotFound
			}
			return nil, err
		}
		scopes = append(scopes, store.StartAfter("updated_at", true, cursor.UpdatedAt, cursor.ID))
	}
	scopes = append(scopes,
		store.OrderBy("updated_at", true),
		store.OrderBy("id", true),
		store.Limit(limit+1),
	)

	var convs []Conversation
	if err := col.Query(ctx, &convs, scopes...); err != nil {
		return nil, err
	}
	if len(convs) > limit {
		page.HasMore = true
		convs = convs[:limit]
	}

	for _, c := range convs {
		m := settings[c.ID]
		page.Conversations = append(page.Conversations, ConversationView{
			Conversation:         c,
			UnreadCount:          m.UnreadCount,
			Archived:             m.Archived,
			Pinned:               m.Pinned,
			NotificationsEnabled: m.NotificationsEnabled,
			CustomNickname:       m.CustomNickname,
			LastRead:             m.LastRead,
		})
	}
	return page, nil
}

// GetMessages pages backwards through a conversation, newest first.
// StartAfter is the oldest message id of the previous page.
func (s *MessagingService) GetMessages(ctx context.Context, ic identity.Context, conversationID string, q *PageQuery) (*MessagePage, error) {
	me, err := caller(ic)
	if err != nil {
		return nil, err
	}
	if _, err := participantConversation(ctx, s.store, ic.TenantPath, conversationID, me); err != nil {
		return nil, err
	}
	limit := pageSize(q.Limit)

	col := messagesIn(s.store, ic.TenantPath)
	scopes := []store.Scope{store.Where("conversation_id = ?", conversationID)}
	if q.StartAfter != "" {
		var cursor Message
		if err := col.Get(ctx, q.StartAfter, &cursor); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrCursorNotFound
			}
			return nil, err
		}
		scopes = append(scopes, store.StartAfter("created_at", true, cursor.CreatedAt, cursor.ID))
	}
	scopes = append(scopes,
		store.OrderBy("created_at", true),
		store.OrderBy("id", true),
		store.Limit(limit+1),
	)

	page := &MessagePage{Messages: []Message{}}
	if err := col.Query(ctx, &page.Messages, scopes...); err != nil {
		return nil, err
	}
	if len(page.Messages) > limit {
		page.HasMore = true
		page.Messages = page.Messages[:limit]
	}
	return page, nil
}
