package messaging

import (
	"strings"
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/store"
	"gorm.io/datatypes"
)

const (
	CollectionConversations = "conversations"
	CollectionMembers       = "conversation_members"
	CollectionMessages      = "messages"
)

const (
	MaxMessageLength = 5000
	DefaultPageSize  = 20
	MaxPageSize      = 100
)

// ConversationID joins the sorted participant directory ids with "__".
func ConversationID(a, b string) string {
	return strings.Join(sortedPair(a, b), "__")
}

func memberID(conversationID, userID string) string {
	return conversationID + "/" + userID
}

type LastMessage struct {
	Text      string     `gorm:"type:text" json:"text"`
	SenderID  string     `gorm:"size:255" json:"sender_id"`
	Timestamp *time.Time `json:"timestamp"`
}

type Conversation struct {
	store.Doc
	Participants     datatypes.JSONSlice[string]             `json:"participants"`
	ParticipantNames datatypes.JSONType[map[string]string] `json:"participant_names"`
	Type             string                                  `gorm:"size:20;default:'direct'" json:"type"`
	MentorshipID     *string                                 `gorm:"size:255" json:"mentorship_id,omitempty"`
	LastMessage      LastMessage                             `gorm:"embedded;embeddedPrefix:last_message_" json:"last_message"`
	CreatedBy        string                                  `gorm:"size:255" json:"created_by"`
	CreatedAt        time.Time                               `json:"created_at"`
	UpdatedAt        time.Time                               `gorm:"index" json:"updated_at"`
}

func (Conversation) TableName() string { return CollectionConversations }

func (c *Conversation) hasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) otherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ConversationMember is one participant's view of a conversation.
type ConversationMember struct {
	store.Doc
	ConversationID       string     `gorm:"size:255;not null;index" json:"conversation_id"`
	UserID               string     `gorm:"size:255;not null;index" json:"user_id"`
	UnreadCount          int        `gorm:"not null;default:0" json:"unread_count"`
	Archived             bool       `gorm:"not null;default:false" json:"archived"`
	Pinned               bool       `gorm:"not null;default:false" json:"pinned"`
	NotificationsEnabled bool       `gorm:"not null;default:true" json:"notifications_enabled"`
	CustomNickname       *string    `gorm:"size:255" json:"custom_nickname"`
	LastRead             *time.Time `json:"last_read"`
	JoinedAt             time.Time  `json:"joined_at"`
}

func (ConversationMember) TableName() string { return CollectionMembers }

type Message struct {
	store.Doc
	ConversationID string                                     `gorm:"size:255;not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderID       string                                     `gorm:"size:255;not null" json:"sender_id"`
	SenderName     string                                     `gorm:"size:255" json:"sender_name"`
	Body           string                                     `gorm:"type:text;not null" json:"message"`
	Type           string                                     `gorm:"size:20;default:'text'" json:"type"`
	Status         string                                     `gorm:"size:20;default:'sent'" json:"status"`
	ReadBy         datatypes.JSONType[map[string]time.Time] `json:"read_by"`
	CreatedAt      time.Time                                  `gorm:"index:idx_messages_conversation_created,priority:2" json:"sent_at"`
}

func (Message) TableName() string { return CollectionMessages }

func (m *Message) readBy(userID string) bool {
	_, ok := m.ReadBy.Data()[userID]
	return ok
}

// --- DTOs ---

type CreateConversationRequest struct {
	// UserID defaults to the caller.
	UserID       string `json:"user_id"`
	OtherUserID  string `json:"other_user_id" validate:"required"`
	MentorshipID string `json:"mentorship_id"`
}

type CreateConversationResult struct {
	Conversation *Conversation `json:"conversation"`
	IsNew        bool          `json:"isNew"`
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

type MarkReadResult struct {
	Marked int `json:"marked"`
}

type ConversationSettingsRequest struct {
	Archived             *bool   `json:"archived"`
	Pinned               *bool   `json:"pinned"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	CustomNickname       *string `json:"custom_nickname" validate:"omitempty,max=255"`
}

type PageQuery struct {
	Limit      int    `query:"limit" json:"limit"`
	StartAfter string `query:"start_after" json:"start_after"`
}

// ConversationView is a conversation with the caller's settings inlined.
type ConversationView struct {
	Conversation
	UnreadCount          int        `json:"unread_count"`
	Archived             bool       `json:"archived"`
	Pinned               bool       `json:"pinned"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
	CustomNickname       *string    `json:"custom_nickname"`
	LastRead             *time.Time `json:"last_read"`
}

type ConversationPage struct {
	Conversations []ConversationView `json:"conversations"`
	HasMore       bool               `json:"hasMore"`
}

type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}
