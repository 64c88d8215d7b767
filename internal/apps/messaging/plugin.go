package messaging

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MessagingPlugin struct {
	users UserResolver
}

func New(users UserResolver) *MessagingPlugin {
	return &MessagingPlugin{users: users}
}

func (p *MessagingPlugin) ID() string { return "messaging" }

func (p *MessagingPlugin) Models() []interface{} {
	return []interface{}{
		&Conversation{},
		&ConversationMember{},
		&Message{},
	}
}

func (p *MessagingPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewMessagingHandler(NewMessagingService(db, p.users))

	router.Post("/conversations", handler.CreateConversation)
	router.Get("/conversations", handler.ListConversations)
	router.Patch("/conversations/:id/settings", handler.UpdateSettings)
	router.Post("/conversations/:id/messages", handler.SendMessage)
	router.Get("/conversations/:id/messages", handler.ListMessages)
	router.Post("/conversations/:id/read", handler.MarkRead)
}
