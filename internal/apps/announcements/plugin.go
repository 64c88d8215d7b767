package announcements

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AnnouncementsPlugin struct{}

func New() *AnnouncementsPlugin {
	return &AnnouncementsPlugin{}
}

func (p *AnnouncementsPlugin) ID() string { return "announcements" }

func (p *AnnouncementsPlugin) Models() []interface{} {
	return []interface{}{&Announcement{}}
}

func (p *AnnouncementsPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewAnnouncementHandler(NewAnnouncementService(db))

	router.Post("/announcements", handler.Create)
	router.Get("/announcements", handler.List)
	router.Put("/announcements/:id", handler.Update)
	router.Delete("/announcements/:id", handler.Delete)
}
