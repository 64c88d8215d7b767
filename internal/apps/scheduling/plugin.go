package scheduling

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SchedulingPlugin struct {
	users UserResolver
}

func New(users UserResolver) *SchedulingPlugin {
	return &SchedulingPlugin{users: users}
}

func (p *SchedulingPlugin) ID() string { return "scheduling" }

func (p *SchedulingPlugin) Models() []interface{} {
	return []interface{}{
		&AvailabilityDay{},
		&Meeting{},
	}
}

func (p *SchedulingPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewSchedulingHandler(
		NewAvailabilityService(db, p.users),
		NewMeetingService(db, p.users),
	)

	// Availability
	router.Post("/availability", handler.SetAvailability)
	router.Get("/availability", handler.GetAvailability)
	router.Get("/availability/open", handler.GetAvailableSlots)
	router.Delete("/availability/slots/:slotId", handler.RemoveSlot)

	// Meetings
	router.Post("/meetings", handler.CreateMeeting)
	router.Get("/meetings", handler.ListMeetings)
	router.Post("/meetings/requests", handler.RequestMeeting)
	router.Get("/meetings/:id", handler.GetMeeting)
	router.Patch("/meetings/:id", handler.UpdateMeeting)
	router.Post("/meetings/:id/accept", handler.AcceptMeeting)
	router.Post("/meetings/:id/reject", handler.RejectMeeting)
	router.Post("/meetings/:id/cancel", handler.CancelMeeting)
	router.Post("/meetings/:id/hide", handler.HideMeeting)
	router.Delete("/meetings/:id/hide", handler.UnhideMeeting)
}
