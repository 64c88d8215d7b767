package apps

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Plugin is a feature module mounted on the authenticated API.
type Plugin interface {
	ID() string

	// Models returns the GORM model pointers to AutoMigrate.
	Models() []interface{}

	// RegisterRoutes mounts routes on /api/p. Requests there carry a
	// resolved identity.Context and tenant path.
	RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}

// AdminPlugin is a Plugin with routes under /api/admin, which only super
// admins, developers and the operator token reach.
type AdminPlugin interface {
	Plugin

	RegisterAdminRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}
