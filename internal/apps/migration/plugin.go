package migration

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MigrationPlugin exposes the legacy-layout jobs on admin routes only.
type MigrationPlugin struct{}

func New() *MigrationPlugin {
	return &MigrationPlugin{}
}

func (p *MigrationPlugin) ID() string { return "migration" }

// Models is empty: the jobs read legacy_documents, a shared table, and
// write the scheduling tables.
func (p *MigrationPlugin) Models() []interface{} {
	return nil
}

func (p *MigrationPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {}

func (p *MigrationPlugin) RegisterAdminRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewMigrationHandler(NewMigrationService(db))

	router.Post("/migrations/meetings", handler.MigrateMeetings)
	router.Post("/migrations/cleanup", handler.CleanupLegacy)
}
