package routes

import (
	"time"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/handlers"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/identity"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

// Handlers groups the core HTTP handlers mounted outside plugins.
type Handlers struct {
	Auth           *handlers.AuthHandler
	Health         *handlers.HealthHandler
	Users          *handlers.UserHandler
	Universities   *handlers.UniversityHandler
	Acknowledgment *handlers.AcknowledgmentHandler
}

func perIPLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	h Handlers,
	identityCfg middleware.IdentityConfig,
	plugins []apps.Plugin,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(perIPLimiter(60))

	api.Get("/health", h.Health.Check)

	// Auth - public, stricter limit: 10 req/min per IP
	auth := api.Group("/auth", perIPLimiter(10))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/validate-name", h.Auth.ValidateName)

	protect := []fiber.Handler{middleware.JWTProtected(cfg), middleware.Identity(identityCfg)}

	api.Post("/auth/logout", append(protect, h.Auth.Logout)...)
	api.Get("/auth/me", append(protect, h.Auth.Me)...)
	api.Post("/auth/revoke", append(protect, h.Auth.RevokeTokens)...)

	// Everything below acts on the caller's university.
	p := api.Group("/p", protect...)

	p.Get("/acknowledgment", h.Acknowledgment.Check)
	p.Post("/acknowledgment", h.Acknowledgment.Submit)

	p.Get("/universities", h.Universities.List)
	p.Get("/settings", h.Universities.GetSettings)

	p.Get("/users", h.Users.List)
	p.Get("/users/:id", h.Users.Get)
	p.Patch("/users/:id", h.Users.Update)

	coordinator := middleware.RequireRoles(identity.AdminRoles...)
	p.Post("/users", coordinator, h.Users.Create)
	p.Delete("/users/:id", coordinator, h.Users.Delete)
	p.Post("/users/bulk", coordinator, h.Users.BulkCreate)
	p.Post("/mentorships", coordinator, h.Users.AssignMentor)
	p.Post("/mentorships/bulk", coordinator, h.Users.BulkAssign)
	p.Put("/settings/:key", coordinator, h.Universities.SetSetting)
	p.Delete("/settings/:key", coordinator, h.Universities.DeleteSetting)

	// Admin: super admins, developers, or the operator token.
	admin := api.Group("/admin",
		middleware.AdminToken(cfg),
		middleware.JWTProtected(cfg),
		middleware.Identity(identityCfg),
		middleware.RequireRoles(identity.RoleSuperAdmin, identity.RoleDeveloper),
	)
	admin.Post("/universities", h.Universities.Initialize)
	admin.Post("/claims", h.Auth.SetClaims)

	for _, plugin := range plugins {
		plugin.RegisterRoutes(p, db, cfg)
		if ap, ok := plugin.(apps.AdminPlugin); ok {
			ap.RegisterAdminRoutes(admin, db, cfg)
		}
	}
}
