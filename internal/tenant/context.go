package tenant

import "github.com/gofiber/fiber/v2"

// GetTenantPath extracts the resolved tenant path from Fiber context locals.
func GetTenantPath(c *fiber.Ctx) string {
	if path, ok := c.Locals("tenant_path").(string); ok {
		return path
	}
	return ""
}

func SetTenantPath(c *fiber.Ctx, path string) {
	c.Locals("tenant_path", path)
}
