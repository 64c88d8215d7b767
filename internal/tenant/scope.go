package tenant

import "gorm.io/gorm"

// ForTenant returns a GORM scope that filters by tenant_path.
func ForTenant(tenantPath string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_path = ?", tenantPath)
	}
}
