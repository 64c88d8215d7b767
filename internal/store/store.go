// Package store is the tenant-scoped document accessor. Every collection
// lives in its own table; documents are keyed by (tenant_path, id).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = apperr.New(apperr.NotFound, "document not found")
	ErrAlreadyExists = apperr.New(apperr.AlreadyExists, "document already exists")
)

// Doc is embedded by every tenant-scoped document model.
type Doc struct {
	TenantPath string `gorm:"primaryKey;size:150" json:"-"`
	ID         string `gorm:"primaryKey;size:255" json:"id"`
}

func (d *Doc) SetTenant(path string) { d.TenantPath = path }

// Document is any model that embeds Doc.
type Document interface {
	SetTenant(path string)
}

// Scope narrows a query. Where, OrderBy, Limit, StartAfter and ForUpdate
// build the common ones.
type Scope = func(*gorm.DB) *gorm.DB

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle, bound to the transaction when the
// store came from Transaction.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Collection returns a handle for tenantPath/data/name.
func (s *Store) Collection(tenantPath, name string) *Collection {
	return &Collection{db: s.db, tenantPath: tenantPath, name: name}
}

// Transaction runs fn against a store bound to a single database
// transaction. Returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

type Collection struct {
	db         *gorm.DB
	tenantPath string
	name       string
}

func (c *Collection) Path() string {
	return c.tenantPath + "/data/" + c.name
}

func (c *Collection) TenantPath() string { return c.tenantPath }

func (c *Collection) Name() string { return c.name }

func (c *Collection) scoped(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Table(c.name).Scopes(tenant.ForTenant(c.tenantPath))
}

// Get loads the document with the given id into dest.
func (c *Collection) Get(ctx context.Context, id string, dest Document, scopes ...Scope) error {
	err := c.scoped(ctx).Scopes(scopes...).Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s/%s: %w", c.Path(), id, err)
	}
	return nil
}

// Exists reports whether an id is taken, soft-deleted rows included.
func (c *Collection) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := c.scoped(ctx).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check %s/%s: %w", c.Path(), id, err)
	}
	return count > 0, nil
}

// Create inserts doc only if no document with the same id exists.
func (c *Collection) Create(ctx context.Context, doc Document) error {
	doc.SetTenant(c.tenantPath)
	err := c.db.WithContext(ctx).Table(c.name).Create(doc).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create in %s: %w", c.Path(), err)
	}
	return nil
}

// Save writes every field of doc, inserting it when absent.
func (c *Collection) Save(ctx context.Context, doc Document) error {
	doc.SetTenant(c.tenantPath)
	if err := c.db.WithContext(ctx).Table(c.name).Save(doc).Error; err != nil {
		return fmt.Errorf("failed to save in %s: %w", c.Path(), err)
	}
	return nil
}

// Update merges fields into the document. model selects the schema, so
// soft-deleted documents are not touched and updated_at is maintained.
func (c *Collection) Update(ctx context.Context, model Document, id string, fields map[string]interface{}) error {
	result := c.scoped(ctx).Model(model).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to update %s/%s: %w", c.Path(), id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document; models with gorm.DeletedAt are soft-deleted.
func (c *Collection) Delete(ctx context.Context, model Document, id string) error {
	result := c.scoped(ctx).Where("id = ?", id).Delete(model)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", c.Path(), id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Query loads every matching document into dest (a pointer to a slice).
func (c *Collection) Query(ctx context.Context, dest interface{}, scopes ...Scope) error {
	if err := c.scoped(ctx).Scopes(scopes...).Find(dest).Error; err != nil {
		return fmt.Errorf("failed to query %s: %w", c.Path(), err)
	}
	return nil
}

// Count returns the number of matching documents. model selects the schema.
func (c *Collection) Count(ctx context.Context, model Document, scopes ...Scope) (int64, error) {
	var n int64
	if err := c.scoped(ctx).Model(model).Scopes(scopes...).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.Path(), err)
	}
	return n, nil
}

func Where(query string, args ...interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

func OrderBy(column string, desc bool) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	}
}

func Limit(n int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}
}

// StartAfter resumes a query ordered by (column, id) after the given
// cursor. desc must match the ordering direction.
func StartAfter(column string, desc bool, value interface{}, id string) Scope {
	op := ">"
	if desc {
		op = "<"
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			fmt.Sprintf("(%s %s ? OR (%s = ? AND id %s ?))", column, op, column, op),
			value, value, id,
		)
	}
}

// ForUpdate row-locks the selected documents until the transaction ends.
func ForUpdate() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
}
