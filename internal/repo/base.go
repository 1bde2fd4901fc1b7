package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base holds the database handle shared by domain repositories. Embedding it
// keeps the context plumbing in one place.
type Base struct {
	db *gorm.DB
}

// NewBase wraps a gorm connection, which may be a transaction handle.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds the connection to the request context when one is present.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
