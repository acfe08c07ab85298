// Package repository owns persistence for the import domain: the catalog
// snapshot (categories and tags) read at the start of a run, and the commit
// step that materializes confirmed imports.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/normalizer"
)

// Category is one catalog category row.
type Category struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Type      normalizer.TransactionType
	Color     string
	SortOrder int
}

// Tag is one catalog tag row.
type Tag struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
}

// TransactionRecord is a confirmed transaction ready for insertion. The
// amount is in minor units, signed by type (negative for expenses); user and
// account identifiers are supplied by the caller, never derived here.
type TransactionRecord struct {
	UserID      uuid.UUID
	AccountID   *uuid.UUID
	Description string
	AmountCents int64
	Date        time.Time
	CategoryID  *uuid.UUID
	TagIDs      []uuid.UUID
	Reference   string
}

// ImportRepository is the persistence boundary of the import pipeline. The
// pipeline itself performs no I/O besides the snapshot fetch and the final
// commit that goes through here.
type ImportRepository interface {
	// ListCategories returns the user's catalog categories in stable order.
	ListCategories(ctx context.Context, userID uuid.UUID) ([]Category, error)
	// ListTags returns the user's catalog tags in stable order.
	ListTags(ctx context.Context, userID uuid.UUID) ([]Tag, error)
	// CreateCategory inserts a category and fills in its generated ID.
	CreateCategory(ctx context.Context, category *Category) error
	// CreateTag inserts a tag and fills in its generated ID.
	CreateTag(ctx context.Context, tag *Tag) error
	// InsertTransactions stores the confirmed records in one transaction and
	// returns how many were written.
	InsertTransactions(ctx context.Context, records []TransactionRecord) (int, error)
}
