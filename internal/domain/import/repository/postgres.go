package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it
// in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository implements ImportRepository on Postgres.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a repository backed by the given pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListCategories returns the user's categories ordered by sort order then
// creation time, giving the matcher a stable iteration order for tie-breaks.
func (r *PostgresRepository) ListCategories(ctx context.Context, userID uuid.UUID) ([]Category, error) {
	query := `
		SELECT id, user_id, name, type, color, sort_order
		FROM categories
		WHERE user_id = $1
		ORDER BY sort_order ASC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Color, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// ListTags returns the user's tags in creation order.
func (r *PostgresRepository) ListTags(ctx context.Context, userID uuid.UUID) ([]Tag, error) {
	query := `
		SELECT id, user_id, name
		FROM tags
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}

	return tags, rows.Err()
}

// CreateCategory inserts a category created by a confirmed import.
func (r *PostgresRepository) CreateCategory(ctx context.Context, category *Category) error {
	query := `
		INSERT INTO categories (user_id, name, type, color, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		category.UserID,
		category.Name,
		category.Type,
		category.Color,
		category.SortOrder,
	).Scan(&category.ID)
	if err != nil {
		return fmt.Errorf("create category %q: %w", category.Name, err)
	}
	return nil
}

// CreateTag inserts a tag created by a confirmed import.
func (r *PostgresRepository) CreateTag(ctx context.Context, tag *Tag) error {
	query := `
		INSERT INTO tags (user_id, name)
		VALUES ($1, $2)
		RETURNING id
	`

	if err := r.db.QueryRow(ctx, query, tag.UserID, tag.Name).Scan(&tag.ID); err != nil {
		return fmt.Errorf("create tag %q: %w", tag.Name, err)
	}
	return nil
}

// InsertTransactions writes all records inside one database transaction so a
// failed commit leaves nothing behind.
func (r *PostgresRepository) InsertTransactions(ctx context.Context, records []TransactionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertTx := `
		INSERT INTO transactions (user_id, account_id, description, amount_cents, date, category_id, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	insertTag := `
		INSERT INTO transaction_tags (transaction_id, tag_id)
		VALUES ($1, $2)
	`

	inserted := 0
	for _, record := range records {
		var txID uuid.UUID
		err := tx.QueryRow(ctx, insertTx,
			record.UserID,
			record.AccountID,
			record.Description,
			record.AmountCents,
			record.Date,
			record.CategoryID,
			record.Reference,
		).Scan(&txID)
		if err != nil {
			return 0, fmt.Errorf("insert transaction %q: %w", record.Reference, err)
		}

		for _, tagID := range record.TagIDs {
			if _, err := tx.Exec(ctx, insertTag, txID, tagID); err != nil {
				return 0, fmt.Errorf("attach tag to %q: %w", record.Reference, err)
			}
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}
