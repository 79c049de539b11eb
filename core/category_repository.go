package core

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Category groups events and offerings. Name is unique; Emoji is the
// short decoration shown next to it in the UI.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// CategoryWithCount is the category listing projection with the number
// of offerings attached to it.
type CategoryWithCount struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Emoji         string `json:"emoji"`
	OfferingCount int64  `json:"offeringCount"`
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	Create(ctx context.Context, name, emoji string) (*Category, error)
	// FindOrCreate returns the category with the given name, creating it
	// when missing. Event creation relies on this so a new category name
	// on the form never fails the upload.
	FindOrCreate(ctx context.Context, name, emoji string) (*Category, error)
}

// PgCategoryRepository implements CategoryRepository using pgxpool.
type PgCategoryRepository struct {
	db *pgxpool.Pool
}

func NewPgCategoryRepository(db *pgxpool.Pool) *PgCategoryRepository {
	return &PgCategoryRepository{db: db}
}

func (r *PgCategoryRepository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, emoji FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Emoji); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PgCategoryRepository) FindByName(ctx context.Context, name string) (*Category, error) {
	const q = `SELECT id, name, emoji FROM categories WHERE name=$1`
	var c Category
	if err := r.db.QueryRow(ctx, q, name).Scan(&c.ID, &c.Name, &c.Emoji); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgCategoryRepository) Create(ctx context.Context, name, emoji string) (*Category, error) {
	const q = `INSERT INTO categories (name, emoji) VALUES ($1,$2) RETURNING id`
	c := Category{Name: name, Emoji: emoji}
	if err := r.db.QueryRow(ctx, q, name, emoji).Scan(&c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgCategoryRepository) FindOrCreate(ctx context.Context, name, emoji string) (*Category, error) {
	// Upsert keyed on the unique name; a concurrent create wins and we
	// read its row back.
	const q = `
INSERT INTO categories (name, emoji) VALUES ($1,$2)
ON CONFLICT (name) DO UPDATE SET emoji = categories.emoji
RETURNING id, name, emoji`
	var c Category
	if err := r.db.QueryRow(ctx, q, name, emoji).Scan(&c.ID, &c.Name, &c.Emoji); err != nil {
		return nil, err
	}
	return &c, nil
}
