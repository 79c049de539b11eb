package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Admin is a back-office account. Name is the display name shown in the
// admin UI, not a login identifier.
type Admin struct {
	ID           int64
	Username     string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
}

// AdminRepository defines persistence operations for admin accounts.
type AdminRepository interface {
	FindByUsername(ctx context.Context, username string) (*Admin, error)
	Create(ctx context.Context, username, passwordHash, name string) (int64, error)
	HasAdmin(ctx context.Context) (bool, error)
}

// PgAdminRepository implements AdminRepository using pgxpool.
type PgAdminRepository struct {
	db *pgxpool.Pool
}

func NewPgAdminRepository(db *pgxpool.Pool) *PgAdminRepository {
	return &PgAdminRepository{db: db}
}

func (r *PgAdminRepository) FindByUsername(ctx context.Context, username string) (*Admin, error) {
	const q = `SELECT id, username, password_hash, name, created_at FROM admins WHERE username=$1`
	var a Admin
	if err := r.db.QueryRow(ctx, q, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Name, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PgAdminRepository) Create(ctx context.Context, username, passwordHash, name string) (int64, error) {
	const q = `INSERT INTO admins (username, password_hash, name) VALUES ($1,$2,$3) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, username, passwordHash, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgAdminRepository) HasAdmin(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM admins LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
