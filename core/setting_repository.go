package core

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const globalDiscountKey = "global_discount"

// SettingRepository stores simple keyed settings. The only key today is
// the storefront-wide discount percentage.
type SettingRepository interface {
	GlobalDiscount(ctx context.Context) (float64, error)
	SetGlobalDiscount(ctx context.Context, percent float64) error
}

// PgSettingRepository implements SettingRepository using pgxpool.
type PgSettingRepository struct {
	db *pgxpool.Pool
}

func NewPgSettingRepository(db *pgxpool.Pool) *PgSettingRepository {
	return &PgSettingRepository{db: db}
}

// GlobalDiscount returns the stored percentage, or 0 when never set.
func (r *PgSettingRepository) GlobalDiscount(ctx context.Context) (float64, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM global_settings WHERE key=$1`, globalDiscountKey).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseFloat(value, 64)
}

func (r *PgSettingRepository) SetGlobalDiscount(ctx context.Context, percent float64) error {
	const q = `
INSERT INTO global_settings (key, value) VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	_, err := r.db.Exec(ctx, q, globalDiscountKey, strconv.FormatFloat(percent, 'f', -1, 64))
	return err
}
