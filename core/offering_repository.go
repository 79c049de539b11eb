package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Discount types an offering can carry. Empty means no discount.
const (
	DiscountGlobal  = "global"
	DiscountSpecial = "special"
)

// Offering is a bookable decoration/service package.
type Offering struct {
	ID                      int64      `json:"id"`
	Title                   string     `json:"title"`
	DecorationImageURL      string     `json:"decorationImageUrl"`
	ApproximatePrice        float64    `json:"approximatePrice"`
	Description             string     `json:"description"`
	Inclusions              string     `json:"inclusions"`
	Categories              []Category `json:"categories"`
	MainCategory            *Category  `json:"mainCategory"`
	DiscountType            string     `json:"discountType"`
	SpecificDiscountedPrice *float64   `json:"specificDiscountedPrice"`
}

// OfferingSearch carries the filter/sort parameters of the public
// search endpoint. Zero values mean "no constraint".
type OfferingSearch struct {
	Query    string  // matched against title, description, inclusions
	MinPrice float64 // inclusive
	MaxPrice float64 // inclusive; 0 disables the upper bound
	Sort     string  // "price-asc", "price-desc", "title", "title-desc", "id-asc"; default newest first
	Category int64   // category id linked via the join table
}

// OfferingRepository defines persistence operations for offerings and
// their category links.
type OfferingRepository interface {
	List(ctx context.Context) ([]Offering, error)
	Get(ctx context.Context, id int64) (*Offering, error)
	Search(ctx context.Context, s OfferingSearch) ([]Offering, error)
	ByMainCategory(ctx context.Context, categoryID int64) ([]Offering, error)
	Create(ctx context.Context, o *Offering, categoryIDs []int64) (int64, error)
	Update(ctx context.Context, o *Offering, categoryIDs []int64) error
	Delete(ctx context.Context, id int64) error
	CategoriesWithCount(ctx context.Context) ([]CategoryWithCount, error)
}

// PgOfferingRepository implements OfferingRepository using pgxpool.
type PgOfferingRepository struct {
	db *pgxpool.Pool
}

func NewPgOfferingRepository(db *pgxpool.Pool) *PgOfferingRepository {
	return &PgOfferingRepository{db: db}
}

const offeringColumns = `o.id, o.title, o.decoration_image_url, o.approximate_price, o.description,
	o.inclusions, o.discount_type, o.specific_discounted_price, mc.id, mc.name, mc.emoji`

const offeringBaseQuery = `
SELECT ` + offeringColumns + `
FROM offerings o
LEFT JOIN categories mc ON mc.id = o.main_category_id`

func (r *PgOfferingRepository) List(ctx context.Context) ([]Offering, error) {
	return r.queryOfferings(ctx, offeringBaseQuery+` ORDER BY o.id DESC`)
}

func (r *PgOfferingRepository) Get(ctx context.Context, id int64) (*Offering, error) {
	row := r.db.QueryRow(ctx, offeringBaseQuery+` WHERE o.id = $1`, id)
	o, err := scanOffering(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadCategories(ctx, []*Offering{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PgOfferingRepository) Search(ctx context.Context, s OfferingSearch) ([]Offering, error) {
	q := offeringBaseQuery
	args := []interface{}{}
	where := ""
	and := func(cond string) {
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}

	if s.Query != "" {
		args = append(args, "%"+s.Query+"%")
		n := len(args)
		and(fmt.Sprintf("(o.title ILIKE $%d OR o.description ILIKE $%d OR o.inclusions ILIKE $%d)", n, n, n))
	}
	if s.MinPrice > 0 {
		args = append(args, s.MinPrice)
		and(fmt.Sprintf("o.approximate_price >= $%d", len(args)))
	}
	if s.MaxPrice > 0 {
		args = append(args, s.MaxPrice)
		and(fmt.Sprintf("o.approximate_price <= $%d", len(args)))
	}
	if s.Category > 0 {
		args = append(args, s.Category)
		and(fmt.Sprintf(`EXISTS (SELECT 1 FROM offering_categories oc
			WHERE oc.offering_id = o.id AND oc.category_id = $%d)`, len(args)))
	}

	order := " ORDER BY o.id DESC"
	switch s.Sort {
	case "price-asc":
		order = " ORDER BY o.approximate_price ASC, o.id DESC"
	case "price-desc":
		order = " ORDER BY o.approximate_price DESC, o.id DESC"
	case "title":
		order = " ORDER BY o.title ASC"
	case "title-desc":
		order = " ORDER BY o.title DESC"
	case "id-asc":
		order = " ORDER BY o.id ASC"
	}

	return r.queryOfferings(ctx, q+where+order, args...)
}

func (r *PgOfferingRepository) ByMainCategory(ctx context.Context, categoryID int64) ([]Offering, error) {
	return r.queryOfferings(ctx, offeringBaseQuery+` WHERE o.main_category_id = $1 ORDER BY o.id DESC`, categoryID)
}

func (r *PgOfferingRepository) queryOfferings(ctx context.Context, q string, args ...interface{}) ([]Offering, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offerings := []Offering{}
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		offerings = append(offerings, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Offering, len(offerings))
	for i := range offerings {
		refs[i] = &offerings[i]
	}
	if err := r.loadCategories(ctx, refs); err != nil {
		return nil, err
	}
	return offerings, nil
}

func scanOffering(row rowScanner) (*Offering, error) {
	var (
		o            Offering
		description  *string
		inclusions   *string
		discountType *string
		mcID         *int64
		mcName       *string
		mcEmoji      *string
	)
	if err := row.Scan(&o.ID, &o.Title, &o.DecorationImageURL, &o.ApproximatePrice, &description,
		&inclusions, &discountType, &o.SpecificDiscountedPrice, &mcID, &mcName, &mcEmoji); err != nil {
		return nil, err
	}
	if description != nil {
		o.Description = *description
	}
	if inclusions != nil {
		o.Inclusions = *inclusions
	}
	if discountType != nil {
		o.DiscountType = *discountType
	}
	if mcID != nil {
		o.MainCategory = &Category{ID: *mcID, Name: *mcName, Emoji: *mcEmoji}
	}
	o.Categories = []Category{}
	return &o, nil
}

func (r *PgOfferingRepository) loadCategories(ctx context.Context, offerings []*Offering) error {
	if len(offerings) == 0 {
		return nil
	}
	byID := make(map[int64]*Offering, len(offerings))
	ids := make([]int64, 0, len(offerings))
	for _, o := range offerings {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := r.db.Query(ctx, `
SELECT oc.offering_id, c.id, c.name, c.emoji
FROM offering_categories oc
JOIN categories c ON c.id = oc.category_id
WHERE oc.offering_id = ANY($1)
ORDER BY oc.offering_id, c.name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			offeringID int64
			c          Category
		)
		if err := rows.Scan(&offeringID, &c.ID, &c.Name, &c.Emoji); err != nil {
			return err
		}
		if o, ok := byID[offeringID]; ok {
			o.Categories = append(o.Categories, c)
		}
	}
	return rows.Err()
}

func (r *PgOfferingRepository) Create(ctx context.Context, o *Offering, categoryIDs []int64) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var mainCategoryID *int64
	if o.MainCategory != nil {
		mainCategoryID = &o.MainCategory.ID
	}
	const q = `
INSERT INTO offerings (title, decoration_image_url, approximate_price, description, inclusions,
	main_category_id, discount_type, specific_discounted_price)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`
	var id int64
	if err := tx.QueryRow(ctx, q, o.Title, o.DecorationImageURL, o.ApproximatePrice, o.Description,
		o.Inclusions, mainCategoryID, o.DiscountType, o.SpecificDiscountedPrice).Scan(&id); err != nil {
		return 0, err
	}
	for _, cid := range categoryIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO offering_categories (offering_id, category_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, id, cid); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgOfferingRepository) Update(ctx context.Context, o *Offering, categoryIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var mainCategoryID *int64
	if o.MainCategory != nil {
		mainCategoryID = &o.MainCategory.ID
	}
	const q = `
UPDATE offerings SET title=$1, decoration_image_url=$2, approximate_price=$3, description=$4,
	inclusions=$5, main_category_id=$6, discount_type=$7, specific_discounted_price=$8
WHERE id=$9`
	tag, err := tx.Exec(ctx, q, o.Title, o.DecorationImageURL, o.ApproximatePrice, o.Description,
		o.Inclusions, mainCategoryID, o.DiscountType, o.SpecificDiscountedPrice, o.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if _, err := tx.Exec(ctx, `DELETE FROM offering_categories WHERE offering_id=$1`, o.ID); err != nil {
		return err
	}
	for _, cid := range categoryIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO offering_categories (offering_id, category_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, o.ID, cid); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PgOfferingRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM offerings WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CategoriesWithCount lists every category with how many offerings link
// to it (via the join table or as main category).
func (r *PgOfferingRepository) CategoriesWithCount(ctx context.Context) ([]CategoryWithCount, error) {
	rows, err := r.db.Query(ctx, `
SELECT c.id, c.name, c.emoji,
	(SELECT COUNT(DISTINCT o.id) FROM offerings o
	 LEFT JOIN offering_categories oc ON oc.offering_id = o.id
	 WHERE oc.category_id = c.id OR o.main_category_id = c.id) AS offering_count
FROM categories c
ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CategoryWithCount{}
	for rows.Next() {
		var c CategoryWithCount
		if err := rows.Scan(&c.ID, &c.Name, &c.Emoji, &c.OfferingCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
