package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DescriptionSection is one titled block of long-form event description.
type DescriptionSection struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// EventImage is one gallery image of an event. Order controls the
// display position; the first image doubles as the card thumbnail.
type EventImage struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Order int    `json:"order"`
}

// Event is a past or upcoming showcase event.
type Event struct {
	ID             int64                `json:"id"`
	Title          string               `json:"title"`
	Category       *Category            `json:"category"`
	Date           string               `json:"date"` // yyyy-mm-dd
	Description    string               `json:"description"`
	Highlights     string               `json:"highlights"`
	OrganizerNotes string               `json:"organizerNotes"`
	Location       string               `json:"location"`
	Descriptions   []DescriptionSection `json:"descriptions"`
	Images         []EventImage         `json:"images"`
	Featured       bool                 `json:"featured"`
}

// EventRepository defines persistence operations for events and their
// image rows.
type EventRepository interface {
	List(ctx context.Context, sortField, sortOrder string) ([]Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	Get(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, e *Event) (int64, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id int64) error
	AddImage(ctx context.Context, eventID int64, url string, order int) (int64, error)
	DeleteImagesExcept(ctx context.Context, eventID int64, keepIDs []int64) error
	SetImageOrder(ctx context.Context, eventID, imageID int64, order int) error
}

// PgEventRepository implements EventRepository using pgxpool.
type PgEventRepository struct {
	db *pgxpool.Pool
}

func NewPgEventRepository(db *pgxpool.Pool) *PgEventRepository {
	return &PgEventRepository{db: db}
}

const eventColumns = `e.id, e.title, e.date::text, e.description, e.highlights, e.organizer_notes,
	e.location, e.descriptions, e.featured, c.id, c.name, c.emoji`

// eventSortColumns whitelists user-facing sort fields to real columns.
var eventSortColumns = map[string]string{
	"date":  "e.date",
	"title": "e.title",
	"id":    "e.id",
}

func (r *PgEventRepository) List(ctx context.Context, sortField, sortOrder string) ([]Event, error) {
	col, ok := eventSortColumns[sortField]
	if !ok {
		col = "e.date"
	}
	dir := "DESC"
	if sortOrder == "asc" {
		dir = "ASC"
	}
	q := fmt.Sprintf(`
SELECT %s FROM events e
LEFT JOIN categories c ON c.id = e.category_id
ORDER BY %s %s, e.id DESC`, eventColumns, col, dir)
	return r.queryEvents(ctx, q)
}

func (r *PgEventRepository) Recent(ctx context.Context, limit int) ([]Event, error) {
	q := fmt.Sprintf(`
SELECT %s FROM events e
LEFT JOIN categories c ON c.id = e.category_id
ORDER BY e.id DESC LIMIT $1`, eventColumns)
	return r.queryEvents(ctx, q, limit)
}

func (r *PgEventRepository) Get(ctx context.Context, id int64) (*Event, error) {
	q := fmt.Sprintf(`
SELECT %s FROM events e
LEFT JOIN categories c ON c.id = e.category_id
WHERE e.id = $1`, eventColumns)
	row := r.db.QueryRow(ctx, q, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadImages(ctx, []*Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *PgEventRepository) queryEvents(ctx context.Context, q string, args ...interface{}) ([]Event, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Event, len(events))
	for i := range events {
		refs[i] = &events[i]
	}
	if err := r.loadImages(ctx, refs); err != nil {
		return nil, err
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e             Event
		descJSON      []byte
		catID         *int64
		catName       *string
		catEmoji      *string
		highlights    *string
		organizerNote *string
		location      *string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Description, &highlights, &organizerNote,
		&location, &descJSON, &e.Featured, &catID, &catName, &catEmoji); err != nil {
		return nil, err
	}
	if highlights != nil {
		e.Highlights = *highlights
	}
	if organizerNote != nil {
		e.OrganizerNotes = *organizerNote
	}
	if location != nil {
		e.Location = *location
	}
	if catID != nil {
		e.Category = &Category{ID: *catID, Name: *catName, Emoji: *catEmoji}
	}
	e.Descriptions = []DescriptionSection{}
	if len(descJSON) > 0 {
		if err := json.Unmarshal(descJSON, &e.Descriptions); err != nil {
			return nil, fmt.Errorf("event %d descriptions: %w", e.ID, err)
		}
	}
	e.Images = []EventImage{}
	return &e, nil
}

// loadImages fills the Images slice for each event, ordered by the
// stored position.
func (r *PgEventRepository) loadImages(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	byID := make(map[int64]*Event, len(events))
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}
	rows, err := r.db.Query(ctx, `
SELECT id, event_id, url, image_order
FROM event_images WHERE event_id = ANY($1)
ORDER BY event_id, image_order`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			img     EventImage
			eventID int64
		)
		if err := rows.Scan(&img.ID, &eventID, &img.URL, &img.Order); err != nil {
			return err
		}
		if e, ok := byID[eventID]; ok {
			e.Images = append(e.Images, img)
		}
	}
	return rows.Err()
}

func (r *PgEventRepository) Create(ctx context.Context, e *Event) (int64, error) {
	descJSON, err := json.Marshal(e.Descriptions)
	if err != nil {
		return 0, err
	}
	var categoryID *int64
	if e.Category != nil {
		categoryID = &e.Category.ID
	}
	const q = `
INSERT INTO events (title, category_id, date, description, highlights, organizer_notes, location, descriptions, featured)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, e.Title, categoryID, e.Date, e.Description,
		e.Highlights, e.OrganizerNotes, e.Location, descJSON, e.Featured).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgEventRepository) Update(ctx context.Context, e *Event) error {
	descJSON, err := json.Marshal(e.Descriptions)
	if err != nil {
		return err
	}
	var categoryID *int64
	if e.Category != nil {
		categoryID = &e.Category.ID
	}
	const q = `
UPDATE events SET title=$1, category_id=$2, date=$3, description=$4, highlights=$5,
	organizer_notes=$6, location=$7, descriptions=$8, featured=$9
WHERE id=$10`
	tag, err := r.db.Exec(ctx, q, e.Title, categoryID, e.Date, e.Description,
		e.Highlights, e.OrganizerNotes, e.Location, descJSON, e.Featured, e.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgEventRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgEventRepository) AddImage(ctx context.Context, eventID int64, url string, order int) (int64, error) {
	const q = `INSERT INTO event_images (event_id, url, image_order) VALUES ($1,$2,$3) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, eventID, url, order).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteImagesExcept removes all image rows of an event except keepIDs.
// Used on update to reconcile the stored set with what the edit form
// kept.
func (r *PgEventRepository) DeleteImagesExcept(ctx context.Context, eventID int64, keepIDs []int64) error {
	if len(keepIDs) == 0 {
		_, err := r.db.Exec(ctx, `DELETE FROM event_images WHERE event_id=$1`, eventID)
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM event_images WHERE event_id=$1 AND NOT (id = ANY($2))`, eventID, keepIDs)
	return err
}

// SetImageOrder moves one image of the given event. The write is keyed
// by event as well as image id, so an id belonging to a different event
// is a no-op rather than a cross-event move.
func (r *PgEventRepository) SetImageOrder(ctx context.Context, eventID, imageID int64, order int) error {
	_, err := r.db.Exec(ctx, `UPDATE event_images SET image_order=$1 WHERE id=$2 AND event_id=$3`, order, imageID, eventID)
	return err
}
