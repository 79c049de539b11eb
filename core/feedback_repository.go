package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Feedback is a public comment left on an event page.
type Feedback struct {
	ID         int64     `json:"id"`
	EventID    int64     `json:"eventId"`
	EventTitle string    `json:"eventTitle,omitempty"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FeedbackRepository defines persistence operations for event feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, f *Feedback) (int64, error)
	ListByEvent(ctx context.Context, eventID int64) ([]Feedback, error)
	Recent(ctx context.Context, limit int) ([]Feedback, error)
	Delete(ctx context.Context, id int64) error
}

// PgFeedbackRepository implements FeedbackRepository using pgxpool.
type PgFeedbackRepository struct {
	db *pgxpool.Pool
}

func NewPgFeedbackRepository(db *pgxpool.Pool) *PgFeedbackRepository {
	return &PgFeedbackRepository{db: db}
}

func (r *PgFeedbackRepository) Create(ctx context.Context, f *Feedback) (int64, error) {
	const q = `INSERT INTO feedbacks (event_id, author, message) VALUES ($1,$2,$3) RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, f.EventID, f.Author, f.Message).Scan(&f.ID, &f.CreatedAt); err != nil {
		return 0, err
	}
	return f.ID, nil
}

func (r *PgFeedbackRepository) ListByEvent(ctx context.Context, eventID int64) ([]Feedback, error) {
	const q = `
SELECT id, event_id, author, message, created_at
FROM feedbacks WHERE event_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Feedback{}
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.EventID, &f.Author, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Recent lists the latest feedback across all events with the event
// title attached, for the admin dashboard.
func (r *PgFeedbackRepository) Recent(ctx context.Context, limit int) ([]Feedback, error) {
	const q = `
SELECT f.id, f.event_id, e.title, f.author, f.message, f.created_at
FROM feedbacks f
JOIN events e ON e.id = f.event_id
ORDER BY f.created_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Feedback{}
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.EventID, &f.EventTitle, &f.Author, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PgFeedbackRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM feedbacks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
