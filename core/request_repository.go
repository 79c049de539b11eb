package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OfferingRequest is a visitor lead on a specific offering.
type OfferingRequest struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Contact       string    `json:"contact"`
	Message       string    `json:"message"`
	OfferingID    int64     `json:"offeringId"`
	OfferingTitle string    `json:"offeringTitle"`
	RequestDate   time.Time `json:"requestDate"`
	Viewed        bool      `json:"viewed"`
}

// EventRequest is a visitor lead tied to an event, or a general
// inquiry when EventID is zero. RequestType distinguishes the two
// ("event" / "general").
type EventRequest struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Message     string    `json:"message"`
	EventID     *int64    `json:"eventId"`
	EventTitle  string    `json:"eventTitle"`
	RequestType string    `json:"requestType"`
	RequestDate time.Time `json:"requestDate"`
	Viewed      bool      `json:"viewed"`
}

// OfferingRequestRepository defines persistence for offering leads.
type OfferingRequestRepository interface {
	Create(ctx context.Context, req *OfferingRequest) (int64, error)
	List(ctx context.Context) ([]OfferingRequest, error)
	MarkViewed(ctx context.Context, id int64) error
	UnviewedCount(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// EventRequestRepository defines persistence for event leads.
type EventRequestRepository interface {
	Create(ctx context.Context, req *EventRequest) (int64, error)
	List(ctx context.Context) ([]EventRequest, error)
	MarkViewed(ctx context.Context, id int64) error
	UnviewedCount(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// PgOfferingRequestRepository implements OfferingRequestRepository
// using pgxpool.
type PgOfferingRequestRepository struct {
	db *pgxpool.Pool
}

func NewPgOfferingRequestRepository(db *pgxpool.Pool) *PgOfferingRequestRepository {
	return &PgOfferingRequestRepository{db: db}
}

func (r *PgOfferingRequestRepository) Create(ctx context.Context, req *OfferingRequest) (int64, error) {
	const q = `
INSERT INTO offering_requests (name, contact, message, offering_id, offering_title)
VALUES ($1,$2,$3,$4,$5) RETURNING id, request_date`
	if err := r.db.QueryRow(ctx, q, req.Name, req.Contact, req.Message, req.OfferingID, req.OfferingTitle).
		Scan(&req.ID, &req.RequestDate); err != nil {
		return 0, err
	}
	return req.ID, nil
}

func (r *PgOfferingRequestRepository) List(ctx context.Context) ([]OfferingRequest, error) {
	const q = `
SELECT id, name, contact, message, offering_id, offering_title, request_date, viewed
FROM offering_requests ORDER BY request_date DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []OfferingRequest{}
	for rows.Next() {
		var v OfferingRequest
		if err := rows.Scan(&v.ID, &v.Name, &v.Contact, &v.Message, &v.OfferingID,
			&v.OfferingTitle, &v.RequestDate, &v.Viewed); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PgOfferingRequestRepository) MarkViewed(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE offering_requests SET viewed=true WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgOfferingRequestRepository) UnviewedCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM offering_requests WHERE NOT viewed`).Scan(&n)
	return n, err
}

func (r *PgOfferingRequestRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM offering_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// PgEventRequestRepository implements EventRequestRepository using
// pgxpool.
type PgEventRequestRepository struct {
	db *pgxpool.Pool
}

func NewPgEventRequestRepository(db *pgxpool.Pool) *PgEventRequestRepository {
	return &PgEventRequestRepository{db: db}
}

func (r *PgEventRequestRepository) Create(ctx context.Context, req *EventRequest) (int64, error) {
	const q = `
INSERT INTO event_requests (name, email, phone, message, event_id, event_title, request_type)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, request_date`
	if err := r.db.QueryRow(ctx, q, req.Name, req.Email, req.Phone, req.Message,
		req.EventID, req.EventTitle, req.RequestType).Scan(&req.ID, &req.RequestDate); err != nil {
		return 0, err
	}
	return req.ID, nil
}

func (r *PgEventRequestRepository) List(ctx context.Context) ([]EventRequest, error) {
	const q = `
SELECT id, name, email, phone, message, event_id, event_title, request_type, request_date, viewed
FROM event_requests ORDER BY request_date DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []EventRequest{}
	for rows.Next() {
		var (
			v          EventRequest
			eventTitle *string
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.Message, &v.EventID,
			&eventTitle, &v.RequestType, &v.RequestDate, &v.Viewed); err != nil {
			return nil, err
		}
		if eventTitle != nil {
			v.EventTitle = *eventTitle
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PgEventRequestRepository) MarkViewed(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE event_requests SET viewed=true WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgEventRequestRepository) UnviewedCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM event_requests WHERE NOT viewed`).Scan(&n)
	return n, err
}

func (r *PgEventRequestRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM event_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
