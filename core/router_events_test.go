package core

import (
	"context"
	"testing"
)

type imageOrderCall struct {
	eventID int64
	imageID int64
	order   int
}

// fakeEventRepo records the image reconciliation calls.
type fakeEventRepo struct {
	keptEventID int64
	keptIDs     []int64
	orders      []imageOrderCall
}

func (r *fakeEventRepo) List(ctx context.Context, sortField, sortOrder string) ([]Event, error) {
	return nil, nil
}

func (r *fakeEventRepo) Recent(ctx context.Context, limit int) ([]Event, error) { return nil, nil }

func (r *fakeEventRepo) Get(ctx context.Context, id int64) (*Event, error) { return nil, nil }

func (r *fakeEventRepo) Create(ctx context.Context, e *Event) (int64, error) { return 0, nil }

func (r *fakeEventRepo) Update(ctx context.Context, e *Event) error { return nil }

func (r *fakeEventRepo) Delete(ctx context.Context, id int64) error { return nil }

func (r *fakeEventRepo) AddImage(ctx context.Context, eventID int64, url string, order int) (int64, error) {
	return 0, nil
}

func (r *fakeEventRepo) DeleteImagesExcept(ctx context.Context, eventID int64, keepIDs []int64) error {
	r.keptEventID = eventID
	r.keptIDs = keepIDs
	return nil
}

func (r *fakeEventRepo) SetImageOrder(ctx context.Context, eventID, imageID int64, order int) error {
	r.orders = append(r.orders, imageOrderCall{eventID: eventID, imageID: imageID, order: order})
	return nil
}

func TestReconcileEventImages(t *testing.T) {
	repo := &fakeEventRepo{}
	images := []EventImage{
		{ID: 3, Order: 1},
		{ID: 9, Order: 0},
	}

	nextOrder, err := reconcileEventImages(context.Background(), repo, 7, images)
	if err != nil {
		t.Fatalf("reconcile error: %v", err)
	}
	if nextOrder != 2 {
		t.Fatalf("nextOrder = %d, want 2", nextOrder)
	}

	if repo.keptEventID != 7 || len(repo.keptIDs) != 2 || repo.keptIDs[0] != 3 || repo.keptIDs[1] != 9 {
		t.Fatalf("kept ids = %v for event %d", repo.keptIDs, repo.keptEventID)
	}
	if len(repo.orders) != 2 {
		t.Fatalf("order writes = %d, want 2", len(repo.orders))
	}
	// Every order write carries the event id, so an image id from a
	// different event never moves.
	for _, call := range repo.orders {
		if call.eventID != 7 {
			t.Fatalf("order write scoped to event %d, want 7", call.eventID)
		}
	}
	if repo.orders[0] != (imageOrderCall{eventID: 7, imageID: 3, order: 1}) {
		t.Fatalf("first order write = %+v", repo.orders[0])
	}
}

func TestReconcileEventImagesEmptySet(t *testing.T) {
	repo := &fakeEventRepo{}

	nextOrder, err := reconcileEventImages(context.Background(), repo, 7, nil)
	if err != nil {
		t.Fatalf("reconcile error: %v", err)
	}
	if nextOrder != 0 {
		t.Fatalf("nextOrder = %d, want 0", nextOrder)
	}
	if repo.keptEventID != 7 || len(repo.keptIDs) != 0 {
		t.Fatalf("kept ids = %v for event %d", repo.keptIDs, repo.keptEventID)
	}
	if len(repo.orders) != 0 {
		t.Fatalf("order writes = %d, want 0", len(repo.orders))
	}
}
