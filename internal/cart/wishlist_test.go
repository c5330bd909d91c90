package cart

import (
	"context"
	"testing"
	"time"

	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/kv"
	"github.com/google/uuid"
)

type fakeWishlistDB struct {
	rows []database.WishlistItem
}

func (f *fakeWishlistDB) ListWishlistByUser(ctx context.Context, userID uuid.UUID) ([]database.WishlistItem, error) {
	var out []database.WishlistItem
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeWishlistDB) AddWishlistItem(ctx context.Context, arg database.AddWishlistItemParams) (database.WishlistItem, error) {
	for _, r := range f.rows {
		if r.UserID == arg.UserID && r.ProductID == arg.ProductID {
			return r, nil
		}
	}
	row := database.WishlistItem{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		ProductID: arg.ProductID,
		Name:      arg.Name,
		Price:     arg.Price,
		CreatedAt: time.Now(),
	}
	f.rows = append(f.rows, row)
	return row, nil
}

func (f *fakeWishlistDB) DeleteWishlistItem(ctx context.Context, arg database.DeleteWishlistItemParams) error {
	for i, r := range f.rows {
		if r.UserID == arg.UserID && r.ProductID == arg.ProductID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeWishlistDB) ClearWishlistByUser(ctx context.Context, userID uuid.UUID) error {
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func TestWishlist_ToggleFlipsPresence(t *testing.T) {
	w := NewWishlist(kv.NewMemoryStore(), &fakeWishlistDB{}, "client-1")
	ctx := context.Background()
	if err := w.Initialize(ctx, uuid.Nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	entry := WishlistEntry{ProductID: uuid.New(), Name: "Cap"}

	on, err := w.Toggle(ctx, entry)
	if err != nil || !on {
		t.Fatalf("first toggle: got (%v, %v), want (true, nil)", on, err)
	}
	if !w.Contains(entry.ProductID) {
		t.Error("expected product wishlisted after first toggle")
	}

	on, err = w.Toggle(ctx, entry)
	if err != nil || on {
		t.Fatalf("second toggle: got (%v, %v), want (false, nil)", on, err)
	}
	if w.Contains(entry.ProductID) {
		t.Error("expected product removed after second toggle")
	}
}

// Merge on login is a set union: entries already saved server-side do
// not duplicate.
func TestWishlist_MergeOnSignInIsUnion(t *testing.T) {
	store := kv.NewMemoryStore()
	db := &fakeWishlistDB{}
	userID := uuid.New()
	shared := uuid.New()
	ctx := context.Background()

	db.AddWishlistItem(ctx, database.AddWishlistItemParams{UserID: userID, ProductID: shared, Name: "Cap"})

	w := NewWishlist(store, db, "client-1")
	w.Initialize(ctx, uuid.Nil)

	guestOnly := uuid.New()
	w.Toggle(ctx, WishlistEntry{ProductID: shared, Name: "Cap"})
	w.Toggle(ctx, WishlistEntry{ProductID: guestOnly, Name: "Scarf"})

	if err := w.Initialize(ctx, userID); err != nil {
		t.Fatalf("initialize signed in: %v", err)
	}

	if got := len(w.Entries()); got != 2 {
		t.Fatalf("entries after merge: got %d, want 2", got)
	}

	// Local copy discarded.
	w.Initialize(ctx, uuid.Nil)
	if got := len(w.Entries()); got != 0 {
		t.Errorf("guest entries after merge: got %d, want 0", got)
	}
}
