package cart

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/kv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WishlistEntry is a saved product. Presence is boolean: one entry per
// product, no quantity.
type WishlistEntry struct {
	ProductID   uuid.UUID       `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
}

func entryFromRow(row database.WishlistItem) WishlistEntry {
	return WishlistEntry{
		ProductID:   row.ProductID,
		Name:        row.Name,
		Price:       numericToDecimal(row.Price),
		Image:       row.Image.String,
		Category:    row.Category.String,
		Subcategory: row.Subcategory.String,
	}
}

// WishlistBackend mirrors the cart Backend split: local KV storage for
// guests, the database for signed-in users.
type WishlistBackend interface {
	Load(ctx context.Context) ([]WishlistEntry, error)
	Add(ctx context.Context, entry WishlistEntry) error
	Remove(ctx context.Context, productID uuid.UUID) error
	Clear(ctx context.Context) error
}

// --- Local (guest) backend ---

type LocalWishlistBackend struct {
	store kv.Store
	key   string
}

func NewLocalWishlistBackend(store kv.Store, clientKey string) *LocalWishlistBackend {
	return &LocalWishlistBackend{store: store, key: "wishlist:" + clientKey}
}

func (b *LocalWishlistBackend) Load(ctx context.Context) ([]WishlistEntry, error) {
	raw, ok := b.store.Get(b.key)
	if !ok {
		return nil, nil
	}
	var entries []WishlistEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

func (b *LocalWishlistBackend) save(entries []WishlistEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	b.store.Set(b.key, string(raw))
	return nil
}

func (b *LocalWishlistBackend) Add(ctx context.Context, entry WishlistEntry) error {
	entries, _ := b.Load(ctx)
	for _, e := range entries {
		if e.ProductID == entry.ProductID {
			return nil
		}
	}
	return b.save(append(entries, entry))
}

func (b *LocalWishlistBackend) Remove(ctx context.Context, productID uuid.UUID) error {
	entries, _ := b.Load(ctx)
	kept := entries[:0]
	for _, e := range entries {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}
	return b.save(kept)
}

func (b *LocalWishlistBackend) Clear(ctx context.Context) error {
	b.store.Delete(b.key)
	return nil
}

// --- Remote (authenticated) backend ---

// RemoteWishlistStore defines the database methods the remote wishlist
// backend needs. Satisfied by *database.Queries.
type RemoteWishlistStore interface {
	ListWishlistByUser(ctx context.Context, userID uuid.UUID) ([]database.WishlistItem, error)
	AddWishlistItem(ctx context.Context, arg database.AddWishlistItemParams) (database.WishlistItem, error)
	DeleteWishlistItem(ctx context.Context, arg database.DeleteWishlistItemParams) error
	ClearWishlistByUser(ctx context.Context, userID uuid.UUID) error
}

type RemoteWishlistBackend struct {
	store  RemoteWishlistStore
	userID uuid.UUID
}

func NewRemoteWishlistBackend(store RemoteWishlistStore, userID uuid.UUID) *RemoteWishlistBackend {
	return &RemoteWishlistBackend{store: store, userID: userID}
}

func (b *RemoteWishlistBackend) Load(ctx context.Context) ([]WishlistEntry, error) {
	rows, err := b.store.ListWishlistByUser(ctx, b.userID)
	if err != nil {
		return nil, err
	}
	entries := make([]WishlistEntry, len(rows))
	for i, row := range rows {
		entries[i] = entryFromRow(row)
	}
	return entries, nil
}

func (b *RemoteWishlistBackend) Add(ctx context.Context, entry WishlistEntry) error {
	_, err := b.store.AddWishlistItem(ctx, database.AddWishlistItemParams{
		UserID:      b.userID,
		ProductID:   entry.ProductID,
		Name:        entry.Name,
		Price:       decimalToNumeric(entry.Price),
		Image:       textOrNull(entry.Image),
		Category:    textOrNull(entry.Category),
		Subcategory: textOrNull(entry.Subcategory),
	})
	return err
}

func (b *RemoteWishlistBackend) Remove(ctx context.Context, productID uuid.UUID) error {
	return b.store.DeleteWishlistItem(ctx, database.DeleteWishlistItemParams{
		UserID:    b.userID,
		ProductID: productID,
	})
}

func (b *RemoteWishlistBackend) Clear(ctx context.Context) error {
	return b.store.ClearWishlistByUser(ctx, b.userID)
}

// --- Wishlist engine ---

// Wishlist follows the cart engine's backend-swap model. Merge on login
// is a set union: guest entries already saved server-side are no-ops.
type Wishlist struct {
	mu sync.Mutex

	local  *LocalWishlistBackend
	remote RemoteWishlistStore

	backend     WishlistBackend
	prevUser    uuid.UUID
	initialized bool

	entries []WishlistEntry
}

func NewWishlist(store kv.Store, remote RemoteWishlistStore, clientKey string) *Wishlist {
	return &Wishlist{
		local:  NewLocalWishlistBackend(store, clientKey),
		remote: remote,
	}
}

func (w *Wishlist) Initialize(ctx context.Context, userID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	signedIn := w.initialized && w.prevUser == uuid.Nil && userID != uuid.Nil

	if userID == uuid.Nil {
		w.backend = w.local
	} else {
		w.backend = NewRemoteWishlistBackend(w.remote, userID)
	}

	if signedIn {
		guestEntries, _ := w.local.Load(ctx)
		for _, e := range guestEntries {
			if err := w.backend.Add(ctx, e); err != nil {
				log.Printf("ERROR: merge wishlist entry %s: %v", e.ProductID, err)
			}
		}
		if err := w.local.Clear(ctx); err != nil {
			return err
		}
	}

	entries, err := w.backend.Load(ctx)
	if err != nil {
		return err
	}

	w.entries = entries
	w.prevUser = userID
	w.initialized = true
	return nil
}

// Toggle adds the product if absent, removes it if present, and reports
// whether the product is wishlisted afterwards.
func (w *Wishlist) Toggle(ctx context.Context, entry WishlistEntry) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.containsLocked(entry.ProductID) {
		if err := w.backend.Remove(ctx, entry.ProductID); err != nil {
			return true, err
		}
	} else {
		if err := w.backend.Add(ctx, entry); err != nil {
			return false, err
		}
	}

	entries, err := w.backend.Load(ctx)
	if err != nil {
		return false, err
	}
	w.entries = entries
	return w.containsLocked(entry.ProductID), nil
}

func (w *Wishlist) Remove(ctx context.Context, productID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.backend.Remove(ctx, productID); err != nil {
		return err
	}

	entries, err := w.backend.Load(ctx)
	if err != nil {
		return err
	}
	w.entries = entries
	return nil
}

func (w *Wishlist) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.backend.Clear(ctx); err != nil {
		return err
	}
	w.entries = nil
	return nil
}

func (w *Wishlist) Contains(productID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.containsLocked(productID)
}

func (w *Wishlist) containsLocked(productID uuid.UUID) bool {
	for _, e := range w.entries {
		if e.ProductID == productID {
			return true
		}
	}
	return false
}

func (w *Wishlist) Entries() []WishlistEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WishlistEntry(nil), w.entries...)
}
