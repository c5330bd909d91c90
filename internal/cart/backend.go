package cart

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/kv"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Backend is the capability interface the engine swaps at login/logout
// edges: LocalBackend for guests, RemoteBackend for signed-in users.
type Backend interface {
	Load(ctx context.Context) ([]Item, error)
	// Upsert adds the line, or adds its quantity onto the existing line
	// with the same (productId, size, color), and returns the stored line.
	Upsert(ctx context.Context, item Item) (Item, error)
	SetQuantity(ctx context.Context, id string, quantity int32) error
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// --- Local (guest) backend ---

// LocalBackend persists the whole list as JSON in the client-scoped KV
// store. Line identity is the composite variant key.
type LocalBackend struct {
	store kv.Store
	key   string
}

func NewLocalBackend(store kv.Store, clientKey string) *LocalBackend {
	return &LocalBackend{store: store, key: "cart:" + clientKey}
}

func (b *LocalBackend) Load(ctx context.Context) ([]Item, error) {
	raw, ok := b.store.Get(b.key)
	if !ok {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		// Corrupt client storage reads as an empty cart rather than a
		// hard failure.
		return nil, nil
	}
	return items, nil
}

func (b *LocalBackend) save(items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	b.store.Set(b.key, string(raw))
	return nil
}

func (b *LocalBackend) Upsert(ctx context.Context, item Item) (Item, error) {
	items, _ := b.Load(ctx)

	item.ID = item.variantKey()
	for i, existing := range items {
		if existing.variantKey() == item.variantKey() {
			items[i].Quantity += item.Quantity
			if err := b.save(items); err != nil {
				return Item{}, err
			}
			return items[i], nil
		}
	}

	items = append(items, item)
	if err := b.save(items); err != nil {
		return Item{}, err
	}
	return item, nil
}

func (b *LocalBackend) SetQuantity(ctx context.Context, id string, quantity int32) error {
	items, _ := b.Load(ctx)
	for i := range items {
		if items[i].ID == id {
			items[i].Quantity = quantity
			return b.save(items)
		}
	}
	return ErrItemNotFound
}

func (b *LocalBackend) Remove(ctx context.Context, id string) error {
	items, _ := b.Load(ctx)
	kept := items[:0]
	found := false
	for _, it := range items {
		if it.ID == id {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return ErrItemNotFound
	}
	return b.save(kept)
}

func (b *LocalBackend) Clear(ctx context.Context) error {
	b.store.Delete(b.key)
	return nil
}

// --- Remote (authenticated) backend ---

// RemoteStore defines the database methods the remote backend needs.
// Satisfied by *database.Queries; narrow interface for testability.
type RemoteStore interface {
	ListCartItemsByUser(ctx context.Context, userID uuid.UUID) ([]database.CartItem, error)
	UpsertCartItem(ctx context.Context, arg database.UpsertCartItemParams) (database.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error)
	DeleteCartItem(ctx context.Context, arg database.DeleteCartItemParams) error
	ClearCartByUser(ctx context.Context, userID uuid.UUID) error
}

type RemoteBackend struct {
	store  RemoteStore
	userID uuid.UUID
}

func NewRemoteBackend(store RemoteStore, userID uuid.UUID) *RemoteBackend {
	return &RemoteBackend{store: store, userID: userID}
}

func (b *RemoteBackend) Load(ctx context.Context) ([]Item, error) {
	rows, err := b.store.ListCartItemsByUser(ctx, b.userID)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(rows))
	for i, row := range rows {
		items[i] = itemFromRow(row)
	}
	return items, nil
}

func (b *RemoteBackend) Upsert(ctx context.Context, item Item) (Item, error) {
	row, err := b.store.UpsertCartItem(ctx, database.UpsertCartItemParams{
		UserID:      b.userID,
		ProductID:   item.ProductID,
		Name:        item.Name,
		Price:       decimalToNumeric(item.Price),
		Image:       textOrNull(item.Image),
		Quantity:    item.Quantity,
		Size:        item.Size,
		Color:       item.Color,
		Category:    textOrNull(item.Category),
		Subcategory: textOrNull(item.Subcategory),
	})
	if err != nil {
		return Item{}, err
	}
	return itemFromRow(row), nil
}

func (b *RemoteBackend) SetQuantity(ctx context.Context, id string, quantity int32) error {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return ErrItemNotFound
	}
	_, err = b.store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
		ID:       itemID,
		UserID:   b.userID,
		Quantity: quantity,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotFound
	}
	return err
}

func (b *RemoteBackend) Remove(ctx context.Context, id string) error {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return ErrItemNotFound
	}
	err = b.store.DeleteCartItem(ctx, database.DeleteCartItemParams{
		ID:     itemID,
		UserID: b.userID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotFound
	}
	return err
}

func (b *RemoteBackend) Clear(ctx context.Context) error {
	return b.store.ClearCartByUser(ctx, b.userID)
}
