package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/campusmerch/api/internal/kv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors returned by the cart engine.
var (
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
)

// Engine presents one unified cart per client regardless of auth state.
// It swaps its backend only at the login/logout edge detected by
// Initialize, merges the guest cart into the server cart on login, and
// keeps the checkout selection overlay in client-scoped KV storage,
// keyed independently of login state.
//
// Failure semantics: a backend call that fails leaves the in-memory list
// unchanged; the caller observes no state change and may retry.
type Engine struct {
	mu sync.Mutex

	local  *LocalBackend
	remote RemoteStore
	kv     kv.Store

	selectionKey string

	backend     Backend
	prevUser    uuid.UUID // uuid.Nil = guest
	initialized bool

	items     []Item
	selection map[string]bool
}

func NewEngine(store kv.Store, remote RemoteStore, clientKey string) *Engine {
	return &Engine{
		local:        NewLocalBackend(store, clientKey),
		remote:       remote,
		kv:           store,
		selectionKey: "selection:" + clientKey,
		selection:    make(map[string]bool),
	}
}

// Initialize classifies the auth transition and reloads accordingly:
//
//   - guest → authenticated: merge the guest's local lines into the
//     server cart (quantities add on matching variants), discard the
//     local copy unconditionally, load the post-merge server list.
//   - authenticated → guest: drop the server-backed items and load
//     whatever the local store holds. The signed-out user's server cart
//     stays server-side for their next login.
//   - steady states: reload from the current backend.
//
// After loading, the persisted selection is intersected with the loaded
// item ids; see reconcileSelection for the reset rules.
func (e *Engine) Initialize(ctx context.Context, userID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	signedIn := e.initialized && e.prevUser == uuid.Nil && userID != uuid.Nil

	if userID == uuid.Nil {
		e.backend = e.local
	} else {
		e.backend = NewRemoteBackend(e.remote, userID)
	}

	if signedIn {
		if err := e.mergeLocal(ctx); err != nil {
			return err
		}
	}

	items, err := e.backend.Load(ctx)
	if err != nil {
		return err
	}

	e.items = items
	e.prevUser = userID
	e.initialized = true
	e.reconcileSelection()
	return nil
}

// mergeLocal upserts every guest line into the server cart, then deletes
// the local copy unconditionally, with no partial-failure rollback. A line
// that fails to upsert is logged and skipped; the server list loaded
// afterwards is the authority either way.
func (e *Engine) mergeLocal(ctx context.Context) error {
	guestItems, _ := e.local.Load(ctx)
	if len(guestItems) == 0 {
		return nil
	}

	for _, it := range guestItems {
		if _, err := e.backend.Upsert(ctx, it); err != nil {
			log.Printf("ERROR: merge cart line %s: %v", it.ID, err)
		}
	}

	return e.local.Clear(ctx)
}

func (e *Engine) AddItem(ctx context.Context, item Item) (Item, error) {
	if item.Quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stored, err := e.backend.Upsert(ctx, item)
	if err != nil {
		return Item{}, err
	}

	items, err := e.backend.Load(ctx)
	if err != nil {
		return Item{}, err
	}

	e.items = items
	e.selection[stored.ID] = true
	e.persistSelection()
	return stored, nil
}

func (e *Engine) RemoveItem(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(ctx, id)
}

func (e *Engine) removeLocked(ctx context.Context, id string) error {
	if err := e.backend.Remove(ctx, id); err != nil {
		return err
	}

	items, err := e.backend.Load(ctx)
	if err != nil {
		return err
	}

	e.items = items
	delete(e.selection, id)
	e.persistSelection()
	return nil
}

// UpdateQuantity sets the line's quantity; a quantity of zero or less
// removes the line entirely.
func (e *Engine) UpdateQuantity(ctx context.Context, id string, quantity int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if quantity <= 0 {
		return e.removeLocked(ctx, id)
	}

	if err := e.backend.SetQuantity(ctx, id, quantity); err != nil {
		return err
	}

	items, err := e.backend.Load(ctx)
	if err != nil {
		return err
	}

	e.items = items
	return nil
}

func (e *Engine) ClearCart(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.backend.Clear(ctx); err != nil {
		return err
	}

	e.items = nil
	e.selection = make(map[string]bool)
	e.persistSelection()
	return nil
}

// --- Selection overlay ---

func (e *Engine) ToggleSelection(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.selection[id] {
		delete(e.selection, id)
	} else {
		e.selection[id] = true
	}
	e.persistSelection()
}

func (e *Engine) SelectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, it := range e.items {
		e.selection[it.ID] = true
	}
	e.persistSelection()
}

func (e *Engine) DeselectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selection = make(map[string]bool)
	e.persistSelection()
}

// --- Derived views ---

func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Item(nil), e.items...)
}

func (e *Engine) SelectedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedIDsLocked()
}

func (e *Engine) selectedIDsLocked() []string {
	ids := make([]string, 0, len(e.selection))
	for id := range e.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) SelectedItems() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()

	var selected []Item
	for _, it := range e.items {
		if e.selection[it.ID] {
			selected = append(selected, it)
		}
	}
	return selected
}

// SelectedCount is the sum of quantities over the selected lines.
func (e *Engine) SelectedCount() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var n int32
	for _, it := range e.items {
		if e.selection[it.ID] {
			n += it.Quantity
		}
	}
	return n
}

// SelectedTotal is the sum of price x quantity over the selected lines.
func (e *Engine) SelectedTotal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := decimal.Zero
	for _, it := range e.items {
		if e.selection[it.ID] {
			total = total.Add(it.Price.Mul(decimal.NewFromInt32(it.Quantity)))
		}
	}
	return total
}

// --- Selection persistence ---

// reconcileSelection intersects the persisted selection with the freshly
// loaded item ids, dropping stale ids. A selection that was never stored
// or no longer matches any line resets to all items selected; an
// explicitly emptied selection stays empty.
func (e *Engine) reconcileSelection() {
	persisted, found := e.loadSelection()

	present := make(map[string]bool, len(e.items))
	for _, it := range e.items {
		present[it.ID] = true
	}

	next := make(map[string]bool)
	for id := range persisted {
		if present[id] {
			next[id] = true
		}
	}

	if len(next) == 0 && (!found || len(persisted) > 0) {
		for id := range present {
			next[id] = true
		}
	}

	e.selection = next
	e.persistSelection()
}

func (e *Engine) loadSelection() (map[string]bool, bool) {
	raw, ok := e.kv.Get(e.selectionKey)
	if !ok {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, true
}

func (e *Engine) persistSelection() {
	raw, err := json.Marshal(e.selectedIDsLocked())
	if err != nil {
		return
	}
	e.kv.Set(e.selectionKey, string(raw))
}
