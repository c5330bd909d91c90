package cart

import (
	"context"
	"sync"

	"github.com/campusmerch/api/internal/enum"
	"github.com/campusmerch/api/internal/kv"
	"github.com/google/uuid"
)

// Session bundles the cart and wishlist engines for one client key.
type Session struct {
	Cart     *Engine
	Wishlist *Wishlist
}

// Manager owns one Session per client key and translates auth session
// events into engine re-initializations. A token refresh is a steady
// state, not an edge: the engines keep their backend and just reload.
type Manager struct {
	mu       sync.Mutex
	kv       kv.Store
	cartDB   RemoteStore
	wishDB   RemoteWishlistStore
	sessions map[string]*Session
}

func NewManager(store kv.Store, cartDB RemoteStore, wishDB RemoteWishlistStore) *Manager {
	return &Manager{
		kv:       store,
		cartDB:   cartDB,
		wishDB:   wishDB,
		sessions: make(map[string]*Session),
	}
}

// Session returns the engines for the client key, creating them on first
// sight of the key.
func (m *Manager) Session(clientKey string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[clientKey]
	if !ok {
		s = &Session{
			Cart:     NewEngine(m.kv, m.cartDB, clientKey),
			Wishlist: NewWishlist(m.kv, m.wishDB, clientKey),
		}
		m.sessions[clientKey] = s
	}
	return s
}

// HandleAuthEvent re-initializes the client's engines for the auth state
// the event implies. userID is uuid.Nil for guest states.
func (m *Manager) HandleAuthEvent(ctx context.Context, clientKey, event string, userID uuid.UUID) error {
	switch event {
	case enum.AuthEventSignedOut:
		userID = uuid.Nil
	case enum.AuthEventSignedIn, enum.AuthEventTokenRefreshed, enum.AuthEventInitial:
	default:
		userID = uuid.Nil
	}

	s := m.Session(clientKey)
	if err := s.Cart.Initialize(ctx, userID); err != nil {
		return err
	}
	return s.Wishlist.Initialize(ctx, userID)
}
