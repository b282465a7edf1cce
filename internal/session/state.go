// Package session holds the per-context engine state and the notification
// surface shared by the cart and wishlist engines and the coordinator.
package session

import (
	"sync"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"github.com/shopspring/decimal"
)

// Local store keys.
const (
	KeyGuestCart     = "guestCart"
	KeyGuestWishlist = "guestWishlist"
	KeyUserCart      = "userCart"
	KeyUserWishlist  = "userWishlist"
	KeySyncedUser    = "syncedUser"
)

// EngineState is the cart and wishlist of one session context. Every mutation
// bumps a per-collection generation so late remote responses can be told apart
// from responses that still reflect the latest local intent.
type EngineState struct {
	mu       sync.RWMutex
	context  enums.SessionContext
	cart     types.CartItems
	wishlist types.WishlistItems
	cartGen  uint64
	wishGen  uint64
}

func NewEngineState(context enums.SessionContext) *EngineState {
	return &EngineState{
		context:  context,
		cart:     types.CartItems{},
		wishlist: types.WishlistItems{},
	}
}

func (s *EngineState) Context() enums.SessionContext {
	return s.context
}

// CartKey is the local store key of this context's cart.
func (s *EngineState) CartKey() string {
	if s.context == enums.SessionContextAuthenticated {
		return KeyUserCart
	}
	return KeyGuestCart
}

// WishlistKey is the local store key of this context's wishlist.
func (s *EngineState) WishlistKey() string {
	if s.context == enums.SessionContextAuthenticated {
		return KeyUserWishlist
	}
	return KeyGuestWishlist
}

// Cart returns a copy of the cart.
func (s *EngineState) Cart() types.CartItems {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Wishlist returns a copy of the wishlist.
func (s *EngineState) Wishlist() types.WishlistItems {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wishlist.Clone()
}

// CartGeneration is the number of cart mutations applied so far.
func (s *EngineState) CartGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartGen
}

// WishlistGeneration is the number of wishlist mutations applied so far.
func (s *EngineState) WishlistGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wishGen
}

// UpsertCartItem sums item into an existing line with the same key or appends
// it. It returns the resulting line and the new generation.
func (s *EngineState) UpsertCartItem(item types.CartItem) (types.CartItem, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartGen++
	if idx := s.cart.Find(item.Key); idx >= 0 {
		s.cart[idx].Quantity += item.Quantity
		return s.cart[idx], s.cartGen
	}
	s.cart = append(s.cart, item)
	return item, s.cartGen
}

// AdjustCartQuantity adds delta to the line at key. A result below one removes
// the line. It reports the new quantity (zero when removed) and whether the key existed.
func (s *EngineState) AdjustCartQuantity(key string, delta int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.cart.Find(key)
	if idx < 0 {
		return 0, false
	}
	s.cartGen++
	next := s.cart[idx].Quantity + delta
	if next < 1 {
		s.cart = append(s.cart[:idx], s.cart[idx+1:]...)
		return 0, true
	}
	s.cart[idx].Quantity = next
	return next, true
}

// RemoveCartItem deletes the line at key and returns it.
func (s *EngineState) RemoveCartItem(key string) (types.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.cart.Find(key)
	if idx < 0 {
		return types.CartItem{}, false
	}
	s.cartGen++
	removed := s.cart[idx]
	s.cart = append(s.cart[:idx], s.cart[idx+1:]...)
	return removed, true
}

// ReplaceCart overwrites the cart unconditionally.
func (s *EngineState) ReplaceCart(items types.CartItems) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartGen++
	s.cart = items.Normalize()
}

// ReplaceCartIfCurrent overwrites the cart only when no mutation happened after
// generation gen was observed.
func (s *EngineState) ReplaceCartIfCurrent(items types.CartItems, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cartGen != gen {
		return false
	}
	s.cartGen++
	s.cart = items.Normalize()
	return true
}

// AddWishlistItem appends item unless its product is present.
func (s *EngineState) AddWishlistItem(item types.WishlistItem) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wishlist.Contains(item.ProductID) {
		return s.wishGen, false
	}
	s.wishGen++
	s.wishlist = append(s.wishlist, item)
	return s.wishGen, true
}

// RemoveWishlistItem deletes productID and reports whether it was present.
func (s *EngineState) RemoveWishlistItem(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.wishlist.Find(productID)
	if idx < 0 {
		return false
	}
	s.wishGen++
	s.wishlist = append(s.wishlist[:idx], s.wishlist[idx+1:]...)
	return true
}

// ReplaceWishlist overwrites the wishlist unconditionally.
func (s *EngineState) ReplaceWishlist(items types.WishlistItems) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wishGen++
	s.wishlist = items.Normalize()
}

// ReplaceWishlistIfCurrent overwrites the wishlist only when no mutation
// happened after generation gen was observed.
func (s *EngineState) ReplaceWishlistIfCurrent(items types.WishlistItems, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wishGen != gen {
		return false
	}
	s.wishGen++
	s.wishlist = items.Normalize()
	return true
}

// Reset empties both collections.
func (s *EngineState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartGen++
	s.wishGen++
	s.cart = types.CartItems{}
	s.wishlist = types.WishlistItems{}
}

// Snapshot is an immutable copy of an EngineState for rendering.
type Snapshot struct {
	Context  enums.SessionContext `json:"context"`
	Cart     types.CartItems      `json:"cart"`
	Wishlist types.WishlistItems  `json:"wishlist"`
}

func (s *EngineState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Context:  s.context,
		Cart:     s.cart.Clone(),
		Wishlist: s.wishlist.Clone(),
	}
}

// CartTotal sums unit price times quantity over the cart.
func (s Snapshot) CartTotal() decimal.Decimal {
	return s.Cart.Total()
}

// ItemCount sums the cart quantities.
func (s Snapshot) ItemCount() int {
	return s.Cart.Count()
}
