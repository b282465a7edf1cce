package commerceapi

import (
	"sync"

	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"github.com/google/uuid"
)

// alreadyInWishlist is the domain error message clients match on.
const alreadyInWishlist = "Product already in wishlist"

// line is a stored cart line. The line id is server-side only.
type line struct {
	LineID string `json:"lineId"`
	types.CartItem
}

type account struct {
	cart     []line
	wishlist types.WishlistItems
}

// accounts holds carts and wishlists per account subject.
type accounts struct {
	mu      sync.Mutex
	catalog Catalog
	byID    map[string]*account
}

func newAccounts(catalog Catalog) *accounts {
	return &accounts{catalog: catalog, byID: make(map[string]*account)}
}

func (a *accounts) get(id string) *account {
	acct, ok := a.byID[id]
	if !ok {
		acct = &account{wishlist: types.WishlistItems{}}
		a.byID[id] = acct
	}
	return acct
}

func (a *accounts) resolve(productID string, color *types.ColorVariant) (Product, *types.ColorVariant, error) {
	product, ok := a.catalog[productID]
	if !ok {
		return Product{}, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	variant, ok := product.variant(color)
	if !ok {
		return Product{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid color variant")
	}
	return product, variant, nil
}

func (a *accounts) cart(id string) []line {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]line(nil), a.get(id).cart...)
}

// addToCart sums qty into the matching line or appends a new one.
func (a *accounts) addToCart(id, productID string, qty int, color *types.ColorVariant) ([]line, error) {
	product, variant, err := a.resolve(productID, color)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	acct := a.get(id)
	key := types.CartKey(productID, variant)
	for idx := range acct.cart {
		if acct.cart[idx].Key == key {
			acct.cart[idx].Quantity += qty
			return append([]line(nil), acct.cart...), nil
		}
	}
	acct.cart = append(acct.cart, line{
		LineID:   uuid.NewString(),
		CartItem: types.NewCartItem(productID, qty, variant, product.meta()),
	})
	return append([]line(nil), acct.cart...), nil
}

// setQuantity overwrites the quantity of an existing line.
func (a *accounts) setQuantity(id, productID string, qty int, color *types.ColorVariant) ([]line, error) {
	_, variant, err := a.resolve(productID, color)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	acct := a.get(id)
	key := types.CartKey(productID, variant)
	for idx := range acct.cart {
		if acct.cart[idx].Key == key {
			acct.cart[idx].Quantity = qty
			return append([]line(nil), acct.cart...), nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
}

// removeFromCart deletes the line. A colorless request removes every line of
// the product when no default line exists, which covers lines created before
// variants were tracked.
func (a *accounts) removeFromCart(id, productID string, color *types.ColorVariant) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct := a.get(id)
	key := types.CartKey(productID, color)
	match := func(item line) bool { return item.Key == key }
	if color == nil && !hasKey(acct.cart, key) {
		match = func(item line) bool { return item.ProductID == productID }
	}
	kept := make([]line, 0, len(acct.cart))
	for _, item := range acct.cart {
		if !match(item) {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(acct.cart) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	acct.cart = kept
	return nil
}

func hasKey(lines []line, key string) bool {
	for _, item := range lines {
		if item.Key == key {
			return true
		}
	}
	return false
}

func (a *accounts) clearCart(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.get(id).cart = nil
}

func (a *accounts) wishlist(id string) types.WishlistItems {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.get(id).wishlist.Clone()
}

func (a *accounts) addToWishlist(id, productID string) error {
	product, _, err := a.resolve(productID, nil)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	acct := a.get(id)
	if acct.wishlist.Contains(productID) {
		return pkgerrors.New(pkgerrors.CodeAlreadyExists, alreadyInWishlist)
	}
	acct.wishlist = append(acct.wishlist, types.NewWishlistItem(productID, product.meta()))
	return nil
}

func (a *accounts) removeFromWishlist(id, productID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct := a.get(id)
	if idx := acct.wishlist.Find(productID); idx >= 0 {
		acct.wishlist = append(acct.wishlist[:idx], acct.wishlist[idx+1:]...)
	}
}
