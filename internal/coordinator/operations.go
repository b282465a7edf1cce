package coordinator

import (
	"context"

	"github.com/angelmondragon/packfinderz-cartsync/internal/cart"
	"github.com/angelmondragon/packfinderz-cartsync/internal/wishlist"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
)

func (c *Coordinator) AddToCart(ctx context.Context, productID string, qty int, color *types.ColorVariant, meta types.ItemMeta) (cart.Outcome, error) {
	return c.cart.AddToCart(c.logg.WithOperation(ctx, "add_to_cart"), productID, qty, color, meta)
}

func (c *Coordinator) RemoveFromCart(ctx context.Context, key string) error {
	return c.cart.RemoveItem(c.logg.WithOperation(ctx, "remove_from_cart"), key)
}

func (c *Coordinator) UpdateQuantity(ctx context.Context, key string, delta int) error {
	return c.cart.UpdateQuantity(c.logg.WithOperation(ctx, "update_quantity"), key, delta)
}

func (c *Coordinator) ClearCart(ctx context.Context) error {
	return c.cart.Clear(c.logg.WithOperation(ctx, "clear_cart"))
}

func (c *Coordinator) AddToWishlist(ctx context.Context, productID string, meta types.ItemMeta) (wishlist.Outcome, error) {
	return c.wishlist.Add(c.logg.WithOperation(ctx, "add_to_wishlist"), productID, meta)
}

func (c *Coordinator) RemoveFromWishlist(ctx context.Context, productID string) (wishlist.Outcome, error) {
	return c.wishlist.Remove(c.logg.WithOperation(ctx, "remove_from_wishlist"), productID)
}

func (c *Coordinator) ToggleWishlist(ctx context.Context, productID string, meta types.ItemMeta) (wishlist.Outcome, error) {
	return c.wishlist.Toggle(c.logg.WithOperation(ctx, "toggle_wishlist"), productID, meta)
}

// InWishlist reports whether productID is on the active wishlist.
func (c *Coordinator) InWishlist(productID string) bool {
	return c.wishlist.Contains(productID)
}

// FlushQuantities sends debounced quantity updates now.
func (c *Coordinator) FlushQuantities(ctx context.Context) {
	c.cart.Flush(ctx)
}
