package wishlist

import (
	"context"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
)

// RemoteWishlist is the canonical wishlist surface the engine depends on.
type RemoteWishlist interface {
	FetchAll(ctx context.Context) (types.WishlistItems, error)
	AddItem(ctx context.Context, productID string) error
	RemoveItem(ctx context.Context, productID string) error
}
