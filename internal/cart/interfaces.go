package cart

import (
	"context"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
)

// RemoteCart is the canonical cart surface the engine depends on.
type RemoteCart interface {
	FetchAll(ctx context.Context) (types.CartItems, error)
	AddItem(ctx context.Context, productID string, qty int, color *types.ColorVariant) (types.CartItems, error)
	UpdateQuantity(ctx context.Context, productID string, qty int, color *types.ColorVariant) (types.CartItems, error)
	RemoveItem(ctx context.Context, productID string, color *types.ColorVariant) error
	Clear(ctx context.Context) error
}
