package remote

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
)

const wishlistPath = "/wishlist"

// WishlistMutation is the body of wishlist add/remove calls.
type WishlistMutation struct {
	ProductID string `json:"productId" validate:"required"`
}

type wishlistResponse struct {
	Wishlist types.WishlistItems `json:"wishlist"`
}

// WishlistClient talks to the canonical wishlist.
type WishlistClient struct {
	client *Client
}

func NewWishlistClient(client *Client) *WishlistClient {
	return &WishlistClient{client: client}
}

// FetchAll returns the canonical wishlist.
func (w *WishlistClient) FetchAll(ctx context.Context) (types.WishlistItems, error) {
	var resp wishlistResponse
	if err := w.client.do(ctx, "wishlist.fetch", http.MethodGet, wishlistPath, nil, w.client.timeouts.WishlistFetch, &resp); err != nil {
		return nil, err
	}
	return resp.Wishlist.Normalize(), nil
}

// AddItem adds productID. A duplicate is reported as an ALREADY_EXISTS error.
func (w *WishlistClient) AddItem(ctx context.Context, productID string) error {
	body := &WishlistMutation{ProductID: productID}
	return w.client.do(ctx, "wishlist.add", http.MethodPost, wishlistPath, body, w.client.timeouts.WishlistMutation, nil)
}

// RemoveItem deletes productID.
func (w *WishlistClient) RemoveItem(ctx context.Context, productID string) error {
	body := &WishlistMutation{ProductID: productID}
	return w.client.do(ctx, "wishlist.remove", http.MethodDelete, wishlistPath, body, w.client.timeouts.WishlistMutation, nil)
}
