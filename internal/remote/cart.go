package remote

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
)

const cartPath = "/cart"

// CartMutation is the body of cart add/update calls.
type CartMutation struct {
	ProductID string              `json:"productId" validate:"required"`
	Quantity  int                 `json:"quantity" validate:"min=1"`
	Color     *types.ColorVariant `json:"color" validate:"omitempty"`
}

// CartRemoval is the body of a single line removal.
type CartRemoval struct {
	ProductID string              `json:"productId" validate:"required"`
	Color     *types.ColorVariant `json:"color,omitempty" validate:"omitempty"`
}

type cartResponse struct {
	Cart struct {
		Items types.CartItems `json:"items"`
	} `json:"cart"`
}

// CartClient talks to the canonical cart.
type CartClient struct {
	client *Client
}

func NewCartClient(client *Client) *CartClient {
	return &CartClient{client: client}
}

// FetchAll returns the canonical cart.
func (c *CartClient) FetchAll(ctx context.Context) (types.CartItems, error) {
	var resp cartResponse
	if err := c.client.do(ctx, "cart.fetch", http.MethodGet, cartPath, nil, c.client.timeouts.CartFetch, &resp); err != nil {
		return nil, err
	}
	return resp.Cart.Items.Normalize(), nil
}

// AddItem adds qty to the line identified by productID and color. The server
// sums into an existing line. The returned cart is the server's view after the add.
func (c *CartClient) AddItem(ctx context.Context, productID string, qty int, color *types.ColorVariant) (types.CartItems, error) {
	body := &CartMutation{ProductID: productID, Quantity: qty, Color: color.Clone()}
	var resp cartResponse
	if err := c.client.do(ctx, "cart.add", http.MethodPost, cartPath, body, c.client.timeouts.CartMutation, &resp); err != nil {
		return nil, err
	}
	return resp.Cart.Items.Normalize(), nil
}

// UpdateQuantity sets the absolute quantity of a line.
func (c *CartClient) UpdateQuantity(ctx context.Context, productID string, qty int, color *types.ColorVariant) (types.CartItems, error) {
	body := &CartMutation{ProductID: productID, Quantity: qty, Color: color.Clone()}
	var resp cartResponse
	if err := c.client.do(ctx, "cart.update", http.MethodPut, cartPath, body, c.client.timeouts.CartMutation, &resp); err != nil {
		return nil, err
	}
	return resp.Cart.Items.Normalize(), nil
}

// RemoveItem deletes a line. A nil color addresses the legacy, color-less line.
func (c *CartClient) RemoveItem(ctx context.Context, productID string, color *types.ColorVariant) error {
	body := &CartRemoval{ProductID: productID, Color: color.Clone()}
	return c.client.do(ctx, "cart.remove", http.MethodDelete, cartPath+"/item", body, c.client.timeouts.CartMutation, nil)
}

// Clear empties the canonical cart.
func (c *CartClient) Clear(ctx context.Context) error {
	return c.client.do(ctx, "cart.clear", http.MethodDelete, cartPath, nil, c.client.timeouts.CartMutation, nil)
}
