package types

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// WishlistItem is keyed by product id alone.
type WishlistItem struct {
	ProductID string          `json:"productId" validate:"required"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

// NewWishlistItem builds an entry from a product id and its display snapshot.
func NewWishlistItem(productID string, meta ItemMeta) WishlistItem {
	return WishlistItem{
		ProductID: strings.TrimSpace(productID),
		Name:      meta.Name,
		UnitPrice: meta.UnitPrice,
		Image:     meta.Image,
	}
}

// UnmarshalJSON normalizes every stored representation (bare id string, object
// with productId, object with id) into one value.
func (w *WishlistItem) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return err
		}
		*w = WishlistItem{ProductID: strings.TrimSpace(id)}
		return nil
	}

	var decoded struct {
		ProductID string          `json:"productId"`
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		UnitPrice decimal.Decimal `json:"price"`
		Image     string          `json:"image"`
	}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	productID := decoded.ProductID
	if productID == "" {
		productID = decoded.ID
	}
	*w = WishlistItem{
		ProductID: strings.TrimSpace(productID),
		Name:      decoded.Name,
		UnitPrice: decoded.UnitPrice,
		Image:     decoded.Image,
	}
	return nil
}

// WishlistItems is an ordered wishlist with unique product ids.
type WishlistItems []WishlistItem

// Clone returns a copy.
func (w WishlistItems) Clone() WishlistItems {
	if w == nil {
		return WishlistItems{}
	}
	out := make(WishlistItems, len(w))
	copy(out, w)
	return out
}

// Contains reports whether productID is present.
func (w WishlistItems) Contains(productID string) bool {
	return w.Find(productID) >= 0
}

// Find returns the index of productID, or -1.
func (w WishlistItems) Find(productID string) int {
	for idx := range w {
		if w[idx].ProductID == productID {
			return idx
		}
	}
	return -1
}

// Normalize drops blank ids and duplicate entries, keeping the first.
func (w WishlistItems) Normalize() WishlistItems {
	out := make(WishlistItems, 0, len(w))
	seen := make(map[string]struct{}, len(w))
	for _, item := range w {
		if item.ProductID == "" {
			continue
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// ProductIDs lists the ids in order.
func (w WishlistItems) ProductIDs() []string {
	out := make([]string, 0, len(w))
	for _, item := range w {
		out = append(out, item.ProductID)
	}
	return out
}

type essentialWishlistItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Essential keeps id and a truncated name/price; the image is dropped.
func (w WishlistItems) Essential() any {
	out := make([]essentialWishlistItem, 0, len(w))
	for _, item := range w {
		out = append(out, essentialWishlistItem{
			ProductID: item.ProductID,
			Name:      truncateRunes(item.Name, essentialNameRune),
			UnitPrice: item.UnitPrice.Round(2),
		})
	}
	return out
}

// IDsOnly keeps only the product ids.
func (w WishlistItems) IDsOnly() any {
	return w.ProductIDs()
}
