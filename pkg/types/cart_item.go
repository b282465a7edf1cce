package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	keySeparator      = "::"
	defaultColorName  = "default"
	essentialNameRune = 40
)

// ColorVariant is the optional color dimension of a cart line.
type ColorVariant struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code,omitempty"`
}

// ItemMeta carries the display snapshot captured when an item is added.
type ItemMeta struct {
	Name      string
	UnitPrice decimal.Decimal
	Image     string
}

// CartItem is one cart line keyed by product and color.
type CartItem struct {
	Key       string          `json:"key"`
	ProductID string          `json:"productId" validate:"required"`
	Color     *ColorVariant   `json:"color,omitempty"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"price"`
	Name      string          `json:"name,omitempty"`
	Image     string          `json:"image,omitempty"`
}

// CartKey derives the line key: productId + "::" + color name (or "default").
func CartKey(productID string, color *ColorVariant) string {
	name := defaultColorName
	if color != nil && strings.TrimSpace(color.Name) != "" {
		name = strings.TrimSpace(color.Name)
	}
	return strings.TrimSpace(productID) + keySeparator + name
}

// ParseCartKey splits a line key back into product id and color. The default
// color yields a nil variant.
func ParseCartKey(key string) (string, *ColorVariant) {
	idx := strings.LastIndex(key, keySeparator)
	if idx < 0 {
		return strings.TrimSpace(key), nil
	}
	productID := key[:idx]
	colorName := key[idx+len(keySeparator):]
	if colorName == "" || colorName == defaultColorName {
		return productID, nil
	}
	return productID, &ColorVariant{Name: colorName}
}

// NewCartItem builds a line from user input and its display snapshot.
func NewCartItem(productID string, qty int, color *ColorVariant, meta ItemMeta) CartItem {
	item := CartItem{
		ProductID: strings.TrimSpace(productID),
		Color:     color.Clone(),
		Quantity:  qty,
		UnitPrice: meta.UnitPrice,
		Name:      meta.Name,
		Image:     meta.Image,
	}
	item.Key = CartKey(item.ProductID, item.Color)
	return item
}

// Clone returns a deep copy of the variant.
func (c *ColorVariant) Clone() *ColorVariant {
	if c == nil {
		return nil
	}
	if strings.TrimSpace(c.Name) == "" {
		return nil
	}
	clone := *c
	return &clone
}

// Meta returns the display snapshot of the line.
func (i CartItem) Meta() ItemMeta {
	return ItemMeta{Name: i.Name, UnitPrice: i.UnitPrice, Image: i.Image}
}

// LineTotal is unit price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// UnmarshalJSON accepts a full object or a bare line key written by the
// ids-only quota fallback.
func (i *CartItem) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var key string
		if err := json.Unmarshal(trimmed, &key); err != nil {
			return err
		}
		productID, color := ParseCartKey(key)
		*i = CartItem{ProductID: productID, Color: color, Quantity: 1}
		i.Key = CartKey(productID, color)
		return nil
	}

	type alias CartItem
	var decoded alias
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*i = CartItem(decoded)
	i.ProductID = strings.TrimSpace(i.ProductID)
	i.Color = i.Color.Clone()
	i.Key = CartKey(i.ProductID, i.Color)
	return nil
}

// CartItems is an ordered cart with unique keys.
type CartItems []CartItem

// Clone returns a deep copy.
func (c CartItems) Clone() CartItems {
	if c == nil {
		return CartItems{}
	}
	out := make(CartItems, len(c))
	for idx, item := range c {
		item.Color = item.Color.Clone()
		out[idx] = item
	}
	return out
}

// Find returns the index of key, or -1.
func (c CartItems) Find(key string) int {
	for idx := range c {
		if c[idx].Key == key {
			return idx
		}
	}
	return -1
}

// Normalize drops entries without a product or with quantity < 1 and folds
// duplicate keys together, keeping first-seen order.
func (c CartItems) Normalize() CartItems {
	out := make(CartItems, 0, len(c))
	positions := make(map[string]int, len(c))
	for _, item := range c {
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		item.Color = item.Color.Clone()
		item.Key = CartKey(item.ProductID, item.Color)
		if pos, ok := positions[item.Key]; ok {
			out[pos].Quantity += item.Quantity
			continue
		}
		positions[item.Key] = len(out)
		out = append(out, item)
	}
	return out
}

// AggregateByKey sums quantities of duplicate keys; used before a merge.
func AggregateByKey(items CartItems) CartItems {
	return items.Normalize()
}

// Total sums all line totals.
func (c CartItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count sums all quantities.
func (c CartItems) Count() int {
	count := 0
	for _, item := range c {
		count += item.Quantity
	}
	return count
}

type essentialCartItem struct {
	ProductID string          `json:"productId"`
	Color     *ColorVariant   `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Name      string          `json:"name,omitempty"`
}

// Essential keeps id, quantity, color and a truncated name/price; the image is dropped.
func (c CartItems) Essential() any {
	out := make([]essentialCartItem, 0, len(c))
	for _, item := range c {
		out = append(out, essentialCartItem{
			ProductID: item.ProductID,
			Color:     item.Color,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Round(2),
			Name:      truncateRunes(item.Name, essentialNameRune),
		})
	}
	return out
}

// IDsOnly keeps only the line keys.
func (c CartItems) IDsOnly() any {
	out := make([]string, 0, len(c))
	for _, item := range c {
		out = append(out, item.Key)
	}
	return out
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
