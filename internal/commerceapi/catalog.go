package commerceapi

import (
	"strings"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. A product without colors accepts only the
// default variant.
type Product struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Image  string
	Colors []types.ColorVariant
}

func (p Product) meta() types.ItemMeta {
	return types.ItemMeta{Name: p.Name, UnitPrice: p.Price, Image: p.Image}
}

// variant resolves color against the product's variants. A nil color is the
// default variant and always valid.
func (p Product) variant(color *types.ColorVariant) (*types.ColorVariant, bool) {
	if color == nil || strings.TrimSpace(color.Name) == "" {
		return nil, true
	}
	for _, candidate := range p.Colors {
		if strings.EqualFold(candidate.Name, strings.TrimSpace(color.Name)) {
			resolved := candidate
			return &resolved, true
		}
	}
	return nil, false
}

// Catalog indexes products by id.
type Catalog map[string]Product

// NewCatalog builds a catalog from products.
func NewCatalog(products ...Product) Catalog {
	catalog := make(Catalog, len(products))
	for _, product := range products {
		catalog[product.ID] = product
	}
	return catalog
}

// DefaultCatalog is the seed used by the development server.
func DefaultCatalog() Catalog {
	return NewCatalog(
		Product{
			ID:    "P1",
			Name:  "Linen shirt",
			Price: decimal.RequireFromString("49.50"),
			Image: "img/p1.jpg",
			Colors: []types.ColorVariant{
				{Name: "Red", Code: "#c0392b"},
				{Name: "Blue", Code: "#2e86c1"},
			},
		},
		Product{
			ID:    "P2",
			Name:  "Canvas tote",
			Price: decimal.RequireFromString("19.99"),
			Image: "img/p2.jpg",
		},
		Product{
			ID:    "P3",
			Name:  "Ceramic mug",
			Price: decimal.RequireFromString("12.00"),
			Image: "img/p3.jpg",
			Colors: []types.ColorVariant{
				{Name: "White", Code: "#ffffff"},
			},
		},
		Product{
			ID:    "P4",
			Name:  "Wool scarf",
			Price: decimal.RequireFromString("35.25"),
			Image: "img/p4.jpg",
		},
	)
}
