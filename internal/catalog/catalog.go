package catalog

import (
	"shopbot/internal/domain"
)

// Catalog is the read-only list of products the bot offers.
type Catalog struct {
	products []domain.Product
}

func New(products ...domain.Product) *Catalog {
	return &Catalog{products: products}
}

// Default is the storefront shipped with the bot. Prices are in minor units.
func Default() *Catalog {
	return New(
		domain.Product{ID: 1, Name: "Sticker pack", Price: 500, Currency: "usd"},
		domain.Product{ID: 2, Name: "T-shirt", Price: 2500, Currency: "usd"},
		domain.Product{ID: 3, Name: "Hoodie", Price: 5000, Currency: "usd"},
	)
}

func (c *Catalog) Products() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) Find(id int64) (domain.Product, bool) {
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}
