package domain

import "time"

// Product represents a catalog product referenced by cart lines
type Product struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Barcode string `json:"barcode,omitempty"`
}

// CartLine is a persisted (product, quantity) pair belonging to a cart.
// A cart never holds a line with quantity <= 0; such lines are removed.
type CartLine struct {
	ID       string  `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Cart is the shopping cart aggregate. Lines keep insertion order.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId,omitempty"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// LineByID returns a pointer to the line with the given id, or nil.
func (c *Cart) LineByID(id string) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			return &c.Lines[i]
		}
	}
	return nil
}
