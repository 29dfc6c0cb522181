package checkout

import (
	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/database"
)

// Line is a dish snapshot taken when it was added, plus a quantity >= 1.
type Line struct {
	DishID   string          `json:"dish_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt32(l.Quantity))
}

// Cart is an ordered list of lines. The zero value is an empty cart.
type Cart struct {
	lines []Line
}

// Add increments the line for d, or appends a new line with quantity 1.
// Unavailable dishes are ignored and Add returns false.
func (c *Cart) Add(d database.Dish) bool {
	if !d.IsAvailable {
		return false
	}
	for i := range c.lines {
		if c.lines[i].DishID == d.ID {
			c.lines[i].Quantity++
			return true
		}
	}
	c.lines = append(c.lines, Line{DishID: d.ID, Name: d.Name, Price: d.Price, Quantity: 1})
	return true
}

// UpdateQuantity sets the quantity of line i. It does nothing and returns
// false when qty < 1 or i is out of range.
func (c *Cart) UpdateQuantity(i int, qty int32) bool {
	if qty < 1 || i < 0 || i >= len(c.lines) {
		return false
	}
	c.lines[i].Quantity = qty
	return true
}

// Remove deletes line i.
func (c *Cart) Remove(i int) bool {
	if i < 0 || i >= len(c.lines) {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) Clear() { c.lines = nil }
