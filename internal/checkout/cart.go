package checkout

import (
	"sync"

	"github.com/angelmondragon/shelfpos/internal/products"
	"github.com/angelmondragon/shelfpos/pkg/types"
)

// CartItem is one product line at the till. Subtotal is always
// Quantity x Product.Price.
type CartItem struct {
	Product  products.Product `json:"product"`
	Quantity int              `json:"quantity"`
	Subtotal types.Money      `json:"subtotal"`
}

// CartView is a copy of the cart for callers.
type CartView struct {
	Items       []CartItem  `json:"items"`
	TotalAmount types.Money `json:"totalAmount"`
	Count       int         `json:"count"`
}

// Cart keeps lines in the order they were first scanned. Safe for
// concurrent use.
type Cart struct {
	mu    sync.Mutex
	items []CartItem
}

func NewCart() *Cart {
	return &Cart{}
}

// Add puts qty of product in the cart, merging with an existing line.
// qty < 1 counts as 1.
func (c *Cart) Add(product products.Product, qty int) {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(product.ID); i >= 0 {
		c.items[i].Quantity += qty
		c.items[i].Product = product
		c.items[i].Subtotal = product.Price.Times(c.items[i].Quantity)
		return
	}
	c.items = append(c.items, CartItem{Product: product, Quantity: qty, Subtotal: product.Price.Times(qty)})
}

// Remove drops the line for productID and reports whether it existed.
func (c *Cart) Remove(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(productID)
}

// SetQuantity replaces a line's quantity. qty <= 0 removes the line.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if qty <= 0 {
		return c.remove(productID)
	}
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.items[i].Quantity = qty
	c.items[i].Subtotal = c.items[i].Product.Price.Times(qty)
	return true
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

func (c *Cart) Items() []CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Total() types.Money {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total types.Money
	for _, it := range c.items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// Count is the number of units in the cart.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// View copies lines, total and count under one lock.
func (c *Cart) View() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := CartView{Items: make([]CartItem, len(c.items))}
	copy(v.Items, c.items)
	for _, it := range c.items {
		v.TotalAmount = v.TotalAmount.Add(it.Subtotal)
		v.Count += it.Quantity
	}
	return v
}

// Settle takes the submitted quantities out of the cart. Units added after
// the snapshot stay.
func (c *Cart) Settle(submitted []CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range submitted {
		i := c.index(sub.Product.ID)
		if i < 0 {
			continue
		}
		left := c.items[i].Quantity - sub.Quantity
		if left <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
			continue
		}
		c.items[i].Quantity = left
		c.items[i].Subtotal = c.items[i].Product.Price.Times(left)
	}
}

func (c *Cart) index(productID string) int {
	for i, it := range c.items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}
