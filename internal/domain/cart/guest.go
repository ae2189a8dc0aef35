// internal/domain/cart/guest.go
package cart

// Line is one entry of an anonymous cart. The list itself lives in a client-side
// cookie owned by the caller; these operations only transform its content.
type Line struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// LineList is the anonymous (cookie) cart representation
type LineList []Line

// Add upserts a line: an existing product line gets its quantity incremented,
// otherwise a new line is appended. Mirrors the persisted-cart add semantics.
func (l LineList) Add(productID uint, quantity int) (LineList, error) {
	if quantity < 1 {
		return l, ErrInvalidQuantity
	}
	for i := range l {
		if l[i].ProductID == productID {
			updated := make(LineList, len(l))
			copy(updated, l)
			updated[i].Quantity += quantity
			return updated, nil
		}
	}
	return append(append(LineList{}, l...), Line{ProductID: productID, Quantity: quantity}), nil
}

// Remove deletes the line for a product
func (l LineList) Remove(productID uint) (LineList, error) {
	for i := range l {
		if l[i].ProductID == productID {
			updated := append(LineList{}, l[:i]...)
			return append(updated, l[i+1:]...), nil
		}
	}
	return l, ErrItemNotFound
}

// UpdateQuantity sets the quantity of a product line. Quantities below 1 are
// rejected; removal is an explicit Remove.
func (l LineList) UpdateQuantity(productID uint, quantity int) (LineList, error) {
	if quantity < 1 {
		return l, ErrInvalidQuantity
	}
	for i := range l {
		if l[i].ProductID == productID {
			updated := make(LineList, len(l))
			copy(updated, l)
			updated[i].Quantity = quantity
			return updated, nil
		}
	}
	return l, ErrItemNotFound
}
