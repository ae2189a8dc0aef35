// internal/domain/cart/guest_test.go
package cart

import (
	"errors"
	"testing"
)

func TestLineListAdd(t *testing.T) {
	lines := LineList{{ProductID: 1, Quantity: 2}}

	updated, err := lines.Add(1, 3)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(updated) != 1 || updated[0].Quantity != 5 {
		t.Errorf("expected single line with quantity 5, got %+v", updated)
	}

	updated, err = lines.Add(2, 1)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(updated) != 2 {
		t.Errorf("expected 2 lines, got %d", len(updated))
	}

	// The receiver is untouched either way
	if lines[0].Quantity != 2 {
		t.Errorf("original list mutated: %+v", lines)
	}

	if _, err := lines.Add(1, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestLineListRemove(t *testing.T) {
	lines := LineList{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}

	updated, err := lines.Remove(1)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(updated) != 1 || updated[0].ProductID != 2 {
		t.Errorf("expected only product 2 left, got %+v", updated)
	}
	if len(lines) != 2 {
		t.Errorf("original list mutated: %+v", lines)
	}

	if _, err := lines.Remove(99); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestLineListUpdateQuantity(t *testing.T) {
	lines := LineList{{ProductID: 1, Quantity: 2}}

	updated, err := lines.UpdateQuantity(1, 7)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated[0].Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", updated[0].Quantity)
	}
	if lines[0].Quantity != 2 {
		t.Errorf("original list mutated: %+v", lines)
	}

	if _, err := lines.UpdateQuantity(1, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := lines.UpdateQuantity(99, 3); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}
