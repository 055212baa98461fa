package usecase

import (
	"log"

	"github.com/cartly/backend/internal/domain"
)

// Reconciler matches recognized receipt items against cart lines and
// computes the quantity adjustments that bring the cart in line with
// what the receipt shows was purchased.
type Reconciler struct {
	matcher            *NameMatcher
	enableDebugLogging bool
}

// NewReconciler creates a new reconciliation engine
func NewReconciler(matcher *NameMatcher, enableDebugLogging bool) *Reconciler {
	return &Reconciler{
		matcher:            matcher,
		enableDebugLogging: enableDebugLogging,
	}
}

// Reconcile processes recognized items in input order against a working
// copy of the cart lines. For each item the first matching line — by
// barcode, then by name similarity — is decremented, clamped at zero;
// items matching nothing are reported in NotFound. Decrements are
// visible to later items within the same pass, so duplicate scan lines
// for one product decrement cumulatively. The input slice is not
// mutated; lines are never removed here (see Apply).
func (r *Reconciler) Reconcile(items []domain.RecognizedItem, lines []domain.CartLine) domain.ReconciliationResult {
	working := make([]domain.CartLine, len(lines))
	copy(working, lines)

	result := domain.ReconciliationResult{
		Remaining: []domain.RemainingLine{},
		NotFound:  []domain.RecognizedItem{},
	}

	for _, item := range items {
		idx := r.findMatch(item, working)
		if idx < 0 {
			if r.enableDebugLogging {
				log.Printf("[RECONCILE] No match for %q (barcode %q)", item.Name, item.Barcode)
			}
			result.NotFound = append(result.NotFound, item)
			continue
		}

		line := &working[idx]
		newQty := line.Quantity - item.Quantity
		if newQty < 0 {
			newQty = 0
		}
		line.Quantity = newQty

		if r.enableDebugLogging {
			log.Printf("[RECONCILE] %q -> line %s (%q), quantity now %d", item.Name, line.ID, line.Product.Name, newQty)
		}

		result.Remaining = append(result.Remaining, domain.RemainingLine{
			CartLineID: line.ID,
			Product:    line.Product,
			Quantity:   newQty,
		})
	}

	return result
}

// findMatch returns the index of the first cart line matching the item,
// or -1. The barcode pass runs first and wins outright over any name
// similarity; the name pass takes the first similar line in cart order
// with no scoring across candidates.
func (r *Reconciler) findMatch(item domain.RecognizedItem, lines []domain.CartLine) int {
	if item.Barcode != "" {
		for i := range lines {
			if lines[i].Product.Barcode == item.Barcode {
				return i
			}
		}
	}

	if item.Name == "" {
		return -1
	}
	for i := range lines {
		if r.matcher.IsSimilar(item.Name, lines[i].Product.Name) {
			return i
		}
	}

	return -1
}

// Apply produces the cart as it should be persisted: matched lines take
// their post-decrement quantity and any line at zero or below is
// removed. Untouched lines are kept as-is. The input cart is not
// modified.
func (r *Reconciler) Apply(cart *domain.Cart, result domain.ReconciliationResult) *domain.Cart {
	adjusted := make(map[string]int, len(result.Remaining))
	for _, rem := range result.Remaining {
		// A line matched twice appears twice; the later entry carries
		// the final quantity.
		adjusted[rem.CartLineID] = rem.Quantity
	}

	updated := *cart
	updated.Lines = make([]domain.CartLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if qty, ok := adjusted[line.ID]; ok {
			line.Quantity = qty
		}
		if line.Quantity <= 0 {
			continue
		}
		updated.Lines = append(updated.Lines, line)
	}

	return &updated
}
