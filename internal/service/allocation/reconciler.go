package allocation

import (
	"strconv"
	"strings"

	"vendgate/internal/domain/models"
)

// Reconciler holds one device's stock snapshot together with the quantities
// proposed for it, and enforces the allocation bounds. It is a plain value
// store with no I/O; the Service layers fetching and submission on top.
//
// Proposals are seeded from the device's current assignments when the
// snapshot is installed. Only lines the user actually touched are recorded
// as such, because the mutation sent to the server must omit untouched
// lines: omission means "no change", an explicit zero means "unassign".
type Reconciler struct {
	lines    []models.StockLine
	index    map[int64]int
	proposed map[int64]int
	touched  map[int64]bool
}

// NewReconciler seeds a reconciler from a fresh stock snapshot. Line order
// is preserved; it determines the order of the mutation entries.
func NewReconciler(lines []models.StockLine) *Reconciler {
	r := &Reconciler{
		lines:    make([]models.StockLine, len(lines)),
		index:    make(map[int64]int, len(lines)),
		proposed: make(map[int64]int, len(lines)),
		touched:  make(map[int64]bool),
	}
	copy(r.lines, lines)
	for i, line := range r.lines {
		r.index[line.ProductID] = i
		r.proposed[line.ProductID] = line.AssignedQuantity
	}
	return r
}

// Lines returns the stock snapshot in its original order.
func (r *Reconciler) Lines() []models.StockLine {
	out := make([]models.StockLine, len(r.lines))
	copy(out, r.lines)
	return out
}

// Proposed returns the currently proposed quantity for the product.
func (r *Reconciler) Proposed(productID int64) (int, bool) {
	qty, ok := r.proposed[productID]
	return qty, ok
}

// MaxAssignable returns the live ceiling for the product, recomputed from
// the current snapshot. UI steppers need this to decide whether "+1" is
// still allowed.
func (r *Reconciler) MaxAssignable(productID int64) (int, error) {
	i, ok := r.index[productID]
	if !ok {
		return 0, &UnknownProductError{ProductID: productID}
	}
	return r.lines[i].MaxAssignable(), nil
}

// SetQuantity proposes a new quantity for the product. On any rejection the
// proposal state is left exactly as it was: an over-allocation is reported
// with the warehouse/assigned breakdown, never clamped.
func (r *Reconciler) SetQuantity(productID int64, quantity int) error {
	if quantity < 0 {
		return ErrNegativeQuantity
	}

	i, ok := r.index[productID]
	if !ok {
		return &UnknownProductError{ProductID: productID}
	}

	line := r.lines[i]
	max := line.MaxAssignable()
	if quantity > max {
		return &OverAllocationError{
			ProductID:          productID,
			Requested:          quantity,
			MaxAssignable:      max,
			WarehouseRemaining: line.AvailableQuantity,
			AssignedToDevice:   line.AssignedQuantity,
		}
	}

	r.proposed[productID] = quantity
	r.touched[productID] = true
	return nil
}

// SetQuantityInput is SetQuantity for raw user input: digits are kept,
// everything else is dropped, and an empty result means zero.
func (r *Reconciler) SetQuantityInput(productID int64, raw string) error {
	return r.SetQuantity(productID, CoerceQuantity(raw))
}

// Validate recomputes every bound against the current snapshot and collects
// all violations instead of stopping at the first one. It must be called
// before building a mutation: proposals may have been seeded or mutated by
// paths that bypass SetQuantity.
func (r *Reconciler) Validate() error {
	var violations []Violation
	for _, line := range r.lines {
		qty := r.proposed[line.ProductID]
		max := line.MaxAssignable()
		if qty < 0 || qty > max {
			violations = append(violations, Violation{
				ProductID:     line.ProductID,
				Proposed:      qty,
				MaxAssignable: max,
			})
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// BuildMutation emits one entry per touched line, in snapshot order, with
// the proposed quantity verbatim. Zeros are included; untouched lines are
// not, so concurrently modified lines are left alone.
func (r *Reconciler) BuildMutation() []models.AllocationItem {
	items := make([]models.AllocationItem, 0, len(r.touched))
	for _, line := range r.lines {
		if !r.touched[line.ProductID] {
			continue
		}
		items = append(items, models.AllocationItem{
			ProductID: line.ProductID,
			Quantity:  r.proposed[line.ProductID],
		})
	}
	return items
}

// Dirty reports whether any line has been touched since the snapshot was
// installed.
func (r *Reconciler) Dirty() bool {
	return len(r.touched) > 0
}

// CoerceQuantity normalizes raw user input to a non-negative integer.
// Non-digit characters are stripped; empty or unparseable input yields zero.
func CoerceQuantity(raw string) int {
	var digits strings.Builder
	for _, ch := range raw {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	qty, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return qty
}
