package models

// StockLine describes one invoice product available for allocation to a
// device. AvailableQuantity is the warehouse remainder after all current
// distributions, so it already excludes this device's own assignment.
type StockLine struct {
	ProductID         int64  `json:"invoice_product_id"`
	NameRU            string `json:"name_ru"`
	NameKZ            string `json:"name_kz"`
	Category          string `json:"category"`
	AvailableQuantity int    `json:"available_quantity"`
	AssignedQuantity  int    `json:"assigned_quantity"`
}

// MaxAssignable returns the ceiling for this device's assignment: the
// warehouse remainder plus what is already on the device. A negative
// warehouse figure from the server counts as zero.
func (l StockLine) MaxAssignable() int {
	available := l.AvailableQuantity
	if available < 0 {
		available = 0
	}
	return available + l.AssignedQuantity
}

// AllocationItem is one entry of an assignment request. Quantity zero is
// meaningful: it unassigns the product from the device.
type AllocationItem struct {
	ProductID int64 `json:"invoice_product_id"`
	Quantity  int   `json:"quantity"`
}
