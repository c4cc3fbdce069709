package allocation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNegativeQuantity rejects proposals below zero before any bound math.
var ErrNegativeQuantity = errors.New("allocation: quantity must not be negative")

// ErrNoEditSession is returned when an operation refers to a device that has
// no open allocation editor.
var ErrNoEditSession = errors.New("allocation: no open edit session for device")

// ErrStaleSnapshot is returned when a submission is attempted against a
// stock snapshot that a newer fetch has superseded.
var ErrStaleSnapshot = errors.New("allocation: stock snapshot superseded by a newer fetch")

// UnknownProductError indicates a proposal for a product that is not part of
// the device's allocatable set. This is a client bug (stale reference), so
// callers should log it rather than swallow it.
type UnknownProductError struct {
	ProductID int64
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("allocation: product %d is not allocatable on this device", e.ProductID)
}

// OverAllocationError rejects a proposal that exceeds the assignable ceiling.
// It carries the warehouse/assigned split so the caller can explain why the
// bound is what it is instead of silently clamping.
type OverAllocationError struct {
	ProductID          int64
	Requested          int
	MaxAssignable      int
	WarehouseRemaining int
	AssignedToDevice   int
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf(
		"allocation: product %d: requested %d exceeds assignable %d (warehouse remaining %d + assigned to device %d)",
		e.ProductID, e.Requested, e.MaxAssignable, e.WarehouseRemaining, e.AssignedToDevice,
	)
}

// Violation is one offending line found by a full validation pass.
type Violation struct {
	ProductID     int64
	Proposed      int
	MaxAssignable int
}

// ValidationError aggregates every violation found in one pass, so the
// caller can report all offending products at once.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("product %d: proposed %d outside [0, %d]", v.ProductID, v.Proposed, v.MaxAssignable))
	}
	return "allocation: invalid proposal: " + strings.Join(parts, "; ")
}
