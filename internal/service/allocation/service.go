package allocation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"vendgate/internal/domain/models"
)

// Ledger is the slice of the storefront API the allocation service depends on.
type Ledger interface {
	FetchAllocatable(ctx context.Context, deviceID int64) ([]models.StockLine, error)
	AssignProducts(ctx context.Context, deviceID int64, items []models.AllocationItem) error
}

// editor pairs a reconciler with the fetch generation its snapshot came from.
type editor struct {
	rec        *Reconciler
	generation uint64
}

// Service manages one allocation editor per device: open fetches a fresh
// snapshot and seeds the reconciler, edits go through the reconciler's
// bound checks, submit re-validates and sends the mutation, close discards
// everything without a request.
type Service struct {
	ledger Ledger
	logger *zap.Logger

	mu       sync.Mutex
	editors  map[int64]*editor
	fetchSeq map[int64]uint64
}

// NewService wires a new allocation service instance.
func NewService(ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:   ledger,
		logger:   logger,
		editors:  map[int64]*editor{},
		fetchSeq: map[int64]uint64{},
	}
}

// Open fetches the device's allocatable stock and installs a fresh editor,
// replacing any previous one. If another Open for the same device started
// after this one, the slower snapshot is discarded: edits must never be
// validated against outdated bounds.
func (s *Service) Open(ctx context.Context, deviceID int64) ([]models.StockLine, error) {
	s.mu.Lock()
	s.fetchSeq[deviceID]++
	seq := s.fetchSeq[deviceID]
	s.mu.Unlock()

	lines, err := s.ledger.FetchAllocatable(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("open allocation for device %d: %w", deviceID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.fetchSeq[deviceID] {
		s.logger.Debug("discarding superseded stock snapshot", zap.Int64("device_id", deviceID))
		return nil, ErrStaleSnapshot
	}

	s.editors[deviceID] = &editor{rec: NewReconciler(lines), generation: seq}
	s.logger.Info("allocation editor opened",
		zap.Int64("device_id", deviceID),
		zap.Int("lines", len(lines)))

	return lines, nil
}

// SetQuantityInput proposes raw user input for one product. Bound
// rejections come back as *OverAllocationError and leave the proposal
// untouched; the caller surfaces the breakdown to the user.
func (s *Service) SetQuantityInput(deviceID, productID int64, raw string) error {
	return s.SetQuantity(deviceID, productID, CoerceQuantity(raw))
}

// SetQuantity proposes a quantity for one product on the device's open editor.
func (s *Service) SetQuantity(deviceID, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ed, ok := s.editors[deviceID]
	if !ok {
		return ErrNoEditSession
	}

	err := ed.rec.SetQuantity(productID, quantity)

	var unknown *UnknownProductError
	if errors.As(err, &unknown) {
		// Stale reference bug in the caller, worth more than a silent error.
		s.logger.Warn("quantity proposed for unknown product",
			zap.Int64("device_id", deviceID),
			zap.Int64("product_id", productID))
	}
	return err
}

// MaxAssignable returns the live ceiling for a product on the open editor.
func (s *Service) MaxAssignable(deviceID, productID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ed, ok := s.editors[deviceID]
	if !ok {
		return 0, ErrNoEditSession
	}
	return ed.rec.MaxAssignable(productID)
}

// State returns the open editor's snapshot and proposed quantities, for
// rendering.
func (s *Service) State(deviceID int64) ([]models.StockLine, map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ed, ok := s.editors[deviceID]
	if !ok {
		return nil, nil, ErrNoEditSession
	}

	lines := ed.rec.Lines()
	proposed := make(map[int64]int, len(lines))
	for _, line := range lines {
		if qty, ok := ed.rec.Proposed(line.ProductID); ok {
			proposed[line.ProductID] = qty
		}
	}
	return lines, proposed, nil
}

// Submit re-validates the full proposal, sends the mutation in one request
// and resynchronizes from the server. The proposal is never taken as the
// new truth: the returned lines come from a fresh fetch, because concurrent
// sessions may have moved stock between our fetch and our submit. On a
// rejection the editor is preserved so the user keeps their edits.
func (s *Service) Submit(ctx context.Context, deviceID int64) ([]models.StockLine, error) {
	s.mu.Lock()

	ed, ok := s.editors[deviceID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoEditSession
	}
	if ed.generation != s.fetchSeq[deviceID] {
		s.mu.Unlock()
		return nil, ErrStaleSnapshot
	}
	if err := ed.rec.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	items := ed.rec.BuildMutation()
	lines := ed.rec.Lines()
	s.mu.Unlock()

	if len(items) == 0 {
		// Nothing touched, nothing to send.
		return lines, nil
	}

	if err := s.ledger.AssignProducts(ctx, deviceID, items); err != nil {
		return nil, fmt.Errorf("submit allocation for device %d: %w", deviceID, err)
	}

	s.logger.Info("allocation submitted",
		zap.Int64("device_id", deviceID),
		zap.Int("items", len(items)))

	return s.Open(ctx, deviceID)
}

// Close discards the device's editor without issuing any request.
func (s *Service) Close(deviceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.editors, deviceID)
}
