package reporting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	repo "vendgate/internal/repository/sheets"
	"vendgate/pkg/clients/storefront"
)

const (
	dateLayout     = "2006-01-02 15:04"
	stockDataRange = "Stock!A:G"
)

// Service snapshots the per-device stock distribution into a spreadsheet
// and produces plain-text summaries for logs and messages.
type Service struct {
	client storefront.Client
	repo   repo.Repository
	logger *zap.Logger
}

// NewService wires a new reporting service instance. A nil repository
// disables the spreadsheet sink; summaries still work.
func NewService(client storefront.Client, repository repo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, repo: repository, logger: logger}
}

// AppendStockSnapshot walks every device under the account, fetches its
// allocatable stock and appends one spreadsheet row per line: timestamp,
// device, product, assigned, warehouse remaining, ceiling.
func (s *Service) AppendStockSnapshot(ctx context.Context, now time.Time) (int, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("sheet reporting is not configured")
	}

	devices, err := s.client.ListDevices(ctx)
	if err != nil {
		return 0, fmt.Errorf("list devices: %w", err)
	}

	stamp := now.Format(dateLayout)
	var rows [][]interface{}

	for _, device := range devices {
		lines, err := s.client.FetchAllocatable(ctx, device.ID)
		if err != nil {
			// One unreachable device should not sink the whole snapshot.
			s.logger.Error("skip device in stock snapshot", zap.Int64("device_id", device.ID), zap.Error(err))
			continue
		}

		for _, line := range lines {
			rows = append(rows, []interface{}{
				stamp,
				device.Machid,
				device.Name,
				line.NameRU,
				line.AssignedQuantity,
				line.AvailableQuantity,
				line.MaxAssignable(),
			})
		}
	}

	if err := s.repo.AppendRows(ctx, stockDataRange, rows); err != nil {
		return 0, fmt.Errorf("append stock snapshot: %w", err)
	}

	s.logger.Info("stock snapshot appended", zap.Int("rows", len(rows)), zap.Int("devices", len(devices)))
	return len(rows), nil
}

// Summary aggregates current assignments across all devices into a short
// human-readable line.
func (s *Service) Summary(ctx context.Context, now time.Time) (string, error) {
	devices, err := s.client.ListDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("list devices: %w", err)
	}

	var totalAssigned, totalRemaining, lineCount int
	seen := map[int64]bool{}
	for _, device := range devices {
		lines, err := s.client.FetchAllocatable(ctx, device.ID)
		if err != nil {
			s.logger.Error("skip device in summary", zap.Int64("device_id", device.ID), zap.Error(err))
			continue
		}
		for _, line := range lines {
			totalAssigned += line.AssignedQuantity
			// The warehouse remainder is a per-product figure repeated in
			// every device's view; count it once.
			if !seen[line.ProductID] && line.AvailableQuantity > 0 {
				totalRemaining += line.AvailableQuantity
				seen[line.ProductID] = true
			}
			lineCount++
		}
	}

	if lineCount == 0 {
		return fmt.Sprintf("Stock summary (%s): no allocatable stock across %d devices.", now.Format(dateLayout), len(devices)), nil
	}

	return fmt.Sprintf(
		"Stock summary (%s): %d devices, %d stock lines, %d units assigned, %d units still in warehouse.",
		now.Format(dateLayout), len(devices), lineCount, totalAssigned, totalRemaining,
	), nil
}
