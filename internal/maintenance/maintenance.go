// Package maintenance reclaims expired history cells. Compacted history
// is written with an absolute expiry; the sweeper deletes cells past it
// on a cron schedule.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"deltastore/pkg/cluster"
	"deltastore/pkg/logger"
	"deltastore/pkg/metrics"
)

// Sweeper owns the scheduled expiry sweep over a set of placements.
type Sweeper struct {
	placements []*cluster.Placement
	batchSize  int
	now        func() time.Time
}

// NewSweeper builds a sweeper over the given placements.
func NewSweeper(placements []*cluster.Placement, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{placements: placements, batchSize: batchSize, now: time.Now}
}

// Start launches the cron scheduler. An empty cron expression defaults
// to daily at 03:00. Returns a cancel func stopping the scheduler.
func (s *Sweeper) Start(ctx context.Context, cronExpr string) (context.CancelFunc, error) {
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid maintenance cron expression: %s", cronExpr)
	}
	ctx2, cancel := context.WithCancel(ctx)
	go s.runScheduler(ctx2, cronExpr)
	logger.Info("maintenance_scheduler_started", "cron", cronExpr, "placements", len(s.placements))
	return cancel, nil
}

// runScheduler sleeps until the next cron tick and runs one sweep.
func (s *Sweeper) runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("maintenance_scheduler_stopping")
			return
		default:
		}

		next, err := gronx.NextTickAfter(cronExpr, s.now().UTC(), false)
		if err != nil {
			logger.Error("maintenance_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("maintenance_scheduler_stopping")
			return
		}

		if err := s.RunOnce(); err != nil {
			logger.Error("maintenance_sweep_error", "error", err)
		}
	}
}

// RunOnce sweeps every placement's history family for expired cells and
// deletes them in bounded batches.
func (s *Sweeper) RunOnce() error {
	cutoff := s.now().Unix()
	for _, placement := range s.placements {
		expired, err := s.collectExpired(placement, cutoff)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			continue
		}
		if err := s.deleteCells(placement, expired); err != nil {
			return err
		}
		metrics.MaintenanceExpired.Add(float64(len(expired)))
		logger.Info("history_cells_expired", "placement", placement.Name(), "cells", len(expired))
	}
	metrics.MaintenanceSweeps.Inc()
	return nil
}

// expiredCell identifies one history cell to reclaim.
type expiredCell struct {
	rowKey    string
	columnKey string
}

func (s *Sweeper) collectExpired(placement *cluster.Placement, cutoff int64) ([]expiredCell, error) {
	cf := placement.HistoryColumnFamily()
	prefix := []byte(string(cf) + ":")
	var out []expiredCell
	err := placement.Keyspace().ScanPrefix(prefix, func(key, value []byte) error {
		_, expiresAt, err := cluster.DecodeCell(value)
		if err != nil {
			logger.Warn("history_cell_undecodable", "placement", placement.Name(), "key", string(key))
			return nil
		}
		if expiresAt == 0 || expiresAt > cutoff {
			return nil
		}
		rowKey, columnKey, ok := splitCellKey(string(key[len(prefix):]))
		if !ok {
			return nil
		}
		out = append(out, expiredCell{rowKey: rowKey, columnKey: columnKey})
		return nil
	})
	return out, err
}

func (s *Sweeper) deleteCells(placement *cluster.Placement, cells []expiredCell) error {
	cf := placement.HistoryColumnFamily()
	for start := 0; start < len(cells); start += s.batchSize {
		end := start + s.batchSize
		if end > len(cells) {
			end = len(cells)
		}
		mutation := placement.Keyspace().NewMutation(cluster.Weak)
		for _, c := range cells[start:end] {
			mutation.Row(cf, c.rowKey).DeleteColumns(c.columnKey)
		}
		if err := mutation.Apply(); err != nil {
			return fmt.Errorf("delete expired history cells in placement %s: %w", placement.Name(), err)
		}
	}
	return nil
}

// splitCellKey splits "rowKey:columnKey" at the first separator.
func splitCellKey(s string) (rowKey, columnKey string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
