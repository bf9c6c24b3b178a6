package sor

import (
	"deltastore/pkg/cluster"
	"deltastore/pkg/logger"
	"deltastore/pkg/metrics"
	"deltastore/pkg/table"
)

// Purge scans every row key in the placement and deletes all associated
// data (live delta blocks and retained history) in bounded batches.
// progress is a liveness heartbeat invoked once per physical batch; it
// is never called when there is nothing to delete. Purge is irreversible
// and bypasses compaction and history; it exists to destroy the data of
// a decommissioned table or shard, never for targeted row deletes.
func (w *Writer) Purge(placement *cluster.Placement, progress func()) error {
	if progress == nil {
		progress = func() {}
	}
	mutation := placement.Keyspace().NewMutation(cluster.Strong)
	pending := 0
	total := 0

	flush := func() error {
		progress()
		if err := w.execute(mutation, "purge %d records from placement %s", pending, placement.Name()); err != nil {
			return err
		}
		metrics.PurgedRows.Add(float64(pending))
		total += pending
		mutation.Discard()
		pending = 0
		return nil
	}

	err := w.scanner.ScanRowKeys(placement, cluster.Strong, func(rowKey string) error {
		mutation.Row(placement.DeltaColumnFamily(), rowKey).Delete()
		mutation.Row(placement.HistoryColumnFamily(), rowKey).Delete()
		pending++
		if pending >= w.cfg.PurgeBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if pending > 0 {
		if err := flush(); err != nil {
			return err
		}
	}
	logger.Info("placement_purged", "placement", placement.Name(), "rows", total)
	return nil
}

// PurgeTable destroys all data for every write placement of the table.
func (w *Writer) PurgeTable(tbl table.Table) error {
	for _, placement := range tbl.WritePlacements() {
		if err := w.Purge(placement, nil); err != nil {
			return err
		}
	}
	return nil
}
