// Package sor implements the write path of the delta-based
// System-of-Record: update batching and flushing, delta encoding with
// block splitting, protocol-aware size limiting, compacted-history
// persistence and bulk purges.
package sor

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"deltastore/pkg/cluster"
	"deltastore/pkg/logger"
	"deltastore/pkg/metrics"
	"deltastore/pkg/sor/codec"
)

// Config carries the deployment-tunable constants governing the write
// path. Zero fields are replaced by defaults in NewWriter.
type Config struct {
	// MaxBatchSize is the per-group row threshold that forces a flush.
	MaxBatchSize int
	// MaxPendingSize bounds the total updates held in memory before a
	// forced flush of every pending group.
	MaxPendingSize int
	// MaxFrameSize must match the transport's configured frame size.
	MaxFrameSize int
	// MaxDeltaSize bounds a single encoded delta, conservatively below
	// MaxFrameSize to leave room for metadata and protocol overhead.
	MaxDeltaSize int
	// BlockSize bounds one stored block of an encoded delta.
	BlockSize int
	// DeltaPrefixLength is the width of the reserved encoding prefix.
	DeltaPrefixLength int
	// PurgeBatchSize bounds the rows deleted per purge mutation.
	PurgeBatchSize int
	// HistoryTTL is the retention of compacted history entries. Zero
	// disables history retention entirely.
	HistoryTTL time.Duration
}

const (
	defaultMaxBatchSize      = 100
	defaultMaxPendingSize    = 200
	defaultMaxFrameSize      = 15 * 1024 * 1024
	defaultMaxDeltaSize      = 10 * 1024 * 1024
	defaultBlockSize         = 64 * 1024
	defaultDeltaPrefixLength = 4
	defaultPurgeBatchSize    = 100
)

func (c Config) withDefaults() Config {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaultMaxBatchSize
	}
	if c.MaxPendingSize <= 0 {
		c.MaxPendingSize = defaultMaxPendingSize
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = defaultMaxFrameSize
	}
	if c.MaxDeltaSize <= 0 {
		c.MaxDeltaSize = defaultMaxDeltaSize
	}
	if c.BlockSize <= 0 {
		c.BlockSize = defaultBlockSize
	}
	if c.DeltaPrefixLength <= 0 {
		c.DeltaPrefixLength = defaultDeltaPrefixLength
	}
	if c.PurgeBatchSize <= 0 {
		c.PurgeBatchSize = defaultPurgeBatchSize
	}
	return c
}

// Writer is the batching write path. One Writer serves many concurrent
// UpdateAll calls; each call owns its own pending state, so no locking
// is needed across flushes.
type Writer struct {
	cfg     Config
	scanner KeyScanner
	now     func() time.Time
}

// NewWriter builds a Writer. A nil scanner uses the cluster-backed
// key scan.
func NewWriter(cfg Config, scanner KeyScanner) *Writer {
	if scanner == nil {
		scanner = ClusterKeyScanner{}
	}
	return &Writer{cfg: cfg.withDefaults(), scanner: scanner, now: time.Now}
}

// Config returns the effective (defaulted) configuration.
func (w *Writer) Config() Config { return w.cfg }

// groupKey is the unit of physical batching: two updates share a group
// only when both placement and consistency match exactly.
type groupKey struct {
	placement   *cluster.Placement
	consistency cluster.ConsistencyLevel
}

// batchUpdate pairs an update with the placement it fans out to.
type batchUpdate struct {
	placement *cluster.Placement
	update    RecordUpdate
}

// UpdateAll consumes a lazy sequence of updates, grouping them by
// (placement, consistency) and flushing according to the size and count
// thresholds. Every update is processed exactly once; the sequence is
// never materialized in memory. The first failure aborts the remaining
// flushes and is returned; flushes already executed are not rolled back.
func (w *Writer) UpdateAll(updates iter.Seq[RecordUpdate], listener UpdateListener) error {
	if listener == nil {
		listener = NoopListener{}
	}
	groups := make(map[groupKey][]batchUpdate)
	var order []groupKey
	numPending := 0

	for update := range updates {
		if strings.ContainsRune(update.Key, ':') {
			return fmt.Errorf("invalid row key %q: must not contain ':'", update.Key)
		}
		if update.Delta == nil {
			return fmt.Errorf("update for row %q has no delta", update.Key)
		}
		for _, placement := range update.Table.WritePlacements() {
			gk := groupKey{placement: placement, consistency: update.Consistency}
			if _, seen := groups[gk]; !seen {
				order = append(order, gk)
			}
			groups[gk] = append(groups[gk], batchUpdate{placement: placement, update: update})
			numPending++

			// Flush when the group hits the per-batch ceiling or total
			// pending hits the memory bound. All pending groups flush
			// together: flushing only the trigger group would skew write
			// order badly when one placement sees far more updates than
			// another in the same logical operation.
			if len(groups[gk]) >= w.cfg.MaxBatchSize || numPending >= w.cfg.MaxPendingSize {
				if err := w.writeAll(order, groups, listener); err != nil {
					return err
				}
				groups = make(map[groupKey][]batchUpdate)
				order = order[:0]
				numPending = 0
			}
		}
	}

	return w.writeAll(order, groups, listener)
}

// writeAll flushes every pending group in first-seen order.
func (w *Writer) writeAll(order []groupKey, groups map[groupKey][]batchUpdate, listener UpdateListener) error {
	for _, gk := range order {
		if err := w.write(gk, groups[gk], listener); err != nil {
			return err
		}
	}
	return nil
}

// write performs the physical flush of one group, splitting it further
// if the exact frame size check demands it.
func (w *Writer) write(gk groupKey, batch []batchUpdate, listener UpdateListener) error {
	ups := make([]RecordUpdate, len(batch))
	for i, bu := range batch {
		ups[i] = bu.update
	}
	if err := listener.BeforeWrite(ups); err != nil {
		return fmt.Errorf("beforeWrite listener: %w", err)
	}

	mutation := gk.placement.Keyspace().NewMutation(gk.consistency)
	guard := newSizeGuard(w.cfg)
	updateCount := 0

	for _, bu := range batch {
		update := bu.update
		var flags codec.ChangeFlags
		if update.Delta.IsConstant() {
			flags |= codec.FlagConstant
		}
		if update.Delta.IsMapShaped() {
			flags |= codec.FlagMapShaped
		}

		encoded := codec.EncodeDelta(update.Delta.String(), flags, update.Tags, w.cfg.DeltaPrefixLength)
		if len(encoded) > w.cfg.MaxDeltaSize {
			metrics.OversizeUpdates.Inc()
			return &DeltaSizeLimitError{Size: len(encoded), Limit: w.cfg.MaxDeltaSize}
		}

		deltaCF := bu.placement.DeltaColumnFamily()

		// Cheap approximate check first; the exact frame serialization is
		// expensive and only runs when the approximate total says the next
		// row could take the batch near the frame limit.
		if !mutation.IsEmpty() && guard.nearCeiling(len(encoded)) {
			probe := mutation.Clone()
			putBlockedDelta(probe.Row(deltaCF, update.Key), update.ChangeID, encoded, w.cfg.BlockSize)
			if probe.FrameSize() >= w.cfg.MaxFrameSize {
				// Execute the batch as it stood before this row.
				if err := w.execute(mutation, "batch update %d records in placement %s", updateCount, gk.placement.Name()); err != nil {
					return err
				}
				mutation.Discard()
				guard.reset()
				updateCount = 0
			}
		}

		putBlockedDelta(mutation.Row(deltaCF, update.Key), update.ChangeID, encoded, w.cfg.BlockSize)
		guard.add(len(encoded))
		updateCount++
	}

	if err := w.execute(mutation, "batch update %d records in placement %s", updateCount, gk.placement.Name()); err != nil {
		return err
	}

	if err := listener.AfterWrite(ups); err != nil {
		return fmt.Errorf("afterWrite listener: %w", err)
	}
	metrics.Updates.Add(float64(len(batch)))
	logger.Debug("updates_flushed", "placement", gk.placement.Name(), "consistency", gk.consistency.String(), "count", len(batch))
	return nil
}

// putBlockedDelta writes the encoded delta as ordered blocks under the
// update's change id.
func putBlockedDelta(row *cluster.RowMutation, changeID uuid.UUID, encoded []byte, blockSize int) {
	blocks := codec.SplitBlocks(encoded, blockSize)
	for i, b := range blocks {
		row.Put(cluster.BlockColumn(changeID, i), b)
	}
}
