package sor

import (
	"deltastore/pkg/cluster"
	"deltastore/pkg/delta"
	"deltastore/pkg/logger"
	"deltastore/pkg/metrics"
	"deltastore/pkg/sor/codec"
	"deltastore/pkg/table"

	"github.com/google/uuid"
)

// History is one retained delta produced by compaction: the change id it
// replaces and a snapshot of the delta at that change.
type History struct {
	ChangeID uuid.UUID
	Delta    delta.Delta
	Tags     []string
}

// HistoryEnabled reports whether compacted history is retained at all.
// A zero TTL disables retention by policy.
func (w *Writer) HistoryEnabled() bool { return w.cfg.HistoryTTL > 0 }

// StoreCompactedDeltas writes one history entry per record, per write
// placement, with the configured TTL. Callers normally check
// HistoryEnabled first, but calling with history disabled is a
// deliberate no-op rather than an error.
func (w *Writer) StoreCompactedDeltas(tbl table.Table, key string, histories []History, consistency cluster.ConsistencyLevel) error {
	if !w.HistoryEnabled() {
		logger.Debug("history_disabled_skip", "table", tbl.Name(), "key", key)
		return nil
	}
	if len(histories) == 0 {
		return nil
	}

	expiresAt := w.now().Add(w.cfg.HistoryTTL).Unix()
	for _, placement := range tbl.WritePlacements() {
		mutation := placement.Keyspace().NewMutation(consistency)
		row := mutation.Row(placement.HistoryColumnFamily(), key)
		for _, h := range histories {
			encoded := encodeHistory(h, w.cfg.DeltaPrefixLength)
			row.PutWithExpiry(cluster.HistoryColumn(h.ChangeID), encoded, expiresAt)
		}
		if err := w.execute(mutation, "store %d compacted deltas for placement %s, table %s, key %s",
			len(histories), placement.Name(), tbl.Name(), key); err != nil {
			return err
		}
	}
	metrics.HistoryEntries.Add(float64(len(histories) * len(tbl.WritePlacements())))
	return nil
}

// encodeHistory snapshots a history record through the same versioned
// encoding as live deltas so read paths share one decoder.
func encodeHistory(h History, prefixLen int) []byte {
	var flags codec.ChangeFlags
	if h.Delta.IsConstant() {
		flags |= codec.FlagConstant
	}
	if h.Delta.IsMapShaped() {
		flags |= codec.FlagMapShaped
	}
	return codec.EncodeDelta(h.Delta.String(), flags, h.Tags, prefixLen)
}
