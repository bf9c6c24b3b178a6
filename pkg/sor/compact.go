package sor

import (
	"github.com/google/uuid"

	"deltastore/pkg/cluster"
	"deltastore/pkg/delta"
	"deltastore/pkg/table"
)

// Compact persists the result of compacting a row and then deletes the
// deltas the compaction superseded. The compaction record MUST be
// durable before any superseded delta is deleted: a crash between the
// two steps must leave the record, never a row missing both. The two
// mutations are therefore issued strictly in sequence per placement,
// and the deletes only run once every placement holds the record.
func (w *Writer) Compact(tbl table.Table, key string, compactionID uuid.UUID, compaction delta.Delta,
	changeID uuid.UUID, replacement delta.Delta, changesToDelete []uuid.UUID,
	histories []History, consistency cluster.ConsistencyLevel) error {

	placements := tbl.WritePlacements()

	// Step 1: write the compaction record and its replacement delta.
	for _, placement := range placements {
		mutation := placement.Keyspace().NewMutation(consistency)
		row := mutation.Row(placement.DeltaColumnFamily(), key)
		putBlockedDelta(row, compactionID, encodeHistory(History{ChangeID: compactionID, Delta: compaction}, w.cfg.DeltaPrefixLength), w.cfg.BlockSize)
		if replacement != nil {
			putBlockedDelta(row, changeID, encodeHistory(History{ChangeID: changeID, Delta: replacement}, w.cfg.DeltaPrefixLength), w.cfg.BlockSize)
		}
		if err := w.execute(mutation, "write compaction %s for placement %s, table %s, key %s",
			compactionID, placement.Name(), tbl.Name(), key); err != nil {
			return err
		}
	}

	// Step 2: the record is durable everywhere; delete superseded deltas.
	for _, placement := range placements {
		mutation := placement.Keyspace().NewMutation(consistency)
		row := mutation.Row(placement.DeltaColumnFamily(), key)
		for _, cid := range changesToDelete {
			// every block of the change shares the change-id column prefix
			row.DeleteColumns(cid.String() + ":")
		}
		if err := w.execute(mutation, "delete %d compacted deltas for placement %s, table %s, key %s",
			len(changesToDelete), placement.Name(), tbl.Name(), key); err != nil {
			return err
		}
	}

	// Step 3: retain the collapsed deltas as history when enabled.
	return w.StoreCompactedDeltas(tbl, key, histories, consistency)
}
