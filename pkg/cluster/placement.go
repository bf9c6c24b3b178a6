package cluster

import (
	"fmt"

	"github.com/google/uuid"
)

// ColumnFamily names a logical key namespace inside a keyspace. Cell keys
// are laid out as cf:rowKey:columnKey so a row's cells are contiguous and
// a column family can be scanned as a key range.
type ColumnFamily string

// RowPrefix returns the key prefix covering every cell of a row.
func (cf ColumnFamily) RowPrefix(rowKey string) []byte {
	return []byte(string(cf) + ":" + rowKey + ":")
}

// CellKey returns the full key for one column of a row.
func (cf ColumnFamily) CellKey(rowKey, columnKey string) []byte {
	return []byte(string(cf) + ":" + rowKey + ":" + columnKey)
}

// BlockColumn returns the column key for one block of an encoded delta.
// The index is fixed-width hex so lexicographic order is block order.
func BlockColumn(changeID uuid.UUID, index int) string {
	return fmt.Sprintf("%s:%08x", changeID, index)
}

// HistoryColumn returns the column key for a retained history entry.
func HistoryColumn(changeID uuid.UUID) string {
	return changeID.String()
}

// Placement is a named, addressable shard of the backing cluster. It owns
// a keyspace handle and the two column families the write path touches:
// live delta blocks and retained compacted history.
type Placement struct {
	name      string
	keyspace  *Keyspace
	deltaCF   ColumnFamily
	historyCF ColumnFamily
}

// NewPlacement binds a placement name to a keyspace and its column
// families.
func NewPlacement(name string, ks *Keyspace, deltaCF, historyCF ColumnFamily) *Placement {
	return &Placement{name: name, keyspace: ks, deltaCF: deltaCF, historyCF: historyCF}
}

// Name returns the placement name.
func (p *Placement) Name() string { return p.name }

// Keyspace returns the connection/keyspace handle.
func (p *Placement) Keyspace() *Keyspace { return p.keyspace }

// DeltaColumnFamily returns the family holding live delta blocks.
func (p *Placement) DeltaColumnFamily() ColumnFamily { return p.deltaCF }

// HistoryColumnFamily returns the family holding retained history.
func (p *Placement) HistoryColumnFamily() ColumnFamily { return p.historyCF }
