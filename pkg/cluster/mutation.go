package cluster

import (
	"encoding/binary"
	"fmt"

	"github.com/valyala/bytebufferpool"
)

// frameMagic versions the wire envelope mutations are framed in.
var frameMagic = []byte("DSF1")

// columnPut is one cell write. expiresAt is a unix-seconds expiry, zero
// for cells that never expire.
type columnPut struct {
	columnKey string
	value     []byte
	expiresAt int64
}

// RowMutation collects the cell writes, column deletes, or a whole-row
// delete for one row inside a batch.
type RowMutation struct {
	cf             ColumnFamily
	rowKey         string
	puts           []columnPut
	deletePrefixes []string
	deleteRow      bool
}

// Put schedules a cell write.
func (r *RowMutation) Put(columnKey string, value []byte) *RowMutation {
	r.puts = append(r.puts, columnPut{columnKey: columnKey, value: value})
	return r
}

// PutWithExpiry schedules a cell write that expires at the given unix
// time (seconds). Expired cells are reclaimed by the maintenance sweep.
func (r *RowMutation) PutWithExpiry(columnKey string, value []byte, expiresAt int64) *RowMutation {
	r.puts = append(r.puts, columnPut{columnKey: columnKey, value: value, expiresAt: expiresAt})
	return r
}

// DeleteColumns schedules deletion of every cell whose column key starts
// with the given prefix.
func (r *RowMutation) DeleteColumns(columnKeyPrefix string) *RowMutation {
	r.deletePrefixes = append(r.deletePrefixes, columnKeyPrefix)
	return r
}

// Delete schedules deletion of every cell of the row. Any pending puts
// for the row are discarded.
func (r *RowMutation) Delete() *RowMutation {
	r.deleteRow = true
	r.puts = nil
	r.deletePrefixes = nil
	return r
}

// MutationBatch is a single physical request to one keyspace at one
// consistency level: an ordered set of row mutations serialized through
// the frame envelope.
type MutationBatch struct {
	ks          *Keyspace
	consistency ConsistencyLevel
	rows        []*RowMutation
	index       map[string]*RowMutation
}

// NewMutation starts an empty batch against this keyspace.
func (ks *Keyspace) NewMutation(level ConsistencyLevel) *MutationBatch {
	return &MutationBatch{ks: ks, consistency: level, index: make(map[string]*RowMutation)}
}

// Row returns the mutation for (cf, rowKey), creating it in insertion
// order on first use.
func (m *MutationBatch) Row(cf ColumnFamily, rowKey string) *RowMutation {
	k := string(cf) + ":" + rowKey
	if r, ok := m.index[k]; ok {
		return r
	}
	r := &RowMutation{cf: cf, rowKey: rowKey}
	m.rows = append(m.rows, r)
	m.index[k] = r
	return r
}

// IsEmpty reports whether the batch holds no mutations.
func (m *MutationBatch) IsEmpty() bool { return len(m.rows) == 0 }

// RowCount returns the number of distinct rows in the batch.
func (m *MutationBatch) RowCount() int { return len(m.rows) }

// Consistency returns the batch's consistency level.
func (m *MutationBatch) Consistency() ConsistencyLevel { return m.consistency }

// Keyspace returns the keyspace the batch targets.
func (m *MutationBatch) Keyspace() *Keyspace { return m.ks }

// Discard drops all pending mutations so the batch can be reused.
func (m *MutationBatch) Discard() {
	m.rows = nil
	m.index = make(map[string]*RowMutation)
}

// Clone returns an independent copy of the batch. Used to measure the
// exact frame size of a hypothetical batch without touching the original.
func (m *MutationBatch) Clone() *MutationBatch {
	c := &MutationBatch{ks: m.ks, consistency: m.consistency, index: make(map[string]*RowMutation, len(m.rows))}
	for _, r := range m.rows {
		cp := &RowMutation{cf: r.cf, rowKey: r.rowKey, deleteRow: r.deleteRow}
		cp.puts = append(cp.puts, r.puts...)
		cp.deletePrefixes = append(cp.deletePrefixes, r.deletePrefixes...)
		c.rows = append(c.rows, cp)
		c.index[string(r.cf)+":"+r.rowKey] = cp
	}
	return c
}

// FrameSize returns the exact byte length of the batch serialized through
// the wire envelope. The scratch buffer is pooled; measuring a near-limit
// batch does not allocate the frame twice.
func (m *MutationBatch) FrameSize() int {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	m.encodeFrame(buf)
	return buf.Len()
}

// EncodeFrame returns the serialized wire envelope for the batch.
func (m *MutationBatch) EncodeFrame() []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	m.encodeFrame(buf)
	return append([]byte(nil), buf.B...)
}

func (m *MutationBatch) encodeFrame(buf *bytebufferpool.ByteBuffer) {
	var scratch [8]byte
	u16 := func(v int) {
		binary.BigEndian.PutUint16(scratch[:2], uint16(v))
		_, _ = buf.Write(scratch[:2])
	}
	u32 := func(v int) {
		binary.BigEndian.PutUint32(scratch[:4], uint32(v))
		_, _ = buf.Write(scratch[:4])
	}
	i64 := func(v int64) {
		binary.BigEndian.PutUint64(scratch[:8], uint64(v))
		_, _ = buf.Write(scratch[:8])
	}

	_, _ = buf.Write(frameMagic)
	_ = buf.WriteByte(byte(m.consistency))
	u32(len(m.rows))
	for _, r := range m.rows {
		u16(len(r.cf))
		_, _ = buf.WriteString(string(r.cf))
		u32(len(r.rowKey))
		_, _ = buf.WriteString(r.rowKey)
		if r.deleteRow {
			_ = buf.WriteByte(1)
			u32(0)
			u32(0)
			continue
		}
		_ = buf.WriteByte(0)
		u32(len(r.puts))
		for _, p := range r.puts {
			u32(len(p.columnKey))
			_, _ = buf.WriteString(p.columnKey)
			i64(p.expiresAt)
			u32(len(p.value))
			_, _ = buf.Write(p.value)
		}
		u32(len(r.deletePrefixes))
		for _, dp := range r.deletePrefixes {
			u32(len(dp))
			_, _ = buf.WriteString(dp)
		}
	}
}

// Apply serializes the batch through the frame envelope and executes it
// atomically against the keyspace. Frames over the transport limit are
// rejected with an opaque transport error, the way a framed transport
// drops oversize requests without naming the cause.
func (m *MutationBatch) Apply() error {
	if m.ks == nil || m.ks.db == nil {
		return fmt.Errorf("mutation batch: keyspace not open")
	}
	if m.IsEmpty() {
		return nil
	}
	if limit := m.ks.frameLimit; limit > 0 && m.FrameSize() >= limit {
		return fmt.Errorf("keyspace %s rejected request: %w", m.ks.name, ErrTransportUnknown)
	}

	b := m.ks.db.NewBatch()
	for _, r := range m.rows {
		if r.deleteRow {
			prefix := r.cf.RowPrefix(r.rowKey)
			if err := b.DeleteRange(prefix, prefixEnd(prefix), nil); err != nil {
				return fmt.Errorf("keyspace %s: %w", m.ks.name, err)
			}
			continue
		}
		for _, p := range r.puts {
			key := r.cf.CellKey(r.rowKey, p.columnKey)
			if err := b.Set(key, EncodeCell(p.value, p.expiresAt), nil); err != nil {
				return fmt.Errorf("keyspace %s: %w", m.ks.name, err)
			}
		}
		for _, dp := range r.deletePrefixes {
			start := r.cf.CellKey(r.rowKey, dp)
			if err := b.DeleteRange(start, prefixEnd(start), nil); err != nil {
				return fmt.Errorf("keyspace %s: %w", m.ks.name, err)
			}
		}
	}
	if err := m.ks.apply(b, m.consistency); err != nil {
		return fmt.Errorf("keyspace %s: %w", m.ks.name, err)
	}
	return nil
}

// EncodeCell wraps a cell payload with its expiry header. expiresAt zero
// means the cell never expires.
func EncodeCell(payload []byte, expiresAt int64) []byte {
	if expiresAt == 0 {
		out := make([]byte, 1+len(payload))
		copy(out[1:], payload)
		return out
	}
	out := make([]byte, 9+len(payload))
	out[0] = 1
	binary.BigEndian.PutUint64(out[1:9], uint64(expiresAt))
	copy(out[9:], payload)
	return out
}

// DecodeCell splits a stored cell into payload and expiry.
func DecodeCell(cell []byte) (payload []byte, expiresAt int64, err error) {
	if len(cell) == 0 {
		return nil, 0, fmt.Errorf("empty cell")
	}
	switch cell[0] {
	case 0:
		return cell[1:], 0, nil
	case 1:
		if len(cell) < 9 {
			return nil, 0, fmt.Errorf("truncated cell expiry header")
		}
		return cell[9:], int64(binary.BigEndian.Uint64(cell[1:9])), nil
	}
	return nil, 0, fmt.Errorf("unknown cell header %#x", cell[0])
}
