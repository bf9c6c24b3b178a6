package sor

import (
	"github.com/google/uuid"

	"deltastore/pkg/cluster"
	"deltastore/pkg/delta"
	"deltastore/pkg/table"
)

// RecordUpdate is one document mutation targeted at a logical table.
// Immutable once constructed; consumed exactly once by UpdateAll.
type RecordUpdate struct {
	Table       table.Table
	Key         string
	ChangeID    uuid.UUID
	Delta       delta.Delta
	Consistency cluster.ConsistencyLevel
	Tags        []string
}

// NewChangeID returns a time-ordered unique change identifier.
func NewChangeID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to v4
		// rather than stall the write path.
		return uuid.New()
	}
	return id
}

// UpdateListener exposes the hooks invoked around every physical flush.
// BeforeWrite runs before the data is visible (used to enqueue downstream
// notifications); AfterWrite runs after the write succeeds (used for
// audit trails). A hook error aborts the remaining flushes of the
// current UpdateAll call.
type UpdateListener interface {
	BeforeWrite(updates []RecordUpdate) error
	AfterWrite(updates []RecordUpdate) error
}

// NoopListener is an UpdateListener that does nothing.
type NoopListener struct{}

func (NoopListener) BeforeWrite([]RecordUpdate) error { return nil }
func (NoopListener) AfterWrite([]RecordUpdate) error  { return nil }
