package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/google/uuid"

	"deltastore/pkg/cluster"
	"deltastore/pkg/delta"
	"deltastore/pkg/sor"
	"deltastore/pkg/table"
)

// updateRequest is one element of the update stream body.
type updateRequest struct {
	Key         string       `json:"key"`
	ChangeID    string       `json:"change_id,omitempty"`
	Consistency string       `json:"consistency,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Delta       deltaRequest `json:"delta"`
}

// deltaRequest is the wire form of a delta value.
type deltaRequest struct {
	Type    string         `json:"type"`
	Value   any            `json:"value,omitempty"`
	Entries map[string]any `json:"entries,omitempty"`
}

func (dr deltaRequest) toDelta() (delta.Delta, error) {
	switch dr.Type {
	case "literal":
		return delta.NewLiteral(dr.Value), nil
	case "map_merge":
		return delta.NewMapMerge(dr.Entries), nil
	case "noop":
		return delta.Noop{}, nil
	}
	return nil, fmt.Errorf("unknown delta type %q", dr.Type)
}

func (ur updateRequest) toRecordUpdate(tbl table.Table) (sor.RecordUpdate, error) {
	var u sor.RecordUpdate
	if ur.Key == "" {
		return u, fmt.Errorf("update missing key")
	}
	d, err := ur.Delta.toDelta()
	if err != nil {
		return u, err
	}
	level, err := cluster.ParseConsistency(ur.Consistency)
	if err != nil {
		return u, err
	}
	changeID := sor.NewChangeID()
	if ur.ChangeID != "" {
		changeID, err = uuid.Parse(ur.ChangeID)
		if err != nil {
			return u, fmt.Errorf("invalid change_id: %w", err)
		}
	}
	return sor.RecordUpdate{
		Table:       tbl,
		Key:         ur.Key,
		ChangeID:    changeID,
		Delta:       d,
		Consistency: level,
		Tags:        ur.Tags,
	}, nil
}

// decodeUpdates turns the request body (a JSON array of updates) into a
// lazy sequence: elements are decoded one at a time as the writer pulls
// them, so a large stream is never materialized. The returned errp is
// set when decoding stops the stream early.
func decodeUpdates(body io.Reader, tbl table.Table) (iter.Seq[sor.RecordUpdate], *error) {
	dec := json.NewDecoder(body)
	errp := new(error)
	seq := func(yield func(sor.RecordUpdate) bool) {
		tok, err := dec.Token()
		if err != nil {
			*errp = fmt.Errorf("invalid update stream: %w", err)
			return
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			*errp = errors.New("update stream must be a JSON array")
			return
		}
		for dec.More() {
			var ur updateRequest
			if err := dec.Decode(&ur); err != nil {
				*errp = fmt.Errorf("invalid update: %w", err)
				return
			}
			u, err := ur.toRecordUpdate(tbl)
			if err != nil {
				*errp = err
				return
			}
			if !yield(u) {
				return
			}
		}
	}
	return seq, errp
}
