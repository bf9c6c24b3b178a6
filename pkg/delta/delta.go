package delta

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Delta is the capability surface the write path needs from a document
// mutation. Evaluation semantics live elsewhere; the writer only asks for
// the canonical string form and two structural hints used to set read-path
// optimization flags.
type Delta interface {
	// String returns the canonical serialized form of the delta. It must
	// be deterministic for a given delta value.
	String() string
	// IsConstant reports whether the delta is a pure replacement whose
	// result does not depend on prior state.
	IsConstant() bool
	// IsMapShaped reports whether the delta denotes a map merge or a
	// literal map value.
	IsMapShaped() bool
}

// Literal is a constant replacement delta wrapping a JSON-encodable value.
type Literal struct {
	value any
}

// NewLiteral returns a delta that replaces the row with the given value.
func NewLiteral(value any) Literal {
	return Literal{value: value}
}

// Value returns the wrapped literal value.
func (l Literal) Value() any { return l.value }

func (l Literal) String() string {
	b, err := json.Marshal(l.value)
	if err != nil {
		// Non-encodable literals are a programming error; render a
		// deterministic placeholder rather than panic in the write path.
		return fmt.Sprintf("literal(%q)", fmt.Sprintf("%v", l.value))
	}
	return "literal(" + string(b) + ")"
}

func (l Literal) IsConstant() bool { return true }

func (l Literal) IsMapShaped() bool {
	_, ok := l.value.(map[string]any)
	return ok
}

// MapMerge is a best-effort merge of the given entries into a map-shaped
// row value. It is not constant: the result depends on the prior state.
type MapMerge struct {
	entries map[string]any
}

// NewMapMerge returns a delta merging the given entries into the row.
func NewMapMerge(entries map[string]any) MapMerge {
	cp := make(map[string]any, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return MapMerge{entries: cp}
}

// Entries returns a copy of the merge entries.
func (m MapMerge) Entries() map[string]any {
	cp := make(map[string]any, len(m.entries))
	for k, v := range m.entries {
		cp[k] = v
	}
	return cp
}

func (m MapMerge) String() string {
	// Canonical form requires stable key order; json.Marshal of a map
	// already sorts keys, but build explicitly so the ".." update syntax
	// is preserved.
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("{..")
	for _, k := range keys {
		b.WriteString(",")
		kb, _ := json.Marshal(k)
		vb, verr := json.Marshal(m.entries[k])
		if verr != nil {
			vb = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", m.entries[k])))
		}
		b.Write(kb)
		b.WriteString(":")
		b.Write(vb)
	}
	b.WriteString("}")
	return b.String()
}

func (m MapMerge) IsConstant() bool { return false }

func (m MapMerge) IsMapShaped() bool { return true }

// Noop leaves the row unchanged. Used by compaction when the collapsed
// state is carried by the compaction record itself.
type Noop struct{}

func (Noop) String() string    { return "noop()" }
func (Noop) IsConstant() bool  { return false }
func (Noop) IsMapShaped() bool { return false }
