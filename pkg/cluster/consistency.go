package cluster

import "fmt"

// ConsistencyLevel is the durability acknowledgment required for a single
// physical write. Weak writes may be acknowledged before reaching stable
// storage; Strong writes are synced before the call returns.
type ConsistencyLevel uint8

const (
	Weak ConsistencyLevel = iota
	Strong
)

func (c ConsistencyLevel) String() string {
	switch c {
	case Weak:
		return "weak"
	case Strong:
		return "strong"
	}
	return fmt.Sprintf("consistency(%d)", uint8(c))
}

// ParseConsistency maps a config/API string to a ConsistencyLevel.
func ParseConsistency(s string) (ConsistencyLevel, error) {
	switch s {
	case "weak", "WEAK", "":
		return Weak, nil
	case "strong", "STRONG":
		return Strong, nil
	}
	return Weak, fmt.Errorf("unknown consistency level %q", s)
}
