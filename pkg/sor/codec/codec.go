// Package codec turns a delta's canonical string form, structural flags
// and free-form tags into the versioned binary payload stored in the
// delta-blocks column family, and splits payloads into size-bounded
// blocks so no single cell holds an arbitrarily large value.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ChangeFlags are read-path optimization hints recorded with a delta.
type ChangeFlags uint8

const (
	// FlagConstant marks a pure replacement unaffected by prior state.
	FlagConstant ChangeFlags = 1 << iota
	// FlagMapShaped marks a map merge or literal-map value.
	FlagMapShaped
)

// String renders the flag characters stored in the encoded header.
func (f ChangeFlags) String() string {
	var b strings.Builder
	if f&FlagConstant != 0 {
		b.WriteByte('C')
	}
	if f&FlagMapShaped != 0 {
		b.WriteByte('M')
	}
	return b.String()
}

func parseFlags(s string) (ChangeFlags, error) {
	var f ChangeFlags
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'C':
			f |= FlagConstant
		case 'M':
			f |= FlagMapShaped
		default:
			return 0, fmt.Errorf("unknown change flag %q", s[i])
		}
	}
	return f, nil
}

// version tag of the current encoding. The numeric prefix ahead of it is
// reserved for alternate encodings keyed by prefix value; current logic
// always writes zeros.
const versionTag = "D2"

// EncodeDelta encodes a delta string with its flags and tags. prefixLen
// is the deployment-constant width of the reserved numeric prefix.
func EncodeDelta(deltaString string, flags ChangeFlags, tags []string, prefixLen int) []byte {
	if tags == nil {
		tags = []string{}
	}
	tagJSON, _ := json.Marshal(tags)
	var b bytes.Buffer
	b.Grow(prefixLen + len(versionTag) + len(tagJSON) + len(deltaString) + 8)
	for i := 0; i < prefixLen; i++ {
		b.WriteByte('0')
	}
	b.WriteString(versionTag)
	b.WriteByte(':')
	b.WriteString(flags.String())
	b.WriteByte(':')
	b.Write(tagJSON)
	b.WriteByte(':')
	b.WriteString(deltaString)
	return b.Bytes()
}

// Decoded is the parsed form of an encoded delta.
type Decoded struct {
	Flags ChangeFlags
	Tags  []string
	Delta string
}

// DecodeDelta parses an encoded delta produced by EncodeDelta with the
// same prefix length.
func DecodeDelta(encoded []byte, prefixLen int) (Decoded, error) {
	var d Decoded
	if len(encoded) < prefixLen {
		return d, fmt.Errorf("encoded delta shorter than prefix (%d bytes)", len(encoded))
	}
	for _, c := range encoded[:prefixLen] {
		if c != '0' {
			return d, fmt.Errorf("unsupported delta encoding prefix %q", string(encoded[:prefixLen]))
		}
	}
	rest := encoded[prefixLen:]
	if !bytes.HasPrefix(rest, []byte(versionTag+":")) {
		return d, fmt.Errorf("unsupported delta encoding version")
	}
	rest = rest[len(versionTag)+1:]
	i := bytes.IndexByte(rest, ':')
	if i < 0 {
		return d, fmt.Errorf("encoded delta missing flags separator")
	}
	flags, err := parseFlags(string(rest[:i]))
	if err != nil {
		return d, err
	}
	rest = rest[i+1:]
	dec := json.NewDecoder(bytes.NewReader(rest))
	var tags []string
	if err := dec.Decode(&tags); err != nil {
		return d, fmt.Errorf("encoded delta tags: %w", err)
	}
	off := dec.InputOffset()
	if int(off) >= len(rest) || rest[off] != ':' {
		return d, fmt.Errorf("encoded delta missing tags separator")
	}
	d.Flags = flags
	d.Tags = tags
	d.Delta = string(rest[off+1:])
	return d, nil
}

// SplitBlocks splits an encoded delta into ordered chunks of at most
// blockSize bytes. A delta that fits in one block yields a one-element
// result. Concatenating the chunks in order reproduces the input.
func SplitBlocks(encoded []byte, blockSize int) [][]byte {
	if blockSize <= 0 || len(encoded) <= blockSize {
		return [][]byte{encoded}
	}
	n := (len(encoded) + blockSize - 1) / blockSize
	out := make([][]byte, 0, n)
	for start := 0; start < len(encoded); start += blockSize {
		end := start + blockSize
		if end > len(encoded) {
			end = len(encoded)
		}
		out = append(out, encoded[start:end])
	}
	return out
}
