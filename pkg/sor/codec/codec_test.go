package codec

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := EncodeDelta(`{..,"rating":5}`, FlagMapShaped, []string{"tag0", "re-sync"}, 4)
	if !bytes.HasPrefix(enc, []byte("0000D2:")) {
		t.Fatalf("unexpected encoding prefix: %q", enc[:10])
	}

	dec, err := DecodeDelta(enc, 4)
	if err != nil {
		t.Fatalf("DecodeDelta: %v", err)
	}
	if dec.Delta != `{..,"rating":5}` {
		t.Fatalf("delta = %q", dec.Delta)
	}
	if dec.Flags != FlagMapShaped {
		t.Fatalf("flags = %v", dec.Flags)
	}
	if len(dec.Tags) != 2 || dec.Tags[0] != "tag0" || dec.Tags[1] != "re-sync" {
		t.Fatalf("tags = %v", dec.Tags)
	}
}

func TestEncodeNoTags(t *testing.T) {
	enc := EncodeDelta("literal(1)", FlagConstant, nil, 4)
	dec, err := DecodeDelta(enc, 4)
	if err != nil {
		t.Fatalf("DecodeDelta: %v", err)
	}
	if len(dec.Tags) != 0 {
		t.Fatalf("tags = %v, want empty", dec.Tags)
	}
	if dec.Flags != FlagConstant {
		t.Fatalf("flags = %v", dec.Flags)
	}
}

func TestFlagsString(t *testing.T) {
	cases := []struct {
		flags ChangeFlags
		want  string
	}{
		{0, ""},
		{FlagConstant, "C"},
		{FlagMapShaped, "M"},
		{FlagConstant | FlagMapShaped, "CM"},
	}
	for _, c := range cases {
		if got := c.flags.String(); got != c.want {
			t.Errorf("flags %v String = %q, want %q", c.flags, got, c.want)
		}
	}
}

func TestDecodeRejectsUnknownPrefix(t *testing.T) {
	enc := EncodeDelta("literal(1)", 0, nil, 4)
	enc[0] = '7'
	if _, err := DecodeDelta(enc, 4); err == nil {
		t.Fatal("expected error for non-zero prefix")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	if _, err := DecodeDelta([]byte("0000D9::[]:x"), 4); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestDecodeDeltaContainingColons(t *testing.T) {
	// Colons inside the delta body must not confuse the header parser.
	raw := `{..,"url":"http://example.com:8080"}`
	dec, err := DecodeDelta(EncodeDelta(raw, FlagMapShaped, []string{"a:b"}, 4), 4)
	if err != nil {
		t.Fatalf("DecodeDelta: %v", err)
	}
	if dec.Delta != raw {
		t.Fatalf("delta = %q", dec.Delta)
	}
	if dec.Tags[0] != "a:b" {
		t.Fatalf("tags = %v", dec.Tags)
	}
}

func TestSplitBlocksSingle(t *testing.T) {
	enc := []byte("short payload")
	blocks := SplitBlocks(enc, 64)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(blocks))
	}
	if !bytes.Equal(blocks[0], enc) {
		t.Fatalf("block = %q", blocks[0])
	}
}

func TestSplitBlocksReassembles(t *testing.T) {
	enc := []byte(strings.Repeat("abcdefgh", 100)) // 800 bytes
	blocks := SplitBlocks(enc, 64)
	if want := 13; len(blocks) != want {
		t.Fatalf("blocks = %d, want %d", len(blocks), want)
	}
	for i, b := range blocks[:len(blocks)-1] {
		if len(b) != 64 {
			t.Fatalf("block %d has %d bytes", i, len(b))
		}
	}
	var joined []byte
	for _, b := range blocks {
		joined = append(joined, b...)
	}
	if !bytes.Equal(joined, enc) {
		t.Fatal("concatenated blocks differ from input")
	}
}
