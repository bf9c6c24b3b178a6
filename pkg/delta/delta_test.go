package delta

import "testing"

func TestLiteralString(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{5, "literal(5)"},
		{"hi", `literal("hi")`},
		{nil, "literal(null)"},
		{map[string]any{"b": 2, "a": 1}, `literal({"a":1,"b":2})`},
	}
	for _, c := range cases {
		if got := NewLiteral(c.value).String(); got != c.want {
			t.Errorf("Literal(%v).String() = %q, want %q", c.value, got, c.want)
		}
	}
}

func TestLiteralFlags(t *testing.T) {
	l := NewLiteral("x")
	if !l.IsConstant() {
		t.Fatal("literal must be constant")
	}
	if l.IsMapShaped() {
		t.Fatal("string literal is not map-shaped")
	}
	m := NewLiteral(map[string]any{"k": "v"})
	if !m.IsMapShaped() {
		t.Fatal("map literal must be map-shaped")
	}
}

func TestMapMergeCanonicalOrder(t *testing.T) {
	m := NewMapMerge(map[string]any{"zeta": 1, "alpha": "x", "mid": true})
	want := `{..,"alpha":"x","mid":true,"zeta":1}`
	if got := m.String(); got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
	// deterministic across calls
	if m.String() != want {
		t.Fatal("String is not stable")
	}
}

func TestMapMergeFlags(t *testing.T) {
	m := NewMapMerge(map[string]any{"a": 1})
	if m.IsConstant() {
		t.Fatal("map merge depends on prior state")
	}
	if !m.IsMapShaped() {
		t.Fatal("map merge must be map-shaped")
	}
}

func TestMapMergeEntriesCopied(t *testing.T) {
	src := map[string]any{"a": 1}
	m := NewMapMerge(src)
	src["a"] = 99
	if m.Entries()["a"] != 1 {
		t.Fatal("merge shares caller's map")
	}
}

func TestNoop(t *testing.T) {
	var n Noop
	if n.String() != "noop()" || n.IsConstant() || n.IsMapShaped() {
		t.Fatalf("noop = %q, %v, %v", n.String(), n.IsConstant(), n.IsMapShaped())
	}
}
