package rx

import (
	"testing"
)

func mustParse(t *testing.T, expr string) ([][]uint16, []int, *exprNode) {
	t.Helper()
	pats, types, node, err := parseExprTree(uchars(expr))
	if err != nil {
		t.Fatalf("parse(%q): %v", expr, err)
	}
	return pats, types, node
}

func patStrings(pats [][]uint16) []string {
	out := make([]string, len(pats))
	for i, p := range pats {
		out[i] = ucstring(p)
	}
	return out
}

func TestParseSubPatterns(t *testing.T) {
	cases := []struct {
		expr  string
		pats  []string
		types []int
	}{
		{"abc", []string{"abc"}, []int{0}},
		{"abc|def", []string{"abc", "def"}, []int{0, 0}},
		{"a&b-c", []string{"a", "b", "c"}, []int{0, 0, 0}},
		{"^hello", []string{"hello"}, []int{subHead}},
		{"world$", []string{"world"}, []int{subTail}},
		{"^only$", []string{"only"}, []int{subHead | subTail}},
		{"^$", []string{""}, []int{subHead | subTail}},
		{"a.c", []string{"a.c"}, []int{subRegex}},
		{"a*", []string{"a*"}, []int{subRegex}},
		{"[abc]", []string{"[abc]"}, []int{subRegex}},
		{`a\&b`, []string{`a\&b`}, []int{0}},
		{`\(ab\)\1`, []string{`\(ab\)\1`}, []int{subRegex}},
		{"a(b|c)+d", []string{"a(b|c)+d"}, []int{subRegex}},
		{"(abc|def)&ghi", []string{"abc", "def", "ghi"}, []int{0, 0, 0}},
		{"[a&b]", []string{"[a&b]"}, []int{subRegex}},
		{"x^y", []string{"x^y"}, []int{0}},
		{"a$b", []string{"a$b"}, []int{0}},
	}
	for _, tt := range cases {
		t.Run(tt.expr, func(t *testing.T) {
			pats, types, _ := mustParse(t, tt.expr)
			got := patStrings(pats)
			if len(got) != len(tt.pats) {
				t.Fatalf("got %v, want %v", got, tt.pats)
			}
			for i := range got {
				if got[i] != tt.pats[i] {
					t.Errorf("pat[%d] = %q, want %q", i, got[i], tt.pats[i])
				}
				if types[i] != tt.types[i] {
					t.Errorf("type[%d] = %d, want %d", i, types[i], tt.types[i])
				}
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"a&",
		"&a",
		"a|",
		"(a",
		"a)",
		"()",
		"^",
		"$",
		"a&&b",
		`a\`,
		"a]b",
		"a(b",
		`ab\)`,
		"a(b)(", // dangling regex group
	} {
		t.Run(expr, func(t *testing.T) {
			if _, _, _, err := parseExprTree(uchars(expr)); err == nil {
				t.Fatalf("parse(%q) succeeded, want error", expr)
			}
		})
	}
}

func TestParseTreeShape(t *testing.T) {
	// a&b|c parses as (a AND b) OR c
	_, _, node := mustParse(t, "a&b|c")
	if node.op != nodeOr {
		t.Fatalf("root op = %d, want OR", node.op)
	}
	if node.left.op != nodeAnd {
		t.Fatalf("left op = %d, want AND", node.left.op)
	}
	if node.right.op != nodeLeaf || node.right.pid != 2 {
		t.Fatalf("right = %+v, want leaf pid 2", node.right)
	}
}

func TestOrCollapseToBitmap(t *testing.T) {
	pats, _, node := mustParse(t, "a|b|c|d")
	nodeCollapse(node, len(pats)/32+1)
	if node.op != nodeBitmap {
		t.Fatalf("op = %d, want bitmap", node.op)
	}
	if node.bits[0] != 0xf {
		t.Fatalf("bits = %x, want f", node.bits[0])
	}
}

func TestOrCollapseMixed(t *testing.T) {
	// only the pure-leaf OR collapses; the AND stays
	pats, _, node := mustParse(t, "(a|b)&c")
	nodeCollapse(node, len(pats)/32+1)
	if node.op != nodeAnd {
		t.Fatalf("op = %d, want AND", node.op)
	}
	if node.left.op != nodeBitmap {
		t.Fatalf("left op = %d, want bitmap", node.left.op)
	}
	if node.left.bits[0] != 0x3 {
		t.Fatalf("bits = %x, want 3", node.left.bits[0])
	}
}
