package rx

import (
	"testing"
)

func compilePatterns(t *testing.T, pats ...string) *pmm {
	t.Helper()
	us := make([][]uint16, len(pats))
	for i, p := range pats {
		us[i] = uchars(p)
	}
	m, err := compilePMM(us)
	if err != nil {
		t.Fatalf("compilePMM(%v): %v", pats, err)
	}
	return m
}

func sweep(m *pmm, text string) []pmmHit {
	var cur pmmCursor
	m.setText(&cur, uchars(text))
	var all []pmmHit
	for hits := m.step(&cur); hits != nil; hits = m.step(&cur) {
		all = append(all, hits...)
	}
	return all
}

func TestPmmSingle(t *testing.T) {
	m := compilePatterns(t, "abc")
	hits := sweep(m, "xxabcabx abc")
	want := []pmmHit{{id: 0, st: 2, ed: 5}, {id: 0, st: 9, ed: 12}}
	if len(hits) != len(want) {
		t.Fatalf("hits = %v, want %v", hits, want)
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Errorf("hit[%d] = %v, want %v", i, hits[i], want[i])
		}
	}
}

func TestPmmOverlapping(t *testing.T) {
	// "he", "she", "his", "hers" is the classic construction example; a
	// hit for "she" must also report the suffix "he" via the fail chain.
	m := compilePatterns(t, "he", "she", "his", "hers")
	hits := sweep(m, "ushers")

	type key struct{ id, st int32 }
	found := map[key]bool{}
	for _, h := range hits {
		found[key{h.id, h.st}] = true
	}
	for _, want := range []key{
		{1, 1}, // she @ 1
		{0, 2}, // he @ 2
		{3, 2}, // hers @ 2
	} {
		if !found[want] {
			t.Errorf("missing hit %+v in %v", want, hits)
		}
	}
}

func TestPmmSharedPrefix(t *testing.T) {
	m := compilePatterns(t, "abcd", "abce")
	hits := sweep(m, "abce")
	if len(hits) != 1 || hits[0].id != 1 {
		t.Fatalf("hits = %v, want one hit for pattern 1", hits)
	}
}

func TestPmmNonASCII(t *testing.T) {
	// code units above 0xff exercise the byte-pair encoding and the mid
	// state re-alignment
	m := compilePatterns(t, "語彙")
	hits := sweep(m, "辞書の語彙と語彙論")
	if len(hits) != 2 {
		t.Fatalf("hits = %v, want 2", hits)
	}
	if hits[0].st != 3 || hits[0].ed != 5 {
		t.Fatalf("hit[0] = %v, want (3,5)", hits[0])
	}
	if hits[1].st != 6 || hits[1].ed != 8 {
		t.Fatalf("hit[1] = %v, want (6,8)", hits[1])
	}
}

func TestPmmMisalignedNoFalseHit(t *testing.T) {
	// the low byte of one unit followed by the high byte of the next must
	// not be taken for a pattern unit
	m := compilePatterns(t, "∢")
	hits := sweep(m, "ᄢ∑")
	if len(hits) != 0 {
		t.Fatalf("hits = %v, want none", hits)
	}
}

func TestPmmNilSlots(t *testing.T) {
	// nil entries are ids handled by the DFA side; they get no states
	us := [][]uint16{nil, uchars("ab"), nil}
	m, err := compilePMM(us)
	if err != nil {
		t.Fatal(err)
	}
	var cur pmmCursor
	m.setText(&cur, uchars("zab"))
	hits := m.step(&cur)
	if len(hits) != 1 || hits[0].id != 1 {
		t.Fatalf("hits = %v, want one hit for id 1", hits)
	}
}

func TestPmmEscapedOperators(t *testing.T) {
	m := compilePatterns(t, `a\&b`)
	hits := sweep(m, "xa&by")
	if len(hits) != 1 || hits[0].st != 1 || hits[0].ed != 4 {
		t.Fatalf("hits = %v, want (1,4)", hits)
	}
}
