package rx

import "testing"

func compileOne(t *testing.T, pattern string) *dfa {
	t.Helper()
	d, err := compileDFA(uchars(pattern))
	if err != nil {
		t.Fatalf("compileDFA(%q): %v", pattern, err)
	}
	return d
}

func execOne(t *testing.T, d *dfa, text string, mode Mode) (bool, int, int) {
	t.Helper()
	u := uchars(text)
	var bra brackets
	ok, st, ed := d.exec(u, 0, int32(len(u)), &bra, mode)
	return ok, int(st), int(ed)
}

func TestDfaExec(t *testing.T) {
	cases := []struct {
		pattern, text string
		mode          Mode
		ok            bool
		st, ed        int
	}{
		{"abc", "xxabcxx", Longest, true, 2, 5},
		{"abc", "ab", Longest, false, 0, 0},
		{"a*", "aaab", Longest, true, 0, 3},
		{"a*", "baaa", Longest, true, 0, 0}, // empty match at 0
		{"a+", "baaa", Longest, true, 1, 4},
		{"a+", "baaa", Shortest, true, 1, 2},
		{"a|b", "cba", Longest, true, 1, 2},
		{"ab?c", "ac", Longest, true, 0, 2},
		{"ab?c", "abc", Longest, true, 0, 3},
		{".x", "ax", Longest, true, 0, 2},
		{"[a-c]z", "bz", Longest, true, 0, 2},
		{"[^a-c]z", "bz", Longest, false, 0, 0},
		{"[^a-c]z", "dz", Longest, true, 0, 2},
		{"(ab|cd)+", "xcdabcdy", Longest, true, 1, 7},
		{"[]a]b", "]b", Longest, true, 0, 2},
		{"[a-]x", "-x", Longest, true, 0, 2},
	}
	for _, tt := range cases {
		t.Run(tt.pattern+"/"+tt.text, func(t *testing.T) {
			d := compileOne(t, tt.pattern)
			ok, st, ed := execOne(t, d, tt.text, tt.mode)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (st != tt.st || ed != tt.ed) {
				t.Fatalf("match = (%d,%d), want (%d,%d)", st, ed, tt.st, tt.ed)
			}
		})
	}
}

func TestDfaGroups(t *testing.T) {
	d := compileOne(t, `\(a*\)b`)
	u := uchars("aaab")
	var bra brackets
	ok, _, _ := d.exec(u, 0, int32(len(u)), &bra, Longest)
	if !ok {
		t.Fatal("no match")
	}
	if bra.start[0] != 0 || bra.end[0] != 3 {
		t.Fatalf("group 1 = (%d,%d), want (0,3)", bra.start[0], bra.end[0])
	}
}

func TestDfaBackref(t *testing.T) {
	d := compileOne(t, `\(ab\)\1`)
	u := uchars("abab")
	var bra brackets
	ok, st, ed := d.exec(u, 0, int32(len(u)), &bra, Longest)
	if !ok || st != 0 || ed != 4 {
		t.Fatalf("match = (%v,%d,%d), want (true,0,4)", ok, st, ed)
	}
	if bra.start[0] != 0 || bra.end[0] != 2 {
		t.Fatalf("group 1 = (%d,%d), want (0,2)", bra.start[0], bra.end[0])
	}

	u = uchars("abba")
	ok, _, _ = d.exec(u, 0, int32(len(u)), &bra, Longest)
	if ok {
		t.Fatal("matched abba, want no match")
	}
}

func TestDfaBackrefUnavailable(t *testing.T) {
	if _, err := compileDFA(uchars(`\1ab`)); err == nil {
		t.Fatal("compile succeeded, want error for forward back-reference")
	}
}

func TestDfaTransOrder(t *testing.T) {
	// literals sort before charsets; the any sentinel is last
	d := compileOne(t, "a|[b-d]|.")
	st := d.states[0]
	var last typedChar
	for _, tr := range d.trans[st.first:st.last] {
		if tr.value < last {
			t.Fatalf("transitions out of order: %x after %x", tr.value, last)
		}
		last = tr.value
	}
}

func TestDfaAcceptableInvariant(t *testing.T) {
	// acceptable is set exactly on states with an END transition to the
	// accept pseudo-state
	d := compileOne(t, "ab*c")
	for s, info := range d.states {
		hasEnd := false
		for _, tr := range d.trans[info.first:info.last] {
			if tr.value == endChar && tr.next == stateAccept {
				hasEnd = true
			}
		}
		if hasEnd != info.acceptable {
			t.Fatalf("state %d: acceptable=%v, end-transition=%v", s, info.acceptable, hasEnd)
		}
	}
}

func TestDfaCharSetDedup(t *testing.T) {
	d := compileOne(t, "[a-c]x[a-c]y")
	if len(d.charSets) != 1 {
		t.Fatalf("charSets = %d, want 1 (deduplicated)", len(d.charSets))
	}
}

func TestDfaStateCap(t *testing.T) {
	if maxDFAStates != 1<<15-3 {
		t.Fatalf("maxDFAStates = %d", maxDFAStates)
	}
}
