// Package rx implements the extended regular-expression engine: boolean
// combinations of sub-patterns (AND, OR, ANDNOT with anchors), each
// sub-pattern either a literal string matched by a multi-pattern
// automaton or a regex compiled to a DFA with capture groups and
// back-references.
//
// All matching is over UTF-16 code units; every offset in a Match is a
// code-unit offset into the encoded text.
package rx

// Mode selects the matching behavior.
type Mode int

const (
	// Longest reports the longest match of each regex sub-pattern.
	Longest Mode = 0
	// Shortest reports the shortest match of each regex sub-pattern.
	Shortest Mode = 1
	// SkipEmpty avoids re-reporting the same empty match at the same
	// position.
	SkipEmpty Mode = 2

	modeAdvance Mode = 4 // anchor the whole expression at text[0]

	dfaModeMask = Shortest | SkipEmpty
)

// Group is one capture position pair, in code units. Start is -1 when the
// group did not participate in the match.
type Group struct {
	Start, End int
}

// Match is one result of Step, Advance or Walk.
type Match struct {
	Start, End int

	// SubPatternID identifies the sub-pattern of a Walk result. It is
	// zero for Step and Advance.
	SubPatternID int

	// Groups holds the capture positions of groups 1..9.
	Groups [9]Group
}

// Pattern is a compiled extended expression. It is immutable after
// Compile and safe for concurrent use.
type Pattern struct {
	node *exprNode

	pmm  *pmm
	dfas []*dfa // head-anchored sub-patterns first, then plain regexes
	rids []int  // dfa slot -> pattern id

	pnum int // number of sub-patterns
	rnum int // number of DFA slots
	hnum int // number of head-anchored slots

	tails []uint32 // bitmap of tail-anchored pattern ids, nil if none
}

// Units encodes s as the UTF-16 code units the engine matches over.
func Units(s string) []uint16 { return uchars(s) }

// FromUnits decodes code units back to a string.
func FromUnits(u []uint16) string { return ucstring(u) }

// Compile parses and compiles an extended expression.
func Compile(pattern string) (*Pattern, error) {
	return CompileUnits(uchars(pattern))
}

// CompileUnits is Compile for callers that already hold UTF-16 text.
func CompileUnits(pattern []uint16) (*Pattern, error) {
	pats, types, node, err := parseExprTree(pattern)
	if err != nil {
		return nil, err
	}
	pnum := len(pats)

	rnum := 0
	for _, t := range types {
		if t&(subRegex|subHead) != 0 {
			rnum++
		}
	}
	bnum := pnum/32 + 1
	nodeCollapse(node, bnum)

	p := &Pattern{
		node: node,
		dfas: make([]*dfa, 0, rnum),
		rids: make([]int, 0, rnum),
		pnum: pnum,
		rnum: rnum,
	}

	// head-anchored sub-patterns first; record tail anchors
	for id, t := range types {
		if t&subHead != 0 {
			if len(pats[id]) == 0 {
				// '^$': matches only the empty text, no automaton
				p.dfas = append(p.dfas, nil)
			} else {
				d, err := compileDFA(pats[id])
				if err != nil {
					return nil, err
				}
				p.dfas = append(p.dfas, d)
			}
			p.rids = append(p.rids, id)
			pats[id] = nil
		}
		if t&subTail != 0 {
			if p.tails == nil {
				p.tails = make([]uint32, bnum)
			}
			bitOn(p.tails, id)
		}
	}
	p.hnum = len(p.dfas)

	// remaining regexes
	for id, t := range types {
		if t&subHead == 0 && t&subRegex != 0 {
			d, err := compileDFA(pats[id])
			if err != nil {
				return nil, err
			}
			p.dfas = append(p.dfas, d)
			p.rids = append(p.rids, id)
			pats[id] = nil
		}
	}

	// one automaton for every plain string
	if p.rnum < pnum {
		m, err := compilePMM(pats)
		if err != nil {
			return nil, err
		}
		p.pmm = m
	}

	return p, nil
}

// Step finds the first region of text satisfying the whole expression.
// Returns nil when there is no match.
func (p *Pattern) Step(mode Mode, text string) (*Match, error) {
	return p.StepUnits(mode, uchars(text))
}

// Advance is Step anchored at text[0].
func (p *Pattern) Advance(mode Mode, text string) (*Match, error) {
	return p.AdvanceUnits(mode, uchars(text))
}

// Walk finds every occurrence of every sub-pattern and reports them
// tagged by sub-pattern id, provided the whole expression is satisfied.
// Results are ordered by (start, end).
func (p *Pattern) Walk(mode Mode, text string) ([]Match, error) {
	return p.WalkUnits(mode, uchars(text))
}

// StepUnits is Step over UTF-16 code units.
func (p *Pattern) StepUnits(mode Mode, text []uint16) (*Match, error) {
	if p == nil {
		return nil, ErrInvalidHandle
	}
	return p.step(mode, text)
}

// AdvanceUnits is Advance over UTF-16 code units.
func (p *Pattern) AdvanceUnits(mode Mode, text []uint16) (*Match, error) {
	if p == nil {
		return nil, ErrInvalidHandle
	}
	return p.step(mode|modeAdvance, text)
}

// WalkUnits is Walk over UTF-16 code units.
func (p *Pattern) WalkUnits(mode Mode, text []uint16) ([]Match, error) {
	if p == nil {
		return nil, ErrInvalidHandle
	}
	return p.walk(mode, text)
}

// bit helpers over []uint32 bitmaps sized pnum/32+1

func bitOn(b []uint32, i int)  { b[i/32] |= 1 << (i % 32) }
func bitOff(b []uint32, i int) { b[i/32] &^= 1 << (i % 32) }
func bitCheck(b []uint32, i int) bool {
	return b != nil && b[i/32]&(1<<(i%32)) != 0
}

// nodeCollapse rewrites OR subtrees whose operands are all leaves into a
// single bitmap node; checking a bitmap is one AND per word instead of a
// descent. Returns whether the subtree collapsed.
func nodeCollapse(n *exprNode, bnum int) bool {
	switch n.op {
	case nodeOr:
		l, r := n.left, n.right
		if l.op == nodeLeaf {
			if r.op == nodeLeaf {
				bits := make([]uint32, bnum)
				bitOn(bits, l.pid)
				bitOn(bits, r.pid)
				*n = exprNode{op: nodeBitmap, bits: bits}
				return true
			}
			if nodeCollapse(r, bnum) {
				bits := r.bits
				bitOn(bits, l.pid)
				*n = exprNode{op: nodeBitmap, bits: bits}
				return true
			}
		} else if nodeCollapse(l, bnum) {
			bits := l.bits
			if r.op == nodeLeaf {
				bitOn(bits, r.pid)
				*n = exprNode{op: nodeBitmap, bits: bits}
				return true
			}
			if nodeCollapse(r, bnum) {
				for i, w := range r.bits {
					bits[i] |= w
				}
				*n = exprNode{op: nodeBitmap, bits: bits}
				return true
			}
		}
	case nodeAnd, nodeAndNot:
		nodeCollapse(n.left, bnum)
		nodeCollapse(n.right, bnum)
	}
	return false
}

// nodeCheck evaluates the boolean tree against a bitmap.
func nodeCheck(n *exprNode, bitmap []uint32) bool {
	switch n.op {
	case nodeOr:
		return nodeCheck(n.left, bitmap) || nodeCheck(n.right, bitmap)
	case nodeAnd:
		return nodeCheck(n.left, bitmap) && nodeCheck(n.right, bitmap)
	case nodeAndNot:
		return nodeCheck(n.left, bitmap) && !nodeCheck(n.right, bitmap)
	case nodeLeaf:
		return bitCheck(bitmap, n.pid)
	case nodeBitmap:
		for i, w := range n.bits {
			if bitmap[i]&w != 0 {
				return true
			}
		}
		return false
	}
	panic("rx: unknown boolean node")
}

// notOn sets the bits of pattern ids under an odd number of ANDNOT right
// branches. Those sub-patterns must be proven absent before the
// expression can succeed, so they start as present and as impossible.
func notOn(bitmap []uint32, n *exprNode, on bool) {
	switch n.op {
	case nodeOr, nodeAnd:
		notOn(bitmap, n.left, on)
		notOn(bitmap, n.right, on)
	case nodeAndNot:
		notOn(bitmap, n.left, on)
		notOn(bitmap, n.right, !on)
	case nodeLeaf:
		if on {
			bitOn(bitmap, n.pid)
		}
	case nodeBitmap:
		if on {
			for i, w := range n.bits {
				bitmap[i] |= w
			}
		}
	}
}

// matchState is the per-call scratch of one Step or Walk: the present and
// possible bitmaps plus the per-sub-pattern capture sets.
type matchState struct {
	present  []uint32 // sub-patterns found so far
	possible []uint32 // sub-patterns that could still be found
	bras     []brackets
}

func (p *Pattern) newMatchState() *matchState {
	bnum := p.pnum/32 + 1
	s := &matchState{
		present:  make([]uint32, bnum),
		possible: make([]uint32, bnum),
		bras:     make([]brackets, p.pnum),
	}
	for i := range s.bras {
		s.bras[i].reset()
	}
	notOn(s.present, p.node, false)
	for b := range s.possible {
		s.possible[b] = ^s.present[b]
	}
	return s
}

// dfaAdvance matches one DFA-compiled sub-pattern at the start of text,
// honoring a tail anchor. A nil dfa is the '^$' sub-pattern.
func (p *Pattern) dfaAdvance(d *dfa, isTail bool, text []uint16, bra *brackets, mode Mode) (bool, int32) {
	eot := int32(len(text))
	if d == nil { // '^$'
		if len(text) == 0 {
			return true, 0
		}
		return false, 0
	}
	ok, ed := d.match(text, 0, eot, bra, mode)
	isFirst := mode&Shortest != 0
	for ok {
		if isTail && charAt(text, int(ed)) != charNone && ed != eot {
			if isFirst {
				// shortest match failed the tail anchor; the longest
				// match from the same origin may still reach the end
				ok, ed = d.match(text, 0, eot, bra, mode&^Shortest)
				isFirst = false
				continue
			}
			return false, 0
		}
		return true, ed
	}
	return false, 0
}

// dfaStep finds the first occurrence of a regex sub-pattern anywhere in
// text, honoring a tail anchor.
func (p *Pattern) dfaStep(d *dfa, isTail bool, text []uint16, from int32, bra *brackets, mode Mode) (bool, int32, int32) {
	eot := int32(len(text))
	isFirst := mode&Shortest != 0
	ok, st, ed := d.exec(text, from, eot, bra, mode)
	for ok {
		if isTail && charAt(text, int(ed)) != charNone && ed != eot {
			if isFirst {
				ok, st, ed = d.exec(text, from, eot, bra, mode&^Shortest)
				isFirst = false
			} else {
				ok, st, ed = d.exec(text, st+1, eot, bra, mode|SkipEmpty)
				isFirst = mode&Shortest != 0
			}
			continue
		}
		return true, st, ed
	}
	return false, 0, 0
}

// step implements Step and Advance. The expression succeeds as soon as
// the boolean tree holds over the present bitmap, and fails as soon as it
// cannot hold even if every still-possible sub-pattern were found.
func (p *Pattern) step(mode Mode, text []uint16) (*Match, error) {
	s := p.newMatchState()
	advance := mode&modeAdvance != 0
	dfaMode := mode & dfaModeMask

	stloc := int32(-1)
	edloc := int32(0)

	finish := func() *Match {
		m := &Match{Start: int(stloc), End: int(edloc)}
		if stloc < 0 {
			m.Start = 0
		}
		mergeGroups(m, s.bras)
		return m
	}

	// head-anchored sub-patterns, one at a time
	for n := 0; n < p.hnum; n++ {
		id := p.rids[n]
		if ok, ed := p.dfaAdvance(p.dfas[n], bitCheck(p.tails, id), text, &s.bras[id], dfaMode); ok {
			bitOn(s.present, id)
			if bitCheck(s.possible, id) {
				if stloc < 0 {
					stloc = 0
				}
				if edloc < ed {
					edloc = ed
				}
			}
			bitOn(s.possible, id)
		} else {
			bitOff(s.present, id)
			bitOff(s.possible, id)
		}
		if nodeCheck(p.node, s.present) {
			return finish(), nil
		}
		if !nodeCheck(p.node, s.possible) {
			return nil, nil
		}
	}

	// plain strings, all in one sweep
	if p.pmm != nil {
		bnum := len(s.present)
		seen := make([]uint32, bnum) // ids matched here, or not expected here
		prev := make([]uint32, bnum) // possible before the sweep
		for n := 0; n < p.rnum; n++ {
			bitOn(seen, p.rids[n])
		}
		copy(prev, s.possible)

		var cur pmmCursor
		p.pmm.setText(&cur, text)
		for hits := p.pmm.step(&cur); hits != nil; hits = p.pmm.step(&cur) {
			for _, h := range hits {
				id := int(h.id)
				if bitCheck(p.tails, id) && charAt(text, int(h.ed)) != charNone && int(h.ed) != len(text) {
					continue // tail-anchored but not at the tail
				}
				bitOn(seen, id)
				bitOn(s.present, id)
				if bitCheck(prev, id) {
					if stloc < 0 || stloc > h.st {
						stloc = h.st
					}
					if edloc < h.ed {
						edloc = h.ed
					}
				}
				bitOn(s.possible, id)
				if nodeCheck(p.node, s.present) && (!advance || stloc == 0) {
					return finish(), nil
				}
				if !nodeCheck(p.node, s.possible) {
					return nil, nil
				}
			}
		}
		for b := 0; b < bnum; b++ {
			// expected here but never seen: clear
			s.present[b] &= seen[b]
			s.possible[b] &= seen[b]
		}
		if nodeCheck(p.node, s.present) && (!advance || stloc == 0) {
			return finish(), nil
		}
		if !nodeCheck(p.node, s.possible) {
			return nil, nil
		}
	}

	// unanchored regexes, one at a time
	for n := p.hnum; n < p.rnum; n++ {
		id := p.rids[n]
		if ok, st, ed := p.dfaStep(p.dfas[n], bitCheck(p.tails, id), text, 0, &s.bras[id], dfaMode); ok {
			bitOn(s.present, id)
			if bitCheck(s.possible, id) {
				if stloc < 0 || stloc > st {
					stloc = st
				}
				if edloc < ed {
					edloc = ed
				}
			}
			bitOn(s.possible, id)
		} else {
			bitOff(s.present, id)
			bitOff(s.possible, id)
		}
		if nodeCheck(p.node, s.present) && (!advance || stloc == 0) {
			return finish(), nil
		}
		if !nodeCheck(p.node, s.possible) {
			return nil, nil
		}
	}

	return nil, nil
}

// walk implements Walk: every occurrence of every sub-pattern, provided
// the expression as a whole holds.
func (p *Pattern) walk(mode Mode, text []uint16) ([]Match, error) {
	s := p.newMatchState()
	dfaMode := mode & dfaModeMask
	bnum := len(s.present)

	prev := make([]uint32, bnum)
	copy(prev, s.possible)

	var out []Match
	appendMatch := func(id int, st, ed int32, bra *brackets) {
		m := Match{Start: int(st), End: int(ed), SubPatternID: id}
		for i := range m.Groups {
			m.Groups[i] = Group{Start: -1, End: -1}
		}
		if bra != nil {
			setGroups(&m, bra)
		}
		out = append(out, m)
	}

	for n := 0; n < p.hnum; n++ {
		id := p.rids[n]
		var bra brackets
		bra.reset()
		if ok, ed := p.dfaAdvance(p.dfas[n], bitCheck(p.tails, id), text, &bra, dfaMode); ok {
			bitOn(s.present, id)
			if bitCheck(s.possible, id) {
				appendMatch(id, 0, ed, &bra)
			}
			bitOn(s.possible, id)
		} else {
			bitOff(s.present, id)
			bitOff(s.possible, id)
		}
		if !nodeCheck(p.node, s.possible) {
			return nil, nil
		}
	}

	if p.pmm != nil {
		seen := make([]uint32, bnum)
		for n := 0; n < p.rnum; n++ {
			bitOn(seen, p.rids[n])
		}

		var cur pmmCursor
		p.pmm.setText(&cur, text)
		for hits := p.pmm.step(&cur); hits != nil; hits = p.pmm.step(&cur) {
			for _, h := range hits {
				id := int(h.id)
				if bitCheck(p.tails, id) && charAt(text, int(h.ed)) != charNone && int(h.ed) != len(text) {
					continue
				}
				bitOn(seen, id)
				bitOn(s.present, id)
				if bitCheck(prev, id) {
					appendMatch(id, h.st, h.ed, nil)
				}
				bitOn(s.possible, id)
				if !nodeCheck(p.node, s.possible) {
					return nil, nil
				}
			}
		}
		for b := 0; b < bnum; b++ {
			s.present[b] &= seen[b]
			s.possible[b] &= seen[b]
		}
		if !nodeCheck(p.node, s.possible) {
			return nil, nil
		}
	}

	for n := p.hnum; n < p.rnum; n++ {
		id := p.rids[n]
		var bra brackets
		bra.reset()
		ok, st, ed := p.dfaStep(p.dfas[n], bitCheck(p.tails, id), text, 0, &bra, dfaMode)
		for ok {
			bitOn(s.present, id)
			if bitCheck(prev, id) {
				appendMatch(id, st, ed, &bra)
			}
			bitOn(s.possible, id)
			ok, st, ed = p.dfaStep(p.dfas[n], bitCheck(p.tails, id), text, ed, &bra, dfaMode|SkipEmpty)
		}
		if !bitCheck(s.present, id) || !bitCheck(s.possible, id) {
			bitOff(s.present, id)
			bitOff(s.possible, id)
			if !nodeCheck(p.node, s.possible) {
				return nil, nil
			}
		}
	}

	if !nodeCheck(p.node, s.present) {
		return nil, nil
	}

	sortMatches(out)
	return out, nil
}

func setGroups(m *Match, bra *brackets) {
	for i := 0; i < 9; i++ {
		if bra.start[i] >= 0 && bra.end[i] >= 0 {
			m.Groups[i] = Group{Start: int(bra.start[i]), End: int(bra.end[i])}
		}
	}
}

// mergeGroups fills a Step match's groups from the first sub-pattern that
// captured each group.
func mergeGroups(m *Match, bras []brackets) {
	for i := range m.Groups {
		m.Groups[i] = Group{Start: -1, End: -1}
	}
	for pi := range bras {
		for i := 0; i < 9; i++ {
			if m.Groups[i].Start < 0 && bras[pi].start[i] >= 0 && bras[pi].end[i] >= 0 {
				m.Groups[i] = Group{Start: int(bras[pi].start[i]), End: int(bras[pi].end[i])}
			}
		}
	}
}

func sortMatches(ms []Match) {
	// insertion sort; hit lists are short and mostly ordered already
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0; j-- {
			if ms[j].Start < ms[j-1].Start ||
				(ms[j].Start == ms[j-1].Start && ms[j].End < ms[j-1].End) {
				ms[j], ms[j-1] = ms[j-1], ms[j]
			} else {
				break
			}
		}
	}
}
