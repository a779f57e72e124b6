package rx

// DFA construction by subset construction over the augmented syntax tree,
// and the matching loops. Transitions are stored in one flat array grouped
// by state; each state holds its index range. Within a state, transitions
// are ordered by typedChar, so the matcher scans literals first, then
// back-references, then character sets with the any-character sentinel
// last.

const (
	stateNoTrans = -1
	stateAccept  = -2

	maxDFAStates = 1<<15 - 3 // i16 range minus the two pseudo states
)

type trans struct {
	state int32
	value typedChar
	next  int32
	brbit uint32
}

type stateInfo struct {
	first, last int32 // index range into the transition array
	acceptable  bool
}

type dfa struct {
	trans    []trans
	states   []stateInfo
	charSets []charSet
	parens   int
}

// brackets records the capture positions of groups 1..9 within one match.
// Positions are code-unit offsets; -1 means unset.
type brackets struct {
	start [9]int32
	end   [9]int32
}

func (b *brackets) reset() {
	for i := range b.start {
		b.start[i] = -1
		b.end[i] = -1
	}
}

// record applies the group-open and group-close bits of a taken
// transition. Opens stick to the first position seen; closes always move
// forward.
func (b *brackets) record(brbit uint32, p, lastp int32) {
	if open := brbit & 0xffff; open != 0 {
		for i := 0; open != 0 && i < 9; i++ {
			if open&1 != 0 && b.start[i] < 0 {
				b.start[i] = lastp
			}
			open >>= 1
		}
	}
	if close := brbit >> 16 & 0xffff; close != 0 {
		for i := 0; close != 0 && i < 9; i++ {
			if close&1 != 0 {
				b.end[i] = p
			}
			close >>= 1
		}
	}
}

type alphaEntry struct {
	value typedChar
	brbit uint32
}

// compileDFA builds the automaton for one regex sub-pattern.
func compileDFA(pattern []uint16) (*dfa, error) {
	d := &dfa{}
	tree, err := buildTree(d, pattern)
	if err != nil {
		return nil, err
	}
	tree.calcPos(tree.root)
	if err := d.construct(tree); err != nil {
		return nil, err
	}
	d.indexStates()
	return d, nil
}

func (d *dfa) addTrans(state int, value typedChar, brbit uint32, next int) {
	d.trans = append(d.trans, trans{state: int32(state), value: value, next: int32(next), brbit: brbit})
}

// construct runs the worklist of position sets. Dstates[0] is
// firstpos(root); for each distinct symbol in a state the union of
// followpos over its positions becomes the successor.
func (d *dfa) construct(t *syntaxTree) error {
	dstates := []posSet{t.nodes[t.root].first.clone()}

	for marked := 0; marked < len(dstates); marked++ {
		T := dstates[marked]

		// Gather the distinct symbols of this state, sorted, merging the
		// brbit masks of equal symbols so one transition can fire several
		// group boundaries.
		alphabet := make([]alphaEntry, 0, len(T))
		for _, pos := range T {
			a := t.nodes[pos].value
			brbit := t.nodes[pos].brbit
			j := 0
			for j < len(alphabet) && alphabet[j].value < a {
				j++
			}
			if j < len(alphabet) && alphabet[j].value == a {
				alphabet[j].brbit |= brbit
			} else {
				alphabet = append(alphabet, alphaEntry{})
				copy(alphabet[j+1:], alphabet[j:])
				alphabet[j] = alphaEntry{value: a, brbit: brbit}
			}
		}

		for _, a := range alphabet {
			if a.value == endChar {
				d.addTrans(marked, endChar, a.brbit, stateAccept)
			}
			var u posSet
			for _, pos := range T {
				if t.nodes[pos].value == a.value {
					u.union(t.nodes[pos].follow)
				}
			}
			if len(u) == 0 {
				continue
			}
			next := -1
			for k := range dstates {
				if dstates[k].equal(u) {
					next = k
					break
				}
			}
			if next < 0 {
				if len(dstates) >= maxDFAStates {
					return ErrTooComplex
				}
				next = len(dstates)
				dstates = append(dstates, u)
			}
			d.addTrans(marked, a.value, a.brbit, next)
		}
	}

	d.states = make([]stateInfo, len(dstates))
	return nil
}

// indexStates fills the per-state index ranges and acceptable flags from
// the transition array, which construct leaves sorted by state.
func (d *dfa) indexStates() {
	state := -1
	for i := range d.trans {
		tr := &d.trans[i]
		if int(tr.state) > state {
			state = int(tr.state)
			d.states[state].first = int32(i)
			d.states[state].last = int32(i)
		}
		d.states[state].last++
		if tr.next == stateAccept {
			d.states[state].acceptable = true
		}
	}
}

// nextState scans the transition range [*index, last) for one that fires
// on ch. Back-reference transitions consume the captured group instead of
// a single unit; *posNext is advanced accordingly. Returns the next state
// or stateNoTrans, leaving *index at the matched transition.
func (d *dfa) nextState(index *int32, last int32, ch typedChar, bra *brackets, text []uint16, lastp int32, posNext *int32) int32 {
	for *index < last {
		tr := &d.trans[*index]
		val := tr.value

		if val == ch {
			return tr.next
		}
		switch val.kind() {
		case kindBackref:
			ref := int(val.val()) - 1
			s, e := bra.start[ref], bra.end[ref]
			if s >= 0 && e > s && int(lastp)+int(e-s) <= len(text) && equalUnits(text[lastp:lastp+(e-s)], text[s:e]) {
				*posNext = lastp + (e - s)
				return tr.next
			}
		case kindCharSet:
			if val == anyChar || d.charSets[val.val()].contains(ch.val()) {
				return tr.next
			}
		}
		*index++
	}
	return stateNoTrans
}

func equalUnits(a, b []uint16) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// traceEntry is one backtracking checkpoint: a transition range still to
// try from a prior position.
type traceEntry struct {
	state int32
	trans int32
	ptr   int32
	bra   brackets
}

// matchShort matches text[start:] in shortest-match mode. Returns whether
// a match was found and its end position.
func (d *dfa) matchShort(text []uint16, start, eot int32, bra *brackets) (bool, int32) {
	if d.states[0].acceptable {
		if charAt(text, int(start)) != charNone && start != eot {
			return true, start
		}
	}

	var trace []traceEntry
	state := int32(0)
	edloc := start
	lastp := start
	p := start
	ch := charAt(text, int(p))
	if ch != charNone {
		p++
	}
	var tindex int32

	for ch != charNone && p <= eot {
		st := &d.states[state]
		index := st.first
		if tindex != 0 {
			index = tindex
		}
		posNext := p
		newstate := d.nextState(&index, st.last, ch, bra, text, lastp, &posNext)
		p = posNext

		if newstate == stateNoTrans {
			if len(trace) > 0 {
				e := trace[len(trace)-1]
				trace = trace[:len(trace)-1]
				state = e.state
				p = e.ptr
				*bra = e.bra
				tindex = e.trans

				lastp = p
				ch = charAt(text, int(p))
				if ch != charNone {
					p++
				}
				continue
			}
			break
		}

		if tr := &d.trans[index]; tr.brbit != 0 {
			bra.record(tr.brbit, p, lastp)
			trace = append(trace, traceEntry{state: state, trans: index + 1, ptr: p, bra: *bra})
		}

		state = newstate
		edloc = p

		if d.states[state].acceptable {
			break
		}

		tindex = 0
		lastp = p
		ch = charAt(text, int(p))
		if ch != charNone {
			p++
		}
	}

	return d.states[state].acceptable, edloc
}

// matchLong matches text[start:] in longest-match mode, backtracking over
// back-reference and charset alternatives, keeping the furthest accept.
func (d *dfa) matchLong(text []uint16, start, eot int32, bra *brackets) (bool, int32) {
	var (
		trace   []traceEntry
		state   int32
		tindex  int32
		accept  bool
		acceptp int32 = -1
		abra    brackets
	)
	edloc := start
	lastp := start
	p := start
	ch := charAt(text, int(p))
	if ch != charNone {
		p++
	}

	for {
		st := &d.states[state]
		newstate := int32(stateNoTrans)
		index := st.first
		if tindex != 0 {
			index = tindex
		}
		if ch != charNone && p <= eot {
			posNext := p
			newstate = d.nextState(&index, st.last, ch, bra, text, lastp, &posNext)
			p = posNext
		}

		if newstate == stateNoTrans {
			if len(trace) > 0 {
				e := trace[len(trace)-1]
				trace = trace[:len(trace)-1]
				state = e.state
				tindex = e.trans
				p = e.ptr
				*bra = e.bra

				lastp = p
				ch = charAt(text, int(p))
				if ch != charNone {
					p++
				}
				continue
			}
			break
		}

		trace = append(trace, traceEntry{state: state, trans: index + 1, ptr: lastp, bra: *bra})
		if tr := &d.trans[index]; tr.brbit != 0 {
			bra.record(tr.brbit, p, lastp)
		}

		state = newstate
		edloc = p

		if d.states[state].acceptable {
			accept = true
			if p > acceptp {
				acceptp = p
				abra = *bra
			}
		}

		tindex = 0
		lastp = p
		ch = charAt(text, int(p))
		if ch != charNone {
			p++
		}
	}

	if accept {
		if !d.states[state].acceptable {
			edloc = acceptp
			*bra = abra
		}
		return true, edloc
	}
	return d.states[state].acceptable, edloc
}

// match reports whether text[start:] is accepted from its first position.
// eot is the end position (code units) of the searchable region.
func (d *dfa) match(text []uint16, start, eot int32, bra *brackets, mode Mode) (bool, int32) {
	bra.reset()
	if mode&Shortest != 0 {
		return d.matchShort(text, start, eot, bra)
	}
	return d.matchLong(text, start, eot, bra)
}

// exec finds the first substring of text[start:eot] accepted by the
// automaton, trying successive start positions. Returns found, start and
// end of the match.
func (d *dfa) exec(text []uint16, start, eot int32, bra *brackets, mode Mode) (bool, int32, int32) {
	for tptr := start; ; tptr++ {
		ok, ed := d.match(text, tptr, eot, bra, mode)
		if ok {
			st := tptr
			if st == ed && mode&SkipEmpty != 0 {
				// An empty match repeats forever at the same spot; step
				// over one unit, and give up at the end of text.
				st++
				ed = st
				if charAt(text, int(st)) == charNone || st >= eot {
					return false, 0, 0
				}
			}
			return true, st, ed
		}
		if charAt(text, int(tptr+1)) == charNone || tptr+1 >= eot {
			return false, 0, 0
		}
	}
}
