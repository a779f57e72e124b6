package rx

// Regex syntax tree with the position sets used for subset construction
// (Aho, Sethi, Ullman: Compilers, §3.9). The tree is an arena of nodes
// addressed by index; leaf nodes are the positions.

type treeOp uint8

const (
	opTreeLeaf treeOp = iota
	opTreeCat
	opTreeOr
	opTreeStar
	opTreePlus
	opTreeOpt
	opTreeMark // \( ... \) group; value is the group number 1..9
)

type treeNode struct {
	op                  treeOp
	value               typedChar // opTreeLeaf: the alphabet symbol; opTreeMark: group number
	left, right         int
	brbit               uint32 // group open bits 0..8, close bits 16..24
	first, last, follow posSet
}

type syntaxTree struct {
	nodes []treeNode
	root  int
}

// posSet is a sorted set of tree positions.
type posSet []int32

func (s *posSet) add(p int32) {
	for i, v := range *s {
		if v == p {
			return
		}
		if v > p {
			*s = append(*s, 0)
			copy((*s)[i+1:], (*s)[i:])
			(*s)[i] = p
			return
		}
	}
	*s = append(*s, p)
}

func (s *posSet) union(other posSet) {
	for _, p := range other {
		s.add(p)
	}
}

func (s posSet) equal(other posSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i, v := range s {
		if other[i] != v {
			return false
		}
	}
	return true
}

func (s posSet) clone() posSet {
	out := make(posSet, len(s))
	copy(out, s)
	return out
}

func (t *syntaxTree) add(op treeOp, value typedChar, left, right int) int {
	t.nodes = append(t.nodes, treeNode{op: op, value: value, left: left, right: right})
	return len(t.nodes) - 1
}

// regex tokens
type rtoken int

const (
	rtChar rtoken = iota
	rtStar
	rtPlus
	rtQuestion
	rtOr
	rtLParen
	rtRParen
	rtBMark // \(
	rtEMark // \)
	rtEnd
)

type treeParser struct {
	d   *dfa
	pat []uint16
	pos int

	tok       rtoken
	chvalue   typedChar
	markCount int
	availMark [9]bool
}

func (p *treeParser) getc() typedChar {
	c := charAt(p.pat, p.pos)
	if c != charNone {
		p.pos++
	}
	return c
}

// readCharSet parses a [...] class. A single-member non-inverted class is
// returned as the plain character itself.
func (p *treeParser) readCharSet() (typedChar, error) {
	var cs charSet
	ch := p.getc()
	if ch == charNone {
		return 0, ErrInvalidExpression
	}
	if ch.val() == opHat {
		cs.invert = true
		ch = p.getc()
		if ch == charNone {
			return 0, ErrInvalidExpression
		}
	}
	for {
		if ch.val() == opEscape {
			ch = p.getc()
			if ch == charNone {
				return 0, ErrInvalidExpression
			}
		}
		c1 := p.getc()
		if c1 == charNone {
			return 0, ErrInvalidExpression
		}
		var c2 typedChar
		if c1.val() == opAndNot { // '-': a range, read the upper bound
			c2 = p.getc()
			if c2 == charNone {
				return 0, ErrInvalidExpression
			}
			if c2.val() == opCket {
				p.pos-- // trailing '-' is literal; pretend it was absent
				c2 = ch
			} else {
				if c2.val() == opEscape {
					c2 = p.getc()
					if c2 == charNone {
						return 0, ErrInvalidExpression
					}
				}
				c1 = p.getc()
				if c1 == charNone {
					return 0, ErrInvalidExpression
				}
			}
		} else {
			c2 = ch // single character, treated as [a-a]
		}
		if ch.val() > c2.val() {
			return 0, ErrInvalidExpression
		}
		if err := cs.addRange(ch.val(), c2.val()); err != nil {
			return 0, err
		}
		ch = c1
		if ch.val() == opCket {
			break
		}
	}
	cs.normalize()

	if !cs.invert && len(cs.ranges) == 1 && cs.ranges[0].from == cs.ranges[0].to {
		return makeChar(kindChar, cs.ranges[0].from), nil
	}
	idx, err := p.d.charSetIndex(&cs)
	if err != nil {
		return 0, err
	}
	return makeChar(kindCharSet, uint16(idx)), nil
}

func (p *treeParser) readToken() error {
	ch := p.getc()
	if ch == charNone {
		p.chvalue = endChar
		p.tok = rtEnd
		return nil
	}
	switch ch.val() {
	case opStar:
		p.tok = rtStar
		return nil
	case opPlus:
		p.tok = rtPlus
		return nil
	case opQuest:
		p.tok = rtQuestion
		return nil
	case opOr:
		p.tok = rtOr
		return nil
	case opLParen:
		p.tok = rtLParen
		return nil
	case opRParen:
		p.tok = rtRParen
		return nil
	case opPeriod:
		p.chvalue = anyChar
		p.tok = rtChar
		return nil
	case opBra:
		v, err := p.readCharSet()
		if err != nil {
			return err
		}
		p.chvalue = v
		p.tok = rtChar
		return nil
	case opEscape:
		ch = p.getc()
		if ch == charNone {
			return ErrInvalidExpression
		}
		if v := ch.val(); v >= '1' && v <= '9' {
			refnum := int(v - '0')
			if !p.availMark[refnum-1] {
				return ErrInvalidExpression
			}
			p.chvalue = makeChar(kindBackref, uint16(refnum))
			p.tok = rtChar
			return nil
		}
		if ch.val() == opLParen {
			p.tok = rtBMark
			return nil
		}
		if ch.val() == opRParen {
			p.tok = rtEMark
			return nil
		}
		// any other escaped character is itself
		p.chvalue = ch
		p.tok = rtChar
		return nil
	}
	p.chvalue = ch
	p.tok = rtChar
	return nil
}

// exp parses a single character, a (...) group, or a \(...\) mark.
func (p *treeParser) exp(t *syntaxTree) (int, error) {
	var n int
	switch p.tok {
	case rtChar:
		n = t.add(opTreeLeaf, p.chvalue, 0, 0)
		if err := p.readToken(); err != nil {
			return 0, err
		}
	case rtLParen:
		// (...) both groups and captures, sharing the 1..9 numbering with
		// \(...\); parens beyond the ninth group only.
		capture := p.markCount < 9
		var m int
		if capture {
			p.markCount++
			m = p.markCount
		}
		if err := p.readToken(); err != nil {
			return 0, err
		}
		var err error
		n, err = p.reg(t)
		if err != nil {
			return 0, err
		}
		if p.tok != rtRParen {
			return 0, ErrInvalidExpression
		}
		if capture {
			p.availMark[m-1] = true
			n = t.add(opTreeMark, typedChar(m), n, 0)
		}
		if err := p.readToken(); err != nil {
			return 0, err
		}
	case rtBMark:
		if p.markCount >= 9 {
			return 0, ErrInvalidExpression
		}
		if err := p.readToken(); err != nil {
			return 0, err
		}
		p.markCount++
		m := p.markCount
		q, err := p.reg(t)
		if err != nil {
			return 0, err
		}
		if p.tok != rtEMark {
			return 0, ErrInvalidExpression
		}
		p.availMark[m-1] = true
		n = t.add(opTreeMark, typedChar(m), q, 0)
		if err := p.readToken(); err != nil {
			return 0, err
		}
	default:
		return 0, ErrInvalidExpression
	}
	return n, nil
}

func (p *treeParser) factor(t *syntaxTree) (int, error) {
	n, err := p.exp(t)
	if err != nil {
		return 0, err
	}
	switch p.tok {
	case rtStar:
		n = t.add(opTreeStar, 0, n, 0)
		err = p.readToken()
	case rtPlus:
		n = t.add(opTreePlus, 0, n, 0)
		err = p.readToken()
	case rtQuestion:
		n = t.add(opTreeOpt, 0, n, 0)
		err = p.readToken()
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *treeParser) atTermEnd() bool {
	switch p.tok {
	case rtEnd, rtOr, rtRParen, rtEMark:
		return true
	}
	return false
}

func (p *treeParser) term(t *syntaxTree) (int, error) {
	if p.atTermEnd() {
		return 0, ErrInvalidExpression
	}
	n, err := p.factor(t)
	if err != nil {
		return 0, err
	}
	for !p.atTermEnd() {
		q, err := p.factor(t)
		if err != nil {
			return 0, err
		}
		n = t.add(opTreeCat, 0, n, q)
	}
	return n, nil
}

func (p *treeParser) reg(t *syntaxTree) (int, error) {
	n, err := p.term(t)
	if err != nil {
		return 0, err
	}
	for p.tok == rtOr {
		if err := p.readToken(); err != nil {
			return 0, err
		}
		q, err := p.term(t)
		if err != nil {
			return 0, err
		}
		n = t.add(opTreeOr, 0, n, q)
	}
	return n, nil
}

// buildTree parses a regex sub-pattern into an augmented syntax tree: the
// parsed expression concatenated with the end marker.
func buildTree(d *dfa, pattern []uint16) (*syntaxTree, error) {
	t := &syntaxTree{}
	p := &treeParser{d: d, pat: pattern}
	if err := p.readToken(); err != nil {
		return nil, err
	}
	root, err := p.reg(t)
	if err != nil {
		return nil, err
	}
	if p.tok != rtEnd {
		return nil, ErrInvalidExpression
	}
	endp := t.add(opTreeLeaf, endChar, 0, 0)
	t.root = t.add(opTreeCat, 0, root, endp)
	d.parens = p.markCount
	return t, nil
}

// calcPos computes firstpos, lastpos and followpos for the subtree at nn
// and returns whether it is nullable. Group marks propagate open bits to
// the positions of firstpos and close bits to the positions of lastpos.
func (t *syntaxTree) calcPos(nn int) bool {
	n := &t.nodes[nn]
	switch n.op {
	case opTreeLeaf:
		if n.value == charNone {
			return true
		}
		n.first.add(int32(nn))
		n.last.add(int32(nn))
		return false

	case opTreeOr:
		n1 := t.calcPos(n.left)
		n2 := t.calcPos(n.right)
		n = &t.nodes[nn]
		n.first = t.nodes[n.left].first.clone()
		n.first.union(t.nodes[n.right].first)
		n.last = t.nodes[n.left].last.clone()
		n.last.union(t.nodes[n.right].last)
		return n1 || n2

	case opTreeCat:
		n1 := t.calcPos(n.left)
		n2 := t.calcPos(n.right)
		n = &t.nodes[nn]
		n.first = t.nodes[n.left].first.clone()
		if n1 {
			n.first.union(t.nodes[n.right].first)
		}
		n.last = t.nodes[n.right].last.clone()
		if n2 {
			n.last.union(t.nodes[n.left].last)
		}
		for _, pos := range t.nodes[n.left].last {
			t.nodes[pos].follow.union(t.nodes[n.right].first)
		}
		return n1 && n2

	case opTreeStar, opTreePlus:
		nullable := t.calcPos(n.left)
		n = &t.nodes[nn]
		n.first = t.nodes[n.left].first.clone()
		n.last = t.nodes[n.left].last.clone()
		for _, pos := range n.last {
			t.nodes[pos].follow.union(n.first)
		}
		if n.op == opTreeStar {
			return true
		}
		return nullable

	case opTreeOpt:
		t.calcPos(n.left)
		n = &t.nodes[nn]
		n.first = t.nodes[n.left].first.clone()
		n.last = t.nodes[n.left].last.clone()
		return true

	case opTreeMark:
		nullable := t.calcPos(n.left)
		n = &t.nodes[nn]
		n.first = t.nodes[n.left].first.clone()
		n.last = t.nodes[n.left].last.clone()
		group := uint32(n.value)
		for _, pos := range n.first {
			t.nodes[pos].brbit |= 1 << (group - 1)
		}
		for _, pos := range n.last {
			t.nodes[pos].brbit |= 1 << (group - 1 + 16)
		}
		return nullable
	}
	panic("rx: unknown tree node")
}
