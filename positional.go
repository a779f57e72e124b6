package seiche

import (
	"fmt"
	"sort"
)

// Positional operators consume per-document position iterators of their
// operands on top of the usual docID traversal: a candidate document
// must first match every operand, then satisfy the position predicate.

// windowNode requires one position per operand such that all of them fit
// inside a window of max tokens (and span at least min). Ordered windows
// additionally require the positions in operand order.
type windowNode struct {
	min, max  int
	unordered bool
	children  []queryNode

	lastDoc   uint32
	lastValid bool
	lastLocs  []uint32 // window start positions
}

func (n *windowNode) matches(d uint32) []uint32 {
	if n.lastValid && n.lastDoc == d {
		return n.lastLocs
	}
	n.lastDoc, n.lastValid = d, true
	n.lastLocs = nil

	locs := make([][]uint32, len(n.children))
	for i, c := range n.children {
		locs[i] = collectLocs(c.locations(d))
		if len(locs[i]) == 0 {
			return nil
		}
	}
	if n.unordered {
		n.lastLocs = unorderedWindows(locs, n.min, n.max)
	} else {
		n.lastLocs = orderedWindows(locs, n.min, n.max)
	}
	return n.lastLocs
}

// unorderedWindows finds window start positions where one position per
// operand fits in a span within [min, max], any order.
func unorderedWindows(locs [][]uint32, min, max int) []uint32 {
	// k-way sweep: repeatedly measure the spread of the current frontier
	// and advance the smallest member
	idx := make([]int, len(locs))
	var out []uint32
	for {
		lo, hi, loList := locs[0][idx[0]], locs[0][idx[0]], 0
		for i := range locs {
			v := locs[i][idx[i]]
			if v < lo {
				lo, loList = v, i
			}
			if v > hi {
				hi = v
			}
		}
		spread := int(hi-lo) + 1
		if spread <= max && spread >= min {
			out = append(out, lo)
		}
		idx[loList]++
		if idx[loList] >= len(locs[loList]) {
			return out
		}
	}
}

// orderedWindows finds window start positions with one position per
// operand, strictly increasing in operand order, spanning within
// [min, max].
func orderedWindows(locs [][]uint32, min, max int) []uint32 {
	var out []uint32
	for _, start := range locs[0] {
		p := start
		ok := true
		for _, l := range locs[1:] {
			j := sort.Search(len(l), func(j int) bool { return l[j] > p })
			if j >= len(l) {
				ok = false
				break
			}
			p = l[j]
		}
		if !ok {
			break
		}
		spread := int(p-start) + 1
		if spread <= max && spread >= min {
			out = append(out, start)
		}
	}
	return out
}

func (n *windowNode) lowerBound(d uint32) (uint32, bool) {
	for {
		cand, ok := andLowerBound(n.children, d)
		if !ok {
			return 0, false
		}
		if len(n.matches(cand)) > 0 {
			return cand, true
		}
		d = cand + 1
	}
}

func (n *windowNode) evaluate(d uint32) bool {
	for _, c := range n.children {
		if !c.evaluate(d) {
			return false
		}
	}
	return len(n.matches(d)) > 0
}

// firstStep passes through the driving child.
func (n *windowNode) firstStep(d uint32) (float64, error) {
	return n.children[0].firstStep(d)
}

func (n *windowNode) tf(d uint32) uint32 {
	return uint32(len(n.matches(d)))
}

func (n *windowNode) locations(d uint32) locIterator {
	return newSliceLocs(n.matches(d))
}

func (n *windowNode) estimatedDF() int {
	df := n.children[0].estimatedDF()
	for _, c := range n.children[1:] {
		if v := c.estimatedDF(); v < df {
			df = v
		}
	}
	return df
}

func (n *windowNode) key() string {
	op := fmt.Sprintf("#window[%d,%d]", n.min, n.max)
	if n.unordered {
		op = fmt.Sprintf("#uwindow[%d,%d]", n.min, n.max)
	}
	return childKey(op, n.children)
}

func (n *windowNode) visitLeaves(f func(*leafNode)) {
	for _, c := range n.children {
		c.visitLeaves(f)
	}
}

// distanceNode requires its two operands in order with a gap within
// [min, max] tokens.
type distanceNode struct {
	min, max    int
	left, right queryNode

	lastDoc   uint32
	lastValid bool
	lastLocs  []uint32
}

func (n *distanceNode) matches(d uint32) []uint32 {
	if n.lastValid && n.lastDoc == d {
		return n.lastLocs
	}
	n.lastDoc, n.lastValid = d, true
	n.lastLocs = nil

	ll := collectLocs(n.left.locations(d))
	rl := collectLocs(n.right.locations(d))
	for _, p := range ll {
		j := sort.Search(len(rl), func(j int) bool { return rl[j] > p })
		for ; j < len(rl); j++ {
			gap := int(rl[j] - p)
			if gap > n.max {
				break
			}
			if gap >= n.min {
				n.lastLocs = append(n.lastLocs, p)
				break
			}
		}
	}
	return n.lastLocs
}

func (n *distanceNode) lowerBound(d uint32) (uint32, bool) {
	for {
		cand, ok := andLowerBound([]queryNode{n.left, n.right}, d)
		if !ok {
			return 0, false
		}
		if len(n.matches(cand)) > 0 {
			return cand, true
		}
		d = cand + 1
	}
}

func (n *distanceNode) evaluate(d uint32) bool {
	return n.left.evaluate(d) && n.right.evaluate(d) && len(n.matches(d)) > 0
}

func (n *distanceNode) firstStep(d uint32) (float64, error) {
	return n.left.firstStep(d)
}

func (n *distanceNode) tf(d uint32) uint32 {
	return uint32(len(n.matches(d)))
}

func (n *distanceNode) locations(d uint32) locIterator {
	return newSliceLocs(n.matches(d))
}

func (n *distanceNode) estimatedDF() int {
	if l, r := n.left.estimatedDF(), n.right.estimatedDF(); l < r {
		return l
	} else {
		return r
	}
}

func (n *distanceNode) key() string {
	return fmt.Sprintf("#distance[%d,%d](%s,%s)", n.min, n.max, n.left.key(), n.right.key())
}

func (n *distanceNode) visitLeaves(f func(*leafNode)) {
	n.left.visitLeaves(f)
	n.right.visitLeaves(f)
}

// wordNode enforces word boundaries. Over a word or dual index the
// wrapped term already tokenizes on word boundaries, so the node is a
// marker that delegates to its child.
type wordNode struct {
	child queryNode
}

func (n *wordNode) lowerBound(d uint32) (uint32, bool)  { return n.child.lowerBound(d) }
func (n *wordNode) evaluate(d uint32) bool              { return n.child.evaluate(d) }
func (n *wordNode) firstStep(d uint32) (float64, error) { return n.child.firstStep(d) }
func (n *wordNode) tf(d uint32) uint32                  { return n.child.tf(d) }
func (n *wordNode) locations(d uint32) locIterator      { return n.child.locations(d) }
func (n *wordNode) estimatedDF() int                    { return n.child.estimatedDF() }
func (n *wordNode) key() string                         { return fmt.Sprintf("#word(%s)", n.child.key()) }
func (n *wordNode) visitLeaves(f func(*leafNode))       { n.child.visitLeaves(f) }

// andLowerBound advances every node to a common document.
func andLowerBound(nodes []queryNode, d uint32) (uint32, bool) {
	for {
		cand, ok := nodes[0].lowerBound(d)
		if !ok {
			return 0, false
		}
		max := cand
		for _, c := range nodes[1:] {
			v, ok := c.lowerBound(cand)
			if !ok {
				return 0, false
			}
			if v > max {
				max = v
			}
		}
		if max == cand {
			return cand, true
		}
		d = max
	}
}
