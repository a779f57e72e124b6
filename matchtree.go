package seiche

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seiche-search/seiche/score"
)

// The validated query is a DAG of queryNodes over one shard. A node
// iterates the docID axis through lowerBound; the engine advances to the
// maximum over AND children and the minimum over OR children. For every
// node, evaluate(d) holds exactly when lowerBound(d) returns d.
type queryNode interface {
	// lowerBound returns the smallest accepting docID >= d.
	lowerBound(d uint32) (uint32, bool)

	// evaluate reports whether d matches.
	evaluate(d uint32) bool

	// firstStep combines the partial scores of d's first ranking step.
	firstStep(d uint32) (float64, error)

	// tf returns the term frequency of d under this node.
	tf(d uint32) uint32

	// locations returns the match positions within d, nil when the node
	// cannot provide them.
	locations(d uint32) locIterator

	// estimatedDF estimates the document frequency, for child ordering.
	estimatedDF() int

	// key is the structural prefix string used to share equal subtrees.
	key() string

	// visitLeaves visits every term leaf under the node.
	visitLeaves(f func(*leafNode))
}

// locIterator lazily yields ascending positions; the engine pulls
// locations only when a positional operator needs them.
type locIterator interface {
	next() (uint32, bool)
}

type sliceLocs struct {
	locs []uint32
	i    int
}

func (s *sliceLocs) next() (uint32, bool) {
	if s.i >= len(s.locs) {
		return 0, false
	}
	v := s.locs[s.i]
	s.i++
	return v, true
}

func newSliceLocs(locs []uint32) locIterator { return &sliceLocs{locs: locs} }

func collectLocs(it locIterator) []uint32 {
	if it == nil {
		return nil
	}
	var out []uint32
	for v, ok := it.next(); ok; v, ok = it.next() {
		out = append(out, v)
	}
	return out
}

// tfPair is one buffered (document, term frequency) observation for the
// extended first step.
type tfPair struct {
	docID uint32
	tf    uint32
}

// scoredLeaf is a node that scores one query term: plain term leaves
// and gram phrases. The engine reads TF columns from these and drives
// the trailing extended-first-step pass through them.
type scoredLeaf interface {
	queryNode

	// termText is the surface form of the query term.
	termText() string

	// extended reports whether the calculator defers its first step.
	extended() bool

	// finishDeferred runs the trailing extended-first-step pass.
	finishDeferred(stats score.CollectionStats)

	// totalTF is the term's collection-wide total frequency, for the
	// extended calculators' statistics.
	totalTF() uint64
}

// leafNode reads one term's postings. The calculator is owned by the
// leaf (duplicated at validate time); extended calculators buffer
// (docID, tf) pairs during traversal and score in a trailing pass.
type leafNode struct {
	term string
	pl   *postingList
	calc score.Calculator
	ext  score.Extended // non-nil when calc defers its first step

	deferred []tfPair
	exScores map[uint32]float64

	onMiss func(docID uint32) // document-length miss hook
}

func (n *leafNode) lowerBound(d uint32) (uint32, bool) { return n.pl.lowerBound(d) }

func (n *leafNode) evaluate(d uint32) bool {
	_, ok := n.pl.find(d)
	return ok
}

func (n *leafNode) firstStep(d uint32) (float64, error) {
	if n.exScores != nil {
		// trailing pass after finishDeferred: replay computed scores
		return n.exScores[d], nil
	}
	tf := n.pl.tf(d)
	if n.ext != nil {
		// defer until collection statistics are known
		n.deferred = append(n.deferred, tfPair{docID: d, tf: tf})
		return 0, nil
	}
	partial, ok := n.calc.FirstStep(tf, d)
	if !ok {
		// missing document length: skip with score 0
		if n.onMiss != nil {
			n.onMiss(d)
		}
		return 0, nil
	}
	return partial * n.calc.Prepared(), nil
}

// finishDeferred runs the trailing extended-first-step pass.
func (n *leafNode) finishDeferred(stats score.CollectionStats) {
	if n.ext == nil {
		return
	}
	n.ext.PrepareEx(stats)
	n.exScores = make(map[uint32]float64, len(n.deferred))
	for _, p := range n.deferred {
		s, ok := n.ext.FirstStepEx(p.tf, p.docID)
		if !ok {
			if n.onMiss != nil {
				n.onMiss(p.docID)
			}
			continue
		}
		n.exScores[p.docID] = s * n.calc.Prepared()
	}
	n.deferred = nil
}

func (n *leafNode) tf(d uint32) uint32 { return n.pl.tf(d) }

func (n *leafNode) locations(d uint32) locIterator {
	locs := n.pl.locations(d)
	if locs == nil {
		return nil
	}
	return newSliceLocs(locs)
}

func (n *leafNode) estimatedDF() int { return n.pl.df() }

// key includes the calculator so leaves only merge when they would
// score identically.
func (n *leafNode) key() string {
	return fmt.Sprintf("#term[%s](%s)", n.calc.Description(), n.term)
}

func (n *leafNode) visitLeaves(f func(*leafNode)) { f(n) }

func (n *leafNode) termText() string { return n.term }
func (n *leafNode) extended() bool   { return n.ext != nil }

func (n *leafNode) totalTF() uint64 {
	var total uint64
	for _, tf := range n.pl.tfs {
		total += uint64(tf)
	}
	return total
}

// phraseNode realizes one query term over an n-gram index: the term's
// grams must occur at consecutive offsets. It scores exactly like a
// leaf, with the phrase occurrence count as the term frequency, and
// carries the same deferral wiring for extended calculators.
type phraseNode struct {
	term  string
	grams []*postingList // gram i must occur at start+i
	calc  score.Calculator
	ext   score.Extended // non-nil when calc defers its first step

	deferred []tfPair
	exScores map[uint32]float64

	onMiss func(docID uint32)

	// caches for the last evaluated document
	lastDoc   uint32
	lastValid bool
	lastLocs  []uint32
}

func (n *phraseNode) starts(d uint32) []uint32 {
	if n.lastValid && n.lastDoc == d {
		return n.lastLocs
	}
	n.lastDoc, n.lastValid = d, true
	n.lastLocs = nil
	first := n.grams[0].locations(d)
	if first == nil {
		// no stored locations: fall back to co-occurrence
		if _, ok := n.grams[0].find(d); ok {
			n.lastLocs = []uint32{0}
			for _, g := range n.grams[1:] {
				if _, ok := g.find(d); !ok {
					n.lastLocs = nil
					break
				}
			}
		}
		return n.lastLocs
	}
	for _, p := range first {
		ok := true
		for i, g := range n.grams[1:] {
			locs := g.locations(d)
			j := sort.Search(len(locs), func(j int) bool { return locs[j] >= p+uint32(i)+1 })
			if j >= len(locs) || locs[j] != p+uint32(i)+1 {
				ok = false
				break
			}
		}
		if ok {
			n.lastLocs = append(n.lastLocs, p)
		}
	}
	return n.lastLocs
}

func (n *phraseNode) lowerBound(d uint32) (uint32, bool) {
	for {
		// all grams must co-occur; the rarest gram could lead, but gram
		// lists are near-uniform so the first suffices
		cand, ok := n.grams[0].lowerBound(d)
		if !ok {
			return 0, false
		}
		max := cand
		for _, g := range n.grams[1:] {
			c, ok := g.lowerBound(cand)
			if !ok {
				return 0, false
			}
			if c > max {
				max = c
			}
		}
		if max != cand {
			d = max
			continue
		}
		if len(n.starts(cand)) > 0 {
			return cand, true
		}
		d = cand + 1
	}
}

func (n *phraseNode) evaluate(d uint32) bool {
	return len(n.starts(d)) > 0
}

func (n *phraseNode) firstStep(d uint32) (float64, error) {
	if n.exScores != nil {
		return n.exScores[d], nil
	}
	tf := n.tf(d)
	if n.ext != nil {
		n.deferred = append(n.deferred, tfPair{docID: d, tf: tf})
		return 0, nil
	}
	partial, ok := n.calc.FirstStep(tf, d)
	if !ok {
		if n.onMiss != nil {
			n.onMiss(d)
		}
		return 0, nil
	}
	return partial * n.calc.Prepared(), nil
}

func (n *phraseNode) finishDeferred(stats score.CollectionStats) {
	if n.ext == nil {
		return
	}
	n.ext.PrepareEx(stats)
	n.exScores = make(map[uint32]float64, len(n.deferred))
	for _, p := range n.deferred {
		s, ok := n.ext.FirstStepEx(p.tf, p.docID)
		if !ok {
			if n.onMiss != nil {
				n.onMiss(p.docID)
			}
			continue
		}
		n.exScores[p.docID] = s * n.calc.Prepared()
	}
	n.deferred = nil
}

func (n *phraseNode) tf(d uint32) uint32 { return uint32(len(n.starts(d))) }

func (n *phraseNode) locations(d uint32) locIterator {
	return newSliceLocs(n.starts(d))
}

func (n *phraseNode) estimatedDF() int {
	df := n.grams[0].df()
	for _, g := range n.grams[1:] {
		if g.df() < df {
			df = g.df()
		}
	}
	return df
}

func (n *phraseNode) key() string {
	return fmt.Sprintf("#phrase[%s](%s)", n.calc.Description(), n.term)
}

// visitLeaves is empty: a phrase is a requirement of its own, not a
// bag of plain leaves a rough conjunction could stand in for.
func (n *phraseNode) visitLeaves(f func(*leafNode)) {}

func (n *phraseNode) termText() string { return n.term }
func (n *phraseNode) extended() bool   { return n.ext != nil }

// totalTF estimates the phrase's collection-wide frequency by its
// rarest gram, which bounds it from above.
func (n *phraseNode) totalTF() uint64 {
	rare := n.grams[0]
	for _, g := range n.grams[1:] {
		if g.df() < rare.df() {
			rare = g
		}
	}
	var total uint64
	for _, tf := range rare.tfs {
		total += uint64(tf)
	}
	return total
}

// boolResultNode wraps a precomputed sorted docID list, optionally with
// scores; intermediate wordlist results re-enter the tree through it.
type boolResultNode struct {
	docIDs []uint32
	scores []float64 // optional, parallel to docIDs
}

func (n *boolResultNode) lowerBound(d uint32) (uint32, bool) {
	i := sort.Search(len(n.docIDs), func(i int) bool { return n.docIDs[i] >= d })
	if i >= len(n.docIDs) {
		return 0, false
	}
	return n.docIDs[i], true
}

func (n *boolResultNode) evaluate(d uint32) bool {
	v, ok := n.lowerBound(d)
	return ok && v == d
}

func (n *boolResultNode) firstStep(d uint32) (float64, error) {
	if n.scores == nil {
		return 0, nil
	}
	i := sort.Search(len(n.docIDs), func(i int) bool { return n.docIDs[i] >= d })
	if i < len(n.docIDs) && n.docIDs[i] == d {
		return n.scores[i], nil
	}
	return 0, nil
}

func (n *boolResultNode) tf(d uint32) uint32            { return 0 }
func (n *boolResultNode) locations(d uint32) locIterator { return nil }
func (n *boolResultNode) estimatedDF() int              { return len(n.docIDs) }
func (n *boolResultNode) key() string                   { return fmt.Sprintf("#result(%p)", n) }
func (n *boolResultNode) visitLeaves(f func(*leafNode)) {}

// andNode accepts documents matched by every child. Children are kept
// sorted by ascending estimated DF so the cheapest leads; the rough
// node, when set, is a cheaper conjunction guaranteed to accept a
// superset.
type andNode struct {
	children []queryNode
	rough    queryNode

	// sumScores switches the combiner from the default product to a
	// sum, used by the essential wordlist conjunction.
	sumScores bool
}

func (n *andNode) lowerBound(d uint32) (uint32, bool) {
	for {
		if n.rough != nil {
			cand, ok := n.rough.lowerBound(d)
			if !ok {
				return 0, false
			}
			d = cand
		}
		cand, ok := n.children[0].lowerBound(d)
		if !ok {
			return 0, false
		}
		max := cand
		for _, c := range n.children[1:] {
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
		d = max // retry at the maximum reported
	}
}

func (n *andNode) evaluate(d uint32) bool {
	for _, c := range n.children {
		if !c.evaluate(d) {
			return false
		}
	}
	return true
}

// firstStep combines AND partial scores as a product by default, or as
// a sum when configured.
func (n *andNode) firstStep(d uint32) (float64, error) {
	s := 1.0
	if n.sumScores {
		s = 0.0
	}
	for _, c := range n.children {
		v, err := c.firstStep(d)
		if err != nil {
			return 0, err
		}
		if n.sumScores {
			s += v
		} else {
			s *= v
		}
	}
	return s, nil
}

func (n *andNode) tf(d uint32) uint32 {
	// the conjunction's frequency is bounded by its rarest member
	min := uint32(0)
	for i, c := range n.children {
		v := c.tf(d)
		if i == 0 || v < min {
			min = v
		}
	}
	return min
}

func (n *andNode) locations(d uint32) locIterator { return nil }

func (n *andNode) estimatedDF() int {
	df := n.children[0].estimatedDF()
	for _, c := range n.children[1:] {
		if v := c.estimatedDF(); v < df {
			df = v
		}
	}
	return df
}

func (n *andNode) key() string {
	if n.sumScores {
		return childKey("#add", n.children)
	}
	return childKey("#and", n.children)
}

func (n *andNode) visitLeaves(f func(*leafNode)) {
	for _, c := range n.children {
		c.visitLeaves(f)
	}
}

// orNode accepts documents matched by any child.
type orNode struct {
	children []queryNode
}

func (n *orNode) lowerBound(d uint32) (uint32, bool) {
	best, found := uint32(0), false
	for _, c := range n.children {
		if v, ok := c.lowerBound(d); ok {
			if !found || v < best {
				best, found = v, true
			}
		}
	}
	return best, found
}

func (n *orNode) evaluate(d uint32) bool {
	for _, c := range n.children {
		if c.evaluate(d) {
			return true
		}
	}
	return false
}

// firstStep combines OR partial scores as a sum.
func (n *orNode) firstStep(d uint32) (float64, error) {
	s := 0.0
	for _, c := range n.children {
		if !c.evaluate(d) {
			continue
		}
		v, err := c.firstStep(d)
		if err != nil {
			return 0, err
		}
		s += v
	}
	return s, nil
}

func (n *orNode) tf(d uint32) uint32 {
	sum := uint32(0)
	for _, c := range n.children {
		sum += c.tf(d)
	}
	return sum
}

func (n *orNode) locations(d uint32) locIterator { return nil }

func (n *orNode) estimatedDF() int {
	sum := 0
	for _, c := range n.children {
		sum += c.estimatedDF()
	}
	return sum
}

func (n *orNode) key() string { return childKey("#or", n.children) }

func (n *orNode) visitLeaves(f func(*leafNode)) {
	for _, c := range n.children {
		c.visitLeaves(f)
	}
}

// andNotNode accepts documents matched by left but not right. Right is
// only a filter; scores pass through from left.
type andNotNode struct {
	left, right queryNode
	rough       queryNode
}

func (n *andNotNode) lowerBound(d uint32) (uint32, bool) {
	for {
		if n.rough != nil {
			cand, ok := n.rough.lowerBound(d)
			if !ok {
				return 0, false
			}
			d = cand
		}
		cand, ok := n.left.lowerBound(d)
		if !ok {
			return 0, false
		}
		if !n.right.evaluate(cand) {
			return cand, true
		}
		d = cand + 1
	}
}

func (n *andNotNode) evaluate(d uint32) bool {
	return n.left.evaluate(d) && !n.right.evaluate(d)
}

func (n *andNotNode) firstStep(d uint32) (float64, error) {
	return n.left.firstStep(d)
}

func (n *andNotNode) tf(d uint32) uint32             { return n.left.tf(d) }
func (n *andNotNode) locations(d uint32) locIterator { return n.left.locations(d) }
func (n *andNotNode) estimatedDF() int               { return n.left.estimatedDF() }

func (n *andNotNode) key() string {
	return fmt.Sprintf("#and-not(%s,%s)", n.left.key(), n.right.key())
}

func (n *andNotNode) visitLeaves(f func(*leafNode)) {
	// only the positive side: the rough conjunction must accept a
	// superset, and right matches argue against the document
	n.left.visitLeaves(f)
}

func childKey(op string, children []queryNode) string {
	keys := make([]string, len(children))
	for i, c := range children {
		keys[i] = c.key()
	}
	return fmt.Sprintf("%s(%s)", op, strings.Join(keys, ","))
}
