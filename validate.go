package seiche

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/seiche-search/seiche/query"
	"github.com/seiche-search/seiche/rx"
	"github.com/seiche-search/seiche/score"
)

// wordTermPrefix namespaces word tokens apart from n-grams in a dual
// index, where both live in one term dictionary.
const wordTermPrefix = "w\x00"

// validator turns a query tree into the evaluation DAG for one shard:
// build raw nodes, sort children by estimated DF, share equal subtrees,
// and attach rough pointers.
type validator struct {
	shard   *Shard
	opts    *SearchOptions
	ranking bool

	defaultCalc score.Calculator
	nodeMap     map[uint64]queryNode // structural hash -> shared node
	leaves      []scoredLeaf
	queryTF     map[string]uint32
	onMiss      func(docID uint32)
}

type validatedQuery struct {
	root     queryNode
	leaves   []scoredLeaf
	extended bool
	queryTF  map[string]uint32
}

// validate prepares q for evaluation over the shard.
func (s *Shard) validate(q query.Q, opts *SearchOptions, onMiss func(uint32)) (*validatedQuery, error) {
	v := &validator{
		shard:   s,
		opts:    opts,
		ranking: opts.resultType()&ResultScore != 0,
		nodeMap: map[uint64]queryNode{},
		queryTF: map[string]uint32{},
		onMiss:  onMiss,
	}
	calc, err := score.New(opts.Calculator)
	if err != nil {
		return nil, err
	}
	v.defaultCalc = calc

	query.VisitTerms(q, func(t *query.Term) {
		v.queryTF[t.Text]++
	})

	root, err := v.build(query.Simplify(q))
	if err != nil {
		return nil, err
	}
	root = v.sortChildren(root)
	root = v.share(root)
	v.attachRough(root)

	vq := &validatedQuery{root: root, leaves: v.leaves, queryTF: v.queryTF}
	for _, l := range v.leaves {
		if l.extended() {
			vq.extended = true
		}
	}
	return vq, nil
}

func (v *validator) build(q query.Q) (queryNode, error) {
	switch s := q.(type) {
	case *query.Term:
		return v.buildTerm(s)
	case *query.Regex:
		return v.buildRegex(s)
	case *query.And:
		ch, err := v.buildAll(s.Children)
		if err != nil {
			return nil, err
		}
		return &andNode{children: ch}, nil
	case *query.Or:
		ch, err := v.buildAll(s.Children)
		if err != nil {
			return nil, err
		}
		return &orNode{children: ch}, nil
	case *query.AndNot:
		l, err := v.build(s.Left)
		if err != nil {
			return nil, err
		}
		r, err := v.build(s.Right)
		if err != nil {
			return nil, err
		}
		return &andNotNode{left: l, right: r}, nil
	case *query.Window:
		ch, err := v.buildAll(s.Children)
		if err != nil {
			return nil, err
		}
		return &windowNode{min: s.Min, max: s.Max, unordered: s.Unordered, children: ch}, nil
	case *query.Distance:
		ch, err := v.buildAll(s.Children)
		if err != nil {
			return nil, err
		}
		return &distanceNode{min: s.Min, max: s.Max, left: ch[0], right: ch[1]}, nil
	case *query.Word:
		c, err := v.build(s.Child)
		if err != nil {
			return nil, err
		}
		return &wordNode{child: c}, nil
	case *query.Const:
		if s.Value {
			return v.allDocsNode(), nil
		}
		return &boolResultNode{}, nil
	case *wordSum:
		ch, err := v.buildAll(s.children)
		if err != nil {
			return nil, err
		}
		return &andNode{children: ch, sumScores: true}, nil
	}
	return nil, fmt.Errorf("seiche: unsupported query node %T", q)
}

func (v *validator) buildAll(qs []query.Q) ([]queryNode, error) {
	out := make([]queryNode, len(qs))
	for i, q := range qs {
		n, err := v.build(q)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// buildTerm resolves one query term against the shard's indexing type:
// word terms read one posting list; n-gram terms decompose into a gram
// phrase.
func (v *validator) buildTerm(t *query.Term) (queryNode, error) {
	calc, err := v.termCalculator(t)
	if err != nil {
		return nil, err
	}

	switch v.shard.opts.IndexingType {
	case IndexingWord:
		return v.newLeaf(t.Text, t.Text, calc)
	case IndexingDual:
		return v.newLeaf(t.Text, wordTermPrefix+t.Text, calc)
	default: // n-gram
		return v.buildGramTerm(t.Text, calc)
	}
}

func (v *validator) buildGramTerm(text string, calc score.Calculator) (queryNode, error) {
	n := v.shard.opts.TokenizeParameter
	if n <= 0 {
		n = 2
	}
	runes := []rune(text)
	if len(runes) < n {
		// shorter than one gram: no exact postings exist
		return &boolResultNode{}, nil
	}
	if len(runes) == n {
		return v.newLeaf(text, text, calc)
	}
	grams := make([]*postingList, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		pl, err := v.shard.postingList(string(runes[i : i+n]))
		if err != nil {
			return nil, err
		}
		grams = append(grams, pl)
	}
	p := &phraseNode{term: text, grams: grams, calc: calc, onMiss: v.onMiss}
	calc.SetDocumentLengths(shardLengths{v.shard})
	calc.Prepare(v.shard.NumDocs(), p.estimatedDF())
	if ext, ok := calc.(score.Extended); ok {
		p.ext = ext
	}
	v.leaves = append(v.leaves, p)
	return p, nil
}

// buildRegex expands a regex leaf into the union of the postings of
// every matching indexed term.
func (v *validator) buildRegex(q *query.Regex) (queryNode, error) {
	pat, err := rx.Compile(q.Expr)
	if err != nil {
		return nil, err
	}
	union := &postingList{}
	err = v.shard.terms.visitTerms(func(term string, ss simpleSection) error {
		surface := term
		switch v.shard.opts.IndexingType {
		case IndexingDual:
			// regexes match the word vocabulary of a dual index
			if len(term) < len(wordTermPrefix) || term[:len(wordTermPrefix)] != wordTermPrefix {
				return nil
			}
			surface = term[len(wordTermPrefix):]
		}
		m, err := pat.Advance(rx.Longest, surface)
		if err != nil {
			return err
		}
		if m == nil || m.End != len(rx.Units(surface)) {
			return nil // whole-term matches only
		}
		pl, err := v.shard.postingList(term)
		if err != nil {
			return err
		}
		union.merge(pl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	calc := v.defaultCalc.Duplicate()
	calc.SetDocumentLengths(shardLengths{v.shard})
	calc.Prepare(v.shard.NumDocs(), union.df())
	l := &leafNode{term: "regex:" + q.Expr, pl: union, calc: calc, onMiss: v.onMiss}
	if ext, ok := calc.(score.Extended); ok {
		l.ext = ext
	}
	v.leaves = append(v.leaves, l)
	return l, nil
}

func (v *validator) termCalculator(t *query.Term) (score.Calculator, error) {
	if t.Calculator != "" {
		return score.New(t.Calculator)
	}
	// one calculator per query by default; each leaf takes its own copy
	return v.defaultCalc.Duplicate(), nil
}

func (v *validator) newLeaf(surface, indexTerm string, calc score.Calculator) (queryNode, error) {
	pl, err := v.shard.postingList(indexTerm)
	if err != nil {
		return nil, err
	}
	calc.SetDocumentLengths(shardLengths{v.shard})
	calc.Prepare(v.shard.NumDocs(), pl.df())
	l := &leafNode{term: surface, pl: pl, calc: calc, onMiss: v.onMiss}
	if ext, ok := calc.(score.Extended); ok {
		l.ext = ext
	}
	v.leaves = append(v.leaves, l)
	return l, nil
}

// allDocsNode matches every document of the shard.
func (v *validator) allDocsNode() queryNode {
	ids := make([]uint32, len(v.shard.lenDocIDs))
	copy(ids, v.shard.lenDocIDs)
	return &boolResultNode{docIDs: ids}
}

// sortChildren orders AND children by ascending estimated DF so the
// cheapest child leads and prunes fastest. OR evaluation order is
// irrelevant, but a fixed order keeps results deterministic.
func (v *validator) sortChildren(n queryNode) queryNode {
	switch s := n.(type) {
	case *andNode:
		for i, c := range s.children {
			s.children[i] = v.sortChildren(c)
		}
		sort.SliceStable(s.children, func(i, j int) bool {
			return s.children[i].estimatedDF() < s.children[j].estimatedDF()
		})
	case *orNode:
		for i, c := range s.children {
			s.children[i] = v.sortChildren(c)
		}
		sort.SliceStable(s.children, func(i, j int) bool {
			di, dj := s.children[i].estimatedDF(), s.children[j].estimatedDF()
			if di != dj {
				return di < dj
			}
			return s.children[i].key() < s.children[j].key()
		})
	case *andNotNode:
		s.left = v.sortChildren(s.left)
		s.right = v.sortChildren(s.right)
	case *windowNode:
		for i, c := range s.children {
			s.children[i] = v.sortChildren(c)
		}
		// operand order is semantic for ordered windows; leave it
	case *distanceNode:
		s.left = v.sortChildren(s.left)
		s.right = v.sortChildren(s.right)
	case *wordNode:
		s.child = v.sortChildren(s.child)
	}
	return n
}

// share deduplicates structurally equal subtrees, turning the tree into
// a DAG. The map is keyed by the hash of the node's prefix string.
func (v *validator) share(n queryNode) queryNode {
	switch s := n.(type) {
	case *andNode:
		for i, c := range s.children {
			s.children[i] = v.share(c)
		}
	case *orNode:
		for i, c := range s.children {
			s.children[i] = v.share(c)
		}
	case *andNotNode:
		s.left = v.share(s.left)
		s.right = v.share(s.right)
	case *windowNode:
		for i, c := range s.children {
			s.children[i] = v.share(c)
		}
	case *distanceNode:
		s.left = v.share(s.left)
		s.right = v.share(s.right)
	case *wordNode:
		s.child = v.share(s.child)
	}
	h := xxhash.Sum64String(n.key())
	if shared, ok := v.nodeMap[h]; ok && shared.key() == n.key() {
		return shared
	}
	v.nodeMap[h] = n
	return n
}

// attachRough gives AND and ANDNOT nodes a coarser conjunction of their
// term leaves: cheap to advance, guaranteed to accept a superset. Nodes
// whose children are all plain leaves gain nothing from one.
func (v *validator) attachRough(n queryNode) {
	switch s := n.(type) {
	case *andNode:
		for _, c := range s.children {
			v.attachRough(c)
		}
		if rough := roughLeaves(s.children); rough != nil {
			s.rough = rough
		}
	case *andNotNode:
		v.attachRough(s.left)
		v.attachRough(s.right)
		if rough := roughLeaves([]queryNode{s.left}); rough != nil {
			s.rough = rough
		}
	case *orNode:
		// no rough pointer for OR
		for _, c := range s.children {
			v.attachRough(c)
		}
	case *windowNode:
		for _, c := range s.children {
			v.attachRough(c)
		}
	case *distanceNode:
		v.attachRough(s.left)
		v.attachRough(s.right)
	case *wordNode:
		v.attachRough(s.child)
	}
}

func roughLeaves(children []queryNode) queryNode {
	allPlain := true
	var leaves []queryNode
	for _, c := range children {
		if _, ok := c.(*leafNode); !ok {
			allPlain = false
		}
		hasOr := false
		walkNodes(c, func(n queryNode) {
			if _, ok := n.(*orNode); ok {
				hasOr = true
			}
		})
		if hasOr {
			// an OR child's leaves are alternatives, not requirements
			continue
		}
		c.visitLeaves(func(l *leafNode) {
			leaves = append(leaves, l)
		})
	}
	if allPlain || len(leaves) < 1 {
		return nil
	}
	return &andNode{children: leaves}
}

func walkNodes(n queryNode, f func(queryNode)) {
	f(n)
	switch s := n.(type) {
	case *andNode:
		for _, c := range s.children {
			walkNodes(c, f)
		}
	case *orNode:
		for _, c := range s.children {
			walkNodes(c, f)
		}
	case *andNotNode:
		walkNodes(s.left, f)
		walkNodes(s.right, f)
	case *windowNode:
		for _, c := range s.children {
			walkNodes(c, f)
		}
	case *distanceNode:
		walkNodes(s.left, f)
		walkNodes(s.right, f)
	case *wordNode:
		walkNodes(s.child, f)
	}
}

// collectionStats gathers the corpus totals for extended calculators.
func (vq *validatedQuery) collectionStats(s *Shard) map[scoredLeaf]score.CollectionStats {
	out := make(map[scoredLeaf]score.CollectionStats, len(vq.leaves))
	for _, l := range vq.leaves {
		if !l.extended() {
			continue
		}
		out[l] = score.CollectionStats{
			TotalTermFrequency:  l.totalTF(),
			TotalDocumentLength: s.totalLen,
			QueryTermFrequency:  vq.queryTF[l.termText()],
		}
	}
	return out
}
