// B+-tree term dictionary.
//
// The tree is a B+-tree based on a paper by Ceylan and Mihalcea [1].
//
// B+-trees store all values in the leaves. We store index terms with the
// goal to quickly retrieve a pointer to the posting list for a given
// term. The number of terms per leaf bucket is chosen so one bucket is
// loaded with a single page access.
//
// The buckets are stored as part of the index on disk while all inner
// nodes are rebuilt in memory when the shard is opened: terms are
// re-inserted in order, which reproduces the same leaf boundaries the
// builder produced.
//
// [1] H. Ceylan and R. Mihalcea. 2011. An Efficient Indexer for Large
// N-Gram Corpora, Proceedings of the ACL-HLT 2011 System Demonstrations,
// pages 103-108
package seiche

import (
	"fmt"
	"sort"
)

type btree struct {
	root node
	opts btreeOpts
}

type btreeOpts struct {
	// How many terms can be stored at a leaf node.
	bucketSize int
	// all inner nodes, except root, have [v, 2v] children. In the
	// literature, b-trees are inconsistently categorized either by the
	// number of children or by the number of keys. We choose the former.
	v int
}

func newBtree(opts btreeOpts) *btree {
	return &btree{&leaf{}, opts}
}

// insert adds a term. Terms must be inserted in ascending order(!),
// which means after a split of a leaf, the left leaf is not affected by
// further inserts and its size is fixed to bucketSize/2.
func (bt *btree) insert(t string) {
	if leftNode, rightNode, newKey, ok := bt.root.maybeSplit(bt.opts); ok {
		bt.root = &innerNode{keys: []string{newKey}, children: []node{leftNode, rightNode}}
	}
	bt.root.insert(t, bt.opts)
}

// find returns the tuple (bucketIndex, postingIndexOffset), both of
// which are stored at the leaf level. They are effectively pointers to
// the bucket and the posting lists for terms stored in the bucket. Since
// terms and their posting lists are stored in order, knowing the index
// of the posting list of the first item in the bucket is sufficient.
func (bt *btree) find(t string) (int, int) {
	if bt.root == nil {
		return -1, -1
	}
	return bt.root.find(t)
}

func (bt *btree) visit(f func(n node)) {
	bt.root.visit(f)
}

type node interface {
	insert(t string, opts btreeOpts)
	maybeSplit(opts btreeOpts) (left node, right node, newKey string, ok bool)
	find(t string) (int, int)
	visit(func(n node))
}

type innerNode struct {
	keys     []string
	children []node
}

type leaf struct {
	bucketIndex int
	// postingIndexOffset is the index of the posting list of the first
	// term in the bucket. This is enough to determine the index of the
	// posting list for every other key in the bucket.
	postingIndexOffset int

	// Because terms are inserted in order we don't have to fill the
	// buckets; we track the size and the key to propagate up on a
	// split.
	bucketSize int
	splitKey   string
}

func (n *leaf) insert(t string, opts btreeOpts) {
	n.bucketSize++

	if n.bucketSize == (opts.bucketSize/2)+1 {
		n.splitKey = t
	}
}

func (n *innerNode) insert(t string, opts btreeOpts) {
	insertAt := func(i int) {
		// Invariant: Nodes always have a free slot.
		//
		// We split full nodes on the way down to the leaf. This has the
		// advantage that inserts are handled in a single pass.
		if leftNode, rightNode, newKey, ok := n.children[i].maybeSplit(opts); ok {
			n.keys = append(n.keys[0:i], append([]string{newKey}, n.keys[i:]...)...)
			n.children = append(n.children[0:i], append([]node{leftNode, rightNode}, n.children[i+1:]...)...)

			// A split might shift the target index by 1.
			if t >= n.keys[i] {
				i++
			}
		}
		n.children[i].insert(t, opts)
	}

	for i, k := range n.keys {
		if t < k {
			insertAt(i)
			return
		}
	}
	insertAt(len(n.children) - 1)
}

// See btree.find
func (n *innerNode) find(t string) (int, int) {
	for i, k := range n.keys {
		if t < k {
			return n.children[i].find(t)
		}
	}
	return n.children[len(n.children)-1].find(t)
}

// See btree.find
func (n *leaf) find(t string) (int, int) {
	return n.bucketIndex, n.postingIndexOffset
}

func (n *leaf) maybeSplit(opts btreeOpts) (left node, right node, newKey string, ok bool) {
	if n.bucketSize < opts.bucketSize {
		return
	}
	return &leaf{bucketSize: opts.bucketSize / 2},
		&leaf{bucketSize: opts.bucketSize / 2},
		n.splitKey,
		true
}

func (n *innerNode) maybeSplit(opts btreeOpts) (left node, right node, newKey string, ok bool) {
	if len(n.children) < 2*opts.v {
		return
	}
	return &innerNode{
			keys:     append(make([]string, 0, opts.v-1), n.keys[0:opts.v-1]...),
			children: append(make([]node, 0, opts.v), n.children[:opts.v]...)},
		&innerNode{
			keys:     append(make([]string, 0, (2*opts.v)-1), n.keys[opts.v:]...),
			children: append(make([]node, 0, 2*opts.v), n.children[opts.v:]...)},
		n.keys[opts.v-1],
		true
}

func (n *leaf) visit(f func(n node)) {
	f(n)
}

func (n *innerNode) visit(f func(n node)) {
	f(n)
	for _, child := range n.children {
		child.visit(f)
	}
}

func (bt *btree) String() string {
	s := ""
	s += fmt.Sprintf("%+v", bt.opts)
	bt.root.visit(func(n node) {
		switch nd := n.(type) {
		case *leaf:
			return
		case *innerNode:
			s += "["
			for i, key := range nd.keys {
				if i > 0 {
					s += ","
				}
				s += key
			}
			s += "]"
		}
	})
	return s
}

// assignBuckets numbers the leaves left to right and assigns each its
// first posting-list index from the running term count. It returns the
// per-leaf term counts in leaf order, which is also the bucket layout on
// disk.
func (bt *btree) assignBuckets() []int {
	var counts []int
	bucket, posting := 0, 0
	bt.visit(func(no node) {
		if n, ok := no.(*leaf); ok {
			n.bucketIndex = bucket
			n.postingIndexOffset = posting
			posting += n.bucketSize
			bucket++
			counts = append(counts, n.bucketSize)
		}
	})
	return counts
}

// btreeIndex resolves terms to posting-list sections through the tree.
type btreeIndex struct {
	bt *btree

	// We need the index file to read buckets into memory.
	file IndexFile

	bucketOffsets        []uint32
	bucketSentinelOffset uint32

	postingOffsets            []uint32
	postingDataSentinelOffset uint32
}

// Get returns the posting-list section associated with the term:
// 1. search the inner nodes for the bucket that may contain it (in MEM)
// 2. read the bucket (1 page access)
// 3. binary search the bucket (in MEM)
// 4. return the section pointing to the posting list (in MEM)
//
// A zero section means the term is absent.
func (b *btreeIndex) Get(term string) simpleSection {
	bucketIndex, postingIndexOffset := b.bt.find(term)
	if bucketIndex < 0 || bucketIndex >= len(b.bucketOffsets) {
		return simpleSection{}
	}

	terms, err := b.readBucket(bucketIndex)
	if err != nil {
		return simpleSection{}
	}

	x := sort.SearchStrings(terms, term)
	if x >= len(terms) || terms[x] != term {
		return simpleSection{}
	}

	return b.getPostingList(postingIndexOffset + x)
}

// readBucket decodes the length-prefixed terms of one bucket.
func (b *btreeIndex) readBucket(bucketIndex int) ([]string, error) {
	off := b.bucketOffsets[bucketIndex]
	var sz uint32
	if bucketIndex+1 < len(b.bucketOffsets) {
		sz = b.bucketOffsets[bucketIndex+1] - off
	} else {
		sz = b.bucketSentinelOffset - off
	}
	raw, err := b.file.Read(off, sz)
	if err != nil {
		return nil, err
	}
	r := &sectionReader{b: raw}
	var terms []string
	for r.Len() > 0 {
		t, err := r.Str()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

func (b *btreeIndex) getPostingList(postingIndex int) simpleSection {
	if postingIndex < 0 || postingIndex >= len(b.postingOffsets) {
		return simpleSection{}
	}
	if postingIndex+1 < len(b.postingOffsets) {
		return simpleSection{
			off: b.postingOffsets[postingIndex],
			sz:  b.postingOffsets[postingIndex+1] - b.postingOffsets[postingIndex],
		}
	}
	return simpleSection{
		off: b.postingOffsets[postingIndex],
		sz:  b.postingDataSentinelOffset - b.postingOffsets[postingIndex],
	}
}

// visitTerms walks every (term, posting section) pair in order. Buckets
// and posting lists are laid out in the same order, so a running count
// gives the posting index.
func (b *btreeIndex) visitTerms(f func(term string, ss simpleSection) error) error {
	postingIndex := 0
	for i := range b.bucketOffsets {
		terms, err := b.readBucket(i)
		if err != nil {
			return err
		}
		for _, t := range terms {
			if err := f(t, b.getPostingList(postingIndex)); err != nil {
				return err
			}
			postingIndex++
		}
	}
	return nil
}
