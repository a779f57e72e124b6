package seiche

import (
	"fmt"
	"testing"
)

func insertMany(t *testing.T, bt *btree, terms []string) {
	t.Helper()
	for _, term := range terms {
		bt.insert(term)
	}
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%03d", i)
	}
	return out
}

func TestBTree_sorted(t *testing.T) {
	bt := newBtree(btreeOpts{bucketSize: 2, v: 2})
	insertMany(t, bt, numbered(10))
	// inner nodes only
	//
	//            [t002,t004,t006]
	//       /      /      \      \
	//  [t001]  [t003]  [t005]  [t007,t008]
	//
	want := "{bucketSize:2 v:2}[t002,t004,t006][t001][t003][t005][t007,t008]"
	if s := bt.String(); s != want {
		t.Fatalf("\nwant:%s\ngot: %s", want, s)
	}
}

func TestBTreeAssignBuckets(t *testing.T) {
	bt := newBtree(btreeOpts{bucketSize: 4, v: 2})
	terms := numbered(10)
	insertMany(t, bt, terms)

	counts := bt.assignBuckets()
	total := 0
	for _, c := range counts {
		total += c
	}
	if total != len(terms) {
		t.Fatalf("bucket counts sum to %d, want %d", total, len(terms))
	}

	// find must resolve each term to the bucket that holds it
	i := 0
	for bucket, c := range counts {
		posting := 0
		for _, prev := range counts[:bucket] {
			posting += prev
		}
		for j := 0; j < c; j++ {
			gotBucket, gotPosting := bt.find(terms[i])
			if gotBucket != bucket {
				t.Fatalf("find(%s): bucket %d, want %d", terms[i], gotBucket, bucket)
			}
			if gotPosting != posting {
				t.Fatalf("find(%s): posting offset %d, want %d", terms[i], gotPosting, posting)
			}
			i++
		}
	}
}

func TestBTreeIndexGet(t *testing.T) {
	opts := DefaultOpenOptions()
	b := NewIndexBuilder(opts, SignatureLarge)
	for d := uint32(1); d <= 200; d++ {
		if err := b.Add(d, d, fmt.Sprintf("alpha beta doc%03d", d)); err != nil {
			t.Fatal(err)
		}
	}
	data, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewShard(NewMemIndexFile("test", data))
	if err != nil {
		t.Fatal(err)
	}

	if ss := s.terms.Get(wordTermPrefix + "alpha"); ss.sz == 0 {
		t.Fatal("alpha not found in term dictionary")
	}
	if ss := s.terms.Get(wordTermPrefix + "missing"); ss.sz != 0 {
		t.Fatal("missing term resolved to a posting list")
	}

	// every indexed term resolves, walking buckets through the tree
	n := 0
	err = s.terms.visitTerms(func(term string, ss simpleSection) error {
		if ss.sz == 0 {
			t.Fatalf("term %q has empty posting section", term)
		}
		if got := s.terms.Get(term); got != ss {
			t.Fatalf("Get(%q) = %+v, want %+v", term, got, ss)
		}
		n++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("no terms visited")
	}
}
