package seiche

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func buildShard(t *testing.T, opts OpenOptions, sig Signature, docs map[uint32]string) *Shard {
	t.Helper()
	b := NewIndexBuilder(opts, sig)
	ids := make([]uint32, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	for _, id := range ids {
		if err := b.Add(id, id+100, docs[id]); err != nil {
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
	return s
}

func wordOpts() OpenOptions {
	o := DefaultOpenOptions()
	o.IndexingType = IndexingWord
	return o
}

func TestShardRoundTrip(t *testing.T) {
	opts := wordOpts()
	opts.Normalized = true
	s := buildShard(t, opts, SignatureLarge, map[uint32]string{
		1: "Foo bar baz",
		2: "foo foo qux",
		5: "unrelated words here",
	})
	defer s.Close()

	if s.Signature() != SignatureLarge {
		t.Errorf("signature = %v", s.Signature())
	}
	if s.NumDocs() != 3 {
		t.Errorf("numDocs = %d, want 3", s.NumDocs())
	}
	got := s.Options()
	if diff := cmp.Diff(opts, got); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}

	pl, err := s.postingList("foo")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{1, 2}, pl.docIDs); diff != "" {
		t.Errorf("foo docIDs (-want +got):\n%s", diff)
	}
	if pl.tfs[1] != 2 {
		t.Errorf("foo tf in doc 2 = %d, want 2", pl.tfs[1])
	}

	if df := s.documentFrequency("foo"); df != 2 {
		t.Errorf("df(foo) = %d, want 2", df)
	}
	if df := s.documentFrequency("nothere"); df != 0 {
		t.Errorf("df(nothere) = %d, want 0", df)
	}

	if l, ok := s.DocLength(1); !ok || l != 3 {
		t.Errorf("len(doc 1) = %d,%v, want 3,true", l, ok)
	}
	if _, ok := s.DocLength(4); ok {
		t.Error("doc 4 has a length, want miss")
	}

	if r, ok := s.RowID(5); !ok || r != 105 {
		t.Errorf("rowID(5) = %d,%v, want 105,true", r, ok)
	}
}

func TestRowIDVectorVariants(t *testing.T) {
	// contiguous docIDs: the single-unit layout
	s1 := buildShard(t, wordOpts(), SignatureLarge, map[uint32]string{
		1: "a", 2: "b", 3: "c",
	})
	defer s1.Close()
	if _, ok := s1.rowIDs.(*rowIDVector1); !ok {
		t.Fatalf("contiguous shard uses %T, want rowIDVector1", s1.rowIDs)
	}

	// gaps force the multi-unit layout
	s2 := buildShard(t, wordOpts(), SignatureLarge, map[uint32]string{
		1: "a", 2: "b", 10: "c", 11: "d",
	})
	defer s2.Close()
	if _, ok := s2.rowIDs.(*rowIDVector2); !ok {
		t.Fatalf("gapped shard uses %T, want rowIDVector2", s2.rowIDs)
	}
	if r, ok := s2.RowID(10); !ok || r != 110 {
		t.Errorf("rowID(10) = %d,%v, want 110,true", r, ok)
	}
	if _, ok := s2.RowID(5); ok {
		t.Error("rowID(5) resolved, want miss")
	}
}

func TestShardPositions(t *testing.T) {
	s := buildShard(t, wordOpts(), SignatureLarge, map[uint32]string{
		1: "the quick brown fox jumps over the lazy dog",
	})
	defer s.Close()

	pl, err := s.postingList("the")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{0, 6}, pl.locations(1)); diff != "" {
		t.Errorf("positions of 'the' (-want +got):\n%s", diff)
	}
}

func TestShardNolocation(t *testing.T) {
	opts := wordOpts()
	opts.Nolocation = true
	s := buildShard(t, opts, SignatureLarge, map[uint32]string{1: "a b c"})
	defer s.Close()

	pl, err := s.postingList("b")
	if err != nil {
		t.Fatal(err)
	}
	if pl.positions != nil {
		t.Error("positions stored despite Nolocation")
	}
	if pl.tf(1) != 1 {
		t.Errorf("tf = %d, want 1", pl.tf(1))
	}
}

func TestOpenOptionRoundTrip(t *testing.T) {
	w := &sectionWriter{}
	opts := OpenOptions{
		LeafPageSize:      8192,
		OverflowPageSize:  4096,
		IndexingType:      IndexingNGram,
		TokenizeParameter: 3,
		Normalized:        true,
		Stemming:          true,
		SpaceMode:         SpaceDelete,
		BtreePageSize:     2048,
		Clustered:         true,
		Nolocation:        true,
		RoughKwicSize:     100,
	}
	opts.encode(w)
	got, err := decodeOpenOptions(&sectionReader{b: w.buf})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(opts, got); diff != "" {
		t.Errorf("options (-want +got):\n%s", diff)
	}
}
