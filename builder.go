package seiche

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/RoaringBitmap/roaring"
)

// IndexBuilder accumulates documents in memory and writes one shard.
// Terms are collected per document, then inserted into the term
// dictionary in sorted order when the shard is written.
type IndexBuilder struct {
	opts      OpenOptions
	signature Signature

	postings map[string][]posting
	docIDs   []uint32
	rowIDs   []uint32
	lengths  []uint32
	totalLen uint64

	lastDocID uint32
}

type posting struct {
	docID     uint32
	tf        uint32
	positions []uint32
}

// NewIndexBuilder returns a builder for a shard with the given role.
func NewIndexBuilder(opts OpenOptions, signature Signature) *IndexBuilder {
	return &IndexBuilder{
		opts:      opts,
		signature: signature,
		postings:  map[string][]posting{},
	}
}

// Add indexes one document. Documents must be added in ascending docID
// order; docID must avoid the reserved values.
func (b *IndexBuilder) Add(docID, rowID uint32, text string) error {
	if docID == 0 || docID >= NoneDocumentID {
		return fmt.Errorf("seiche: invalid docID %d", docID)
	}
	if docID <= b.lastDocID {
		return fmt.Errorf("seiche: docID %d not ascending", docID)
	}
	b.lastDocID = docID

	tokens := tokenize(text, &b.opts)
	for term, positions := range tokens {
		b.postings[term] = append(b.postings[term], posting{
			docID:     docID,
			tf:        uint32(len(positions)),
			positions: positions,
		})
	}

	length := uint32(0)
	for _, ps := range tokens {
		length += uint32(len(ps))
	}
	b.docIDs = append(b.docIDs, docID)
	b.rowIDs = append(b.rowIDs, rowID)
	b.lengths = append(b.lengths, length)
	b.totalLen += uint64(length)
	return nil
}

// NumDocs returns the number of documents added so far.
func (b *IndexBuilder) NumDocs() int { return len(b.docIDs) }

// Build serializes the shard and returns its bytes.
func (b *IndexBuilder) Build() ([]byte, error) {
	w := newShardWriter()

	// metadata
	start := w.Begin()
	w.U32(uint32(b.signature))
	w.U32(uint32(len(b.docIDs)))
	b.opts.encode(w)
	w.End(sectionMetadata, start)

	terms := make([]string, 0, len(b.postings))
	for t := range b.postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	bucketSize := bucketSizeFor(&b.opts)
	bt := newBtree(btreeOpts{bucketSize: bucketSize, v: 2})
	for _, t := range terms {
		bt.insert(t)
	}

	// buckets: length-prefixed terms chunked by the tree's own leaf
	// sizes, recording each bucket's absolute offset
	counts := bt.assignBuckets()
	var bucketOffsets []uint32
	start = w.Begin()
	i := 0
	for _, n := range counts {
		bucketOffsets = append(bucketOffsets, uint32(len(w.buf)))
		for _, t := range terms[i : i+n] {
			w.Str(t)
		}
		i += n
	}
	w.End(sectionBuckets, start)
	bucketSentinel := uint32(len(w.buf))

	// postings, one list per term in order
	var postingOffsets []uint32
	start = w.Begin()
	for _, t := range terms {
		postingOffsets = append(postingOffsets, uint32(len(w.buf)))
		b.writePostingList(w, b.postings[t])
	}
	w.End(sectionPostings, start)
	postingSentinel := uint32(len(w.buf))

	// bucket index
	start = w.Begin()
	w.U32(uint32(len(bucketOffsets)))
	for _, off := range bucketOffsets {
		w.U32(off)
	}
	w.U32(bucketSentinel)
	w.End(sectionBucketIndex, start)

	// posting offsets
	start = w.Begin()
	w.U32(uint32(len(postingOffsets)))
	for _, off := range postingOffsets {
		w.U32(off)
	}
	w.U32(postingSentinel)
	w.End(sectionPostingOffsets, start)

	// document lengths
	start = w.Begin()
	w.U32(uint32(len(b.docIDs)))
	prev := uint32(0)
	for i, id := range b.docIDs {
		w.Uvarint(uint64(id - prev))
		w.Uvarint(uint64(b.lengths[i]))
		prev = id
	}
	w.U64(b.totalLen)
	w.End(sectionDocLens, start)

	// docID -> rowID vector; contiguous docIDs use the one-unit layout
	start = w.Begin()
	units := rowIDUnits(b.docIDs)
	w.U32(uint32(len(units)))
	for _, u := range units {
		w.U32(b.docIDs[u.first])
		w.Uvarint(uint64(u.count))
		for i := 0; i < u.count; i++ {
			w.U32(b.rowIDs[u.first+i])
		}
	}
	w.End(sectionRowIDs, start)

	// delete-side shards carry their expunged rowIDs as a prebuilt
	// bitmap so composition can AND-NOT it without walking postings
	start = w.Begin()
	if b.signature == SignatureDelete {
		bm := roaring.New()
		for _, r := range b.rowIDs {
			bm.Add(r)
		}
		raw, err := bm.ToBytes()
		if err != nil {
			return nil, err
		}
		w.Bytes(raw)
	}
	w.End(sectionDeletes, start)

	return w.Finish(), nil
}

// WriteFile builds the shard and writes it to path.
func (b *IndexBuilder) WriteFile(path string) error {
	data, err := b.Build()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (b *IndexBuilder) writePostingList(w *sectionWriter, ps []posting) {
	flags := uint64(0)
	if !b.opts.Nolocation {
		flags |= 1
	}
	w.Uvarint(flags)
	w.Uvarint(uint64(len(ps)))
	prev := uint32(0)
	for _, p := range ps {
		w.Uvarint(uint64(p.docID - prev))
		prev = p.docID
	}
	if !b.opts.NoTF {
		for _, p := range ps {
			w.Uvarint(uint64(p.tf))
		}
	}
	if !b.opts.Nolocation {
		for _, p := range ps {
			w.Uvarint(uint64(len(p.positions)))
			prevPos := uint32(0)
			for _, pos := range p.positions {
				w.Uvarint(uint64(pos - prevPos))
				prevPos = pos
			}
		}
	}
}

func bucketSizeFor(opts *OpenOptions) int {
	// aim for buckets that load with one page access; terms average a
	// few dozen bytes with their length prefix
	bs := opts.BtreePageSize / 32
	if bs < 4 {
		bs = 4
	}
	return bs &^ 1 // splits produce two half buckets, keep it even
}

type rowIDUnit struct {
	first, count int
}

// rowIDUnits splits the docID sequence into maximal contiguous runs.
func rowIDUnits(docIDs []uint32) []rowIDUnit {
	var units []rowIDUnit
	for i := 0; i < len(docIDs); {
		j := i + 1
		for j < len(docIDs) && docIDs[j] == docIDs[j-1]+1 {
			j++
		}
		units = append(units, rowIDUnit{first: i, count: j - i})
		i = j
	}
	return units
}

// tokenize splits text into index terms with their positions according
// to the indexing type. Word indexing records word ordinals as
// positions; n-gram indexing records rune offsets.
func tokenize(text string, opts *OpenOptions) map[string][]uint32 {
	out := map[string][]uint32{}
	if opts.Normalized {
		text = strings.ToLower(text)
	}

	if opts.IndexingType == IndexingWord || opts.IndexingType == IndexingDual {
		// in a dual index word tokens share the dictionary with the
		// grams and are namespaced apart
		prefix := ""
		if opts.IndexingType == IndexingDual {
			prefix = wordTermPrefix
		}
		pos := uint32(0)
		for _, w := range splitWords(text) {
			out[prefix+w] = append(out[prefix+w], pos)
			pos++
		}
	}
	if opts.IndexingType == IndexingNGram || opts.IndexingType == IndexingDual {
		n := opts.TokenizeParameter
		if n <= 0 {
			n = 2
		}
		runes := []rune(text)
		if opts.SpaceMode == SpaceDelete {
			kept := runes[:0]
			for _, r := range runes {
				if !unicode.IsSpace(r) {
					kept = append(kept, r)
				}
			}
			runes = kept
		}
		for i := 0; i+n <= len(runes); i++ {
			g := string(runes[i : i+n])
			if opts.SpaceMode == SpaceAsIs && strings.IndexFunc(g, unicode.IsSpace) >= 0 {
				continue
			}
			out[g] = append(out[g], uint32(i))
		}
	}
	return out
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
