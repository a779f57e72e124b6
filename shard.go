package seiche

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Shard is one opened sub-index.
type Shard struct {
	file IndexFile

	signature Signature
	opts      OpenOptions
	numDocs   int

	terms btreeIndex

	// document lengths, parallel arrays sorted by docID
	lenDocIDs []uint32
	lengths   []uint32
	totalLen  uint64

	rowIDs rowIDVector

	// deleted rowIDs, only on delete-side shards
	deletes *roaring.Bitmap
}

// OpenShard memory-maps a shard file.
func OpenShard(path string) (*Shard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	idx, err := NewIndexFile(f)
	if err != nil {
		return nil, err
	}
	s, err := NewShard(idx)
	if err != nil {
		idx.Close()
		return nil, err
	}
	return s, nil
}

// NewShard reads the shard structure from an IndexFile. The shard takes
// ownership of the file.
func NewShard(f IndexFile) (*Shard, error) {
	toc, err := readTOC(f)
	if err != nil {
		return nil, err
	}
	s := &Shard{file: f}

	md, err := readSection(f, toc[sectionMetadata])
	if err != nil {
		return nil, err
	}
	sig, err := md.U32()
	if err != nil {
		return nil, err
	}
	s.signature = Signature(sig)
	nd, err := md.U32()
	if err != nil {
		return nil, err
	}
	s.numDocs = int(nd)
	s.opts, err = decodeOpenOptions(md)
	if err != nil {
		return nil, err
	}

	if err := s.readTermIndex(f, toc); err != nil {
		return nil, err
	}
	if err := s.readDocLens(f, toc); err != nil {
		return nil, err
	}
	if err := s.readRowIDs(f, toc); err != nil {
		return nil, err
	}
	if s.signature == SignatureDelete && toc[sectionDeletes].sz > 0 {
		raw, err := f.Read(toc[sectionDeletes].off, toc[sectionDeletes].sz)
		if err != nil {
			return nil, err
		}
		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("%w: deletes bitmap: %v", ErrCorrupt, err)
		}
		s.deletes = bm
	}
	return s, nil
}

// Close unmaps the shard file.
func (s *Shard) Close() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// Signature returns the shard's role in the index file set.
func (s *Shard) Signature() Signature { return s.signature }

// Options returns the persisted open options.
func (s *Shard) Options() OpenOptions { return s.opts }

// NumDocs returns the number of documents in the shard.
func (s *Shard) NumDocs() int { return s.numDocs }

func (s *Shard) readTermIndex(f IndexFile, toc [numSections]simpleSection) error {
	bi, err := readSection(f, toc[sectionBucketIndex])
	if err != nil {
		return err
	}
	n, err := bi.U32()
	if err != nil {
		return err
	}
	offsets := make([]uint32, n)
	for i := range offsets {
		if offsets[i], err = bi.U32(); err != nil {
			return err
		}
	}
	sentinel, err := bi.U32()
	if err != nil {
		return err
	}

	po, err := readSection(f, toc[sectionPostingOffsets])
	if err != nil {
		return err
	}
	pn, err := po.U32()
	if err != nil {
		return err
	}
	postingOffsets := make([]uint32, pn)
	for i := range postingOffsets {
		if postingOffsets[i], err = po.U32(); err != nil {
			return err
		}
	}
	postingSentinel, err := po.U32()
	if err != nil {
		return err
	}

	s.terms = btreeIndex{
		file:                      f,
		bucketOffsets:             offsets,
		bucketSentinelOffset:      sentinel,
		postingOffsets:            postingOffsets,
		postingDataSentinelOffset: postingSentinel,
	}

	// Rebuild the inner nodes: re-inserting the terms in order
	// reproduces the leaf boundaries the builder wrote.
	bt := newBtree(btreeOpts{bucketSize: bucketSizeFor(&s.opts), v: 2})
	for i := range offsets {
		terms, err := s.terms.readBucket(i)
		if err != nil {
			return err
		}
		for _, t := range terms {
			bt.insert(t)
		}
	}
	bt.assignBuckets()
	s.terms.bt = bt
	return nil
}

func (s *Shard) readDocLens(f IndexFile, toc [numSections]simpleSection) error {
	r, err := readSection(f, toc[sectionDocLens])
	if err != nil {
		return err
	}
	n, err := r.U32()
	if err != nil {
		return err
	}
	s.lenDocIDs = make([]uint32, n)
	s.lengths = make([]uint32, n)
	prev := uint32(0)
	for i := uint32(0); i < n; i++ {
		d, err := r.Uvarint()
		if err != nil {
			return err
		}
		l, err := r.Uvarint()
		if err != nil {
			return err
		}
		prev += uint32(d)
		s.lenDocIDs[i] = prev
		s.lengths[i] = uint32(l)
	}
	s.totalLen, err = r.U64()
	return err
}

func (s *Shard) readRowIDs(f IndexFile, toc [numSections]simpleSection) error {
	r, err := readSection(f, toc[sectionRowIDs])
	if err != nil {
		return err
	}
	units, err := r.U32()
	if err != nil {
		return err
	}
	if units <= 1 {
		v := &rowIDVector1{}
		if units == 1 {
			if v.base, err = r.U32(); err != nil {
				return err
			}
			cnt, err := r.Uvarint()
			if err != nil {
				return err
			}
			v.rows = make([]uint32, cnt)
			for i := range v.rows {
				if v.rows[i], err = r.U32(); err != nil {
					return err
				}
			}
		}
		s.rowIDs = v
		return nil
	}
	v := &rowIDVector2{}
	for u := uint32(0); u < units; u++ {
		base, err := r.U32()
		if err != nil {
			return err
		}
		cnt, err := r.Uvarint()
		if err != nil {
			return err
		}
		rows := make([]uint32, cnt)
		for i := range rows {
			if rows[i], err = r.U32(); err != nil {
				return err
			}
		}
		v.units = append(v.units, rowIDVectorUnit{base: base, rows: rows})
	}
	s.rowIDs = v
	return nil
}

// DocLength returns the length of a document, false on a lookup miss.
func (s *Shard) DocLength(docID uint32) (uint32, bool) {
	i := sort.Search(len(s.lenDocIDs), func(i int) bool {
		return s.lenDocIDs[i] >= docID
	})
	if i >= len(s.lenDocIDs) || s.lenDocIDs[i] != docID {
		return 0, false
	}
	return s.lengths[i], true
}

// AverageDocLength returns the mean document length of the shard.
func (s *Shard) AverageDocLength() float64 {
	if s.numDocs == 0 {
		return 0
	}
	return float64(s.totalLen) / float64(s.numDocs)
}

// RowID maps an internal docID to the stable row id.
func (s *Shard) RowID(docID uint32) (uint32, bool) {
	return s.rowIDs.rowID(docID)
}

// DeletedRowIDs returns the expunged rowID set of a delete-side shard,
// nil otherwise.
func (s *Shard) DeletedRowIDs() *roaring.Bitmap { return s.deletes }

// shardLengths adapts a shard to the score.DocumentLengths interface.
type shardLengths struct {
	shard *Shard
}

func (l shardLengths) Length(docID uint32) (uint32, bool) {
	return l.shard.DocLength(docID)
}

func (l shardLengths) Average() float64 {
	return l.shard.AverageDocLength()
}

// rowIDVector is the docID to rowID mapping. The on-disk vector file
// has two layouts: one contiguous unit, or several units; the unit
// count selects the variant when the shard is opened.
type rowIDVector interface {
	rowID(docID uint32) (uint32, bool)
	visit(f func(docID, rowID uint32))
}

// rowIDVector1 is the single-unit variant: docIDs are contiguous from
// base.
type rowIDVector1 struct {
	base uint32
	rows []uint32
}

func (v *rowIDVector1) rowID(docID uint32) (uint32, bool) {
	if docID < v.base || docID >= v.base+uint32(len(v.rows)) {
		return 0, false
	}
	return v.rows[docID-v.base], true
}

func (v *rowIDVector1) visit(f func(docID, rowID uint32)) {
	for i, r := range v.rows {
		f(v.base+uint32(i), r)
	}
}

type rowIDVectorUnit struct {
	base uint32
	rows []uint32
}

// rowIDVector2 is the multi-unit variant for shards whose docID space
// has gaps.
type rowIDVector2 struct {
	units []rowIDVectorUnit
}

func (v *rowIDVector2) rowID(docID uint32) (uint32, bool) {
	i := sort.Search(len(v.units), func(i int) bool {
		return v.units[i].base > docID
	})
	if i == 0 {
		return 0, false
	}
	u := &v.units[i-1]
	if docID >= u.base+uint32(len(u.rows)) {
		return 0, false
	}
	return u.rows[docID-u.base], true
}

func (v *rowIDVector2) visit(f func(docID, rowID uint32)) {
	for _, u := range v.units {
		for i, r := range u.rows {
			f(u.base+uint32(i), r)
		}
	}
}
