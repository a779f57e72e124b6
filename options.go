package seiche

import "fmt"

// IndexingType selects how documents are tokenized into index terms.
type IndexingType int

const (
	IndexingNGram IndexingType = 1
	IndexingWord  IndexingType = 2
	IndexingDual  IndexingType = 3
)

func (t IndexingType) String() string {
	switch t {
	case IndexingNGram:
		return "ngram"
	case IndexingWord:
		return "word"
	case IndexingDual:
		return "dual"
	}
	return fmt.Sprintf("indexing(%d)", int(t))
}

// SpaceMode selects whitespace handling during tokenization.
type SpaceMode int

const (
	SpaceAsIs SpaceMode = iota
	SpaceNoNormalize
	SpaceDelete
	SpaceReset
)

// OpenOptionKey is the persisted numeric id of one open option. The
// order is part of the on-disk file-ID block: new keys append at the
// end, reordering is a format break.
type OpenOptionKey int

const (
	KeyLeafPageSize OpenOptionKey = iota
	KeyOverflowPageSize
	KeyIndexingType
	KeyTokenizeParameter
	KeyNormalized
	KeyIdCoder
	KeyFrequencyCoder
	KeyLengthCoder
	KeyLocationCoder
	KeyWordIdCoder
	KeyWordFrequencyCoder
	KeyWordLengthCoder
	KeyWordLocationCoder
	KeyStemming
	KeySpaceMode
	KeyExtractor
	KeyLanguage
	KeyBtreePageSize
	KeyDistribute
	KeyClustered
	KeyFeature
	KeyCarriage
	KeyNolocation
	KeyNoTF
	KeyRoughKwicSize

	numOpenOptionKeys
)

// OpenOptions is the typed form of the persisted option block.
type OpenOptions struct {
	LeafPageSize      int
	OverflowPageSize  int
	IndexingType      IndexingType
	TokenizeParameter int // n-gram length for ngram and dual indexing
	Normalized        bool
	Stemming          bool
	SpaceMode         SpaceMode
	Language          string
	BtreePageSize     int
	Clustered         bool
	Carriage          bool
	Nolocation        bool
	NoTF              bool
	RoughKwicSize     int
}

// DefaultOpenOptions returns the options of a freshly created index.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		LeafPageSize:      4096,
		OverflowPageSize:  4096,
		IndexingType:      IndexingDual,
		TokenizeParameter: 2,
		SpaceMode:         SpaceAsIs,
		BtreePageSize:     4096,
	}
}

// encode writes the option block as a pair count followed by (key, value)
// pairs in key order. Only the keys known to this version are written;
// keys that decodeOpenOptions skipped are not carried over.
func (o *OpenOptions) encode(w *sectionWriter) {
	put := func(k OpenOptionKey, v uint32) {
		w.U32(uint32(k))
		w.U32(v)
	}
	b2u := func(b bool) uint32 {
		if b {
			return 1
		}
		return 0
	}
	w.U32(uint32(numOpenOptionKeys))
	put(KeyLeafPageSize, uint32(o.LeafPageSize))
	put(KeyOverflowPageSize, uint32(o.OverflowPageSize))
	put(KeyIndexingType, uint32(o.IndexingType))
	put(KeyTokenizeParameter, uint32(o.TokenizeParameter))
	put(KeyNormalized, b2u(o.Normalized))
	put(KeyIdCoder, 0)
	put(KeyFrequencyCoder, 0)
	put(KeyLengthCoder, 0)
	put(KeyLocationCoder, 0)
	put(KeyWordIdCoder, 0)
	put(KeyWordFrequencyCoder, 0)
	put(KeyWordLengthCoder, 0)
	put(KeyWordLocationCoder, 0)
	put(KeyStemming, b2u(o.Stemming))
	put(KeySpaceMode, uint32(o.SpaceMode))
	put(KeyExtractor, 0)
	put(KeyLanguage, 0)
	put(KeyBtreePageSize, uint32(o.BtreePageSize))
	put(KeyDistribute, 0)
	put(KeyClustered, b2u(o.Clustered))
	put(KeyFeature, 0)
	put(KeyCarriage, b2u(o.Carriage))
	put(KeyNolocation, b2u(o.Nolocation))
	put(KeyNoTF, b2u(o.NoTF))
	put(KeyRoughKwicSize, uint32(o.RoughKwicSize))
}

// decodeOpenOptions reads an option block, tolerating keys appended by
// newer versions.
func decodeOpenOptions(r *sectionReader) (OpenOptions, error) {
	o := OpenOptions{}
	n, err := r.U32()
	if err != nil {
		return o, err
	}
	for i := uint32(0); i < n; i++ {
		k, err := r.U32()
		if err != nil {
			return o, err
		}
		v, err := r.U32()
		if err != nil {
			return o, err
		}
		switch OpenOptionKey(k) {
		case KeyLeafPageSize:
			o.LeafPageSize = int(v)
		case KeyOverflowPageSize:
			o.OverflowPageSize = int(v)
		case KeyIndexingType:
			o.IndexingType = IndexingType(v)
		case KeyTokenizeParameter:
			o.TokenizeParameter = int(v)
		case KeyNormalized:
			o.Normalized = v != 0
		case KeyStemming:
			o.Stemming = v != 0
		case KeySpaceMode:
			o.SpaceMode = SpaceMode(v)
		case KeyBtreePageSize:
			o.BtreePageSize = int(v)
		case KeyClustered:
			o.Clustered = v != 0
		case KeyCarriage:
			o.Carriage = v != 0
		case KeyNolocation:
			o.Nolocation = v != 0
		case KeyNoTF:
			o.NoTF = v != 0
		case KeyRoughKwicSize:
			o.RoughKwicSize = int(v)
		}
	}
	return o, nil
}
