// Package seiche is a full-text search engine: an inverted index with
// ranked retrieval, combined with the extended regular-expression engine
// in the rx subpackage. An index is split into sub-indices (one large
// file plus insert- and delete-side deltas); searches run over the whole
// set and compose one result.
package seiche

import (
	"fmt"
)

// DocumentID is the internal document identifier inside one sub-index.
// IDs are positive; NoneDocumentID is reserved and UndefinedDocumentID
// means unknown.
type DocumentID = uint32

const (
	// NoneDocumentID is the reserved "no document" marker.
	NoneDocumentID DocumentID = 0x80000000
	// UndefinedDocumentID marks an undefined document reference.
	UndefinedDocumentID DocumentID = 0xffffffff
)

// SortKey selects the order of a search result.
type SortKey int

const (
	SortScoreDesc SortKey = iota
	SortScoreAsc
	SortRowIDAsc
	SortRowIDDesc
)

func (s SortKey) String() string {
	switch s {
	case SortScoreDesc:
		return "score-desc"
	case SortScoreAsc:
		return "score-asc"
	case SortRowIDAsc:
		return "rowid-asc"
	case SortRowIDDesc:
		return "rowid-desc"
	}
	return fmt.Sprintf("sortkey(%d)", int(s))
}

// ResultType is a bitmask selecting which columns of a SearchResult are
// populated. The result type is fixed when a search is opened.
type ResultType uint32

const (
	ResultRowID ResultType = 1 << iota
	ResultScore
	ResultTF
)

// ScoreModifier rewrites scores after retrieval, before the final sort.
// When a modifier is active and the order is by score, the limit is
// suppressed during retrieval and applied only after modification.
type ScoreModifier interface {
	Modify(rowID uint32, score float64) float64
}

// SearchOptions control one search.
type SearchOptions struct {
	// Limit caps the number of result items; 0 means unlimited.
	Limit int

	// Sort selects the result order. The default is by score descending.
	Sort SortKey

	// ResultType selects the populated columns. Zero means rowID+score.
	ResultType ResultType

	// Calculator is the score-calculator descriptor applied to every
	// leaf that does not name its own (e.g. "OkapiTfIdf:0.2:1:1").
	Calculator string

	// Modifier, when set, rewrites scores before the final sort.
	Modifier ScoreModifier

	// Cluster enables result clustering.
	Cluster bool

	// ClusteredLimit is the similarity threshold for clustering.
	ClusteredLimit float64
}

func (o *SearchOptions) resultType() ResultType {
	if o.ResultType == 0 {
		return ResultRowID | ResultScore
	}
	return o.ResultType
}

// ResultItem is one row of a search result.
type ResultItem struct {
	RowID uint32
	Score float64

	// TF holds the per-query-term frequencies when ResultTF is selected.
	TF []uint32
}

// SearchResult is a dense sequence of result items plus statistics.
type SearchResult struct {
	Items []ResultItem

	// ClusterIDs assigns a cluster number to each item, parallel to
	// Items, when clustering was requested. In the phased mode entries
	// are -1 until GetCluster advances past them.
	ClusterIDs []int

	Stats Stats

	// clusters drives phased cluster emission; nil unless the search
	// ran with score-descending order, no modifier, and clustering on.
	clusters *clusterer
}

// Stats reports what one search did.
type Stats struct {
	// Candidates is the number of documents that reached a leaf.
	Candidates int
	// MatchCount is the number of documents matching the query.
	MatchCount int
	// ShardsSearched is the number of sub-indices consulted.
	ShardsSearched int
}

// Add accumulates statistics from another sub-search.
func (s *Stats) Add(o Stats) {
	s.Candidates += o.Candidates
	s.MatchCount += o.MatchCount
	s.ShardsSearched += o.ShardsSearched
}
