package seiche

import (
	"context"

	"github.com/seiche-search/seiche/query"
)

// Wordlist search: terms carry a category, and the categories decide
// how their scores combine. Essential terms are intersected
// (retrieveAND); essential-related terms only add score to documents
// already in the essential set (retrieveADD); everything else is merged
// in with its documents (retrieveOR).

// SearchWordList runs a categorized term list over the set.
func (fs *IndexFileSet) SearchWordList(ctx context.Context, terms []*query.Term, opts *SearchOptions) (*SearchResult, error) {
	if fs == nil || fs.shards == nil {
		return nil, ErrInvalidHandle
	}
	if opts == nil {
		opts = &SearchOptions{}
	}

	var essential, related, others []*query.Term
	for _, t := range terms {
		switch t.Category {
		case query.CategoryEssential:
			essential = append(essential, t)
		case query.CategoryEssentialRelated:
			related = append(related, t)
		default:
			others = append(others, t)
		}
	}

	acc := map[uint32]ResultItem{}

	if len(essential) > 0 {
		// retrieveAND: every essential term must be present
		qs := make([]query.Q, len(essential))
		for i, t := range essential {
			qs[i] = t
		}
		items, _, err := fs.retrieve(ctx, &wordSum{children: qs}, opts)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			acc[it.RowID] = it
		}

		// retrieveADD: related terms boost existing documents only
		for _, t := range related {
			if err := fs.retrieveADD(ctx, t, opts, acc); err != nil {
				return nil, err
			}
		}
	} else {
		// without essential terms the related terms join the OR pool
		others = append(others, related...)
	}

	// retrieveOR: non-essential terms merge their documents in, joining
	// the result even outside the essential set
	for _, t := range others {
		items, _, err := fs.retrieve(ctx, t, opts)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if cur, ok := acc[it.RowID]; ok {
				cur.Score += it.Score
				acc[it.RowID] = cur
			} else {
				acc[it.RowID] = it
			}
		}
	}

	items := make([]ResultItem, 0, len(acc))
	for _, it := range acc {
		items = append(items, it)
	}
	sr := composeResult(items, opts)
	sr.Stats = Stats{MatchCount: len(sr.Items)}
	return sr, nil
}

// retrieveADD sums a term's scores onto documents already in acc.
func (fs *IndexFileSet) retrieveADD(ctx context.Context, t *query.Term, opts *SearchOptions, acc map[uint32]ResultItem) error {
	items, _, err := fs.retrieve(ctx, t, opts)
	if err != nil {
		return err
	}
	for _, it := range items {
		if cur, ok := acc[it.RowID]; ok {
			cur.Score += it.Score
			acc[it.RowID] = cur
		}
	}
	return nil
}

// wordSum is an AND whose score is the sum of its children rather than
// the product: the essential conjunction ranks by accumulated term
// scores.
type wordSum struct {
	children []query.Q
}

func (q *wordSum) String() string { return (&query.And{Children: q.children}).String() }
