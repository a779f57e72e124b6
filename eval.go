package seiche

import (
	"context"
	"fmt"

	sglog "github.com/sourcegraph/log"
)

// shardResult is the per-shard outcome of one query, sorted by docID
// ascending, before composition across the index file set.
type shardResult struct {
	docIDs []uint32
	scores []float64
	tfs    [][]uint32 // per leaf, when requested
	stats  Stats
}

// searchShard runs the validated query over one shard: walk the docID
// axis by lower bound, first-step each match, then settle the deferred
// extended calculators in a trailing pass.
func (s *Shard) searchShard(ctx context.Context, vq *validatedQuery, opts *SearchOptions, logger sglog.Logger) (*shardResult, error) {
	res := &shardResult{stats: Stats{ShardsSearched: 1}}
	ranking := opts.resultType()&ResultScore != 0
	wantTF := opts.resultType()&ResultTF != 0

	d := uint32(1)
	for {
		// cancellation is checked once per candidate document, before
		// each lowerBound step; the node traversal itself does not check it
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		cand, ok := vq.root.lowerBound(d)
		if !ok {
			break
		}
		res.stats.Candidates++

		var sc float64
		if ranking {
			var err error
			sc, err = vq.root.firstStep(cand)
			if err != nil {
				// calculator failures abort the whole search
				return nil, err
			}
		}
		res.docIDs = append(res.docIDs, cand)
		res.scores = append(res.scores, sc)
		if wantTF {
			tfs := make([]uint32, len(vq.leaves))
			for i, l := range vq.leaves {
				tfs[i] = l.tf(cand)
			}
			res.tfs = append(res.tfs, tfs)
		}
		d = cand + 1
	}

	if ranking && vq.extended {
		// trailing pass: feed the collection statistics to the deferred
		// calculators and replay the first step over the matches
		stats := vq.collectionStats(s)
		for _, l := range vq.leaves {
			if l.extended() {
				l.finishDeferred(stats[l])
			}
		}
		for i, docID := range res.docIDs {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
			}
			sc, err := vq.root.firstStep(docID)
			if err != nil {
				return nil, err
			}
			res.scores[i] = sc
		}
	}

	res.stats.MatchCount = len(res.docIDs)
	logger.Debug("shard searched",
		sglog.String("signature", s.signature.String()),
		sglog.Int("matches", res.stats.MatchCount))
	return res, nil
}
