package seiche

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"
	sglog "github.com/sourcegraph/log"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/seiche-search/seiche/query"
)

// searchCount tracks searches across all file sets of the process; the
// debug endpoints of embedding servers read it without a registry.
var searchCount atomic.Uint64

// SearchCount returns the number of searches executed process-wide.
func SearchCount() uint64 { return searchCount.Load() }

// IndexFileSet is the ordered collection of sub-indices one search runs
// over: one large inverted file plus small insert-side and expunge-side
// delta files. The set is borrowed per search; updates are serialized
// against it by the caller.
type IndexFileSet struct {
	shards []*Shard
	logger sglog.Logger
}

// NewIndexFileSet assembles a set from opened shards. Order matters:
// the large file first, then insert deltas, then delete deltas.
func NewIndexFileSet(logger sglog.Logger, shards ...*Shard) *IndexFileSet {
	return &IndexFileSet{
		shards: shards,
		logger: logger.Scoped("fileset", "inverted index file set"),
	}
}

// OpenFileSet opens the shard files concurrently and assembles the set
// in path order.
func OpenFileSet(logger sglog.Logger, paths ...string) (*IndexFileSet, error) {
	shards := make([]*Shard, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			s, err := OpenShard(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			shards[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, s := range shards {
			if s != nil {
				s.Close()
			}
		}
		return nil, err
	}
	return NewIndexFileSet(logger, shards...), nil
}

// Close releases every shard.
func (fs *IndexFileSet) Close() {
	for _, s := range fs.shards {
		s.Close()
	}
	fs.shards = nil
}

// Shards returns the sub-indices of the set.
func (fs *IndexFileSet) Shards() []*Shard { return fs.shards }

// Search runs q over the set and composes one result: per-shard matches
// are rewritten to stable row ids, expunged rows are removed, then the
// result is clustered, modified, sorted and limited per the options.
func (fs *IndexFileSet) Search(ctx context.Context, q query.Q, opts *SearchOptions) (sr *SearchResult, err error) {
	if fs == nil || fs.shards == nil {
		return nil, ErrInvalidHandle
	}
	if opts == nil {
		opts = &SearchOptions{}
	}
	metricSearchTotal.Inc()
	searchCount.Inc()
	start := time.Now()
	defer func() {
		metricSearchDuration.Observe(time.Since(start).Seconds())
		switch {
		case errors.Is(err, ErrCancelled):
			metricSearchCancelled.Inc()
		case err != nil:
			metricSearchErrors.Inc()
		case sr != nil:
			metricSearchMatches.Observe(float64(len(sr.Items)))
		}
	}()

	items, stats, err := fs.retrieve(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	sr = composeResult(items, opts)
	sr.Stats = stats
	return sr, nil
}

// retrieve walks the searchable shards and returns the merged, expunge-
// filtered items keyed by row id, in shard order.
func (fs *IndexFileSet) retrieve(ctx context.Context, q query.Q, opts *SearchOptions) ([]ResultItem, Stats, error) {
	var (
		items   []ResultItem
		seen    = map[uint32]int{} // rowID -> index in items
		deleted = roaring.New()
		stats   Stats
	)

	for _, s := range fs.shards {
		if s.signature == SignatureDelete {
			if bm := s.DeletedRowIDs(); bm != nil {
				deleted.Or(bm)
			} else {
				s.rowIDs.visit(func(_, rowID uint32) {
					deleted.Add(rowID)
				})
			}
			stats.ShardsSearched++
			continue
		}

		vq, err := s.validate(q, opts, func(docID uint32) {
			fs.logger.Warn("document length missing, scoring 0",
				sglog.String("shard", s.signature.String()),
				sglog.Int("docID", int(docID)))
		})
		if err != nil {
			return nil, stats, err
		}
		res, err := s.searchShard(ctx, vq, opts, fs.logger)
		if err != nil {
			return nil, stats, err
		}
		stats.Add(res.stats)

		for i, docID := range res.docIDs {
			rowID, ok := s.RowID(docID)
			if !ok {
				fs.logger.Warn("docID without row id, dropped",
					sglog.String("shard", s.signature.String()),
					sglog.Int("docID", int(docID)))
				continue
			}
			item := ResultItem{RowID: rowID, Score: res.scores[i]}
			if res.tfs != nil {
				item.TF = res.tfs[i]
			}
			if at, dup := seen[rowID]; dup {
				// the insert side carries the newer version of a row
				items[at] = item
				continue
			}
			seen[rowID] = len(items)
			items = append(items, item)
		}
	}

	// expunged documents are removed at the root, after all shards
	if !deleted.IsEmpty() {
		kept := items[:0]
		for _, it := range items {
			if !deleted.Contains(it.RowID) {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	return items, stats, nil
}
