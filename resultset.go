package seiche

import (
	"container/heap"
	"sort"
)

// composeResult applies the final stages to the retrieved items:
// clustering, score modification, sort and limit — in that order. When a
// score modifier is active and the order is by score, the limit must not
// be applied before the modifier has run (delayed sort); without a
// modifier the limit is taken on a top-K heap instead of a full sort.
func composeResult(items []ResultItem, opts *SearchOptions) *SearchResult {
	sr := &SearchResult{}

	byScore := opts.Sort == SortScoreDesc || opts.Sort == SortScoreAsc
	delayed := opts.Modifier != nil && byScore

	if opts.Cluster {
		// cluster on the unmodified score order, then modify, then
		// sort; the limit is suppressed so GetCluster can keep walking
		cl := newClusterer(items, opts.ClusteredLimit)
		if phasedClustering(opts) {
			// lazy assignment up to the caller's first chunk
			cl.extendTo(opts.Limit - 1)
			sr.Items, sr.ClusterIDs = cl.items, cl.ids
			sr.clusters = cl
			return sr
		}
		if opts.Modifier != nil {
			cl.modify(opts.Modifier)
		}
		cl.sortClusters(opts.Sort)
		sr.Items, sr.ClusterIDs = cl.emitAll()
		return sr
	}

	if opts.Modifier != nil {
		for i := range items {
			items[i].Score = opts.Modifier.Modify(items[i].RowID, items[i].Score)
		}
	}

	if opts.Limit > 0 && byScore && !delayed {
		// limit during retrieval: a top-K selection, no full sort
		items = topK(items, opts.Limit, opts.Sort)
		sortItems(items, opts.Sort)
		sr.Items = items
		return sr
	}

	sortItems(items, opts.Sort)
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	sr.Items = items
	return sr
}

// phasedClustering: clusters can be computed lazily only for the plain
// score-descending order with no modifier.
func phasedClustering(opts *SearchOptions) bool {
	return opts.Cluster && opts.Sort == SortScoreDesc && opts.Modifier == nil
}

// sortItems orders items by the requested key. Score ties break by
// ascending rowID so results are deterministic.
func sortItems(items []ResultItem, key SortKey) {
	switch key {
	case SortScoreDesc:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Score != items[j].Score {
				return items[i].Score > items[j].Score
			}
			return items[i].RowID < items[j].RowID
		})
	case SortScoreAsc:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Score != items[j].Score {
				return items[i].Score < items[j].Score
			}
			return items[i].RowID < items[j].RowID
		})
	case SortRowIDAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].RowID < items[j].RowID
		})
	case SortRowIDDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].RowID > items[j].RowID
		})
	}
}

// itemHeap keeps the current worst item on top so it can be evicted.
type itemHeap struct {
	items []ResultItem
	desc  bool
}

func (h *itemHeap) Len() int { return len(h.items) }

// Less puts the item to evict first: the lowest score when collecting
// the top K by descending score.
func (h *itemHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Score != b.Score {
		if h.desc {
			return a.Score < b.Score
		}
		return a.Score > b.Score
	}
	return a.RowID > b.RowID
}

func (h *itemHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *itemHeap) Push(x interface{}) { h.items = append(h.items, x.(ResultItem)) }

func (h *itemHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}

// topK selects the best k items by score without sorting the rest.
func topK(items []ResultItem, k int, key SortKey) []ResultItem {
	if len(items) <= k {
		return items
	}
	h := &itemHeap{desc: key == SortScoreDesc}
	for _, it := range items {
		if h.Len() < k {
			heap.Push(h, it)
			continue
		}
		h.items = append(h.items, it)
		if h.Less(h.Len()-1, 0) {
			// worse than the current worst
			h.items = h.items[:h.Len()-1]
			continue
		}
		h.items = h.items[:h.Len()-1]
		h.items[0] = it
		heap.Fix(h, 0)
	}
	return h.items
}
