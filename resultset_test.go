package seiche

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func itemsOf(pairs ...float64) []ResultItem {
	// pairs are (rowID, score)
	out := make([]ResultItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ResultItem{RowID: uint32(pairs[i]), Score: pairs[i+1]})
	}
	return out
}

func TestTopKMatchesFullSort(t *testing.T) {
	items := itemsOf(1, 0.5, 2, 0.9, 3, 0.1, 4, 0.9, 5, 0.7, 6, 0.3)

	full := append([]ResultItem(nil), items...)
	sortItems(full, SortScoreDesc)

	got := topK(append([]ResultItem(nil), items...), 3, SortScoreDesc)
	sortItems(got, SortScoreDesc)

	if diff := cmp.Diff(full[:3], got); diff != "" {
		t.Errorf("topK (-full +heap):\n%s", diff)
	}
}

func TestComposeLimit(t *testing.T) {
	items := itemsOf(1, 0.1, 2, 0.9, 3, 0.5)
	sr := composeResult(items, &SearchOptions{Limit: 2})
	if diff := cmp.Diff([]uint32{2, 3}, rowIDs(sr.Items)); diff != "" {
		t.Errorf("limit (-want +got):\n%s", diff)
	}
}

func TestClusteringDeterminism(t *testing.T) {
	mk := func() []ResultItem {
		return itemsOf(1, 1.0, 2, 0.95, 3, 0.5, 4, 0.48, 5, 0.1)
	}
	opts := &SearchOptions{Cluster: true, ClusteredLimit: 0.9, Sort: SortScoreAsc}
	a := composeResult(mk(), opts)
	b := composeResult(mk(), opts)
	if diff := cmp.Diff(a.Items, b.Items); diff != "" {
		t.Errorf("items differ between runs:\n%s", diff)
	}
	if diff := cmp.Diff(a.ClusterIDs, b.ClusterIDs); diff != "" {
		t.Errorf("cluster ids differ between runs:\n%s", diff)
	}
}

func TestClusterGrouping(t *testing.T) {
	// scores 1.0 and 0.95 cluster at a 0.9 threshold; 0.5/0.48 form the
	// next cluster; 0.1 is alone
	items := itemsOf(1, 1.0, 2, 0.95, 3, 0.5, 4, 0.48, 5, 0.1)
	sr := composeResult(items, &SearchOptions{Cluster: true, ClusteredLimit: 0.9, Sort: SortScoreAsc})
	want := map[uint32]int{}
	for i, it := range sr.Items {
		want[it.RowID] = sr.ClusterIDs[i]
	}
	if want[1] != want[2] {
		t.Errorf("rows 1,2 in different clusters: %v", want)
	}
	if want[3] != want[4] {
		t.Errorf("rows 3,4 in different clusters: %v", want)
	}
	if want[1] == want[3] || want[3] == want[5] {
		t.Errorf("clusters merged: %v", want)
	}
}

func TestPhasedClustering(t *testing.T) {
	items := itemsOf(1, 1.0, 2, 0.95, 3, 0.5, 4, 0.48, 5, 0.1)
	sr := composeResult(items, &SearchOptions{
		Cluster:        true,
		ClusteredLimit: 0.9,
		Sort:           SortScoreDesc,
		Limit:          2,
	})
	// only the first chunk is assigned so far
	if sr.ClusterIDs[4] != -1 {
		t.Fatalf("tail already assigned: %v", sr.ClusterIDs)
	}
	id, ok := sr.GetCluster(4)
	if !ok {
		t.Fatal("GetCluster(4) failed")
	}
	if id != 2 {
		t.Errorf("cluster of last item = %d, want 2", id)
	}
	// now the tail is assigned
	for i := range sr.Items {
		if sr.ClusterIDs[i] == -1 {
			t.Errorf("position %d still unassigned", i)
		}
	}
}

func TestClusterThresholdZero(t *testing.T) {
	items := itemsOf(1, 1.0, 2, 1.0, 3, 1.0)
	sr := composeResult(items, &SearchOptions{Cluster: true, Sort: SortScoreAsc})
	seen := map[int]bool{}
	for _, id := range sr.ClusterIDs {
		if seen[id] {
			t.Fatalf("threshold 0 must isolate every document: %v", sr.ClusterIDs)
		}
		seen[id] = true
	}
}
