package recovery

import (
	"container/heap"
	"sort"
)

func orderedPair(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// mergeCand is a candidate cluster merge, prioritized by its
// complete-linkage distance.
type mergeCand struct {
	c1, c2 int
	dist   pairDist
}

type mergeHeap []mergeCand

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist.less(h[j].dist)
	}
	// Tie-break on cluster ids so pop order is deterministic.
	if h[i].c1 != h[j].c1 {
		return h[i].c1 < h[j].c1
	}
	return h[i].c2 < h[j].c2
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(mergeCand)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// completeLinkage clusters one connected component so that every pair
// inside a cluster is a qualifying pair. Merges happen in order of
// increasing complete-linkage distance (the max pairwise distance
// between two clusters); a merge is allowed only when every cross pair
// exists in dists, i.e. every cross pair qualifies.
func completeLinkage(component []int, dists map[[2]int]pairDist) [][]int {
	n := len(component)
	if n <= 1 {
		if n == 0 {
			return nil
		}
		return [][]int{{component[0]}}
	}

	globalToLocal := make(map[int]int, n)
	for li, gi := range component {
		globalToLocal[gi] = li
	}

	localDist := make(map[[2]int]pairDist)
	for pair, d := range dists {
		la, okA := globalToLocal[pair[0]]
		lb, okB := globalToLocal[pair[1]]
		if okA && okB {
			localDist[orderedPair(la, lb)] = d
		}
	}

	// Every point starts as its own cluster; cluster ids are the local
	// index of the founding point.
	clusters := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		clusters[i] = []int{i}
	}

	clusterDist := make(map[[2]int]pairDist, len(localDist))
	for pair, d := range localDist {
		clusterDist[pair] = d
	}

	h := make(mergeHeap, 0, len(clusterDist))
	for pair, d := range clusterDist {
		h = append(h, mergeCand{c1: pair[0], c2: pair[1], dist: d})
	}
	heap.Init(&h)

	for h.Len() > 0 {
		cand := heap.Pop(&h).(mergeCand)

		if _, ok := clusters[cand.c1]; !ok {
			continue
		}
		if _, ok := clusters[cand.c2]; !ok {
			continue
		}
		key := orderedPair(cand.c1, cand.c2)
		cur, ok := clusterDist[key]
		if !ok || cur != cand.dist {
			continue // stale entry
		}

		// Merge c2 into c1.
		merged := append(clusters[cand.c1], clusters[cand.c2]...)
		clusters[cand.c1] = merged
		delete(clusters, cand.c2)
		delete(clusterDist, key)

		// Recompute complete-linkage distances from the merged cluster.
		for other, members := range clusters {
			if other == cand.c1 {
				continue
			}
			delete(clusterDist, orderedPair(cand.c2, other))
			okey := orderedPair(cand.c1, other)
			maxD, linked := completeDist(merged, members, localDist)
			if linked {
				clusterDist[okey] = maxD
				heap.Push(&h, mergeCand{c1: okey[0], c2: okey[1], dist: maxD})
			} else {
				delete(clusterDist, okey)
			}
		}
	}

	out := make([][]int, 0, len(clusters))
	for _, members := range clusters {
		global := make([]int, len(members))
		for i, li := range members {
			global[i] = component[li]
		}
		sort.Ints(global)
		out = append(out, global)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// completeDist returns the max pairwise distance between two clusters,
// and whether every cross pair qualifies (is present in dists).
func completeDist(a, b []int, dists map[[2]int]pairDist) (pairDist, bool) {
	var maxD pairDist
	first := true
	for _, p1 := range a {
		for _, p2 := range b {
			d, ok := dists[orderedPair(p1, p2)]
			if !ok {
				return pairDist{}, false
			}
			if first || maxD.less(d) {
				maxD = d
				first = false
			}
		}
	}
	return maxD, !first
}

// bridgeMerge joins two cores when at least minPairs qualifying pairs
// cross between them. minPairs is a deliberately tunable knob: the right
// value depends on how aggressively a collection's borderline pairs
// chain, so it is configuration, not a constant.
func bridgeMerge(n int, cores [][]int, edges []edge, minPairs int) [][]int {
	coreOf := make([]int, n)
	for i := range coreOf {
		coreOf[i] = -1
	}
	for ci, members := range cores {
		for _, m := range members {
			coreOf[m] = ci
		}
	}

	bridges := make(map[[2]int]int)
	for _, e := range edges {
		ca, cb := coreOf[e.a], coreOf[e.b]
		if ca < 0 || cb < 0 || ca == cb {
			continue
		}
		bridges[orderedPair(ca, cb)]++
	}

	uf := newUnionFind(len(cores))
	for pair, count := range bridges {
		if count >= minPairs {
			uf.union(pair[0], pair[1])
		}
	}

	merged := make(map[int][]int)
	for ci, members := range cores {
		root := uf.find(ci)
		merged[root] = append(merged[root], members...)
	}

	out := make([][]int, 0, len(merged))
	for _, members := range merged {
		sort.Ints(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
