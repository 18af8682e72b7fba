package recovery

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// pairDist holds the primary and secondary hash distances for one photo
// pair. Ordered lexicographically: primary first, then secondary.
type pairDist struct {
	primary   int
	secondary int
}

func (d pairDist) less(o pairDist) bool {
	if d.primary != o.primary {
		return d.primary < o.primary
	}
	return d.secondary < o.secondary
}

// edge is one qualifying (same-scene) pair, a < b.
type edge struct {
	a, b int
	dist pairDist
}

// linkage turns the qualifying pairs over n photos into a partition.
// The two implementations produce different cluster boundaries and are
// not interchangeable mid-run, so the active one is fixed per Grouper
// and recorded in run metadata.
type linkage interface {
	clusters(n int, edges []edge) [][]int
}

// Grouper partitions hashed photos into similarity clusters.
type Grouper struct {
	cfg     *Config
	linkage linkage
}

func NewGrouper(cfg *Config) *Grouper {
	cfg.defaults()
	g := &Grouper{cfg: cfg}
	switch cfg.Linkage {
	case LinkageComplete:
		g.linkage = completeLinkageStrategy{minPairs: cfg.BridgeMinPairs}
	default:
		g.linkage = singleLinkageStrategy{}
	}
	return g
}

// SameScene is the pairwise predicate combining primary distance p and
// secondary distance s. The secondary hash disambiguates borderline
// primary distances.
func (g *Grouper) SameScene(p, s int) bool {
	switch {
	case p <= g.cfg.PrimarySafeMax:
		return true
	case p <= g.cfg.PrimaryBorderlineMid:
		return s < g.cfg.SecondaryExcludeAtMid
	case p <= g.cfg.PrimaryBorderlineMax:
		return s <= g.cfg.SecondaryIncludeAtMax
	default:
		return false
	}
}

// Group clusters the photos and returns a partition as index slices:
// singletons where no match was found, clusters of two or more
// elsewhere. Every photo must already carry both hashes; photos without
// hashes are the caller's job to exclude, and finding one here is a
// programming error.
//
// Cluster membership is independent of input pair discovery order. The
// returned partition is ordered by each cluster's smallest index.
func (g *Grouper) Group(ctx context.Context, photos []*Photo) ([][]int, error) {
	for i, p := range photos {
		if !p.HasHashes {
			return nil, fmt.Errorf("grouper: photo %s (index %d) has no hashes", p.ID, i)
		}
	}

	edges, err := g.edges(ctx, photos)
	if err != nil {
		return nil, err
	}
	return g.linkage.clusters(len(photos), edges), nil
}

// edges computes the qualifying pairs over the full pairwise space. The
// comparison is embarrassingly parallel: rows are striped across workers
// and no shared state is touched until the per-worker results are
// concatenated.
func (g *Grouper) edges(ctx context.Context, photos []*Photo) ([]edge, error) {
	n := len(photos)
	workers := g.cfg.Workers
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	results := make([][]edge, workers)
	eg, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		eg.Go(func() error {
			var found []edge
			// Stride rows so the triangular workload spreads evenly.
			for i := w; i < n; i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				pi := photos[i]
				for j := i + 1; j < n; j++ {
					pj := photos[j]
					p := Distance(pi.PrimaryHash, pj.PrimaryHash)
					if p > g.cfg.PrimaryBorderlineMax {
						continue
					}
					s := Distance(pi.SecondaryHash, pj.SecondaryHash)
					if g.SameScene(p, s) {
						found = append(found, edge{a: i, b: j, dist: pairDist{p, s}})
					}
				}
			}
			results[w] = found
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []edge
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// singleLinkageStrategy computes connected components over the
// qualifying pairs: a transitive chain of matches is enough for
// membership. This is the chaining-prone mode; complete linkage is the
// stricter alternative.
type singleLinkageStrategy struct{}

func (singleLinkageStrategy) clusters(n int, edges []edge) [][]int {
	uf := newUnionFind(n)
	for _, e := range edges {
		uf.union(e.a, e.b)
	}
	return uf.components()
}

// completeLinkageStrategy forms tight cores in which every pair
// qualifies, then joins cores that share at least minPairs qualifying
// cross-pairs.
type completeLinkageStrategy struct {
	minPairs int
}

func (s completeLinkageStrategy) clusters(n int, edges []edge) [][]int {
	dists := make(map[[2]int]pairDist, len(edges))
	for _, e := range edges {
		dists[[2]int{e.a, e.b}] = e.dist
	}

	// Complete linkage only ever merges within a connected component,
	// so components bound the expensive part.
	components := singleLinkageStrategy{}.clusters(n, edges)

	var cores [][]int
	for _, comp := range components {
		cores = append(cores, completeLinkage(comp, dists)...)
	}

	return bridgeMerge(n, cores, edges, s.minPairs)
}
