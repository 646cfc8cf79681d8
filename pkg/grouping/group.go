// Package grouping clusters worn sample points into repair areas.
package grouping

import (
	"context"

	"furnacewear/internal/models"
)

// Options controls proximity grouping.
type Options struct {
	// MaxDistance is the inclusive join distance in scene units
	MaxDistance float64

	// MinimumAreaSize is the smallest cluster kept, values below 1 keep every cluster
	MinimumAreaSize int

	// Mode defaults to models.ClusterSeedAnchored
	Mode models.ClusterMode

	// ScanWindow limits seed-anchored comparisons to the next N points; 0 scans all
	ScanWindow int
}

// OptionsFromParams maps analysis parameters onto grouping options.
func OptionsFromParams(p models.AnalysisParams) Options {
	return Options{
		MaxDistance:     p.DistanceBetweenAreas,
		MinimumAreaSize: p.MinimumAreaSize,
		Mode:            p.ClusterMode,
		ScanWindow:      p.ScanWindow,
	}
}

// Cluster is a group of nearby points, listed in input order.
type Cluster struct {
	// Indices refer to the slice passed to Group
	Indices []int
	Points  []models.SamplePoint
}

// Len returns the number of member points.
func (c Cluster) Len() int { return len(c.Indices) }

// Context is polled once per this many distance checks.
const checkInterval = 4096

// Group partitions points into clusters and drops those smaller than
// MinimumAreaSize. Dropped points are not reassigned. It returns ctx.Err()
// if the context is cancelled while grouping.
func Group(ctx context.Context, points []models.SamplePoint, opts Options) ([]Cluster, error) {
	if len(points) == 0 {
		return []Cluster{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		groups [][]int
		err    error
	)
	switch opts.Mode {
	case models.ClusterSingleLinkage:
		groups, err = singleLinkage(ctx, points, opts.MaxDistance)
	default:
		groups, err = seedAnchored(ctx, points, opts.MaxDistance, opts.ScanWindow)
	}
	if err != nil {
		return nil, err
	}

	minSize := max(opts.MinimumAreaSize, 1)
	clusters := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		if len(g) < minSize {
			continue
		}
		c := Cluster{Indices: g, Points: make([]models.SamplePoint, len(g))}
		for i, idx := range g {
			c.Points[i] = points[idx]
		}
		clusters = append(clusters, c)
	}
	return clusters, nil
}

// seedAnchored walks points in input order. Each unvisited point seeds a
// group and claims every later unvisited point within maxDist of the seed.
// Membership is not transitive and depends on input order.
func seedAnchored(ctx context.Context, points []models.SamplePoint, maxDist float64, window int) ([][]int, error) {
	n := len(points)
	r2 := maxDist * maxDist
	visited := make([]bool, n)
	var groups [][]int
	ops := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		group := []int{i}

		end := n
		if window > 0 && i+1+window < n {
			end = i + 1 + window
		}
		seed := points[i]
		for j := i + 1; j < end; j++ {
			ops++
			if ops%checkInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if visited[j] {
				continue
			}
			if seed.DistanceSquaredTo(points[j]) <= r2 {
				visited[j] = true
				group = append(group, j)
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// singleLinkage joins any two points within maxDist, transitively.
// Groups are ordered by their first member.
func singleLinkage(ctx context.Context, points []models.SamplePoint, maxDist float64) ([][]int, error) {
	n := len(points)
	index := NewIndex(points)
	uf := newUnionFind(n)

	for i, p := range points {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, j := range index.Within(p.Position, maxDist) {
			uf.union(i, j)
		}
	}

	byRoot := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		r := uf.find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], i)
	}

	groups := make([][]int, 0, len(roots))
	for _, r := range roots {
		groups = append(groups, byRoot[r])
	}
	return groups, nil
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
