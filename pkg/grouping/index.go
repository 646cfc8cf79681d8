package grouping

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"furnacewear/internal/models"
)

// node is a sample position tagged with its index in the input slice.
type node struct {
	pos [3]float64
	idx int
}

// Compare implements the kdtree.Comparable interface
func (n node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(node)
	return n.pos[d] - q.pos[d]
}

// Dims returns the number of dimensions for the KD-tree
func (n node) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two nodes
func (n node) Distance(c kdtree.Comparable) float64 {
	q := c.(node)
	dx := n.pos[0] - q.pos[0]
	dy := n.pos[1] - q.pos[1]
	dz := n.pos[2] - q.pos[2]
	return dx*dx + dy*dy + dz*dz
}

// nodes satisfies kdtree.Interface
type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p nodes) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{nodes: p, Dim: d}, kdtree.MedianOfRandoms(plane{nodes: p, Dim: d}, 100))
}

// plane implements sort.Interface and kdtree.SortSlicer for nodes
type plane struct {
	nodes
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.nodes[i].pos[p.Dim] < p.nodes[j].pos[p.Dim]
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{nodes: p.nodes[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i]
}

// Index answers radius queries over a fixed set of points.
type Index struct {
	tree *kdtree.Tree
}

// NewIndex builds a k-d tree over the point positions. The input slice is
// not reordered.
func NewIndex(points []models.SamplePoint) *Index {
	ns := make(nodes, len(points))
	for i, p := range points {
		ns[i] = node{pos: p.Position, idx: i}
	}
	if len(ns) == 0 {
		return &Index{}
	}
	return &Index{tree: kdtree.New(ns, false)}
}

// Within returns the input indices of all points at most r away from q,
// including q itself when it is indexed.
func (x *Index) Within(q [3]float64, r float64) []int {
	if x.tree == nil || r < 0 {
		return nil
	}
	keeper := kdtree.NewDistKeeper(r * r)
	x.tree.NearestSet(keeper, node{pos: q, idx: -1})

	out := make([]int, 0, len(keeper.Heap))
	for _, cd := range keeper.Heap {
		// the keeper starts with a nil sentinel that survives an empty search
		if cd.Comparable == nil {
			continue
		}
		out = append(out, cd.Comparable.(node).idx)
	}
	return out
}
