package forest

import (
	"math/rand/v2"
)

// binnedData is the training matrix shared read-only by all growers.
type binnedData struct {
	*binner
	cols [][]uint8
	y    []int
}

// grower builds one tree. It is not safe for concurrent use.
type grower struct {
	data     *binnedData
	rng      *rand.Rand
	mtry     int
	maxDepth int
	minLeaf  int

	features []int
	nodes    []Node
	outputs  []float64
	depth    int

	// per-bin scratch histograms
	total [MaxBins]int
	pos   [MaxBins]int
}

type split struct {
	feature  int
	bin      int
	impurity float64
}

func (g *grower) grow(sample []int, featureSize int) Tree {
	for i := range g.features {
		g.features[i] = i
	}
	g.build(sample, 0)
	return Tree{
		Nodes:       g.nodes,
		Outputs:     g.outputs,
		FeatureSize: featureSize,
		Depth:       g.depth,
	}
}

// build grows the subtree over sample and returns its index along with
// whether it is a leaf. Nodes are appended in pre-order.
func (g *grower) build(sample []int, depth int) (int, bool) {
	n := len(sample)
	var positives int
	for _, i := range sample {
		positives += g.data.y[i]
	}

	if depth >= g.maxDepth || n < 2*g.minLeaf || positives == 0 || positives == n {
		return g.leaf(positives, n, depth), true
	}

	best, ok := g.bestSplit(sample, positives)
	if !ok {
		return g.leaf(positives, n, depth), true
	}

	// Partition so that sample[:mid] holds the rows with bin <= best.bin.
	col := g.data.cols[best.feature]
	mid := 0
	for j, i := range sample {
		if int(col[i]) <= best.bin {
			sample[mid], sample[j] = sample[j], sample[mid]
			mid++
		}
	}

	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		FeatureIndex: best.feature,
		Threshold:    g.data.edges[best.feature][best.bin],
	})
	left, leftLeaf := g.build(sample[:mid], depth+1)
	right, rightLeaf := g.build(sample[mid:], depth+1)
	g.nodes[idx].LeftChild, g.nodes[idx].LeftIsLeaf = left, leftLeaf
	g.nodes[idx].RightChild, g.nodes[idx].RightIsLeaf = right, rightLeaf
	return idx, false
}

func (g *grower) leaf(positives, n, depth int) int {
	g.outputs = append(g.outputs, float64(positives)/float64(n))
	g.depth = max(g.depth, depth)
	return len(g.outputs) - 1
}

// bestSplit scans mtry randomly chosen features and returns the split with
// the lowest weighted Gini impurity that keeps at least minLeaf samples on
// both sides and improves on the parent.
func (g *grower) bestSplit(sample []int, positives int) (split, bool) {
	n := len(sample)
	best := split{impurity: gini(positives, n)}
	found := false

	// Partial Fisher-Yates: the first mtry entries become the candidates.
	for k := 0; k < g.mtry; k++ {
		j := k + g.rng.IntN(len(g.features)-k)
		g.features[k], g.features[j] = g.features[j], g.features[k]
		f := g.features[k]

		nbins := g.data.bins(f)
		if nbins < 2 {
			continue
		}
		col := g.data.cols[f]
		clear(g.total[:nbins])
		clear(g.pos[:nbins])
		for _, i := range sample {
			b := col[i]
			g.total[b]++
			g.pos[b] += g.data.y[i]
		}

		var leftN, leftPos int
		for b := 0; b < nbins-1; b++ {
			leftN += g.total[b]
			leftPos += g.pos[b]
			if g.total[b] == 0 {
				continue
			}
			rightN := n - leftN
			if leftN < g.minLeaf {
				continue
			}
			if rightN < g.minLeaf {
				break
			}
			imp := (float64(leftN)*gini(leftPos, leftN) + float64(rightN)*gini(positives-leftPos, rightN)) / float64(n)
			if imp < best.impurity-1e-12 {
				best = split{feature: f, bin: b, impurity: imp}
				found = true
			}
		}
	}
	return best, found
}

// gini returns the Gini impurity 2p(1-p) of a node with pos positives out
// of n samples.
func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}
