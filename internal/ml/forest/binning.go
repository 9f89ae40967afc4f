package forest

import (
	"sort"
)

// MaxBins bounds the number of histogram bins per feature.
const MaxBins = 64

// binner discretises each feature column once so that split search works on
// small integer histograms instead of sorted float columns.
type binner struct {
	// edges[f] are the ascending split thresholds of feature f. A value x
	// falls into bin k when exactly k edges are <= x, so "bin <= k" is the
	// same decision as "x < edges[f][k]".
	edges [][]float64
}

func newBinner(x [][]float64, featureSize int) *binner {
	b := &binner{edges: make([][]float64, featureSize)}
	col := make([]float64, len(x))
	for f := 0; f < featureSize; f++ {
		for i, row := range x {
			col[i] = row[f]
		}
		b.edges[f] = columnEdges(col)
	}
	return b
}

// columnEdges returns midpoints between consecutive distinct values when the
// column has at most MaxBins of them, and midpoints around quantile cut
// points otherwise. col is sorted in place.
func columnEdges(col []float64) []float64 {
	sort.Float64s(col)
	distinct := col[:0:0]
	for i, v := range col {
		if i == 0 || v != col[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return nil
	}
	if len(distinct) <= MaxBins {
		edges := make([]float64, 0, len(distinct)-1)
		for i := 1; i < len(distinct); i++ {
			edges = append(edges, midpoint(distinct[i-1], distinct[i]))
		}
		return edges
	}

	edges := make([]float64, 0, MaxBins-1)
	n := len(col)
	for q := 1; q < MaxBins; q++ {
		pos := q * n / MaxBins
		if pos <= 0 || pos >= n || col[pos] == col[pos-1] {
			continue
		}
		e := midpoint(col[pos-1], col[pos])
		if len(edges) > 0 && e <= edges[len(edges)-1] {
			continue
		}
		edges = append(edges, e)
	}
	return edges
}

// midpoint returns a threshold t with lo < t <= hi, so lo falls left of the
// split and hi falls right even for adjacent floats.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m <= lo || m > hi {
		return hi
	}
	return m
}

func (b *binner) bin(f int, v float64) uint8 {
	edges := b.edges[f]
	return uint8(sort.Search(len(edges), func(i int) bool { return edges[i] > v }))
}

// transform returns the binned matrix in column-major order.
func (b *binner) transform(x [][]float64) [][]uint8 {
	out := make([][]uint8, len(b.edges))
	for f := range b.edges {
		col := make([]uint8, len(x))
		for i, row := range x {
			col[i] = b.bin(f, row[f])
		}
		out[f] = col
	}
	return out
}

func (b *binner) bins(f int) int {
	return len(b.edges[f]) + 1
}
