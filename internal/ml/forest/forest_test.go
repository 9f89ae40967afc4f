package forest

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeDepthOne(t *testing.T) {
	tree := Tree{
		Nodes: []Node{{
			FeatureIndex: 0,
			Threshold:    2.5,
			LeftChild:    0,
			LeftIsLeaf:   true,
			RightChild:   1,
			RightIsLeaf:  true,
		}},
		Outputs:     []float64{0.25, 0.75},
		FeatureSize: 2,
		Depth:       1,
	}
	require.NoError(t, tree.Validate())

	assert.Equal(t, 0, tree.Leaf([]float64{1, 0}))
	assert.Equal(t, 0.25, tree.Evaluate([]float64{1, 0}))
	assert.Equal(t, 1, tree.Leaf([]float64{2.5, 0}))
	assert.Equal(t, 0.75, tree.Evaluate([]float64{5, 0}))
}

func TestTreeDepthTwo(t *testing.T) {
	tree := Tree{
		Nodes: []Node{
			{FeatureIndex: 0, Threshold: 2.5, LeftChild: 1, RightChild: 2},
			{FeatureIndex: 1, Threshold: 0, LeftChild: 0, LeftIsLeaf: true, RightChild: 1, RightIsLeaf: true},
			{FeatureIndex: 1, Threshold: 1, LeftChild: 2, LeftIsLeaf: true, RightChild: 3, RightIsLeaf: true},
		},
		Outputs:     []float64{0, 0.2, 0.8, 1},
		FeatureSize: 2,
		Depth:       2,
	}
	require.NoError(t, tree.Validate())

	assert.Equal(t, 0, tree.Leaf([]float64{1, -1}))
	assert.Equal(t, 1, tree.Leaf([]float64{1, 1}))
	assert.Equal(t, 2, tree.Leaf([]float64{5, -2}))
	assert.Equal(t, 3, tree.Leaf([]float64{5, 2}))
}

func TestTreeLeafOnly(t *testing.T) {
	tree := Tree{Outputs: []float64{0.4}, FeatureSize: 3}
	require.NoError(t, tree.Validate())
	assert.Equal(t, 0.4, tree.Evaluate([]float64{1, 2, 3}))
}

func TestTreeValidate(t *testing.T) {
	tests := []struct {
		name string
		tree Tree
	}{
		{"no outputs", Tree{FeatureSize: 1}},
		{"output out of range", Tree{Outputs: []float64{1.5}, FeatureSize: 1}},
		{"feature out of range", Tree{
			Nodes:       []Node{{FeatureIndex: 3, LeftIsLeaf: true, RightChild: 1, RightIsLeaf: true}},
			Outputs:     []float64{0, 1},
			FeatureSize: 2,
		}},
		{"leaf out of range", Tree{
			Nodes:       []Node{{LeftIsLeaf: true, RightChild: 5, RightIsLeaf: true}},
			Outputs:     []float64{0, 1},
			FeatureSize: 2,
		}},
		{"cycle", Tree{
			Nodes:       []Node{{LeftChild: 0, RightChild: 1, RightIsLeaf: true}},
			Outputs:     []float64{0, 1},
			FeatureSize: 2,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.tree.Validate())
		})
	}
}

func TestColumnEdges(t *testing.T) {
	t.Run("few distinct values use midpoints", func(t *testing.T) {
		edges := columnEdges([]float64{3, 1, 2, 1, 3})
		assert.Equal(t, []float64{1.5, 2.5}, edges)
	})

	t.Run("constant column has no edges", func(t *testing.T) {
		assert.Empty(t, columnEdges([]float64{7, 7, 7}))
	})

	t.Run("many distinct values are capped", func(t *testing.T) {
		col := make([]float64, 10000)
		for i := range col {
			col[i] = float64(i)
		}
		edges := columnEdges(col)
		assert.LessOrEqual(t, len(edges)+1, MaxBins)
		assert.IsIncreasing(t, edges)
	})

	t.Run("bin matches threshold decision", func(t *testing.T) {
		b := &binner{edges: [][]float64{{1.5, 2.5}}}
		assert.Equal(t, 3, b.bins(0))
		for _, v := range []float64{0, 1, 1.5, 2, 2.5, 3} {
			bin := int(b.bin(0, v))
			for k, e := range b.edges[0] {
				assert.Equal(t, v < e, bin <= k, "v=%v k=%d", v, k)
			}
		}
	})
}

// xorData labels points by the sign of x0*x1, which no single split can
// separate, plus a noise column.
func xorData(n int, seed uint64) ([][]float64, []int) {
	rng := rand.New(rand.NewPCG(seed, 1))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		a, b := rng.Float64()*2-1, rng.Float64()*2-1
		x[i] = []float64{a, b, rng.Float64()}
		if a*b > 0 {
			y[i] = 1
		}
	}
	return x, y
}

func smallConfig() Config {
	return Config{Trees: 25, MaxDepth: 8, MinSamplesLeaf: 3, MaxFeatures: 2, Seed: 7, Workers: 4}
}

func TestFit_LearnsNonLinearBoundary(t *testing.T) {
	x, y := xorData(2000, 1)
	f, err := Fit(context.Background(), x, y, smallConfig())
	require.NoError(t, err)
	require.NoError(t, f.Validate())
	assert.Len(t, f.Trees, 25)
	assert.Equal(t, 3, f.FeatureSize)

	xt, yt := xorData(500, 2)
	assert.Greater(t, f.Accuracy(xt, yt), 0.85)

	for _, row := range xt {
		p := f.PredictProba(row)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestFit_DeterministicAcrossWorkerCounts(t *testing.T) {
	x, y := xorData(600, 3)

	cfg := smallConfig()
	cfg.Workers = 1
	a, err := Fit(context.Background(), x, y, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	b, err := Fit(context.Background(), x, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Trees, b.Trees)
}

func TestFit_RespectsMinLeafAndDepth(t *testing.T) {
	x, y := xorData(1000, 4)
	cfg := smallConfig()
	cfg.MaxDepth = 3
	f, err := Fit(context.Background(), x, y, cfg)
	require.NoError(t, err)
	for _, tree := range f.Trees {
		assert.LessOrEqual(t, tree.Depth, 3)
		assert.LessOrEqual(t, len(tree.Outputs), 8)
	}
}

func TestFit_PureLabelsGiveLeafOnlyTrees(t *testing.T) {
	x, _ := xorData(100, 5)
	y := make([]int, len(x))
	f, err := Fit(context.Background(), x, y, smallConfig())
	require.NoError(t, err)
	for _, tree := range f.Trees {
		assert.Empty(t, tree.Nodes)
		assert.Equal(t, []float64{0}, tree.Outputs)
	}
	assert.Equal(t, 0, f.Predict(x[0]))
}

func TestFit_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Fit(ctx, nil, nil, smallConfig())
	assert.Error(t, err)

	_, err = Fit(ctx, [][]float64{{1}, {2}}, []int{0}, smallConfig())
	assert.Error(t, err)

	_, err = Fit(ctx, [][]float64{{1}, {2, 3}}, []int{0, 1}, smallConfig())
	assert.Error(t, err)

	_, err = Fit(ctx, [][]float64{{1}, {2}}, []int{0, 2}, smallConfig())
	assert.Error(t, err)

	bad := smallConfig()
	bad.Trees = 0
	_, err = Fit(ctx, [][]float64{{1}, {2}}, []int{0, 1}, bad)
	assert.Error(t, err)
}

func TestFit_Cancelled(t *testing.T) {
	x, y := xorData(500, 6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fit(ctx, x, y, smallConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForest_JSONRoundTrip(t *testing.T) {
	x, y := xorData(400, 8)
	f, err := Fit(context.Background(), x, y, smallConfig())
	require.NoError(t, err)

	raw, err := json.Marshal(f)
	require.NoError(t, err)
	var decoded Forest
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, decoded.Validate())

	for _, row := range x[:50] {
		assert.Equal(t, f.PredictProba(row), decoded.PredictProba(row))
	}
}
