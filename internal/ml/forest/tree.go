package forest

import (
	"fmt"
	"math"
)

// A Node represents a splitting decision of the form
// "x[FeatureIndex] < Threshold ?". Children are either further nodes or
// indices into the tree's Outputs.
type Node struct {
	FeatureIndex int     `json:"feature_index"`
	Threshold    float64 `json:"threshold"`
	LeftChild    int     `json:"left_child"`
	LeftIsLeaf   bool    `json:"left_is_leaf"`
	RightChild   int     `json:"right_child"`
	RightIsLeaf  bool    `json:"right_is_leaf"`
}

// Tree is a fitted classification tree stored as a flat node list. Nodes
// are laid out in pre-order, so every internal child index is greater than
// its parent's. A tree with no nodes is a single leaf, Outputs[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
	// Outputs holds the class-1 fraction of the training samples in each leaf.
	Outputs     []float64 `json:"outputs"`
	FeatureSize int       `json:"feature_size"`
	// Depth is the maximum depth of any leaf.
	Depth int `json:"depth"`
}

// Leaf drops a feature vector down the tree and returns the index of the
// leaf it ends up in.
func (t *Tree) Leaf(x []float64) int {
	if len(t.Nodes) == 0 {
		return 0
	}
	cur := t.Nodes[0]
	for {
		if x[cur.FeatureIndex] < cur.Threshold {
			if cur.LeftIsLeaf {
				return cur.LeftChild
			}
			cur = t.Nodes[cur.LeftChild]
		} else {
			if cur.RightIsLeaf {
				return cur.RightChild
			}
			cur = t.Nodes[cur.RightChild]
		}
	}
}

// Evaluate returns the class-1 probability of the leaf x falls into.
func (t *Tree) Evaluate(x []float64) float64 {
	return t.Outputs[t.Leaf(x)]
}

// Validate checks the structural invariants Leaf relies on, so a decoded
// tree can be evaluated without bounds failures or cycles.
func (t *Tree) Validate() error {
	if len(t.Outputs) == 0 {
		return fmt.Errorf("tree has no outputs")
	}
	for i, o := range t.Outputs {
		if math.IsNaN(o) || o < 0 || o > 1 {
			return fmt.Errorf("output %d is %v, want a probability", i, o)
		}
	}
	if len(t.Nodes) == 0 && len(t.Outputs) != 1 {
		return fmt.Errorf("leaf-only tree has %d outputs", len(t.Outputs))
	}
	for i, n := range t.Nodes {
		if n.FeatureIndex < 0 || n.FeatureIndex >= t.FeatureSize {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.FeatureIndex, t.FeatureSize)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("node %d has NaN threshold", i)
		}
		if err := t.checkChild(i, n.LeftChild, n.LeftIsLeaf); err != nil {
			return err
		}
		if err := t.checkChild(i, n.RightChild, n.RightIsLeaf); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) checkChild(parent, child int, leaf bool) error {
	if leaf {
		if child < 0 || child >= len(t.Outputs) {
			return fmt.Errorf("node %d points at leaf %d of %d", parent, child, len(t.Outputs))
		}
		return nil
	}
	if child <= parent || child >= len(t.Nodes) {
		return fmt.Errorf("node %d points at node %d of %d", parent, child, len(t.Nodes))
	}
	return nil
}
