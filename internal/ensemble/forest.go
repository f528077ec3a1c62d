package ensemble

import "fmt"

// TreeNode is one node of a decision tree in the exported artifact layout.
// Leaf nodes have Feature == -1; Value holds the regression value (length 1)
// or the per-class sample distribution for classifiers.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

// Tree is a single decision tree stored as a flat node array rooted at 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Forest is a trained random forest: predictions are averaged (regression)
// or vote-summed (classification) across trees.
type Forest struct {
	Trees []Tree `json:"trees"`
}

// leaf walks the tree for input x and returns the leaf value.
func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Feature < 0 {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// PredictValue returns the forest regression prediction for x.
func (f *Forest) PredictValue(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].leaf(x)[0]
	}
	return sum / float64(len(f.Trees))
}

// PredictClass returns the majority class index for x, summing each tree's
// class distribution. Ties resolve to the lowest class index.
func (f *Forest) PredictClass(x []float64) int {
	var votes []float64
	for i := range f.Trees {
		leaf := f.Trees[i].leaf(x)
		if votes == nil {
			votes = make([]float64, len(leaf))
		}
		for c, v := range leaf {
			votes[c] += v
		}
	}

	best := 0
	for c := 1; c < len(votes); c++ {
		if votes[c] > votes[best] {
			best = c
		}
	}
	return best
}

// validate checks structural sanity of the forest against the feature count.
func (f *Forest) validate(name string, numFeatures int) error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("%s: forest has no trees", name)
	}
	for ti, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("%s: tree %d has no nodes", name, ti)
		}
		for ni, node := range tree.Nodes {
			if node.Feature >= numFeatures {
				return fmt.Errorf("%s: tree %d node %d references feature %d of %d", name, ti, ni, node.Feature, numFeatures)
			}
			if node.Feature >= 0 {
				if node.Left < 0 || node.Left >= len(tree.Nodes) || node.Right < 0 || node.Right >= len(tree.Nodes) {
					return fmt.Errorf("%s: tree %d node %d has out-of-range children", name, ti, ni)
				}
			} else if len(node.Value) == 0 {
				return fmt.Errorf("%s: tree %d node %d is a leaf with no value", name, ti, ni)
			}
		}
	}
	return nil
}
