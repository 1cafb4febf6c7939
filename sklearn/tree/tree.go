// Package tree implements CART decision trees.
//
// Trees are stored as flat node arrays so a fitted tree marshals to JSON
// directly: the scenario simulator persists its zone classifier that way.
package tree

import (
	"math"
)

// Leaf marks a node without a split in Node.Feature.
const Leaf = -1

// Node is one entry of a fitted tree.
type Node struct {
	Feature   int     `json:"feature"`          // Split feature, or Leaf
	Threshold float64 `json:"threshold"`        // Samples with value <= Threshold go left
	Left      int     `json:"left"`             // Index of the left child
	Right     int     `json:"right"`            // Index of the right child
	Value     float64 `json:"value"`            // Mean target (regression) or majority class index
	Counts    []int   `json:"counts,omitempty"` // Class counts (classification)
	NSamples  int     `json:"n_samples"`        // Training samples reaching this node
	Impurity  float64 `json:"impurity"`         // Node impurity
	Depth     int     `json:"depth"`            // Depth of this node in the tree
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Feature == Leaf }

// Tree is a fitted decision tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Apply returns the index of the leaf that row falls into.
func (t *Tree) Apply(row func(feature int) float64) int {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := t.Nodes[i]
		if row(n.Feature) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Depth returns the depth of the deepest leaf.
func (t *Tree) Depth() int {
	d := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() && n.Depth > d {
			d = n.Depth
		}
	}
	return d
}

// NLeaves returns the number of leaf nodes.
func (t *Tree) NLeaves() int {
	c := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			c++
		}
	}
	return c
}

func (t *Tree) add(n Node) int {
	t.Nodes = append(t.Nodes, n)
	return len(t.Nodes) - 1
}

// normalize scales v in place to sum to 1. All-zero input is left unchanged.
func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum <= 0 || math.IsNaN(sum) {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}
