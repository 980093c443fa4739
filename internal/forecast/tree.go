package forecast

import (
	"fmt"
	"math/rand"
	"sort"
)

// TreeParams bounds the growth of a regression tree.
type TreeParams struct {
	MaxDepth       int
	MinSamplesLeaf int
}

// Node is one node of a regression tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) validate(features int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= features {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, features)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}

type treeBuilder struct {
	X      [][]float64
	y      []float64
	params TreeParams
	nodes  []Node
	order  []int
}

// fitTree grows a tree on the rows listed in idx (duplicates allowed, as in
// a bootstrap sample), splitting on squared error.
func fitTree(X [][]float64, y []float64, idx []int, params TreeParams) Tree {
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	b := &treeBuilder{X: X, y: y, params: params, order: make([]int, len(idx))}
	rows := append([]int(nil), idx...)
	b.grow(rows, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	var sum float64
	for _, r := range rows {
		sum += b.y[r]
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: sum / float64(len(rows))})

	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return id
	}
	if len(rows) < 2*b.params.MinSamplesLeaf || len(rows) < 2 {
		return id
	}

	feature, threshold, ok := b.bestSplit(rows, sum)
	if !ok {
		return id
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if b.X[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit maximizes sumL²/nL + sumR²/nR, which minimizes the children's
// squared error.
func (b *treeBuilder) bestSplit(rows []int, total float64) (int, float64, bool) {
	n := len(rows)
	parent := total * total / float64(n)
	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0
	minLeaf := b.params.MinSamplesLeaf

	order := b.order[:0]
	order = append(order, rows...)
	for f := range b.X[rows[0]] {
		sort.Slice(order, func(i, j int) bool { return b.X[order[i]][f] < b.X[order[j]][f] })

		var sumL float64
		for p := 0; p < n-1; p++ {
			sumL += b.y[order[p]]
			nL := p + 1
			nR := n - nL
			if nL < minLeaf || nR < minLeaf {
				continue
			}
			lo, hi := b.X[order[p]][f], b.X[order[p+1]][f]
			if lo == hi {
				continue
			}
			sumR := total - sumL
			gain := sumL*sumL/float64(nL) + sumR*sumR/float64(nR) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	b.order = order
	return bestFeature, bestThreshold, bestFeature >= 0
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}
