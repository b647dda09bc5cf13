package model

import "sort"

// TreeNode is one node of a regression tree, stored flat for gob
// serialization. Leaves carry the prediction value; internal nodes route on
// x[Feature] <= Threshold.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Leaf      bool
}

// RegressionTree is a CART-style tree fitted with variance-reduction splits.
type RegressionTree struct {
	Nodes []TreeNode
}

func (t *RegressionTree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeConfig struct {
	maxDepth int
	minLeaf  int
	// leafValue computes the value of a leaf from the row indices it holds.
	// Boosting passes a Newton step here; plain regression passes the target
	// mean.
	leafValue func(idx []int) float64
}

func growTree(X [][]float64, target []float64, idx []int, cfg treeConfig) RegressionTree {
	t := RegressionTree{}
	t.build(X, target, idx, 0, cfg)
	return t
}

func (t *RegressionTree) build(X [][]float64, target []float64, idx []int, depth int, cfg treeConfig) int {
	nodeIdx := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{Left: -1, Right: -1})

	if depth >= cfg.maxDepth || len(idx) < 2*cfg.minLeaf {
		t.makeLeaf(nodeIdx, idx, cfg)
		return nodeIdx
	}

	feature, threshold, ok := bestSplit(X, target, idx, cfg.minLeaf)
	if !ok {
		t.makeLeaf(nodeIdx, idx, cfg)
		return nodeIdx
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	t.Nodes[nodeIdx].Feature = feature
	t.Nodes[nodeIdx].Threshold = threshold
	l := t.build(X, target, left, depth+1, cfg)
	r := t.build(X, target, right, depth+1, cfg)
	t.Nodes[nodeIdx].Left = l
	t.Nodes[nodeIdx].Right = r
	return nodeIdx
}

func (t *RegressionTree) makeLeaf(nodeIdx int, idx []int, cfg treeConfig) {
	t.Nodes[nodeIdx].Leaf = true
	t.Nodes[nodeIdx].Value = cfg.leafValue(idx)
}

// bestSplit scans every feature for the threshold maximizing variance
// reduction, honoring the minimum leaf size. Returns ok=false when no split
// improves on the parent (constant targets or constant features).
func bestSplit(X [][]float64, target []float64, idx []int, minLeaf int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	if n < 2*minLeaf {
		return 0, 0, false
	}

	var total float64
	for _, i := range idx {
		total += target[i]
	}
	parentScore := total * total / float64(n)
	bestScore := parentScore

	order := make([]int, n)
	for f := 0; f < len(X[idx[0]]); f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += target[order[k]]
			leftN := k + 1
			rightN := n - leftN
			if leftN < minLeaf || rightN < minLeaf {
				continue
			}
			lo, hi := X[order[k]][f], X[order[k+1]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(leftN) + rightSum*rightSum/float64(rightN)
			if score > bestScore {
				bestScore = score
				feature = f
				threshold = lo + (hi-lo)/2
				ok = true
			}
		}
	}

	return feature, threshold, ok
}

func meanLeaf(target []float64) func(idx []int) float64 {
	return func(idx []int) float64 {
		if len(idx) == 0 {
			return 0
		}
		var sum float64
		for _, i := range idx {
			sum += target[i]
		}
		return sum / float64(len(idx))
	}
}
