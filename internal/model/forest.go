package model

import "math/rand"

// ForestRegressor is a bagged ensemble of regression trees predicting rain
// volume in millimetres.
type ForestRegressor struct {
	Trees []RegressionTree
}

type forestConfig struct {
	nTrees   int
	maxDepth int
	minLeaf  int
	seed     int64
}

func fitForest(X [][]float64, y []float64, cfg forestConfig) *ForestRegressor {
	n := len(X)
	rng := rand.New(rand.NewSource(cfg.seed))
	reg := &ForestRegressor{}

	for t := 0; t < cfg.nTrees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		tree := growTree(X, y, idx, treeConfig{
			maxDepth:  cfg.maxDepth,
			minLeaf:   cfg.minLeaf,
			leafValue: meanLeaf(y),
		})
		reg.Trees = append(reg.Trees, tree)
	}

	return reg
}

func (f *ForestRegressor) Predict(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}
