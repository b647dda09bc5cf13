package model

import (
	"math"
	"math/rand"
)

// GBMClassifier is a binary gradient-boosted classifier with logistic loss.
// Each stage fits a regression tree to the probability residuals and applies
// a single Newton step per leaf.
type GBMClassifier struct {
	InitScore    float64
	LearningRate float64
	Trees        []RegressionTree
}

type gbmConfig struct {
	nTrees       int
	maxDepth     int
	learningRate float64
	subsample    float64
	seed         int64
}

func fitGBM(X [][]float64, y []float64, cfg gbmConfig) *GBMClassifier {
	n := len(X)
	var pos float64
	for _, v := range y {
		pos += v
	}
	// Clamp so the initial log-odds stays finite on one-class data.
	p0 := pos / float64(n)
	if p0 < 1e-6 {
		p0 = 1e-6
	}
	if p0 > 1-1e-6 {
		p0 = 1 - 1e-6
	}

	clf := &GBMClassifier{
		InitScore:    math.Log(p0 / (1 - p0)),
		LearningRate: cfg.learningRate,
	}

	rng := rand.New(rand.NewSource(cfg.seed))
	score := make([]float64, n)
	for i := range score {
		score[i] = clf.InitScore
	}
	residual := make([]float64, n)

	sampleSize := int(math.Round(cfg.subsample * float64(n)))
	if sampleSize < 1 {
		sampleSize = 1
	}

	for t := 0; t < cfg.nTrees; t++ {
		prob := make([]float64, n)
		for i := range score {
			prob[i] = sigmoid(score[i])
			residual[i] = y[i] - prob[i]
		}

		idx := rng.Perm(n)[:sampleSize]

		tree := growTree(X, residual, idx, treeConfig{
			maxDepth: cfg.maxDepth,
			minLeaf:  1,
			leafValue: func(leaf []int) float64 {
				// Newton step: sum(residual) / sum(p*(1-p)).
				var num, den float64
				for _, i := range leaf {
					num += residual[i]
					den += prob[i] * (1 - prob[i])
				}
				if den < 1e-12 {
					return 0
				}
				return num / den
			},
		})

		for i := range score {
			score[i] += cfg.learningRate * tree.Predict(X[i])
		}
		clf.Trees = append(clf.Trees, tree)
	}

	return clf
}

// PredictProba returns the rain probability for a preprocessed feature vector.
func (c *GBMClassifier) PredictProba(x []float64) float64 {
	score := c.InitScore
	for i := range c.Trees {
		score += c.LearningRate * c.Trees[i].Predict(x)
	}
	return sigmoid(score)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
