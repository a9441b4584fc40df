// Package mlmodel implements the binary classifier trained by the
// pipeline: a logistic regression fitted with mini-batch stochastic
// gradient descent.
package mlmodel

import (
	"context"
	"math/rand"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

var ErrFeatureMismatch = errors.New("feature count mismatch between model and data")

// LogisticRegression is a binary classifier with a sigmoid output.
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`

	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`

	rng *rand.Rand
}

// NewLogisticRegression initialises a model for nFeatures inputs. Weights
// start at small random values to break symmetry; the seed makes runs
// reproducible.
func NewLogisticRegression(nFeatures int, learningRate float64, epochs, batchSize int, seed int64) *LogisticRegression {
	rng := rand.New(rand.NewSource(seed))
	weights := make([]float64, nFeatures)
	for i := range weights {
		weights[i] = rng.NormFloat64() * 0.01
	}

	return &LogisticRegression{
		Weights:      weights,
		Bias:         0,
		LearningRate: learningRate,
		Epochs:       epochs,
		BatchSize:    batchSize,
		rng:          rng,
	}
}

// PredictProba returns the probability of class 1 for every row of x.
// Rows are sharded across GOMAXPROCS workers.
func (m *LogisticRegression) PredictProba(x [][]float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	out := make([]float64, len(x))

	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (len(x) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := start + rowsPerWorker
		if end > len(x) {
			end = len(x)
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				sum := m.Bias
				for j, v := range x[i] {
					sum += m.Weights[j] * v
				}
				out[i] = Sigmoid(sum)
			}
		}(start, end)
	}
	wg.Wait()

	return out
}

// Predict returns class labels using the given probability threshold.
func (m *LogisticRegression) Predict(x [][]float64, threshold float64) []int {
	proba := m.PredictProba(x)
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			out[i] = 1
		}
	}

	return out
}

// Fit trains the model on x and y with mini-batch SGD. The sample order
// is reshuffled every epoch. Fit stops early when the context is
// cancelled.
func (m *LogisticRegression) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if len(x) == 0 {
		return errors.New("unable to fit on empty data")
	}
	if len(x[0]) != len(m.Weights) {
		return errors.Wrapf(ErrFeatureMismatch, "got %d, want %d", len(x[0]), len(m.Weights))
	}

	opt := NewSGD(m.LearningRate)
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}

	for ep := 0; ep < m.Epochs; ep++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for start := 0; start < len(order); start += m.BatchSize {
			end := start + m.BatchSize
			if end > len(order) {
				end = len(order)
			}

			batchX := make([][]float64, 0, end-start)
			batchY := make([]float64, 0, end-start)
			for _, idx := range order[start:end] {
				batchX = append(batchX, x[idx])
				batchY = append(batchY, y[idx])
			}

			m.step(opt, batchX, batchY)
		}
	}

	return nil
}

func (m *LogisticRegression) step(opt *SGD, batchX [][]float64, batchY []float64) {
	proba := m.PredictProba(batchX)
	_, dy := BCE(batchY, proba)

	gradW := make([]float64, len(m.Weights))
	gradB := 0.0
	for i, row := range batchX {
		d := dy[i]
		for j, v := range row {
			gradW[j] += d * v
		}
		gradB += d
	}

	opt.Step(m.Weights, gradW)
	m.Bias -= m.LearningRate * gradB
}
