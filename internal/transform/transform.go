// Package transform provides the feature preparation applied between
// ingestion and training: median imputation of missing values followed by
// standardisation. Every transformer is fitted on the training split only
// and then applied to both splits.
package transform

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

var ErrNotFitted = errors.New("transformer must be fitted first")

// Transformer is the fit/transform contract shared by every feature
// preparation stage.
type Transformer interface {
	Fit(x [][]float64) error
	Transform(x [][]float64) ([][]float64, error)
}

// Chain applies transformers in order. Fit fits each transformer on the
// output of the previous one.
type Chain []Transformer

func (c Chain) Fit(x [][]float64) error {
	for _, tr := range c {
		err := tr.Fit(x)
		if err != nil {
			return err
		}
		out, err := tr.Transform(x)
		if err != nil {
			return err
		}
		x = out
	}

	return nil
}

func (c Chain) Transform(x [][]float64) ([][]float64, error) {
	for _, tr := range c {
		out, err := tr.Transform(x)
		if err != nil {
			return nil, err
		}
		x = out
	}

	return x, nil
}

// MedianImputer replaces NaN cells with the per-column median observed
// during Fit.
type MedianImputer struct {
	Medians []float64
}

func (m *MedianImputer) Fit(x [][]float64) error {
	if len(x) == 0 {
		return errors.New("unable to fit imputer on empty data")
	}

	cols := len(x[0])
	m.Medians = make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := make([]float64, 0, len(x))
		for i := range x {
			if !math.IsNaN(x[i][j]) {
				col = append(col, x[i][j])
			}
		}
		m.Medians[j] = median(col)
	}

	return nil
}

func (m *MedianImputer) Transform(x [][]float64) ([][]float64, error) {
	if m.Medians == nil {
		return nil, ErrNotFitted
	}

	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) && j < len(m.Medians) {
				v = m.Medians[j]
			}
			out[i][j] = v
		}
	}

	return out, nil
}

func median(col []float64) float64 {
	if len(col) == 0 {
		return 0
	}
	sorted := make([]float64, len(col))
	copy(sorted, col)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

// StandardScaler standardises each column to zero mean and unit variance.
// Constant columns map to zero.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return errors.New("unable to fit scaler on empty data")
	}

	rows, cols := len(x), len(x[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += x[i][j]
		}
		s.Mean[j] = sum / float64(rows)

		varSum := 0.0
		for i := 0; i < rows; i++ {
			d := x[i][j] - s.Mean[j]
			varSum += d * d
		}
		s.Std[j] = math.Sqrt(varSum / float64(rows))
	}

	return nil
}

func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}

	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if j >= len(s.Mean) {
				out[i][j] = v

				continue
			}
			if s.Std[j] != 0 {
				out[i][j] = (v - s.Mean[j]) / s.Std[j]
			} else {
				out[i][j] = 0
			}
		}
	}

	return out, nil
}

// Params captures the fitted transform state for artifact persistence, so
// a scorer can reproduce the exact same preparation.
type Params struct {
	Medians []float64 `json:"medians"`
	Mean    []float64 `json:"mean"`
	Std     []float64 `json:"std"`
}

// NewChain builds the default preparation chain and returns it along with
// the transformers, so fitted parameters can be extracted afterwards.
func NewChain() (Chain, *MedianImputer, *StandardScaler) {
	imputer := &MedianImputer{}
	scaler := &StandardScaler{}

	return Chain{imputer, scaler}, imputer, scaler
}
