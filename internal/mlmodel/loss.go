package mlmodel

import "math"

// Sigmoid squashes z into (0, 1).
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// BCE returns the binary cross-entropy loss and its gradient with respect
// to the predictions. Predictions are clamped away from 0 and 1 to keep
// the logs finite.
func BCE(yTrue, yPred []float64) (float64, []float64) {
	n := len(yTrue)
	sum := 0.0
	grad := make([]float64, n)

	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred[i], 1e-12), 1-1e-12)
		y := yTrue[i]
		sum += -(y*math.Log(p) + (1-y)*math.Log(1-p))
		grad[i] = (p - y) / float64(n)
	}

	return sum / float64(n), grad
}
