// Package evaluate scores a trained classifier on the held-out split.
package evaluate

import "math"

// Report holds the evaluation metrics of one run.
type Report struct {
	Samples   int     `json:"samples"`
	Threshold float64 `json:"threshold"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	LogLoss   float64 `json:"log_loss"`
}

// Evaluate scores predicted probabilities against binary labels.
func Evaluate(yTrue, proba []float64, threshold float64) Report {
	report := Report{
		Samples:   len(yTrue),
		Threshold: threshold,
	}
	if len(yTrue) == 0 {
		return report
	}

	tp, fp, fn, correct := 0, 0, 0, 0
	logLoss := 0.0

	for i, y := range yTrue {
		p := math.Min(math.Max(proba[i], 1e-12), 1-1e-12)
		logLoss += -(y*math.Log(p) + (1-y)*math.Log(1-p))

		pred := 0.0
		if proba[i] >= threshold {
			pred = 1
		}

		if pred == y {
			correct++
		}
		switch {
		case pred == 1 && y == 1:
			tp++
		case pred == 1 && y == 0:
			fp++
		case pred == 0 && y == 1:
			fn++
		}
	}

	report.Accuracy = float64(correct) / float64(len(yTrue))
	report.LogLoss = logLoss / float64(len(yTrue))
	if tp+fp > 0 {
		report.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		report.Recall = float64(tp) / float64(tp+fn)
	}
	if report.Precision+report.Recall > 0 {
		report.F1 = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}

	return report
}
