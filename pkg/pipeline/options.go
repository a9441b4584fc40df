package pipeline

import "github.com/askiada/go-train-pipeline/pkg/pipeline/model"

type StepOption[O any] func(s *model.Step[O])

// StepConcurrency runs the step function in concurrent goroutines.
// Output order is not preserved when concurrent is greater than 1.
func StepConcurrency[O any](concurrent int) StepOption[O] {
	return func(s *model.Step[O]) {
		s.Details.Concurrent = concurrent
	}
}

// StepKeepOpen leaves the output channel open when the step function
// returns. The caller owns closing it.
func StepKeepOpen[O any]() StepOption[O] {
	return func(s *model.Step[O]) {
		s.KeepOpen = true
	}
}

type SplitterOption[I any] func(s *Splitter[I])

// SplitterBufferSize sets the buffer of every splitter branch.
func SplitterBufferSize[I any](bufferSize int) SplitterOption[I] {
	return func(s *Splitter[I]) {
		s.bufferSize = bufferSize
	}
}
