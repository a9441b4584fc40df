package pipeline_test

import (
	"testing"

	"github.com/askiada/go-train-pipeline/pkg/pipeline/model"
)

func createInputStep(t *testing.T, name string, total int) *model.Step[int] {
	t.Helper()
	inputChan := make(chan int)
	go func() {
		defer close(inputChan)
		for i := 0; i < total; i++ {
			inputChan <- i
		}
	}()

	return &model.Step[int]{
		Details: &model.StepInfo{Name: name},
		Output:  inputChan,
	}
}

func processOutputChan[O any](t *testing.T, output <-chan O) (res []O) {
	t.Helper()
	for out := range output {
		res = append(res, out)
	}

	return res
}
