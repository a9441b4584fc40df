package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-train-pipeline/pkg/pipeline"
	"github.com/askiada/go-train-pipeline/pkg/pipeline/drawer"
)

func TestRunEmptyPipeline(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)
	require.NoError(t, pipe.Run())
}

func TestAddStepOneToOneNilPipe(t *testing.T) {
	t.Parallel()

	_, err := pipeline.AddStepOneToOne(nil, "first step", createInputStep(t, "input", 1), func(ctx context.Context, input int) (int, error) {
		return input, nil
	})
	assert.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)
}

func TestAddStepOneToOneNilInput(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)
	_, err = pipeline.AddStepOneToOne[int, int](pipe, "first step", nil, func(ctx context.Context, input int) (int, error) {
		return input, nil
	})
	assert.ErrorIs(t, err, pipeline.ErrInputMustBeSet)
}

func TestAddStepOneToOne(t *testing.T) {
	t.Parallel()

	var got []int

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	step, err := pipeline.AddStepOneToOne(pipe, "first step", createInputStep(t, "input", 10), func(ctx context.Context, input int) (int, error) {
		return input * 2, nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		got = processOutputChan(t, step.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	require.NoError(t, err)
	<-done
	assert.ElementsMatch(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, got)
}

func TestAddStepOneToOneConcurrent(t *testing.T) {
	t.Parallel()

	var got []int

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	step, err := pipeline.AddStepOneToOne(pipe, "first step", createInputStep(t, "input", 100), func(ctx context.Context, input int) (int, error) {
		return input, nil
	}, pipeline.StepConcurrency[int](8))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		got = processOutputChan(t, step.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	require.NoError(t, err)
	<-done
	assert.Len(t, got, 100)
}

func TestAddStepOneToOneError(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	step, err := pipeline.AddStepOneToOne(pipe, "first step", createInputStep(t, "input", 10), func(ctx context.Context, input int) (int, error) {
		if input == 5 {
			return 0, assert.AnError
		}

		return input, nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		processOutputChan(t, step.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	assert.ErrorIs(t, err, assert.AnError)
	<-done
}

func TestAddStepOneToOneCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipe, err := pipeline.New(ctx)
	require.NoError(t, err)

	step, err := pipeline.AddStepOneToOne(pipe, "first step", createInputStep(t, "input", 10), func(ctx context.Context, input int) (int, error) {
		return input, nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		processOutputChan(t, step.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	assert.ErrorIs(t, err, context.Canceled)
	<-done
}

func TestAddStepOneToMany(t *testing.T) {
	t.Parallel()

	var got []string

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	step, err := pipeline.AddStepOneToMany(pipe, "first step", createInputStep(t, "input", 3), func(ctx context.Context, input int) ([]string, error) {
		s := strconv.Itoa(input)

		return []string{s, s}, nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		got = processOutputChan(t, step.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	require.NoError(t, err)
	<-done
	assert.ElementsMatch(t, []string{"0", "0", "1", "1", "2", "2"}, got)
}

func TestAddStepFromChan(t *testing.T) {
	t.Parallel()

	var got []int

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	// sums the whole input and emits a single element
	step, err := pipeline.AddStepFromChan(pipe, "sum", createInputStep(t, "input", 10), func(ctx context.Context, input <-chan int, output chan<- int) error {
		sum := 0
		for in := range input {
			sum += in
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case output <- sum:
		}

		return nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		got = processOutputChan(t, step.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	require.NoError(t, err)
	<-done
	assert.Equal(t, []int{45}, got)
}

func TestAddRootStepAndSink(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	root, err := pipeline.AddRootStep(pipe, "root", func(ctx context.Context, rootChan chan<- int) error {
		for i := 0; i < 5; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}

		return nil
	})
	require.NoError(t, err)

	var got []int
	err = pipeline.AddSink(pipe, "sink", root, func(ctx context.Context, input int) error {
		got = append(got, input)

		return nil
	})
	require.NoError(t, err)

	err = pipe.Run()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestAddSinkError(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	err = pipeline.AddSink(pipe, "sink", createInputStep(t, "input", 5), func(ctx context.Context, input int) error {
		if input == 3 {
			return assert.AnError
		}

		return nil
	})
	require.NoError(t, err)

	err = pipe.Run()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAddSinkFromChan(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	total := 0
	err = pipeline.AddSinkFromChan(pipe, "sink", createInputStep(t, "input", 5), func(ctx context.Context, input <-chan int) error {
		for in := range input {
			total += in
		}

		return nil
	})
	require.NoError(t, err)

	err = pipe.Run()
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

func TestWiringErrorStopsStartedSteps(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background(),
		drawer.PipelineDrawer(drawer.NewSVGDrawer(filepath.Join(t.TempDir(), "pipeline.dot")), nil),
	)
	require.NoError(t, err)

	root, err := pipeline.AddRootStep(pipe, "ingest", func(ctx context.Context, rootChan chan<- int) error {
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}
	})
	require.NoError(t, err)

	// duplicate step name, the drawer rejects the vertex and wiring fails
	_, err = pipeline.AddStepOneToOne(pipe, "ingest", root, func(ctx context.Context, input int) (int, error) {
		return input, nil
	})
	require.Error(t, err)

	// the root step must stop and close its output even though Run never happens
	for range root.Output { // drain
	}
}

func TestRunReturnsStageFailureNotFallout(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	boom, err := pipeline.AddStepOneToOne(pipe, "boom", createInputStep(t, "input", 10), func(ctx context.Context, input int) (int, error) {
		if input == 5 {
			return 0, assert.AnError
		}

		return input, nil
	})
	require.NoError(t, err)

	// a collecting step that would report its own error on a short input,
	// unless the closed channel came with a cancellation
	errShort := errors.New("input ended early")
	collected, err := pipeline.AddStepFromChan(pipe, "collect", boom, func(ctx context.Context, input <-chan int, output chan<- int) error {
		for range input { // drain
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return errShort
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		processOutputChan(t, collected.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, errShort)
	<-done
}

func TestAddStepKeepOpen(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(context.Background())
	require.NoError(t, err)

	step, err := pipeline.AddStepOneToOne(pipe, "first step", createInputStep(t, "input", 3), func(ctx context.Context, input int) (int, error) {
		return input, nil
	}, pipeline.StepKeepOpen[int]())
	require.NoError(t, err)

	var got []int
	done := make(chan struct{})
	go func() {
		got = processOutputChan(t, step.Output)
		done <- struct{}{}
	}()

	err = pipe.Run()
	require.NoError(t, err)

	// the output stayed open across Run, the caller owns closing it
	close(step.Output)
	<-done
	assert.ElementsMatch(t, []int{0, 1, 2}, got)
}
