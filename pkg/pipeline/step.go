package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-train-pipeline/pkg/pipeline/model"
)

func emitStepOutput(pipe *Pipeline, parent, step *model.StepInfo, iterationDuration, computationDuration time.Duration) error {
	for _, opt := range pipe.opts {
		err := opt.OnStepOutput(parent, step, iterationDuration, computationDuration)
		if err != nil {
			return errors.Wrap(err, "unable to run on step output function")
		}
	}

	return nil
}

func sequentialOneToOneFn[I any, O any](ctx context.Context, pipe *Pipeline, goIdx int, input *model.Step[I], output *model.Step[O], oneToOneFn func(context.Context, I) (O, error)) error {
outer:
	for {
		start := time.Now()
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "go routine %d:", goIdx)
		case in, ok := <-input.Output:
			if !ok {
				break outer
			}
			startFn := time.Now()
			out, err := oneToOneFn(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "go routine %d:", goIdx)
			}
			endFn := time.Since(startFn)

			// we check the context again to make sure all go routines currently running
			// stop to add new elements to the pipeline
			select {
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "go routine %d:", goIdx)
			case output.Output <- out:
				err := emitStepOutput(pipe, input.Details, output.Details, time.Since(start)-endFn, endFn)
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func concurrentOneToOneFn[I any, O any](ctx context.Context, pipe *Pipeline, input *model.Step[I], output *model.Step[O], oneToOneFn func(context.Context, I) (O, error)) error {
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(output.Details.Concurrent)
	// starts many consumers concurrently
	// each consumer stops as soon as an error happens
	for goIdx := 0; goIdx < output.Details.Concurrent; goIdx++ {
		localGoIdx := goIdx
		errGrp.Go(func() error {
			return sequentialOneToOneFn(dCtx, pipe, localGoIdx, input, output, oneToOneFn)
		})
	}

	return errGrp.Wait()
}

func oneToOne[I any, O any](ctx context.Context, pipe *Pipeline, input *model.Step[I], output *model.Step[O], oneToOneFn func(context.Context, I) (O, error)) error {
	if output.Details.Concurrent == 0 {
		output.Details.Concurrent = 1
	}
	if output.Details.Concurrent == 1 {
		return sequentialOneToOneFn(ctx, pipe, 1, input, output, oneToOneFn)
	}

	return concurrentOneToOneFn(ctx, pipe, input, output, oneToOneFn)
}

func sequentialOneToManyFn[I any, O any](ctx context.Context, pipe *Pipeline, goIdx int, input *model.Step[I], output *model.Step[O], oneToManyFn func(context.Context, I) ([]O, error)) error {
outer:
	for {
		start := time.Now()
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "go routine %d:", goIdx)
		case in, ok := <-input.Output:
			if !ok {
				break outer
			}
			startFn := time.Now()
			outs, err := oneToManyFn(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "go routine %d:", goIdx)
			}
			endFn := time.Since(startFn)
			for _, out := range outs {
				select {
				case <-ctx.Done():
					return errors.Wrapf(ctx.Err(), "go routine %d:", goIdx)
				case output.Output <- out:
					err := emitStepOutput(pipe, input.Details, output.Details, (time.Since(start)-endFn)/time.Duration(output.Details.Concurrent), endFn)
					if err != nil {
						return err
					}
				}
			}
		}
	}

	return nil
}

func concurrentOneToManyFn[I any, O any](ctx context.Context, pipe *Pipeline, input *model.Step[I], output *model.Step[O], oneToManyFn func(context.Context, I) ([]O, error)) error {
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(output.Details.Concurrent)
	for goIdx := 0; goIdx < output.Details.Concurrent; goIdx++ {
		localGoIdx := goIdx
		errGrp.Go(func() error {
			return sequentialOneToManyFn(dCtx, pipe, localGoIdx, input, output, oneToManyFn)
		})
	}

	return errGrp.Wait()
}

func oneToMany[I any, O any](ctx context.Context, pipe *Pipeline, input *model.Step[I], output *model.Step[O], oneToManyFn func(context.Context, I) ([]O, error)) error {
	if output.Details.Concurrent == 0 {
		output.Details.Concurrent = 1
	}
	if output.Details.Concurrent == 1 {
		return sequentialOneToManyFn(ctx, pipe, 1, input, output, oneToManyFn)
	}

	return concurrentOneToManyFn(ctx, pipe, input, output, oneToManyFn)
}

func prepareStep[I, O any](pipe *Pipeline, name string, input *model.Step[I], opts ...StepOption[O]) (*model.Step[O], error) {
	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type: model.NormalStepType,
			Name: name,
		},
		Output: make(chan O),
	}
	for _, opt := range opts {
		opt(step)
	}
	if step.Details.Concurrent == 0 {
		step.Details.Concurrent = 1
	}

	for _, opt := range pipe.opts {
		err := opt.PrepareStep(input.Details, step.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare step function")
		}
	}

	return step, nil
}

func addStep[O any](pipe *Pipeline, name string, step *model.Step[O], stepToStepFn func(ctx context.Context) error) (*model.Step[O], error) {
	errC := make(chan error, 1)
	decoratedError := newErrorChan(name, errC)

	go func() {
		defer func() {
			if !step.KeepOpen {
				close(step.Output)
			}
			close(errC)
		}()
		err := stepToStepFn(pipe.ctx)
		if err != nil {
			// cancel before the deferred close so downstream steps see the
			// cancellation, not just a closed input
			errC <- err
			pipe.cancel()
		}
	}()
	pipe.errcList.add(decoratedError)

	return step, nil
}

// AddStepOneToOne adds a step that transforms every element of the input
// into exactly one element of the output.
func AddStepOneToOne[I any, O any](pipe *Pipeline, name string, input *model.Step[I], oneToOneFn func(context.Context, I) (O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		pipe.cancel()

		return nil, ErrInputMustBeSet
	}
	step, err := prepareStep(pipe, name, input, opts...)
	if err != nil {
		// a wiring failure poisons the pipeline: stop the steps already started
		pipe.cancel()

		return nil, err
	}

	return addStep(pipe, name, step, func(ctx context.Context) error {
		return oneToOne(ctx, pipe, input, step, oneToOneFn)
	})
}

// AddStepOneToMany adds a step that transforms every element of the input
// into zero or more elements of the output.
func AddStepOneToMany[I any, O any](pipe *Pipeline, name string, input *model.Step[I], oneToManyFn func(context.Context, I) ([]O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		pipe.cancel()

		return nil, ErrInputMustBeSet
	}
	step, err := prepareStep(pipe, name, input, opts...)
	if err != nil {
		pipe.cancel()

		return nil, err
	}

	return addStep(pipe, name, step, func(ctx context.Context) error {
		return oneToMany(ctx, pipe, input, step, oneToManyFn)
	})
}

// AddStepFromChan adds a step that consumes the whole input channel and
// pushes results to the output channel. It is the escape hatch for steps
// that need to see every element before producing anything, like batching
// or dataset splits.
func AddStepFromChan[I any, O any](pipe *Pipeline, name string, input *model.Step[I], stepFn func(ctx context.Context, input <-chan I, output chan<- O) error, opts ...StepOption[O]) (*model.Step[O], error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		pipe.cancel()

		return nil, ErrInputMustBeSet
	}
	step, err := prepareStep(pipe, name, input, opts...)
	if err != nil {
		pipe.cancel()

		return nil, err
	}

	return addStep(pipe, name, step, func(ctx context.Context) error {
		start := time.Now()
		err := stepFn(ctx, input.Output, step.Output)
		if err != nil {
			return err
		}

		return emitStepOutput(pipe, input.Details, step.Details, 0, time.Since(start))
	})
}
