package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-train-pipeline/pkg/pipeline/model"
)

func prepareSink[I any](pipe *Pipeline, name string, input *model.Step[I]) (*model.Step[I], error) {
	step := &model.Step[I]{
		Details: &model.StepInfo{
			Type:       model.SinkStepType,
			Name:       name,
			Concurrent: 1,
		},
	}
	for _, opt := range pipe.opts {
		err := opt.PrepareSink(input.Details, step.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare sink function")
		}
	}

	return step, nil
}

func afterSink(pipe *Pipeline, step *model.StepInfo) error {
	for _, opt := range pipe.opts {
		err := opt.AfterSink(step, time.Since(pipe.startTime))
		if err != nil {
			return errors.Wrap(err, "unable to run after sink function")
		}
	}

	return nil
}

// AddSink adds a terminal step. The sink function runs once per element
// and the pipeline ends when every sink has drained its input.
func AddSink[I any](pipe *Pipeline, name string, input *model.Step[I], sinkFn func(ctx context.Context, input I) error) error {
	if pipe == nil {
		return ErrPipelineMustBeSet
	}
	if input == nil {
		pipe.cancel()

		return ErrInputMustBeSet
	}
	step, err := prepareSink(pipe, name, input)
	if err != nil {
		// a wiring failure poisons the pipeline: stop the steps already started
		pipe.cancel()

		return err
	}

	errC := make(chan error, 1)
	decoratedError := newErrorChan(name, errC)
	go func() {
		defer close(errC)
	outer:
		for {
			startIter := time.Now()
			select {
			case <-pipe.ctx.Done():
				errC <- pipe.ctx.Err()

				break outer
			case in, ok := <-input.Output:
				if !ok {
					break outer
				}
				startFn := time.Now()
				err := sinkFn(pipe.ctx, in)
				if err != nil {
					errC <- err
					pipe.cancel()

					break outer
				}
				endFn := time.Since(startFn)
				for _, opt := range pipe.opts {
					err := opt.OnSinkOutput(input.Details, step.Details, time.Since(startIter)-endFn, endFn)
					if err != nil {
						errC <- errors.Wrap(err, "unable to run on sink output function")

						break outer
					}
				}
			}
		}
		err := afterSink(pipe, step.Details)
		if err != nil {
			errC <- err
		}
	}()
	pipe.errcList.add(decoratedError)

	return nil
}

// AddSinkFromChan adds a terminal step that consumes the whole input channel.
func AddSinkFromChan[I any](pipe *Pipeline, name string, input *model.Step[I], sinkFn func(ctx context.Context, input <-chan I) error) error {
	if pipe == nil {
		return ErrPipelineMustBeSet
	}
	if input == nil {
		pipe.cancel()

		return ErrInputMustBeSet
	}
	step, err := prepareSink(pipe, name, input)
	if err != nil {
		pipe.cancel()

		return err
	}

	errC := make(chan error, 1)
	decoratedError := newErrorChan(name, errC)
	go func() {
		defer close(errC)
		err := sinkFn(pipe.ctx, input.Output)
		if err != nil {
			errC <- err
			pipe.cancel()

			return
		}
		err = afterSink(pipe, step.Details)
		if err != nil {
			errC <- err
		}
	}()
	pipe.errcList.add(decoratedError)

	return nil
}
