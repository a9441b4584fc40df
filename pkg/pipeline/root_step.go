package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/go-train-pipeline/pkg/pipeline/model"
)

func prepareRootStep[O any](pipe *Pipeline, step *model.Step[O], opts ...StepOption[O]) error {
	for _, opt := range opts {
		opt(step)
	}
	if step.Details.Concurrent == 0 {
		step.Details.Concurrent = 1
	}

	for _, opt := range pipe.opts {
		err := opt.PrepareStep(model.StartStep.Details, step.Details)
		if err != nil {
			return errors.Wrap(err, "unable to run prepare step function")
		}
	}

	return nil
}

// AddRootStep adds a step without a parent. The step function owns the
// root channel and must stop pushing when the context is cancelled.
func AddRootStep[O any](pipe *Pipeline, name string, stepFn func(ctx context.Context, rootChan chan<- O) error, opts ...StepOption[O]) (*model.Step[O], error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}

	errC := make(chan error, 1)
	decoratedError := newErrorChan(name, errC)
	output := make(chan O)
	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type: model.RootStepType,
			Name: name,
		},
		Output: output,
	}
	err := prepareRootStep(pipe, step, opts...)
	if err != nil {
		// a wiring failure poisons the pipeline: stop the steps already started
		pipe.cancel()

		return nil, err
	}
	go func() {
		defer func() {
			if !step.KeepOpen {
				close(output)
			}
			close(errC)
		}()
		err := stepFn(pipe.ctx, output)
		if err != nil {
			errC <- err
			pipe.cancel()
		}
	}()
	pipe.errcList.add(decoratedError)

	return step, nil
}
