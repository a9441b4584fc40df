package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-train-pipeline/pkg/pipeline/model"
)

// Pipeline is a pipeline of steps connected by channels.
type Pipeline struct {
	ctx       context.Context
	cancel    context.CancelFunc
	errcList  *errorChans
	opts      []model.PipelineOption
	startTime time.Time
}

// New creates a new pipeline. The context is shared by every step: when it
// is cancelled, all running steps stop.
func New(ctx context.Context, opts ...model.PipelineOption) (*Pipeline, error) {
	dCtx, cancel := context.WithCancel(ctx)
	pipe := &Pipeline{
		ctx:       dCtx,
		cancel:    cancel,
		errcList:  &errorChans{},
		startTime: time.Now(),
		opts:      opts,
	}

	for _, opt := range opts {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return pipe, nil
}

// waitForPipeline waits for results from all error channels. The first
// error cancels the rest of the pipeline, then the channels are drained
// so every step goroutine has exited before it returns. Cancellation
// fallout from other steps must not mask the failure that triggered it,
// so a non-cancellation error always wins over a cancellation one.
func waitForPipeline(cancel context.CancelFunc, errs ...*errorChan) error {
	errc := mergeErrors(errs...)
	var firstErr error
	for err := range errc {
		if err == nil {
			continue
		}
		if cancel != nil {
			cancel()
		}
		if firstErr == nil || (errors.Is(firstErr, context.Canceled) && !errors.Is(err, context.Canceled)) {
			firstErr = err
		}
	}

	return firstErr
}

// Run waits for the pipeline to finish. It returns the first error raised
// by any step, or the first error raised by an option Finish hook.
func (p *Pipeline) Run() error {
	err := waitForPipeline(p.cancel, p.errcList.list...)
	p.cancel()
	if err != nil {
		return err
	}

	return p.finishRun()
}

func (p *Pipeline) finishRun() error {
	for _, opt := range p.opts {
		err := opt.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}
