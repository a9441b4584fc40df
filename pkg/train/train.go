// Package train exposes the Pipeline Handle of the project: an opaque
// runner that performs one end-to-end training run — ingest the dataset,
// validate it against the schema, prepare the features, fit and score the
// classifier and persist the run artifacts.
package train

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/askiada/go-train-pipeline/internal/config"
)

// TrainPipeline runs the whole training workflow. It is built for one
// run: create it, call Run once, discard it.
type TrainPipeline struct {
	cfg   *config.Config
	log   *slog.Logger
	clock clockwork.Clock
}

type Option func(*TrainPipeline)

// WithConfig injects a configuration instead of loading it from disk.
func WithConfig(cfg *config.Config) Option {
	return func(tp *TrainPipeline) {
		tp.cfg = cfg
	}
}

// WithLogger sets the logger used by every stage.
func WithLogger(log *slog.Logger) Option {
	return func(tp *TrainPipeline) {
		tp.log = log
	}
}

// WithClock overrides the wall clock, used by tests to pin artifact run IDs.
func WithClock(clock clockwork.Clock) Option {
	return func(tp *TrainPipeline) {
		tp.clock = clock
	}
}

// New creates a pipeline. Without options the configuration is loaded
// from the usual locations and everything else takes its default.
func New(opts ...Option) (*TrainPipeline, error) {
	tp := &TrainPipeline{
		log:   slog.Default(),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(tp)
	}

	if tp.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		tp.cfg = cfg
	}

	return tp, nil
}
