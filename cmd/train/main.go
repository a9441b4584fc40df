// Command train runs the training pipeline once: it builds the pipeline
// and calls its run operation. Any failure surfaces untouched on stderr
// and the process exits non-zero. There are no flags or arguments.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/askiada/go-train-pipeline/pkg/train"
)

// runner is the capability the entry point needs from the pipeline:
// construct it, run it once.
type runner interface {
	Run(ctx context.Context) error
}

// newTrainPipeline is swapped by tests.
var newTrainPipeline = func(log *slog.Logger) (runner, error) {
	return train.New(train.WithLogger(log))
}

func main() {
	if err := run(context.Background(), newLogger()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	pipe, err := newTrainPipeline(log)
	if err != nil {
		return err
	}

	return pipe.Run(ctx)
}

func newLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
}
