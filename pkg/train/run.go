package train

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/askiada/go-train-pipeline/internal/artifact"
	"github.com/askiada/go-train-pipeline/internal/evaluate"
	"github.com/askiada/go-train-pipeline/internal/ingest"
	"github.com/askiada/go-train-pipeline/internal/mlmodel"
	"github.com/askiada/go-train-pipeline/internal/schema"
	"github.com/askiada/go-train-pipeline/internal/transform"
	"github.com/askiada/go-train-pipeline/pkg/pipeline"
	"github.com/askiada/go-train-pipeline/pkg/pipeline/drawer"
	"github.com/askiada/go-train-pipeline/pkg/pipeline/measure"
	"github.com/askiada/go-train-pipeline/pkg/pipeline/model"
)

var (
	ErrNotEnoughSamples = errors.New("not enough samples to split")
	ErrAccuracyFloor    = errors.New("test accuracy below configured floor")
)

// minSamples is the smallest dataset both splits can be carved from.
const minSamples = 10

// dataset is the in-memory form of the data once the streaming part of
// the pipeline is over.
type dataset struct {
	trainX [][]float64
	trainY []float64
	testX  [][]float64
	testY  []float64

	stats  []schema.FeatureStats
	params transform.Params
}

// runResult carries everything a run produces towards the artifact steps.
type runResult struct {
	model  *mlmodel.LogisticRegression
	report evaluate.Report

	params       transform.Params
	stats        []schema.FeatureStats
	featureNames []string
	skippedRows  int64
}

// artifactFile is one persisted output.
type artifactFile struct {
	kind string
	path string
}

// modelArtifact is the JSON layout of the persisted model, including the
// fitted feature preparation so a scorer can replay it.
type modelArtifact struct {
	FeatureNames []string         `json:"feature_names"`
	Weights      []float64        `json:"weights"`
	Bias         float64          `json:"bias"`
	Threshold    float64          `json:"threshold"`
	Transform    transform.Params `json:"transform"`
}

// reportArtifact is the JSON layout of the persisted evaluation report.
type reportArtifact struct {
	RunID       string                `json:"run_id"`
	Report      evaluate.Report       `json:"report"`
	Features    []schema.FeatureStats `json:"features"`
	SkippedRows int64                 `json:"skipped_rows"`
}

// Run performs the full train-and-persist workflow once. It blocks until
// every stage has finished and returns the first error any stage raised.
func (tp *TrainPipeline) Run(ctx context.Context) error {
	cfg := tp.cfg

	if cfg.DataURL != "" {
		tp.log.Info("fetching dataset", "url", cfg.DataURL, "dest", cfg.DataPath)
		err := ingest.Fetch(ctx, cfg.DataURL, cfg.DataPath, cfg.FetchTimeout)
		if err != nil {
			return err
		}
	}

	sch, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return err
	}

	store := artifact.NewStore(cfg.ArtifactDir, artifact.WithClock(tp.clock))
	run, err := store.NewRun()
	if err != nil {
		return err
	}
	tp.log.Info("starting training run", "run", run.ID, "data", cfg.DataPath)

	opts, metrics := tp.pipelineOptions()
	pipe, err := pipeline.New(ctx, opts...)
	if err != nil {
		return err
	}

	reader := ingest.NewReader(cfg.DataPath, sch.Label, cfg.HasHeader, tp.log)

	result, err := tp.addTrainingSteps(pipe, reader, sch)
	if err != nil {
		return err
	}

	err = tp.addArtifactSteps(pipe, run, result)
	if err != nil {
		return err
	}

	err = pipe.Run()
	if err != nil {
		return err
	}

	err = store.MarkLatest(run)
	if err != nil {
		return err
	}
	if metrics != nil {
		for _, st := range metrics.Snapshot() {
			tp.log.Debug("step timing", "step", st.Step, "outputs", st.Outputs, "avg", st.AVG)
		}
	}
	tp.log.Info("training run finished", "run", run.ID, "skipped_rows", reader.Skipped())

	return nil
}

func (tp *TrainPipeline) pipelineOptions() ([]model.PipelineOption, *measure.Registry) {
	var opts []model.PipelineOption
	var reg *measure.Registry
	if tp.cfg.Measure {
		reg = measure.NewRegistry()
		opts = append(opts, measure.PipelineMeasure(reg))
	}
	if tp.cfg.GraphFile != "" {
		// a nil *Registry must not reach the drawer as a non-nil interface
		var msr measure.Measure
		if reg != nil {
			msr = reg
		}
		opts = append(opts, drawer.PipelineDrawer(drawer.NewSVGDrawer(tp.cfg.GraphFile), msr))
	}

	return opts, reg
}

// addTrainingSteps wires the streaming half of the DAG: ingest, validate,
// split, transform and train.
func (tp *TrainPipeline) addTrainingSteps(pipe *pipeline.Pipeline, reader *ingest.Reader, sch *schema.Schema) (*model.Step[*runResult], error) {
	cfg := tp.cfg

	rows, err := pipeline.AddRootStep(pipe, "ingest", reader.Stream)
	if err != nil {
		return nil, err
	}

	validated, err := pipeline.AddStepOneToOne(pipe, "validate", rows,
		func(_ context.Context, sample ingest.Sample) (ingest.Sample, error) {
			err := sch.ValidateRow(sample.Features, sample.Label)
			if err != nil {
				return ingest.Sample{}, err
			}

			return sample, nil
		},
		pipeline.StepConcurrency[ingest.Sample](cfg.ValidateWorkers),
	)
	if err != nil {
		return nil, err
	}

	split, err := pipeline.AddStepFromChan(pipe, "split", validated, tp.splitFn(sch))
	if err != nil {
		return nil, err
	}

	transformed, err := pipeline.AddStepOneToOne(pipe, "transform", split, tp.transformFn())
	if err != nil {
		return nil, err
	}

	return pipeline.AddStepOneToOne(pipe, "train", transformed, tp.trainFn(sch, reader))
}

// splitFn collects the validated samples, shuffles them with the
// configured seed and carves out the held-out split.
func (tp *TrainPipeline) splitFn(sch *schema.Schema) func(context.Context, <-chan ingest.Sample, chan<- *dataset) error {
	cfg := tp.cfg

	return func(ctx context.Context, in <-chan ingest.Sample, out chan<- *dataset) error {
		stats := schema.NewStats(sch.FeatureNames())

		var features [][]float64
		var labels []float64
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case sample, ok := <-in:
				if !ok {
					// the upstream channel also closes on failure, so check
					// the context before deciding the data ran short
					if err := ctx.Err(); err != nil {
						return err
					}
					ds, err := makeSplit(features, labels, stats, cfg.TestRatio, cfg.Seed)
					if err != nil {
						return err
					}

					select {
					case <-ctx.Done():
						return ctx.Err()
					case out <- ds:
						return nil
					}
				}
				stats.Observe(sample.Features)
				features = append(features, sample.Features)
				labels = append(labels, sample.Label)
			}
		}
	}
}

func makeSplit(features [][]float64, labels []float64, stats *schema.Stats, testRatio float64, seed int64) (*dataset, error) {
	if len(features) < minSamples {
		return nil, errors.Wrapf(ErrNotEnoughSamples, "got %d, want at least %d", len(features), minSamples)
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(features), func(i, j int) {
		features[i], features[j] = features[j], features[i]
		labels[i], labels[j] = labels[j], labels[i]
	})

	testSize := int(float64(len(features)) * testRatio)
	if testSize == 0 {
		testSize = 1
	}

	return &dataset{
		trainX: features[testSize:],
		trainY: labels[testSize:],
		testX:  features[:testSize],
		testY:  labels[:testSize],
		stats:  stats.Summary(),
	}, nil
}

// transformFn fits the preparation chain on the training split and
// applies it to both splits.
func (tp *TrainPipeline) transformFn() func(context.Context, *dataset) (*dataset, error) {
	return func(_ context.Context, ds *dataset) (*dataset, error) {
		chain, imputer, scaler := transform.NewChain()

		err := chain.Fit(ds.trainX)
		if err != nil {
			return nil, err
		}

		ds.trainX, err = chain.Transform(ds.trainX)
		if err != nil {
			return nil, err
		}
		ds.testX, err = chain.Transform(ds.testX)
		if err != nil {
			return nil, err
		}

		ds.params = transform.Params{
			Medians: imputer.Medians,
			Mean:    scaler.Mean,
			Std:     scaler.Std,
		}

		return ds, nil
	}
}

// trainFn fits the classifier, scores it on the held-out split and
// applies the acceptance gate.
func (tp *TrainPipeline) trainFn(sch *schema.Schema, reader *ingest.Reader) func(context.Context, *dataset) (*runResult, error) {
	cfg := tp.cfg

	return func(ctx context.Context, ds *dataset) (*runResult, error) {
		clf := mlmodel.NewLogisticRegression(len(sch.Features), cfg.LearningRate, cfg.Epochs, cfg.BatchSize, cfg.Seed)

		err := clf.Fit(ctx, ds.trainX, ds.trainY)
		if err != nil {
			return nil, err
		}

		report := evaluate.Evaluate(ds.testY, clf.PredictProba(ds.testX), cfg.Threshold)
		tp.log.Info("model evaluated",
			"train_samples", len(ds.trainY),
			"test_samples", report.Samples,
			"accuracy", report.Accuracy,
			"f1", report.F1,
		)

		if report.Accuracy < cfg.AccuracyFloor {
			return nil, errors.Wrapf(ErrAccuracyFloor, "accuracy %.4f < %.4f", report.Accuracy, cfg.AccuracyFloor)
		}

		return &runResult{
			model:        clf,
			report:       report,
			params:       ds.params,
			stats:        ds.stats,
			featureNames: sch.FeatureNames(),
			skippedRows:  reader.Skipped(),
		}, nil
	}
}

// addArtifactSteps wires the publishing half of the DAG: the run result
// fans out to the model and report writers, their paths merge back and a
// sink logs them.
func (tp *TrainPipeline) addArtifactSteps(pipe *pipeline.Pipeline, run *artifact.Run, result *model.Step[*runResult]) error {
	publish, err := pipeline.AddSplitter(pipe, "publish", result, 2)
	if err != nil {
		return err
	}

	modelBranch, ok := publish.Get()
	if !ok {
		return errors.New("unable to get model branch")
	}
	modelFile, err := pipeline.AddStepOneToOne(pipe, "save model", modelBranch,
		func(_ context.Context, res *runResult) (artifactFile, error) {
			path, err := run.SaveJSON("model.json", modelArtifact{
				FeatureNames: res.featureNames,
				Weights:      res.model.Weights,
				Bias:         res.model.Bias,
				Threshold:    res.report.Threshold,
				Transform:    res.params,
			})
			if err != nil {
				return artifactFile{}, err
			}

			return artifactFile{kind: "model", path: path}, nil
		})
	if err != nil {
		return err
	}

	reportBranch, ok := publish.Get()
	if !ok {
		return errors.New("unable to get report branch")
	}
	reportFile, err := pipeline.AddStepOneToOne(pipe, "save report", reportBranch,
		func(_ context.Context, res *runResult) (artifactFile, error) {
			path, err := run.SaveJSON("report.json", reportArtifact{
				RunID:       run.ID,
				Report:      res.report,
				Features:    res.stats,
				SkippedRows: res.skippedRows,
			})
			if err != nil {
				return artifactFile{}, err
			}

			return artifactFile{kind: "report", path: path}, nil
		})
	if err != nil {
		return err
	}

	artifacts, err := pipeline.AddMerger(pipe, "artifacts", modelFile, reportFile)
	if err != nil {
		return err
	}

	return pipeline.AddSink(pipe, "log artifacts", artifacts,
		func(_ context.Context, file artifactFile) error {
			tp.log.Info("artifact written", "kind", file.kind, "path", file.path)

			return nil
		})
}
