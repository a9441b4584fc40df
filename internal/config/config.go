// Package config provides configuration management for the training
// pipeline.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	ErrDataPathMissing = errors.New("data path must be set")
	ErrTestRatio       = errors.New("test ratio must be in (0, 1)")
	ErrLearningRate    = errors.New("learning rate must be positive")
	ErrEpochs          = errors.New("epochs must be positive")
	ErrBatchSize       = errors.New("batch size must be positive")
)

// Config holds every knob of the training pipeline.
type Config struct {
	// Data source
	DataPath   string `mapstructure:"data_path"`
	DataURL    string `mapstructure:"data_url"` // when set, the dataset is fetched to DataPath first
	SchemaPath string `mapstructure:"schema_path"`
	HasHeader  bool   `mapstructure:"has_header"`

	// Split
	TestRatio float64 `mapstructure:"test_ratio"`
	Seed      int64   `mapstructure:"seed"`

	// Model hyperparameters
	LearningRate float64 `mapstructure:"learning_rate"`
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	Threshold    float64 `mapstructure:"threshold"`

	// Acceptance gate: the run fails when test accuracy falls below this.
	AccuracyFloor float64 `mapstructure:"accuracy_floor"`

	// Execution
	ValidateWorkers int           `mapstructure:"validate_workers"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`

	// Artifacts
	ArtifactDir string `mapstructure:"artifact_dir"`

	// Pipeline observability
	Measure   bool   `mapstructure:"measure"`
	GraphFile string `mapstructure:"graph_file"` // DOT output, empty disables drawing
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataPath:        "data/train.csv",
		SchemaPath:      "config/schema.yaml",
		HasHeader:       true,
		TestRatio:       0.2,
		Seed:            42,
		LearningRate:    0.01,
		Epochs:          50,
		BatchSize:       32,
		Threshold:       0.5,
		AccuracyFloor:   0.6,
		ValidateWorkers: 4,
		FetchTimeout:    2 * time.Minute,
		ArtifactDir:     "artifacts",
		Measure:         true,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("train-pipeline")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/train-pipeline")
	v.SetEnvPrefix("TRAIN")
	v.AutomaticEnv()

	// AutomaticEnv only overrides keys viper already knows about.
	def := Default()
	v.SetDefault("data_path", def.DataPath)
	v.SetDefault("data_url", def.DataURL)
	v.SetDefault("schema_path", def.SchemaPath)
	v.SetDefault("has_header", def.HasHeader)
	v.SetDefault("test_ratio", def.TestRatio)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("learning_rate", def.LearningRate)
	v.SetDefault("epochs", def.Epochs)
	v.SetDefault("batch_size", def.BatchSize)
	v.SetDefault("threshold", def.Threshold)
	v.SetDefault("accuracy_floor", def.AccuracyFloor)
	v.SetDefault("validate_workers", def.ValidateWorkers)
	v.SetDefault("fetch_timeout", def.FetchTimeout)
	v.SetDefault("artifact_dir", def.ArtifactDir)
	v.SetDefault("measure", def.Measure)
	v.SetDefault("graph_file", def.GraphFile)

	return v
}

// Load reads the configuration from train-pipeline.yaml (current directory
// or $HOME/.config/train-pipeline), a .env file and TRAIN_* environment
// variables. Every value has a default, so a missing config file is fine.
func Load() (*Config, error) {
	// A .env file is optional, it only seeds the environment.
	_ = godotenv.Load()

	v := newViper()

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "unable to read config file")
		}
	}

	return unmarshal(v)
}

// LoadFile reads the configuration from an explicit file.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	err := v.ReadInConfig()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config file %s", path)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := Default()

	err := v.Unmarshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal config")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	switch {
	case c.DataPath == "":
		return ErrDataPathMissing
	case c.TestRatio <= 0 || c.TestRatio >= 1:
		return ErrTestRatio
	case c.LearningRate <= 0:
		return ErrLearningRate
	case c.Epochs <= 0:
		return ErrEpochs
	case c.BatchSize <= 0:
		return ErrBatchSize
	}

	return nil
}
