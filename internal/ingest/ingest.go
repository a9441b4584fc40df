// Package ingest streams training samples out of a CSV dataset.
//
// Rows flow through the pipeline one by one, so the whole dataset never
// has to fit in memory at this stage. Malformed rows are counted and
// skipped rather than failing the run; an empty cell becomes NaN so the
// transform stage can impute it later.
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
)

var ErrLabelColumn = errors.New("label column not found")

// Sample is a single data point: a feature vector and its label.
type Sample struct {
	Features []float64
	Label    float64
}

// Reader streams a CSV file as samples.
type Reader struct {
	path        string
	labelColumn string
	hasHeader   bool
	log         *slog.Logger
	skipped     atomic.Int64
	features    []string
}

// NewReader creates a reader for path. labelColumn names the label column
// when the file has a header, otherwise it must be the column index.
func NewReader(path, labelColumn string, hasHeader bool, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}

	return &Reader{
		path:        path,
		labelColumn: labelColumn,
		hasHeader:   hasHeader,
		log:         log,
	}
}

// Skipped returns how many malformed rows were dropped so far.
func (r *Reader) Skipped() int64 {
	return r.skipped.Load()
}

// FeatureNames returns the feature column names, available once Stream has
// consumed the header. Without a header it returns nil.
func (r *Reader) FeatureNames() []string {
	return r.features
}

func (r *Reader) labelIndex(header []string) (int, error) {
	if r.hasHeader {
		for i, name := range header {
			if name == r.labelColumn {
				return i, nil
			}
		}

		return 0, errors.Wrapf(ErrLabelColumn, "column %q", r.labelColumn)
	}

	idx, err := strconv.Atoi(r.labelColumn)
	if err != nil {
		return 0, errors.Wrapf(ErrLabelColumn, "index %q", r.labelColumn)
	}

	return idx, nil
}

// Stream pushes every valid row of the file to out. It matches the root
// step contract of the pipeline package and stops when the context is
// cancelled. The caller owns closing out.
func (r *Reader) Stream(ctx context.Context, out chan<- Sample) error {
	file, err := os.Open(r.path)
	if err != nil {
		return errors.Wrapf(err, "unable to open dataset %s", r.path)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.ReuseRecord = true

	labelIdx := -1
	if !r.hasHeader {
		labelIdx, err = r.labelIndex(nil)
		if err != nil {
			return err
		}
	}

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			r.skipped.Add(1)
			r.log.Debug("skipping unreadable row", "error", err)

			continue
		}

		if labelIdx < 0 {
			labelIdx, err = r.labelIndex(rec)
			if err != nil {
				return err
			}
			r.features = featureNames(rec, labelIdx)

			continue
		}

		sample, ok := r.parseRow(rec, labelIdx)
		if !ok {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- sample:
		}
	}
}

func (r *Reader) parseRow(rec []string, labelIdx int) (Sample, bool) {
	if labelIdx >= len(rec) {
		r.skipped.Add(1)
		r.log.Debug("skipping short row", "columns", len(rec))

		return Sample{}, false
	}

	features := make([]float64, 0, len(rec)-1)
	var label float64

	for i, cell := range rec {
		var v float64
		switch {
		case cell == "":
			// imputed later by the transform stage
			v = math.NaN()
		default:
			parsed, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				r.skipped.Add(1)
				r.log.Debug("skipping unparsable row", "column", i, "value", cell)

				return Sample{}, false
			}
			v = parsed
		}

		if i == labelIdx {
			label = v
		} else {
			features = append(features, v)
		}
	}

	if math.IsNaN(label) {
		r.skipped.Add(1)
		r.log.Debug("skipping row without label")

		return Sample{}, false
	}

	return Sample{Features: features, Label: label}, true
}

func featureNames(header []string, labelIdx int) []string {
	names := make([]string, 0, len(header)-1)
	for i, name := range header {
		if i == labelIdx {
			continue
		}
		names = append(names, name)
	}

	return names
}
