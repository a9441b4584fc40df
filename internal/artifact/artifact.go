// Package artifact persists the outputs of a training run. Every run gets
// its own timestamped directory and a LATEST marker points at the most
// recent successful run.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

const latestMarker = "LATEST"

// Store creates run directories under a base directory.
type Store struct {
	dir   string
	clock clockwork.Clock
}

type StoreOption func(*Store)

// WithClock overrides the wall clock, used by tests to pin run IDs.
func WithClock(clock clockwork.Clock) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates an artifact store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	store := &Store{
		dir:   dir,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Run is one run directory.
type Run struct {
	ID  string
	Dir string
}

// NewRun creates the directory for a new run, named from the current UTC
// time.
func (s *Store) NewRun() (*Run, error) {
	id := s.clock.Now().UTC().Format("20060102T150405Z")
	dir := filepath.Join(s.dir, id)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create run directory %s", dir)
	}

	return &Run{ID: id, Dir: dir}, nil
}

// SaveJSON writes v as indented JSON under the run directory and returns
// the file path.
func (r *Run) SaveJSON(name string, v any) (string, error) {
	path := filepath.Join(r.Dir, name)

	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "unable to marshal %s", name)
	}

	err = os.WriteFile(path, raw, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "unable to write %s", path)
	}

	return path, nil
}

// MarkLatest points the LATEST marker at the given run.
func (s *Store) MarkLatest(run *Run) error {
	path := filepath.Join(s.dir, latestMarker)

	err := os.WriteFile(path, []byte(run.ID+"\n"), 0o644)
	if err != nil {
		return errors.Wrap(err, "unable to write latest marker")
	}

	return nil
}

// Latest returns the run ID the LATEST marker points at.
func (s *Store) Latest() (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, latestMarker))
	if err != nil {
		return "", errors.Wrap(err, "unable to read latest marker")
	}

	id := string(raw)
	for len(id) > 0 && (id[len(id)-1] == '\n' || id[len(id)-1] == '\r') {
		id = id[:len(id)-1]
	}

	return id, nil
}
