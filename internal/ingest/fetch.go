package ingest

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// Fetch downloads the dataset at url into dest, retrying transient
// failures with exponential backoff. Server errors are retried, client
// errors are not. The file only appears at dest once fully written.
func Fetch(ctx context.Context, url, dest string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := os.MkdirAll(filepath.Dir(dest), 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create directory for %s", dest)
	}

	operation := func() error {
		return download(ctx, url, dest)
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	err = backoff.Retry(operation, bo)
	if err != nil {
		return errors.Wrapf(err, "unable to fetch dataset from %s", url)
	}

	return nil
}

func download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return errors.Errorf("server error: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(errors.Errorf("unexpected status: %s", resp.Status))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return backoff.Permanent(err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()

		return err
	}

	err = tmp.Close()
	if err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dest)
}
