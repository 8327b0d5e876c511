// Package downloader implements the engine's artifact downloader (spec
// §4.5 "Downloader contract"): a streaming GET with length and SHA-256
// verification, linear-backoff retry, and a bounded-concurrency batch runner
// for independent staging downloads (spec §5).
//
// Generalized from a raw channel+sync.WaitGroup pool to a
// golang.org/x/sync/errgroup group bounded by a semaphore.Weighted, and the
// GitHub-specific auth header
// becomes a pluggable hook so CurseForge/Modrinth sources can supply their
// own when needed.
package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/caedis/modengine/internal/engerrors"
	"github.com/caedis/modengine/internal/logging"
	"github.com/caedis/modengine/internal/progress"
)

const (
	defaultMaxRetries  = 3
	defaultBackoff     = 2 * time.Second
	defaultTimeout     = 15 * time.Second // spec §5 "15 s for artifact downloads per attempt"
	defaultConcurrency = 3                // spec §5 "bounded worker pool (default 3)"
	copyBufferSize     = 8 * 1024         // spec §4.5 "8 KiB buffer"
)

// AuthHook sets provider-specific request headers (auth, accept) before a
// download attempt is sent. Nil means no extra headers.
type AuthHook func(req *http.Request)

// Options tunes one Download call; zero values take the package defaults.
type Options struct {
	MaxRetries int
	Backoff    time.Duration
	Timeout    time.Duration
	AuthHook   AuthHook
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultBackoff
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// Download streams url to destPath, making at most opts.MaxRetries attempts
// with linear backoff between them. expectedLength < 0 skips the length check;
// expectedHash == "" skips the hash check. sink may be nil.
func Download(ctx context.Context, url, destPath string, expectedLength int64, expectedHash string, opts Options, sink progress.Sink) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		if sink != nil && sink.IsCancelled() {
			return engerrors.NewCancelled()
		}
		if attempt > 0 {
			logging.Debugf("Verbose: retrying download %s attempt=%d/%d\n", destPath, attempt+1, opts.MaxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * opts.Backoff):
			}
		}

		lastErr = attemptDownload(ctx, url, destPath, expectedLength, expectedHash, opts)
		if lastErr == nil {
			return nil
		}
		if sink != nil {
			sink.Log(fmt.Sprintf("download attempt %d/%d failed for %s: %v", attempt+1, opts.MaxRetries, destPath, lastErr))
		}
	}
	return lastErr
}

func attemptDownload(ctx context.Context, url, destPath string, expectedLength int64, expectedHash string, opts Options) error {
	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", url, err)
	}
	if opts.AuthHook != nil {
		opts.AuthHook(req)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return engerrors.NewNetwork(0, fmt.Sprintf("downloading %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return engerrors.NewNetwork(resp.StatusCode, fmt.Sprintf("downloading %s: %s", url, body), nil)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return engerrors.NewIoOther(destPath, err)
	}

	hasher := sha256.New()
	written, copyErr := io.CopyBuffer(io.MultiWriter(out, hasher), resp.Body, make([]byte, copyBufferSize))
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(destPath)
		return engerrors.NewNetwork(0, fmt.Sprintf("reading body for %s", url), copyErr)
	}
	if closeErr != nil {
		os.Remove(destPath)
		return engerrors.NewIoOther(destPath, closeErr)
	}

	if expectedLength >= 0 && written != expectedLength {
		os.Remove(destPath)
		return engerrors.NewIntegrityMismatch(destPath, fmt.Sprintf("%d bytes", expectedLength), fmt.Sprintf("%d bytes", written))
	}

	if expectedHash != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if sum != expectedHash {
			os.Remove(destPath)
			return engerrors.NewIntegrityMismatch(destPath, expectedHash, sum)
		}
	}

	logging.Debugf("Verbose: download complete file=%s bytes=%d\n", destPath, written)
	return nil
}

// Job is one artifact to stage for RunBatch.
type Job struct {
	URL            string
	DestPath       string
	ExpectedLength int64 // -1 to skip
	ExpectedHash   string
}

// RunBatch downloads jobs concurrently, bounded by concurrency (0 means
// defaultConcurrency). The result slice lines up index-for-index with jobs;
// a per-job failure does not abort the batch.
func RunBatch(ctx context.Context, jobs []Job, concurrency int, opts Options, sink progress.Sink) []error {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	errs := make([]error, len(jobs))

	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				errs[i] = err
				return nil
			}
			defer sem.Release(1)

			errs[i] = Download(gctx, job.URL, job.DestPath, job.ExpectedLength, job.ExpectedHash, opts, sink)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
