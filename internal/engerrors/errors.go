// Package engerrors defines the engine's error-kind taxonomy (spec §7) as
// distinct types so callers can dispatch on kind with errors.As while still
// wrapping freely with fmt.Errorf("...: %w", err).
package engerrors

import "fmt"

// ConfigError marks a fatal configuration problem: missing/empty
// remote_config_url, or an unreadable local config file. Exit code 2.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

func NewConfig(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// NetworkError marks a non-2xx, timeout, DNS, or connect failure. Retryable
// per attempt by the download loop; eventually fatal for the artifact or,
// for manifest fetches, for the run.
type NetworkError struct {
	Msg        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network: %s (HTTP %d)", e.Msg, e.StatusCode)
	}
	return "network: " + e.Msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

func NewNetwork(statusCode int, msg string, err error) *NetworkError {
	return &NetworkError{Msg: msg, StatusCode: statusCode, Err: err}
}

// IntegrityMismatchError marks a length or hash mismatch on a downloaded
// artifact. The staged file is dropped and the download retried up to
// maxRetries; fatal to that artifact once retries are exhausted.
type IntegrityMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("integrity mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func NewIntegrityMismatch(path, expected, actual string) *IntegrityMismatchError {
	return &IntegrityMismatchError{Path: path, Expected: expected, Actual: actual}
}

// IoLockedError marks a rename/unlink failure caused by the target being
// held open by another process. Handled by deferring the operation into the
// pending-ops journal; the run continues.
type IoLockedError struct {
	Path string
	Err  error
}

func (e *IoLockedError) Error() string { return fmt.Sprintf("locked: %s: %v", e.Path, e.Err) }
func (e *IoLockedError) Unwrap() error { return e.Err }

func NewIoLocked(path string, err error) *IoLockedError {
	return &IoLockedError{Path: path, Err: err}
}

// IoOtherError marks any other filesystem error. Aborts the run; the
// applied-version marker is not committed.
type IoOtherError struct {
	Path string
	Err  error
}

func (e *IoOtherError) Error() string { return fmt.Sprintf("io: %s: %v", e.Path, e.Err) }
func (e *IoOtherError) Unwrap() error { return e.Err }

func NewIoOther(path string, err error) *IoOtherError {
	return &IoOtherError{Path: path, Err: err}
}

// ManifestShapeError marks a single manifest entry missing required fields.
// The entry is skipped with a warning; the run continues.
type ManifestShapeError struct {
	Entry string
	Msg   string
}

func (e *ManifestShapeError) Error() string {
	return fmt.Sprintf("manifest entry %s: %s", e.Entry, e.Msg)
}

func NewManifestShape(entry, format string, args ...any) *ManifestShapeError {
	return &ManifestShapeError{Entry: entry, Msg: fmt.Sprintf(format, args...)}
}

// CancelledError marks a run stopped by the progress sink's cancellation
// signal. Exit code 3.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "cancelled" }

func NewCancelled() *CancelledError { return &CancelledError{} }
