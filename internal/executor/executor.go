// Package executor runs a Plan against the filesystem (spec §4.5): stage to
// a temp file, back up the predecessor, atomic-swap into place, record
// metadata, and defer into the pending-ops journal whenever a target is held
// open by another process. The applied-version marker is only advanced once
// every action has either succeeded or been deferred.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/caedis/modengine/internal/config"
	"github.com/caedis/modengine/internal/downloader"
	"github.com/caedis/modengine/internal/engerrors"
	"github.com/caedis/modengine/internal/hashutil"
	"github.com/caedis/modengine/internal/metadata"
	"github.com/caedis/modengine/internal/pendingops"
	"github.com/caedis/modengine/internal/planner"
	"github.com/caedis/modengine/internal/progress"
)

// Status is the per-action outcome of the state machine in spec §4.5:
// Pending → Staging → Verifying → Committing → Done | Deferred | Failed.
type Status string

const (
	Done     Status = "DONE"
	Deferred Status = "DEFERRED"
	Failed   Status = "FAILED"
)

// ActionResult pairs a PlannedAction with its outcome.
type ActionResult struct {
	Action planner.PlannedAction
	Status Status
	Err    error
}

// RunResult is the outcome of one executor pass.
type RunResult struct {
	Results   []ActionResult
	Committed bool
}

// Options configures one executor run.
type Options struct {
	MaxRetries       int
	BackupKeep       int
	DownloadAuthHook downloader.AuthHook
	Concurrency      int
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackupKeep <= 0 {
		o.BackupKeep = 5
	}
	return o
}

// Executor runs a Plan against one instance directory.
type Executor struct {
	Paths   config.Paths
	Store   *metadata.Store
	Journal *pendingops.Journal
	Sink    progress.Sink
	Opts    Options
	now     time.Time // pinned at construction so a run uses one backup dir
}

// New builds an Executor. now is the run's timestamp, used to name its
// backup directory (backup/<yyyyMMdd-HHmmss>/, spec §6); it is injected
// rather than read from time.Now internally so tests can pin it.
func New(p config.Paths, store *metadata.Store, journal *pendingops.Journal, sink progress.Sink, opts Options, now time.Time) *Executor {
	if sink == nil {
		sink = progress.Noop{}
	}
	return &Executor{Paths: p, Store: store, Journal: journal, Sink: sink, Opts: opts.withDefaults(), now: now}
}

func (e *Executor) backupDir() string {
	return filepath.Join(e.Paths.BackupRoot(), e.now.Format("20060102-150405"))
}

// Run executes plan in order (spec §4.5). It never aborts early except on a
// Failed action or cancellation; DEFERRED actions let the run continue.
//
// Independent NEW_DOWNLOAD/UPDATE staging downloads have no artifact in
// common, so they are fetched up front through the §5 bounded worker pool
// (downloader.RunBatch, honoring Opts.Concurrency) before the main loop
// starts. The main loop itself stays sequential: each action's own
// verify→backup→swap still happens one artifact at a time, in plan order,
// using whatever that action's concurrent stage produced.
func (e *Executor) Run(ctx context.Context, plan *planner.Plan) (*RunResult, error) {
	result := &RunResult{}
	total := len(plan.Actions)

	staged := e.stageDownloads(ctx, plan)

	for i, action := range plan.Actions {
		if e.Sink.IsCancelled() {
			result.Results = append(result.Results, ActionResult{Action: action, Status: Failed, Err: engerrors.NewCancelled()})
			return result, engerrors.NewCancelled()
		}

		var ar ActionResult
		switch action.Kind {
		case planner.NewDownload, planner.Update:
			ar = e.finishStagedDownload(action, staged[i])
		default:
			ar = e.runOne(action)
		}
		result.Results = append(result.Results, ar)
		if total > 0 {
			e.Sink.SetProgress((i + 1) * 100 / total)
		}

		if ar.Status == Failed {
			e.Sink.Log(fmt.Sprintf("action failed: %s %s: %v", action.Kind, action.Target, ar.Err))
			return result, ar.Err
		}
	}

	result.Committed = true
	return result, nil
}

func (e *Executor) runOne(action planner.PlannedAction) ActionResult {
	switch action.Kind {
	case planner.Delete:
		return e.runDelete(action)
	case planner.Rename:
		return e.runRename(action)
	case planner.Skip, planner.NoAction:
		e.recordIdempotent(action)
		return ActionResult{Action: action, Status: Done}
	default:
		return ActionResult{Action: action, Status: Done}
	}
}

func (e *Executor) runDelete(action planner.PlannedAction) ActionResult {
	if err := hashutil.BackupFile(action.Target, e.Paths.InstanceDir, e.backupDir()); err != nil {
		return ActionResult{Action: action, Status: Failed, Err: engerrors.NewIoOther(action.Target, err)}
	}

	if err := hashutil.SafeDelete(action.Target); err != nil {
		if hashutil.IsLocked(err) {
			e.Journal.Append(e.Paths, pendingops.Op{Type: pendingops.OpDelete, PrimaryPath: action.Target})
			e.Sink.Log("deferred delete (locked): " + action.Target)
			return ActionResult{Action: action, Status: Deferred}
		}
		return ActionResult{Action: action, Status: Failed, Err: engerrors.NewIoOther(action.Target, err)}
	}

	if action.NumberID != "" {
		e.Store.RemoveMod(action.NumberID)
	}
	return ActionResult{Action: action, Status: Done}
}

func (e *Executor) runRename(action planner.PlannedAction) ActionResult {
	if err := hashutil.BackupFile(action.Existing, e.Paths.InstanceDir, e.backupDir()); err != nil {
		return ActionResult{Action: action, Status: Failed, Err: engerrors.NewIoOther(action.Existing, err)}
	}

	if err := hashutil.AtomicMove(action.Existing, action.Target); err != nil {
		if hashutil.IsLocked(err) {
			e.Journal.Append(e.Paths, pendingops.Op{Type: pendingops.OpMove, PrimaryPath: action.Existing, SecondaryPath: action.Target})
			e.Sink.Log("deferred rename (locked): " + action.Existing + " -> " + action.Target)
			return ActionResult{Action: action, Status: Deferred}
		}
		return ActionResult{Action: action, Status: Failed, Err: engerrors.NewIoOther(action.Existing, err)}
	}

	e.recordIdempotent(action)
	return ActionResult{Action: action, Status: Done}
}

// stagedDownload is one NEW_DOWNLOAD/UPDATE action's concurrent staging
// outcome: either a verified staged file ready to swap in, or the error
// that staging hit (no download URL, HTTP/network failure, or a checksum
// mismatch already cleaned up by downloader.Download).
type stagedDownload struct {
	path string
	err  error
}

// stageDownloads fetches every NEW_DOWNLOAD/UPDATE action's artifact to a
// staging path concurrently through downloader.RunBatch, bounded by
// Opts.Concurrency (spec §5's bounded worker pool). The returned map is
// keyed by the action's index in plan.Actions so Run can match each result
// back up for its own sequential verify→backup→swap.
func (e *Executor) stageDownloads(ctx context.Context, plan *planner.Plan) map[int]*stagedDownload {
	staged := make(map[int]*stagedDownload)

	if err := os.MkdirAll(e.Paths.StagingDir(), 0o755); err != nil {
		mkdirErr := engerrors.NewIoOther(e.Paths.StagingDir(), err)
		for i, action := range plan.Actions {
			if action.Kind == planner.NewDownload || action.Kind == planner.Update {
				staged[i] = &stagedDownload{err: mkdirErr}
			}
		}
		return staged
	}

	var indices []int
	var jobs []downloader.Job
	for i, action := range plan.Actions {
		if action.Kind != planner.NewDownload && action.Kind != planner.Update {
			continue
		}
		if action.DownloadURL == "" {
			staged[i] = &stagedDownload{err: engerrors.NewManifestShape(action.Target, "no download URL resolved")}
			continue
		}

		stagedPath := filepath.Join(e.Paths.StagingDir(), filepath.Base(action.Target)+"-"+uuid.NewString()+".tmp")
		expectedLength := int64(-1)
		if n, err := hashutil.HeadContentLength(ctx, action.DownloadURL, 8*time.Second); err == nil && n > 0 {
			expectedLength = n
		}

		staged[i] = &stagedDownload{path: stagedPath}
		indices = append(indices, i)
		jobs = append(jobs, downloader.Job{
			URL:            action.DownloadURL,
			DestPath:       stagedPath,
			ExpectedLength: expectedLength,
			ExpectedHash:   action.Hash,
		})
	}
	if len(jobs) == 0 {
		return staged
	}

	errs := downloader.RunBatch(ctx, jobs, e.Opts.Concurrency,
		downloader.Options{MaxRetries: e.Opts.MaxRetries, AuthHook: e.Opts.DownloadAuthHook}, e.Sink)
	for j, idx := range indices {
		staged[idx].err = errs[j]
	}
	return staged
}

// finishStagedDownload backs up the current target, swaps in the already
// staged-and-verified file, and records metadata — the verify→backup→swap
// tail of the state machine for one artifact, run sequentially per action.
func (e *Executor) finishStagedDownload(action planner.PlannedAction, sd *stagedDownload) ActionResult {
	if sd == nil {
		return ActionResult{Action: action, Status: Failed, Err: engerrors.NewManifestShape(action.Target, "no download URL resolved")}
	}
	if sd.err != nil {
		return ActionResult{Action: action, Status: Failed, Err: sd.err}
	}

	if err := hashutil.BackupFile(action.Target, e.Paths.InstanceDir, e.backupDir()); err != nil {
		os.Remove(sd.path)
		return ActionResult{Action: action, Status: Failed, Err: engerrors.NewIoOther(action.Target, err)}
	}

	if err := hashutil.AtomicMove(sd.path, action.Target); err != nil {
		if hashutil.IsLocked(err) {
			checksum := action.Hash
			if checksum == "" {
				if sum, herr := hashutil.SHA256File(sd.path); herr == nil {
					checksum = sum
				}
			}
			e.Journal.Append(e.Paths, pendingops.Op{
				Type: pendingops.OpReplace, PrimaryPath: action.Target,
				SecondaryPath: action.Target, StagedPath: sd.path, Checksum: checksum,
			})
			e.Sink.Log("deferred replace (locked): " + action.Target)
			return ActionResult{Action: action, Status: Deferred}
		}
		os.Remove(sd.path)
		return ActionResult{Action: action, Status: Failed, Err: engerrors.NewIoOther(action.Target, err)}
	}

	e.recordIdempotent(action)
	if action.Extract && isZip(action.Target) {
		_, refused, err := hashutil.ExtractZip(action.Target, action.DownloadPath, action.Overwrite)
		if err != nil {
			e.Sink.Log(fmt.Sprintf("extract failed for %s: %v", action.Target, err))
		}
		for _, r := range refused {
			e.Sink.Log("zip-slip entry refused: " + r)
		}
	}
	return ActionResult{Action: action, Status: Done}
}

func isZip(path string) bool {
	return len(path) >= 4 && path[len(path)-4:] == ".zip"
}

// recordIdempotent writes the post-action metadata record for mods and
// files; called on Done so SKIP/NO_ACTION/RENAME/download all converge on
// one metadata shape regardless of which branch produced them.
func (e *Executor) recordIdempotent(action planner.PlannedAction) {
	if action.NumberID != "" {
		sum, _ := hashutil.SHA256File(action.Target)
		if sum == "" {
			sum = action.Hash
		}
		e.Store.RecordMod(action.NumberID, metadata.ModRecord{
			Filename:          filepath.Base(action.Target),
			Hash:              sum,
			SourceFingerprint: action.SourceFingerprint,
		})
		return
	}
	if action.Kind == planner.Skip || action.Kind == planner.NoAction || action.Kind == planner.NewDownload || action.Kind == planner.Update {
		sum, err := hashutil.SHA256File(action.Target)
		if err != nil {
			return
		}
		e.Store.RecordFile(action.Target, metadata.FileRecord{
			Hash:         sum,
			SourceURL:    action.DownloadURL,
			DownloadPath: action.DownloadPath,
		})
	}
}

// Commit persists metadata and the applied-version marker only if every
// action in result succeeded or deferred (spec §4.5 "commit only on full
// success"), then prunes backups beyond backupKeep.
func (e *Executor) Commit(result *RunResult, targetVersion string, saveVersion func(config.Paths, string) error) error {
	if !result.Committed {
		return fmt.Errorf("run did not complete: applied version left unchanged")
	}

	if err := e.Store.Save(e.Paths); err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}
	if err := saveVersion(e.Paths, targetVersion); err != nil {
		return fmt.Errorf("saving applied version: %w", err)
	}

	return e.pruneBackups()
}

// pruneBackups keeps the newest BackupKeep run directories under
// backup/, sorted descending by name (run dirs are timestamp-named so this
// is also chronological), and removes the rest (spec §4.5, §8 scenario 6).
func (e *Executor) pruneBackups() error {
	entries, err := os.ReadDir(e.Paths.BackupRoot())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var names []string
	for _, ent := range entries {
		if ent.IsDir() {
			names = append(names, ent.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if len(names) <= e.Opts.BackupKeep {
		return nil
	}
	for _, stale := range names[e.Opts.BackupKeep:] {
		if err := os.RemoveAll(filepath.Join(e.Paths.BackupRoot(), stale)); err != nil {
			return err
		}
	}
	return nil
}
