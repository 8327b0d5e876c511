// Package pendingops implements the persistent journal of deferred
// filesystem operations (spec §4.7, §3 "Pending Op") and its replay logic
// (spec §4.5 "Pending-ops replay").
package pendingops

import (
	"encoding/json"
	"os"

	"github.com/caedis/modengine/internal/config"
	"github.com/caedis/modengine/internal/hashutil"
)

const journalVersion = 1

type OpType string

const (
	OpDelete  OpType = "DELETE"
	OpMove    OpType = "MOVE"
	OpReplace OpType = "REPLACE"
)

// Op is a single pending operation record (spec §3).
type Op struct {
	Type          OpType `json:"type"`
	PrimaryPath   string `json:"primaryPath"`
	SecondaryPath string `json:"secondaryPath,omitempty"`
	StagedPath    string `json:"stagedPath,omitempty"`
	Checksum      string `json:"checksum,omitempty"`
}

type journalDocument struct {
	Version int  `json:"version"`
	Ops     []Op `json:"ops"`
}

// Journal is the in-memory pending-ops log.
type Journal struct {
	ops []Op
}

// Load reads the journal from disk; a missing file is not an error and
// yields an empty journal (spec §4.7).
func Load(p config.Paths) (*Journal, error) {
	data, err := os.ReadFile(p.PendingOpsFile())
	if os.IsNotExist(err) {
		return &Journal{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc journalDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &Journal{ops: doc.Ops}, nil
}

// Append adds op to the journal and persists it immediately, so a deferred
// operation survives a crash between this run and the next replay.
func (j *Journal) Append(p config.Paths, op Op) error {
	j.ops = append(j.ops, op)
	return j.save(p)
}

func (j *Journal) save(p config.Paths) error {
	doc := journalDocument{Version: journalVersion, Ops: j.ops}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return config.AtomicWriteFile(p.PendingOpsFile(), data)
}

// Ops returns a copy of the current pending operations.
func (j *Journal) Ops() []Op {
	out := make([]Op, len(j.ops))
	copy(out, j.ops)
	return out
}

// Replay applies every pending op, removing each one only on success (spec
// §4.5). It is idempotent: replaying an already-replayed (now empty)
// journal is a no-op, and replaying a journal whose source paths are
// already gone treats each such record as obsolete and drops it rather than
// erroring (spec §8 invariant 7).
func (j *Journal) Replay(p config.Paths) error {
	var remaining []Op
	for _, op := range j.ops {
		done, err := replayOne(op)
		if err != nil {
			remaining = append(remaining, op)
			continue
		}
		if !done {
			remaining = append(remaining, op)
		}
	}
	j.ops = remaining
	return j.save(p)
}

// replayOne applies a single op, returning (true, nil) if it completed or
// was found obsolete, (false, nil) if it should stay pending, or a non-nil
// error on an unexpected failure.
func replayOne(op Op) (bool, error) {
	switch op.Type {
	case OpDelete:
		if _, err := os.Stat(op.PrimaryPath); os.IsNotExist(err) {
			return true, nil
		}
		if err := hashutil.SafeDelete(op.PrimaryPath); err != nil {
			if hashutil.IsLocked(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil

	case OpMove:
		if _, err := os.Stat(op.PrimaryPath); os.IsNotExist(err) {
			return true, nil // source already gone: obsolete
		}
		if err := hashutil.AtomicMove(op.PrimaryPath, op.SecondaryPath); err != nil {
			if hashutil.IsLocked(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil

	case OpReplace:
		if _, err := os.Stat(op.StagedPath); os.IsNotExist(err) {
			return true, nil // staged file gone: obsolete, nothing to replace with
		}
		if op.Checksum != "" {
			sum, err := hashutil.SHA256File(op.StagedPath)
			if err != nil || sum != op.Checksum {
				return true, nil // staged file no longer matches: drop, don't apply a corrupt replace
			}
		}
		if err := hashutil.SafeDelete(op.PrimaryPath); err != nil {
			if hashutil.IsLocked(err) {
				return false, nil
			}
			return false, err
		}
		if err := hashutil.AtomicMove(op.StagedPath, op.PrimaryPath); err != nil {
			if hashutil.IsLocked(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil

	default:
		return true, nil // unknown op type: drop rather than loop forever
	}
}
