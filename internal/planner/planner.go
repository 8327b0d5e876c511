// Package planner computes a Plan of PlannedActions from the current disk
// state, the metadata store, and the three upstream manifests (spec §4.4).
// It performs no mutation, and source resolution is expected to have
// already happened (internal/source). Its only network access is through
// Inputs.ResolveExt, whose default may send a HEAD probe when a filename
// has no extension.
package planner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caedis/modengine/internal/filenameres"
	"github.com/caedis/modengine/internal/manifest"
	"github.com/caedis/modengine/internal/metadata"
	"github.com/caedis/modengine/internal/modversion"
)

type ActionKind string

const (
	NewDownload ActionKind = "NEW_DOWNLOAD"
	Update      ActionKind = "UPDATE"
	Rename      ActionKind = "RENAME"
	Delete      ActionKind = "DELETE"
	Skip        ActionKind = "SKIP"
	NoAction    ActionKind = "NO_ACTION"
)

// PlannedAction is one entry of a Plan (spec §3).
type PlannedAction struct {
	Kind ActionKind

	// Target is the final on-disk path the action leaves behind (for
	// DELETE, the path being removed).
	Target string
	// Existing is the current on-disk path this action moves from, set
	// only for RENAME.
	Existing string

	NumberID          string // empty for file entries
	Hash              string // manifest-declared hash, may be empty
	DownloadURL       string
	SourceFingerprint string
	DownloadPath      string // install directory the action applies to
	Extract           bool
	Overwrite         bool
	IsFolder          bool // true for folder delete targets

	Reason string
}

// Plan is the ordered result of a planning pass: deletes, then files, then
// mods, each in manifest order (spec §4.4 "stable ordering").
type Plan struct {
	Actions  []PlannedAction
	Warnings []string
}

// ResolvedSource is what internal/source produced for one mod entry's
// Source descriptor, looked up by the entry's index in Mods.
type ResolvedSource struct {
	DownloadURL string
	Filename    string
	Unresolved  bool
}

// Inputs bundles everything Compute needs.
type Inputs struct {
	AppliedVersion string
	TargetVersion  string

	Mods    []manifest.ModEntry
	Files   []manifest.FileEntry
	Deletes []manifest.DeleteEntry

	// ResolvedMods holds the source-resolution result for Mods[i], keyed
	// by i. A missing entry is treated as Unresolved.
	ResolvedMods map[int]ResolvedSource

	InstanceDir string
	Store       *metadata.Store

	// HashFile computes a file's content hash; normally hashutil.SHA256File.
	HashFile func(path string) (string, error)

	// ResolveExt infers a missing filename extension; normally a thin
	// wrapper over filenameres.Resolve. Exposed so tests can avoid network
	// HEAD probes. When either is nil Compute fills in a default: ResolveExt
	// falls back to filenameres.Resolve, and HashFile to a stub that fails
	// for every path, so no hash comparison ever matches.
	ResolveExt func(stem, downloadURL string) string
}

// Compute produces a Plan from Inputs (spec §4.4).
func Compute(ctx context.Context, in Inputs) *Plan {
	if in.HashFile == nil {
		in.HashFile = func(string) (string, error) { return "", os.ErrNotExist }
	}
	if in.ResolveExt == nil {
		in.ResolveExt = func(stem, downloadURL string) string {
			return filenameres.Resolve(ctx, stem, downloadURL, nil, 5*time.Second)
		}
	}

	upgrading := modversion.Less(in.AppliedVersion, in.TargetVersion)

	p := &Plan{}
	planDeletes(in, p)
	planFiles(in, p, upgrading)
	planMods(in, p)
	return p
}

func abs(in Inputs, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(in.InstanceDir, rel)
}

// planDeletes handles both explicit deletes.json entries (verifySet, not
// applyRange — spec §4.4 "Delete planning") and orphaned numberId ownership
// deletes for mods dropped from the manifest.
func planDeletes(in Inputs, p *Plan) {
	applicable := manifest.VerifySet(in.Deletes, func(d manifest.DeleteEntry) string { return d.EffectiveSince() }, in.TargetVersion)

	for _, entry := range applicable {
		for _, rel := range entry.Paths {
			full := abs(in, rel)
			if _, err := os.Stat(full); err == nil {
				p.Actions = append(p.Actions, PlannedAction{Kind: Delete, Target: full, Reason: "deletes.json path"})
			}
		}
		for _, rel := range entry.Folders {
			full := abs(in, rel)
			if _, err := os.Stat(full); err == nil {
				p.Actions = append(p.Actions, PlannedAction{Kind: Delete, Target: full, IsFolder: true, Reason: "deletes.json folder"})
			}
		}
	}

	current := make(map[string]bool, len(in.Mods))
	for _, m := range in.Mods {
		if m.NumberID != "" {
			current[m.NumberID] = true
		}
	}

	type ownedMod struct {
		numberID string
		filename string
	}
	var orphans []ownedMod
	for id, rec := range in.Store.AllMods() {
		if !current[id] {
			orphans = append(orphans, ownedMod{numberID: id, filename: rec.Filename})
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].numberID < orphans[j].numberID })

	installDirs := map[string]bool{in.instanceModsDir(): true}
	for _, m := range in.Mods {
		installDirs[abs(in, m.EffectiveInstallLocation())] = true
	}

	for _, o := range orphans {
		for dir := range installDirs {
			full := filepath.Join(dir, o.filename)
			if _, err := os.Stat(full); err == nil {
				p.Actions = append(p.Actions, PlannedAction{
					Kind: Delete, Target: full, NumberID: o.numberID,
					Reason: "numberId no longer present in mods manifest",
				})
				break
			}
		}
	}
}

func (in Inputs) instanceModsDir() string { return filepath.Join(in.InstanceDir, "mods") }

func planFiles(in Inputs, p *Plan, upgrading bool) {
	for _, f := range in.Files {
		stem := f.FileName
		if stem == "" {
			continue // ManifestShape: nothing to name this file with
		}
		if !filenameres.HasExtension(stem) {
			stem = in.ResolveExt(stem, f.URL)
		}

		dir := abs(in, f.DownloadPath)
		target := filepath.Join(dir, stem)

		action := PlannedAction{
			Target: target, Hash: f.Hash, DownloadURL: f.URL,
			DownloadPath: dir, Extract: f.Extract, Overwrite: f.Overwrite,
		}

		rec, hasMeta := in.Store.GetFile(target)
		_, statErr := os.Stat(target)
		exists := statErr == nil

		switch {
		case hasMeta && exists:
			if upgrading && f.Overwrite && f.Hash != "" && rec.Hash != f.Hash {
				action.Kind = Update
			} else {
				action.Kind = NoAction
			}

		case hasMeta && !exists:
			action.Kind = Update

		case !hasMeta && exists && f.Hash != "":
			sum, err := in.HashFile(target)
			if err == nil && sum == f.Hash {
				action.Kind = NoAction
			} else {
				action.Kind = Update
			}

		case !hasMeta && exists && f.Hash == "":
			if !f.Overwrite {
				action.Kind = Skip
				action.Reason = "existing unmanaged file, overwrite=false"
			} else {
				action.Kind = NoAction
			}

		default: // !exists
			action.Kind = NewDownload
		}

		p.Actions = append(p.Actions, action)
	}
}

func planMods(in Inputs, p *Plan) {
	for i, m := range in.Mods {
		resolved := in.ResolvedMods[i]

		finalName := finalModName(in, m, resolved)
		if finalName == "" {
			if resolved.DownloadURL == "" {
				p.Warnings = append(p.Warnings, "skipping mod entry with no resolvable name or source: numberId="+m.NumberID)
				continue
			}
		}

		dir := abs(in, m.EffectiveInstallLocation())
		target := filepath.Join(dir, finalName)

		action := PlannedAction{
			NumberID: m.NumberID, Target: target, Hash: m.Hash,
			DownloadURL: resolved.DownloadURL, DownloadPath: dir,
			SourceFingerprint: sourceFingerprint(m.Source),
		}

		decided := decideModAction(in, m, dir, finalName, resolved, &action)
		if !decided {
			if resolved.DownloadURL == "" {
				p.Warnings = append(p.Warnings, "skipping mod entry: no download URL and "+string(action.Kind)+" was not resolvable: numberId="+m.NumberID)
				continue
			}
			action.Kind = NewDownload
		}

		p.Actions = append(p.Actions, action)
	}
}

func finalModName(in Inputs, m manifest.ModEntry, resolved ResolvedSource) string {
	stem := m.FileName
	if stem == "" {
		stem = resolved.Filename
	}
	if stem == "" && m.DisplayName != "" {
		stem = filenameres.Sanitize(m.DisplayName)
	}
	if stem == "" {
		return ""
	}
	if !filenameres.HasExtension(stem) {
		stem = in.ResolveExt(stem, resolved.DownloadURL)
	}
	if m.NumberID != "" && !strings.HasPrefix(stem, m.NumberID+"-") {
		stem = m.NumberID + "-" + stem
	}
	return stem
}

func sourceFingerprint(s manifest.Source) string {
	switch s.Kind {
	case manifest.SourceCurseForge:
		return "curseforge:" + s.ProjectID + ":" + s.FileID
	case manifest.SourceModrinth:
		return "modrinth:" + s.VersionID
	default:
		return s.URL
	}
}

// decideModAction fills in action.Kind (and Existing, for RENAME) following
// the decision table in spec §4.4. It returns false when nothing could be
// determined and the caller should fall back to NEW_DOWNLOAD (or skip, if
// there is no download URL either).
func decideModAction(in Inputs, m manifest.ModEntry, dir, finalName string, resolved ResolvedSource, action *PlannedAction) bool {
	target := filepath.Join(dir, finalName)

	if m.NumberID != "" {
		if rec, ok := in.Store.GetMod(m.NumberID); ok {
			hashesMatch := m.Hash == "" || rec.Hash == m.Hash
			if hashesMatch {
				recordedPath := filepath.Join(dir, rec.Filename)
				if _, err := os.Stat(recordedPath); err == nil {
					if rec.Filename != finalName {
						action.Kind = Rename
						action.Existing = recordedPath
					} else {
						action.Kind = NoAction
					}
					return true
				}
				if siblingName, found := in.Store.FindFileByHash(dir, m.Hash, m.NumberID, in.HashFile); found && m.Hash != "" {
					action.Kind = Rename
					action.Existing = filepath.Join(dir, siblingName)
					return true
				}
				action.Kind = Update
				return true
			}
			action.Kind = Update
			return true
		}
	}

	if m.NumberID != "" {
		if candidate, ok := findByPrefix(dir, m.NumberID, finalName); ok {
			sum, err := in.HashFile(candidate)
			hashMatches := m.Hash != "" && err == nil && sum == m.Hash
			if hashMatches {
				if filepath.Base(candidate) != finalName {
					action.Kind = Rename
					action.Existing = candidate
				} else {
					action.Kind = NoAction
				}
				return true
			}
			action.Kind = Update
			action.Existing = candidate
			return true
		}
	}

	if _, err := os.Stat(target); err == nil {
		if m.Hash != "" {
			sum, herr := in.HashFile(target)
			if herr == nil && sum == m.Hash {
				action.Kind = NoAction
			} else {
				action.Kind = Update
			}
		} else {
			action.Kind = NoAction
		}
		return true
	}

	if m.Hash != "" {
		if siblingName, found := in.Store.FindFileByHash(dir, m.Hash, m.NumberID, in.HashFile); found {
			action.Kind = Rename
			action.Existing = filepath.Join(dir, siblingName)
			return true
		}
	}

	if resolved.DownloadURL == "" {
		return false
	}
	action.Kind = NewDownload
	return true
}

// findByPrefix looks for a file in dir starting with "numberId-" other than
// finalName itself (which was already checked by the caller via os.Stat).
func findByPrefix(dir, numberID, finalName string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	prefix := numberID + "-"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == finalName {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}
