// Package metadata implements the engine's persistent metadata store (spec
// §4.6): installed-mod records keyed by numberId and installed-file records
// keyed by path, loaded at start and rewritten atomically at commit.
//
// Grounded on the reference engine's internal/config state Load/Save, but
// upgraded to the same tmp+fsync+rename discipline the reference engine's
// own downloader uses for artifact writes — the reference state.Save is a
// plain os.WriteFile, which does not give spec invariant 3's crash-safety
// guarantee for a file that is rewritten on every successful run.
package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/caedis/modengine/internal/config"
)

// ModRecord is the Installed Mod Record (spec §3): per numberId, the
// on-disk filename, the last known content hash, and a source fingerprint
// used to detect when the manifest's source descriptor itself changed.
type ModRecord struct {
	Filename          string `json:"filename"`
	Hash              string `json:"hash"`
	SourceFingerprint string `json:"source_fingerprint"`
}

// FileRecord is the Installed File Record (spec §3).
type FileRecord struct {
	Hash         string `json:"hash"`
	SourceURL    string `json:"source_url"`
	DownloadPath string `json:"download_path"`
}

type document struct {
	Mods  map[string]ModRecord  `json:"mods"`
	Files map[string]FileRecord `json:"files"`
}

// Store is the in-memory metadata structure, a pair of maps keyed by
// numberId and by file path (spec §4.6). Safe for concurrent use: every
// method takes the store's mutex.
type Store struct {
	mu    sync.Mutex
	mods  map[string]ModRecord
	files map[string]FileRecord
}

// Load reads the metadata store from disk, returning an empty Store if the
// file does not exist.
func Load(p config.Paths) (*Store, error) {
	data, err := os.ReadFile(p.MetadataFile())
	if os.IsNotExist(err) {
		return &Store{mods: map[string]ModRecord{}, files: map[string]FileRecord{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Mods == nil {
		doc.Mods = map[string]ModRecord{}
	}
	if doc.Files == nil {
		doc.Files = map[string]FileRecord{}
	}
	return &Store{mods: doc.Mods, files: doc.Files}, nil
}

// Save atomically writes the metadata store (tmp + fsync + rename).
func (s *Store) Save(p config.Paths) error {
	s.mu.Lock()
	doc := document{Mods: s.mods, Files: s.files}
	s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return config.AtomicWriteFile(p.MetadataFile(), data)
}

// RecordMod upserts a mod record by numberId.
func (s *Store) RecordMod(numberID string, rec ModRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mods[numberID] = rec
}

// RemoveMod deletes a mod record by numberId.
func (s *Store) RemoveMod(numberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mods, numberID)
}

// GetMod returns the record for numberId, and whether it exists.
func (s *Store) GetMod(numberID string) (ModRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.mods[numberID]
	return rec, ok
}

// AllMods returns a snapshot copy of every mod record, keyed by numberId.
func (s *Store) AllMods() map[string]ModRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ModRecord, len(s.mods))
	for k, v := range s.mods {
		out[k] = v
	}
	return out
}

// RecordFile upserts a file record by path.
func (s *Store) RecordFile(path string, rec FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = rec
}

// GetFile returns the record for path, and whether it exists.
func (s *Store) GetFile(path string) (FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[path]
	return rec, ok
}

// GetOwnerNumberID returns the numberId that owns filename, if any (spec
// §4.6 "getOwnerNumberId"). Ownership is tracked per numberId by filename,
// not per directory, so there is no dir parameter.
func (s *Store) GetOwnerNumberID(filename string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.mods {
		if rec.Filename == filename {
			return id, true
		}
	}
	return "", false
}

// FindFileByHash scans dir on disk for a regular file whose SHA-256 matches
// hash, skipping any filename owned by a numberId other than exclude (spec
// §4.4 "scan installLocation for a file with matching hash"). hashFn is
// injected so callers can reuse internal/hashutil.SHA256File without this
// package importing it directly (keeps metadata a pure bookkeeping layer).
func (s *Store) FindFileByHash(dir, hash, exclude string, hashFn func(string) (string, error)) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if owner, ok := s.GetOwnerNumberID(e.Name()); ok && owner != exclude {
			continue
		}
		full := filepath.Join(dir, e.Name())
		sum, err := hashFn(full)
		if err != nil {
			continue
		}
		if sum == hash {
			return e.Name(), true
		}
	}
	return "", false
}
