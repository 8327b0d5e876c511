// Package manifest fetches and parses the engine's remote configuration and
// the three sub-manifests it points to (spec §4.1, §6), and provides the
// applyRange/verifySet filtering helpers used by the planner.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caedis/modengine/internal/engerrors"
	"github.com/caedis/modengine/internal/modversion"
)

const (
	userAgent    = "modengine/1.0"
	fetchTimeout = 10 * time.Second
)

var httpClient = &http.Client{Timeout: fetchTimeout}

// RemoteConfig is the document fetched from the user-configured
// remote_config_url (spec §3, §6).
type RemoteConfig struct {
	ModpackVersion      string `json:"modpackVersion"`
	ConfigsBaseURL      string `json:"configsBaseUrl"`
	ModsJSON            string `json:"modsJson"`
	FilesJSON           string `json:"filesJson"`
	DeletesJSON         string `json:"deletesJson"`
	CheckCurrentVersion bool   `json:"checkCurrentVersion"`
	MaxRetries          int    `json:"maxRetries"`
	BackupKeep          int    `json:"backupKeep"`
	DebugMode           bool   `json:"debugMode"`
}

// Source is the tagged-union descriptor for where a mod artifact comes from
// (spec §3, §4.2, §9 "sealed sum type with one resolver per variant").
type Source struct {
	Kind      SourceKind `json:"kind"`
	URL       string     `json:"url,omitempty"`
	ProjectID string     `json:"projectId,omitempty"`
	FileID    string     `json:"fileId,omitempty"`
	VersionID string     `json:"versionId,omitempty"`
}

type SourceKind string

const (
	SourceURL        SourceKind = "url"
	SourceCurseForge SourceKind = "curseforge"
	SourceModrinth   SourceKind = "modrinth"
)

// ModEntry is one entry of mods.json (spec §3).
type ModEntry struct {
	NumberID        string `json:"numberId"`
	DisplayName     string `json:"display_name"`
	FileName        string `json:"file_name"`
	Source          Source `json:"source"`
	InstallLocation string `json:"installLocation"`
	Hash            string `json:"hash"`
	Since           string `json:"since"`
}

// EffectiveInstallLocation returns InstallLocation, defaulting to "mods".
func (m ModEntry) EffectiveInstallLocation() string {
	if m.InstallLocation == "" {
		return "mods"
	}
	return m.InstallLocation
}

// EffectiveSince returns Since, defaulting to "0.0.0".
func (m ModEntry) EffectiveSince() string {
	if m.Since == "" {
		return "0.0.0"
	}
	return m.Since
}

// FileEntry is one entry of files.json (spec §3).
type FileEntry struct {
	URL          string `json:"url"`
	DownloadPath string `json:"downloadPath"`
	FileName     string `json:"file_name"`
	Overwrite    bool   `json:"overwrite"`
	Extract      bool   `json:"extract"`
	Hash         string `json:"hash"`
	Since        string `json:"since"`
}

func (f FileEntry) EffectiveSince() string {
	if f.Since == "" {
		return "0.0.0"
	}
	return f.Since
}

// DeleteEntry is one entry of deletes.json (spec §3).
type DeleteEntry struct {
	Since   string   `json:"since"`
	Paths   []string `json:"paths"`
	Folders []string `json:"folders"`
}

func (d DeleteEntry) EffectiveSince() string {
	if d.Since == "" {
		return "0.0.0"
	}
	return d.Since
}

type filesDocument struct {
	Files []FileEntry `json:"files"`
}

type deletesDocument struct {
	Deletes []DeleteEntry `json:"deletes"`
}

// LoadRemoteConfig fetches and parses the remote config document.
func LoadRemoteConfig(ctx context.Context, url, token string) (*RemoteConfig, error) {
	var cfg RemoteConfig
	if err := fetchJSON(ctx, url, token, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadMods fetches and parses the mods sub-manifest.
func LoadMods(ctx context.Context, url, token string) ([]ModEntry, error) {
	var mods []ModEntry
	if err := fetchJSON(ctx, url, token, &mods); err != nil {
		return nil, err
	}
	return mods, nil
}

// LoadFiles fetches and parses the files sub-manifest.
func LoadFiles(ctx context.Context, url, token string) ([]FileEntry, error) {
	var doc filesDocument
	if err := fetchJSON(ctx, url, token, &doc); err != nil {
		return nil, err
	}
	return doc.Files, nil
}

// LoadDeletes fetches and parses the deletes sub-manifest.
func LoadDeletes(ctx context.Context, url, token string) ([]DeleteEntry, error) {
	var doc deletesDocument
	if err := fetchJSON(ctx, url, token, &doc); err != nil {
		return nil, err
	}
	return doc.Deletes, nil
}

func fetchJSON(ctx context.Context, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return engerrors.NewNetwork(0, fmt.Sprintf("fetching %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return engerrors.NewNetwork(resp.StatusCode, fmt.Sprintf("fetching %s: %s", url, body), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s: %w", url, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		// Strict mode can reject legitimate forward-compatible fields from a
		// newer manifest producer; fall back to a lenient decode rather than
		// aborting the whole run over one unexpected field.
		if lenientErr := json.Unmarshal(data, out); lenientErr != nil {
			return fmt.Errorf("parsing %s: %w", url, err)
		}
	}
	return nil
}

// ApplyRange returns entries with from < since <= to: the strictly-new
// entries for an upgrade (spec §4.1, GLOSSARY "Apply range").
func ApplyRange[T any](entries []T, since func(T) string, from, to string) []T {
	var out []T
	for _, e := range entries {
		if modversion.InRange(since(e), from, to) {
			out = append(out, e)
		}
	}
	return out
}

// VerifySet returns entries with since <= to: the full re-verification set
// for target (spec §4.1, GLOSSARY "Verify set").
func VerifySet[T any](entries []T, since func(T) string, to string) []T {
	var out []T
	for _, e := range entries {
		if modversion.InVerifySet(since(e), to) {
			out = append(out, e)
		}
	}
	return out
}
