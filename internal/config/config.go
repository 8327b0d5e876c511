// Package config manages the engine's local configuration file and the
// fixed filesystem layout described in spec §6.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the engine's working directories and files, all rooted at an
// instance directory (spec §6 "Local filesystem layout"). ConfigDir, when
// set, overrides the default config/ModUpdater location under InstanceDir
// (the --config-dir flag / profile.ConfigDir); staging and backup stay
// under InstanceDir either way.
type Paths struct {
	InstanceDir string
	ConfigDir   string
}

func NewPaths(instanceDir string) Paths {
	return Paths{InstanceDir: instanceDir}
}

// WithConfigDir returns a copy of p with an explicit config directory
// instead of the default <InstanceDir>/config/ModUpdater.
func (p Paths) WithConfigDir(dir string) Paths {
	p.ConfigDir = dir
	return p
}

func (p Paths) configDir() string {
	if p.ConfigDir != "" {
		return p.ConfigDir
	}
	return filepath.Join(p.InstanceDir, "config", "ModUpdater")
}
func (p Paths) ConfigFile() string   { return filepath.Join(p.configDir(), "config.json") }
func (p Paths) VersionFile() string  { return filepath.Join(p.configDir(), "modpack_version.json") }
func (p Paths) MetadataFile() string { return filepath.Join(p.configDir(), "mod_metadata.json") }
func (p Paths) PendingOpsFile() string {
	return filepath.Join(p.configDir(), "pending-update-ops.json")
}
func (p Paths) StagingDir() string     { return filepath.Join(p.InstanceDir, "modupdater", "tmp") }
func (p Paths) BackupRoot() string     { return filepath.Join(p.InstanceDir, "modupdater", "backup") }
func (p Paths) DefaultModsDir() string { return filepath.Join(p.InstanceDir, "mods") }

// EnsureDirs creates config/ModUpdater, the staging dir, and the backup
// root if they do not already exist.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.configDir(), p.StagingDir(), p.BackupRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// Config is the local config.json document (spec §6).
type Config struct {
	RemoteConfigURL string `json:"remote_config_url"`
}

// Load reads config.json. A missing file returns a zero Config and no
// error; callers that require remote_config_url to be set should check it
// themselves and surface engerrors.ConfigError.
func Load(p Paths) (*Config, error) {
	data, err := os.ReadFile(p.ConfigFile())
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save atomically writes config.json (tmp + rename, matching the rest of
// the engine's persistent files).
func Save(p Paths, cfg *Config) error {
	if err := p.EnsureDirs(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return atomicWriteFile(p.ConfigFile(), data)
}

// atomicWriteFile writes data to a sibling .tmp file, fsyncs it, then
// renames it into place — the discipline spec §4.6 requires for the
// metadata store and which this package extends to every persistent
// engine file (config, version marker, pending-ops journal).
func atomicWriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// AtomicWriteFile exposes the shared tmp+fsync+rename write path for other
// packages (metadata store, pending-ops journal, applied-state marker) so
// every persistent document in the engine uses one implementation.
func AtomicWriteFile(path string, data []byte) error {
	return atomicWriteFile(path, data)
}
