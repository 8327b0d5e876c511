package config

import (
	"path/filepath"
	"testing"
)

func TestWithConfigDirOverridesConfigFilesOnly(t *testing.T) {
	p := NewPaths("/instance").WithConfigDir("/custom/cfg")

	if p.ConfigFile() != filepath.Join("/custom/cfg", "config.json") {
		t.Errorf("ConfigFile = %q", p.ConfigFile())
	}
	if p.MetadataFile() != filepath.Join("/custom/cfg", "mod_metadata.json") {
		t.Errorf("MetadataFile = %q", p.MetadataFile())
	}
	if p.StagingDir() != filepath.Join("/instance", "modupdater", "tmp") {
		t.Errorf("StagingDir should stay under InstanceDir, got %q", p.StagingDir())
	}
	if p.BackupRoot() != filepath.Join("/instance", "modupdater", "backup") {
		t.Errorf("BackupRoot should stay under InstanceDir, got %q", p.BackupRoot())
	}
}

func TestNewPathsDefaultConfigDir(t *testing.T) {
	p := NewPaths("/instance")
	if p.ConfigFile() != filepath.Join("/instance", "config", "ModUpdater", "config.json") {
		t.Errorf("ConfigFile = %q", p.ConfigFile())
	}
}
