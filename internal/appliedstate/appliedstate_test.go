package appliedstate

import (
	"os"
	"testing"

	"github.com/caedis/modengine/internal/config"
)

func TestLoadMissingDefaultsToZero(t *testing.T) {
	p := config.NewPaths(t.TempDir())
	v, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if v != "0.0.0" {
		t.Errorf("Load missing = %q, want 0.0.0", v)
	}
}

func TestRoundTrip(t *testing.T) {
	p := config.NewPaths(t.TempDir())
	if err := Save(p, "1.2.3"); err != nil {
		t.Fatal(err)
	}
	v, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if v != "1.2.3" {
		t.Errorf("round trip = %q, want 1.2.3", v)
	}
}

func TestLoadTolersatesUnquoted(t *testing.T) {
	p := config.NewPaths(t.TempDir())
	if err := p.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.VersionFile(), []byte("1.2.3"), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if v != "1.2.3" {
		t.Errorf("Load unquoted = %q, want 1.2.3", v)
	}
}
