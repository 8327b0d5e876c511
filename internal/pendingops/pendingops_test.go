package pendingops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caedis/modengine/internal/config"
)

func TestAppendAndLoad(t *testing.T) {
	p := config.NewPaths(t.TempDir())
	j, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Append(p, Op{Type: OpDelete, PrimaryPath: "mods/old.jar"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	ops := reloaded.Ops()
	if len(ops) != 1 || ops[0].PrimaryPath != "mods/old.jar" {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestReplayDelete(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "old.jar")
	os.WriteFile(target, []byte("x"), 0o644)

	p := config.NewPaths(dir)
	j, _ := Load(p)
	j.Append(p, Op{Type: OpDelete, PrimaryPath: target})

	if err := j.Replay(p); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("expected file deleted after replay")
	}
	if len(j.Ops()) != 0 {
		t.Error("expected journal empty after successful replay")
	}
}

func TestReplayIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "old.jar")
	os.WriteFile(target, []byte("x"), 0o644)

	p := config.NewPaths(dir)
	j, _ := Load(p)
	j.Append(p, Op{Type: OpDelete, PrimaryPath: target})

	if err := j.Replay(p); err != nil {
		t.Fatal(err)
	}
	// Second replay on the now-empty journal must be a no-op, not an error.
	if err := j.Replay(p); err != nil {
		t.Fatal(err)
	}
	if len(j.Ops()) != 0 {
		t.Error("expected journal to remain empty")
	}
}

func TestReplayMoveObsoleteSourceGone(t *testing.T) {
	dir := t.TempDir()
	p := config.NewPaths(dir)
	j, _ := Load(p)
	// Source was never created: should be dropped as obsolete, not error.
	j.Append(p, Op{Type: OpMove, PrimaryPath: filepath.Join(dir, "gone"), SecondaryPath: filepath.Join(dir, "dest")})

	if err := j.Replay(p); err != nil {
		t.Fatal(err)
	}
	if len(j.Ops()) != 0 {
		t.Error("expected obsolete move to be dropped")
	}
}
