package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoadRemoteConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"modpackVersion":"1.2.0","configsBaseUrl":"https://example.test/cfg","modsJson":"mods.json","filesJson":"files.json","deletesJson":"deletes.json","maxRetries":3,"backupKeep":5}`))
	}))
	defer srv.Close()

	cfg, err := LoadRemoteConfig(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("LoadRemoteConfig: %v", err)
	}
	if cfg.ModpackVersion != "1.2.0" {
		t.Errorf("ModpackVersion = %q, want 1.2.0", cfg.ModpackVersion)
	}
	if cfg.MaxRetries != 3 || cfg.BackupKeep != 5 {
		t.Errorf("unexpected tuning knobs: %+v", cfg)
	}
}

func TestLoadRemoteConfigNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	if _, err := LoadRemoteConfig(context.Background(), srv.URL, ""); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestLoadMods(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"numberId":"42","file_name":"foo","source":{"kind":"url","url":"https://example.test/foo.jar"},"since":"1.0.0"}]`))
	}))
	defer srv.Close()

	mods, err := LoadMods(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("LoadMods: %v", err)
	}
	if len(mods) != 1 || mods[0].NumberID != "42" {
		t.Fatalf("unexpected mods: %+v", mods)
	}
	if mods[0].EffectiveInstallLocation() != "mods" {
		t.Errorf("expected default installLocation mods, got %q", mods[0].EffectiveInstallLocation())
	}
}

func TestLoadFilesAndDeletes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files":[{"url":"https://example.test/a.cfg","downloadPath":"config","file_name":"a.cfg","overwrite":true,"since":"0.0.0"}]}`))
	})
	mux.HandleFunc("/deletes.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"deletes":[{"since":"1.1.0","paths":["mods/old.jar"],"folders":[]}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	files, err := LoadFiles(context.Background(), srv.URL+"/files.json", "")
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(files) != 1 || files[0].FileName != "a.cfg" {
		t.Fatalf("unexpected files: %+v", files)
	}

	deletes, err := LoadDeletes(context.Background(), srv.URL+"/deletes.json", "")
	if err != nil {
		t.Fatalf("LoadDeletes: %v", err)
	}
	if len(deletes) != 1 || deletes[0].Paths[0] != "mods/old.jar" {
		t.Fatalf("unexpected deletes: %+v", deletes)
	}
}

func TestApplyRangeAndVerifySet(t *testing.T) {
	entries := []DeleteEntry{
		{Since: "0.5.0"},
		{Since: "1.0.0"},
		{Since: "1.5.0"},
		{Since: "2.0.0"},
	}
	since := func(d DeleteEntry) string { return d.EffectiveSince() }

	rng := ApplyRange(entries, since, "1.0.0", "2.0.0")
	if len(rng) != 2 || rng[0].Since != "1.5.0" || rng[1].Since != "2.0.0" {
		t.Fatalf("ApplyRange = %+v, want 1.5.0 and 2.0.0", rng)
	}

	verify := VerifySet(entries, since, "1.5.0")
	if len(verify) != 3 {
		t.Fatalf("VerifySet len = %d, want 3", len(verify))
	}
}
