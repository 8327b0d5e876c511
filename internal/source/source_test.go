package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caedis/modengine/internal/manifest"
)

func TestResolveOneURL(t *testing.T) {
	c := NewClient("")
	res, err := c.ResolveOne(context.Background(), manifest.Source{
		Kind: manifest.SourceURL,
		URL:  "https://cdn.example.com/mods/Thaumcraft%206.1.jar",
	})
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if res.Unresolved {
		t.Fatal("expected resolved result")
	}
	if res.Filename != "Thaumcraft 6.1.jar" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if res.DownloadURL != "https://cdn.example.com/mods/Thaumcraft%206.1.jar" {
		t.Errorf("DownloadURL = %q", res.DownloadURL)
	}
}

func TestResolveOneURLEmptyIsUnresolved(t *testing.T) {
	c := NewClient("")
	res, err := c.ResolveOne(context.Background(), manifest.Source{Kind: manifest.SourceURL})
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if !res.Unresolved {
		t.Error("expected Unresolved for empty URL")
	}
}

func TestResolveOneCurseForge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mods/223794/files/4567890" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"downloadUrl":"https://edge.forgecdn.net/files/4567/890/mod.jar","fileName":"mod.jar"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.ResolveOne(context.Background(), manifest.Source{
		Kind:      manifest.SourceCurseForge,
		ProjectID: "223794",
		FileID:    "4567890",
	})
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if res.Unresolved {
		t.Fatal("expected resolved result")
	}
	if res.DownloadURL != "https://edge.forgecdn.net/files/4567/890/mod.jar" || res.Filename != "mod.jar" {
		t.Errorf("res = %+v", res)
	}
}

func TestResolveOneCurseForgeFallsBackToFilesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"files":[{"downloadUrl":"https://edge.forgecdn.net/files/1/2/other.jar","fileName":"other.jar"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.ResolveOne(context.Background(), manifest.Source{
		Kind:      manifest.SourceCurseForge,
		ProjectID: "1",
		FileID:    "2",
	})
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if res.DownloadURL != "https://edge.forgecdn.net/files/1/2/other.jar" {
		t.Errorf("DownloadURL = %q", res.DownloadURL)
	}
}

func TestResolveOneCurseForgeMissingConfigIsUnresolved(t *testing.T) {
	c := NewClient("")
	res, err := c.ResolveOne(context.Background(), manifest.Source{
		Kind:      manifest.SourceCurseForge,
		ProjectID: "1",
		FileID:    "2",
	})
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if !res.Unresolved {
		t.Error("expected Unresolved without a CurseForge base URL")
	}
}

func TestResolveOneCurseForgeProviderErrorIsUnresolvedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.ResolveOne(context.Background(), manifest.Source{
		Kind:      manifest.SourceCurseForge,
		ProjectID: "1",
		FileID:    "2",
	})
	if err != nil {
		t.Fatalf("ResolveOne: %v, want nil error (non-fatal)", err)
	}
	if !res.Unresolved {
		t.Error("expected Unresolved on provider failure")
	}
}

func TestResolveOneModrinth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version/abcd1234" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"files":[{"url":"https://cdn.modrinth.com/data/abcd/versions/1/mod.jar","filename":"mod.jar"}]}`))
	}))
	defer srv.Close()

	c := NewClient("")
	c.ModrinthBaseURL = srv.URL
	res, err := c.ResolveOne(context.Background(), manifest.Source{
		Kind:      manifest.SourceModrinth,
		VersionID: "abcd1234",
	})
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if res.Unresolved {
		t.Fatal("expected resolved result")
	}
	if res.DownloadURL != "https://cdn.modrinth.com/data/abcd/versions/1/mod.jar" {
		t.Errorf("DownloadURL = %q", res.DownloadURL)
	}
}

func TestResolveOneModrinthNoFilesIsUnresolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files":[]}`))
	}))
	defer srv.Close()

	c := NewClient("")
	c.ModrinthBaseURL = srv.URL
	res, err := c.ResolveOne(context.Background(), manifest.Source{
		Kind:      manifest.SourceModrinth,
		VersionID: "abcd1234",
	})
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if !res.Unresolved {
		t.Error("expected Unresolved for empty files list")
	}
}

func TestResolveOneUnknownKind(t *testing.T) {
	c := NewClient("")
	_, err := c.ResolveOne(context.Background(), manifest.Source{Kind: manifest.SourceKind("ftp")})
	if err == nil {
		t.Fatal("expected error for unknown source kind")
	}
}

func TestResolveBatchIsolatesPerEntryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"downloadUrl":"https://edge.forgecdn.net/files/1/2/mod.jar","fileName":"mod.jar"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	srcs := []manifest.Source{
		{Kind: manifest.SourceURL, URL: "https://cdn.example.com/a.jar"},
		{Kind: manifest.SourceCurseForge, ProjectID: "1", FileID: "2"},
		{Kind: manifest.SourceKind("bogus")},
	}
	results, errs := c.ResolveBatch(context.Background(), srcs, 2)

	if errs[0] != nil || errs[1] != nil {
		t.Errorf("expected first two entries to resolve cleanly, errs = %v", errs)
	}
	if errs[2] == nil {
		t.Error("expected entry 2 (unknown kind) to report an error")
	}
	if results[0].Filename != "a.jar" {
		t.Errorf("results[0].Filename = %q", results[0].Filename)
	}
	if results[1].DownloadURL == "" {
		t.Error("results[1] expected a resolved download URL")
	}
}
