package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caedis/modengine/internal/config"
)

// setupEngineTest spins up a one-mod, fresh-install manifest server and
// points instanceDir/curseForgeBase/concurrency and the local config at it.
func setupEngineTest(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/remote.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"modpackVersion":"1.0.0","configsBaseUrl":"` + srv.URL + `/","modsJson":"mods.json","filesJson":"files.json","deletesJson":"deletes.json","maxRetries":3,"backupKeep":5}`))
	})
	mux.HandleFunc("/mods.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"numberId":"1","file_name":"examplemod","source":{"kind":"url","url":"https://cdn.example.test/examplemod-1.0.jar"},"since":"1.0.0"}]`))
	})
	mux.HandleFunc("/files.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files":[]}`))
	})
	mux.HandleFunc("/deletes.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"deletes":[]}`))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	instanceDir = dir
	curseForgeBase = ""
	concurrency = 2

	p := config.NewPaths(dir)
	if err := p.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	if err := config.Save(p, &config.Config{RemoteConfigURL: srv.URL + "/remote.json"}); err != nil {
		t.Fatalf("config.Save: %v", err)
	}

	t.Cleanup(func() { instanceDir = "." })
	return srv
}

func TestComputePlanFreshInstallIsNewDownload(t *testing.T) {
	setupEngineTest(t)

	plan, m, applied, err := computePlan(context.Background())
	if err != nil {
		t.Fatalf("computePlan: %v", err)
	}
	if applied != "0.0.0" {
		t.Errorf("applied = %q, want 0.0.0 on fresh install", applied)
	}
	if m.Remote.ModpackVersion != "1.0.0" {
		t.Errorf("ModpackVersion = %q", m.Remote.ModpackVersion)
	}
	if len(plan.Actions) != 1 || plan.Actions[0].Kind != "NEW_DOWNLOAD" {
		t.Fatalf("unexpected plan: %+v", plan.Actions)
	}
}

func TestStatusCmdPrintsCounts(t *testing.T) {
	setupEngineTest(t)
	statusCmd.SetContext(context.Background())
	if err := statusCmd.RunE(statusCmd, nil); err != nil {
		t.Fatalf("status RunE: %v", err)
	}
}

func TestPlanCmdPrintsActions(t *testing.T) {
	setupEngineTest(t)
	planCmd.SetContext(context.Background())
	if err := planCmd.RunE(planCmd, nil); err != nil {
		t.Fatalf("plan RunE: %v", err)
	}
}
