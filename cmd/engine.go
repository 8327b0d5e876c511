package cmd

import (
	"context"

	"github.com/caedis/modengine/internal/appliedstate"
	"github.com/caedis/modengine/internal/config"
	"github.com/caedis/modengine/internal/engerrors"
	"github.com/caedis/modengine/internal/hashutil"
	"github.com/caedis/modengine/internal/manifest"
	"github.com/caedis/modengine/internal/metadata"
	"github.com/caedis/modengine/internal/planner"
	"github.com/caedis/modengine/internal/source"
)

// enginePaths returns the filesystem layout rooted at the --instance-dir
// flag, honoring --config-dir when it overrides the default
// <instance-dir>/config/ModUpdater location.
func enginePaths() config.Paths {
	p := config.NewPaths(instanceDir)
	if configDir != "" {
		p = p.WithConfigDir(configDir)
	}
	return p
}

// requireRemoteConfigURL loads the local config and fails with a
// ConfigError (exit 2) if remote_config_url is not set (spec §6, §7).
func requireRemoteConfigURL() (string, error) {
	cfg, err := config.Load(enginePaths())
	if err != nil {
		return "", engerrors.NewConfig("reading local config: %v", err)
	}
	if cfg.RemoteConfigURL == "" {
		return "", engerrors.NewConfig("remote_config_url is not set; run 'modengine config set remote_config_url <url>'")
	}
	return cfg.RemoteConfigURL, nil
}

type manifests struct {
	Remote  *manifest.RemoteConfig
	Mods    []manifest.ModEntry
	Files   []manifest.FileEntry
	Deletes []manifest.DeleteEntry
}

// fetchManifests loads the remote config and its three sub-manifests (spec
// §4.1).
func fetchManifests(ctx context.Context, remoteConfigURL string) (*manifests, error) {
	remote, err := manifest.LoadRemoteConfig(ctx, remoteConfigURL, getToken())
	if err != nil {
		return nil, err
	}

	base := remote.ConfigsBaseURL
	mods, err := manifest.LoadMods(ctx, base+remote.ModsJSON, getToken())
	if err != nil {
		return nil, err
	}
	files, err := manifest.LoadFiles(ctx, base+remote.FilesJSON, getToken())
	if err != nil {
		return nil, err
	}
	deletes, err := manifest.LoadDeletes(ctx, base+remote.DeletesJSON, getToken())
	if err != nil {
		return nil, err
	}

	return &manifests{Remote: remote, Mods: mods, Files: files, Deletes: deletes}, nil
}

// resolveModSources resolves every mod entry's Source descriptor
// concurrently (spec §4.2, §5), returning a map keyed by index into mods
// suitable for planner.Inputs.ResolvedMods.
func resolveModSources(ctx context.Context, mods []manifest.ModEntry) map[int]planner.ResolvedSource {
	srcClient := source.NewClient(curseForgeBase)

	srcs := make([]manifest.Source, len(mods))
	for i, m := range mods {
		srcs[i] = m.Source
	}
	results, _ := srcClient.ResolveBatch(ctx, srcs, concurrency)

	out := make(map[int]planner.ResolvedSource, len(results))
	for i, r := range results {
		out[i] = planner.ResolvedSource{DownloadURL: r.DownloadURL, Filename: r.Filename, Unresolved: r.Unresolved}
	}
	return out
}

// computePlan fetches manifests and metadata, resolves every mod source, and
// runs the planner (spec §4.4). It performs no mutation.
func computePlan(ctx context.Context) (*planner.Plan, *manifests, string, error) {
	remoteConfigURL, err := requireRemoteConfigURL()
	if err != nil {
		return nil, nil, "", err
	}

	m, err := fetchManifests(ctx, remoteConfigURL)
	if err != nil {
		return nil, nil, "", err
	}

	p := enginePaths()
	applied, err := appliedstate.Load(p)
	if err != nil {
		return nil, nil, "", err
	}
	store, err := metadata.Load(p)
	if err != nil {
		return nil, nil, "", err
	}

	resolved := resolveModSources(ctx, m.Mods)

	plan := planner.Compute(ctx, planner.Inputs{
		AppliedVersion: applied,
		TargetVersion:  m.Remote.ModpackVersion,
		Mods:           m.Mods,
		Files:          m.Files,
		Deletes:        m.Deletes,
		ResolvedMods:   resolved,
		InstanceDir:    instanceDir,
		Store:          store,
		HashFile:       hashutil.SHA256File,
	})
	return plan, m, applied, nil
}
