// Package source resolves a manifest Source descriptor (spec §3, §4.2) into
// a download URL and a resolved filename. One resolver function handles
// each of the three sealed variants (url / curseforge / modrinth, spec §9);
// ResolveOne dispatches on Kind the way the reference engine's provider
// chain dispatches on source type, generalized from GitHub/Maven to
// CurseForge/Modrinth.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/caedis/modengine/internal/manifest"
)

// Result is what a resolver produces for a single entry. Unresolved is true
// when the descriptor was valid but the provider returned no artifact; this
// is never an error (spec §4.2 "every provider lookup failure is
// non-fatal for the resolver").
type Result struct {
	DownloadURL string
	Filename    string
	Unresolved  bool
}

// Client holds the shared HTTP configuration for provider lookups.
type Client struct {
	HTTP              *http.Client
	CurseForgeBaseURL string // CurseForge-compatible proxy, e.g. "https://proxy.example/v1/cf"
	ModrinthBaseURL   string // defaults to https://api.modrinth.com/v2
}

const defaultTimeout = 10 * time.Second

// NewClient builds a Client with the given proxy base URL and sane
// defaults for the rest.
func NewClient(curseForgeBaseURL string) *Client {
	return &Client{
		HTTP:              &http.Client{Timeout: defaultTimeout},
		CurseForgeBaseURL: curseForgeBaseURL,
		ModrinthBaseURL:   "https://api.modrinth.com/v2",
	}
}

// ResolveOne resolves a single Source descriptor (spec §4.2).
func (c *Client) ResolveOne(ctx context.Context, src manifest.Source) (Result, error) {
	switch src.Kind {
	case manifest.SourceURL:
		return c.resolveURL(src)
	case manifest.SourceCurseForge:
		return c.resolveCurseForge(ctx, src)
	case manifest.SourceModrinth:
		return c.resolveModrinth(ctx, src)
	default:
		return Result{}, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func (c *Client) resolveURL(src manifest.Source) (Result, error) {
	if src.URL == "" {
		return Result{Unresolved: true}, nil
	}
	u, err := url.Parse(src.URL)
	if err != nil {
		return Result{Unresolved: true}, nil
	}
	segment := path.Base(u.Path)
	if decoded, derr := url.PathUnescape(segment); derr == nil {
		segment = decoded
	}
	return Result{DownloadURL: src.URL, Filename: segment}, nil
}

type curseForgeResponse struct {
	Data struct {
		DownloadURL string `json:"downloadUrl"`
		FileName    string `json:"fileName"`
		Files       []struct {
			DownloadURL string `json:"downloadUrl"`
			FileName    string `json:"fileName"`
		} `json:"files"`
	} `json:"data"`
}

func (c *Client) resolveCurseForge(ctx context.Context, src manifest.Source) (Result, error) {
	if src.ProjectID == "" || src.FileID == "" || c.CurseForgeBaseURL == "" {
		return Result{Unresolved: true}, nil
	}
	apiURL := fmt.Sprintf("%s/mods/%s/files/%s", strings.TrimRight(c.CurseForgeBaseURL, "/"), src.ProjectID, src.FileID)

	var resp curseForgeResponse
	if err := c.getJSON(ctx, apiURL, &resp); err != nil {
		// Non-fatal to the resolver: return what we have (nothing).
		return Result{Unresolved: true}, nil
	}

	downloadURL := resp.Data.DownloadURL
	fileName := resp.Data.FileName
	if downloadURL == "" && len(resp.Data.Files) > 0 {
		downloadURL = resp.Data.Files[0].DownloadURL
		fileName = resp.Data.Files[0].FileName
	}
	if downloadURL == "" {
		return Result{Unresolved: true}, nil
	}
	return Result{DownloadURL: downloadURL, Filename: fileName}, nil
}

type modrinthResponse struct {
	Files []struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	} `json:"files"`
}

func (c *Client) resolveModrinth(ctx context.Context, src manifest.Source) (Result, error) {
	if src.VersionID == "" {
		return Result{Unresolved: true}, nil
	}
	base := c.ModrinthBaseURL
	if base == "" {
		base = "https://api.modrinth.com/v2"
	}
	apiURL := fmt.Sprintf("%s/version/%s", strings.TrimRight(base, "/"), src.VersionID)

	var resp modrinthResponse
	if err := c.getJSON(ctx, apiURL, &resp); err != nil {
		return Result{Unresolved: true}, nil
	}
	if len(resp.Files) == 0 || resp.Files[0].URL == "" {
		return Result{Unresolved: true}, nil
	}
	return Result{DownloadURL: resp.Files[0].URL, Filename: resp.Files[0].Filename}, nil
}

func (c *Client) getJSON(ctx context.Context, apiURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "modengine/1.0")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
