// Package serverjar resolves and downloads a Fabric server runtime from
// the Fabric meta service. It is independent of add-on resolution; the CLI
// wires the downloaded jar back into the manifest.
package serverjar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/modman-dev/modman/pkg/buildinfo"
	"github.com/modman-dev/modman/pkg/errors"
	"github.com/modman-dev/modman/pkg/httputil"
)

// DefaultMetaURL is the Fabric meta service root.
const DefaultMetaURL = "https://meta.fabricmc.net/v2"

// Loader is the platform identifier recorded in manifests for servers
// provisioned by this package.
const Loader = "fabric"

// Build pins the three coordinates of one server runtime.
type Build struct {
	GameVersion      string
	LoaderVersion    string
	InstallerVersion string
}

// Filename returns the canonical jar name for this build.
func (b Build) Filename() string {
	return fmt.Sprintf("fabric-server-mc.%s-loader.%s-launcher.%s.jar",
		b.GameVersion, b.LoaderVersion, b.InstallerVersion)
}

// Client talks to the Fabric meta service.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	log       *log.Logger
}

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Logger     *log.Logger
}

// NewClient returns a meta-service client.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:   cfg.BaseURL,
		http:      cfg.HTTPClient,
		userAgent: cfg.UserAgent,
		log:       cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultMetaURL
	}
	if c.http == nil {
		c.http = httputil.NewClient()
	}
	if c.userAgent == "" {
		c.userAgent = buildinfo.UserAgent()
	}
	if c.log == nil {
		c.log = log.Default()
	}
	return c
}

type gameEntry struct {
	Version string `json:"version"`
	Stable  bool   `json:"stable"`
}

type loaderEntry struct {
	Loader struct {
		Version string `json:"version"`
		Stable  bool   `json:"stable"`
	} `json:"loader"`
}

type installerEntry struct {
	Version string `json:"version"`
	Stable  bool   `json:"stable"`
}

// Resolve fills in "latest" (or empty) coordinates. Latest game means the
// newest stable release; loader and installer prefer stable versions, with
// unstable ones admitted only when the game version itself is a snapshot.
func (c *Client) Resolve(ctx context.Context, game, loader, installer string) (Build, error) {
	var b Build
	var err error

	b.GameVersion = game
	if game == "" || game == "latest" {
		if b.GameVersion, err = c.latestGame(ctx); err != nil {
			return b, err
		}
	}

	b.LoaderVersion = loader
	if loader == "" || loader == "latest" {
		if b.LoaderVersion, err = c.latestLoader(ctx, b.GameVersion); err != nil {
			return b, err
		}
	}

	b.InstallerVersion = installer
	if installer == "" || installer == "latest" {
		if b.InstallerVersion, err = c.latestInstaller(ctx, b.GameVersion); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (c *Client) latestGame(ctx context.Context) (string, error) {
	var entries []gameEntry
	if err := c.get(ctx, "/versions/game/intermediary", &entries); err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Stable {
			return e.Version, nil
		}
	}
	return "", errors.New(errors.ErrCodeNotFound, "no stable game version listed")
}

func (c *Client) latestLoader(ctx context.Context, game string) (string, error) {
	var entries []loaderEntry
	if err := c.get(ctx, "/versions/loader/"+game, &entries); err != nil {
		return "", err
	}

	pick := newest()
	for _, e := range entries {
		if !e.Loader.Stable && stableGame(game) {
			continue
		}
		pick.consider(e.Loader.Version, e.Loader.Stable)
	}
	v, ok := pick.best()
	if !ok {
		return "", errors.New(errors.ErrCodeNotFound, "no compatible loader version for game %s", game)
	}
	return v, nil
}

func (c *Client) latestInstaller(ctx context.Context, game string) (string, error) {
	var entries []installerEntry
	if err := c.get(ctx, "/versions/installer", &entries); err != nil {
		return "", err
	}

	pick := newest()
	for _, e := range entries {
		if !e.Stable && stableGame(game) {
			continue
		}
		pick.consider(e.Version, e.Stable)
	}
	v, ok := pick.best()
	if !ok {
		return "", errors.New(errors.ErrCodeNotFound, "no compatible installer version")
	}
	return v, nil
}

// picker tracks the highest semver seen, preferring stable versions over
// unstable ones regardless of ordering.
type picker struct {
	stable, any   string
	stableV, anyV *semver.Version
}

func newest() *picker { return &picker{} }

func (p *picker) consider(version string, stable bool) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return
	}
	if p.anyV == nil || v.GreaterThan(p.anyV) {
		p.any, p.anyV = version, v
	}
	if stable && (p.stableV == nil || v.GreaterThan(p.stableV)) {
		p.stable, p.stableV = version, v
	}
}

// best returns the highest stable version, falling back to the highest
// version of any stability.
func (p *picker) best() (string, bool) {
	if p.stableV != nil {
		return p.stable, true
	}
	if p.anyV != nil {
		return p.any, true
	}
	return "", false
}

// stableGame distinguishes releases from snapshots. Release versions look
// like 1.20.2; snapshot names such as 23w18a carry no dots.
func stableGame(game string) bool {
	return strings.Count(game, ".") == 2
}

// Download streams the server jar for the build into destDir. When the jar
// is already present it is left untouched and downloaded is false.
func (c *Client) Download(ctx context.Context, b Build, destDir string) (path string, downloaded bool, err error) {
	path = filepath.Join(destDir, b.Filename())
	if _, err := os.Stat(path); err == nil {
		c.log.Info("server jar already present", "file", b.Filename())
		return path, false, nil
	}

	url := fmt.Sprintf("%s/versions/loader/%s/%s/%s/server/jar",
		c.baseURL, b.GameVersion, b.LoaderVersion, b.InstallerVersion)
	c.log.Info("downloading server jar",
		"game", b.GameVersion, "loader", b.LoaderVersion, "installer", b.InstallerVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeInvalidInput, err, "building request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	// No timeout here; the jar is an order of magnitude bigger than meta
	// responses.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeNetwork, err, "downloading server jar")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, errors.New(errors.ErrCodeStatus, "status %d downloading server jar", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(destDir, ".server-*")
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeInternal, err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", false, errors.Wrap(errors.ErrCodeNetwork, err, "streaming server jar")
	}
	if err := tmp.Close(); err != nil {
		return "", false, errors.Wrap(errors.ErrCodeInternal, err, "closing temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", false, errors.Wrap(errors.ErrCodeInternal, err, "writing %s", b.Filename())
	}
	return path, true, nil
}

// get fetches a meta endpoint and decodes the JSON response, retrying
// transient failures.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return httputil.Retry(ctx, 3, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "requesting %s", path))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return httputil.Retryable(errors.New(errors.ErrCodeStatus, "status %d from %s", resp.StatusCode, path))
		}
		if resp.StatusCode != http.StatusOK {
			return errors.New(errors.ErrCodeStatus, "status %d from %s", resp.StatusCode, path)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "decoding %s response", path)
		}
		return nil
	})
}
