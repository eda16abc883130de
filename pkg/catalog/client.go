// Package catalog provides typed access to the remote add-on catalog API.
//
// The client owns the process-wide rate-limit state: limit headers are read
// after every response and enforced before the next request. A 429 response
// is re-issued once; connection failures and 5xx responses are retried up
// to five attempts before surfacing a hard failure. All other non-2xx
// statuses are returned as a [StatusError] so callers can distinguish
// "not found" from other failures.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modman-dev/modman/pkg/buildinfo"
	apperrors "github.com/modman-dev/modman/pkg/errors"
	"github.com/modman-dev/modman/pkg/httputil"
)

// DefaultBaseURL is the production catalog endpoint.
const DefaultBaseURL = "https://api.modrinth.com/v2"

// connectAttempts bounds retries for connection failures and 5xx responses.
const connectAttempts = 5

// ErrNotFound is returned when a project or version doesn't exist in the
// catalog. A 404 [StatusError] unwraps to this sentinel.
var ErrNotFound = errors.New("not found in catalog")

// StatusError is an unexpected HTTP status from the catalog, with the
// response body preserved for the caller.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog returned status %d: %s", e.Code, e.Body)
}

// Unwrap maps 404 responses onto ErrNotFound for errors.Is checks.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Config holds optional client settings. Zero values select defaults.
type Config struct {
	BaseURL    string
	UserAgent  string
	Logger     *log.Logger
	HTTPClient *http.Client
}

// Client is a typed catalog API client. It caches project lookups for the
// duration of the run; nothing is persisted across runs.
type Client struct {
	http *http.Client
	base string
	ua   string
	log  *log.Logger
	gate *rateGate

	mu       sync.Mutex
	projects map[string]*Project
}

// New creates a catalog client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = buildinfo.UserAgent()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httputil.NewClient()
	}
	return &Client{
		http:     cfg.HTTPClient,
		base:     cfg.BaseURL,
		ua:       cfg.UserAgent,
		log:      cfg.Logger,
		gate:     newRateGate(),
		projects: make(map[string]*Project),
	}
}

// get performs a rate-limit-aware GET against the catalog, decoding the
// JSON response into v when v is non-nil.
func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	retried429 := false
	delay := 500 * time.Millisecond

	for attempt := 1; ; attempt++ {
		if remaining, until := c.gate.pending(); remaining == 0 && until > 0 {
			c.log.Warn("rate limit reached, waiting for reset", "wait", until.Round(time.Second))
		}
		if err := c.gate.wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.ua)
		req.Header.Set("Accept", "application/json")

		c.log.Debug("GET", "url", u, "attempt", attempt)
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt >= connectAttempts {
				return apperrors.Wrap(apperrors.ErrCodeNetwork, err, "GET %s", path)
			}
			c.log.Warn("connection error, retrying", "path", path, "err", err)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
			continue
		}

		c.gate.update(resp.Header)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			if retried429 {
				return apperrors.New(apperrors.ErrCodeRateLimited, "GET %s: rate limited twice", path)
			}
			retried429 = true
			c.log.Warn("request was rate limited, re-issuing", "path", path)
			continue

		case resp.StatusCode >= 500:
			drain(resp)
			if attempt >= connectAttempts {
				return apperrors.New(apperrors.ErrCodeNetwork, "GET %s: status %d after %d attempts", path, resp.StatusCode, attempt)
			}
			c.log.Warn("server error, retrying", "path", path, "status", resp.StatusCode)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
			continue

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			defer resp.Body.Close()
			if v == nil {
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(v)

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: string(body)}
		}
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Project fetches a single project by id or slug. Results are cached for
// the lifetime of the client under both keys.
func (c *Client) Project(ctx context.Context, idOrSlug string) (*Project, error) {
	c.mu.Lock()
	if p, ok := c.projects[idOrSlug]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	var p Project
	if err := c.get(ctx, "/project/"+url.PathEscape(idOrSlug), nil, &p); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.projects[p.ID] = &p
	if p.Slug != "" {
		c.projects[p.Slug] = &p
	}
	c.mu.Unlock()
	return &p, nil
}

// Projects bulk-fetches projects by id.
func (c *Client) Projects(ctx context.Context, ids []string) ([]*Project, error) {
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	params := url.Values{"ids": {string(encoded)}}

	var projects []*Project
	if err := c.get(ctx, "/projects", params, &projects); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, p := range projects {
		c.projects[p.ID] = p
		if p.Slug != "" {
			c.projects[p.Slug] = p
		}
	}
	c.mu.Unlock()
	return projects, nil
}

// CheckSlug resolves a slug or id to the project's canonical id.
func (c *Client) CheckSlug(ctx context.Context, slugOrID string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, "/project/"+url.PathEscape(slugOrID)+"/check", nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// VersionFilter narrows a version listing. Empty fields skip that filter.
type VersionFilter struct {
	Loader      string
	GameVersion string
}

// Versions lists a project's versions newest-first, optionally filtered by
// loader and game version. The filters are passed to the catalog and
// re-applied locally, since the listing endpoint treats them as advisory.
func (c *Client) Versions(ctx context.Context, projectID string, f VersionFilter) ([]*Version, error) {
	params := url.Values{}
	if f.Loader != "" {
		encoded, _ := json.Marshal([]string{f.Loader})
		params.Set("loaders", string(encoded))
	}
	if f.GameVersion != "" {
		encoded, _ := json.Marshal([]string{f.GameVersion})
		params.Set("game_versions", string(encoded))
	}

	var versions []*Version
	if err := c.get(ctx, "/project/"+url.PathEscape(projectID)+"/version", params, &versions); err != nil {
		return nil, err
	}

	if f.GameVersion != "" {
		kept := versions[:0:0]
		for _, v := range versions {
			if v.SupportsGameVersion(f.GameVersion) {
				kept = append(kept, v)
			} else {
				c.log.Debug("dropped version, game version unsupported", "version", v.VersionNumber, "supported", v.GameVersions)
			}
		}
		versions = kept
	}
	if f.Loader != "" {
		kept := versions[:0:0]
		for _, v := range versions {
			if v.SupportsLoader(f.Loader) {
				kept = append(kept, v)
			} else {
				c.log.Debug("dropped version, loader unsupported", "version", v.VersionNumber, "supported", v.Loaders)
			}
		}
		versions = kept
	}

	sortByDateDesc(versions)
	return versions, nil
}

// Version fetches a version by exact id.
func (c *Client) Version(ctx context.Context, projectID, versionID string) (*Version, error) {
	var v Version
	path := "/project/" + url.PathEscape(projectID) + "/version/" + url.PathEscape(versionID)
	if err := c.get(ctx, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// VersionsBulk fetches multiple versions by id in one call.
func (c *Client) VersionsBulk(ctx context.Context, ids []string) ([]*Version, error) {
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	params := url.Values{"ids": {string(encoded)}}

	var versions []*Version
	if err := c.get(ctx, "/versions", params, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// DefaultHashAlgorithm is used for reverse version lookups when the caller
// doesn't specify one.
const DefaultHashAlgorithm = "sha512"

// VersionFromHash reverse-looks-up the version owning a file with the given
// hash. Supported algorithms are sha1 and sha512.
func (c *Client) VersionFromHash(ctx context.Context, hash, algorithm string) (*Version, error) {
	if algorithm == "" {
		algorithm = DefaultHashAlgorithm
	}
	params := url.Values{"algorithm": {algorithm}}

	var v Version
	if err := c.get(ctx, "/version_file/"+url.PathEscape(hash), params, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func sortByDateDesc(versions []*Version) {
	slices.SortStableFunc(versions, func(a, b *Version) int {
		return b.DatePublished.Compare(a.DatePublished)
	})
}
