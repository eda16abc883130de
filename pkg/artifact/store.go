// Package artifact downloads add-on files into a local cache and places
// verified copies into a server's mods directory.
package artifact

import (
	"context"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modman-dev/modman/pkg/buildinfo"
	"github.com/modman-dev/modman/pkg/catalog"
	"github.com/modman-dev/modman/pkg/errors"
	"github.com/modman-dev/modman/pkg/httputil"
)

// DefaultTTL is how long a cached artifact is trusted before it is
// re-downloaded. Published files are immutable in practice, so the window
// is generous.
const DefaultTTL = 14 * 24 * time.Hour

// DefaultWorkers bounds concurrent downloads in a batch fetch.
const DefaultWorkers = 4

// Store is a filename-keyed artifact cache. Every file that leaves the
// store is re-hashed against its declared checksum first, whether it came
// from the network or from a cached copy.
type Store struct {
	cacheDir  string
	ttl       time.Duration
	workers   int
	client    *http.Client
	userAgent string
	log       *log.Logger
}

// Config configures a Store. Zero values fall back to defaults.
type Config struct {
	CacheDir string
	TTL      time.Duration
	Workers  int

	// HTTPClient overrides the download client. The default has no
	// request timeout; large jar downloads outlive the API client's 30s.
	HTTPClient *http.Client

	UserAgent string
	Logger    *log.Logger
}

// NewStore creates the cache directory if needed and returns a Store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.CacheDir == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cache directory is required")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "creating cache directory")
	}

	s := &Store{
		cacheDir:  cfg.CacheDir,
		ttl:       cfg.TTL,
		workers:   cfg.Workers,
		client:    cfg.HTTPClient,
		userAgent: cfg.UserAgent,
		log:       cfg.Logger,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.userAgent == "" {
		s.userAgent = buildinfo.UserAgent()
	}
	if s.log == nil {
		s.log = log.Default()
	}
	return s, nil
}

// CacheDir returns the cache directory path.
func (s *Store) CacheDir() string {
	return s.cacheDir
}

// Clear deletes every cached artifact. The directory itself is kept.
func (s *Store) Clear() (removed int, err error) {
	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "reading cache directory")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.cacheDir, e.Name())); err != nil {
			return removed, errors.Wrap(errors.ErrCodeInternal, err, "removing %s", e.Name())
		}
		removed++
	}
	return removed, nil
}

// FetchAndPlace ensures the version's primary file is cached, verified,
// and copied into destDir. It returns the placed path and whether the
// cached copy was reused. A checksum mismatch deletes the cached copy and
// nothing is placed.
func (s *Store) FetchAndPlace(ctx context.Context, v *catalog.Version, destDir string) (string, bool, error) {
	f := v.PrimaryFile()
	if f == nil || f.URL == "" {
		return "", false, errors.New(errors.ErrCodeInvalidInput, "version %s has no downloadable file", v.ID)
	}

	cached := filepath.Join(s.cacheDir, f.Filename)
	fromCache := s.fresh(cached)
	if !fromCache {
		if err := s.download(ctx, f, cached); err != nil {
			return "", false, err
		}
	}

	if err := s.verify(cached, f); err != nil {
		// A corrupt cached copy must not survive to poison the next run.
		_ = os.Remove(cached)
		return "", false, err
	}

	dest := filepath.Join(destDir, f.Filename)
	if err := copyFile(cached, dest); err != nil {
		return "", false, errors.Wrap(errors.ErrCodeInternal, err, "placing %s", f.Filename)
	}
	return dest, fromCache, nil
}

// fresh reports whether the cached path exists and is younger than the TTL.
func (s *Store) fresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < s.ttl
}

// download streams the file URL into the cache path via a temp file.
func (s *Store) download(ctx context.Context, f *catalog.VersionFile, cached string) error {
	var resp *http.Response
	err := httputil.Retry(ctx, 3, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", s.userAgent)

		resp, err = s.client.Do(req)
		if err != nil {
			return httputil.Retryable(err)
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return httputil.Retryable(fmt.Errorf("status %d downloading %s", resp.StatusCode, f.Filename))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "downloading %s", f.Filename)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeStatus, "status %d downloading %s", resp.StatusCode, f.Filename)
	}

	tmp, err := os.CreateTemp(s.cacheDir, ".download-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeNetwork, err, "streaming %s", f.Filename)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "closing temp file")
	}
	if err := os.Rename(tmp.Name(), cached); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "caching %s", f.Filename)
	}
	s.log.Debug("downloaded artifact", "file", f.Filename, "bytes", f.Size)
	return nil
}

// verify re-hashes the cached file against the declared checksum. Files
// without any known checksum pass with a debug note.
func (s *Store) verify(path string, f *catalog.VersionFile) error {
	algo, want := pickHash(f.Hashes)
	if algo == "" {
		s.log.Debug("no checksum declared", "file", f.Filename)
		return nil
	}

	got, err := hashFile(path, algo)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "hashing %s", f.Filename)
	}
	if !strings.EqualFold(got, want) {
		return errors.New(errors.ErrCodeIntegrity,
			"%s checksum mismatch for %s: got %s, want %s", algo, f.Filename, got, want)
	}
	return nil
}

// pickHash selects the strongest declared checksum.
func pickHash(hashes map[string]string) (algo, want string) {
	for _, algo := range []string{catalog.DefaultHashAlgorithm, "sha1"} {
		if want, ok := hashes[algo]; ok && want != "" {
			return algo, want
		}
	}
	return "", ""
}

func hashFile(path, algo string) (string, error) {
	var h hash.Hash
	switch algo {
	case "sha512":
		h = sha512.New()
	case "sha1":
		h = sha1.New()
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", algo)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile writes src to dst atomically within dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".place-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
