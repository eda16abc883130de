// Package cli implements the modman command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/pkg/artifact"
	"github.com/modman-dev/modman/pkg/buildinfo"
	"github.com/modman-dev/modman/pkg/catalog"
	"github.com/modman-dev/modman/pkg/errors"
	"github.com/modman-dev/modman/pkg/manifest"
	"github.com/modman-dev/modman/pkg/resolve"
)

// appName is the application name used for directories and display.
const appName = "modman"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *Config
}

// New creates a CLI instance. Each invocation carries a short run id on
// the logger for correlating debug output.
func New(w io.Writer, level log.Level) *CLI {
	logger := newLogger(w, level).With("run", uuid.NewString()[:8])
	cfg, err := LoadConfig()
	if err != nil {
		logger.Warn("ignoring config file", "err", err)
		cfg = DefaultConfig()
	}
	return &CLI{Logger: logger, Config: cfg}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Modman manages add-ons for game servers",
		Long:         `Modman installs, updates, and removes server add-ons from the Modrinth catalog, resolving dependencies and verifying every downloaded file.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.initCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.uninstallCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.viewCommand())
	root.AddCommand(c.packCommand())
	root.AddCommand(c.serverCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// newCatalog creates the catalog client with config overrides applied.
func (c *CLI) newCatalog() *catalog.Client {
	return catalog.New(catalog.Config{
		BaseURL: c.Config.APIURL,
		Logger:  c.Logger,
	})
}

// newResolver pairs a resolver with the client it plans against.
func (c *CLI) newResolver() (*resolve.Resolver, *catalog.Client) {
	client := c.newCatalog()
	return resolve.NewResolver(client, c.Logger), client
}

// newStore creates the artifact store under the user cache directory.
func (c *CLI) newStore() (*artifact.Store, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return artifact.NewStore(artifact.Config{
		CacheDir: dir,
		TTL:      time.Duration(c.Config.CacheTTLDays) * 24 * time.Hour,
		Workers:  c.Config.Workers,
		Logger:   c.Logger,
	})
}

// loadManifest finds and loads the manifest governing the CWD. Commands
// that need a manifest fail with a pointer to init when none exists.
func (c *CLI) loadManifest() (*manifest.Manifest, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.LoadFrom(cwd)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeManifestMissing) {
			return nil, errors.Wrap(errors.ErrCodeManifestMissing, err,
				"no %s found here or in any parent directory; run `%s init` first", manifest.Filename, appName)
		}
		return nil, err
	}
	return m, nil
}

// cacheDir returns the artifact cache directory using the XDG convention.
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
