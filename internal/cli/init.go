package cli

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/pkg/catalog"
	"github.com/modman-dev/modman/pkg/manifest"
)

// initCommand creates a manifest in the current directory.
func (c *CLI) initCommand() *cobra.Command {
	var name string
	var auto bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a manifest for the server in the current directory",
		Long: `Init scans the current directory for a server jar to detect the platform
and game version, then writes a fresh manifest. With --auto (the default),
jars already present in ./mods are hashed and matched against the catalog
so existing add-ons are adopted into the manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(cwd)
			}

			if _, err := os.Stat(filepath.Join(cwd, manifest.Filename)); err == nil {
				return fmt.Errorf("%s already exists here", manifest.Filename)
			}

			jar, loader, gameVersion, err := manifest.ScanServerJar(cwd)
			if err != nil {
				printError("Could not detect a server jar in %s", cwd)
				printDetail("Download one first with `%s server download`", appName)
				return err
			}
			c.Logger.Info("detected server", "jar", filepath.Base(jar), "loader", loader, "version", gameVersion)

			m := manifest.New(name, manifest.Server{
				Loader:      loader,
				GameVersion: gameVersion,
				File:        jar,
			}, cwd)

			if auto {
				if err := c.adoptInstalled(cmd.Context(), m); err != nil {
					return err
				}
			}

			if err := m.Save(); err != nil {
				return err
			}
			printSuccess("Initialized %s for %s %s", manifest.Filename, loader, gameVersion)
			if n := len(m.Mods); n > 0 {
				printDetail("Adopted %d existing add-ons", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "project name (defaults to the directory name)")
	cmd.Flags().BoolVarP(&auto, "auto", "A", true, "detect add-ons already present in ./mods")
	return cmd
}

// adoptInstalled hashes every jar in the mods directory and matches it
// against the catalog. Files the catalog doesn't know are left alone.
func (c *CLI) adoptInstalled(ctx context.Context, m *manifest.Manifest) error {
	modsDir := m.ModsDir()
	entries, err := os.ReadDir(modsDir)
	if os.IsNotExist(err) {
		c.Logger.Debug("no mods directory, nothing to adopt")
		return nil
	}
	if err != nil {
		return err
	}

	client := c.newCatalog()

	var matched []*catalog.Version
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		sum, err := hashJar(filepath.Join(modsDir, e.Name()))
		if err != nil {
			c.Logger.Warn("skipping unreadable file", "file", e.Name(), "err", err)
			continue
		}
		v, err := client.VersionFromHash(ctx, sum, catalog.DefaultHashAlgorithm)
		if err != nil {
			c.Logger.Info("not a known add-on, skipping", "file", e.Name())
			continue
		}
		matched = append(matched, v)
	}
	if len(matched) == 0 {
		return nil
	}

	ids := make([]string, 0, len(matched))
	for _, v := range matched {
		ids = append(ids, v.ProjectID)
	}
	projects, err := client.Projects(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]*catalog.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	for _, v := range matched {
		p, ok := byID[v.ProjectID]
		if !ok {
			continue
		}
		c.Logger.Info("adopted", "project", p.Name(), "version", v.Name)
		m.Set(manifest.Entry{Project: p, Version: v})
	}
	return nil
}

func hashJar(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
