package cli

import (
	"archive/zip"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/pkg/manifest"
)

// packCommand bundles installed add-ons into a zip for players.
func (c *CLI) packCommand() *cobra.Command {
	var serverSide bool

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Create a zip of add-ons to hand to players",
		Long: `Pack collects the installed add-on files that players need on their
clients into <name>.zip next to the manifest. Server-only add-ons are left
out unless --server-side is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadManifest()
			if err != nil {
				return err
			}
			modsDir := m.ModsDir()
			if _, err := os.Stat(modsDir); err != nil {
				return fmt.Errorf("no mods directory at %s", modsDir)
			}

			out := filepath.Join(m.Root(), m.Meta.Name+".zip")
			added, err := writePack(m, modsDir, out, serverSide)
			if err != nil {
				return err
			}
			if added == 0 {
				_ = os.Remove(out)
				printInfo("No client-compatible add-ons to pack")
				return nil
			}
			printSuccess("Packed %d add-on(s) into %s", added, out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&serverSide, "server-side", "S", false, "include server-only add-ons too")
	return cmd
}

// writePack writes the zip and returns how many files went in.
func writePack(m *manifest.Manifest, modsDir, out string, serverSide bool) (int, error) {
	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	added := 0
	for _, slug := range slices.Sorted(maps.Keys(m.Mods)) {
		entry := m.Mods[slug]
		if !serverSide && entry.Project != nil && entry.Project.ClientSide == "unsupported" {
			continue
		}
		if entry.Version == nil {
			continue
		}
		pf := entry.Version.PrimaryFile()
		if pf == nil || pf.Filename == "" {
			continue
		}
		if err := addToZip(zw, filepath.Join(modsDir, pf.Filename), pf.Filename); err != nil {
			return added, fmt.Errorf("packing %s: %w", slug, err)
		}
		added++
	}
	if err := zw.Close(); err != nil {
		return added, err
	}
	return added, f.Close()
}

func addToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
