package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/pkg/resolve"
)

// uninstallCommand removes installed add-ons.
func (c *CLI) uninstallCommand() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:     "uninstall <add-on>...",
		Aliases: []string{"remove"},
		Short:   "Remove installed add-ons",
		Long: `Uninstall accepts slugs, project ids, titles, or jar filenames. With
--purge, dependencies that were only installed for the removed add-ons are
swept out too.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadManifest()
			if err != nil {
				return err
			}

			removals, notInstalled := resolve.PlanRemovals(m, args, purge)
			for _, name := range notInstalled {
				printWarning("%s is not installed", name)
			}
			if len(removals) == 0 {
				printInfo("Nothing to remove")
				return nil
			}

			modsDir := m.ModsDir()
			for _, rm := range removals {
				if v := rm.Entry.Version; v != nil {
					if f := v.PrimaryFile(); f != nil && f.Filename != "" {
						if err := os.Remove(filepath.Join(modsDir, f.Filename)); err != nil && !os.IsNotExist(err) {
							c.Logger.Warn("could not remove file", "file", f.Filename, "err", err)
						}
					}
				}
				m.Delete(rm.Slug)
				if rm.Cascade {
					printDetail("Removed %s (orphaned dependency)", rm.Slug)
				} else {
					printSuccess("Removed %s", rm.Slug)
				}
			}
			return m.Save()
		},
	}

	cmd.Flags().BoolVarP(&purge, "purge", "p", false, "also remove dependencies nothing else needs")
	return cmd
}
