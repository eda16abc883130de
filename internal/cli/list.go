package cli

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
)

// listCommand shows the installed add-ons.
func (c *CLI) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed add-ons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadManifest()
			if err != nil {
				return err
			}
			if len(m.Mods) == 0 {
				printInfo("No add-ons installed")
				return nil
			}

			modsDir := m.ModsDir()
			rows := make([][]string, 0, len(m.Mods))
			for _, slug := range slices.Sorted(maps.Keys(m.Mods)) {
				entry := m.Mods[slug]
				version, channel, file := "?", "?", ""
				if v := entry.Version; v != nil {
					version = v.Name
					channel = string(v.Channel)
					if f := v.PrimaryFile(); f != nil {
						file = f.Filename
						// Flag files that went missing from disk.
						if _, err := os.Stat(filepath.Join(modsDir, f.Filename)); err != nil {
							file = StyleWarning.Render(f.Filename + " (missing)")
						}
					}
				}
				title := slug
				if entry.Project != nil {
					title = entry.Project.Name()
				}
				rows = append(rows, []string{slug, title, version, channel, file})
			}
			printTable([]string{"Slug", "Name", "Version", "Channel", "File"}, rows)

			for _, warning := range m.Incompatibilities() {
				printWarning("%s", warning)
			}
			return nil
		},
	}
}
