package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// viewCommand shows catalog details for one project.
func (c *CLI) viewCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "view <add-on>",
		Aliases: []string{"info"},
		Short:   "Show catalog details for an add-on",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.newCatalog().Project(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printKeyValue("Name", StyleHighlight.Render(p.Name()))
			printKeyValue("Slug", p.Slug)
			printKeyValue("ID", p.ID)
			printKeyValue("Description", p.Description)
			printKeyValue("Client side", p.ClientSide)
			printKeyValue("Server side", p.ServerSide)
			printKeyValue("Downloads", strconv.Itoa(p.Downloads))
			printKeyValue("Followers", strconv.Itoa(p.Followers))
			if p.License.ID != "" {
				printKeyValue("License", p.License.ID)
			}
			if len(p.Categories) > 0 {
				printKeyValue("Categories", strings.Join(p.Categories, ", "))
			}
			if len(p.Loaders) > 0 {
				printKeyValue("Loaders", strings.Join(p.Loaders, ", "))
			}
			if n := len(p.GameVersions); n > 0 {
				span := p.GameVersions[0]
				if n > 1 {
					span += " to " + p.GameVersions[n-1]
				}
				printKeyValue("Game versions", span)
			}
			printKeyValue("Versions", strconv.Itoa(len(p.Versions)))
			if p.SourceURL != "" {
				printKeyValue("Source", p.SourceURL)
			}
			if p.IssuesURL != "" {
				printKeyValue("Issues", p.IssuesURL)
			}
			if p.WikiURL != "" {
				printKeyValue("Wiki", p.WikiURL)
			}
			if p.DiscordURL != "" {
				printKeyValue("Discord", p.DiscordURL)
			}

			if m, err := c.loadManifest(); err == nil {
				if entry, ok := m.Find(p.ID); ok && entry.Version != nil {
					printKeyValue("Installed", entry.Version.Name)
				}
			}
			return nil
		},
	}
}
