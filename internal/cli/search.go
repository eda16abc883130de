package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/pkg/catalog"
)

// searchCommand queries the catalog.
func (c *CLI) searchCommand() *cobra.Command {
	var limit, offset int
	var index string
	var gameVersions, loaders, categories []string
	var serverSide, clientSide []string
	var openSource bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog for add-ons",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := catalog.SearchQuery{
				Query:        args[0],
				Index:        index,
				Limit:        limit,
				Offset:       offset,
				GameVersions: gameVersions,
				Loaders:      loaders,
				Categories:   categories,
				ServerSide:   serverSide,
				ClientSide:   clientSide,
			}
			if cmd.Flags().Changed("open-source") {
				query.OpenSource = &openSource
			}

			// The manifest narrows results to the server's platform and
			// marks what's already installed. Searching without one works.
			installed := map[string]bool{}
			if m, err := c.loadManifest(); err == nil {
				if len(query.Loaders) == 0 && m.Meta.Server.Loader != "" {
					query.Loaders = []string{m.Meta.Server.Loader}
				}
				if len(query.GameVersions) == 0 && m.Meta.Server.GameVersion != "" {
					query.GameVersions = []string{m.Meta.Server.GameVersion}
				}
				idx := m.Index()
				for alias := range idx {
					installed[alias] = true
				}
			}

			result, err := c.newCatalog().Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(result.Hits) == 0 {
				printInfo("No results for %q", args[0])
				return nil
			}

			rows := make([][]string, 0, len(result.Hits))
			for i, hit := range result.Hits {
				mark := ""
				if installed[hit.Slug] || installed[hit.ProjectID] {
					mark = styleIconSuccess.Render(iconSuccess)
				}
				rows = append(rows, []string{
					strconv.Itoa(result.Offset + i + 1),
					hit.Slug,
					truncate(hit.Title, 30),
					strconv.Itoa(hit.Downloads),
					hit.ServerSide,
					truncate(hit.Description, 50),
					mark,
				})
			}
			printTable([]string{"#", "Slug", "Name", "Downloads", "Server", "Description", ""}, rows)
			printDetail("Showing %d-%d of %d results",
				result.Offset+1, result.Offset+len(result.Hits), result.TotalHits)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "L", 20, "results per page")
	cmd.Flags().IntVarP(&offset, "offset", "O", 0, "pagination offset")
	cmd.Flags().StringVarP(&index, "index", "I", "relevance", "sort index (relevance, downloads, follows, newest, updated)")
	cmd.Flags().StringSliceVar(&gameVersions, "game-version", nil, "filter by game version")
	cmd.Flags().StringSliceVar(&loaders, "loader", nil, "filter by loader")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "filter by category")
	cmd.Flags().StringSliceVar(&serverSide, "server-side", nil, "filter by server_side support (required, optional, unsupported)")
	cmd.Flags().StringSliceVar(&clientSide, "client-side", nil, "filter by client_side support")
	cmd.Flags().BoolVar(&openSource, "open-source", false, "only open-source projects")
	return cmd
}
