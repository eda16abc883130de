package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/pkg/errors"
	"github.com/modman-dev/modman/pkg/manifest"
	"github.com/modman-dev/modman/pkg/serverjar"
)

// serverCommand manages the server runtime itself.
func (c *CLI) serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage the game server runtime",
	}
	cmd.AddCommand(c.serverDownloadCommand())
	return cmd
}

// serverDownloadCommand downloads a Fabric server jar into the CWD.
func (c *CLI) serverDownloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "download [game-version] [loader-version] [installer-version]",
		Short: "Download a Fabric server jar",
		Long: `Download fetches a Fabric server jar into the current directory. Omitted
or "latest" coordinates resolve to the newest stable versions. When a
manifest exists its server descriptor is updated to the new jar; run
` + "`" + appName + ` update` + "`" + ` afterwards to move the add-ons along.`,
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord := func(i int) string {
				if i < len(args) {
					return args[i]
				}
				return "latest"
			}

			client := serverjar.NewClient(serverjar.Config{Logger: c.Logger})
			build, err := client.Resolve(cmd.Context(), coord(0), coord(1), coord(2))
			if err != nil {
				return err
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path, downloaded, err := client.Download(cmd.Context(), build, cwd)
			if err != nil {
				return err
			}
			if downloaded {
				printSuccess("Downloaded %s", path)
			} else {
				printInfo("Server jar already present at %s", path)
			}

			m, err := manifest.LoadFrom(cwd)
			if err != nil {
				if errors.HasCode(err, errors.ErrCodeManifestMissing) {
					printDetail("No manifest here; run `%s init` to start managing add-ons", appName)
					return nil
				}
				return err
			}
			m.Meta.Server = manifest.Server{
				Loader:      serverjar.Loader,
				GameVersion: build.GameVersion,
				File:        path,
			}
			if err := m.Save(); err != nil {
				return err
			}
			printSuccess("Updated manifest server to %s %s", serverjar.Loader, build.GameVersion)
			printDetail("Run `%s update` to move installed add-ons to the new game version", appName)
			return nil
		},
	}
}
