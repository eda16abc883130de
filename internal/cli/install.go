package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/pkg/resolve"
)

// installCommand installs add-ons and their dependencies.
func (c *CLI) installCommand() *cobra.Command {
	var reinstall, optional, dry bool

	cmd := &cobra.Command{
		Use:     "install <add-on>[@version-id]...",
		Aliases: []string{"add"},
		Short:   "Install add-ons and their dependencies",
		Long: `Install resolves each reference (slug, id, or free text) against the
catalog, expands required dependencies, downloads the files into ./mods,
and records everything in the manifest. Append @<version-id> to pin an
exact version instead of the latest compatible release.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadManifest()
			if err != nil {
				return err
			}

			requests := make([]resolve.Request, 0, len(args))
			for _, arg := range args {
				ref, versionID, _ := strings.Cut(arg, "@")
				requests = append(requests, resolve.Request{Ref: ref, VersionID: versionID})
			}

			resolver, client := c.newResolver()
			plan, err := resolver.Resolve(cmd.Context(), requests, m, resolve.Options{
				IncludeOptional: optional,
				Reinstall:       reinstall,
				Picker:          newPicker(client, os.Stdin, os.Stdout, m.Meta.Server.Loader),
			})
			if err != nil {
				return err
			}

			printPlan(plan)
			if plan.Empty() {
				printInfo("Nothing to install")
				return nil
			}
			if dry {
				printInfo("Dry run, nothing downloaded")
				return nil
			}
			return c.applyPlan(cmd.Context(), m, plan)
		},
	}

	cmd.Flags().BoolVar(&reinstall, "reinstall", false, "re-plan add-ons that are already installed")
	cmd.Flags().BoolVar(&optional, "optional", false, "also install optional dependencies")
	cmd.Flags().BoolVar(&dry, "dry", false, "plan only, download nothing")
	return cmd
}
