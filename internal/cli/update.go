package cli

import (
	"github.com/spf13/cobra"

	"github.com/modman-dev/modman/pkg/resolve"
)

// updateCommand updates installed add-ons to newer compatible versions.
func (c *CLI) updateCommand() *cobra.Command {
	var gameVersion string
	var prereleases, optional, dry bool

	cmd := &cobra.Command{
		Use:     "update [add-on...]",
		Aliases: []string{"upgrade"},
		Short:   "Update installed add-ons",
		Long: `Update scans the catalog for newer versions of the named add-ons, or of
everything installed when no names are given. A release install only moves
to another release unless --pre-releases is set; a beta or alpha install
never drops below its current stability tier.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadManifest()
			if err != nil {
				return err
			}

			resolver, _ := c.newResolver()
			plan, err := resolver.PlanUpdates(cmd.Context(), args, m, resolve.UpdateOptions{
				GameVersion:      gameVersion,
				AllowPrereleases: prereleases,
				IncludeOptional:  optional,
			})
			if err != nil {
				return err
			}

			printPlan(plan)
			if plan.Empty() {
				printInfo("Everything is up to date")
				return nil
			}
			if dry {
				printInfo("Dry run, nothing downloaded")
				return nil
			}
			return c.applyPlan(cmd.Context(), m, plan)
		},
	}

	cmd.Flags().StringVar(&gameVersion, "game-version", "", "target a different game version than the manifest")
	cmd.Flags().BoolVar(&prereleases, "pre-releases", false, "allow updating releases to betas and alphas")
	cmd.Flags().BoolVar(&optional, "optional", false, "also install optional dependencies of updates")
	cmd.Flags().BoolVar(&dry, "dry", false, "plan only, download nothing")
	return cmd
}
