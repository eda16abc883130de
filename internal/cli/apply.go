package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modman-dev/modman/pkg/artifact"
	"github.com/modman-dev/modman/pkg/manifest"
	"github.com/modman-dev/modman/pkg/resolve"
)

// printPlan shows the planned items and every advisory finding.
func printPlan(plan *resolve.Plan) {
	if len(plan.Items) > 0 {
		rows := make([][]string, 0, len(plan.Items))
		for _, item := range plan.Items {
			action := "install"
			if item.Previous != nil {
				action = fmt.Sprintf("update from %s", item.Previous.Name)
			}
			rows = append(rows, []string{
				item.Project.Name(),
				item.Version.Name,
				string(item.Version.Channel),
				action,
			})
		}
		printTable([]string{"Project", "Version", "Channel", "Action"}, rows)
	}

	for _, s := range plan.Skipped {
		printDetail("%s", s)
	}
	for _, f := range plan.Failures {
		printWarning("%s: %v", f.Ref, f.Err)
	}
	for _, conflict := range plan.Conflicts {
		printWarning("installing %s@%s, but installed %s pins %s",
			conflict.ProjectID, conflict.VersionID,
			conflict.ConflictingProjectID, conflict.ConflictingVersionID)
	}
	for _, inc := range plan.Incompatibilities {
		printWarning("%s declares itself incompatible with %s", inc.ProjectName, inc.IncompatibleWith)
	}
}

// applyPlan downloads every planned item into the mods directory and
// records the survivors in the manifest. Items that fail to download are
// reported and left out of the manifest; replaced files are deleted.
func (c *CLI) applyPlan(ctx context.Context, m *manifest.Manifest, plan *resolve.Plan) error {
	modsDir := m.ModsDir()
	if err := os.MkdirAll(modsDir, 0o755); err != nil {
		return err
	}

	store, err := c.newStore()
	if err != nil {
		return err
	}

	items := make([]artifact.Item, 0, len(plan.Items))
	bySlug := make(map[string]resolve.Item, len(plan.Items))
	for _, item := range plan.Items {
		items = append(items, artifact.Item{Name: item.Project.Slug, Version: item.Version})
		bySlug[item.Project.Slug] = item
	}

	result, err := store.FetchBatch(ctx, items, modsDir)
	if err != nil {
		return err
	}

	for _, placed := range result.Placed {
		item := bySlug[placed.Name]
		if prev := item.Previous; prev != nil {
			if f := prev.PrimaryFile(); f != nil && f.Filename != filepath.Base(placed.Path) {
				if err := os.Remove(filepath.Join(modsDir, f.Filename)); err != nil && !os.IsNotExist(err) {
					c.Logger.Warn("could not remove replaced file", "file", f.Filename, "err", err)
				}
			}
		}
		m.Set(manifest.Entry{Project: item.Project, Version: item.Version})
	}

	if err := m.Save(); err != nil {
		return err
	}

	for _, f := range result.Failures {
		printError("%s: %v", f.Name, f.Err)
	}
	if len(result.Placed) > 0 {
		printSuccess("Installed %d add-on(s) into %s", len(result.Placed), modsDir)
	}
	if len(result.Failures) > 0 && len(result.Placed) == 0 {
		return fmt.Errorf("all %d downloads failed", len(result.Failures))
	}
	return nil
}
