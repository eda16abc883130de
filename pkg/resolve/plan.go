package resolve

import "github.com/modman-dev/modman/pkg/catalog"

// Request names one add-on to install: a project reference (slug, id, or
// free text) and an optional pinned version id. An empty VersionID means
// "latest compatible".
type Request struct {
	Ref       string
	VersionID string
}

// Item is one planned install or update.
type Item struct {
	Project *catalog.Project
	Version *catalog.Version

	// Previous is the installed version being replaced, nil for a fresh
	// install.
	Previous *catalog.Version
}

// Conflict records two co-dependents pinning different versions of the
// same project. Conflicts are advisory: the plan proceeds with the newly
// resolved selection.
type Conflict struct {
	ProjectID            string // the contested project
	ConflictingProjectID string // the installed project whose pin disagrees
	VersionID            string // version being installed
	ConflictingVersionID string // version pinned by the installed project
}

// Incompatibility records a planned item declaring itself incompatible with
// another project that is enqueued or already installed. Advisory only.
type Incompatibility struct {
	ProjectID        string
	ProjectName      string
	IncompatibleWith string
}

// Failure records an item or dependency that could not be resolved. Seed
// failures abort only their own request; dependency failures drop only
// that dependency.
type Failure struct {
	Ref string
	Err error
}

// Plan is the outcome of one resolution run: items in seed-then-discovery
// order, plus advisory findings. It exists only for the duration of one
// command.
type Plan struct {
	Items             []Item
	Skipped           []string
	Failures          []Failure
	Conflicts         []Conflict
	Incompatibilities []Incompatibility
}

// Empty reports whether the plan contains no actionable items.
func (p *Plan) Empty() bool { return len(p.Items) == 0 }
