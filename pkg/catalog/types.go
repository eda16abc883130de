package catalog

import "time"

// Channel is the release stability tier of a published version.
// Tiers are totally ordered: release > beta > alpha.
type Channel string

const (
	ChannelRelease Channel = "release"
	ChannelBeta    Channel = "beta"
	ChannelAlpha   Channel = "alpha"
)

// Rank maps a channel to its position in the stability order.
// Unknown channels rank below alpha.
func (c Channel) Rank() int {
	switch c {
	case ChannelRelease:
		return 2
	case ChannelBeta:
		return 1
	case ChannelAlpha:
		return 0
	}
	return -1
}

// AtLeast reports whether c is the same or a more stable tier than other.
func (c Channel) AtLeast(other Channel) bool {
	return c.Rank() >= other.Rank()
}

// Dependency kinds declared by a version on another project.
const (
	DependencyRequired     = "required"
	DependencyOptional     = "optional"
	DependencyIncompatible = "incompatible"
	DependencyEmbedded     = "embedded"
)

// Project is a logical add-on in the catalog. Identity is ID; Slug is a
// mutable human-readable alias that the catalog resolves back to ID.
type Project struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Categories   []string `json:"categories"`
	ClientSide   string   `json:"client_side"`
	ServerSide   string   `json:"server_side"`
	Status       string   `json:"status"`
	Loaders      []string `json:"loaders"`
	GameVersions []string `json:"game_versions"`
	Versions     []string `json:"versions"`
	Downloads    int      `json:"downloads"`
	Followers    int      `json:"followers"`
	License      License  `json:"license"`
	IssuesURL    string   `json:"issues_url"`
	SourceURL    string   `json:"source_url"`
	WikiURL      string   `json:"wiki_url"`
	DiscordURL   string   `json:"discord_url"`
}

// License identifies a project's license.
type License struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Name returns the best human-readable name for the project.
func (p *Project) Name() string {
	if p.Title != "" {
		return p.Title
	}
	if p.Slug != "" {
		return p.Slug
	}
	return p.ID
}

// Version is one immutable published release of a project.
type Version struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	Name          string        `json:"name"`
	VersionNumber string        `json:"version_number"`
	Changelog     string        `json:"changelog"`
	Channel       Channel       `json:"version_type"`
	DatePublished time.Time     `json:"date_published"`
	Loaders       []string      `json:"loaders"`
	GameVersions  []string      `json:"game_versions"`
	Dependencies  []Dependency  `json:"dependencies"`
	Files         []VersionFile `json:"files"`
	Downloads     int           `json:"downloads"`
}

// SupportsLoader reports whether the version declares support for loader.
func (v *Version) SupportsLoader(loader string) bool {
	for _, l := range v.Loaders {
		if l == loader {
			return true
		}
	}
	return false
}

// SupportsGameVersion reports whether the version declares support for gv.
func (v *Version) SupportsGameVersion(gv string) bool {
	for _, g := range v.GameVersions {
		if g == gv {
			return true
		}
	}
	return false
}

// PrimaryFile returns the version's primary downloadable file: the file
// flagged primary, or the first file when none is flagged. Returns nil for
// a version with no files.
func (v *Version) PrimaryFile() *VersionFile {
	for i := range v.Files {
		if v.Files[i].Primary {
			return &v.Files[i]
		}
	}
	if len(v.Files) > 0 {
		return &v.Files[0]
	}
	return nil
}

// Dependency is a declaration by a version on another project. An empty
// VersionID means any compatible version of the target project.
type Dependency struct {
	VersionID string `json:"version_id"`
	ProjectID string `json:"project_id"`
	FileName  string `json:"file_name"`
	Kind      string `json:"dependency_type"`
}

// VersionFile is one downloadable artifact of a version.
type VersionFile struct {
	Hashes   map[string]string `json:"hashes"`
	URL      string            `json:"url"`
	Filename string            `json:"filename"`
	Primary  bool              `json:"primary"`
	Size     int64             `json:"size"`
}

// SearchHit is one search result. Search returns a projection of the
// project document, not the full record.
type SearchHit struct {
	ProjectID   string   `json:"project_id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	ClientSide  string   `json:"client_side"`
	ServerSide  string   `json:"server_side"`
	Downloads   int      `json:"downloads"`
	Follows     int      `json:"follows"`
}
