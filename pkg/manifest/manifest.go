// Package manifest persists the local installation state: which add-ons
// are installed at which versions, and the server platform they target.
//
// The on-disk manifest is the single source of truth for "what is
// installed". It is loaded once per command, mutated in memory, and always
// rewritten in full with an atomic replace, so a crash mid-run can never
// leave a torn file.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modman-dev/modman/pkg/catalog"
	apperrors "github.com/modman-dev/modman/pkg/errors"
)

// Filename is the manifest file name, discovered by walking up from the
// working directory.
const Filename = ".modman.json"

// Server describes the target platform: the mod loader, the game version
// it runs, and the server binary on disk.
type Server struct {
	Loader      string `json:"type"`
	GameVersion string `json:"version"`
	File        string `json:"file,omitempty"`
}

// Meta is the manifest header.
type Meta struct {
	Name   string `json:"name"`
	Server Server `json:"server"`
	Root   string `json:"root"`
}

// Entry pairs an installed project snapshot with its resolved version
// snapshot, exactly as they were at install time.
type Entry struct {
	Project *catalog.Project `json:"project"`
	Version *catalog.Version `json:"version"`
}

// Manifest is the persisted installation state, keyed by project slug.
type Manifest struct {
	Meta Meta             `json:"modman"`
	Mods map[string]Entry `json:"mods"`

	path string
}

// New creates an empty manifest rooted at root. The manifest is not
// written until Save is called.
func New(name string, server Server, root string) *Manifest {
	return &Manifest{
		Meta: Meta{Name: name, Server: server, Root: root},
		Mods: make(map[string]Entry),
		path: filepath.Join(root, Filename),
	}
}

// Find locates the manifest file by walking up from dir. Returns a
// MANIFEST_MISSING error when no manifest exists in dir or any parent.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(abs, Filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", apperrors.New(apperrors.ErrCodeManifestMissing,
				"no %s found in %s or any parent; run `modman init` first", Filename, dir)
		}
		abs = parent
	}
}

// Load reads and migrates the manifest at path.
//
// Two migrations are applied for manifests written by older releases: an
// absent root is backfilled from the manifest's own directory, and an
// absent server binary path is recovered by scanning the root for a
// recognizable server jar. A manifest that cannot be migrated returns a
// MANIFEST_OUTDATED error instructing re-initialization.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.ErrCodeManifestMissing,
				"no %s found; run `modman init` first", Filename)
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeManifestOutdated, err,
			"%s is not valid; re-run `modman init`", path)
	}
	m.path = path
	if m.Mods == nil {
		m.Mods = make(map[string]Entry)
	}

	dirty := false
	if m.Meta.Root == "" {
		m.Meta.Root = filepath.Dir(path)
		dirty = true
	}
	if m.Meta.Server.File == "" {
		jar, loader, gameVersion, err := ScanServerJar(m.Meta.Root)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeManifestOutdated, err,
				"manifest predates server binary tracking and no server jar was found in %s; re-run `modman init`", m.Meta.Root)
		}
		m.Meta.Server.File = jar
		if m.Meta.Server.Loader == "" {
			m.Meta.Server.Loader = loader
		}
		if m.Meta.Server.GameVersion == "" {
			m.Meta.Server.GameVersion = gameVersion
		}
		dirty = true
	}
	if dirty {
		if err := m.Save(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// LoadFrom discovers and loads the manifest governing dir.
func LoadFrom(dir string) (*Manifest, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Path returns the manifest file location.
func (m *Manifest) Path() string { return m.path }

// Root returns the installation root directory.
func (m *Manifest) Root() string { return m.Meta.Root }

// ModsDir returns the directory artifacts are placed into.
func (m *Manifest) ModsDir() string { return filepath.Join(m.Meta.Root, "mods") }

// Installed reports whether a project is installed under slug.
func (m *Manifest) Installed(slug string) bool {
	_, ok := m.Mods[slug]
	return ok
}

// Get returns the entry stored under slug.
func (m *Manifest) Get(slug string) (Entry, bool) {
	e, ok := m.Mods[slug]
	return e, ok
}

// Set stores an entry under the project's slug.
func (m *Manifest) Set(entry Entry) {
	m.Mods[entry.Project.Slug] = entry
}

// Delete removes the entry stored under slug.
func (m *Manifest) Delete(slug string) {
	delete(m.Mods, slug)
}

// Find returns the entry whose slug or project id matches key.
func (m *Manifest) Find(key string) (Entry, bool) {
	if e, ok := m.Mods[key]; ok {
		return e, true
	}
	for _, e := range m.Mods {
		if e.Project != nil && e.Project.ID == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Save rewrites the manifest in full with an atomic replace. The file is
// never patched in place.
func (m *Manifest) Save() error {
	if m.path == "" {
		return apperrors.New(apperrors.ErrCodeInternal, "manifest has no path")
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, Filename+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}

// Incompatibilities lists installed entries whose version snapshot no
// longer matches the server descriptor, which can happen after the server
// is upgraded. The manifest is not auto-repaired; callers surface these as
// warnings.
func (m *Manifest) Incompatibilities() []string {
	var warnings []string
	for slug, e := range m.Mods {
		if e.Version == nil {
			continue
		}
		if m.Meta.Server.Loader != "" && !e.Version.SupportsLoader(m.Meta.Server.Loader) {
			warnings = append(warnings, fmt.Sprintf("%s does not support loader %s", slug, m.Meta.Server.Loader))
		}
		if m.Meta.Server.GameVersion != "" && !e.Version.SupportsGameVersion(m.Meta.Server.GameVersion) {
			warnings = append(warnings, fmt.Sprintf("%s does not support game version %s", slug, m.Meta.Server.GameVersion))
		}
	}
	return warnings
}
