package resolve

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/modman-dev/modman/pkg/catalog"
	"github.com/modman-dev/modman/pkg/manifest"
)

// fakeCatalog serves projects and versions from memory, mirroring the real
// client's newest-first ordering and filter behavior.
type fakeCatalog struct {
	projects map[string]*catalog.Project   // keyed by id and slug
	versions map[string][]*catalog.Version // keyed by project id
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		projects: make(map[string]*catalog.Project),
		versions: make(map[string][]*catalog.Version),
	}
}

func (f *fakeCatalog) addProject(p *catalog.Project, versions ...*catalog.Version) {
	f.projects[p.ID] = p
	if p.Slug != "" {
		f.projects[p.Slug] = p
	}
	for _, v := range versions {
		v.ProjectID = p.ID
		f.versions[p.ID] = append(f.versions[p.ID], v)
		p.Versions = append(p.Versions, v.ID)
	}
}

func (f *fakeCatalog) Project(_ context.Context, idOrSlug string) (*catalog.Project, error) {
	if p, ok := f.projects[idOrSlug]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", catalog.ErrNotFound, idOrSlug)
}

func (f *fakeCatalog) Projects(_ context.Context, ids []string) ([]*catalog.Project, error) {
	var out []*catalog.Project
	for _, id := range ids {
		if p, ok := f.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Versions(_ context.Context, projectID string, filter catalog.VersionFilter) ([]*catalog.Version, error) {
	var out []*catalog.Version
	for _, v := range f.versions[projectID] {
		if filter.Loader != "" && !v.SupportsLoader(filter.Loader) {
			continue
		}
		if filter.GameVersion != "" && !v.SupportsGameVersion(filter.GameVersion) {
			continue
		}
		out = append(out, v)
	}
	// Newest first, like the real client.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].DatePublished.After(out[j-1].DatePublished); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeCatalog) Version(_ context.Context, projectID, versionID string) (*catalog.Version, error) {
	for _, v := range f.versions[projectID] {
		if v.ID == versionID {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: version %s", catalog.ErrNotFound, versionID)
}

func (f *fakeCatalog) VersionsBulk(_ context.Context, ids []string) ([]*catalog.Version, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*catalog.Version
	for _, versions := range f.versions {
		for _, v := range versions {
			if want[v.ID] {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func testManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	return manifest.New("test", manifest.Server{
		Loader:      "fabric",
		GameVersion: "1.20.2",
		File:        "server.jar",
	}, t.TempDir())
}

func testResolver(f *fakeCatalog) *Resolver {
	return NewResolver(f, log.New(io.Discard))
}

func fabricVer(id string, channel catalog.Channel, published int64, deps ...catalog.Dependency) *catalog.Version {
	v := ver(id, channel, published, []string{"fabric"}, []string{"1.20.2"})
	v.Dependencies = deps
	return v
}

func TestResolve_EndToEnd(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "alpha", Title: "Alpha"},
		fabricVer("a-v2", catalog.ChannelRelease, 100, catalog.Dependency{
			ProjectID: "pb", Kind: catalog.DependencyRequired,
		}))
	fc.addProject(&catalog.Project{ID: "pb", Slug: "beta", Title: "Beta"},
		fabricVer("b-t1", catalog.ChannelRelease, 1),
		fabricVer("b-t2", catalog.ChannelBeta, 2))

	plan, err := testResolver(fc).Resolve(context.Background(),
		[]Request{{Ref: "alpha"}}, testManifest(t), Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(plan.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(plan.Items))
	}
	if plan.Items[0].Version.ID != "a-v2" {
		t.Errorf("seed item should come first, got %s", plan.Items[0].Version.ID)
	}
	if plan.Items[1].Version.ID != "b-t1" {
		t.Errorf("expected the release dependency version, got %s", plan.Items[1].Version.ID)
	}
	if len(plan.Conflicts) != 0 || len(plan.Incompatibilities) != 0 || len(plan.Failures) != 0 {
		t.Errorf("expected a clean plan, got %+v", plan)
	}
}

func TestResolve_CycleTerminates(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "a"},
		fabricVer("av", catalog.ChannelRelease, 10, catalog.Dependency{
			ProjectID: "pb", Kind: catalog.DependencyRequired,
		}))
	fc.addProject(&catalog.Project{ID: "pb", Slug: "b"},
		fabricVer("bv", catalog.ChannelRelease, 10, catalog.Dependency{
			ProjectID: "pa", Kind: catalog.DependencyRequired,
		}))

	plan, err := testResolver(fc).Resolve(context.Background(),
		[]Request{{Ref: "a"}}, testManifest(t), Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(plan.Items) != 2 {
		t.Fatalf("cycle must enqueue each project exactly once, got %d items", len(plan.Items))
	}
	seen := map[string]int{}
	for _, item := range plan.Items {
		seen[item.Project.ID]++
	}
	if seen["pa"] != 1 || seen["pb"] != 1 {
		t.Errorf("unexpected expansion counts: %v", seen)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "a"},
		fabricVer("av", catalog.ChannelRelease, 10,
			catalog.Dependency{ProjectID: "pb", Kind: catalog.DependencyRequired},
			catalog.Dependency{ProjectID: "pc", Kind: catalog.DependencyRequired},
		))
	fc.addProject(&catalog.Project{ID: "pb", Slug: "b"}, fabricVer("bv", catalog.ChannelRelease, 5))
	fc.addProject(&catalog.Project{ID: "pc", Slug: "c"}, fabricVer("cv", catalog.ChannelRelease, 7))

	r := testResolver(fc)
	first, err := r.Resolve(context.Background(), []Request{{Ref: "a"}}, testManifest(t), Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := r.Resolve(context.Background(), []Request{{Ref: "a"}}, testManifest(t), Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("resolving the same requests twice produced different plans")
	}
}

func TestResolve_ConflictDetection(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "py", Slug: "y"},
		fabricVer("yv", catalog.ChannelRelease, 10, catalog.Dependency{
			ProjectID: "pp", VersionID: "p-v2", Kind: catalog.DependencyRequired,
		}))
	fc.addProject(&catalog.Project{ID: "pp", Slug: "p"},
		fabricVer("p-v1", catalog.ChannelRelease, 1),
		fabricVer("p-v2", catalog.ChannelRelease, 2))

	// Installed project X pins P to v1.
	m := testManifest(t)
	m.Set(manifest.Entry{
		Project: &catalog.Project{ID: "px", Slug: "x"},
		Version: fabricVer("xv", catalog.ChannelRelease, 1, catalog.Dependency{
			ProjectID: "pp", VersionID: "p-v1", Kind: catalog.DependencyRequired,
		}),
	})

	plan, err := testResolver(fc).Resolve(context.Background(), []Request{{Ref: "y"}}, m, Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(plan.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(plan.Conflicts))
	}
	want := Conflict{
		ProjectID:            "pp",
		ConflictingProjectID: "px",
		VersionID:            "p-v2",
		ConflictingVersionID: "p-v1",
	}
	if plan.Conflicts[0] != want {
		t.Errorf("got conflict %+v, want %+v", plan.Conflicts[0], want)
	}

	// The conflict is advisory: P@v2 must still be planned.
	found := false
	for _, item := range plan.Items {
		if item.Project.ID == "pp" && item.Version.ID == "p-v2" {
			found = true
		}
	}
	if !found {
		t.Error("P@v2 missing from the plan despite being only in conflict")
	}
}

func TestResolve_IncompatibilityAdvisory(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "a", Title: "A"},
		fabricVer("av", catalog.ChannelRelease, 10, catalog.Dependency{
			ProjectID: "pz", Kind: catalog.DependencyIncompatible,
		}))

	m := testManifest(t)
	m.Set(manifest.Entry{
		Project: &catalog.Project{ID: "pz", Slug: "z"},
		Version: fabricVer("zv", catalog.ChannelRelease, 1),
	})

	plan, err := testResolver(fc).Resolve(context.Background(), []Request{{Ref: "a"}}, m, Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(plan.Incompatibilities) != 1 {
		t.Fatalf("expected 1 incompatibility, got %d", len(plan.Incompatibilities))
	}
	inc := plan.Incompatibilities[0]
	if inc.ProjectID != "pa" || inc.IncompatibleWith != "pz" {
		t.Errorf("unexpected incompatibility: %+v", inc)
	}
	if len(plan.Items) != 1 {
		t.Error("incompatibility must not block the install")
	}
}

func TestResolve_OptionalDependencies(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "a"},
		fabricVer("av", catalog.ChannelRelease, 10, catalog.Dependency{
			ProjectID: "po", Kind: catalog.DependencyOptional,
		}))
	fc.addProject(&catalog.Project{ID: "po", Slug: "opt"}, fabricVer("ov", catalog.ChannelRelease, 5))

	r := testResolver(fc)

	plan, err := r.Resolve(context.Background(), []Request{{Ref: "a"}}, testManifest(t), Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(plan.Items) != 1 {
		t.Errorf("optional dependency should be skipped by default, got %d items", len(plan.Items))
	}

	plan, err = r.Resolve(context.Background(), []Request{{Ref: "a"}}, testManifest(t), Options{IncludeOptional: true})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(plan.Items) != 2 {
		t.Errorf("optional dependency should be included, got %d items", len(plan.Items))
	}
}

func TestResolve_UnsupportedDependencyDropped(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "a"},
		fabricVer("av", catalog.ChannelRelease, 10, catalog.Dependency{
			ProjectID: "pd", Kind: catalog.DependencyRequired,
		}))
	// pd only publishes forge versions.
	fc.addProject(&catalog.Project{ID: "pd", Slug: "d"},
		ver("dv", catalog.ChannelRelease, 5, []string{"forge"}, []string{"1.20.2"}))

	plan, err := testResolver(fc).Resolve(context.Background(), []Request{{Ref: "a"}}, testManifest(t), Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(plan.Items) != 1 {
		t.Errorf("seed must survive a dropped dependency, got %d items", len(plan.Items))
	}
	if len(plan.Failures) != 1 {
		t.Fatalf("expected 1 dependency failure, got %d", len(plan.Failures))
	}
}

func TestResolve_SeedNotFound(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "a"}, fabricVer("av", catalog.ChannelRelease, 10))

	plan, err := testResolver(fc).Resolve(context.Background(),
		[]Request{{Ref: "nope"}, {Ref: "a"}}, testManifest(t), Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(plan.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(plan.Failures))
	}
	if len(plan.Items) != 1 {
		t.Error("one bad seed must not abort the other requests")
	}
}

func TestResolve_AlreadyInstalledSkips(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "a"}, fabricVer("av", catalog.ChannelRelease, 10))

	m := testManifest(t)
	m.Set(manifest.Entry{
		Project: &catalog.Project{ID: "pa", Slug: "a"},
		Version: fabricVer("av", catalog.ChannelRelease, 10),
	})

	r := testResolver(fc)

	plan, err := r.Resolve(context.Background(), []Request{{Ref: "a"}}, m, Options{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(plan.Items) != 0 || len(plan.Skipped) != 1 {
		t.Errorf("already installed project should be a no-op, got %+v", plan)
	}

	plan, err = r.Resolve(context.Background(), []Request{{Ref: "a"}}, m, Options{Reinstall: true})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(plan.Items) != 1 {
		t.Errorf("reinstall should re-plan the installed version, got %+v", plan)
	}
}

type staticPicker struct{ project *catalog.Project }

func (p staticPicker) Pick(context.Context, string) (*catalog.Project, error) {
	return p.project, nil
}

func TestResolve_PickerFallback(t *testing.T) {
	fc := newFakeCatalog()
	fc.addProject(&catalog.Project{ID: "pa", Slug: "actual-name"}, fabricVer("av", catalog.ChannelRelease, 10))

	plan, err := testResolver(fc).Resolve(context.Background(),
		[]Request{{Ref: "some free text"}}, testManifest(t),
		Options{Picker: staticPicker{project: &catalog.Project{Slug: "actual-name"}}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(plan.Items) != 1 || plan.Items[0].Project.ID != "pa" {
		t.Errorf("expected picker to resolve the free-text reference, got %+v", plan)
	}
}
