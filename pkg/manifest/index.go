package manifest

// Index maps every known alias of each installed project back to its
// canonical slug key: the slug itself, the project id, the project title,
// and the installed primary filename. Commands accept any of these
// interchangeably, so the index is built once per invocation instead of
// probing each alias kind ad hoc.
type Index map[string]string

// Index builds the alias lookup table from the current manifest contents.
func (m *Manifest) Index() Index {
	idx := make(Index, len(m.Mods)*4)
	for slug, e := range m.Mods {
		idx[slug] = slug
		if e.Project != nil {
			if e.Project.ID != "" {
				idx[e.Project.ID] = slug
			}
			if e.Project.Title != "" {
				idx[e.Project.Title] = slug
			}
		}
		if e.Version != nil {
			if f := e.Version.PrimaryFile(); f != nil && f.Filename != "" {
				idx[f.Filename] = slug
			}
		}
	}
	return idx
}

// Resolve maps an alias to its canonical slug.
func (idx Index) Resolve(alias string) (string, bool) {
	slug, ok := idx[alias]
	return slug, ok
}
