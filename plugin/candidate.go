package plugin

// Candidate is a manifest plus origin information, registered before
// resolution: a resource path (empty for core units) and an IsCore flag.
type Candidate struct {
	Manifest *Manifest
	Path     string
	IsCore   bool
}

// Identifier returns the identifier of the candidate's manifest.
func (c *Candidate) Identifier() Identifier {
	return c.Manifest.Identifier()
}

// expandSubPlugins produces one child Candidate per sub-manifest declared on
// c.Manifest. Each child gets a copy of the parent's path and IsCore flag,
// and has its fields populated from the parent before being returned.
// Expansion is single-level: callers that want transitive expansion
// re-invoke this on the children as they register them.
func (c *Candidate) expandSubPlugins() []*Candidate {
	if len(c.Manifest.SubPlugins) == 0 {
		return nil
	}
	children := make([]*Candidate, 0, len(c.Manifest.SubPlugins))
	for _, sub := range c.Manifest.SubPlugins {
		child := cloneManifest(sub) // deep copy: never alias the sub-manifest's own maps/slices
		child.inheritFrom(c.Manifest)
		children = append(children, &Candidate{
			Manifest: &child,
			Path:     c.Path,
			IsCore:   c.IsCore,
		})
	}
	return children
}
