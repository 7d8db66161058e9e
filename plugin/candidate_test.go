package plugin

import "testing"

func TestExpandSubPluginsNoChildren(t *testing.T) {
	t.Parallel()
	c := &Candidate{Manifest: &Manifest{Group: "core", Name: "storage"}}
	if got := c.expandSubPlugins(); got != nil {
		t.Errorf("expected no children, got %v", got)
	}
}

func TestExpandSubPluginsOneLevel(t *testing.T) {
	t.Parallel()
	parent := &Manifest{
		Group: "core", Name: "storage", Version: "1.0.0",
		SubPlugins: []*Manifest{
			{Name: "storage-sql"},
			{Name: "storage-nosql", SubPlugins: []*Manifest{{Name: "deeply-nested"}}},
		},
	}
	c := &Candidate{Manifest: parent, Path: "/plugins/storage.jar", IsCore: true}
	children := c.expandSubPlugins()

	if len(children) != 2 {
		t.Fatalf("expected 2 direct children, got %d", len(children))
	}
	for _, child := range children {
		if child.Path != c.Path {
			t.Errorf("child should inherit parent Path, got %q", child.Path)
		}
		if !child.IsCore {
			t.Error("child should inherit parent IsCore")
		}
		if _, ok := child.Manifest.Dependencies[parent.Identifier()]; !ok {
			t.Error("child should hard-depend on parent")
		}
	}

	// Expansion is single-level: the grandchild is not surfaced here.
	nosql := children[1]
	if len(nosql.Manifest.SubPlugins) != 1 {
		t.Fatalf("expected the nested sub-plugin to survive on the manifest, got %d", len(nosql.Manifest.SubPlugins))
	}
	if grand := nosql.expandSubPlugins(); len(grand) != 1 {
		t.Errorf("grandchild should only appear when expanding the child candidate itself, got %d", len(grand))
	}
}

func TestExpandSubPluginsDoesNotMutateParentManifest(t *testing.T) {
	t.Parallel()
	parent := &Manifest{
		Group: "core", Name: "storage",
		Dependencies: map[Identifier]string{NewIdentifier("core", "cache"): ">=1.0.0"},
		SubPlugins:   []*Manifest{{Name: "storage-sql"}},
	}
	before := len(parent.Dependencies)
	_ = (&Candidate{Manifest: parent}).expandSubPlugins()
	if len(parent.Dependencies) != before {
		t.Error("expanding sub-plugins must not mutate the parent's dependency map")
	}
}

func TestExpandSubPluginsDoesNotMutateSubManifestWithPriorDependencies(t *testing.T) {
	t.Parallel()
	sub := &Manifest{
		Name:         "storage-sql",
		Dependencies: map[Identifier]string{NewIdentifier("core", "cache"): ">=1.0.0"},
	}
	parent := &Manifest{
		Group: "core", Name: "storage", Version: "2.0.0",
		SubPlugins: []*Manifest{sub},
	}
	before := len(sub.Dependencies)

	children := (&Candidate{Manifest: parent}).expandSubPlugins()

	if len(sub.Dependencies) != before {
		t.Error("expanding sub-plugins must not mutate the original sub-manifest's dependency map")
	}
	if _, ok := sub.Dependencies[parent.Identifier()]; ok {
		t.Error("the implicit parent dependency must land on the expanded copy, not the original sub-manifest")
	}
	if _, ok := children[0].Manifest.Dependencies[parent.Identifier()]; !ok {
		t.Error("the expanded child should still gain the implicit parent dependency")
	}
	if _, ok := children[0].Manifest.Dependencies[NewIdentifier("core", "cache")]; !ok {
		t.Error("the expanded child should keep its own pre-existing dependency")
	}
}
