package gen

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/openforge/openforge/pkg/graph"
)

// fixture builds a fully resolved graph through the real resolver so that
// classification and synthesis tests run against the same record state the
// loader produces.
type fixture struct {
	t *testing.T
	r *graph.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, r: graph.NewResolver(zerolog.Nop())}
}

// module declares the edges a module target implies and attaches its
// payload. Edges always precede the attach, matching loader behavior.
func (f *fixture) module(label graph.Label, mod *graph.ModuleDef) {
	f.t.Helper()
	id := graph.ModuleIdentity(label)
	for _, ref := range mod.Deps() {
		if err := f.r.AddEdge(id, graph.ModuleIdentity(ref.Label)); err != nil {
			f.t.Fatalf("AddEdge(%s -> %s) failed: %v", label, ref.Label, err)
		}
	}
	for _, c := range mod.ConfigRefs {
		if err := f.r.AddEdge(id, graph.Identity{Kind: graph.ItemConfig, Label: c}); err != nil {
			f.t.Fatalf("AddEdge(%s -> config %s) failed: %v", label, c, err)
		}
	}
	if mod.Toolchain != "" {
		if err := f.r.AddEdge(id, graph.Identity{Kind: graph.ItemToolchain, Label: mod.Toolchain}); err != nil {
			f.t.Fatalf("AddEdge(%s -> toolchain) failed: %v", label, err)
		}
	}
	if mod.Pool != "" {
		if err := f.r.AddEdge(id, graph.Identity{Kind: graph.ItemPool, Label: mod.Pool}); err != nil {
			f.t.Fatalf("AddEdge(%s -> pool) failed: %v", label, err)
		}
	}
	if err := f.r.AttachItem(id, &graph.Item{Kind: graph.ItemModule, Label: label, Module: mod}); err != nil {
		f.t.Fatalf("AttachItem(%s) failed: %v", label, err)
	}
}

func (f *fixture) config(label graph.Label, values graph.FlagSet) {
	f.t.Helper()
	err := f.r.AttachItem(
		graph.Identity{Kind: graph.ItemConfig, Label: label},
		&graph.Item{Kind: graph.ItemConfig, Label: label, Config: &graph.ConfigFragment{Name: string(label), Values: values}},
	)
	if err != nil {
		f.t.Fatalf("AttachItem(config %s) failed: %v", label, err)
	}
}

func (f *fixture) toolchain(label graph.Label, tc *graph.ToolchainDef) {
	f.t.Helper()
	err := f.r.AttachItem(
		graph.Identity{Kind: graph.ItemToolchain, Label: label},
		&graph.Item{Kind: graph.ItemToolchain, Label: label, Toolchain: tc},
	)
	if err != nil {
		f.t.Fatalf("AttachItem(toolchain %s) failed: %v", label, err)
	}
}

func (f *fixture) pool(label graph.Label, depth int) {
	f.t.Helper()
	err := f.r.AttachItem(
		graph.Identity{Kind: graph.ItemPool, Label: label},
		&graph.Item{Kind: graph.ItemPool, Label: label, Pool: &graph.PoolDef{Name: string(label), Depth: depth}},
	)
	if err != nil {
		f.t.Fatalf("AttachItem(pool %s) failed: %v", label, err)
	}
}

// target finishes resolution and returns the named module record.
func (f *fixture) target(label graph.Label) *graph.Record {
	f.t.Helper()
	if _, err := f.r.Finish(); err != nil {
		f.t.Fatalf("Finish failed: %v", err)
	}
	rec := f.r.Get(graph.ModuleIdentity(label))
	if rec == nil {
		f.t.Fatalf("Expected record for %s", label)
	}
	return rec
}

func lib(name string, publicDeps, privateDeps []graph.Label) *graph.ModuleDef {
	return &graph.ModuleDef{
		Name:        name,
		Category:    graph.CategoryModuleLibrary,
		EntryRoot:   name + "/lib.rs",
		Sources:     []string{name + "/lib.rs"},
		PublicDeps:  publicDeps,
		PrivateDeps: privateDeps,
	}
}

func TestClassify_Buckets(t *testing.T) {
	f := newFixture(t)
	f.module("//lib:core", lib("core", nil, nil))
	f.module("//native:cstuff", &graph.ModuleDef{
		Name: "cstuff", Category: graph.CategoryStaticLibrary, EntryRoot: "cstuff/lib.c",
	})
	f.module("//sys:metal", &graph.ModuleDef{
		Name: "metal", Category: graph.CategoryFramework,
	})
	f.module("//meta:all", &graph.ModuleDef{
		Name: "all", Category: graph.CategoryGroup,
	})
	f.module("//tools:codegen", &graph.ModuleDef{
		Name: "codegen", Category: graph.CategoryExecutable, EntryRoot: "codegen/main.rs",
	})
	f.module("//app:app", &graph.ModuleDef{
		Name:         "app",
		Category:     graph.CategoryExecutable,
		EntryRoot:    "app/main.rs",
		PublicDeps:   []graph.Label{"//lib:core", "//sys:metal"},
		PrivateDeps:  []graph.Label{"//native:cstuff", "//meta:all", "//tools:codegen"},
		ExtraObjects: []string{"obj/extra/boot.o"},
	})

	cd, err := NewClassifier(f.r).Classify(f.target("//app:app"))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	wantLabels := func(got []*graph.Record, want ...graph.Label) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("Expected %d records, got %d", len(want), len(got))
		}
		for i, rec := range got {
			if rec.Label() != want[i] {
				t.Errorf("Expected %s at position %d, got %s", want[i], i, rec.Label())
			}
		}
	}
	wantLabels(cd.Linkable, "//lib:core", "//native:cstuff")
	wantLabels(cd.NonLinkable, "//meta:all", "//tools:codegen")
	wantLabels(cd.Frameworks, "//sys:metal")
	if len(cd.ExtraObjects) != 1 || cd.ExtraObjects[0] != "obj/extra/boot.o" {
		t.Errorf("Expected extra objects passthrough, got %v", cd.ExtraObjects)
	}
}

func TestTransitiveExterns_PublicChainGrantsAccess(t *testing.T) {
	f := newFixture(t)
	f.module("//lib:deep", lib("deep", nil, nil))
	f.module("//lib:mid", lib("mid", []graph.Label{"//lib:deep"}, nil))
	f.module("//app:root", lib("root", []graph.Label{"//lib:mid"}, nil))

	externs, err := NewClassifier(f.r).TransitiveExterns(f.target("//app:root"))
	if err != nil {
		t.Fatalf("TransitiveExterns failed: %v", err)
	}
	for _, e := range externs {
		if !e.DirectAccess {
			t.Errorf("Expected direct access for %s on all-public chain", e.Record.Label())
		}
	}
}

func TestTransitiveExterns_PrivateEdgeBlocksAccess(t *testing.T) {
	f := newFixture(t)
	f.module("//lib:deep", lib("deep", nil, nil))
	f.module("//lib:mid", lib("mid", []graph.Label{"//lib:deep"}, nil))
	f.module("//app:root", lib("root", nil, []graph.Label{"//lib:mid"}))

	externs, err := NewClassifier(f.r).TransitiveExterns(f.target("//app:root"))
	if err != nil {
		t.Fatalf("TransitiveExterns failed: %v", err)
	}
	if len(externs) != 2 {
		t.Fatalf("Expected 2 transitive modules, got %d", len(externs))
	}
	for _, e := range externs {
		if e.DirectAccess {
			t.Errorf("Expected no direct access for %s through a private edge", e.Record.Label())
		}
	}
}

func TestTransitiveExterns_AccessIsORAcrossPaths(t *testing.T) {
	// Diamond: root reaches shared privately through one branch and
	// publicly through the other. The public path must win regardless of
	// which branch the walk visits first.
	for _, deps := range [][]graph.Label{
		{"//lib:priv", "//lib:pub"},
		{"//lib:pub", "//lib:priv"},
	} {
		f := newFixture(t)
		f.module("//lib:shared", lib("shared", nil, nil))
		f.module("//lib:pub", lib("pub", []graph.Label{"//lib:shared"}, nil))
		f.module("//lib:priv", lib("priv", nil, []graph.Label{"//lib:shared"}))
		f.module("//app:root", lib("root", deps, nil))

		externs, err := NewClassifier(f.r).TransitiveExterns(f.target("//app:root"))
		if err != nil {
			t.Fatalf("TransitiveExterns failed: %v", err)
		}
		count := 0
		for _, e := range externs {
			if e.Record.Label() == "//lib:shared" {
				count++
				if !e.DirectAccess {
					t.Errorf("Expected public path to grant access to //lib:shared (order %v)", deps)
				}
			}
		}
		if count != 1 {
			t.Errorf("Expected //lib:shared recorded exactly once, got %d (order %v)", count, deps)
		}
	}
}

func TestTransitiveExterns_ClosureThroughNonModuleDeps(t *testing.T) {
	// A module library reached only through a group and a static library
	// must still appear in the transitive set; the intermediaries must not.
	f := newFixture(t)
	f.module("//lib:inner", lib("inner", nil, nil))
	f.module("//native:wrap", &graph.ModuleDef{
		Name:       "wrap",
		Category:   graph.CategoryStaticLibrary,
		EntryRoot:  "wrap/lib.c",
		PublicDeps: []graph.Label{"//lib:inner"},
	})
	f.module("//meta:grp", &graph.ModuleDef{
		Name:       "grp",
		Category:   graph.CategoryGroup,
		PublicDeps: []graph.Label{"//native:wrap"},
	})
	f.module("//app:root", lib("root", []graph.Label{"//meta:grp"}, nil))

	externs, err := NewClassifier(f.r).TransitiveExterns(f.target("//app:root"))
	if err != nil {
		t.Fatalf("TransitiveExterns failed: %v", err)
	}
	if len(externs) != 1 {
		t.Fatalf("Expected only the module library in the extern set, got %d entries", len(externs))
	}
	e := externs[0]
	if e.Record.Label() != "//lib:inner" {
		t.Errorf("Expected //lib:inner, got %s", e.Record.Label())
	}
	if !e.DirectAccess {
		t.Error("Expected access through an all-public chain of non-module deps")
	}
}

func TestClassify_UnresolvedDepIsFault(t *testing.T) {
	// The orphan's dependency is referenced but never defined, so the
	// orphan never resolves. Classification over such a record must fail
	// loudly instead of producing a partial bucket set.
	f := newFixture(t)
	f.module("//lib:orphan", lib("orphan", []graph.Label{"//lib:missing"}, nil))

	rec := f.r.Get(graph.ModuleIdentity("//lib:orphan"))
	if rec == nil {
		t.Fatal("Expected orphan record")
	}

	_, err := NewClassifier(f.r).Classify(rec)
	if err == nil {
		t.Fatal("Expected fault for unresolved dependency")
	}
	if !graph.IsConfigFault(err) {
		t.Errorf("Expected configuration fault, got: %v", err)
	}
}
