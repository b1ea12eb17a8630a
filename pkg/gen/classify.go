package gen

import (
	"github.com/openforge/openforge/pkg/graph"
)

// Graph is the read-only view of a resolved dependency graph that
// generation needs. *graph.Resolver satisfies it after Finish succeeds.
type Graph interface {
	Get(id graph.Identity) *graph.Record
}

// ClassifiedDeps partitions a target's direct dependencies by linkage role.
// The buckets are disjoint; each preserves declared dependency order.
type ClassifiedDeps struct {
	// Linkable deps produce an output consumed as a link input.
	Linkable []*graph.Record

	// NonLinkable deps are consumed for ordering and metadata only.
	NonLinkable []*graph.Record

	// Frameworks are platform-provided deps contributing ordering only.
	Frameworks []*graph.Record

	// ExtraObjects are raw object artifacts attached directly to the
	// target, not produced through a sub-target.
	ExtraObjects []string
}

// ExternModule is one transitively reachable module dependency plus
// whether the root target has compiler-visible access to its name.
type ExternModule struct {
	// Record is the dependency's resolved graph record.
	Record *graph.Record

	// DirectAccess is true iff at least one path from the root to this
	// module consists entirely of publicly-propagating edges.
	DirectAccess bool
}

// Classifier computes dependency classifications over a resolved graph.
type Classifier struct {
	g Graph
}

// NewClassifier creates a classifier over the resolved graph g.
func NewClassifier(g Graph) *Classifier {
	return &Classifier{g: g}
}

// Classify walks the target's direct dependencies once and buckets them by
// declared role and output kind. Dynamic modules land in the linkable
// bucket: they are linked like native libraries, not referenced by name.
func (c *Classifier) Classify(target *graph.Record) (*ClassifiedDeps, error) {
	mod := target.Item().AsModule()
	if mod == nil {
		return nil, graph.NewConfigFault("classification target is not a module", nil).
			WithRecord(target.Identity()).
			WithOperation("Classify")
	}

	cd := &ClassifiedDeps{ExtraObjects: mod.ExtraObjects}

	for _, ref := range mod.Deps() {
		dep, depMod, err := c.moduleDep(ref.Label)
		if err != nil {
			return nil, err
		}
		switch depMod.Category {
		case graph.CategoryFramework:
			cd.Frameworks = append(cd.Frameworks, dep)
		case graph.CategoryGroup, graph.CategoryExecutable:
			cd.NonLinkable = append(cd.NonLinkable, dep)
		default:
			cd.Linkable = append(cd.Linkable, dep)
		}
	}

	return cd, nil
}

// TransitiveExterns computes the deduplicated transitive set of
// module-producing dependencies reachable from the target through any
// chain of edges. A module is recorded once regardless of how many paths
// reach it; DirectAccess is the logical OR over all paths. The OR is
// monotonic: a module reachable privately on one branch and publicly on
// another is publicly accessible.
func (c *Classifier) TransitiveExterns(target *graph.Record) ([]ExternModule, error) {
	mod := target.Item().AsModule()
	if mod == nil {
		return nil, graph.NewConfigFault("classification target is not a module", nil).
			WithRecord(target.Identity()).
			WithOperation("TransitiveExterns")
	}

	type pending struct {
		rec    *graph.Record
		access bool
	}

	seen := make(map[graph.Label]int) // label -> index into order
	var order []ExternModule

	var queue []pending
	for _, ref := range mod.Deps() {
		dep, _, err := c.moduleDep(ref.Label)
		if err != nil {
			return nil, err
		}
		queue = append(queue, pending{rec: dep, access: ref.Public})
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		label := p.rec.Label()
		if idx, ok := seen[label]; ok {
			if !p.access || order[idx].DirectAccess {
				// No new information on this path; closure already walked.
				continue
			}
			order[idx].DirectAccess = true
		} else {
			seen[label] = len(order)
			order = append(order, ExternModule{Record: p.rec, DirectAccess: p.access})
		}

		depMod := p.rec.Item().AsModule()
		for _, ref := range depMod.Deps() {
			child, _, err := c.moduleDep(ref.Label)
			if err != nil {
				return nil, err
			}
			queue = append(queue, pending{rec: child, access: p.access && ref.Public})
		}
	}

	// Keep only module-producing entries; the walk itself traverses every
	// dependency kind so closure through groups and static libraries is
	// preserved.
	out := order[:0]
	for _, e := range order {
		if producesModuleArtifact(e.Record.Item().AsModule().Category) {
			out = append(out, e)
		}
	}
	return out, nil
}

// moduleDep resolves one declared dependency edge to its module record.
func (c *Classifier) moduleDep(label graph.Label) (*graph.Record, *graph.ModuleDef, error) {
	dep := c.g.Get(graph.ModuleIdentity(label))
	if dep == nil || !dep.Resolved() {
		return nil, nil, graph.NewConfigFault("dependency not resolved at classification time", nil).
			WithRecord(graph.ModuleIdentity(label)).
			WithOperation("Classify")
	}
	depMod := dep.Item().AsModule()
	if depMod == nil {
		return nil, nil, graph.NewConfigFault("dependency record carries no module payload", nil).
			WithRecord(dep.Identity()).
			WithOperation("Classify")
	}
	return dep, depMod, nil
}

// producesModuleArtifact reports whether a category yields an artifact the
// compiler can import by name (or, for dynamic modules, locate).
func producesModuleArtifact(cat graph.OutputCategory) bool {
	switch cat {
	case graph.CategoryModuleLibrary, graph.CategoryMacroModule, graph.CategoryDynamicModule:
		return true
	default:
		return false
	}
}
