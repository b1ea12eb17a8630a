package gen

import (
	"path"

	"github.com/rs/zerolog"

	"github.com/openforge/openforge/pkg/graph"
)

// defaultOutputDir is used when a module declares no output directory.
const defaultOutputDir = "obj"

// Generator synthesizes build edges for resolved module targets. It is
// safe for concurrent use: the graph is immutable once resolution has
// finished and the generator keeps no per-target state.
type Generator struct {
	g          Graph
	classifier *Classifier
	logger     zerolog.Logger

	// defaultToolchain is consulted when a module names no toolchain.
	defaultToolchain graph.Label
}

// NewGenerator creates a generator over the resolved graph g.
func NewGenerator(g Graph, defaultToolchain graph.Label, logger zerolog.Logger) *Generator {
	return &Generator{
		g:                g,
		classifier:       NewClassifier(g),
		logger:           logger.With().Str("component", "gen").Logger(),
		defaultToolchain: defaultToolchain,
	}
}

// Generate synthesizes one edge per module target, in input order.
func (gen *Generator) Generate(targets []*graph.Record) ([]*BuildEdge, error) {
	edges := make([]*BuildEdge, 0, len(targets))
	for _, target := range targets {
		edge, err := gen.GenerateTarget(target)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// GenerateTarget synthesizes the build edge for a single module target:
// classification, artifact-kind resolution, configuration-chain flag
// gathering, and assembly of inputs, externs, and link arguments.
func (gen *Generator) GenerateTarget(target *graph.Record) (*BuildEdge, error) {
	mod := target.Item().AsModule()
	if mod == nil {
		return nil, graph.NewConfigFault("generation target is not a module", nil).
			WithRecord(target.Identity()).
			WithOperation("GenerateTarget")
	}

	classified, err := gen.classifier.Classify(target)
	if err != nil {
		return nil, err
	}
	transitive, err := gen.classifier.TransitiveExterns(target)
	if err != nil {
		return nil, err
	}

	kind, err := resolveArtifactKind(target.Identity(), mod)
	if err != nil {
		return nil, err
	}
	tool, err := gen.toolFor(target.Identity(), mod)
	if err != nil {
		return nil, err
	}
	pool, err := gen.poolFor(target.Identity(), mod)
	if err != nil {
		return nil, err
	}

	outputDir := moduleOutputDir(mod)
	edge := &BuildEdge{
		Target:          target.Label(),
		Rule:            tool.Name,
		ModuleName:      mod.Name,
		Artifact:        kind,
		OutputExtension: tool.OutputExtension,
		OutputDir:       outputDir,
		Pool:            pool,
		ExplicitInput:   mod.EntryRoot,
		Outputs:         []string{path.Join(outputDir, artifactFileName(kind, mod.Name, tool.OutputExtension))},
		ToolLibDirs:     tool.LibDirs,
		ToolLibs:        tool.Libs,
	}

	// Configuration chain: the module's own values first, then each
	// referenced fragment in declared precedence order. Concatenation only,
	// no deduplication.
	declared, err := gen.gatherFlags(mod, edge)
	if err != nil {
		return nil, err
	}

	if err := gen.assembleExterns(target.Identity(), mod, classified, transitive, declared, edge); err != nil {
		return nil, err
	}
	if err := gen.assembleLinkInputs(classified, transitive, edge); err != nil {
		return nil, err
	}
	if err := gen.assembleDeps(mod, classified, declared, outputDir, edge); err != nil {
		return nil, err
	}

	edge.Sources = append(append([]string{}, mod.Sources...), mod.Inputs...)

	gen.logger.Debug().
		Str("target", string(target.Label())).
		Str("artifact", string(kind)).
		Int("externs", len(edge.Externs)).
		Int("foreign_inputs", len(edge.ForeignInputs)).
		Msg("Synthesized build edge")
	return edge, nil
}

// gatherFlags concatenates flags, env, and ldflags along the configuration
// chain into the edge and returns the declared externs collected along the
// same chain, in the same order.
func (gen *Generator) gatherFlags(mod *graph.ModuleDef, edge *BuildEdge) ([]graph.DeclaredExtern, error) {
	var declared []graph.DeclaredExtern
	apply := func(v graph.FlagSet) {
		edge.Flags = append(edge.Flags, v.Flags...)
		edge.Env = append(edge.Env, v.Env...)
		edge.LdFlags = append(edge.LdFlags, v.LdFlags...)
		declared = append(declared, v.Externs...)
	}

	apply(mod.Values)
	for _, ref := range mod.ConfigRefs {
		rec := gen.g.Get(graph.Identity{Kind: graph.ItemConfig, Label: ref})
		if rec == nil || !rec.Resolved() {
			return nil, graph.NewConfigFault("configuration fragment not resolved at generation time", nil).
				WithRecord(graph.Identity{Kind: graph.ItemConfig, Label: ref}).
				WithOperation("GenerateTarget")
		}
		frag := rec.Item().AsConfig()
		if frag == nil {
			return nil, graph.NewConfigFault("configuration record carries no fragment payload", nil).
				WithRecord(rec.Identity()).
				WithOperation("GenerateTarget")
		}
		apply(frag.Values)
	}
	return declared, nil
}

// assembleExterns emits the named external references: direct
// module-producing deps first (alias-aware, deduplicated by artifact
// path), then transitively accessible modules, then declared externs. A
// declared extern whose name is already taken by a graph-derived
// reference is a configuration fault.
func (gen *Generator) assembleExterns(id graph.Identity, mod *graph.ModuleDef, classified *ClassifiedDeps, transitive []ExternModule, declared []graph.DeclaredExtern, edge *BuildEdge) error {
	emittedPaths := make(map[string]struct{})
	names := make(map[string]string) // name -> path

	emit := func(name, p string) {
		if _, ok := emittedPaths[p]; ok {
			return
		}
		emittedPaths[p] = struct{}{}
		names[name] = p
		edge.Externs = append(edge.Externs, ExternRef{Name: name, Path: p})
	}

	for _, dep := range append(append([]*graph.Record{}, classified.Linkable...), classified.NonLinkable...) {
		depMod := dep.Item().AsModule()
		if !importableArtifact(depMod) {
			continue
		}
		file, err := depArtifactFile(dep.Identity(), depMod)
		if err != nil {
			return err
		}
		emit(mod.AliasFor(dep.Label(), depMod.Name), file)
	}

	for _, ext := range transitive {
		if !ext.DirectAccess {
			continue
		}
		depMod := ext.Record.Item().AsModule()
		if !importableArtifact(depMod) {
			continue
		}
		file, err := depArtifactFile(ext.Record.Identity(), depMod)
		if err != nil {
			return err
		}
		emit(depMod.Name, file)
	}

	for _, d := range declared {
		if prev, ok := names[d.Name]; ok && prev != d.Path {
			return graph.NewConfigFault("declared extern name collides with a dependency-derived extern", nil).
				WithCode(graph.ErrCodeExternCollision).
				WithRecord(id).
				WithOperation("GenerateTarget")
		}
		names[d.Name] = d.Path
		edge.Externs = append(edge.Externs, ExternRef{Name: d.Name, Path: d.Path})
	}
	return nil
}

// assembleLinkInputs fills the search paths and foreign link inputs. Every
// transitive module artifact contributes its directory to the dependency
// search path whether or not it was named; foreign inputs are raw objects
// plus linkable deps whose artifact the compiler cannot import.
func (gen *Generator) assembleLinkInputs(classified *ClassifiedDeps, transitive []ExternModule, edge *BuildEdge) error {
	seenDep := make(map[string]struct{})
	addDepDir := func(dir string) {
		if _, ok := seenDep[dir]; ok {
			return
		}
		seenDep[dir] = struct{}{}
		edge.LinkSearchDirs = append(edge.LinkSearchDirs, dir)
	}

	for _, ext := range transitive {
		depMod := ext.Record.Item().AsModule()
		file, err := depArtifactFile(ext.Record.Identity(), depMod)
		if err != nil {
			return err
		}
		addDepDir(path.Dir(file))
	}

	var foreign []string
	foreign = append(foreign, classified.ExtraObjects...)
	for _, dep := range classified.Linkable {
		depMod := dep.Item().AsModule()
		if importableArtifact(depMod) {
			continue
		}
		file, err := depArtifactFile(dep.Identity(), depMod)
		if err != nil {
			return err
		}
		foreign = append(foreign, file)
	}

	seenNative := make(map[string]struct{})
	for _, in := range foreign {
		dir := path.Dir(in)
		if _, ok := seenNative[dir]; ok {
			continue
		}
		seenNative[dir] = struct{}{}
		edge.NativeSearchDirs = append(edge.NativeSearchDirs, dir)
	}

	edge.ForeignInputs = foreign
	edge.RequiresDynamic = len(foreign) > 0
	return nil
}

// assembleDeps fills the implicit and order-only dependency lists.
// Implicit deps retrigger compilation; order-only deps only gate it.
func (gen *Generator) assembleDeps(mod *graph.ModuleDef, classified *ClassifiedDeps, declared []graph.DeclaredExtern, outputDir string, edge *BuildEdge) error {
	edge.ImplicitDeps = append(edge.ImplicitDeps, mod.Sources...)
	edge.ImplicitDeps = append(edge.ImplicitDeps, mod.Inputs...)
	for _, d := range declared {
		if d.IsFile {
			edge.ImplicitDeps = append(edge.ImplicitDeps, d.Path)
		}
	}
	edge.ImplicitDeps = append(edge.ImplicitDeps, classified.ExtraObjects...)
	for _, dep := range classified.Linkable {
		file, err := depArtifactFile(dep.Identity(), dep.Item().AsModule())
		if err != nil {
			return err
		}
		edge.ImplicitDeps = append(edge.ImplicitDeps, file)
	}

	for _, dep := range append(append([]*graph.Record{}, classified.NonLinkable...), classified.Frameworks...) {
		edge.OrderOnlyDeps = append(edge.OrderOnlyDeps, depOrderingFile(dep.Identity(), dep.Item().AsModule()))
	}
	if len(mod.Inputs) > 0 {
		edge.OrderOnlyDeps = append(edge.OrderOnlyDeps, path.Join(outputDir, mod.Name+".inputs.stamp"))
	}
	return nil
}

// toolFor selects the tool building mod: its own toolchain when named,
// the default toolchain otherwise. A toolchain without a tool for the
// module's category is a configuration fault.
func (gen *Generator) toolFor(id graph.Identity, mod *graph.ModuleDef) (*graph.Tool, error) {
	label := mod.Toolchain
	if label == "" {
		label = gen.defaultToolchain
	}
	rec := gen.g.Get(graph.Identity{Kind: graph.ItemToolchain, Label: label})
	if rec == nil || !rec.Resolved() {
		return nil, graph.NewConfigFault("toolchain not resolved at generation time", nil).
			WithCode(graph.ErrCodeMissingTool).
			WithRecord(id).
			WithOperation("GenerateTarget")
	}
	tool := rec.Item().AsToolchain().ToolForCategory(mod.Category)
	if tool == nil {
		return nil, graph.NewConfigFault("toolchain defines no tool for output category "+string(mod.Category), nil).
			WithCode(graph.ErrCodeMissingTool).
			WithRecord(id).
			WithOperation("GenerateTarget")
	}
	return tool, nil
}

// poolFor resolves the module's resource pool name, if any.
func (gen *Generator) poolFor(id graph.Identity, mod *graph.ModuleDef) (string, error) {
	if mod.Pool == "" {
		return "", nil
	}
	rec := gen.g.Get(graph.Identity{Kind: graph.ItemPool, Label: mod.Pool})
	if rec == nil || !rec.Resolved() {
		return "", graph.NewConfigFault("pool not resolved at generation time", nil).
			WithRecord(id).
			WithOperation("GenerateTarget")
	}
	pool := rec.Item().AsPool()
	if pool == nil {
		return "", graph.NewConfigFault("pool record carries no pool payload", nil).
			WithRecord(rec.Identity()).
			WithOperation("GenerateTarget")
	}
	return pool.Name, nil
}

// resolveArtifactKind returns the module's concrete artifact kind: the
// declared override when present, otherwise the automatic mapping from
// the output category. A category with no automatic mapping and no
// override is a configuration fault, never a silent default.
func resolveArtifactKind(id graph.Identity, mod *graph.ModuleDef) (graph.ArtifactKind, error) {
	if mod.Artifact != graph.ArtifactAuto {
		return mod.Artifact, nil
	}
	switch mod.Category {
	case graph.CategoryExecutable:
		return graph.ArtifactBin, nil
	case graph.CategoryStaticLibrary:
		return graph.ArtifactStaticLib, nil
	case graph.CategoryModuleLibrary:
		return graph.ArtifactModuleLib, nil
	case graph.CategoryMacroModule:
		return graph.ArtifactMacro, nil
	default:
		return "", graph.NewConfigFault("output category "+string(mod.Category)+" has no automatic artifact mapping", nil).
			WithCode(graph.ErrCodeUnmappedCategory).
			WithRecord(id).
			WithOperation("GenerateTarget")
	}
}

// importableArtifact reports whether the module's artifact can be imported
// by name. Dynamic modules qualify only when they carry importable
// metadata; foreign dynamic modules are linked like native libraries.
func importableArtifact(mod *graph.ModuleDef) bool {
	switch mod.Category {
	case graph.CategoryModuleLibrary, graph.CategoryMacroModule:
		return true
	case graph.CategoryDynamicModule:
		return mod.Artifact == graph.ArtifactDynamic
	default:
		return false
	}
}

// moduleOutputDir returns the module's artifact directory.
func moduleOutputDir(mod *graph.ModuleDef) string {
	if mod.OutputDir != "" {
		return mod.OutputDir
	}
	return defaultOutputDir
}

// depArtifactFile returns the path of a dependency's primary artifact.
func depArtifactFile(id graph.Identity, mod *graph.ModuleDef) (string, error) {
	kind, err := resolveArtifactKind(id, mod)
	if err != nil {
		return "", err
	}
	return path.Join(moduleOutputDir(mod), artifactFileName(kind, mod.Name, "")), nil
}

// depOrderingFile returns the file a non-linkable dependency contributes
// to order-only gating. Deps that produce no artifact are represented by
// their completion stamp.
func depOrderingFile(id graph.Identity, mod *graph.ModuleDef) string {
	switch mod.Category {
	case graph.CategoryGroup, graph.CategoryFramework:
		return path.Join(moduleOutputDir(mod), mod.Name+".stamp")
	}
	if file, err := depArtifactFile(id, mod); err == nil {
		return file
	}
	return path.Join(moduleOutputDir(mod), mod.Name+".stamp")
}

// artifactFileName returns the artifact's file name for a kind. ext, when
// non-empty, overrides the kind's conventional extension and carries its
// leading dot.
func artifactFileName(kind graph.ArtifactKind, name, ext string) string {
	switch kind {
	case graph.ArtifactBin:
		return name + ext
	case graph.ArtifactStaticLib:
		if ext == "" {
			ext = ".a"
		}
		return "lib" + name + ext
	case graph.ArtifactModuleLib:
		if ext == "" {
			ext = ".rlib"
		}
		return "lib" + name + ext
	default:
		// proc-macro, dylib, cdylib share the platform shared-object form.
		if ext == "" {
			ext = ".so"
		}
		return "lib" + name + ext
	}
}
