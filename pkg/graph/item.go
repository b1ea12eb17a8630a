package graph

// ItemKind identifies which of the four build-description item kinds a
// record or item represents.
type ItemKind int

const (
	// ItemUnknown is the zero value and never appears in a valid graph.
	ItemUnknown ItemKind = iota

	// ItemModule is a buildable module target.
	ItemModule

	// ItemConfig is a reusable configuration fragment.
	ItemConfig

	// ItemToolchain is a toolchain definition.
	ItemToolchain

	// ItemPool is a build-executor resource pool.
	ItemPool
)

// String returns the kind name used in diagnostics and identities.
func (k ItemKind) String() string {
	switch k {
	case ItemModule:
		return "module"
	case ItemConfig:
		return "config"
	case ItemToolchain:
		return "toolchain"
	case ItemPool:
		return "pool"
	default:
		return "unknown"
	}
}

// Label is the fully-qualified name of an item, e.g. "//base/util:util".
type Label string

// Identity is the globally unique key of a graph record: kind plus label.
type Identity struct {
	Kind  ItemKind `json:"kind"`
	Label Label    `json:"label"`
}

// String renders the identity for diagnostics.
func (id Identity) String() string {
	return id.Kind.String() + " " + string(id.Label)
}

// ModuleIdentity is shorthand for the identity of a module target.
func ModuleIdentity(label Label) Identity {
	return Identity{Kind: ItemModule, Label: label}
}

// Item is the parsed payload of one build-description item. Exactly one of
// the kind-specific fields is non-nil, matching Kind.
type Item struct {
	// Kind is the item kind; it selects which payload field is set.
	Kind ItemKind `json:"kind"`

	// Label is the fully-qualified item name.
	Label Label `json:"label"`

	// Module is the payload for module targets.
	Module *ModuleDef `json:"module,omitempty"`

	// Config is the payload for configuration fragments.
	Config *ConfigFragment `json:"config,omitempty"`

	// Toolchain is the payload for toolchain definitions.
	Toolchain *ToolchainDef `json:"toolchain,omitempty"`

	// Pool is the payload for resource pools.
	Pool *PoolDef `json:"pool,omitempty"`
}

// AsModule returns the module payload, or nil if the item is not a module.
func (it *Item) AsModule() *ModuleDef {
	if it == nil || it.Kind != ItemModule {
		return nil
	}
	return it.Module
}

// AsConfig returns the config payload, or nil if the item is not a config.
func (it *Item) AsConfig() *ConfigFragment {
	if it == nil || it.Kind != ItemConfig {
		return nil
	}
	return it.Config
}

// AsToolchain returns the toolchain payload, or nil for other kinds.
func (it *Item) AsToolchain() *ToolchainDef {
	if it == nil || it.Kind != ItemToolchain {
		return nil
	}
	return it.Toolchain
}

// AsPool returns the pool payload, or nil for other kinds.
func (it *Item) AsPool() *PoolDef {
	if it == nil || it.Kind != ItemPool {
		return nil
	}
	return it.Pool
}

// OutputCategory is the declared output category of a module target. It
// drives both dependency classification and the automatic artifact-kind
// mapping during synthesis.
type OutputCategory string

const (
	// CategoryExecutable produces a runnable binary.
	CategoryExecutable OutputCategory = "executable"

	// CategoryStaticLibrary produces a native static archive.
	CategoryStaticLibrary OutputCategory = "static_library"

	// CategoryModuleLibrary produces a module library consumed by name
	// through the compiler's import mechanism.
	CategoryModuleLibrary OutputCategory = "module_library"

	// CategoryMacroModule produces a compile-time macro module.
	CategoryMacroModule OutputCategory = "macro_module"

	// CategoryDynamicModule produces a dynamic module that is linked like a
	// native library rather than referenced by name.
	CategoryDynamicModule OutputCategory = "dynamic_module"

	// CategoryFramework is a platform-provided framework dependency; it
	// contributes ordering only.
	CategoryFramework OutputCategory = "framework"

	// CategoryGroup carries metadata and ordering but produces no link
	// input of its own.
	CategoryGroup OutputCategory = "group"
)

// ArtifactKind is the concrete artifact kind presented to the compiler.
// The empty value requests automatic derivation from the output category.
type ArtifactKind string

const (
	// ArtifactAuto derives the kind from the output category.
	ArtifactAuto ArtifactKind = ""

	// ArtifactBin is an executable binary.
	ArtifactBin ArtifactKind = "bin"

	// ArtifactStaticLib is a native static library.
	ArtifactStaticLib ArtifactKind = "staticlib"

	// ArtifactModuleLib is a module library (rlib).
	ArtifactModuleLib ArtifactKind = "rlib"

	// ArtifactMacro is a compile-time macro module.
	ArtifactMacro ArtifactKind = "proc-macro"

	// ArtifactDynamic is a dynamic module with importable metadata.
	ArtifactDynamic ArtifactKind = "dylib"

	// ArtifactForeignDynamic is a dynamic module without importable
	// metadata; it is linked like a native library.
	ArtifactForeignDynamic ArtifactKind = "cdylib"
)

// DeclaredExtern is an explicitly declared external reference: a name the
// compiler should import plus where to find it, independent of the
// dependency graph.
type DeclaredExtern struct {
	// Name is the import name presented to the compiler.
	Name string `json:"name" yaml:"name"`

	// Path is the artifact location. When IsFile is true it refers to a
	// file in the source tree and becomes an implicit dependency.
	Path string `json:"path" yaml:"path"`

	// IsFile marks Path as a tracked source-tree file.
	IsFile bool `json:"is_file,omitempty" yaml:"is_file,omitempty"`
}

// FlagSet carries the per-configuration free-form values that are
// concatenated, in declared precedence order and without deduplication,
// into the synthesized build edge.
type FlagSet struct {
	// Flags are compiler flags.
	Flags []string `json:"flags,omitempty" yaml:"flags,omitempty"`

	// Env are KEY=VALUE environment entries for the compile command.
	Env []string `json:"env,omitempty" yaml:"env,omitempty"`

	// LdFlags are linker flags.
	LdFlags []string `json:"ldflags,omitempty" yaml:"ldflags,omitempty"`

	// Externs are declared external references.
	Externs []DeclaredExtern `json:"externs,omitempty" yaml:"externs,omitempty"`
}

// ModuleDef is the parsed definition of a module target.
type ModuleDef struct {
	// Name is the module (crate) name presented to the compiler.
	Name string `json:"name"`

	// Category is the declared output category.
	Category OutputCategory `json:"category"`

	// Artifact overrides the automatic artifact-kind mapping when set.
	Artifact ArtifactKind `json:"artifact,omitempty"`

	// EntryRoot is the designated root source file; it is the only
	// explicit input of the compile command.
	EntryRoot string `json:"entry_root"`

	// Sources are all declared source files. Everything except EntryRoot
	// contributes implicit dependencies only.
	Sources []string `json:"sources,omitempty"`

	// Inputs are additional non-source input files.
	Inputs []string `json:"inputs,omitempty"`

	// PublicDeps are dependencies re-exposed to this module's dependents.
	PublicDeps []Label `json:"public_deps,omitempty"`

	// PrivateDeps are dependencies kept internal to this module.
	PrivateDeps []Label `json:"private_deps,omitempty"`

	// ExtraObjects are raw object artifacts attached directly to the link,
	// not produced by a sub-target.
	ExtraObjects []string `json:"extra_objects,omitempty"`

	// Aliases maps a dependency label to the import name this module uses
	// for it instead of the dependency's own declared name.
	Aliases map[Label]string `json:"aliases,omitempty"`

	// ConfigRefs is the configuration chain, in declared precedence order.
	ConfigRefs []Label `json:"configs,omitempty"`

	// Values are the module's own flag set, which precedes the
	// configuration chain.
	Values FlagSet `json:"values,omitempty"`

	// OutputDir is the directory the module's artifacts are written to,
	// relative to the build root.
	OutputDir string `json:"output_dir,omitempty"`

	// Toolchain names the toolchain that builds this module.
	Toolchain Label `json:"toolchain,omitempty"`

	// Pool names the resource pool the compile command runs in.
	Pool Label `json:"pool,omitempty"`

	// Visibility lists label patterns allowed to depend on this module.
	// Empty means unrestricted.
	Visibility []string `json:"visibility,omitempty"`
}

// Deps returns the declared direct dependencies in declaration order,
// public deps first. The bool reports whether the edge is public.
func (m *ModuleDef) Deps() []DepRef {
	deps := make([]DepRef, 0, len(m.PublicDeps)+len(m.PrivateDeps))
	for _, l := range m.PublicDeps {
		deps = append(deps, DepRef{Label: l, Public: true})
	}
	for _, l := range m.PrivateDeps {
		deps = append(deps, DepRef{Label: l})
	}
	return deps
}

// AliasFor returns the import name this module declares for dep, or dep's
// own name when no alias exists.
func (m *ModuleDef) AliasFor(dep Label, depName string) string {
	if alias, ok := m.Aliases[dep]; ok {
		return alias
	}
	return depName
}

// DepRef is one declared dependency edge of a module.
type DepRef struct {
	// Label is the dependency's fully-qualified name.
	Label Label `json:"label"`

	// Public reports whether the edge re-exposes the dependency to this
	// module's own dependents.
	Public bool `json:"public"`
}

// ConfigFragment is the parsed definition of a configuration fragment.
type ConfigFragment struct {
	// Name is the fragment name.
	Name string `json:"name"`

	// Values are the flag values this fragment contributes.
	Values FlagSet `json:"values"`
}

// Tool describes one concrete compiler or linker invocation template of a
// toolchain.
type Tool struct {
	// Name is the tool name, e.g. "module_bin".
	Name string `json:"name" yaml:"name"`

	// Command is the invocation template.
	Command string `json:"command" yaml:"command"`

	// Description is the short progress description template.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Outputs are the output file templates.
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// OutputExtension is the default artifact extension, with leading dot.
	OutputExtension string `json:"output_extension,omitempty" yaml:"output_extension,omitempty"`

	// LibDirs are library search paths configured on the tool; they are
	// appended after all graph-derived link arguments.
	LibDirs []string `json:"lib_dirs,omitempty" yaml:"lib_dirs,omitempty"`

	// Libs are library names configured on the tool, appended last.
	Libs []string `json:"libs,omitempty" yaml:"libs,omitempty"`
}

// ToolchainDef is the parsed definition of a toolchain.
type ToolchainDef struct {
	// Name is the toolchain name.
	Name string `json:"name"`

	// Tools maps tool name to its description.
	Tools map[string]*Tool `json:"tools"`
}

// ToolForCategory returns the tool a toolchain uses for a module of the
// given output category, or nil if the toolchain does not define one.
func (tc *ToolchainDef) ToolForCategory(cat OutputCategory) *Tool {
	if tc == nil {
		return nil
	}
	switch cat {
	case CategoryExecutable:
		return tc.Tools["module_bin"]
	case CategoryStaticLibrary:
		return tc.Tools["module_staticlib"]
	case CategoryModuleLibrary, CategoryMacroModule:
		return tc.Tools["module_lib"]
	case CategoryDynamicModule:
		return tc.Tools["module_dylib"]
	default:
		return nil
	}
}

// PoolDef is the parsed definition of a build-executor resource pool.
type PoolDef struct {
	// Name is the pool name.
	Name string `json:"name"`

	// Depth is the maximum number of concurrent edges in the pool.
	Depth int `json:"depth"`
}
