package config

import (
	"time"

	"github.com/openforge/openforge/pkg/graph"
)

// TargetDecl is the on-disk declaration of one module target inside a
// description unit. Field names match the CUE/Starlark surface.
type TargetDecl struct {
	// Name is the module (crate) name presented to the compiler.
	Name string `json:"name" validate:"required"`

	// Category is the declared output category.
	Category string `json:"category" validate:"required,oneof=executable static_library module_library macro_module dynamic_module framework group"`

	// Artifact overrides the automatic artifact-kind mapping when set.
	Artifact string `json:"artifact,omitempty" validate:"omitempty,oneof=bin staticlib rlib proc-macro dylib cdylib"`

	// EntryRoot is the designated root source file.
	EntryRoot string `json:"entry_root,omitempty"`

	// Sources are all declared source files.
	Sources []string `json:"sources,omitempty"`

	// Inputs are additional non-source input files.
	Inputs []string `json:"inputs,omitempty"`

	// PublicDeps are dependency labels re-exposed to dependents.
	PublicDeps []string `json:"public_deps,omitempty"`

	// Deps are private dependency labels.
	Deps []string `json:"deps,omitempty"`

	// ExtraObjects are raw object artifacts attached directly to the link.
	ExtraObjects []string `json:"extra_objects,omitempty"`

	// Aliases maps a dependency label to the import name used for it.
	Aliases map[string]string `json:"aliases,omitempty"`

	// Configs is the configuration chain, in precedence order.
	Configs []string `json:"configs,omitempty"`

	// Flags are the target's own compiler flags.
	Flags []string `json:"flags,omitempty"`

	// Env are KEY=VALUE environment entries for the compile command.
	Env []string `json:"env,omitempty"`

	// LdFlags are the target's own linker flags.
	LdFlags []string `json:"ldflags,omitempty"`

	// Externs are explicitly declared external references.
	Externs []ExternDecl `json:"externs,omitempty"`

	// OutputDir is the artifact directory relative to the build root.
	OutputDir string `json:"output_dir,omitempty"`

	// Toolchain names the toolchain that builds this target.
	Toolchain string `json:"toolchain,omitempty"`

	// Pool names the resource pool the compile command runs in.
	Pool string `json:"pool,omitempty"`

	// Visibility lists label patterns allowed to depend on this target.
	Visibility []string `json:"visibility,omitempty"`
}

// ExternDecl is one declared external reference.
type ExternDecl struct {
	// Name is the import name presented to the compiler.
	Name string `json:"name" validate:"required"`

	// Path is the artifact location.
	Path string `json:"path" validate:"required"`

	// IsFile marks Path as a tracked source-tree file.
	IsFile bool `json:"is_file,omitempty"`
}

// ConfigDecl is the on-disk declaration of a configuration fragment.
type ConfigDecl struct {
	// Flags are compiler flags contributed by this fragment.
	Flags []string `json:"flags,omitempty"`

	// Env are KEY=VALUE environment entries.
	Env []string `json:"env,omitempty"`

	// LdFlags are linker flags.
	LdFlags []string `json:"ldflags,omitempty"`

	// Externs are declared external references.
	Externs []ExternDecl `json:"externs,omitempty"`
}

// PoolDecl is the on-disk declaration of a build-executor resource pool.
type PoolDecl struct {
	// Depth is the maximum number of concurrent edges in the pool.
	Depth int `json:"depth" validate:"required,min=1"`
}

// DescriptionUnit is the parsed content of one description file. Each unit
// is loaded by exactly one worker and registered atomically with the
// resolver: all of a target's edges are declared before its payload.
type DescriptionUnit struct {
	// File is the source file path.
	File string `json:"file"`

	// Targets maps target label to declaration.
	Targets map[string]TargetDecl `json:"targets,omitempty"`

	// Configs maps configuration-fragment label to declaration.
	Configs map[string]ConfigDecl `json:"configs,omitempty"`

	// Pools maps pool label to declaration.
	Pools map[string]PoolDecl `json:"pools,omitempty"`

	// ParsedAt is when the unit was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists validation errors found while parsing.
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is a parse or validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the description path to the error (e.g. "targets.//app:app").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// StarlarkResult is the outcome of one Starlark script execution.
type StarlarkResult struct {
	// Output holds the script's exported globals.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}

// ModuleDef converts the declaration to its graph payload.
func (t *TargetDecl) ModuleDef() *graph.ModuleDef {
	mod := &graph.ModuleDef{
		Name:         t.Name,
		Category:     graph.OutputCategory(t.Category),
		Artifact:     graph.ArtifactKind(t.Artifact),
		EntryRoot:    t.EntryRoot,
		Sources:      t.Sources,
		Inputs:       t.Inputs,
		PublicDeps:   toLabels(t.PublicDeps),
		PrivateDeps:  toLabels(t.Deps),
		ExtraObjects: t.ExtraObjects,
		ConfigRefs:   toLabels(t.Configs),
		OutputDir:    t.OutputDir,
		Toolchain:    graph.Label(t.Toolchain),
		Pool:         graph.Label(t.Pool),
		Visibility:   t.Visibility,
		Values: graph.FlagSet{
			Flags:   t.Flags,
			Env:     t.Env,
			LdFlags: t.LdFlags,
			Externs: toExterns(t.Externs),
		},
	}
	if len(t.Aliases) > 0 {
		mod.Aliases = make(map[graph.Label]string, len(t.Aliases))
		for dep, alias := range t.Aliases {
			mod.Aliases[graph.Label(dep)] = alias
		}
	}
	return mod
}

// Item wraps the declaration as an attachable graph item.
func (t *TargetDecl) Item(label graph.Label) *graph.Item {
	return &graph.Item{Kind: graph.ItemModule, Label: label, Module: t.ModuleDef()}
}

// Item wraps the fragment as an attachable graph item.
func (c *ConfigDecl) Item(label graph.Label) *graph.Item {
	return &graph.Item{
		Kind:  graph.ItemConfig,
		Label: label,
		Config: &graph.ConfigFragment{
			Name: string(label),
			Values: graph.FlagSet{
				Flags:   c.Flags,
				Env:     c.Env,
				LdFlags: c.LdFlags,
				Externs: toExterns(c.Externs),
			},
		},
	}
}

// Item wraps the pool as an attachable graph item.
func (p *PoolDecl) Item(label graph.Label) *graph.Item {
	return &graph.Item{
		Kind:  graph.ItemPool,
		Label: label,
		Pool:  &graph.PoolDef{Name: string(label), Depth: p.Depth},
	}
}

func toLabels(in []string) []graph.Label {
	if len(in) == 0 {
		return nil
	}
	out := make([]graph.Label, len(in))
	for i, s := range in {
		out[i] = graph.Label(s)
	}
	return out
}

func toExterns(in []ExternDecl) []graph.DeclaredExtern {
	if len(in) == 0 {
		return nil
	}
	out := make([]graph.DeclaredExtern, len(in))
	for i, e := range in {
		out[i] = graph.DeclaredExtern{Name: e.Name, Path: e.Path, IsFile: e.IsFile}
	}
	return out
}
