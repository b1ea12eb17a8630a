package gen

import (
	"fmt"
	"io"
	"strings"

	"github.com/openforge/openforge/pkg/graph"
)

// ExternRef is one named external reference presented to the compiler's
// import mechanism.
type ExternRef struct {
	// Name is the import name (alias-aware for graph-derived references).
	Name string `json:"name"`

	// Path is the artifact location.
	Path string `json:"path"`
}

// BuildEdge is the synthesized build-edge description for one module
// target: everything the downstream executor needs to compile it.
type BuildEdge struct {
	// Target is the module target's label.
	Target graph.Label `json:"target"`

	// Rule is the tool name the edge invokes.
	Rule string `json:"rule"`

	// ModuleName is the module (crate) name variable.
	ModuleName string `json:"module_name"`

	// Artifact is the resolved artifact kind.
	Artifact graph.ArtifactKind `json:"artifact"`

	// OutputExtension is the artifact extension, possibly empty.
	OutputExtension string `json:"output_extension"`

	// OutputDir is the artifact directory relative to the build root.
	OutputDir string `json:"output_dir"`

	// Pool is the resource pool the compile command runs in, if any.
	Pool string `json:"pool,omitempty"`

	// Flags is the free-form flag concatenation in precedence order,
	// deliberately not deduplicated.
	Flags []string `json:"flags"`

	// Env is the KEY=VALUE environment concatenation in precedence order.
	Env []string `json:"env"`

	// ExplicitInput is the designated entry root source, the only explicit
	// input of the compile command.
	ExplicitInput string `json:"explicit_input"`

	// Outputs are the resolved tool output files.
	Outputs []string `json:"outputs"`

	// ImplicitDeps cause recompilation when they change.
	ImplicitDeps []string `json:"implicit_deps"`

	// OrderOnlyDeps must exist before compilation but do not trigger it.
	OrderOnlyDeps []string `json:"orderonly_deps"`

	// Externs are the named external references, in emission order:
	// graph-derived direct deps, accessible transitive modules, then
	// declared externs.
	Externs []ExternRef `json:"externs"`

	// LinkSearchDirs are the private search paths covering every
	// transitive module, named or not.
	LinkSearchDirs []string `json:"link_search_dirs"`

	// NativeSearchDirs are search paths for foreign link-input
	// directories, emitted before any raw foreign link argument.
	NativeSearchDirs []string `json:"native_search_dirs"`

	// ForeignInputs are non-module link inputs passed as raw linker
	// arguments.
	ForeignInputs []string `json:"foreign_inputs"`

	// RequiresDynamic is true iff any foreign link input exists; the
	// "allow dynamic linking" directive is emitted exactly once before
	// listing them.
	RequiresDynamic bool `json:"requires_dynamic"`

	// ToolLibDirs are library search paths configured on the tool,
	// appended after all graph-derived link arguments.
	ToolLibDirs []string `json:"tool_lib_dirs"`

	// ToolLibs are library names configured on the tool, appended last.
	ToolLibs []string `json:"tool_libs"`

	// LdFlags is the linker-flag concatenation in precedence order.
	LdFlags []string `json:"ldflags"`

	// Sources is the trailing full source and input list.
	Sources []string `json:"sources"`
}

// escapeValue escapes a value for a tool-invocation context. The rule
// matches the executor's command parser: '$' becomes '$$', a space becomes
// '$ ' and ':' becomes '$:'.
func escapeValue(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '$':
			b.WriteString("$$")
		case ' ':
			b.WriteString("$ ")
		case ':':
			b.WriteString("$:")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// writeVar writes one "name = value" line. The line is always emitted,
// even when the value is empty: field names, ordering, and emptiness
// handling are part of the compatibility surface.
func writeVar(w io.Writer, name, value string) error {
	_, err := fmt.Fprintf(w, "%s = %s\n", name, value)
	return err
}

func writeListVar(w io.Writer, name string, values []string) error {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = escapeValue(v)
	}
	return writeVar(w, name, strings.Join(escaped, " "))
}

// WriteTo renders the edge as "name = value" lines in the fixed section
// order: compiler vars, sources/inputs, externs, rustdeps/link-search,
// ldflags.
func (e *BuildEdge) WriteTo(w io.Writer) error {
	// Compiler vars.
	if err := writeVar(w, "rule", e.Rule); err != nil {
		return err
	}
	if err := writeVar(w, "crate_name", escapeValue(e.ModuleName)); err != nil {
		return err
	}
	if err := writeVar(w, "crate_type", string(e.Artifact)); err != nil {
		return err
	}
	if err := writeVar(w, "output_extension", escapeValue(e.OutputExtension)); err != nil {
		return err
	}
	if err := writeVar(w, "output_dir", escapeValue(e.OutputDir)); err != nil {
		return err
	}
	if err := writeVar(w, "pool", escapeValue(e.Pool)); err != nil {
		return err
	}
	if err := writeListVar(w, "rustflags", e.Flags); err != nil {
		return err
	}
	if err := writeListVar(w, "rustenv", e.Env); err != nil {
		return err
	}

	// Sources and inputs.
	if err := writeVar(w, "source", escapeValue(e.ExplicitInput)); err != nil {
		return err
	}
	if err := writeListVar(w, "outputs", e.Outputs); err != nil {
		return err
	}
	if err := writeListVar(w, "implicit_deps", e.ImplicitDeps); err != nil {
		return err
	}
	if err := writeListVar(w, "orderonly_deps", e.OrderOnlyDeps); err != nil {
		return err
	}

	// Externs.
	var externs []string
	for _, ex := range e.Externs {
		externs = append(externs, "--extern", ex.Name+"="+escapeValue(ex.Path))
	}
	if err := writeVar(w, "externs", strings.Join(externs, " ")); err != nil {
		return err
	}

	// Link search paths and link arguments.
	var rustdeps []string
	for _, dir := range e.LinkSearchDirs {
		rustdeps = append(rustdeps, "-Ldependency="+escapeValue(dir))
	}
	// Native search dirs come before any raw foreign link argument so the
	// linker can resolve link directives embedded in module objects.
	for _, dir := range e.NativeSearchDirs {
		rustdeps = append(rustdeps, "-Lnative="+escapeValue(dir))
	}
	if e.RequiresDynamic {
		// A prior stage may have left the linker in static-only mode.
		rustdeps = append(rustdeps, "-Clink-arg=-Bdynamic")
	}
	for _, in := range e.ForeignInputs {
		rustdeps = append(rustdeps, "-Clink-arg="+escapeValue(in))
	}
	for _, dir := range e.ToolLibDirs {
		rustdeps = append(rustdeps, "-L"+escapeValue(dir))
	}
	for _, lib := range e.ToolLibs {
		rustdeps = append(rustdeps, "-l"+escapeValue(lib))
	}
	if err := writeVar(w, "rustdeps", strings.Join(rustdeps, " ")); err != nil {
		return err
	}

	if err := writeListVar(w, "ldflags", e.LdFlags); err != nil {
		return err
	}
	if err := writeListVar(w, "sources", e.Sources); err != nil {
		return err
	}
	return nil
}

// Render returns the rendered edge as a string.
func (e *BuildEdge) Render() string {
	var b strings.Builder
	// strings.Builder never fails.
	_ = e.WriteTo(&b)
	return b.String()
}
