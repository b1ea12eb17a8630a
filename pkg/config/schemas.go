package config

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for description validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("target", builtinTargetSchema)
	sr.RegisterSchema("config", builtinConfigSchema)
	sr.RegisterSchema("pool", builtinPoolSchema)
	sr.RegisterSchema("toolchain", builtinToolchainSchema)
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	// Unify with schema (validates)
	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// Built-in schema definitions

const builtinTargetSchema = `
// Target schema for module target declarations
#Target: {
	// Name is the module name presented to the compiler
	name: string & =~"^[a-zA-Z0-9_]+$"

	// Category is the declared output category
	category: "executable" | "static_library" | "module_library" | "macro_module" | "dynamic_module" | "framework" | "group"

	// Artifact overrides the automatic artifact-kind mapping
	artifact?: "bin" | "staticlib" | "rlib" | "proc-macro" | "dylib" | "cdylib"

	// EntryRoot is the designated root source file
	entry_root?: string

	sources?: [...string]
	inputs?: [...string]
	public_deps?: [...#Label]
	deps?: [...#Label]
	extra_objects?: [...string]
	aliases?: {[#Label]: string}
	configs?: [...#Label]
	flags?: [...string]
	env?: [...string]
	ldflags?: [...string]
	externs?: [...#Extern]
	output_dir?: string
	toolchain?: #Label
	pool?: #Label
	visibility?: [...string]
}

#Label: string & =~"^//"

#Extern: {
	name:     string
	path:     string
	is_file?: bool
}
`

const builtinConfigSchema = `
// Config schema for configuration fragment declarations
#Config: {
	flags?: [...string]
	env?: [...string]
	ldflags?: [...string]
	externs?: [...{name: string, path: string, is_file?: bool}]
}
`

const builtinPoolSchema = `
// Pool schema for resource pool declarations
#Pool: {
	// Depth is the maximum number of concurrent edges in the pool
	depth: int & >0
}
`

const builtinToolchainSchema = `
// Toolchain schema for toolchain declarations
#Toolchain: {
	// Name is the toolchain name
	name: string & =~"^[a-zA-Z0-9_-]+$"

	// Tools maps tool name to its invocation description
	tools: {[string]: #Tool}
}

#Tool: {
	name:              string
	command:           string
	description?:      string
	outputs?: [...string]
	output_extension?: string
	lib_dirs?: [...string]
	libs?: [...string]
}
`

// ValidateTarget validates a target declaration against the target schema.
func (sr *SchemaRegistry) ValidateTarget(ctx context.Context, target TargetDecl) error {
	return sr.ValidateAgainstSchema(ctx, "target", target)
}

// ValidateConfig validates a fragment declaration against the config schema.
func (sr *SchemaRegistry) ValidateConfig(ctx context.Context, cfg ConfigDecl) error {
	return sr.ValidateAgainstSchema(ctx, "config", cfg)
}

// ValidatePool validates a pool declaration against the pool schema.
func (sr *SchemaRegistry) ValidatePool(ctx context.Context, pool PoolDecl) error {
	return sr.ValidateAgainstSchema(ctx, "pool", pool)
}
