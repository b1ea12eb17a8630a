package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleUnit = `
targets: {
	"//app:app": {
		name:       "app"
		category:   "executable"
		entry_root: "app/main.rs"
		sources: ["app/main.rs", "app/util.rs"]
		public_deps: ["//lib:core"]
		configs: ["//cfg:release"]
		toolchain: "//toolchain:host"
		pool:      "//pool:link"
	}
}

configs: {
	"//cfg:release": {
		flags: ["-O2"]
		ldflags: ["-s"]
	}
}

pools: {
	"//pool:link": {depth: 4}
}
`

func TestCUEParser_ParseInline(t *testing.T) {
	unit, err := NewCUEParser().ParseInline(context.Background(), sampleUnit)
	if err != nil {
		t.Fatalf("ParseInline failed: %v", err)
	}
	if len(unit.Errors) > 0 {
		t.Fatalf("Expected no validation errors, got: %v", unit.Errors)
	}

	target, ok := unit.Targets["//app:app"]
	if !ok {
		t.Fatalf("Expected target //app:app, got %v", unit.Targets)
	}
	if target.Name != "app" || target.Category != "executable" {
		t.Errorf("Unexpected target decode: %+v", target)
	}
	if len(target.Sources) != 2 || target.Sources[1] != "app/util.rs" {
		t.Errorf("Expected 2 sources, got %v", target.Sources)
	}
	if len(target.PublicDeps) != 1 || target.PublicDeps[0] != "//lib:core" {
		t.Errorf("Expected public dep //lib:core, got %v", target.PublicDeps)
	}

	cfg, ok := unit.Configs["//cfg:release"]
	if !ok {
		t.Fatalf("Expected config //cfg:release, got %v", unit.Configs)
	}
	if len(cfg.Flags) != 1 || cfg.Flags[0] != "-O2" {
		t.Errorf("Expected flags [-O2], got %v", cfg.Flags)
	}

	pool, ok := unit.Pools["//pool:link"]
	if !ok || pool.Depth != 4 {
		t.Errorf("Expected pool depth 4, got %+v", unit.Pools)
	}
}

func TestCUEParser_TargetDeclToModuleDef(t *testing.T) {
	unit, err := NewCUEParser().ParseInline(context.Background(), sampleUnit)
	if err != nil {
		t.Fatalf("ParseInline failed: %v", err)
	}
	decl := unit.Targets["//app:app"]
	mod := decl.ModuleDef()

	if mod.Name != "app" {
		t.Errorf("Expected module name app, got %s", mod.Name)
	}
	if string(mod.Toolchain) != "//toolchain:host" {
		t.Errorf("Expected toolchain label preserved, got %s", mod.Toolchain)
	}
	deps := mod.Deps()
	if len(deps) != 1 || string(deps[0].Label) != "//lib:core" || !deps[0].Public {
		t.Errorf("Expected one public dep //lib:core, got %v", deps)
	}
}

func TestCUEParser_MissingRequiredField(t *testing.T) {
	content := `
targets: {
	"//app:app": {
		category: "executable"
	}
}
`
	unit, err := NewCUEParser().ParseInline(context.Background(), content)
	if err != nil {
		t.Fatalf("ParseInline failed: %v", err)
	}
	if len(unit.Errors) == 0 {
		t.Fatal("Expected validation error for target without a name")
	}
	if len(unit.Targets) != 0 {
		t.Errorf("Expected invalid target to be dropped, got %v", unit.Targets)
	}
}

func TestCUEParser_InvalidCategory(t *testing.T) {
	content := `
targets: {
	"//app:app": {
		name:     "app"
		category: "shared_library"
	}
}
`
	unit, err := NewCUEParser().ParseInline(context.Background(), content)
	if err != nil {
		t.Fatalf("ParseInline failed: %v", err)
	}
	if len(unit.Errors) == 0 {
		t.Fatal("Expected validation error for unknown category")
	}
}

func TestCUEParser_SyntaxErrorHasLocation(t *testing.T) {
	unit, err := NewCUEParser().ParseInline(context.Background(), "targets: {\n\tbroken\n")
	if err != nil {
		t.Fatalf("ParseInline failed: %v", err)
	}
	if len(unit.Errors) == 0 {
		t.Fatal("Expected parse errors for malformed CUE")
	}
	if unit.Errors[0].Severity != "error" {
		t.Errorf("Expected error severity, got %s", unit.Errors[0].Severity)
	}
}

func TestCUEParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BUILD.cue")
	if err := os.WriteFile(path, []byte(sampleUnit), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	unit, err := NewCUEParser().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if unit.File != path {
		t.Errorf("Expected unit file %s, got %s", path, unit.File)
	}
	if len(unit.Targets) != 1 {
		t.Errorf("Expected 1 target, got %d", len(unit.Targets))
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()
	for _, name := range []string{"target", "config", "pool", "toolchain"} {
		if _, ok := sr.GetSchema(name); !ok {
			t.Errorf("Expected built-in schema %s", name)
		}
	}
	if len(sr.ListSchemas()) < 4 {
		t.Errorf("Expected at least 4 schemas, got %d", len(sr.ListSchemas()))
	}
}

func TestSchemaRegistry_RejectsInvalidSchema(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.RegisterSchema("broken", "a: {"); err == nil {
		t.Error("Expected error compiling malformed schema")
	}
}
