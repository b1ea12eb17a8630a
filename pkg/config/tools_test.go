package config

import (
	"os"
	"path/filepath"
	"testing"
)

const singleToolchain = `
label: "//toolchain:host"
name: host
tools:
  module_bin:
    name: module_bin
    command: "compiler --crate-type bin"
  module_lib:
    name: module_lib
    command: "compiler --crate-type lib"
    output_extension: ".rlib"
`

const multiToolchain = `
toolchains:
  - label: "//toolchain:host"
    name: host
    tools:
      module_bin:
        name: module_bin
        command: "compiler"
  - label: "//toolchain:cross"
    name: cross
    tools:
      module_bin:
        name: module_bin
        command: "cross-compiler"
`

func TestToolchainParser_SingleDecl(t *testing.T) {
	decls, err := NewToolchainParser().Parse("host.yaml", []byte(singleToolchain))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("Expected 1 toolchain, got %d", len(decls))
	}

	decl := decls[0]
	if decl.Label != "//toolchain:host" || decl.Name != "host" {
		t.Errorf("Unexpected decode: %+v", decl)
	}

	tc := decl.ToolchainDef()
	lib, ok := tc.Tools["module_lib"]
	if !ok {
		t.Fatalf("Expected module_lib tool, got %v", tc.Tools)
	}
	if lib.OutputExtension != ".rlib" {
		t.Errorf("Expected .rlib extension, got %q", lib.OutputExtension)
	}
}

func TestToolchainParser_MultiDecl(t *testing.T) {
	decls, err := NewToolchainParser().Parse("toolchains.yaml", []byte(multiToolchain))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(decls) != 2 {
		t.Fatalf("Expected 2 toolchains, got %d", len(decls))
	}
	if decls[1].Label != "//toolchain:cross" {
		t.Errorf("Expected //toolchain:cross second, got %s", decls[1].Label)
	}
}

func TestToolchainParser_MissingToolsRejected(t *testing.T) {
	content := "label: \"//toolchain:empty\"\nname: empty\n"
	if _, err := NewToolchainParser().Parse("empty.yaml", []byte(content)); err == nil {
		t.Error("Expected validation error for toolchain without tools")
	}
}

func TestToolchainParser_MissingLabelRejected(t *testing.T) {
	content := "name: host\ntools:\n  module_bin:\n    name: module_bin\n    command: c\n"
	if _, err := NewToolchainParser().Parse("host.yaml", []byte(content)); err == nil {
		t.Error("Expected validation error for toolchain without a label")
	}
}

func TestToolchainParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.yaml")
	if err := os.WriteFile(path, []byte(singleToolchain), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	decls, err := NewToolchainParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(decls) != 1 {
		t.Errorf("Expected 1 toolchain, got %d", len(decls))
	}
}
