package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openforge/openforge/pkg/graph"
)

// ToolchainDecl is the on-disk declaration of a toolchain, carried in a
// YAML file rather than a description unit: tool command templates are
// host configuration, not build description.
type ToolchainDecl struct {
	// Label is the toolchain's fully-qualified name.
	Label string `yaml:"label" json:"label" validate:"required,startswith=//"`

	// Name is the toolchain name.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Tools maps tool name to its invocation description.
	Tools map[string]*graph.Tool `yaml:"tools" json:"tools" validate:"required,min=1"`
}

// ToolchainDef converts the declaration to its graph payload.
func (t *ToolchainDecl) ToolchainDef() *graph.ToolchainDef {
	tools := make(map[string]*graph.Tool, len(t.Tools))
	for name, tool := range t.Tools {
		cp := *tool
		if cp.Name == "" {
			cp.Name = name
		}
		tools[name] = &cp
	}
	return &graph.ToolchainDef{Name: t.Name, Tools: tools}
}

// Item wraps the declaration as an attachable graph item.
func (t *ToolchainDecl) Item() *graph.Item {
	return &graph.Item{
		Kind:      graph.ItemToolchain,
		Label:     graph.Label(t.Label),
		Toolchain: t.ToolchainDef(),
	}
}

// ToolchainParser parses YAML toolchain files.
type ToolchainParser struct {
	validator *validator.Validate
}

// NewToolchainParser creates a new toolchain parser.
func NewToolchainParser() *ToolchainParser {
	return &ToolchainParser{validator: validator.New()}
}

// ParseFile parses one YAML toolchain file. A file may declare a single
// toolchain or a "toolchains" list.
func (tp *ToolchainParser) ParseFile(path string) ([]*ToolchainDecl, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read toolchain file %s: %w", path, err)
	}
	return tp.Parse(path, content)
}

// Parse parses YAML toolchain content.
func (tp *ToolchainParser) Parse(path string, content []byte) ([]*ToolchainDecl, error) {
	var multi struct {
		Toolchains []*ToolchainDecl `yaml:"toolchains"`
	}
	if err := yaml.Unmarshal(content, &multi); err != nil {
		return nil, fmt.Errorf("failed to parse toolchain file %s: %w", path, err)
	}

	decls := multi.Toolchains
	if len(decls) == 0 {
		var single ToolchainDecl
		if err := yaml.Unmarshal(content, &single); err != nil {
			return nil, fmt.Errorf("failed to parse toolchain file %s: %w", path, err)
		}
		if single.Label == "" && single.Name == "" {
			return nil, fmt.Errorf("toolchain file %s declares no toolchains", path)
		}
		decls = []*ToolchainDecl{&single}
	}

	for _, decl := range decls {
		if err := tp.validator.Struct(decl); err != nil {
			return nil, fmt.Errorf("toolchain %s in %s failed validation: %w", decl.Label, path, err)
		}
	}
	return decls, nil
}
