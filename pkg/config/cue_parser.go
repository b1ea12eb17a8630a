package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
)

// CUEParser parses and validates CUE description files.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	return &CUEParser{
		ctx:            cuecontext.New(),
		schemaRegistry: NewSchemaRegistry(),
		validator:      validator.New(),
	}
}

// ParseFile parses a single CUE description file into a unit. Parse and
// validation problems are accumulated on the unit rather than returned:
// a unit with a non-empty Errors list is a loader fault, not a crash.
func (cp *CUEParser) ParseFile(ctx context.Context, path string) (*DescriptionUnit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read description file %s: %w", path, err)
	}
	return cp.parse(ctx, path, string(content))
}

// ParseInline parses inline CUE description content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*DescriptionUnit, error) {
	return cp.parse(ctx, "inline", content)
}

func (cp *CUEParser) parse(ctx context.Context, file, content string) (*DescriptionUnit, error) {
	unit := &DescriptionUnit{File: file, ParsedAt: time.Now()}

	val := cp.ctx.CompileString(content, cue.Filename(file))
	if err := val.Err(); err != nil {
		unit.Errors = cp.convertCUEErrors(err)
		return unit, nil
	}

	cp.extractTargets(val, unit)
	cp.extractConfigs(val, unit)
	cp.extractPools(val, unit)
	return unit, nil
}

func (cp *CUEParser) extractTargets(val cue.Value, unit *DescriptionUnit) {
	targetsVal := val.LookupPath(cue.ParsePath("targets"))
	if !targetsVal.Exists() {
		return
	}

	iter, err := targetsVal.Fields(cue.All())
	if err != nil {
		unit.Errors = append(unit.Errors, ValidationError{
			File:     unit.File,
			Path:     "targets",
			Message:  fmt.Sprintf("failed to iterate targets: %v", err),
			Severity: "error",
		})
		return
	}

	unit.Targets = make(map[string]TargetDecl)
	for iter.Next() {
		label := selectorLabel(iter.Selector().String())
		var decl TargetDecl
		if err := iter.Value().Decode(&decl); err != nil {
			unit.Errors = append(unit.Errors, ValidationError{
				File:     unit.File,
				Path:     "targets." + label,
				Message:  fmt.Sprintf("failed to decode target: %v", err),
				Severity: "error",
			})
			continue
		}
		if err := cp.validator.Struct(decl); err != nil {
			unit.Errors = append(unit.Errors, ValidationError{
				File:     unit.File,
				Path:     "targets." + label,
				Message:  err.Error(),
				Severity: "error",
			})
			continue
		}
		unit.Targets[label] = decl
	}
}

func (cp *CUEParser) extractConfigs(val cue.Value, unit *DescriptionUnit) {
	configsVal := val.LookupPath(cue.ParsePath("configs"))
	if !configsVal.Exists() {
		return
	}

	iter, err := configsVal.Fields(cue.All())
	if err != nil {
		unit.Errors = append(unit.Errors, ValidationError{
			File:     unit.File,
			Path:     "configs",
			Message:  fmt.Sprintf("failed to iterate configs: %v", err),
			Severity: "error",
		})
		return
	}

	unit.Configs = make(map[string]ConfigDecl)
	for iter.Next() {
		label := selectorLabel(iter.Selector().String())
		var decl ConfigDecl
		if err := iter.Value().Decode(&decl); err != nil {
			unit.Errors = append(unit.Errors, ValidationError{
				File:     unit.File,
				Path:     "configs." + label,
				Message:  fmt.Sprintf("failed to decode config: %v", err),
				Severity: "error",
			})
			continue
		}
		unit.Configs[label] = decl
	}
}

func (cp *CUEParser) extractPools(val cue.Value, unit *DescriptionUnit) {
	poolsVal := val.LookupPath(cue.ParsePath("pools"))
	if !poolsVal.Exists() {
		return
	}

	iter, err := poolsVal.Fields(cue.All())
	if err != nil {
		unit.Errors = append(unit.Errors, ValidationError{
			File:     unit.File,
			Path:     "pools",
			Message:  fmt.Sprintf("failed to iterate pools: %v", err),
			Severity: "error",
		})
		return
	}

	unit.Pools = make(map[string]PoolDecl)
	for iter.Next() {
		label := selectorLabel(iter.Selector().String())
		var decl PoolDecl
		if err := iter.Value().Decode(&decl); err != nil {
			unit.Errors = append(unit.Errors, ValidationError{
				File:     unit.File,
				Path:     "pools." + label,
				Message:  fmt.Sprintf("failed to decode pool: %v", err),
				Severity: "error",
			})
			continue
		}
		if err := cp.validator.Struct(decl); err != nil {
			unit.Errors = append(unit.Errors, ValidationError{
				File:     unit.File,
				Path:     "pools." + label,
				Message:  err.Error(),
				Severity: "error",
			})
			continue
		}
		unit.Pools[label] = decl
	}
}

// selectorLabel strips the quoting CUE applies to selectors that are not
// bare identifiers; labels like "//app:app" are always quoted.
func selectorLabel(sel string) string {
	if len(sel) >= 2 && strings.HasPrefix(sel, `"`) && strings.HasSuffix(sel, `"`) {
		return sel[1 : len(sel)-1]
	}
	return sel
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	errs := errors.Errors(err)
	for _, e := range errs {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}
