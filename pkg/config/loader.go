package config

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openforge/openforge/pkg/graph"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Workers is the number of parallel description workers. Defaults to
	// the number of CPUs.
	Workers int `json:"workers"`

	// StarlarkTimeout bounds each Starlark description evaluation.
	StarlarkTimeout time.Duration `json:"starlark_timeout"`
}

// Loader parses description files in parallel and feeds them into the
// resolver. One worker handles one file end to end, so all of a target's
// edges are declared before its payload attaches; forward references to
// targets in files not yet loaded are handled by the resolver.
type Loader struct {
	cue      *CUEParser
	star     *StarlarkEvaluator
	tools    *ToolchainParser
	resolver *graph.Resolver
	logger   zerolog.Logger
	workers  int
}

// NewLoader creates a loader feeding the given resolver.
func NewLoader(resolver *graph.Resolver, logger zerolog.Logger, opts LoaderOptions) *Loader {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Loader{
		cue:      NewCUEParser(),
		star:     NewStarlarkEvaluator(opts.StarlarkTimeout),
		tools:    NewToolchainParser(),
		resolver: resolver,
		logger:   logger.With().Str("component", "loader").Logger(),
		workers:  workers,
	}
}

// LoadRoot discovers and loads every description file under root.
func (l *Loader) LoadRoot(ctx context.Context, root string) error {
	files, err := DiscoverUnits(root)
	if err != nil {
		return err
	}
	return l.LoadUnits(ctx, files)
}

// LoadUnits loads the given description files with the configured number
// of workers. The first failure cancels the remaining work and is
// returned; the resolver is poisoned by configuration faults on its own.
func (l *Loader) LoadUnits(ctx context.Context, files []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
			cancel()
		default:
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := l.loadUnit(ctx, path); err != nil {
					fail(err)
				}
			}
		}()
	}

feed:
	for _, f := range files {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- f:
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.Debug().Int("files", len(files)).Msg("Description files loaded")
	return nil
}

// loadUnit parses one file by extension and registers it.
func (l *Loader) loadUnit(ctx context.Context, path string) error {
	switch filepath.Ext(path) {
	case ".cue":
		unit, err := l.cue.ParseFile(ctx, path)
		if err != nil {
			return graph.NewLoaderError("failed to parse description file", err)
		}
		return l.registerUnit(unit)
	case ".star":
		unit, err := l.star.EvaluateUnit(ctx, path)
		if err != nil {
			return graph.NewLoaderError("failed to evaluate description file", err)
		}
		return l.registerUnit(unit)
	case ".yaml", ".yml":
		decls, err := l.tools.ParseFile(path)
		if err != nil {
			return graph.NewLoaderError("failed to parse toolchain file", err)
		}
		return l.registerToolchains(decls)
	default:
		return graph.NewLoaderError(fmt.Sprintf("unsupported description file %s", path), nil)
	}
}

// registerUnit declares the unit's items and edges with the resolver.
func (l *Loader) registerUnit(unit *DescriptionUnit) error {
	if len(unit.Errors) > 0 {
		first := unit.Errors[0]
		return graph.NewLoaderError(
			fmt.Sprintf("%s: %d validation error(s), first: %s", unit.File, len(unit.Errors), first.Message), nil)
	}

	for label, decl := range unit.Targets {
		if err := validateLabel(unit.File, label); err != nil {
			return err
		}
		id := graph.ModuleIdentity(graph.Label(label))
		mod := decl.ModuleDef()

		for _, ref := range mod.Deps() {
			if err := l.resolver.AddEdge(id, graph.ModuleIdentity(ref.Label)); err != nil {
				return err
			}
		}
		for _, c := range mod.ConfigRefs {
			if err := l.resolver.AddEdge(id, graph.Identity{Kind: graph.ItemConfig, Label: c}); err != nil {
				return err
			}
		}
		if mod.Toolchain != "" {
			if err := l.resolver.AddEdge(id, graph.Identity{Kind: graph.ItemToolchain, Label: mod.Toolchain}); err != nil {
				return err
			}
		}
		if mod.Pool != "" {
			if err := l.resolver.AddEdge(id, graph.Identity{Kind: graph.ItemPool, Label: mod.Pool}); err != nil {
				return err
			}
		}
		if err := l.resolver.AttachItem(id, decl.Item(graph.Label(label))); err != nil {
			return err
		}
		l.logger.Trace().Str("target", label).Str("file", unit.File).Msg("Target registered")
	}

	for label, decl := range unit.Configs {
		if err := validateLabel(unit.File, label); err != nil {
			return err
		}
		id := graph.Identity{Kind: graph.ItemConfig, Label: graph.Label(label)}
		if err := l.resolver.AttachItem(id, decl.Item(graph.Label(label))); err != nil {
			return err
		}
	}

	for label, decl := range unit.Pools {
		if err := validateLabel(unit.File, label); err != nil {
			return err
		}
		id := graph.Identity{Kind: graph.ItemPool, Label: graph.Label(label)}
		if err := l.resolver.AttachItem(id, decl.Item(graph.Label(label))); err != nil {
			return err
		}
	}

	return nil
}

func (l *Loader) registerToolchains(decls []*ToolchainDecl) error {
	for _, decl := range decls {
		id := graph.Identity{Kind: graph.ItemToolchain, Label: graph.Label(decl.Label)}
		if err := l.resolver.AttachItem(id, decl.Item()); err != nil {
			return err
		}
		l.logger.Trace().Str("toolchain", decl.Label).Msg("Toolchain registered")
	}
	return nil
}

func validateLabel(file, label string) error {
	if !strings.HasPrefix(label, "//") || !strings.Contains(label, ":") {
		return graph.NewLoaderError(
			fmt.Sprintf("%s: malformed label %q, want //dir:name", file, label), nil)
	}
	return nil
}

// DiscoverUnits walks root and returns every description file, skipping
// hidden and underscore-prefixed directories. Order is deterministic
// (WalkDir is lexical) but loading order is not observable: the resolver
// accepts declarations in any order.
func DiscoverUnits(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(name) {
		case ".cue", ".star", ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}
