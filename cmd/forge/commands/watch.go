package commands

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openforge/openforge/pkg/policy"
)

// watchDebounce coalesces editor save bursts into one regeneration.
const watchDebounce = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var (
		outFile      string
		toolchain    string
		workers      int
		policyPaths  []string
		skipPolicies bool
	)

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Regenerate build edges on description changes",
		Long: `Watch a source tree for description-file changes and regenerate the
build edges on every change. Changes are debounced so a burst of saves
triggers one regeneration.

Generation failures are logged and watching continues; the previous
output file is left in place. When --policy paths are set, edits to
those policy files also trigger a regeneration.`,
		Example: `  # Watch the current directory
  forge watch --out build.forge

  # Watch a tree with run history
  forge watch ./src --out build.forge --db forge.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runWatch(cmd.Context(), root, outFile, toolchain, workers, policyPaths, skipPolicies)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "build.forge", "output edge file path")
	cmd.Flags().StringVar(&toolchain, "toolchain", "", "default toolchain label for modules that name none")
	cmd.Flags().IntVar(&workers, "workers", 0, "description workers (default: number of CPUs)")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")
	cmd.Flags().BoolVar(&skipPolicies, "no-policy", false, "skip policy enforcement")

	return cmd
}

func runWatch(ctx context.Context, root, outFile, toolchain string, workers int, policyPaths []string, skipPolicies bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watchTree(watcher, root); err != nil {
		return err
	}

	// Initial generation before waiting for changes. Description debounce
	// and policy reload fire from separate goroutines; the mutex keeps one
	// regeneration in flight at a time.
	var genMu sync.Mutex
	generate := func() {
		genMu.Lock()
		defer genMu.Unlock()
		if err := runGen(ctx, root, outFile, toolchain, workers, policyPaths, skipPolicies); err != nil {
			log.Error().Err(err).Msg("Generation failed")
		}
	}
	generate()

	// Edited policy files regenerate too, not just description changes.
	if !skipPolicies && len(policyPaths) > 0 {
		policyLoader := policy.NewLoader(log.Logger)
		err := policyLoader.Watch(ctx, policyPaths, func(policies []policy.Policy) error {
			log.Info().Int("policies", len(policies)).Msg("Policies reloaded, regenerating")
			generate()
			return nil
		})
		if err != nil {
			return err
		}
		defer policyLoader.StopWatching()
	}

	log.Info().Str("root", root).Msg("Watching for description changes")

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantChange(event) {
				continue
			}
			// New directories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if err := watchTree(watcher, event.Name); err != nil {
					log.Debug().Err(err).Str("path", event.Name).Msg("Failed to extend watch")
				}
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Description change detected")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, generate)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// watchTree registers path and every non-hidden subdirectory with the
// watcher. Non-directory paths are ignored.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// relevantChange reports whether the event concerns a description file or
// a directory that may contain them.
func relevantChange(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	switch filepath.Ext(event.Name) {
	case ".cue", ".star", ".yaml", ".yml":
		return true
	}
	// Directory events carry no extension; treat them as relevant so new
	// package directories are picked up.
	return filepath.Ext(event.Name) == ""
}
