// Package config parses build descriptions and feeds them into the
// dependency graph resolver.
//
// # Overview
//
// A build tree is described by description units: CUE files (declarative)
// and Starlark files (procedural), plus YAML toolchain files for tool
// command templates. Each unit declares targets, configuration fragments,
// and resource pools under fully-qualified labels ("//dir:name").
//
// The Loader discovers description files, parses each on its own worker,
// and registers the results with a graph.Resolver: every edge a target
// implies is declared before the target's payload attaches, and forward
// references to not-yet-loaded files are resolved by the graph layer.
// The first parse or registration failure cancels the remaining work.
//
// # Description Structure
//
// A CUE unit:
//
//	targets: {
//	    "//app:app": {
//	        name:        "app"
//	        category:    "executable"
//	        entry_root:  "app/main.rs"
//	        sources:     ["app/main.rs"]
//	        public_deps: ["//lib:core"]
//	        configs:     ["//cfg:release"]
//	        toolchain:   "//toolchain:host"
//	    }
//	}
//
//	configs: {
//	    "//cfg:release": {flags: ["-O2"]}
//	}
//
// A Starlark unit exports the same sections as globals ("targets",
// "configs", "pools") computed procedurally.
//
// # Validation
//
// Declarations are validated twice: struct tags (validator/v10) on
// decode, and optional CUE schema unification through the
// SchemaRegistry. Errors carry file, line, and description-path context.
//
// # Security
//
// Starlark execution is sandboxed: no filesystem or network access,
// timeout enforcement, print suppressed.
package config
