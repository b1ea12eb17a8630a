// Package policy provides Open Policy Agent (OPA) integration for OpenForge.
//
// This package enforces governance rules over the resolved target graph
// using the Rego policy language. It ships built-in policies for common
// graph hygiene requirements and supports loading custom policies from
// files and directories.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files and directories
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined policies for common requirements
//
// # Usage
//
// Creating a policy engine and evaluating a resolved graph:
//
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := engine.EvaluateGraph(ctx, resolver, graphResult.Modules)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s violated by %s: %s\n",
//	            violation.Policy, violation.Target, violation.Message)
//	    }
//	}
//
// Each module target is projected into a TargetSummary input document.
// Dependency edges carry the dependency's own category and visibility so
// policies can reason about edges without access to the graph itself.
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. target-naming - Module names must be valid compiler identifiers
//  2. dependency-visibility - Edges must satisfy the dependency's visibility list
//  3. entry-root-required - Compiled categories must declare an entry root
//  4. no-binary-deps - Executables cannot be depended upon
//  5. dependency-budget - Warns about very wide direct fan-out
//
// # Custom Policies
//
// Custom policies can be written in Rego and loaded from files:
//
//	package custom.policies.layering
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.target
//	    target := input.target
//	    some dep in target.deps
//
//	    # UI targets may not reach into storage directly
//	    startswith(target.label, "//ui/")
//	    startswith(dep.label, "//storage/")
//
//	    violation := {
//	        "message": sprintf("%s may not depend on storage target %s", [target.label, dep.label]),
//	        "severity": "error",
//	        "target": target.label,
//	    }
//	}
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: Informational messages
//   - warning: Issues that should be reviewed but don't block generation
//   - error: Issues that block generation
//   - critical: Severe issues requiring immediate attention
//
// A graph is Allowed when no violation reaches error or critical severity.
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.LoadPolicies(ctx, paths)
//	})
//
// # Performance
//
// Policies are compiled once at load time and reused across evaluations.
// Compile errors surface when a policy is loaded, not on first use.
package policy
