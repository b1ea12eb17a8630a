package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		targetNamingPolicy(),
		dependencyVisibilityPolicy(),
		entryRootPolicy(),
		binaryDependencyPolicy(),
		dependencyBudgetPolicy(),
	}
}

// targetNamingPolicy enforces module naming conventions.
func targetNamingPolicy() Policy {
	return Policy{
		Name:        "target-naming",
		Description: "Enforces module naming conventions (identifier characters, no leading digit)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openforge.policies.naming

import rego.v1

deny contains violation if {
	input.target
	target := input.target

	not target.name
	violation := {
		"message": sprintf("Target %s must declare a module name", [target.label]),
		"severity": "error",
		"target": target.label,
	}
}

deny contains violation if {
	input.target
	target := input.target
	name := target.name

	# Module names become compiler identifiers.
	not regex.match("^[a-zA-Z0-9_]+$", name)
	violation := {
		"message": sprintf("Module name '%s' must contain only letters, digits, and underscores", [name]),
		"severity": "error",
		"target": target.label,
	}
}

deny contains violation if {
	input.target
	target := input.target
	name := target.name

	regex.match("^[0-9]", name)
	violation := {
		"message": sprintf("Module name '%s' must not start with a digit", [name]),
		"severity": "error",
		"target": target.label,
	}
}`,
	}
}

// dependencyVisibilityPolicy enforces declared visibility patterns on edges.
func dependencyVisibilityPolicy() Policy {
	return Policy{
		Name:        "dependency-visibility",
		Description: "Denies dependency edges that violate the dependency's visibility list",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"visibility", "deps"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openforge.policies.visibility

import rego.v1

# An empty visibility list means unrestricted.
deny contains violation if {
	input.target
	target := input.target
	some dep in target.deps

	count(dep.visibility) > 0
	not visible_to(dep, target.label)
	violation := {
		"message": sprintf("Target %s may not depend on %s: not in its visibility list", [target.label, dep.label]),
		"severity": "error",
		"target": target.label,
	}
}

visible_to(dep, _) if {
	some pattern in dep.visibility
	pattern == "*"
}

visible_to(dep, label) if {
	some pattern in dep.visibility
	glob.match(pattern, ["/"], label)
}`,
	}
}

// entryRootPolicy requires an entry root for compiled categories.
func entryRootPolicy() Policy {
	return Policy{
		Name:        "entry-root-required",
		Description: "Requires a designated entry root source for compiled module categories",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"sources", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openforge.policies.entryroot

import rego.v1

compiled_categories := ["executable", "static_library", "module_library", "macro_module", "dynamic_module"]

deny contains violation if {
	input.target
	target := input.target

	some category in compiled_categories
	target.category == category
	not target.entry_root

	violation := {
		"message": sprintf("Target %s (%s) must declare an entry root source file", [target.label, target.category]),
		"severity": "error",
		"target": target.label,
	}
}`,
	}
}

// binaryDependencyPolicy forbids depending on executable targets.
func binaryDependencyPolicy() Policy {
	return Policy{
		Name:        "no-binary-deps",
		Description: "Forbids dependency edges onto executable targets; executables are graph roots",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"deps", "structure"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openforge.policies.binarydeps

import rego.v1

deny contains violation if {
	input.target
	target := input.target
	some dep in target.deps

	dep.category == "executable"
	violation := {
		"message": sprintf("Target %s depends on executable %s; executables cannot be linked into other targets", [target.label, dep.label]),
		"severity": "error",
		"target": target.label,
	}
}`,
	}
}

// dependencyBudgetPolicy warns about targets with very wide direct fan-out.
func dependencyBudgetPolicy() Policy {
	return Policy{
		Name:        "dependency-budget",
		Description: "Warns when a target's direct dependency count suggests it should be split",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"deps", "hygiene"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openforge.policies.depbudget

import rego.v1

max_direct_deps := 50

deny contains violation if {
	input.target
	target := input.target

	count(target.deps) > max_direct_deps
	violation := {
		"message": sprintf("Target %s has %d direct dependencies (budget %d) - consider splitting it", [target.label, count(target.deps), max_direct_deps]),
		"severity": "warning",
		"target": target.label,
	}
}`,
	}
}
