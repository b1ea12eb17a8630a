package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block generation.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Target is the target label that violated the policy.
	Target string `json:"target,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the result of policy evaluation over a graph.
type Result struct {
	// Allowed indicates if generation may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not block.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the per-target input document handed to Rego.
type Input struct {
	// Target is the target under evaluation.
	Target *TargetSummary `json:"target"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// TargetSummary is the policy-visible projection of one module target.
type TargetSummary struct {
	// Label is the target's fully-qualified name.
	Label string `json:"label"`

	// Name is the module name.
	Name string `json:"name"`

	// Category is the declared output category.
	Category string `json:"category"`

	// EntryRoot is the designated root source file, if any.
	EntryRoot string `json:"entry_root,omitempty"`

	// Visibility lists the target's own visibility patterns.
	Visibility []string `json:"visibility,omitempty"`

	// Deps summarizes the target's direct dependencies.
	Deps []DepSummary `json:"deps,omitempty"`
}

// DepSummary is the policy-visible projection of one dependency edge.
type DepSummary struct {
	// Label is the dependency's fully-qualified name.
	Label string `json:"label"`

	// Public reports whether the edge re-exposes the dependency.
	Public bool `json:"public"`

	// Category is the dependency's declared output category.
	Category string `json:"category"`

	// Visibility lists the dependency's visibility patterns. Empty means
	// unrestricted.
	Visibility []string `json:"visibility,omitempty"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the operation being performed (e.g. "gen", "validate").
	Operation string `json:"operation,omitempty"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ValidationError represents a policy validation error.
type ValidationError struct {
	// Field is the field that failed validation.
	Field string `json:"field"`

	// Message describes the validation error.
	Message string `json:"message"`

	// Value is the invalid value.
	Value interface{} `json:"value,omitempty"`
}
