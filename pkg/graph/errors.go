package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorClass classifies a resolution error for propagation policy.
type ErrorClass string

const (
	// ErrorClassConfig indicates a programming error in the core or a
	// malformed upstream input. The graph is no longer trustworthy and the
	// run aborts.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassStalled indicates one or more records never resolved.
	// Detection is deferred to Finish so that legitimate forward
	// references are never mistaken for errors mid-run.
	ErrorClassStalled ErrorClass = "stalled"

	// ErrorClassLoader indicates malformed description content surfaced by
	// a loader worker and propagated as an abort signal.
	ErrorClassLoader ErrorClass = "loader"
)

// Error codes for programmatic handling.
const (
	// ErrCodeLateEdge is returned when an edge is declared on a record
	// that has already resolved.
	ErrCodeLateEdge = "LATE_EDGE"

	// ErrCodeMissingEdge is returned when OnResolvedDep fires without a
	// matching forward edge.
	ErrCodeMissingEdge = "MISSING_EDGE"

	// ErrCodeCountUnderflow is returned when a pending count would drop
	// below zero.
	ErrCodeCountUnderflow = "COUNT_UNDERFLOW"

	// ErrCodeDuplicateItem is returned when a payload is attached twice.
	ErrCodeDuplicateItem = "DUPLICATE_ITEM"

	// ErrCodeKindMismatch is returned when an attached payload does not
	// match the record's declared kind.
	ErrCodeKindMismatch = "KIND_MISMATCH"

	// ErrCodeUnmappedCategory is returned when an output category has no
	// automatic artifact-kind mapping and no explicit override.
	ErrCodeUnmappedCategory = "UNMAPPED_CATEGORY"

	// ErrCodeExternCollision is returned when a declared external
	// reference shares a name with a graph-derived one.
	ErrCodeExternCollision = "EXTERN_COLLISION"

	// ErrCodeMissingTool is returned when a toolchain defines no tool for
	// a target's output category.
	ErrCodeMissingTool = "MISSING_TOOL"
)

// GraphError is a classified resolution or synthesis error.
type GraphError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Record is the identity of the record involved, if applicable.
	Record string `json:"record,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Record != "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s (record=%s): %v", e.Class, e.Message, e.Record, e.Err)
		}
		return fmt.Sprintf("[%s] %s (record=%s)", e.Class, e.Message, e.Record)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *GraphError) Is(target error) bool {
	t, ok := target.(*GraphError)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// WithRecord attaches the identity of the record involved.
func (e *GraphError) WithRecord(id Identity) *GraphError {
	e.Record = id.String()
	return e
}

// WithOperation attaches the operation name.
func (e *GraphError) WithOperation(op string) *GraphError {
	e.Operation = op
	return e
}

// WithCode attaches an error code.
func (e *GraphError) WithCode(code string) *GraphError {
	e.Code = code
	return e
}

// NewConfigFault creates a configuration-fault error.
func NewConfigFault(message string, err error) *GraphError {
	return &GraphError{Class: ErrorClassConfig, Message: message, Err: err}
}

// NewLoaderError creates a loader-fault error.
func NewLoaderError(message string, err error) *GraphError {
	return &GraphError{Class: ErrorClassLoader, Message: message, Err: err}
}

// IsConfigFault reports whether err is a configuration fault.
func IsConfigFault(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.Class == ErrorClassConfig
}

// IsLoaderFault reports whether err is a loader fault.
func IsLoaderFault(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.Class == ErrorClassLoader
}

// StalledReason classifies why a record never resolved.
type StalledReason string

const (
	// ReasonUndeclared means the record waits on a dependency that was
	// named but never defined by any description unit.
	ReasonUndeclared StalledReason = "undeclared"

	// ReasonCycle means every blocker of the record is itself stalled on
	// other members of the stuck set.
	ReasonCycle StalledReason = "cycle"
)

// StalledRecord is the diagnostic entry for one record that never reached
// zero unresolved count, or never received its payload.
type StalledRecord struct {
	// Identity is the stalled record.
	Identity Identity `json:"identity"`

	// UnresolvedDeps are the prerequisites that never completed.
	UnresolvedDeps []Identity `json:"unresolved_deps,omitempty"`

	// Reason classifies the stall.
	Reason StalledReason `json:"reason"`
}

// StalledError is the aggregate Finish failure: every stalled record with
// its root-cause diagnostics, sufficient to reconstruct a cycle or a
// missing-declaration chain.
type StalledError struct {
	// Records are the stalled records, sorted by identity.
	Records []StalledRecord `json:"records"`
}

// Error implements the error interface.
func (e *StalledError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d record(s) never resolved:", ErrorClassStalled, len(e.Records))
	for _, r := range e.Records {
		fmt.Fprintf(&b, "\n  %s (%s)", r.Identity, r.Reason)
		for _, d := range r.UnresolvedDeps {
			fmt.Fprintf(&b, "\n    waiting on %s", d)
		}
	}
	return b.String()
}

// Stalled returns the stalled diagnostics from err, or nil if err is not a
// stalled-graph failure.
func Stalled(err error) *StalledError {
	se, ok := err.(*StalledError)
	if ok {
		return se
	}
	return nil
}

func sortStalled(records []StalledRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Identity.Kind != records[j].Identity.Kind {
			return records[i].Identity.Kind < records[j].Identity.Kind
		}
		return records[i].Identity.Label < records[j].Identity.Label
	})
}
