package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func moduleItem(label Label) *Item {
	return &Item{
		Kind:  ItemModule,
		Label: label,
		Module: &ModuleDef{
			Name:      string(label[2:]),
			Category:  CategoryModuleLibrary,
			EntryRoot: "lib.rs",
		},
	}
}

func configItem(label Label) *Item {
	return &Item{Kind: ItemConfig, Label: label, Config: &ConfigFragment{Name: string(label)}}
}

func TestResolver_SingleItem(t *testing.T) {
	r := NewResolver(testLogger())

	if err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := r.Finish()
	if err != nil {
		t.Fatalf("Expected Finish to succeed, got: %v", err)
	}
	if result.Declared != 1 {
		t.Errorf("Expected 1 declared record, got %d", result.Declared)
	}
	if len(result.Modules) != 1 {
		t.Errorf("Expected 1 resolved module, got %d", len(result.Modules))
	}
}

func TestResolver_ForwardReference(t *testing.T) {
	r := NewResolver(testLogger())

	// The edge names //b before //b's definition is loaded.
	if err := r.AddEdge(ModuleIdentity("//a"), ModuleIdentity("//b")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if r.Get(ModuleIdentity("//a")).Resolved() {
		t.Error("Expected //a unresolved while //b is a placeholder")
	}

	if err := r.AttachItem(ModuleIdentity("//b"), moduleItem("//b")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := r.Finish(); err != nil {
		t.Fatalf("Expected Finish to succeed, got: %v", err)
	}
	if !r.Get(ModuleIdentity("//a")).Resolved() {
		t.Error("Expected //a resolved after //b attached")
	}
}

func TestResolver_DiamondPropagation(t *testing.T) {
	// app -> {left, right} -> base; base attaches last.
	r := NewResolver(testLogger())

	edges := [][2]Label{
		{"//app", "//left"},
		{"//app", "//right"},
		{"//left", "//base"},
		{"//right", "//base"},
	}
	for _, e := range edges {
		if err := r.AddEdge(ModuleIdentity(e[0]), ModuleIdentity(e[1])); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", e[0], e[1], err)
		}
	}
	for _, l := range []Label{"//app", "//left", "//right", "//base"} {
		if err := r.AttachItem(ModuleIdentity(l), moduleItem(l)); err != nil {
			t.Fatalf("AttachItem(%s): %v", l, err)
		}
	}

	result, err := r.Finish()
	if err != nil {
		t.Fatalf("Expected Finish to succeed, got: %v", err)
	}
	if len(result.Modules) != 4 {
		t.Errorf("Expected 4 resolved modules, got %d", len(result.Modules))
	}
	// Modules come back sorted by label for deterministic generation.
	for i := 1; i < len(result.Modules); i++ {
		if result.Modules[i-1].Label() > result.Modules[i].Label() {
			t.Errorf("Expected sorted modules, got %s before %s",
				result.Modules[i-1].Label(), result.Modules[i].Label())
		}
	}
}

func TestResolver_DuplicateEdgeIdempotent(t *testing.T) {
	r := NewResolver(testLogger())

	if err := r.AddEdge(ModuleIdentity("//a"), ModuleIdentity("//b")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AddEdge(ModuleIdentity("//a"), ModuleIdentity("//b")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	a := r.Get(ModuleIdentity("//a"))
	if a.unresolvedCount != 1 {
		t.Errorf("Expected unresolved count 1 after duplicate edge, got %d", a.unresolvedCount)
	}

	// A single attach of //b must fully unblock //a.
	if err := r.AttachItem(ModuleIdentity("//b"), moduleItem("//b")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := r.Finish(); err != nil {
		t.Fatalf("Expected Finish to succeed, got: %v", err)
	}
}

func TestResolver_CycleReported(t *testing.T) {
	r := NewResolver(testLogger())

	if err := r.AddEdge(ModuleIdentity("//a"), ModuleIdentity("//b")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AddEdge(ModuleIdentity("//b"), ModuleIdentity("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AttachItem(ModuleIdentity("//b"), moduleItem("//b")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err := r.Finish()
	if err == nil {
		t.Fatal("Expected Finish to fail on cycle")
	}

	stalled := Stalled(err)
	if stalled == nil {
		t.Fatalf("Expected StalledError, got: %v", err)
	}
	if len(stalled.Records) != 2 {
		t.Fatalf("Expected both cycle members reported, got %d", len(stalled.Records))
	}

	byLabel := make(map[Label]StalledRecord)
	for _, sr := range stalled.Records {
		byLabel[sr.Identity.Label] = sr
	}
	a, ok := byLabel["//a"]
	if !ok {
		t.Fatal("Expected //a in stalled report")
	}
	b, ok := byLabel["//b"]
	if !ok {
		t.Fatal("Expected //b in stalled report")
	}
	if a.Reason != ReasonCycle || b.Reason != ReasonCycle {
		t.Errorf("Expected cycle reason for both, got %s and %s", a.Reason, b.Reason)
	}
	if len(a.UnresolvedDeps) != 1 || a.UnresolvedDeps[0].Label != "//b" {
		t.Errorf("Expected //a waiting on //b, got %v", a.UnresolvedDeps)
	}
	if len(b.UnresolvedDeps) != 1 || b.UnresolvedDeps[0].Label != "//a" {
		t.Errorf("Expected //b waiting on //a, got %v", b.UnresolvedDeps)
	}
}

func TestResolver_UndeclaredReference(t *testing.T) {
	r := NewResolver(testLogger())

	if err := r.AddEdge(ModuleIdentity("//a"), ModuleIdentity("//ghost")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err := r.Finish()
	stalled := Stalled(err)
	if stalled == nil {
		t.Fatalf("Expected StalledError, got: %v", err)
	}

	for _, sr := range stalled.Records {
		if sr.Reason != ReasonUndeclared {
			t.Errorf("Expected undeclared reason for %s, got %s", sr.Identity, sr.Reason)
		}
	}
}

func TestResolver_LateEdgeFault(t *testing.T) {
	r := NewResolver(testLogger())

	if err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	err := r.AddEdge(ModuleIdentity("//a"), ModuleIdentity("//b"))
	if err == nil {
		t.Fatal("Expected late-edge fault")
	}
	var ge *GraphError
	if !errors.As(err, &ge) || ge.Code != ErrCodeLateEdge {
		t.Errorf("Expected %s fault, got: %v", ErrCodeLateEdge, err)
	}

	// The fault poisons the run.
	if _, err := r.Finish(); err == nil {
		t.Error("Expected Finish to surface the recorded fault")
	}
}

func TestResolver_DuplicateAttachFault(t *testing.T) {
	r := NewResolver(testLogger())

	if err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a"))
	if err == nil {
		t.Fatal("Expected duplicate-attach fault")
	}
	var ge *GraphError
	if !errors.As(err, &ge) || ge.Code != ErrCodeDuplicateItem {
		t.Errorf("Expected %s fault, got: %v", ErrCodeDuplicateItem, err)
	}
}

func TestResolver_KindMismatchFault(t *testing.T) {
	r := NewResolver(testLogger())

	err := r.AttachItem(Identity{Kind: ItemConfig, Label: "//a"}, moduleItem("//a"))
	if err == nil {
		t.Fatal("Expected kind-mismatch fault")
	}
	var ge *GraphError
	if !errors.As(err, &ge) || ge.Code != ErrCodeKindMismatch {
		t.Errorf("Expected %s fault, got: %v", ErrCodeKindMismatch, err)
	}
}

func TestResolver_MixedKinds(t *testing.T) {
	r := NewResolver(testLogger())

	cfg := Identity{Kind: ItemConfig, Label: "//build:release"}
	if err := r.AddEdge(ModuleIdentity("//a"), cfg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AttachItem(cfg, configItem("//build:release")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := r.AttachItem(ModuleIdentity("//a"), moduleItem("//a")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := r.Finish()
	if err != nil {
		t.Fatalf("Expected Finish to succeed, got: %v", err)
	}
	if result.Declared != 2 {
		t.Errorf("Expected 2 declared records, got %d", result.Declared)
	}
	if len(result.Modules) != 1 {
		t.Errorf("Expected only the module record in Modules, got %d", len(result.Modules))
	}
}

// TestResolver_ConcurrentConvergence loads a layered graph from many
// workers in randomized order and checks that the final classification is
// independent of interleaving.
func TestResolver_ConcurrentConvergence(t *testing.T) {
	const layers = 8
	const perLayer = 12
	const workers = 16

	label := func(layer, i int) Label {
		return Label(fmt.Sprintf("//layer%d:mod%d", layer, i))
	}

	type unit struct {
		id   Identity
		deps []Identity
		item *Item
	}

	var units []unit
	for layer := 0; layer < layers; layer++ {
		for i := 0; i < perLayer; i++ {
			l := label(layer, i)
			u := unit{id: ModuleIdentity(l), item: moduleItem(l)}
			if layer > 0 {
				// Depend on a few modules of the previous layer.
				for d := 0; d < 3; d++ {
					u.deps = append(u.deps, ModuleIdentity(label(layer-1, (i+d)%perLayer)))
				}
			}
			units = append(units, u)
		}
	}

	for trial := 0; trial < 4; trial++ {
		r := NewResolver(testLogger())

		shuffled := make([]unit, len(units))
		copy(shuffled, units)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		work := make(chan unit, len(shuffled))
		for _, u := range shuffled {
			work <- u
		}
		close(work)

		var wg sync.WaitGroup
		errCh := make(chan error, len(shuffled))
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for u := range work {
					for _, d := range u.deps {
						if err := r.AddEdge(u.id, d); err != nil {
							errCh <- err
							return
						}
					}
					if err := r.AttachItem(u.id, u.item); err != nil {
						errCh <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errCh)
		for err := range errCh {
			t.Fatalf("Trial %d: worker error: %v", trial, err)
		}

		result, err := r.Finish()
		if err != nil {
			t.Fatalf("Trial %d: expected Finish to succeed, got: %v", trial, err)
		}
		if len(result.Modules) != layers*perLayer {
			t.Fatalf("Trial %d: expected %d resolved modules, got %d",
				trial, layers*perLayer, len(result.Modules))
		}
	}
}
