// Copyright 2024 The btfgen Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package order

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/btfgen/btfgen/graph"
)

func namedDefFilter(_ graph.ID, n graph.Node) bool {
	switch t := n.(type) {
	case graph.Struct:
		return t.Name != ""
	case graph.Union:
		return t.Name != ""
	case graph.Enum:
		return t.Name != ""
	case graph.Fwd:
		return t.Name != ""
	case graph.Typedef:
		return t.Name != ""
	}
	return false
}

func mustGraph(t *testing.T, nodes []graph.Node) *graph.Graph {
	t.Helper()
	g, err := graph.New(nodes, 8)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	return g
}

func TestOrderTypedefChain(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Struct{Name: "C"},                 // id 1
		graph.Typedef{Name: "B", Target: 1},     // id 2
		graph.Typedef{Name: "A", Target: 2},     // id 3
	}
	g := mustGraph(t, nodes)

	got, err := New(g).Order(namedDefFilter)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	want := []graph.ID{1, 2, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderPointerCycleResolved(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Ptr{Target: 4},                                        // id 1: *B
		graph.Struct{Name: "A", Members: []graph.Member{{Name: "b", Type: 1}}}, // id 2
		graph.Ptr{Target: 2},                                        // id 3: *A
		graph.Struct{Name: "B", Members: []graph.Member{{Name: "a", Type: 3}}}, // id 4
	}
	g := mustGraph(t, nodes)

	got, err := New(g).Order(namedDefFilter)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	want := []graph.ID{2, 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderEmbeddedCycleIsFatal(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Struct{Name: "A", Members: []graph.Member{{Name: "b", Type: 2}}}, // id 1
		graph.Struct{Name: "B", Members: []graph.Member{{Name: "a", Type: 1}}}, // id 2
	}
	g := mustGraph(t, nodes)

	_, err := New(g).Order(namedDefFilter)
	if err == nil {
		t.Fatal("Order: got nil error, want a CycleError")
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Order: got %v (%T), want *CycleError", err, err)
	}
}

func TestOrderSelfReferentialStructViaPointer(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Struct{Name: "Node", Members: []graph.Member{
			{Name: "value", Type: 2},
			{Name: "next", Type: 3},
		}}, // id 1
		graph.Int{Name: "int", Bits: 32},
		graph.Ptr{Target: 1}, // id 3: *Node
	}
	g := mustGraph(t, nodes)

	got, err := New(g).Order(namedDefFilter)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	want := []graph.ID{1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
}
