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

package cdump

import (
	"bytes"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/btfgen/btfgen/graph"
)

// generateUnifiedDiff renders a readable diff between two header dumps for
// test failure output.
func generateUnifiedDiff(want, got string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	return text
}

func allowAll(graph.ID, graph.Node) bool { return true }

func mustDump(t *testing.T, nodes []graph.Node) string {
	t.Helper()
	g, err := graph.New(nodes, 8)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	var buf bytes.Buffer
	if err := NewDriver(g, Config{}).Dump(&buf, allowAll); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	return buf.String()
}

func TestDumpSimpleStruct(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Int{Name: "int", Bits: 32},
		graph.Struct{Name: "foo", SizeBytes: 4, Members: []graph.Member{{Name: "x", Type: 1}}},
	}
	got := mustDump(t, nodes)
	want := "struct foo {\n\tint x;\n};\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}

func TestDumpTypedefChain(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Int{Name: "int", Bits: 32},
		graph.Typedef{Name: "B", Target: 1},
		graph.Typedef{Name: "A", Target: 2},
	}
	got := mustDump(t, nodes)
	want := "typedef int B;\n\ntypedef B A;\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}

func TestDumpMutualPointerStructsForwardDeclares(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Ptr{Target: 4}, // *B
		graph.Struct{Name: "A", Members: []graph.Member{{Name: "b", Type: 1}}},
		graph.Ptr{Target: 2}, // *A
		graph.Struct{Name: "B", Members: []graph.Member{{Name: "a", Type: 3}}},
	}
	got := mustDump(t, nodes)
	want := "struct B;\n\n" +
		"struct A {\n\tstruct B *b;\n};\n\n" +
		"struct B {\n\tstruct A *a;\n};\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}

func TestDumpNameCollisionSuffixes(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Struct{Name: "foo"},
		graph.Struct{Name: "foo"},
	}
	got := mustDump(t, nodes)
	want := "struct foo {\n};\n\nstruct foo__2 {\n};\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}

func TestDumpBitPaddingFillsReservedGap(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Int{Name: "int", Bits: 32},
		graph.Struct{
			Name:      "padded",
			SizeBytes: 16,
			Members: []graph.Member{
				{Name: "a", Type: 1, BitOffset: 0},
				{Name: "b", Type: 1, BitOffset: 96},
			},
		},
	}
	got := mustDump(t, nodes)
	want := "struct padded {\n\tint a;\n\tlong : 64;\n\tint b;\n};\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}

func TestDumpBlacklistSkipsType(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Struct{Name: "__builtin_va_list"},
		graph.Struct{Name: "kept"},
	}
	g, err := graph.New(nodes, 8)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	var buf bytes.Buffer
	if err := NewDriver(g, Config{}).Dump(&buf, allowAll); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	got := buf.String()
	want := "struct kept {\n};\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}

func TestDumpEmptyEnumIsBodyless(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Enum{Name: "empty_enum", SizeBits: 32},
	}
	got := mustDump(t, nodes)
	want := "enum empty_enum;\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}

func TestDumpFunctionPointerTypedefSpacing(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Int{Name: "int", Bits: 32},
		graph.FuncProto{Return: 1, Params: []graph.Param{{Name: "a", Type: 1}}},
		graph.Ptr{Target: 2},
		graph.Typedef{Name: "fn_t", Target: 3},
	}
	got := mustDump(t, nodes)
	want := "typedef int (*fn_t)(int a);\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}

func TestDumpNamesFilterRestrictsRoots(t *testing.T) {
	nodes := []graph.Node{
		graph.VoidType{},
		graph.Struct{Name: "keep"},
		graph.Struct{Name: "drop"},
	}
	g, err := graph.New(nodes, 8)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	filter := func(_ graph.ID, n graph.Node) bool {
		return DefinitionName(n) == "keep"
	}
	var buf bytes.Buffer
	if err := NewDriver(g, Config{}).Dump(&buf, filter); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	got := buf.String()
	want := "struct keep {\n};\n\n"
	if got != want {
		t.Errorf("Dump mismatch:\n%s", generateUnifiedDiff(want, got))
	}
}
