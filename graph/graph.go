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

// Package graph holds the read-only, immutable type graph decoded from a
// BTF blob: a vector of nodes indexed by type id, plus the size/alignment
// queries the rest of the module needs to match a C compiler's view of the
// same types.
package graph

import "fmt"

// ID identifies a node within a Graph. ID 0 is the reserved Void sentinel.
type ID uint32

// Void is the reserved type id representing the absence of a type (a
// function with no return value, or the "no arguments"/vararg marker in a
// parameter list).
const Void ID = 0

// Kind discriminates the BTF node variants. The set is closed: it is fixed
// by the BTF format itself, so consumers are expected to switch
// exhaustively over it rather than grow it.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindPtr
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindFwd
	KindTypedef
	KindVolatile
	KindConst
	KindRestrict
	KindFuncProto
	KindFunc
	KindVar
	KindDatasec
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindPtr:
		return "ptr"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindFwd:
		return "fwd"
	case KindTypedef:
		return "typedef"
	case KindVolatile:
		return "volatile"
	case KindConst:
		return "const"
	case KindRestrict:
		return "restrict"
	case KindFuncProto:
		return "func_proto"
	case KindFunc:
		return "func"
	case KindVar:
		return "var"
	case KindDatasec:
		return "datasec"
	default:
		return "unknown"
	}
}

// IntEncoding is the encoding of a BTF Int node.
type IntEncoding uint8

const (
	EncodingNone IntEncoding = iota
	EncodingSigned
	EncodingChar
	EncodingBool
)

// FwdKind distinguishes a forward declaration's tag keyword.
type FwdKind uint8

const (
	FwdStruct FwdKind = iota
	FwdUnion
)

// VarKind is a BTF_KIND_VAR linkage.
type VarKind uint8

const (
	VarStatic VarKind = iota
	VarGlobalAlloc
	VarGlobalExtern
)

// Member is a struct or union field.
type Member struct {
	Name string
	Type ID
	// BitOffset is the offset of the member from the start of the
	// enclosing composite, in bits.
	BitOffset uint32
	// BitSize is nonzero only for bitfield members.
	BitSize uint32
}

// EnumValue is a single enumerator.
type EnumValue struct {
	Name  string
	Value int32
}

// Param is a function prototype parameter. A Param with Type == Void marks
// either the Clang-BPF "no arguments" convention (the sole parameter of an
// otherwise empty list) or a trailing vararg marker.
type Param struct {
	Name string
	Type ID
}

// DatasecVarInfo describes one variable placed within a BTF_KIND_DATASEC.
type DatasecVarInfo struct {
	Type   ID
	Offset uint32
	Size   uint32
}

// Node is the sum type over BTF kinds (spec §3). It is intentionally
// closed: every concrete type below implements it, and consumers are
// expected to exhaust the kind switch rather than reach for a default case
// that silently swallows a new variant.
type Node interface {
	Kind() Kind
}

type VoidType struct{}

func (VoidType) Kind() Kind { return KindVoid }

type Int struct {
	Name     string
	Bits     uint32
	Offset   uint32
	Encoding IntEncoding
}

func (Int) Kind() Kind { return KindInt }

type Ptr struct {
	Target ID
}

func (Ptr) Kind() Kind { return KindPtr }

type Array struct {
	Element ID
	Index   ID
	Nelems  uint32
}

func (Array) Kind() Kind { return KindArray }

type Struct struct {
	Name      string
	SizeBytes uint32
	Members   []Member
}

func (Struct) Kind() Kind { return KindStruct }

type Union struct {
	Name      string
	SizeBytes uint32
	Members   []Member
}

func (Union) Kind() Kind { return KindUnion }

type Enum struct {
	Name     string
	SizeBits uint32
	Values   []EnumValue
}

func (Enum) Kind() Kind { return KindEnum }

type Fwd struct {
	Name    string
	FwdKind FwdKind
}

func (Fwd) Kind() Kind { return KindFwd }

type Typedef struct {
	Name   string
	Target ID
}

func (Typedef) Kind() Kind { return KindTypedef }

type Volatile struct{ Target ID }

func (Volatile) Kind() Kind { return KindVolatile }

type Const struct{ Target ID }

func (Const) Kind() Kind { return KindConst }

type Restrict struct{ Target ID }

func (Restrict) Kind() Kind { return KindRestrict }

type FuncProto struct {
	Return ID
	Params []Param
}

func (FuncProto) Kind() Kind { return KindFuncProto }

type Func struct {
	Name  string
	Proto ID
}

func (Func) Kind() Kind { return KindFunc }

type Var struct {
	Name    string
	Type    ID
	VarKind VarKind
}

func (Var) Kind() Kind { return KindVar }

type Datasec struct {
	Name      string
	SizeBytes uint32
	Vars      []DatasecVarInfo
}

func (Datasec) Kind() Kind { return KindDatasec }

// RefError reports a type id that could not be resolved or whose node is
// unsupported by the operation that encountered it. It is the "malformed
// type reference" member of the error taxonomy (spec §7): every failure
// carries the offending id and a human description of the node.
type RefError struct {
	ID     ID
	Reason string
}

func (e *RefError) Error() string {
	return fmt.Sprintf("btfgen: malformed type reference at id %d: %s", e.ID, e.Reason)
}

// Graph is the immutable, indexable type graph built once by the external
// loader (spec §1) and borrowed for the remainder of a run.
type Graph struct {
	nodes   []Node
	ptrSize uint32
}

// New builds a Graph from a fully-populated node slice; nodes[0] must be
// the Void sentinel. ptrSize must be 4 or 8, matching the ELF class the
// BTF blob was produced for.
func New(nodes []Node, ptrSize uint32) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("btfgen: empty type graph")
	}
	if _, ok := nodes[0].(VoidType); !ok {
		return nil, &RefError{ID: 0, Reason: "id 0 must be the Void sentinel"}
	}
	if ptrSize != 4 && ptrSize != 8 {
		return nil, fmt.Errorf("btfgen: unsupported pointer size %d", ptrSize)
	}
	return &Graph{nodes: nodes, ptrSize: ptrSize}, nil
}

// Count returns the number of type ids in the graph, including the Void
// sentinel at id 0.
func (g *Graph) Count() int { return len(g.nodes) }

// PointerSize returns the pointer width in bytes (4 or 8) implied by the
// ELF class the graph was decoded from.
func (g *Graph) PointerSize() uint32 { return g.ptrSize }

// All returns the full node slice, for debug dumping; callers must not
// mutate it.
func (g *Graph) All() []Node { return g.nodes }

// TypeByID resolves id to its node.
func (g *Graph) TypeByID(id ID) (Node, error) {
	if int(id) >= len(g.nodes) {
		return nil, &RefError{ID: id, Reason: "type id out of range"}
	}
	return g.nodes[id], nil
}

// SizeOf returns the size, in bytes, a C compiler would report for sizeof
// of the given type (spec §4.1).
func (g *Graph) SizeOf(id ID) (uint32, error) {
	n, err := g.TypeByID(id)
	if err != nil {
		return 0, err
	}
	switch t := n.(type) {
	case VoidType:
		return 0, nil
	case Int:
		return (t.Bits + 7) / 8, nil
	case Ptr:
		return g.ptrSize, nil
	case Array:
		es, err := g.SizeOf(t.Element)
		if err != nil {
			return 0, err
		}
		return t.Nelems * es, nil
	case Struct:
		return t.SizeBytes, nil
	case Union:
		return t.SizeBytes, nil
	case Enum:
		return (t.SizeBits + 7) / 8, nil
	case Fwd:
		return 0, nil
	case Typedef:
		return g.SizeOf(t.Target)
	case Volatile:
		return g.SizeOf(t.Target)
	case Const:
		return g.SizeOf(t.Target)
	case Restrict:
		return g.SizeOf(t.Target)
	case FuncProto, Func, Var, Datasec:
		return 0, nil
	default:
		return 0, &RefError{ID: id, Reason: fmt.Sprintf("unsupported kind %T for size_of", n)}
	}
}

// AlignOf returns the alignment, in bytes, a C compiler would use for the
// given type (spec §4.1).
func (g *Graph) AlignOf(id ID) (uint32, error) {
	n, err := g.TypeByID(id)
	if err != nil {
		return 0, err
	}
	switch t := n.(type) {
	case Int:
		return minU32(g.ptrSize, (t.Bits+7)/8), nil
	case Enum:
		return minU32(g.ptrSize, (t.SizeBits+7)/8), nil
	case Ptr:
		return g.ptrSize, nil
	case Array:
		return g.AlignOf(t.Element)
	case Struct:
		return g.compositeAlign(t.Members)
	case Union:
		return g.compositeAlign(t.Members)
	case Volatile:
		return g.AlignOf(t.Target)
	case Const:
		return g.AlignOf(t.Target)
	case Restrict:
		return g.AlignOf(t.Target)
	case Typedef:
		return g.AlignOf(t.Target)
	default:
		// Void, Fwd, FuncProto, Func, Var, Datasec carry no alignment.
		return 0, nil
	}
}

func (g *Graph) compositeAlign(members []Member) (uint32, error) {
	if len(members) == 0 {
		return 1, nil
	}
	var max uint32 = 1
	for _, m := range members {
		a, err := g.AlignOf(m.Type)
		if err != nil {
			return 0, err
		}
		if a > max {
			max = a
		}
	}
	return max, nil
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
