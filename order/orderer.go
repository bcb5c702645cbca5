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

// Package order implements the type-graph dependency orderer (spec §4.3):
// a tri-state DFS that topologically sorts named definitions, classifying
// each edge as strong (embedding) or weak (pointer), and that fails on any
// cycle a pointer or an anonymous-composite boundary cannot break.
package order

import (
	"fmt"

	"github.com/btfgen/btfgen/graph"
)

type colorState uint8

const (
	notOrdered colorState = iota
	ordering
	ordered
)

// CycleError reports an unsatisfiable cycle: a non-pointer-broken cycle,
// or one that closes through an anonymous composite or a non-composite
// node already mid-traversal.
type CycleError struct {
	ID   graph.ID
	Node graph.Node
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("btfgen: unsatisfiable cycle at type id %d (%T)", e.ID, e.Node)
}

// Filter decides whether a root id should be ordered at all.
type Filter func(graph.ID, graph.Node) bool

// Orderer runs the dependency ordering pass over a Graph. Build a fresh
// Orderer per run; its internal state vector is not reusable across runs.
type Orderer struct {
	g     *graph.Graph
	state []colorState
	order []graph.ID
}

// New returns an Orderer for g.
func New(g *graph.Graph) *Orderer {
	return &Orderer{g: g, state: make([]colorState, g.Count())}
}

// Order runs the DFS rooted at every id accepted by filter, visited in
// ascending id order, and returns the resulting linear order of
// definitions (spec §4.6 step 1). Every enum reached is appended, so an
// anonymous enum embedded in a composite also appears in the result.
func (o *Orderer) Order(filter Filter) ([]graph.ID, error) {
	for id := graph.ID(1); int(id) < o.g.Count(); id++ {
		n, err := o.g.TypeByID(id)
		if err != nil {
			return nil, err
		}
		if !filter(id, n) {
			continue
		}
		if _, err := o.visit(id, false); err != nil {
			return nil, err
		}
	}
	return o.order, nil
}

// visit implements the algorithm of spec §4.3. It returns whether id was
// resolved via a strong link the caller can rely on having been appended
// to the order already.
func (o *Orderer) visit(id graph.ID, hasPtr bool) (bool, error) {
	n, err := o.g.TypeByID(id)
	if err != nil {
		return false, err
	}

	switch o.state[id] {
	case ordered:
		return true, nil
	case ordering:
		if hasPtr && isNamedComposite(n) {
			return false, nil
		}
		return false, &CycleError{ID: id, Node: n}
	}

	switch t := n.(type) {
	case graph.VoidType, graph.Int, graph.Func, graph.Var, graph.Datasec:
		return false, nil

	case graph.Volatile:
		return o.visit(t.Target, hasPtr)
	case graph.Const:
		return o.visit(t.Target, hasPtr)
	case graph.Restrict:
		return o.visit(t.Target, hasPtr)
	case graph.Array:
		return o.visit(t.Element, hasPtr)

	case graph.Ptr:
		_, err := o.visit(t.Target, true)
		return false, err

	case graph.FuncProto:
		strong := false
		if s, err := o.visit(t.Return, hasPtr); err != nil {
			return false, err
		} else if s {
			strong = true
		}
		for _, p := range t.Params {
			s, err := o.visit(p.Type, hasPtr)
			if err != nil {
				return false, err
			}
			if s {
				strong = true
			}
		}
		return strong, nil

	case graph.Struct:
		return o.visitComposite(id, hasPtr, t.Name, t.Members)
	case graph.Union:
		return o.visitComposite(id, hasPtr, t.Name, t.Members)

	case graph.Enum:
		o.order = append(o.order, id)
		o.state[id] = ordered
		return true, nil

	case graph.Fwd:
		o.order = append(o.order, id)
		o.state[id] = ordered
		return true, nil

	case graph.Typedef:
		childStrong, err := o.visit(t.Target, hasPtr)
		if err != nil {
			return false, err
		}
		if !hasPtr || childStrong {
			o.order = append(o.order, id)
			o.state[id] = ordered
			return true, nil
		}
		return false, nil

	default:
		return false, &graph.RefError{ID: id, Reason: fmt.Sprintf("unsupported kind %T in ordering", n)}
	}
}

// visitComposite handles Struct and Union identically (spec §4.3): a named
// composite reached only through a pointer is left undescended (a forward
// declaration will do); otherwise its members are ordered with has_ptr
// reset, since embedding breaks no cycles but a member reached by pointer
// still does.
func (o *Orderer) visitComposite(id graph.ID, hasPtr bool, name string, members []graph.Member) (bool, error) {
	if hasPtr && name != "" {
		return false, nil
	}
	o.state[id] = ordering
	for _, m := range members {
		if _, err := o.visit(m.Type, false); err != nil {
			return false, err
		}
	}
	if name != "" {
		o.order = append(o.order, id)
	}
	o.state[id] = ordered
	return true, nil
}

func isNamedComposite(n graph.Node) bool {
	switch t := n.(type) {
	case graph.Struct:
		return t.Name != ""
	case graph.Union:
		return t.Name != ""
	}
	return false
}
