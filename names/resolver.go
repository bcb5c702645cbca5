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

// Package names assigns unique, collision-free identifiers within each C
// namespace a BTF entity can land in: tags (struct/union/enum/fwd),
// ordinary identifiers (typedefs and enumerators), and function names
// (spec §4.2).
package names

import (
	"fmt"

	"github.com/derekparker/trie"

	"github.com/btfgen/btfgen/graph"
)

// Namespace is one of C's identifier namespaces, as relevant to emitted
// declarations.
type Namespace uint8

const (
	// Composite covers struct, union and enum tags, plus forward
	// declarations, which all share C's single "tag" namespace.
	Composite Namespace = iota
	// Typedef covers typedef names and enumerators, which share C's
	// "ordinary identifier" namespace.
	Typedef
	// Func covers function names.
	Func
)

// Resolver assigns and memoizes resolved names. A Resolver is not safe for
// concurrent use; the driver that owns it runs a single sequential pass.
type Resolver struct {
	// counters indexes each namespace by a trie keyed on the original
	// name, whose node Meta holds the current version count. A trie
	// rather than a bare map both tracks membership and supports the
	// prefix queries used for debug traces (NamesWithPrefix).
	counters map[Namespace]*trie.Trie

	resolved map[graph.ID]string
	done     map[graph.ID]bool
}

// NewResolver returns an empty Resolver with all three namespaces primed.
func NewResolver() *Resolver {
	return &Resolver{
		counters: map[Namespace]*trie.Trie{
			Composite: trie.New(),
			Typedef:   trie.New(),
			Func:      trie.New(),
		},
		resolved: make(map[graph.ID]string),
		done:     make(map[graph.ID]bool),
	}
}

// NamespaceFor maps a node kind to the namespace its resolved name
// competes in.
func NamespaceFor(k graph.Kind) Namespace {
	switch k {
	case graph.KindStruct, graph.KindUnion, graph.KindEnum, graph.KindFwd:
		return Composite
	case graph.KindFunc:
		return Func
	default:
		return Typedef
	}
}

// version increments and returns the running counter for (ns, original).
// An empty original name never collides with anything and always reports
// version 1, since an anonymous entity has no identifier to share.
func (r *Resolver) version(ns Namespace, original string) int {
	if original == "" {
		return 1
	}
	t := r.counters[ns]
	if n, ok := t.Find(original); ok {
		v := n.Meta().(int) + 1
		t.Add(original, v)
		return v
	}
	t.Add(original, 1)
	return 1
}

// ResolveName returns the unique name for id, computing and memoizing it
// on first call (spec §4.2). kind is the node's own kind (used to pick the
// namespace) and original is its raw, possibly-empty, BTF name.
func (r *Resolver) ResolveName(kind graph.Kind, id graph.ID, original string) string {
	if r.done[id] {
		return r.resolved[id]
	}
	var name string
	if original == "" {
		name = ""
	} else {
		v := r.version(NamespaceFor(kind), original)
		if v == 1 {
			name = original
		} else {
			name = fmt.Sprintf("%s__%d", original, v)
		}
	}
	r.resolved[id] = name
	r.done[id] = true
	return name
}

// ResolveEnumeratorName resolves one enumerator's name. Every enumerator
// competes in the Typedef namespace regardless of whether it collides;
// the counter is consumed unconditionally (a quirk of the original
// implementation preserved for output stability, spec §9). On collision,
// a named enclosing enum yields "<enumerator>__<resolved_enum_name>"; an
// anonymous one falls back to "<enumerator>__<version>".
func (r *Resolver) ResolveEnumeratorName(enumerator, resolvedEnumName string, enumNamed bool) string {
	v := r.version(Typedef, enumerator)
	if v == 1 {
		return enumerator
	}
	if enumNamed {
		return fmt.Sprintf("%s__%s", enumerator, resolvedEnumName)
	}
	return fmt.Sprintf("%s__%d", enumerator, v)
}

// NamesWithPrefix lists every name already assigned in ns that starts with
// prefix, for verbose debug tracing.
func (r *Resolver) NamesWithPrefix(ns Namespace, prefix string) []string {
	return r.counters[ns].PrefixSearch(prefix)
}
