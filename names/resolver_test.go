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

package names

import (
	"testing"

	"github.com/btfgen/btfgen/graph"
)

func TestResolveNameMemoizes(t *testing.T) {
	r := NewResolver()
	got1 := r.ResolveName(graph.KindStruct, 5, "foo")
	got2 := r.ResolveName(graph.KindStruct, 5, "foo")
	if got1 != "foo" || got2 != "foo" {
		t.Fatalf("got %q, %q, want %q, %q", got1, got2, "foo", "foo")
	}
}

func TestResolveNameCollisionSuffixes(t *testing.T) {
	r := NewResolver()
	first := r.ResolveName(graph.KindStruct, 1, "foo")
	second := r.ResolveName(graph.KindStruct, 2, "foo")
	third := r.ResolveName(graph.KindStruct, 3, "foo")

	if first != "foo" {
		t.Errorf("first = %q, want %q", first, "foo")
	}
	if second != "foo__2" {
		t.Errorf("second = %q, want %q", second, "foo__2")
	}
	if third != "foo__3" {
		t.Errorf("third = %q, want %q", third, "foo__3")
	}
}

func TestResolveNameAnonymousNeverCollides(t *testing.T) {
	r := NewResolver()
	a := r.ResolveName(graph.KindStruct, 1, "")
	b := r.ResolveName(graph.KindStruct, 2, "")
	if a != "" || b != "" {
		t.Fatalf("got %q, %q, want both empty", a, b)
	}
}

func TestResolveNameSeparateNamespaces(t *testing.T) {
	r := NewResolver()
	tag := r.ResolveName(graph.KindStruct, 1, "foo")
	typedefName := r.ResolveName(graph.KindTypedef, 2, "foo")
	if tag != "foo" || typedefName != "foo" {
		t.Fatalf("tag and typedef namespaces collided: tag=%q typedef=%q", tag, typedefName)
	}
}

func TestResolveEnumeratorNameAlwaysConsumesCounter(t *testing.T) {
	r := NewResolver()
	// No collision yet: plain name.
	first := r.ResolveEnumeratorName("RED", "color", true)
	if first != "RED" {
		t.Fatalf("first = %q, want %q", first, "RED")
	}
	// A typedef named RED now collides with the counter the enumerator
	// consumed, even though nothing printed "RED" twice yet.
	typedefRED := r.ResolveName(graph.KindTypedef, 99, "RED")
	if typedefRED != "RED__2" {
		t.Fatalf("typedefRED = %q, want %q", typedefRED, "RED__2")
	}
}

func TestResolveEnumeratorNameCollisionNamedEnum(t *testing.T) {
	r := NewResolver()
	r.ResolveName(graph.KindTypedef, 1, "GREEN") // occupies the slot first.
	got := r.ResolveEnumeratorName("GREEN", "color", true)
	if got != "GREEN__color" {
		t.Fatalf("got %q, want %q", got, "GREEN__color")
	}
}

func TestResolveEnumeratorNameCollisionAnonymousEnum(t *testing.T) {
	r := NewResolver()
	r.ResolveName(graph.KindTypedef, 1, "BLUE")
	got := r.ResolveEnumeratorName("BLUE", "", false)
	if got != "BLUE__2" {
		t.Fatalf("got %q, want %q", got, "BLUE__2")
	}
}

func TestNamesWithPrefix(t *testing.T) {
	r := NewResolver()
	r.ResolveName(graph.KindStruct, 1, "foo_bar")
	r.ResolveName(graph.KindStruct, 2, "foo_baz")
	r.ResolveName(graph.KindStruct, 3, "other")

	got := r.NamesWithPrefix(Composite, "foo_")
	if len(got) != 2 {
		t.Fatalf("NamesWithPrefix returned %v, want 2 entries", got)
	}
}
