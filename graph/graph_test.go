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

package graph

import "testing"

func TestNewRejectsMissingVoidSentinel(t *testing.T) {
	_, err := New([]Node{Int{Name: "int", Bits: 32}}, 8)
	if err == nil {
		t.Fatal("New: got nil error, want error for missing Void sentinel")
	}
}

func TestNewRejectsBadPointerSize(t *testing.T) {
	_, err := New([]Node{VoidType{}}, 3)
	if err == nil {
		t.Fatal("New: got nil error, want error for unsupported pointer size")
	}
}

func TestSizeOfPrimitives(t *testing.T) {
	g, err := New([]Node{
		VoidType{},
		Int{Name: "int", Bits: 32},       // id 1
		Ptr{Target: 1},                   // id 2
		Array{Element: 1, Nelems: 4},     // id 3
		Typedef{Name: "u32", Target: 1},  // id 4
	}, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		id   ID
		want uint32
	}{
		{0, 0},
		{1, 4},
		{2, 8},
		{3, 16},
		{4, 4},
	}
	for _, c := range cases {
		got, err := g.SizeOf(c.id)
		if err != nil {
			t.Errorf("SizeOf(%d): %v", c.id, err)
			continue
		}
		if got != c.want {
			t.Errorf("SizeOf(%d) = %d, want %d", c.id, got, c.want)
		}
	}
}

func TestAlignOfCompositeIsMaxMemberAlign(t *testing.T) {
	g, err := New([]Node{
		VoidType{},
		Int{Name: "char", Bits: 8},  // id 1
		Int{Name: "int", Bits: 32}, // id 2
		Struct{Name: "s", Members: []Member{
			{Name: "a", Type: 1},
			{Name: "b", Type: 2},
		}}, // id 3
	}, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := g.AlignOf(3)
	if err != nil {
		t.Fatalf("AlignOf: %v", err)
	}
	if got != 4 {
		t.Errorf("AlignOf(struct) = %d, want 4", got)
	}
}

func TestAlignOfEmptyCompositeIsOne(t *testing.T) {
	g, err := New([]Node{VoidType{}, Struct{Name: "empty"}}, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := g.AlignOf(1)
	if err != nil {
		t.Fatalf("AlignOf: %v", err)
	}
	if got != 1 {
		t.Errorf("AlignOf(empty struct) = %d, want 1", got)
	}
}

func TestAlignOfIntClampedByPointerSize(t *testing.T) {
	g, err := New([]Node{VoidType{}, Int{Name: "long long", Bits: 64}}, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := g.AlignOf(1)
	if err != nil {
		t.Fatalf("AlignOf: %v", err)
	}
	if got != 4 {
		t.Errorf("AlignOf(64-bit int on 32-bit target) = %d, want 4", got)
	}
}

func TestTypeByIDOutOfRange(t *testing.T) {
	g, err := New([]Node{VoidType{}}, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.TypeByID(5); err == nil {
		t.Fatal("TypeByID: got nil error, want error for out-of-range id")
	}
}
