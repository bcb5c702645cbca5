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

// Package cdump implements the forward-declaration pass (C4), the
// declaration emitter (C5) and the driver (C6) that together turn an
// ordered type graph into a compilable C header.
package cdump

import (
	"bufio"
	"fmt"
	"io"
	"regexp"

	log "github.com/golang/glog"

	"github.com/btfgen/btfgen/graph"
	"github.com/btfgen/btfgen/names"
	"github.com/btfgen/btfgen/order"
)

// FilterFunc decides whether a root type id should be included in the
// dump, on top of the mandatory "is a named definition" check the driver
// always applies (spec §4.6).
type FilterFunc func(graph.ID, graph.Node) bool

// Config configures a Driver.
type Config struct {
	// Blacklist holds the regexes of names to silently skip, both as
	// forward declarations and as definitions (spec §6). Defaults to
	// DefaultBlacklist() when nil.
	Blacklist []*regexp.Regexp
	// AnnotateTypeIDs appends the originating BTF type id as a trailing
	// comment on every emitted definition, a feature of the original
	// Rust implementation this spec was distilled from (SPEC_FULL.md).
	AnnotateTypeIDs bool
	// DebugComments writes skipped-but-harmless situations (blacklisted
	// names, ...) in-band as comment-like traces, per spec §7. Distinct
	// from glog's own -v verbosity, which always receives the same
	// traces as log lines regardless of this flag.
	DebugComments bool
}

type emitState uint8

const (
	notEmitted emitState = iota
	emitting
	emitted
)

// Driver is the C6 component: it orders the requested ids once, then
// replays the order invoking the forward-declaration pass and the
// top-level definition emitter for each. A Driver is single-use: build a
// fresh one (via NewDriver) per Dump call if you need to dump the same
// graph twice, so that name resolution and per-type state start clean.
type Driver struct {
	g        *graph.Graph
	resolver *names.Resolver
	cfg      Config

	w io.Writer

	emitState  []emitState
	fwdEmitted []bool
}

// NewDriver returns a Driver over g configured by cfg.
func NewDriver(g *graph.Graph, cfg Config) *Driver {
	if cfg.Blacklist == nil {
		cfg.Blacklist = DefaultBlacklist()
	}
	return &Driver{
		g:          g,
		resolver:   names.NewResolver(),
		cfg:        cfg,
		emitState:  make([]emitState, g.Count()),
		fwdEmitted: make([]bool, g.Count()),
	}
}

// IsNamedDefinition reports whether n is one of the kinds the driver can
// emit a top-level definition for, and whether it actually carries a tag
// or typedef name (anonymous composites and enums are never top-level
// definitions; they are always inlined at their point of use).
func IsNamedDefinition(n graph.Node) bool {
	return DefinitionName(n) != "" && isDefinitionKind(n)
}

func isDefinitionKind(n graph.Node) bool {
	switch n.(type) {
	case graph.Struct, graph.Union, graph.Enum, graph.Fwd, graph.Typedef:
		return true
	}
	return false
}

// DefinitionName returns n's raw (pre-resolution) name if n is a kind that
// can carry one, or "" otherwise.
func DefinitionName(n graph.Node) string {
	switch t := n.(type) {
	case graph.Struct:
		return t.Name
	case graph.Union:
		return t.Name
	case graph.Enum:
		return t.Name
	case graph.Fwd:
		return t.Name
	case graph.Typedef:
		return t.Name
	}
	return ""
}

func (d *Driver) blacklisted(name string) bool {
	if name == "" {
		return false
	}
	for _, re := range d.cfg.Blacklist {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Dump runs the full pipeline: order every named definition filter
// accepts, then for each ordered id emit its forward declarations (C4)
// followed by its top-level definition (C5), writing to w. Dump writes in
// a single pass; nothing is buffered for re-emission.
func (d *Driver) Dump(w io.Writer, filter FilterFunc) error {
	bw := bufio.NewWriter(w)
	d.w = bw

	rootFilter := func(id graph.ID, n graph.Node) bool {
		return IsNamedDefinition(n) && filter(id, n)
	}

	ord := order.New(d.g)
	seq, err := ord.Order(rootFilter)
	if err != nil {
		return fmt.Errorf("btfgen: ordering failed: %w", err)
	}

	for _, id := range seq {
		n, err := d.g.TypeByID(id)
		if err != nil {
			return err
		}
		if !IsNamedDefinition(n) {
			// Appended by the orderer while following a strong edge
			// (e.g. an anonymous enum member) rather than requested
			// directly; it has already been inlined at its use site.
			continue
		}
		name := DefinitionName(n)
		if d.blacklisted(name) {
			if d.cfg.DebugComments {
				fmt.Fprintf(d.w, "// skipped blacklisted type id %d (%s)\n", id, name)
			}
			log.V(1).Infof("btfgen: skipping blacklisted type id %d (%q)", id, name)
			continue
		}
		if err := d.emitForward(id, id, true); err != nil {
			return fmt.Errorf("btfgen: forward pass for id %d: %w", id, err)
		}
		if err := d.emitTopLevel(id, n); err != nil {
			return fmt.Errorf("btfgen: emitting id %d: %w", id, err)
		}
	}

	return bw.Flush()
}

// emitForward is the C4 forward-declaration pass (spec §4.4). contID is
// the id of the composite currently being defined at the top level, so
// that a self-referential member does not forward-declare its own
// enclosing struct; isDef tells a Struct/Union whether it is being
// descended into as the thing about to be fully defined (true only for
// the initial call from Dump) or merely referenced from within another
// declaration.
func (d *Driver) emitForward(id graph.ID, contID graph.ID, isDef bool) error {
	n, err := d.g.TypeByID(id)
	if err != nil {
		return err
	}

	switch d.emitState[id] {
	case emitted:
		return nil
	case emitting:
		switch t := n.(type) {
		case graph.Struct:
			return d.forwardComposite(id, contID, graph.FwdStruct)
		case graph.Union:
			return d.forwardComposite(id, contID, graph.FwdUnion)
		case graph.Typedef:
			if d.fwdEmitted[id] {
				return nil
			}
			if err := d.emitTypedefDef(id, t); err != nil {
				return err
			}
			d.fwdEmitted[id] = true
			return nil
		default:
			return nil
		}
	}

	switch t := n.(type) {
	case graph.Volatile:
		return d.emitForward(t.Target, contID, false)
	case graph.Const:
		return d.emitForward(t.Target, contID, false)
	case graph.Restrict:
		return d.emitForward(t.Target, contID, false)
	case graph.Ptr:
		return d.emitForward(t.Target, contID, false)
	case graph.Array:
		return d.emitForward(t.Element, contID, false)

	case graph.FuncProto:
		if err := d.emitForward(t.Return, contID, false); err != nil {
			return err
		}
		for _, p := range t.Params {
			if err := d.emitForward(p.Type, contID, false); err != nil {
				return err
			}
		}
		return nil

	case graph.Struct:
		return d.forwardCompositeDescend(id, contID, isDef, t.Name, t.Members, graph.FwdStruct)
	case graph.Union:
		return d.forwardCompositeDescend(id, contID, isDef, t.Name, t.Members, graph.FwdUnion)

	case graph.Enum:
		d.emitState[id] = emitting
		if t.Name != "" {
			if err := d.emitEnumDef(id, t); err != nil {
				return err
			}
		}
		d.emitState[id] = emitted
		return nil

	case graph.Fwd:
		if err := d.emitFwdDef(id, t); err != nil {
			return err
		}
		d.emitState[id] = emitted
		return nil

	case graph.Typedef:
		d.emitState[id] = emitting
		if err := d.emitForward(t.Target, id, false); err != nil {
			return err
		}
		if !d.fwdEmitted[id] {
			if err := d.emitTypedefDef(id, t); err != nil {
				return err
			}
			d.fwdEmitted[id] = true
		}
		d.emitState[id] = emitted
		return nil

	default:
		return nil
	}
}

// forwardComposite emits a bare "struct X;" / "union X;" for id, unless it
// was already forward-declared, or id is the composite currently being
// defined at the top level (self-reference needs no forward). An
// anonymous composite reached this way cannot be forward-declared at all,
// which is fatal.
func (d *Driver) forwardComposite(id, contID graph.ID, fk graph.FwdKind) error {
	if d.fwdEmitted[id] || id == contID {
		return nil
	}
	n, err := d.g.TypeByID(id)
	if err != nil {
		return err
	}
	if d.blacklisted(DefinitionName(n)) {
		return nil
	}
	name := d.resolvedName(id, n)
	if name == "" {
		return &ForwardDeclError{ID: id, Node: n}
	}
	kw := "struct"
	if fk == graph.FwdUnion {
		kw = "union"
	}
	fmt.Fprintf(d.w, "%s %s;\n\n", kw, name)
	d.fwdEmitted[id] = true
	return nil
}

func (d *Driver) forwardCompositeDescend(id, contID graph.ID, isDef bool, name string, members []graph.Member, fk graph.FwdKind) error {
	d.emitState[id] = emitting
	if isDef || name == "" {
		nextCont := id
		if name == "" {
			nextCont = contID
		}
		for _, m := range members {
			if err := d.emitForward(m.Type, nextCont, false); err != nil {
				return err
			}
		}
	} else if err := d.forwardComposite(id, contID, fk); err != nil {
		return err
	}
	d.emitState[id] = notEmitted
	return nil
}

func (d *Driver) emitFwdDef(id graph.ID, t graph.Fwd) error {
	if d.blacklisted(t.Name) {
		return nil
	}
	name := d.resolver.ResolveName(graph.KindFwd, id, t.Name)
	kw := "struct"
	if t.FwdKind == graph.FwdUnion {
		kw = "union"
	}
	fmt.Fprintf(d.w, "%s %s", kw, name)
	d.writeTerminator(id)
	return nil
}

func (d *Driver) emitTypedefDef(id graph.ID, t graph.Typedef) error {
	if d.blacklisted(t.Name) {
		return nil
	}
	name := d.resolver.ResolveName(graph.KindTypedef, id, t.Name)
	decl, err := d.buildDecl(t.Target, name, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.w, "typedef %s", decl)
	d.writeTerminator(id)
	return nil
}

// resolvedName resolves id's name according to its own kind.
func (d *Driver) resolvedName(id graph.ID, n graph.Node) string {
	switch t := n.(type) {
	case graph.Struct:
		return d.resolver.ResolveName(graph.KindStruct, id, t.Name)
	case graph.Union:
		return d.resolver.ResolveName(graph.KindUnion, id, t.Name)
	case graph.Enum:
		return d.resolver.ResolveName(graph.KindEnum, id, t.Name)
	case graph.Fwd:
		return d.resolver.ResolveName(graph.KindFwd, id, t.Name)
	case graph.Typedef:
		return d.resolver.ResolveName(graph.KindTypedef, id, t.Name)
	}
	return ""
}

// emitTopLevel dispatches to the C5 definition emitter for a named
// definition that has already been through the forward pass. Most cases
// already did their real work inside emitForward and are no-ops here; see
// spec §9's note on this split.
func (d *Driver) emitTopLevel(id graph.ID, n graph.Node) error {
	switch t := n.(type) {
	case graph.Struct:
		return d.emitStructDef(id, t)
	case graph.Union:
		return d.emitUnionDef(id, t)
	case graph.Enum:
		return nil // fully emitted by emitForward already.
	case graph.Typedef:
		if d.fwdEmitted[id] {
			return nil
		}
		return d.emitTypedefDef(id, t)
	case graph.Fwd:
		return nil // fully emitted by emitForward already.
	}
	return nil
}

func (d *Driver) writeTerminator(id graph.ID) {
	if d.cfg.AnnotateTypeIDs {
		fmt.Fprintf(d.w, "; /* type id %d */\n\n", id)
		return
	}
	fmt.Fprint(d.w, ";\n\n")
}
