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
	"fmt"
	"io"
	"strings"

	"github.com/btfgen/btfgen/graph"
)

// emitStructDef writes a full struct definition, including padding and
// packedness (spec §4.5.2, §4.5.3).
func (d *Driver) emitStructDef(id graph.ID, t graph.Struct) error {
	if d.blacklisted(t.Name) {
		return nil
	}
	name := d.resolver.ResolveName(graph.KindStruct, id, t.Name)
	packed, err := d.isPacked(id, t.SizeBytes, t.Members)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.w, "struct %s ", name)
	if err := d.writeCompositeBody(d.w, t.Members, 0, packed, true); err != nil {
		return err
	}
	d.writeTerminator(id)
	d.emitState[id] = emitted
	return nil
}

// emitUnionDef writes a full union definition. Unions never need padding
// (every member starts at bit offset 0) and are never packed in the sense
// isPacked checks for struct layout.
func (d *Driver) emitUnionDef(id graph.ID, t graph.Union) error {
	if d.blacklisted(t.Name) {
		return nil
	}
	name := d.resolver.ResolveName(graph.KindUnion, id, t.Name)
	fmt.Fprintf(d.w, "union %s ", name)
	if err := d.writeCompositeBody(d.w, t.Members, 0, false, false); err != nil {
		return err
	}
	d.writeTerminator(id)
	d.emitState[id] = emitted
	return nil
}

func (d *Driver) emitEnumDef(id graph.ID, t graph.Enum) error {
	if d.blacklisted(t.Name) {
		return nil
	}
	name := d.resolver.ResolveName(graph.KindEnum, id, t.Name)
	if len(t.Values) == 0 {
		// An enum forward-declared but never given a value list decodes
		// with vlen == 0; ISO C rejects "enum X {}" so this stays bodyless.
		fmt.Fprintf(d.w, "enum %s", name)
		d.writeTerminator(id)
		return nil
	}
	fmt.Fprintf(d.w, "enum %s {\n", name)
	for _, ev := range t.Values {
		writeIndent(d.w, 1)
		enName := d.resolver.ResolveEnumeratorName(ev.Name, name, true)
		fmt.Fprintf(d.w, "%s = %d,\n", enName, ev.Value)
	}
	writeIndent(d.w, 0)
	fmt.Fprint(d.w, "}")
	d.writeTerminator(id)
	return nil
}

// writeCompositeBody writes "{ ... }" for a struct or union's member list,
// at the given indent level. withPadding enables bitfield gap-filling
// (struct semantics); packed additionally suppresses the compiler's
// natural alignment padding and appends the packed attribute.
func (d *Driver) writeCompositeBody(w io.Writer, members []graph.Member, level int, packed, withPadding bool) error {
	fmt.Fprint(w, "{\n")
	var cur uint32
	for _, m := range members {
		if withPadding {
			if err := d.writeBitPadding(w, cur, m, packed, level+1); err != nil {
				return err
			}
		}
		writeIndent(w, level+1)
		decl, err := d.buildDecl(m.Type, m.Name, level+1)
		if err != nil {
			return err
		}
		fmt.Fprint(w, decl)
		if m.BitSize > 0 {
			fmt.Fprintf(w, " : %d", m.BitSize)
			cur = m.BitOffset + m.BitSize
		} else if withPadding {
			sz, err := d.g.SizeOf(m.Type)
			if err != nil {
				return err
			}
			cur = m.BitOffset + sz*8
		}
		fmt.Fprint(w, ";\n")
	}
	writeIndent(w, level)
	fmt.Fprint(w, "}")
	if packed {
		fmt.Fprint(w, " __attribute__((packed))")
	}
	return nil
}

// inlineComposite builds the "struct { ... }" / "union { ... }" text for an
// anonymous composite referenced inline at its point of use (spec §4.5.4).
func (d *Driver) inlineComposite(id graph.ID, kw string, members []graph.Member, level int) (string, error) {
	var packed bool
	var err error
	withPadding := kw == "struct"
	if withPadding {
		sz, serr := d.g.SizeOf(id)
		if serr != nil {
			return "", serr
		}
		packed, err = d.isPacked(id, sz, members)
		if err != nil {
			return "", err
		}
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s ", kw)
	if err := d.writeCompositeBody(&buf, members, level, packed, withPadding); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Driver) inlineEnum(t graph.Enum, level int) string {
	if len(t.Values) == 0 {
		return "enum"
	}
	var buf strings.Builder
	fmt.Fprint(&buf, "enum {\n")
	for _, ev := range t.Values {
		writeIndent(&buf, level+1)
		enName := d.resolver.ResolveEnumeratorName(ev.Name, "", false)
		fmt.Fprintf(&buf, "%s = %d,\n", enName, ev.Value)
	}
	writeIndent(&buf, level)
	fmt.Fprint(&buf, "}")
	return buf.String()
}

// isPacked implements spec §4.5.3: a struct needs __attribute__((packed))
// when its own size is not a multiple of its natural alignment, or when any
// non-bitfield member sits at an offset its own alignment would not permit.
func (d *Driver) isPacked(id graph.ID, sizeBytes uint32, members []graph.Member) (bool, error) {
	align, err := d.g.AlignOf(id)
	if err != nil {
		return false, err
	}
	if align != 0 && sizeBytes%align != 0 {
		return true, nil
	}
	for _, m := range members {
		if m.BitSize > 0 {
			continue
		}
		ma, err := d.g.AlignOf(m.Type)
		if err != nil {
			return false, err
		}
		if ma != 0 && m.BitOffset%(ma*8) != 0 {
			return true, nil
		}
	}
	return false, nil
}

// writeBitPadding implements spec §4.5.2: fill the gap between cur (the bit
// offset immediately after the previous member) and m.BitOffset with
// anonymous bitfields, choosing the widest chunk that fits the remaining
// gap at each step. A purely natural-alignment gap ahead of a non-bitfield
// member in an unpacked struct needs no explicit padding; the C compiler
// already supplies it.
func (d *Driver) writeBitPadding(w io.Writer, cur uint32, m graph.Member, packed bool, level int) error {
	gap := m.BitOffset - cur
	if gap == 0 {
		return nil
	}
	if m.BitSize == 0 && !packed {
		ma, err := d.g.AlignOf(m.Type)
		if err != nil {
			return err
		}
		if ma != 0 && gap < ma*8 {
			return nil
		}
	}
	ptrBits := d.g.PointerSize() * 8
	remaining := gap
	for remaining > 0 {
		var chunk uint32
		switch {
		case ptrBits > 32 && remaining > 32:
			chunk = ptrBits
		case remaining > 16:
			chunk = 32
		case remaining > 8:
			chunk = 16
		default:
			chunk = 8
		}
		width := remaining % chunk
		if width == 0 {
			width = chunk
		}
		writeIndent(w, level)
		fmt.Fprintf(w, "%s : %d;\n", bitfieldChunkTypeName(chunk, ptrBits), width)
		remaining -= width
	}
	return nil
}

func bitfieldChunkTypeName(chunk, ptrBits uint32) string {
	switch {
	case chunk == ptrBits && chunk > 32:
		return "long"
	case chunk == 32:
		return "int"
	case chunk == 16:
		return "short"
	default:
		return "char"
	}
}

// buildDecl renders a C declarator for id bound to name, the "spiral rule"
// machinery of spec §4.5.1: it walks from the outermost wrapper (pointer,
// qualifier, array, function prototype) down to the base type, pushing each
// id onto a stack, then unwinds the stack back out emitting declarator
// syntax as it goes.
func (d *Driver) buildDecl(id graph.ID, name string, level int) (string, error) {
	var stack []graph.ID
	cur := id
	for {
		stack = append(stack, cur)
		n, err := d.g.TypeByID(cur)
		if err != nil {
			return "", err
		}
		switch t := n.(type) {
		case graph.Ptr:
			cur = t.Target
		case graph.Volatile:
			cur = t.Target
		case graph.Const:
			cur = t.Target
		case graph.Restrict:
			cur = t.Target
		case graph.Array:
			cur = t.Element
		case graph.FuncProto:
			cur = t.Return
		default:
			return d.emitDeclChain(stack, name, level)
		}
	}
}

func (d *Driver) emitDeclChain(stack []graph.ID, name string, level int) (string, error) {
	i := len(stack) - 1 // index of the base type.

	// Consume consecutive qualifiers immediately wrapping the base type
	// as a leading prefix on the base type text ("const int", not
	// "int const") -- spec §4.5.1.
	j := i - 1
	var prefix strings.Builder
	for j >= 0 {
		n, err := d.g.TypeByID(stack[j])
		if err != nil {
			return "", err
		}
		if !isQualifier(n) {
			break
		}
		prefix.WriteString(qualifierKeyword(n))
		prefix.WriteByte(' ')
		j--
	}

	baseNode, err := d.g.TypeByID(stack[i])
	if err != nil {
		return "", err
	}
	baseText, err := d.baseTypeText(stack[i], baseNode, level)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	buf.WriteString(prefix.String())
	buf.WriteString(baseText)
	if err := d.emitRest(&buf, stack, j, name, level); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// emitRest processes the declarator chain outward from stack[idx] (already
// past any base-adjacent qualifier prefix consumed by emitDeclChain) down
// to the outermost wrapper, finally appending name.
func (d *Driver) emitRest(buf *strings.Builder, stack []graph.ID, idx int, name string, level int) error {
	if idx < 0 {
		appendName(buf, name)
		return nil
	}
	n, err := d.g.TypeByID(stack[idx])
	if err != nil {
		return err
	}
	switch t := n.(type) {
	case graph.Ptr:
		if s := buf.String(); len(s) > 0 && s[len(s)-1] != '*' && s[len(s)-1] != '(' {
			buf.WriteByte(' ')
		}
		buf.WriteByte('*')
		return d.emitRest(buf, stack, idx-1, name, level)

	case graph.Volatile:
		buf.WriteString(" volatile")
		return d.emitRest(buf, stack, idx-1, name, level)
	case graph.Const:
		buf.WriteString(" const")
		return d.emitRest(buf, stack, idx-1, name, level)
	case graph.Restrict:
		buf.WriteString(" restrict")
		return d.emitRest(buf, stack, idx-1, name, level)

	case graph.Array:
		// A qualifier sitting directly on top of an array in the
		// declarator chain cannot be expressed in valid C ("int
		// const[3]" is a GCC parse error); skip it, per spec §4.5.1.
		k := idx - 1
		for k >= 0 {
			qn, err := d.g.TypeByID(stack[k])
			if err != nil {
				return err
			}
			if !isQualifier(qn) {
				break
			}
			k--
		}
		if k < 0 {
			appendName(buf, name)
		} else {
			writeGroupOpen(buf)
			if err := d.emitRest(buf, stack, k, name, level); err != nil {
				return err
			}
			buf.WriteByte(')')
		}
		fmt.Fprintf(buf, "[%d]", t.Nelems)
		return nil

	case graph.FuncProto:
		if idx == 0 {
			appendName(buf, name)
		} else {
			writeGroupOpen(buf)
			if err := d.emitRest(buf, stack, idx-1, name, level); err != nil {
				return err
			}
			buf.WriteByte(')')
		}
		return d.emitParamList(buf, t.Params, level)

	default:
		return &graph.RefError{ID: stack[idx], Reason: fmt.Sprintf("unsupported kind %T in declarator chain", n)}
	}
}

// writeGroupOpen opens a declarator grouping paren, e.g. the "(" in
// "int (*f)()", adding a separating space before it unless the buffer
// already ends in whitespace.
func writeGroupOpen(buf *strings.Builder) {
	if s := buf.String(); len(s) > 0 && s[len(s)-1] != ' ' {
		buf.WriteByte(' ')
	}
	buf.WriteByte('(')
}

func appendName(buf *strings.Builder, name string) {
	if name == "" {
		return
	}
	if s := buf.String(); len(s) > 0 && s[len(s)-1] != '*' {
		buf.WriteByte(' ')
	}
	buf.WriteString(name)
}

func (d *Driver) emitParamList(buf *strings.Builder, params []graph.Param, level int) error {
	if len(params) == 0 || (len(params) == 1 && params[0].Type == graph.Void) {
		buf.WriteString("()")
		return nil
	}
	buf.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			buf.WriteString(", ")
		}
		if p.Type == graph.Void {
			buf.WriteString("...")
			continue
		}
		decl, err := d.buildDecl(p.Type, p.Name, level)
		if err != nil {
			return err
		}
		buf.WriteString(decl)
	}
	buf.WriteByte(')')
	return nil
}

func (d *Driver) baseTypeText(id graph.ID, n graph.Node, level int) (string, error) {
	switch t := n.(type) {
	case graph.VoidType:
		return "void", nil
	case graph.Int:
		return t.Name, nil
	case graph.Struct:
		if t.Name == "" {
			return d.inlineComposite(id, "struct", t.Members, level)
		}
		return "struct " + d.resolver.ResolveName(graph.KindStruct, id, t.Name), nil
	case graph.Union:
		if t.Name == "" {
			return d.inlineComposite(id, "union", t.Members, level)
		}
		return "union " + d.resolver.ResolveName(graph.KindUnion, id, t.Name), nil
	case graph.Enum:
		if t.Name == "" {
			return d.inlineEnum(t, level), nil
		}
		return "enum " + d.resolver.ResolveName(graph.KindEnum, id, t.Name), nil
	case graph.Typedef:
		return d.resolver.ResolveName(graph.KindTypedef, id, t.Name), nil
	case graph.Fwd:
		kw := "struct"
		if t.FwdKind == graph.FwdUnion {
			kw = "union"
		}
		return kw + " " + d.resolver.ResolveName(graph.KindFwd, id, t.Name), nil
	default:
		return "", &graph.RefError{ID: id, Reason: fmt.Sprintf("unsupported kind %T as declarator base", n)}
	}
}

func isQualifier(n graph.Node) bool {
	switch n.(type) {
	case graph.Const, graph.Volatile, graph.Restrict:
		return true
	}
	return false
}

func qualifierKeyword(n graph.Node) string {
	switch n.(type) {
	case graph.Const:
		return "const"
	case graph.Volatile:
		return "volatile"
	case graph.Restrict:
		return "restrict"
	}
	return ""
}

// writeIndent writes level tabs, clamped to a sane nesting depth (spec
// §4.5.5) so a pathological cycle of inline anonymous types cannot blow up
// output width.
func writeIndent(w io.Writer, level int) {
	for i := 0; i < clampLevel(level); i++ {
		fmt.Fprint(w, "\t")
	}
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 12 {
		return 12
	}
	return level
}
