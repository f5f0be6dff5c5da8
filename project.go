// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"fmt"
	"io"
	"strings"

	"github.com/saferwall/pdb/log"
)

// RenderMode selects how PrintTypes and PrintGlobals format their
// output.
type RenderMode int

const (
	// RenderHuman is a declarative, human-readable rendering.
	RenderHuman RenderMode = iota
	// RenderJSON streams structural events to a JSONSink.
	RenderJSON
	// RenderPackFormat emits rizin/radare2 "pf" struct descriptors.
	RenderPackFormat
)

// projector walks a TypeGraph and renders every printable aggregate
// (class, structure, union, enum) in one of the three RenderModes,
// per the Type Projector (C8).
type projector struct {
	graph *TypeGraph
	w     io.Writer
	sink  JSONSink
	log   *log.Helper
}

// PrintTypes renders every resolvable aggregate type in the graph.
// RenderJSON requires sink to be non-nil; the other modes write to w.
func (p *Parser) PrintTypes(mode RenderMode, w io.Writer, sink JSONSink) error {
	if p.graph == nil {
		return &MissingStreamError{Kind: "TPI"}
	}
	proj := &projector{graph: p.graph, w: w, sink: sink, log: p.log}
	if mode == RenderJSON {
		sink.OpenArray("types")
	}
	for _, t := range p.graph.ByIndex() {
		if !t.Kind.isAggregate() {
			continue
		}
		if t.IsForwardRef() {
			continue // forward declarations are never printed, spec §4.6
		}
		proj.printAggregate(t, mode)
	}
	if mode == RenderJSON {
		sink.End()
	}
	return nil
}

func (p *projector) printAggregate(t *Type, mode RenderMode) {
	switch t.Kind {
	case LeafEnum:
		p.printEnum(t, mode)
	default:
		p.printClassLike(t, mode)
	}
}

// printClassLike renders a class/structure/union. In pack-format mode
// the first unparsable member abandons the whole type (spec §4.6) and
// nothing is emitted for it. Human mode has by then printed the
// members before it, and closes the declaration with an "abandoned"
// marker; JSON mode emits the object with an "error" key in place of
// its format and members.
func (p *projector) printClassLike(t *Type, mode RenderMode) {
	c := t.Payload.(ClassLike)
	members, _ := t.Members()

	switch mode {
	case RenderHuman:
		kindWord := "struct"
		if c.IsUnion {
			kindWord = "union"
		}
		fmt.Fprintf(p.w, "%s %s {\n", kindWord, c.Name)
		for _, idx := range members {
			line, ok := p.humanMember(idx)
			if !ok {
				fmt.Fprintf(p.w, "} // %s: abandoned, unparsable member\n\n", c.Name)
				return
			}
			if line != "" {
				fmt.Fprintf(p.w, "    %s\n", line)
			}
		}
		fmt.Fprintf(p.w, "} // size=%d\n\n", c.SizeBytes)

	case RenderPackFormat:
		descriptors, names, ok := p.packMembers(members)
		if !ok {
			return // whole type abandoned
		}
		format := strings.Join(descriptors, "")
		if c.IsUnion {
			format = "0" + format
		}
		fmt.Fprintf(p.w, "pf.%s %s %s\n", c.Name, format, strings.Join(names, " "))

	case RenderJSON:
		descriptors, names, ok := p.packMembers(members)
		p.sink.OpenObject()
		p.sink.KeyString("name", c.Name)
		p.sink.KeyNumber("size", c.SizeBytes)
		p.sink.KeyString("kind", unionOrStruct(c.IsUnion))
		if ok {
			p.sink.KeyString("format", strings.Join(descriptors, ""))
			p.sink.OpenArray("members")
			for _, n := range names {
				p.sink.KeyString("", n)
			}
			p.sink.End()
		} else {
			p.sink.KeyString("error", "unparsable member")
		}
		p.sink.End()
	}
}

func unionOrStruct(isUnion bool) string {
	if isUnion {
		return "union"
	}
	return "struct"
}

// humanMember renders one member-list entry as a declarative line, or
// ok=false if the entry (or a type it refers to) is unparsable.
func (p *projector) humanMember(idx uint32) (string, bool) {
	entry, ok := p.graph.byIndex[idx]
	if !ok {
		return "", false
	}
	switch m := entry.Payload.(type) {
	case MethodType:
		return "", true // overload sets carry no layout; skip silently
	case NestTypeType, OneMethodType, VFuncTabType:
		return "", true // no byte layout to project
	case MemberType:
		desc, unparsable := p.describeField(m.FieldIdx)
		if unparsable {
			return "", false
		}
		return fmt.Sprintf("%s %s; // offset=%d", desc, m.Name, m.Offset), true
	default:
		return "", false
	}
}

// describeField renders a member's own type as a human-readable
// fragment (e.g. "int32", "struct Foo*"), resolving through simple
// types and the graph as needed.
func (p *projector) describeField(idx uint32) (string, bool) {
	t, ok := p.graph.Resolve(idx)
	if !ok {
		st := decodeSimpleType(idx)
		d := formatSimpleType(st)
		if d.Unparsable {
			return "", true
		}
		return simpleTypeLabel(st), false
	}
	switch pl := t.Payload.(type) {
	case ClassLike:
		kindWord := "struct"
		if pl.IsUnion {
			kindWord = "union"
		}
		return fmt.Sprintf("%s %s", kindWord, pl.Name), false
	case EnumType:
		return fmt.Sprintf("enum %s", pl.Name), false
	case PointerType:
		base, unparsable := p.describeField(pl.PointeeIdx)
		if unparsable {
			return "", true
		}
		return base + "*", false
	case ArrayType:
		base, unparsable := p.describeField(pl.ElementIdx)
		if unparsable {
			return "", true
		}
		return fmt.Sprintf("%s[%d]", base, pl.SizeBytes), false
	case BitfieldType:
		base, unparsable := p.describeField(pl.BaseIdx)
		if unparsable {
			return "", true
		}
		return fmt.Sprintf("%s:%d", base, pl.Width), false
	default:
		return "", true
	}
}

// packMembers renders a member list as rizin "pf" descriptors and
// parallel field names, or ok=false if any member is unparsable (the
// whole type is then abandoned, per spec §4.6).
func (p *projector) packMembers(members []uint32) ([]string, []string, bool) {
	var descriptors []string
	var names []string
	for _, idx := range members {
		entry, ok := p.graph.byIndex[idx]
		if !ok {
			return nil, nil, false
		}
		switch m := entry.Payload.(type) {
		case MethodType, NestTypeType, OneMethodType, VFuncTabType:
			continue // no byte layout; skip rather than abandon
		case MemberType:
			d, unparsable := p.packDescriptor(m.FieldIdx)
			if unparsable {
				return nil, nil, false
			}
			if d.Skip {
				continue
			}
			descriptors = append(descriptors, d.Format)
			names = append(names, d.NamePrefix+m.Name+d.NameSuffix)
		default:
			return nil, nil, false
		}
	}
	return descriptors, names, true
}

// packDescriptor resolves a member's field type to its pack-format
// descriptor, recursing through arrays. Per spec §4.6
// step 3: a pointer's descriptor width is its own declared size
// (defaulting to 4), a bitfield is "B" annotated "(uint)", an enum is
// "E" annotated "(int)", and a nested Class/Structure/Union is "?"
// with its name folded into the member's own name as "(<type_name>)"
// (or "type_0x<tpi_idx>" when the nested type itself has no name).
func (p *projector) packDescriptor(idx uint32) (memberDescriptor, bool) {
	t, ok := p.graph.Resolve(idx)
	if !ok {
		st := decodeSimpleType(idx)
		d := formatSimpleType(st)
		return d, d.Unparsable
	}
	switch pl := t.Payload.(type) {
	case PointerType:
		width := pl.SizeBytes
		if width == 0 {
			width = 4
		}
		return memberDescriptor{Format: fmt.Sprintf("p%d", width), PointerSize: int(width)}, false
	case ArrayType:
		base, unparsable := p.packDescriptor(pl.ElementIdx)
		if unparsable {
			return memberDescriptor{}, true
		}
		return memberDescriptor{Format: fmt.Sprintf("[%d]%s", pl.SizeBytes, base.Format)}, false
	case BitfieldType:
		return memberDescriptor{Format: "B", NameSuffix: "(uint)"}, false
	case EnumType:
		return memberDescriptor{Format: "E", NameSuffix: "(int)"}, false
	case ClassLike:
		name := pl.Name
		if name == "" {
			name = fmt.Sprintf("type_0x%x", t.TpiIdx)
		}
		return memberDescriptor{Format: "?", NamePrefix: fmt.Sprintf("(%s)", name)}, false
	default:
		return memberDescriptor{}, true
	}
}

// simpleTypeLabel gives a human name to a decoded builtin type, for
// RenderHuman output.
func simpleTypeLabel(st SimpleType) string {
	label := "unknown_t"
	switch st.Kind {
	case KindSignedChar, KindNarrowChar:
		label = "char"
	case KindUnsignedChar, KindByte:
		label = "uchar"
	case KindInt16Short, KindInt16:
		label = "int16"
	case KindUInt16Short, KindUInt16:
		label = "uint16"
	case KindInt32Long, KindInt32:
		label = "int32"
	case KindUInt32Long, KindUInt32:
		label = "uint32"
	case KindInt64Quad, KindInt64:
		label = "int64"
	case KindUInt64Quad, KindUInt64:
		label = "uint64"
	case KindFloat32, KindFloat32PP:
		label = "float"
	case KindFloat64:
		label = "double"
	case KindVoid:
		label = "void"
	case KindHRESULT:
		label = "HRESULT"
	case KindWideChar:
		label = "wchar_t"
	case KindBool8:
		label = "bool"
	}
	switch st.Mode {
	case ModeNearPointer, ModeFarPointer, ModeHugePointer, ModeNearPointer32, ModeFarPointer32, ModeNearPointer64, ModeNearPointer128:
		label += "*"
	}
	return label
}

// printEnum renders an enum; an enum with no resolvable underlying
// type falls back to "unknown_t" rather than aborting, since the
// enumerate values themselves are always available regardless of the
// base type's decode result.
func (p *projector) printEnum(t *Type, mode RenderMode) {
	e := t.Payload.(EnumType)
	baseLabel := "unknown_t"
	if base, unparsable := p.describeField(e.UnderlyingIdx); !unparsable {
		baseLabel = base
	}

	switch mode {
	case RenderHuman:
		fmt.Fprintf(p.w, "enum %s : %s {\n", e.Name, baseLabel)
		for _, idx := range e.Members {
			if entry, ok := p.graph.byIndex[idx]; ok {
				if ev, ok := entry.Payload.(EnumerateType); ok {
					fmt.Fprintf(p.w, "    %s = %d,\n", ev.Name, ev.Value)
				}
			}
		}
		fmt.Fprintln(p.w, "}")
		fmt.Fprintln(p.w)

	case RenderPackFormat:
		fmt.Fprintf(p.w, "pf.%s E %s\n", e.Name, baseLabel)

	case RenderJSON:
		p.sink.OpenObject()
		p.sink.KeyString("name", e.Name)
		p.sink.KeyString("kind", "enum")
		p.sink.KeyString("base", baseLabel)
		p.sink.OpenArray("values")
		for _, idx := range e.Members {
			if entry, ok := p.graph.byIndex[idx]; ok {
				if ev, ok := entry.Payload.(EnumerateType); ok {
					p.sink.OpenObject()
					p.sink.KeyString("name", ev.Name)
					p.sink.KeyNumber("value", ev.Value)
					p.sink.End()
				}
			}
		}
		p.sink.End()
		p.sink.End()
	}
}
