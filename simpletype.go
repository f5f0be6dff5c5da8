// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

// SimpleTypeMode is the pointer-ness of a simple (built-in) type
// index: how many indirections, and of what width, sit between the
// named kind and the value actually stored.
type SimpleTypeMode uint8

// Simple-type modes, decoded from bits [15:12] of a type index.
const (
	ModeDirect SimpleTypeMode = iota
	ModeNearPointer
	ModeFarPointer
	ModeHugePointer
	ModeNearPointer32
	ModeFarPointer32
	ModeNearPointer64
	ModeNearPointer128
)

// SimpleTypeKind is the built-in type a simple type index names,
// decoded from bits [7:0].
type SimpleTypeKind uint8

// Simple-type kinds. Values follow the CodeView builtin-type numbering
// so that a real PDB's type indices decode the same way a debugger's
// would.
const (
	KindNone          SimpleTypeKind = 0x00
	KindVoid          SimpleTypeKind = 0x03
	KindHRESULT       SimpleTypeKind = 0x08
	KindSignedChar    SimpleTypeKind = 0x10
	KindUnsignedChar  SimpleTypeKind = 0x20
	KindBool8         SimpleTypeKind = 0x30
	KindBool16        SimpleTypeKind = 0x31
	KindBool32        SimpleTypeKind = 0x32
	KindBool64        SimpleTypeKind = 0x33
	KindBool128       SimpleTypeKind = 0x34
	KindFloat32       SimpleTypeKind = 0x40
	KindFloat64       SimpleTypeKind = 0x41
	KindFloat80       SimpleTypeKind = 0x42
	KindFloat128      SimpleTypeKind = 0x43
	KindFloat48       SimpleTypeKind = 0x44
	KindFloat32PP     SimpleTypeKind = 0x45
	KindFloat16       SimpleTypeKind = 0x46
	KindComplex16     SimpleTypeKind = 0x56
	KindComplex32     SimpleTypeKind = 0x50
	KindComplex32PP   SimpleTypeKind = 0x55
	KindComplex48     SimpleTypeKind = 0x54
	KindComplex64     SimpleTypeKind = 0x51
	KindComplex80     SimpleTypeKind = 0x52
	KindComplex128    SimpleTypeKind = 0x53
	KindInt16Short    SimpleTypeKind = 0x11
	KindUInt16Short   SimpleTypeKind = 0x21
	KindInt32Long     SimpleTypeKind = 0x12
	KindUInt32Long    SimpleTypeKind = 0x22
	KindInt64Quad     SimpleTypeKind = 0x13
	KindUInt64Quad    SimpleTypeKind = 0x23
	KindInt128Oct     SimpleTypeKind = 0x14
	KindUInt128Oct    SimpleTypeKind = 0x24
	KindSByte         SimpleTypeKind = 0x68
	KindByte          SimpleTypeKind = 0x69
	KindInt16         SimpleTypeKind = 0x72
	KindUInt16        SimpleTypeKind = 0x73
	KindInt32         SimpleTypeKind = 0x74
	KindUInt32        SimpleTypeKind = 0x75
	KindInt64         SimpleTypeKind = 0x76
	KindUInt64        SimpleTypeKind = 0x77
	KindInt128        SimpleTypeKind = 0x78
	KindUInt128       SimpleTypeKind = 0x79
	KindNarrowChar    SimpleTypeKind = 0x70
	KindWideChar      SimpleTypeKind = 0x71
	KindChar16        SimpleTypeKind = 0x7a
	KindChar32        SimpleTypeKind = 0x7b
	KindNotTranslated SimpleTypeKind = 0x07
)

// SimpleType is a decoded simple-type index (C7).
type SimpleType struct {
	Kind SimpleTypeKind
	Mode SimpleTypeMode
}

// decodeSimpleType splits a 32-bit simple-type index into its kind
// and mode, per the bit layout in spec §3: kind = bits[7:0],
// mode = bits[15:12].
func decodeSimpleType(idx uint32) SimpleType {
	return SimpleType{
		Kind: SimpleTypeKind(idx & 0xFF),
		Mode: SimpleTypeMode((idx >> 12) & 0xF),
	}
}

// memberDescriptor is the outcome of mapping a type to a pack-format
// descriptor: either a format string to append, a "skip" (advance
// past the bytes without naming the member), or "unparsable" (abandon
// the enclosing type). NamePrefix/NameSuffix decorate the member's own
// name in the descriptor's name list, per spec §4.6 step 3's compound
// name forms (a nested aggregate's "(<type_name>)" prefix, a bitfield
// or enum's "(uint)"/"(int)" suffix).
type memberDescriptor struct {
	Format      string
	Skip        bool
	Unparsable  bool
	PointerSize int // only meaningful for Pointer kinds
	NamePrefix  string
	NameSuffix  string
}

// formatSimpleType maps a decoded simple type to its pack-format
// descriptor, per the table in spec §4.5.
func formatSimpleType(st SimpleType) memberDescriptor {
	if st.Mode != ModeDirect {
		return formatPointerMode(st.Mode)
	}
	switch st.Kind {
	case KindNone, KindVoid, KindHRESULT, KindNotTranslated:
		return memberDescriptor{Unparsable: true}
	case KindSignedChar, KindNarrowChar:
		return memberDescriptor{Format: "c"}
	case KindUnsignedChar:
		return memberDescriptor{Format: "b"}
	case KindSByte:
		return memberDescriptor{Format: "n1"}
	case KindBool8, KindByte:
		return memberDescriptor{Format: "N1"}
	case KindInt16Short, KindInt16:
		return memberDescriptor{Format: "n2"}
	case KindUInt16Short, KindUInt16, KindWideChar, KindChar16, KindBool16:
		return memberDescriptor{Format: "N2"}
	case KindInt32Long, KindInt32:
		return memberDescriptor{Format: "n4"}
	case KindUInt32Long, KindUInt32, KindChar32, KindBool32:
		return memberDescriptor{Format: "N4"}
	case KindInt64Quad, KindInt64:
		return memberDescriptor{Format: "n8"}
	case KindUInt64Quad, KindUInt64, KindBool64:
		return memberDescriptor{Format: "N8"}
	case KindInt128Oct, KindUInt128Oct, KindInt128, KindUInt128, KindBool128:
		return memberDescriptor{Skip: true}
	case KindComplex16, KindComplex32, KindComplex32PP, KindComplex48,
		KindComplex64, KindComplex80, KindComplex128:
		return memberDescriptor{Skip: true}
	case KindFloat32, KindFloat32PP:
		// PDB_FLOAT32_PP (partial precision) renders the same as a
		// plain float32, matching the source; open question in
		// spec §9 about whether it deserves its own descriptor.
		return memberDescriptor{Format: "f"}
	case KindFloat64:
		return memberDescriptor{Format: "F"}
	case KindFloat16, KindFloat48, KindFloat80, KindFloat128:
		return memberDescriptor{Skip: true}
	default:
		return memberDescriptor{Unparsable: true}
	}
}

// formatPointerMode maps a non-Direct mode to its pointer descriptor.
// Widths follow spec §4.5: Near=2, Far/Huge/Near32/Far32=4, Near64=8,
// Near128=8 (with an 8-byte padding placeholder, since 16-byte
// pointers aren't fully supported yet — see spec §9 open question).
func formatPointerMode(mode SimpleTypeMode) memberDescriptor {
	switch mode {
	case ModeNearPointer:
		return memberDescriptor{Format: "p2", PointerSize: 2}
	case ModeFarPointer, ModeHugePointer, ModeNearPointer32, ModeFarPointer32:
		return memberDescriptor{Format: "p4", PointerSize: 4}
	case ModeNearPointer64:
		return memberDescriptor{Format: "p8", PointerSize: 8}
	case ModeNearPointer128:
		// TODO(pdb): true 16-byte descriptor support; for now this is
		// a width placeholder, same as the source.
		return memberDescriptor{Format: "p8::", PointerSize: 8}
	default:
		return memberDescriptor{Unparsable: true}
	}
}
