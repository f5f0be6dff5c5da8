// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

// LeafKind discriminates the payload carried by a Type node. It is
// the Go replacement for the source's per-record function-pointer
// table (get_name/get_val/get_members/...): callers switch on Kind
// instead of calling through optional function pointers, so a missing
// capability is a compile-time-visible case, not a nil check.
type LeafKind uint16

// Leaf kinds, using the CodeView LF_* numbering so raw TPI bytes
// decode the way a real debugger's would.
const (
	LeafClass        LeafKind = 0x1504
	LeafStructure     LeafKind = 0x1505
	LeafUnion        LeafKind = 0x1506
	LeafEnum         LeafKind = 0x1507
	LeafPointer      LeafKind = 0x1002
	LeafArray        LeafKind = 0x1503
	LeafBitfield     LeafKind = 0x1205
	LeafMember       LeafKind = 0x150d
	LeafNestType     LeafKind = 0x1510
	LeafMethod       LeafKind = 0x150f
	LeafOneMethod    LeafKind = 0x1511
	LeafVFuncTab     LeafKind = 0x1409
	LeafEnumerate    LeafKind = 0x1502
	LeafFieldList    LeafKind = 0x1203
	// "extended header" variants (the spec's "_19" family): same
	// projection behaviour as their plain counterpart, but a longer
	// on-disk header (property bitfield splits across two fields
	// instead of one). Kept as distinct leaf kinds rather than a
	// runtime flag so the TPI decoder's switch stays exhaustive.
	LeafClassExt     LeafKind = 0x1608
	LeafStructureExt LeafKind = 0x1609
)

// Type is a decoded TPI leaf record. Payload holds one of the
// kind-specific structs below, chosen by Kind.
type Type struct {
	TpiIdx  uint32
	Kind    LeafKind
	Payload interface{}
}

// ClassLike is the payload for Class, Structure, Union, and their
// extended-header variants.
type ClassLike struct {
	Name        string
	SizeBytes   uint64
	FieldListID uint32 // TPI index of the LF_FIELDLIST this type refers to
	ForwardRef  bool
	IsUnion     bool
	Members     []uint32 // resolved member-record TPI indices, in declaration order
}

// EnumType is the payload for Enum.
type EnumType struct {
	Name          string
	UnderlyingIdx uint32   // simple-type or TPI index of the base type
	FieldListID   uint32   // TPI index of the LF_FIELDLIST holding the enumerators
	Members       []uint32 // Enumerate record TPI indices, filled in after field-list resolution
}

// PointerType is the payload for Pointer.
type PointerType struct {
	PointeeIdx uint32
	SizeBytes  uint64
}

// BitfieldType is the payload for Bitfield.
type BitfieldType struct {
	BaseIdx   uint32
	Width     uint8
	BitOffset uint8
}

// ArrayType is the payload for Array.
type ArrayType struct {
	ElementIdx uint32
	SizeBytes  uint64
}

// MemberType is the payload for a field-list Member entry.
type MemberType struct {
	Name      string
	FieldIdx  uint32 // type of the member itself
	Offset    uint64
}

// NestTypeType is the payload for a field-list NestType entry.
type NestTypeType struct {
	Name     string
	FieldIdx uint32
}

// MethodType is the payload for a field-list Method (overload set)
// entry; it has no byte layout and is always skipped during pack-
// format projection.
type MethodType struct {
	Name string
}

// OneMethodType is the payload for a field-list OneMethod entry.
type OneMethodType struct {
	Name     string
	FieldIdx uint32
}

// VFuncTabType is the payload for a field-list VFuncTab entry.
type VFuncTabType struct {
	FieldIdx uint32
}

// EnumerateType is the payload for an enum's Enumerate entry (one
// case).
type EnumerateType struct {
	Name  string
	Value uint64
}

// Name returns the type's name when its leaf kind carries one, and
// false otherwise (the Go equivalent of a null get_name).
func (t *Type) Name() (string, bool) {
	switch p := t.Payload.(type) {
	case ClassLike:
		return p.Name, p.Name != ""
	case EnumType:
		return p.Name, p.Name != ""
	case MemberType:
		return p.Name, true
	case NestTypeType:
		return p.Name, true
	case MethodType:
		return p.Name, true
	case OneMethodType:
		return p.Name, true
	case EnumerateType:
		return p.Name, true
	default:
		return "", false
	}
}

// Val returns the type's principal numeric value (size, offset,
// enumerate value — whichever the kind defines) when one exists.
func (t *Type) Val() (uint64, bool) {
	switch p := t.Payload.(type) {
	case ClassLike:
		return p.SizeBytes, true
	case ArrayType:
		return p.SizeBytes, true
	case PointerType:
		return p.SizeBytes, true
	case MemberType:
		return p.Offset, true
	case EnumerateType:
		return p.Value, true
	default:
		return 0, false
	}
}

// IsForwardRef reports whether the type is a forward declaration that
// projectors must skip in every output mode (spec §4.6).
func (t *Type) IsForwardRef() bool {
	if c, ok := t.Payload.(ClassLike); ok {
		return c.ForwardRef
	}
	return false
}

// Members returns the resolved member-record TPI indices for
// aggregate kinds, and false for everything else.
func (t *Type) Members() ([]uint32, bool) {
	switch p := t.Payload.(type) {
	case ClassLike:
		return p.Members, true
	case EnumType:
		return p.Members, true
	default:
		return nil, false
	}
}

// isAggregate reports whether the leaf kind is one of the printable
// aggregate types (class, structure, union, enum, and the extended
// variants) — the spec's is_printable_type predicate.
func (k LeafKind) isAggregate() bool {
	switch k {
	case LeafClass, LeafStructure, LeafUnion, LeafEnum, LeafClassExt, LeafStructureExt:
		return true
	default:
		return false
	}
}

func (k LeafKind) isClassLike() bool {
	switch k {
	case LeafClass, LeafStructure, LeafUnion, LeafClassExt, LeafStructureExt:
		return true
	default:
		return false
	}
}
