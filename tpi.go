// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import "sort"

// tpiHeader is the fixed portion of the TPI stream (stream index 2),
// just enough to locate the leaf-record region and the first/last
// valid type indices.
type tpiHeader struct {
	Version        uint32
	HeaderSize     uint32
	FirstIndex     uint32
	LastIndex      uint32
	RecordBytes    uint32
}

// TypeGraph is the decoded TPI stream: every leaf record, indexed by
// its TPI index, plus the first-index threshold used to distinguish a
// simple-type index from a graph index (spec §4.5 — "top bit zero").
type TypeGraph struct {
	FirstIndex uint32
	byIndex    map[uint32]*Type
}

// Resolve looks up a type index. Indices below FirstIndex are never
// graph entries — decodeSimpleType handles those instead; Resolve
// returns false for them so callers know to fall back.
func (g *TypeGraph) Resolve(idx uint32) (*Type, bool) {
	if idx < g.FirstIndex {
		return nil, false
	}
	t, ok := g.byIndex[idx]
	return t, ok
}

// ByIndex exposes every decoded type, including non-aggregate field
// entries (Member, NestType, ...) and their synthetic indices, ordered
// by TPI index ascending.
func (g *TypeGraph) ByIndex() []*Type {
	indices := make([]uint32, 0, len(g.byIndex))
	for idx := range g.byIndex {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	out := make([]*Type, len(indices))
	for i, idx := range indices {
		out[i] = g.byIndex[idx]
	}
	return out
}

// parseTPI decodes the TPI stream into a TypeGraph (C6). maxTypes
// bounds the number of leaf records accepted, guarding against a
// corrupt or hostile RecordBytes/LastIndex pair forcing an unbounded
// decode loop; 0 means unbounded.
func parseTPI(rv *streamView, maxTypes uint32) (*TypeGraph, error) {
	hdr := tpiHeader{
		Version:     rv.readUint32(),
		HeaderSize:  rv.readUint32(),
		FirstIndex:  rv.readUint32(),
		LastIndex:   rv.readUint32(),
		RecordBytes: rv.readUint32(),
	}
	if rv.err {
		return nil, ErrCorruptDirectory
	}
	if hdr.LastIndex < hdr.FirstIndex {
		return nil, ErrCorruptDirectory
	}
	count := hdr.LastIndex - hdr.FirstIndex
	if maxTypes != 0 && count > maxTypes {
		return nil, ErrTooManyTypes
	}

	// The header may be longer than the five fields read above;
	// HeaderSize gives the authoritative offset of the first record.
	if hdr.HeaderSize > 20 {
		rv.Seek(hdr.HeaderSize)
	}

	graph := &TypeGraph{FirstIndex: hdr.FirstIndex, byIndex: make(map[uint32]*Type, count)}

	idx := hdr.FirstIndex
	for idx < hdr.LastIndex {
		recLen := rv.readUint16()
		if rv.err {
			return nil, &StreamError{StreamIndex: 2, Cause: ErrCorruptDirectory}
		}
		if recLen < 2 {
			return nil, &StreamError{StreamIndex: 2, Cause: ErrBadLeaf}
		}
		body := rv.readBytes(uint32(recLen))
		if rv.err {
			return nil, &StreamError{StreamIndex: 2, Cause: ErrTruncated}
		}
		t, err := decodeLeafRecord(idx, body)
		if err != nil {
			return nil, &StreamError{StreamIndex: 2, Cause: err}
		}
		if t != nil {
			graph.byIndex[idx] = t
		}
		idx++
	}

	resolveFieldLists(graph, hdr.LastIndex)
	return graph, nil
}

// leafReader is a small cursor over an in-memory leaf-record body,
// separate from streamView since records never span the stream's
// page boundaries once read out whole.
type leafReader struct {
	b   []byte
	pos int
}

func (r *leafReader) u8() uint8 {
	if r.pos >= len(r.b) {
		r.pos = len(r.b) + 1
		return 0
	}
	v := r.b[r.pos]
	r.pos++
	return v
}

func (r *leafReader) u16() uint16 {
	if r.pos+2 > len(r.b) {
		r.pos = len(r.b) + 1
		return 0
	}
	v := uint16(r.b[r.pos]) | uint16(r.b[r.pos+1])<<8
	r.pos += 2
	return v
}

func (r *leafReader) u32() uint32 {
	if r.pos+4 > len(r.b) {
		r.pos = len(r.b) + 1
		return 0
	}
	v := uint32(r.b[r.pos]) | uint32(r.b[r.pos+1])<<8 | uint32(r.b[r.pos+2])<<16 | uint32(r.b[r.pos+3])<<24
	r.pos += 4
	return v
}

func (r *leafReader) u64() uint64 {
	lo := uint64(r.u32())
	hi := uint64(r.u32())
	return lo | hi<<32
}

func (r *leafReader) overrun() bool { return r.pos > len(r.b) }

// cstring reads a NUL-terminated name starting at the cursor.
func (r *leafReader) cstring() string {
	start := r.pos
	for r.pos < len(r.b) && r.b[r.pos] != 0 {
		r.pos++
	}
	s := string(r.b[start:r.pos])
	if r.pos < len(r.b) {
		r.pos++ // skip NUL
	}
	return s
}

// numericLeaf reads a CodeView "numeric leaf": a uint16 that is either
// a literal value directly (< 0x8000) or a leaf-kind tag selecting a
// following fixed-width value (>= 0x8000), per the encoding the
// original source's get_numeric_leaf uses for sizes and enumerate
// values.
func (r *leafReader) numericLeaf() uint64 {
	tag := r.u16()
	const lfNumericBase = 0x8000
	if tag < lfNumericBase {
		return uint64(tag)
	}
	switch tag {
	case lfNumericBase + 0x03: // char
		return uint64(r.u8())
	case lfNumericBase + 0x04: // short
		return uint64(r.u16())
	case lfNumericBase + 0x05: // ushort
		return uint64(r.u16())
	case lfNumericBase + 0x06: // long
		return uint64(r.u32())
	case lfNumericBase + 0x07: // ulong
		return uint64(r.u32())
	case lfNumericBase + 0x09: // quad
		return r.u64()
	case lfNumericBase + 0x0a: // uquad
		return r.u64()
	default:
		return 0
	}
}

// decodeLeafRecord decodes a single TPI leaf body into a Type, or
// returns (nil, nil) for leaf kinds the projector never needs to see
// at the top level (member-list entries are decoded by
// decodeFieldListEntries instead, not here).
func decodeLeafRecord(idx uint32, body []byte) (*Type, error) {
	r := &leafReader{b: body}
	kind := LeafKind(r.u16())

	switch kind {
	case LeafClass, LeafStructure, LeafClassExt, LeafStructureExt:
		return decodeClassLike(idx, kind, r)
	case LeafUnion:
		return decodeUnion(idx, r)
	case LeafEnum:
		return decodeEnumHeader(idx, r)
	case LeafPointer:
		return decodePointer(idx, r)
	case LeafArray:
		return decodeArray(idx, r)
	case LeafBitfield:
		return decodeBitfield(idx, r)
	case LeafFieldList:
		return decodeFieldList(idx, r)
	default:
		// Unrecognised top-level leaf kinds are left out of the graph,
		// with no error and no anomaly recorded: a PDB may legally
		// carry leaf kinds this decoder doesn't project.
		return nil, nil
	}
}

func decodeClassLike(idx uint32, kind LeafKind, r *leafReader) (*Type, error) {
	_ = r.u16() // member count
	propLo := r.u16()
	var propHi uint16
	if kind == LeafClassExt || kind == LeafStructureExt {
		propHi = r.u16()
	}
	fieldList := r.u32()
	_ = r.u32() // derivation list index
	_ = r.u32() // vtable shape index
	size := r.numericLeaf()
	name := r.cstring()
	if r.overrun() {
		return nil, ErrBadLeaf
	}
	forwardRef := (uint32(propLo) | uint32(propHi)<<16) & 0x80 != 0
	return &Type{TpiIdx: idx, Kind: kind, Payload: ClassLike{
		Name:        name,
		SizeBytes:   size,
		FieldListID: fieldList,
		ForwardRef:  forwardRef,
	}}, nil
}

func decodeUnion(idx uint32, r *leafReader) (*Type, error) {
	_ = r.u16() // member count
	prop := r.u16()
	fieldList := r.u32()
	size := r.numericLeaf()
	name := r.cstring()
	if r.overrun() {
		return nil, ErrBadLeaf
	}
	return &Type{TpiIdx: idx, Kind: LeafUnion, Payload: ClassLike{
		Name:        name,
		SizeBytes:   size,
		FieldListID: fieldList,
		ForwardRef:  prop&0x80 != 0,
		IsUnion:     true,
	}}, nil
}

func decodeEnumHeader(idx uint32, r *leafReader) (*Type, error) {
	_ = r.u16() // member count
	_ = r.u16() // properties
	underlying := r.u32()
	fieldList := r.u32()
	name := r.cstring()
	if r.overrun() {
		return nil, ErrBadLeaf
	}
	// The enum's member list lives in the referenced field list; that
	// list is resolved into EnumType.Members by resolveFieldLists once
	// every record has been decoded, since TPI indices are forward as
	// well as backward references.
	return &Type{TpiIdx: idx, Kind: LeafEnum, Payload: EnumType{
		Name:          name,
		UnderlyingIdx: underlying,
		FieldListID:   fieldList,
	}}, nil
}

func decodePointer(idx uint32, r *leafReader) (*Type, error) {
	pointee := r.u32()
	attr := r.u32()
	size := uint64((attr >> 13) & 0xFF)
	if size == 0 {
		size = 4
	}
	if r.overrun() {
		return nil, ErrBadLeaf
	}
	return &Type{TpiIdx: idx, Kind: LeafPointer, Payload: PointerType{
		PointeeIdx: pointee,
		SizeBytes:  size,
	}}, nil
}

func decodeArray(idx uint32, r *leafReader) (*Type, error) {
	elem := r.u32()
	_ = r.u32() // index type
	size := r.numericLeaf()
	_ = r.cstring() // name, usually empty
	if r.overrun() {
		return nil, ErrBadLeaf
	}
	return &Type{TpiIdx: idx, Kind: LeafArray, Payload: ArrayType{
		ElementIdx: elem,
		SizeBytes:  size,
	}}, nil
}

func decodeBitfield(idx uint32, r *leafReader) (*Type, error) {
	base := r.u32()
	width := r.u8()
	offset := r.u8()
	if r.overrun() {
		return nil, ErrBadLeaf
	}
	return &Type{TpiIdx: idx, Kind: LeafBitfield, Payload: BitfieldType{
		BaseIdx:   base,
		Width:     width,
		BitOffset: offset,
	}}, nil
}

// decodeFieldList decodes a field-list record into a fieldListPayload
// holding its sub-entries. resolveFieldLists later stores those
// sub-entries in the graph under synthetic indices and lists the
// indices in the owning aggregate's Members, so the projector can look
// them up uniformly. Because sub-entries have no TPI index of their
// own on disk, the synthetic indices start above the stream's declared
// LastIndex, out of band from real type indices.
func decodeFieldList(idx uint32, r *leafReader) (*Type, error) {
	entries, err := decodeFieldListEntries(r)
	if err != nil {
		return nil, err
	}
	return &Type{TpiIdx: idx, Kind: LeafFieldList, Payload: fieldListPayload{entries: entries}}, nil
}

// fieldListPayload holds the decoded sub-entries of a field list
// before resolveFieldLists assigns them synthetic graph indices.
type fieldListPayload struct {
	entries []*Type
}

func decodeFieldListEntries(r *leafReader) ([]*Type, error) {
	var out []*Type
	for r.pos < len(r.b) {
		// Padding bytes (0xF1-0xF3) fill out a field list to 4-byte
		// alignment; skip them.
		if r.b[r.pos] >= 0xF1 && r.b[r.pos] <= 0xF3 {
			r.pos++
			continue
		}
		kind := LeafKind(r.u16())
		var t *Type
		switch kind {
		case LeafMember:
			_ = r.u16() // attributes
			fieldType := r.u32()
			offset := r.numericLeaf()
			name := r.cstring()
			t = &Type{Kind: LeafMember, Payload: MemberType{Name: name, FieldIdx: fieldType, Offset: offset}}
		case LeafNestType:
			_ = r.u16() // padding
			fieldType := r.u32()
			name := r.cstring()
			t = &Type{Kind: LeafNestType, Payload: NestTypeType{Name: name, FieldIdx: fieldType}}
		case LeafMethod:
			_ = r.u16() // overload count
			_ = r.u32() // method list index
			name := r.cstring()
			t = &Type{Kind: LeafMethod, Payload: MethodType{Name: name}}
		case LeafOneMethod:
			_ = r.u16() // attributes
			fieldType := r.u32()
			name := r.cstring()
			t = &Type{Kind: LeafOneMethod, Payload: OneMethodType{Name: name, FieldIdx: fieldType}}
		case LeafVFuncTab:
			_ = r.u16() // padding
			fieldType := r.u32()
			t = &Type{Kind: LeafVFuncTab, Payload: VFuncTabType{FieldIdx: fieldType}}
		case LeafEnumerate:
			_ = r.u16() // attributes
			val := r.numericLeaf()
			name := r.cstring()
			t = &Type{Kind: LeafEnumerate, Payload: EnumerateType{Name: name, Value: val}}
		default:
			// Unknown field-list entry kind: its length is unknown, so
			// the rest of the list cannot be walked. An entry with no
			// payload stands in for it; the projector treats it as
			// unparsable and abandons the enclosing type. This is not
			// a decode error, and no anomaly is recorded.
			out = append(out, &Type{})
			return out, nil
		}
		if r.overrun() {
			return nil, ErrBadLeaf
		}
		out = append(out, t)
	}
	return out, nil
}

// resolveFieldLists walks every decoded ClassLike/EnumType and wires
// its FieldListID to the flattened, synthetic-indexed member entries,
// since on-disk field lists are a single opaque blob indexed by the
// aggregate's FieldListID rather than individually addressable
// records. Synthetic indices start at lastIndex+1, so they never
// overwrite a real record.
func resolveFieldLists(g *TypeGraph, lastIndex uint32) {
	nextSynthetic := lastIndex + 1
	assignSynthetic := func(entries []*Type) []uint32 {
		ids := make([]uint32, 0, len(entries))
		for _, e := range entries {
			e.TpiIdx = nextSynthetic
			g.byIndex[nextSynthetic] = e
			ids = append(ids, nextSynthetic)
			nextSynthetic++
		}
		return ids
	}

	for _, t := range g.byIndex {
		switch p := t.Payload.(type) {
		case ClassLike:
			fl, ok := g.byIndex[p.FieldListID]
			if !ok || fl.Kind != LeafFieldList {
				continue
			}
			flPayload, ok := fl.Payload.(fieldListPayload)
			if !ok {
				continue
			}
			p.Members = assignSynthetic(flPayload.entries)
			t.Payload = p
		case EnumType:
			fl, ok := g.byIndex[p.FieldListID]
			if !ok || fl.Kind != LeafFieldList {
				continue
			}
			flPayload, ok := fl.Payload.(fieldListPayload)
			if !ok {
				continue
			}
			p.Members = assignSynthetic(flPayload.entries)
			t.Payload = p
		}
	}
}
