// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"bytes"
	"strings"
	"testing"
)

func buildGraphWithStruct(t *testing.T) *TypeGraph {
	t.Helper()
	fieldList := buildFieldList()
	class := buildClassRecord("Foo", 0x1000, 12)
	streamBytes := buildTPIStream([][]byte{fieldList, class}, 0x1000)
	s := &stream{size: uint32(len(streamBytes)), pages: []pageIndex{0}}
	rv := newStreamView(byteBuffer(streamBytes), s, uint32(len(streamBytes)))
	graph, err := parseTPI(rv, 0)
	if err != nil {
		t.Fatalf("parseTPI: %v", err)
	}
	return graph
}

// TestPackFormatStruct checks the round-trip shape for a struct with
// two plain integer members: both members resolve to their simple
// descriptors and are concatenated in declaration order.
func TestPackFormatStruct(t *testing.T) {
	graph := buildGraphWithStruct(t)
	foo, _ := graph.Resolve(0x1001)

	var buf bytes.Buffer
	proj := &projector{graph: graph, w: &buf}
	proj.printClassLike(foo, RenderPackFormat)

	out := buf.String()
	if !strings.HasPrefix(out, "pf.Foo n4n8 a b") {
		t.Fatalf("got %q", out)
	}
}

// TestPackFormatUnionPrefix checks spec §8 invariant 8: union
// pack-format output always begins with the literal "0".
func TestPackFormatUnionPrefix(t *testing.T) {
	fieldList := buildFieldList()
	// Reuse buildClassRecord's layout by hand for a union header.
	var body []byte
	body = append(body, u16le(uint16(LeafUnion))...)
	body = append(body, u16le(0)...) // member count
	body = append(body, u16le(0)...) // properties
	body = append(body, u32le(0x1000)...)
	body = append(body, u16le(8)...) // size
	body = append(body, cstr("U")...)

	streamBytes := buildTPIStream([][]byte{fieldList, body}, 0x1000)
	s := &stream{size: uint32(len(streamBytes)), pages: []pageIndex{0}}
	rv := newStreamView(byteBuffer(streamBytes), s, uint32(len(streamBytes)))
	graph, err := parseTPI(rv, 0)
	if err != nil {
		t.Fatalf("parseTPI: %v", err)
	}

	u, ok := graph.Resolve(0x1001)
	if !ok {
		t.Fatal("expected union at 0x1001")
	}
	if u.Payload.(ClassLike).IsUnion != true {
		t.Fatal("expected IsUnion true")
	}

	var buf bytes.Buffer
	proj := &projector{graph: graph, w: &buf}
	proj.printClassLike(u, RenderPackFormat)

	out := buf.String()
	if !strings.HasPrefix(out, "pf.U 0") {
		t.Fatalf("union output %q does not start with pf.U 0", out)
	}
}

// buildEnumRecord encodes an LF_ENUM record body naming fieldListIdx
// as its enumerator list and underlyingIdx as its base type.
func buildEnumRecord(name string, underlyingIdx, fieldListIdx uint32) []byte {
	var body []byte
	body = append(body, u16le(uint16(LeafEnum))...)
	body = append(body, u16le(0)...) // member count
	body = append(body, u16le(0)...) // properties
	body = append(body, u32le(underlyingIdx)...)
	body = append(body, u32le(fieldListIdx)...)
	body = append(body, cstr(name)...)
	return body
}

// buildPointerRecord encodes an LF_POINTER record body pointing at
// pointeeIdx, with its declared width packed into attr bits [13:20].
func buildPointerRecord(pointeeIdx uint32, width uint8) []byte {
	var body []byte
	body = append(body, u16le(uint16(LeafPointer))...)
	body = append(body, u32le(pointeeIdx)...)
	body = append(body, u32le(uint32(width)<<13)...)
	return body
}

// buildBitfieldRecord encodes an LF_BITFIELD record body.
func buildBitfieldRecord(baseIdx uint32, width, bitOffset uint8) []byte {
	var body []byte
	body = append(body, u16le(uint16(LeafBitfield))...)
	body = append(body, u32le(baseIdx)...)
	body = append(body, width, bitOffset)
	return body
}

// TestPackFormatNestedStructMember matches spec §8's own round-trip
// example: struct Foo {i32 a; i64 b; struct S s;} must render
// "pf.Foo n4n8? a b (S)s", not a "B%d" descriptor for the nested member.
func TestPackFormatNestedStructMember(t *testing.T) {
	sFieldList := []byte{}
	sFieldList = append(sFieldList, u16le(uint16(LeafFieldList))...)
	sStruct := buildClassRecord("S", 0x1000, 4)

	var fooFieldList []byte
	fooFieldList = append(fooFieldList, u16le(uint16(LeafFieldList))...)
	fooFieldList = append(fooFieldList, u16le(uint16(LeafMember))...)
	fooFieldList = append(fooFieldList, u16le(0)...)
	fooFieldList = append(fooFieldList, u32le(uint32(KindInt32))...)
	fooFieldList = append(fooFieldList, u16le(0)...)
	fooFieldList = append(fooFieldList, cstr("a")...)
	fooFieldList = append(fooFieldList, u16le(uint16(LeafMember))...)
	fooFieldList = append(fooFieldList, u16le(0)...)
	fooFieldList = append(fooFieldList, u32le(uint32(KindInt64))...)
	fooFieldList = append(fooFieldList, u16le(4)...)
	fooFieldList = append(fooFieldList, cstr("b")...)
	fooFieldList = append(fooFieldList, u16le(uint16(LeafMember))...)
	fooFieldList = append(fooFieldList, u16le(0)...)
	fooFieldList = append(fooFieldList, u32le(0x1001)...) // S's struct tpi index
	fooFieldList = append(fooFieldList, u16le(12)...)
	fooFieldList = append(fooFieldList, cstr("s")...)

	fooStruct := buildClassRecord("Foo", 0x1002, 16)

	streamBytes := buildTPIStream([][]byte{sFieldList, sStruct, fooFieldList, fooStruct}, 0x1000)
	s := &stream{size: uint32(len(streamBytes)), pages: []pageIndex{0}}
	rv := newStreamView(byteBuffer(streamBytes), s, uint32(len(streamBytes)))
	graph, err := parseTPI(rv, 0)
	if err != nil {
		t.Fatalf("parseTPI: %v", err)
	}

	foo, ok := graph.Resolve(0x1003)
	if !ok {
		t.Fatal("expected Foo at 0x1003")
	}

	var buf bytes.Buffer
	proj := &projector{graph: graph, w: &buf}
	proj.printClassLike(foo, RenderPackFormat)

	want := "pf.Foo n4n8? a b (S)s\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

// TestPackFormatPointerWidth matches spec §4.6 step 3: a pointer's
// descriptor width is its own declared size (width under.get_val()),
// not a hardcoded p4/p8.
func TestPackFormatPointerWidth(t *testing.T) {
	pointer := buildPointerRecord(uint32(KindInt32), 2) // near (2-byte) pointer

	var fieldList []byte
	fieldList = append(fieldList, u16le(uint16(LeafFieldList))...)
	fieldList = append(fieldList, u16le(uint16(LeafMember))...)
	fieldList = append(fieldList, u16le(0)...)
	fieldList = append(fieldList, u32le(0x1000)...) // the pointer record's tpi index
	fieldList = append(fieldList, u16le(0)...)
	fieldList = append(fieldList, cstr("p")...)

	class := buildClassRecord("PtrHolder", 0x1001, 2)

	streamBytes := buildTPIStream([][]byte{pointer, fieldList, class}, 0x1000)
	s := &stream{size: uint32(len(streamBytes)), pages: []pageIndex{0}}
	rv := newStreamView(byteBuffer(streamBytes), s, uint32(len(streamBytes)))
	graph, err := parseTPI(rv, 0)
	if err != nil {
		t.Fatalf("parseTPI: %v", err)
	}

	holder, ok := graph.Resolve(0x1002)
	if !ok {
		t.Fatal("expected PtrHolder at 0x1002")
	}

	var buf bytes.Buffer
	proj := &projector{graph: graph, w: &buf}
	proj.printClassLike(holder, RenderPackFormat)

	if !strings.HasPrefix(buf.String(), "pf.PtrHolder p2 p") {
		t.Fatalf("got %q, want p2 descriptor for a 2-byte pointer", buf.String())
	}
}

// TestPackFormatBitfieldMember matches spec §4.6 step 3: a bitfield
// member must render as descriptor "B" annotated "(uint)", not abandon
// the enclosing type.
func TestPackFormatBitfieldMember(t *testing.T) {
	bitfield := buildBitfieldRecord(uint32(KindUInt32), 3, 0)

	var fieldList []byte
	fieldList = append(fieldList, u16le(uint16(LeafFieldList))...)
	fieldList = append(fieldList, u16le(uint16(LeafMember))...)
	fieldList = append(fieldList, u16le(0)...)
	fieldList = append(fieldList, u32le(0x1000)...) // the bitfield record's tpi index
	fieldList = append(fieldList, u16le(0)...)
	fieldList = append(fieldList, cstr("flag")...)

	class := buildClassRecord("Flags", 0x1001, 4)

	streamBytes := buildTPIStream([][]byte{bitfield, fieldList, class}, 0x1000)
	s := &stream{size: uint32(len(streamBytes)), pages: []pageIndex{0}}
	rv := newStreamView(byteBuffer(streamBytes), s, uint32(len(streamBytes)))
	graph, err := parseTPI(rv, 0)
	if err != nil {
		t.Fatalf("parseTPI: %v", err)
	}

	flags, ok := graph.Resolve(0x1002)
	if !ok {
		t.Fatal("expected Flags at 0x1002")
	}

	var buf bytes.Buffer
	proj := &projector{graph: graph, w: &buf}
	proj.printClassLike(flags, RenderPackFormat)

	want := "pf.Flags B flag(uint)\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

// TestPackFormatEnumMember matches spec §4.6 step 3: an enum member
// must render as descriptor "E" annotated "(int)".
func TestPackFormatEnumMember(t *testing.T) {
	enumFieldList := []byte{}
	enumFieldList = append(enumFieldList, u16le(uint16(LeafFieldList))...)
	enum := buildEnumRecord("Color", uint32(KindInt32), 0x1000)

	var fieldList []byte
	fieldList = append(fieldList, u16le(uint16(LeafFieldList))...)
	fieldList = append(fieldList, u16le(uint16(LeafMember))...)
	fieldList = append(fieldList, u16le(0)...)
	fieldList = append(fieldList, u32le(0x1001)...) // the enum record's tpi index
	fieldList = append(fieldList, u16le(0)...)
	fieldList = append(fieldList, cstr("c")...)

	class := buildClassRecord("Holder", 0x1002, 4)

	streamBytes := buildTPIStream([][]byte{enumFieldList, enum, fieldList, class}, 0x1000)
	s := &stream{size: uint32(len(streamBytes)), pages: []pageIndex{0}}
	rv := newStreamView(byteBuffer(streamBytes), s, uint32(len(streamBytes)))
	graph, err := parseTPI(rv, 0)
	if err != nil {
		t.Fatalf("parseTPI: %v", err)
	}

	holder, ok := graph.Resolve(0x1003)
	if !ok {
		t.Fatal("expected Holder at 0x1003")
	}

	var buf bytes.Buffer
	proj := &projector{graph: graph, w: &buf}
	proj.printClassLike(holder, RenderPackFormat)

	want := "pf.Holder E c(int)\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

// TestForwardRefProducesNoOutput checks spec §8 invariant 7 / scenario 6.
func TestForwardRefProducesNoOutput(t *testing.T) {
	var body []byte
	body = append(body, u16le(uint16(LeafStructure))...)
	body = append(body, u16le(0)...)
	body = append(body, u16le(0x80)...) // forward-ref bit set
	body = append(body, u32le(0)...)    // field list (none)
	body = append(body, u32le(0)...)
	body = append(body, u32le(0)...)
	body = append(body, u16le(0)...) // size
	body = append(body, cstr("Incomplete")...)

	streamBytes := buildTPIStream([][]byte{body}, 0x1000)
	s := &stream{size: uint32(len(streamBytes)), pages: []pageIndex{0}}
	rv := newStreamView(byteBuffer(streamBytes), s, uint32(len(streamBytes)))
	graph, err := parseTPI(rv, 0)
	if err != nil {
		t.Fatalf("parseTPI: %v", err)
	}

	incomplete, ok := graph.Resolve(0x1000)
	if !ok {
		t.Fatal("expected to resolve the forward-ref record")
	}
	if !incomplete.IsForwardRef() {
		t.Fatal("expected IsForwardRef() == true")
	}

	// PrintTypes must skip the forward-ref record in every mode.
	p := &Parser{graph: graph}
	for _, mode := range []RenderMode{RenderHuman, RenderPackFormat} {
		var buf bytes.Buffer
		if err := p.PrintTypes(mode, &buf, nil); err != nil {
			t.Fatalf("mode %v: PrintTypes: %v", mode, err)
		}
		if buf.Len() != 0 {
			t.Fatalf("mode %v: expected no output, got %q", mode, buf.String())
		}
	}
	var js bytes.Buffer
	if err := p.PrintTypes(RenderJSON, &js, NewWriterJSONSink(&js)); err != nil {
		t.Fatalf("RenderJSON: PrintTypes: %v", err)
	}
	if js.String() != `"types":[]` {
		t.Fatalf("expected an empty types array, got %q", js.String())
	}
}

// TestProjectionIdempotent checks spec §8 invariant 6: projecting the
// same type twice yields byte-identical output.
func TestProjectionIdempotent(t *testing.T) {
	graph := buildGraphWithStruct(t)
	foo, _ := graph.Resolve(0x1001)

	for _, mode := range []RenderMode{RenderHuman, RenderPackFormat} {
		var a, b bytes.Buffer
		(&projector{graph: graph, w: &a}).printClassLike(foo, mode)
		(&projector{graph: graph, w: &b}).printClassLike(foo, mode)
		if a.String() != b.String() {
			t.Fatalf("mode %v: not idempotent: %q vs %q", mode, a.String(), b.String())
		}
	}
}
