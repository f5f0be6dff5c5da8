// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"errors"
	"testing"
)

// minimalInfoStream builds the smallest PDB Info Stream body that
// parseInfo accepts: version/signature/age/GUID, then an empty names
// blob and empty present/deleted bit vectors.
func minimalInfoStream() []byte {
	var b []byte
	b = append(b, u32le(20000000)...) // version
	b = append(b, u32le(0)...)        // signature
	b = append(b, u32le(1)...)        // age
	b = append(b, make([]byte, 16)...) // GUID
	b = append(b, u32le(0)...)        // names blob length
	b = append(b, u32le(0)...)        // numHashes
	b = append(b, u32le(0)...)        // numPresent
	b = append(b, u32le(0)...)        // present bit-vector word count
	b = append(b, u32le(0)...)        // deleted bit-vector word count
	return b
}

// minimalTPIStream builds an empty TPI stream: first_index == last_index.
func minimalTPIStream() []byte {
	var b []byte
	b = append(b, u32le(20000000)...) // version
	b = append(b, u32le(20)...)       // header size
	b = append(b, u32le(0x1000)...)   // first index
	b = append(b, u32le(0x1000)...)   // last index (== first -> no records)
	b = append(b, u32le(0)...)        // record bytes
	return b
}

// minimalDBIStream builds a DBI stream with a 64-byte fixed header and
// no debug sub-header (i.e. the stream ends right after the fixed
// header), so every optional stream dispatches as absent.
func minimalDBIStream() []byte {
	b := make([]byte, dbiFixedHeaderSize)
	putU32(b, 0, 0xFFFFFFFF) // version signature
	putU32(b, 4, 19990903)   // version header
	putU32(b, 8, 1)          // age
	// remaining fixed fields (stream indices, substream sizes) stay 0
	return b
}

func TestParseSuperblockMinimalPDB7(t *testing.T) {
	streams := [][]byte{
		{}, // stream 0, unused
		minimalInfoStream(),
		minimalTPIStream(),
		minimalDBIStream(),
	}
	img := buildMSF(0x1000, streams)

	c, err := parseSuperblock(byteBuffer(img))
	if err != nil {
		t.Fatalf("parseSuperblock: %v", err)
	}
	if len(c.streams) != 4 {
		t.Fatalf("expected 4 streams, got %d", len(c.streams))
	}
	if c.streams[1].size != uint32(len(streams[1])) {
		t.Errorf("info stream size mismatch: got %d want %d", c.streams[1].size, len(streams[1]))
	}
}

func TestParseSuperblockBadSignature(t *testing.T) {
	img := make([]byte, 128)
	_, err := parseSuperblock(byteBuffer(img))
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestOpenBytesMinimalPDB7(t *testing.T) {
	streams := [][]byte{
		{},
		minimalInfoStream(),
		minimalTPIStream(),
		minimalDBIStream(),
	}
	img := buildMSF(0x1000, streams)

	p, err := OpenBytes(img, nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	defer p.Close()

	if p.graph == nil {
		t.Fatal("expected a parsed (empty) type graph")
	}
	if len(p.graph.ByIndex()) != 0 {
		t.Errorf("expected zero types, got %d", len(p.graph.ByIndex()))
	}
}

// ceilDiv invariant (spec §8 invariant 1).
func TestCeilDivInvariant(t *testing.T) {
	cases := []struct{ a, b, want uint32 }{
		{0, 0x1000, 0},
		{1, 0x1000, 1},
		{0x1000, 0x1000, 1},
		{0x1001, 0x1000, 2},
	}
	for _, c := range cases {
		if got := ceilDiv(c.a, c.b); got != c.want {
			t.Errorf("ceilDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
