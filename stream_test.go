// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import "testing"

// TestStreamViewPageSpanningRead builds a stream whose content spans
// three small pages and checks that readBytes reassembles it exactly,
// per spec §8 invariant 2.
func TestStreamViewPageSpanningRead(t *testing.T) {
	const pageSize = 4
	// Three pages of raw file data; the stream's logical bytes are
	// pages 2, 0, 1 in that order (out-of-order on purpose).
	file := make([]byte, pageSize*3)
	copy(file[0*pageSize:], []byte{0xAA, 0xAB, 0xAC, 0xAD}) // page 0
	copy(file[1*pageSize:], []byte{0xBA, 0xBB, 0xBC, 0xBD}) // page 1
	copy(file[2*pageSize:], []byte{0xCA, 0xCB, 0xCC, 0xCD}) // page 2

	s := &stream{size: 10, pages: []pageIndex{2, 0, 1}}
	sv := newStreamView(byteBuffer(file), s, pageSize)

	got := sv.readBytes(10)
	want := []byte{0xCA, 0xCB, 0xCC, 0xCD, 0xAA, 0xAB, 0xAC, 0xAD, 0xBA, 0xBB}
	if sv.Err() {
		t.Fatal("unexpected stream error")
	}
	if string(got) != string(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestStreamViewOverrunSetsStickyError(t *testing.T) {
	s := &stream{size: 4, pages: []pageIndex{0}}
	sv := newStreamView(byteBuffer(make([]byte, 16)), s, 4)

	sv.readBytes(2)
	if sv.Err() {
		t.Fatal("unexpected error after in-bounds read")
	}
	sv.readBytes(4) // only 2 bytes remain in a 4-byte stream
	if !sv.Err() {
		t.Fatal("expected sticky error after overrun read")
	}
	sv.clearErr()
	if sv.Err() {
		t.Fatal("clearErr did not reset the flag")
	}
}

func TestStreamViewReadCString(t *testing.T) {
	data := append([]byte("hello"), 0, 'X')
	s := &stream{size: uint32(len(data)), pages: []pageIndex{0}}
	sv := newStreamView(byteBuffer(data), s, uint32(len(data)))

	got := sv.readCString()
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}
