// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

// This file holds shared helpers for building synthetic in-memory MSF
// images, since the retrieval pack carries no PDB fixture files the
// way the teacher's test/*.dll binaries do for PE.

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func u16le(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

func putU32(b []byte, off int, v uint32) {
	copy(b[off:], u32le(v))
}

func ceilDivInt(a, b int) int {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// buildMSF assembles a complete PDB7 file image out of a list of
// stream contents, where streams[i] is the byte content of stream
// index i. Page 0 is reserved for the superblock and the root-index
// page-number array; pageSize must be large enough to hold both
// (4096 comfortably is, for any test with a handful of streams).
func buildMSF(pageSize uint32, streams [][]byte) []byte {
	pages := [][]byte{nil} // page 0 reserved for the header

	allocPages := func(data []byte) []uint32 {
		n := ceilDivInt(len(data), int(pageSize))
		idxs := make([]uint32, 0, n)
		for i := 0; i < n; i++ {
			chunk := make([]byte, pageSize)
			start := i * int(pageSize)
			end := start + int(pageSize)
			if end > len(data) {
				end = len(data)
			}
			copy(chunk, data[start:end])
			idxs = append(idxs, uint32(len(pages)))
			pages = append(pages, chunk)
		}
		return idxs
	}

	streamPageLists := make([][]uint32, len(streams))
	for i, s := range streams {
		streamPageLists[i] = allocPages(s)
	}

	var root []byte
	root = append(root, u32le(uint32(len(streams)))...)
	for _, s := range streams {
		root = append(root, u32le(uint32(len(s)))...)
	}
	for _, pl := range streamPageLists {
		for _, p := range pl {
			root = append(root, u32le(p)...)
		}
	}

	rootPages := allocPages(root)

	var rootPageListBytes []byte
	for _, p := range rootPages {
		rootPageListBytes = append(rootPageListBytes, u32le(p)...)
	}
	rootIndexPages := allocPages(rootPageListBytes)

	header := make([]byte, pageSize)
	copy(header[0:32], pdb7Signature[:])
	putU32(header, 32, pageSize)
	putU32(header, 36, 0)
	putU32(header, 44, uint32(len(root)))
	putU32(header, 48, 0)
	for i, p := range rootIndexPages {
		putU32(header, 52+i*4, p)
	}
	pages[0] = header
	putU32(pages[0], 40, uint32(len(pages)))

	var file []byte
	for _, p := range pages {
		file = append(file, p...)
	}
	return file
}

// leafRecord wraps a top-level TPI record (kind+payload, in kindPayload)
// with the 2-byte length prefix the TPI and symbol streams expect:
// length counts every byte that follows the length field itself.
func leafRecord(kindPayload []byte) []byte {
	out := make([]byte, 2, 2+len(kindPayload))
	u16put(out, 0, uint16(len(kindPayload)))
	return append(out, kindPayload...)
}

func u16put(b []byte, off int, v uint16) {
	copy(b[off:], u16le(v))
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}
