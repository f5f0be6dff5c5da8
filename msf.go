// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"encoding/binary"
	"math"
)

// pdb7Signature is the 32-byte superblock magic of a PDB7 ("big MSF")
// container.
var pdb7Signature = [32]byte{
	'M', 'i', 'c', 'r', 'o', 's', 'o', 'f', 't', ' ', 'C', '/', 'C', '+', '+', ' ',
	'M', 'S', 'F', ' ', '7', '.', '0', '0', '\r', '\n', 0x1A, 'D', 'S', 0, 0, 0,
}

// pdb2Signature is the legacy "JG" superblock magic, recognised only
// so that Open can report ErrUnsupportedVersion instead of
// ErrBadSignature.
var pdb2Signature = []byte("Microsoft C/C++ program database 2.00\r\n\x1AJG\x00\x00")

// pageIndex is a 32-bit page number into the file image.
type pageIndex = uint32

// stream is one logical byte sequence reconstructed from the MSF
// directory: its declared size and the ordered list of pages holding
// its bytes. Streams are immutable once the container has decoded
// them.
type stream struct {
	size  uint32
	pages []pageIndex
}

// container is a fully decoded MSF superblock plus stream directory.
// It owns every stream's page list; Parser.streamView borrows from it.
type container struct {
	pageSize uint32
	numPages uint32
	streams  []stream
}

// ceilDiv returns ceil(a/b), with b == 0 treated as producing 0 (the
// superblock validity check on page_size happens before this is ever
// called with b == 0 in practice).
func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// readPage returns the page_size bytes at the given page index.
func readPage(buf Buffer, idx pageIndex, pageSize uint32) ([]byte, error) {
	if pageSize == 0 {
		return nil, ErrBadContainer
	}
	// Overflow guard for idx*pageSize, per spec §4.1.
	if pageSize != 0 && uint64(idx) > math.MaxUint64/uint64(pageSize) {
		return nil, ErrBadContainer
	}
	off := int64(idx) * int64(pageSize)
	buf2 := make([]byte, pageSize)
	n, err := buf.ReadAt(buf2, off)
	if err != nil || uint32(n) != pageSize {
		return nil, ErrTruncated
	}
	return buf2, nil
}

// parseSuperblock decodes the PDB7 superblock and materialises the
// root directory, returning a fully-populated container (C3).
func parseSuperblock(buf Buffer) (*container, error) {
	if buf.Len() < 32+20 {
		return nil, ErrTruncated
	}

	var sig [32]byte
	if n, err := buf.ReadAt(sig[:], 0); err != nil || n != 32 {
		return nil, ErrTruncated
	}
	if sig == pdb7Signature {
		// fall through
	} else if matchesPDB2(sig[:], buf) {
		return nil, ErrUnsupportedVersion
	} else {
		return nil, ErrBadSignature
	}

	hdr := make([]byte, 20)
	if n, err := buf.ReadAt(hdr, 32); err != nil || n != 20 {
		return nil, ErrTruncated
	}
	pageSize := binary.LittleEndian.Uint32(hdr[0:4])
	// allocTablePtr := binary.LittleEndian.Uint32(hdr[4:8]) // unused by the decoder
	numFilePages := binary.LittleEndian.Uint32(hdr[8:12])
	rootSize := binary.LittleEndian.Uint32(hdr[12:16])
	// reserved := binary.LittleEndian.Uint32(hdr[16:20])

	if pageSize < 1 {
		return nil, ErrBadContainer
	}

	numRootPages := ceilDiv(rootSize, pageSize)
	numRootIndexPages := ceilDiv(numRootPages*4, pageSize)
	if numRootIndexPages < 1 {
		return nil, ErrBadContainer
	}

	rootIndexBytes := make([]byte, int(numRootIndexPages)*4)
	if n, err := buf.ReadAt(rootIndexBytes, 52); err != nil || n != len(rootIndexBytes) {
		return nil, ErrTruncated
	}
	rootIndexPages := make([]pageIndex, numRootIndexPages)
	for i := range rootIndexPages {
		rootIndexPages[i] = binary.LittleEndian.Uint32(rootIndexBytes[i*4:])
	}

	// Concatenate the pages pointed to by rootIndexPages into a
	// scratch buffer, then take the first numRootPages u32 values as
	// the root page list.
	scratch := make([]byte, 0, int(numRootIndexPages)*int(pageSize))
	for _, idx := range rootIndexPages {
		page, err := readPage(buf, idx, pageSize)
		if err != nil {
			return nil, err
		}
		scratch = append(scratch, page...)
	}
	if uint32(len(scratch)) < numRootPages*4 {
		return nil, ErrCorruptDirectory
	}
	rootPageList := make([]pageIndex, numRootPages)
	for i := range rootPageList {
		rootPageList[i] = binary.LittleEndian.Uint32(scratch[i*4:])
	}

	root := &stream{size: rootSize, pages: rootPageList}
	rv := newStreamView(buf, root, pageSize)

	streams, err := parseRootStream(rv, pageSize)
	if err != nil {
		return nil, err
	}

	return &container{
		pageSize: pageSize,
		numPages: numFilePages,
		streams:  streams,
	}, nil
}

// matchesPDB2 reports whether buf begins with the whole legacy PDB 2.00
// ("JG") signature. It re-reads that signature from buf; the
// already-read 32-byte window sig is not consulted.
func matchesPDB2(sig []byte, buf Buffer) bool {
	if buf.Len() < int64(len(pdb2Signature)) {
		return false
	}
	full := make([]byte, len(pdb2Signature))
	n, err := buf.ReadAt(full, 0)
	if err != nil || n != len(full) {
		return false
	}
	for i, b := range pdb2Signature {
		if full[i] != b {
			return false
		}
	}
	return true
}

// parseRootStream reads the stream count, the per-stream sizes, and
// the per-stream page lists out of the already-materialised root
// directory stream.
func parseRootStream(rv *streamView, pageSize uint32) ([]stream, error) {
	numStreams := rv.readUint32()
	if rv.err {
		return nil, ErrCorruptDirectory
	}

	sizes := make([]uint32, numStreams)
	for i := range sizes {
		sz := rv.readUint32()
		if rv.err {
			return nil, ErrCorruptDirectory
		}
		if sz == 0xFFFFFFFF {
			sz = 0
		}
		sizes[i] = sz
	}

	streams := make([]stream, numStreams)
	for i, sz := range sizes {
		numPages := ceilDiv(sz, pageSize)
		pages := make([]pageIndex, numPages)
		for j := range pages {
			pages[j] = rv.readUint32()
			if rv.err {
				return nil, ErrCorruptDirectory
			}
		}
		streams[i] = stream{size: sz, pages: pages}
	}
	return streams, nil
}
