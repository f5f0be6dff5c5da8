// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import "encoding/binary"

// Buffer is the random-access byte source the decoder reads the file
// image through. It is the "byte-buffer primitive" the package spec
// treats as an external collaborator: callers bring their own
// (an in-memory slice, a memory-mapped file, a custom ReaderAt) and
// the decoder never assumes ownership of anything beyond what
// OpenFile itself maps.
type Buffer interface {
	ReadAt(p []byte, off int64) (int, error)
	Len() int64
}

// byteBuffer adapts a plain byte slice (or a memory-mapped one, since
// mmap.MMap is itself a []byte) to Buffer.
type byteBuffer []byte

func (b byteBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, ErrOutsideBoundary
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, ErrTruncated
	}
	return n, nil
}

func (b byteBuffer) Len() int64 { return int64(len(b)) }

// streamView presents a stream's discontiguous page list as a
// contiguous byte sequence with a read cursor (C2). It borrows the
// stream and the underlying buffer; it never outlives either.
type streamView struct {
	buf      Buffer
	pages    []pageIndex
	pageSize uint32
	size     uint32
	offset   uint32
	err      bool
}

func newStreamView(buf Buffer, s *stream, pageSize uint32) *streamView {
	return &streamView{buf: buf, pages: s.pages, pageSize: pageSize, size: s.size}
}

// Size returns the stream's declared byte length.
func (sv *streamView) Size() uint32 { return sv.size }

// Err reports whether a read has run past the end of the stream since
// the view was created (or since the last call to clearErr).
func (sv *streamView) Err() bool { return sv.err }

func (sv *streamView) clearErr() { sv.err = false }

// Seek repositions the read cursor to an absolute logical offset.
func (sv *streamView) Seek(offset uint32) { sv.offset = offset }

// Remaining returns the number of unread bytes, or 0 past the end.
func (sv *streamView) Remaining() uint32 {
	if sv.offset >= sv.size {
		return 0
	}
	return sv.size - sv.offset
}

// readBytes returns the next n bytes, advancing the cursor. A request
// that runs past the stream's declared size sets the sticky error
// flag and returns a zero-filled slice, per spec §4.2.
func (sv *streamView) readBytes(n uint32) []byte {
	out := make([]byte, n)
	if sv.offset+n > sv.size || sv.offset+n < sv.offset {
		sv.err = true
		return out
	}
	pos := 0
	remaining := n
	logical := sv.offset
	for remaining > 0 {
		pageSlot := logical / sv.pageSize
		byteInPage := logical % sv.pageSize
		if int(pageSlot) >= len(sv.pages) {
			sv.err = true
			return out
		}
		fileOffset := int64(sv.pages[pageSlot])*int64(sv.pageSize) + int64(byteInPage)
		chunk := sv.pageSize - byteInPage
		if chunk > remaining {
			chunk = remaining
		}
		got, err := sv.buf.ReadAt(out[pos:pos+int(chunk)], fileOffset)
		if err != nil || uint32(got) != chunk {
			sv.err = true
			return out
		}
		pos += int(chunk)
		logical += chunk
		remaining -= chunk
	}
	sv.offset += n
	return out
}

func (sv *streamView) readUint8() uint8 {
	b := sv.readBytes(1)
	return b[0]
}

func (sv *streamView) readUint16() uint16 {
	b := sv.readBytes(2)
	return binary.LittleEndian.Uint16(b)
}

func (sv *streamView) readUint32() uint32 {
	b := sv.readBytes(4)
	return binary.LittleEndian.Uint32(b)
}

func (sv *streamView) readUint64() uint64 {
	b := sv.readBytes(8)
	return binary.LittleEndian.Uint64(b)
}

// readCString reads a NUL-terminated string starting at the cursor,
// advancing past the terminator. A missing terminator before the end
// of stream sets the error flag, same as any other overrun.
func (sv *streamView) readCString() string {
	var buf []byte
	for {
		if sv.offset >= sv.size {
			sv.err = true
			return string(buf)
		}
		b := sv.readBytes(1)
		if sv.err {
			return string(buf)
		}
		if b[0] == 0 {
			return string(buf)
		}
		buf = append(buf, b[0])
	}
}

// readAll materialises the whole stream, e.g. for streams the decoder
// keeps opaque (the PDB Info names blob, unrecognised debug streams).
func (sv *streamView) readAll() []byte {
	sv.Seek(0)
	return sv.readBytes(sv.size)
}
