// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
)

// GUID is the 16-byte identifier embedded in the PDB Info Stream,
// laid out the same way a CodeView CV_INFO_PDB70 signature field is.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// Info is the decoded PDB Info Stream (index 1): the container's
// version/age stamp and the GUID debuggers match against a binary's
// embedded CodeView debug directory entry.
type Info struct {
	Version   uint32
	Signature uint32
	Age       uint32
	GUID      GUID
	// Names maps each entry of the named-stream table ("/LinkInfo",
	// "/names", ...) to its stream index; the raw names blob itself
	// is not kept.
	Names map[string]uint32
}

// parseInfo decodes stream 1 (C... PDB Info Stream).
func parseInfo(rv *streamView) (*Info, error) {
	info := &Info{}
	info.Version = rv.readUint32()
	info.Signature = rv.readUint32()
	info.Age = rv.readUint32()
	info.GUID.Data1 = rv.readUint32()
	info.GUID.Data2 = rv.readUint16()
	info.GUID.Data3 = rv.readUint16()
	for i := range info.GUID.Data4 {
		info.GUID.Data4[i] = rv.readUint8()
	}
	if rv.err {
		return nil, &StreamError{StreamIndex: 1, Cause: ErrTruncated}
	}

	namesLen := rv.readUint32()
	if rv.err {
		return nil, &StreamError{StreamIndex: 1, Cause: ErrTruncated}
	}
	namesBlob := rv.readBytes(namesLen)
	if rv.err {
		return nil, &StreamError{StreamIndex: 1, Cause: ErrTruncated}
	}

	numHashes := rv.readUint32()
	numPresent := rv.readUint32()
	if rv.err {
		return nil, &StreamError{StreamIndex: 1, Cause: ErrTruncated}
	}
	// Skip the present/deleted bit vectors: their lengths are
	// themselves length-prefixed word counts.
	presentWords := rv.readUint32()
	rv.readBytes(presentWords * 4)
	deletedWords := rv.readUint32()
	rv.readBytes(deletedWords * 4)
	if rv.err {
		return nil, &StreamError{StreamIndex: 1, Cause: ErrTruncated}
	}

	info.Names = make(map[string]uint32, numPresent)
	for i := uint32(0); i < numPresent; i++ {
		nameOffset := rv.readUint32()
		streamIdx := rv.readUint32()
		if rv.err {
			return nil, &StreamError{StreamIndex: 1, Cause: ErrTruncated}
		}
		info.Names[decodeNameAt(namesBlob, nameOffset)] = streamIdx
	}
	_ = numHashes

	return info, nil
}

// cstringAt reads a NUL-terminated string out of a names blob at the
// given byte offset, returning "" if the offset is out of bounds.
func cstringAt(blob []byte, offset uint32) string {
	if int64(offset) >= int64(len(blob)) {
		return ""
	}
	end := offset
	for end < uint32(len(blob)) && blob[end] != 0 {
		end++
	}
	return string(blob[offset:end])
}

// decodeNameAt reads one entry out of the Info Stream's names blob,
// the same length-prefixed table that backs the named-stream lookup
// ("/LinkInfo", "/names", ...). Most producers emit these as narrow
// ASCII, but some write them UTF-16LE the same way PE resource and
// version strings are encoded; decodeNameAt detects the wide form by
// its telltale NUL-every-other-byte pattern and decodes it with
// DecodeUTF16String, falling back to the narrow decode otherwise.
func decodeNameAt(blob []byte, offset uint32) string {
	if int64(offset) >= int64(len(blob)) {
		return ""
	}
	if looksWideEncoded(blob[offset:]) {
		if s, err := DecodeUTF16String(blob[offset:]); err == nil {
			return s
		}
	}
	return cstringAt(blob, offset)
}

// looksWideEncoded reports whether b looks like a UTF-16LE string:
// walking it two bytes at a time, every code unit's high byte is zero
// (ASCII-range wide characters) right up until a double-NUL pair
// terminates it. A single NUL in the low byte of the first pair (an
// ordinary narrow C string) fails this immediately.
func looksWideEncoded(b []byte) bool {
	sawChar := false
	for i := 0; i+1 < len(b); i += 2 {
		lo, hi := b[i], b[i+1]
		if lo == 0 && hi == 0 {
			return sawChar
		}
		if hi != 0 {
			return false
		}
		sawChar = true
	}
	return false
}

// DecodeUTF16String decodes a UTF-16LE byte run up to its terminating
// double-NUL, which is not part of the result, mirroring the teacher's
// PE string helper of the same name.
func DecodeUTF16String(b []byte) (string, error) {
	n := bytes.Index(b, []byte{0, 0})
	if n <= 0 {
		return "", nil
	}
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	s, err := decoder.Bytes(b[0 : n+1])
	if err != nil {
		return "", err
	}
	return string(s), nil
}
