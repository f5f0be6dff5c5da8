// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

// dbiAbsent is the sentinel stream index meaning "this optional
// sub-stream is not present" — an all-ones uint16 in the on-disk
// debug sub-header.
const dbiAbsent = 0xFFFF

// DBI is the decoded Debug Information Stream (index 3): the fixed
// header fields the rest of the package cares about, plus the dynamic
// stream indices the debug sub-header hands out for section headers,
// OMAP tables, FPO data, and the token/RID map. Any field left at
// dbiAbsent tells the Fixed-Index Dispatcher that stream is missing
// from this PDB, not that parsing failed.
type DBI struct {
	Age               uint32
	GlobalSymStream   uint16
	PublicSymStream   uint16
	SymRecordStream   uint16
	MachineType       uint16

	SectionHeaderStream     uint16
	SectionHeaderOrigStream uint16
	OMAPToSrcStream         uint16
	OMAPFromSrcStream       uint16
	FPOStream               uint16
	FPONewStream            uint16
	XDataStream             uint16
	PDataStream             uint16
	TokenRIDMapStream       uint16
}

// dbiFixedHeaderSize is the byte length of the DBI stream's fixed
// header, before the four variable-length substreams (modules,
// section contributions, segment map, file info) and the debug
// sub-header that follows them.
const dbiFixedHeaderSize = 64

func parseDBI(rv *streamView) (*DBI, error) {
	if rv.Size() < dbiFixedHeaderSize {
		return nil, &StreamError{StreamIndex: 3, Cause: ErrTruncated}
	}

	_ = rv.readUint32() // version signature (always -1 for modern DBI)
	_ = rv.readUint32() // version header
	age := rv.readUint32()
	globalSymStream := rv.readUint16()
	_ = rv.readUint16() // toolchain version packed word
	publicSymStream := rv.readUint16()
	_ = rv.readUint16() // pdb dll version
	symRecordStream := rv.readUint16()
	_ = rv.readUint16() // pdb dll rbld

	modInfoSize := rv.readUint32()
	secContribSize := rv.readUint32()
	secMapSize := rv.readUint32()
	fileInfoSize := rv.readUint32()

	_ = rv.readUint32() // type-server map size
	_ = rv.readUint32() // MFC type-server index
	_ = rv.readUint32() // optional debug header size
	_ = rv.readUint32() // ec substream size
	_ = rv.readUint16() // flags
	machineType := rv.readUint16()
	_ = rv.readUint32() // padding
	if rv.err {
		return nil, &StreamError{StreamIndex: 3, Cause: ErrTruncated}
	}

	// Skip the four variable-length substreams; the decoder has no
	// use for module info, section contributions, or the segment/file
	// maps at this layer (a future module-level symbol walk would
	// read modInfo, not this one).
	rv.readBytes(modInfoSize)
	rv.readBytes(secContribSize)
	rv.readBytes(secMapSize)
	rv.readBytes(fileInfoSize)
	if rv.err {
		return nil, &StreamError{StreamIndex: 3, Cause: ErrCorruptDirectory}
	}

	dbi := &DBI{
		Age:             age,
		GlobalSymStream: globalSymStream,
		PublicSymStream: publicSymStream,
		SymRecordStream: symRecordStream,
		MachineType:     machineType,
	}

	// The optional debug sub-header is a fixed run of uint16 stream
	// indices; a PDB with no debug info at all may end the stream
	// here, which isn't an error.
	if rv.Remaining() < 2*11 {
		dbi.SectionHeaderStream = dbiAbsent
		dbi.SectionHeaderOrigStream = dbiAbsent
		dbi.OMAPToSrcStream = dbiAbsent
		dbi.OMAPFromSrcStream = dbiAbsent
		dbi.FPOStream = dbiAbsent
		dbi.FPONewStream = dbiAbsent
		dbi.XDataStream = dbiAbsent
		dbi.PDataStream = dbiAbsent
		dbi.TokenRIDMapStream = dbiAbsent
		return dbi, nil
	}

	dbi.FPOStream = rv.readUint16()
	_ = rv.readUint16() // exception data stream
	_ = rv.readUint16() // fixup data stream
	dbi.OMAPToSrcStream = rv.readUint16()
	dbi.OMAPFromSrcStream = rv.readUint16()
	dbi.SectionHeaderStream = rv.readUint16()
	_ = rv.readUint16() // token/rid map stream (classic slot, superseded below)
	dbi.XDataStream = rv.readUint16()
	dbi.PDataStream = rv.readUint16()
	dbi.FPONewStream = rv.readUint16()
	dbi.SectionHeaderOrigStream = rv.readUint16()
	if rv.err {
		return nil, &StreamError{StreamIndex: 3, Cause: ErrCorruptDirectory}
	}
	dbi.TokenRIDMapStream = dbiAbsent
	if rv.Remaining() >= 2 {
		dbi.TokenRIDMapStream = rv.readUint16()
	}

	return dbi, nil
}

// streamDispatch is the Fixed-Index Dispatcher's lookup table (C4):
// the fixed stream indices 1-3 plus every stream index DBI's debug
// sub-header handed out for streams 4 and up.
type streamDispatch struct {
	Info uint16
	TPI  uint16
	DBI  uint16

	SectionHeaders     uint16
	SectionHeadersOrig uint16
	OMAPToSrc          uint16
	OMAPFromSrc        uint16
	FPO                uint16
	FPONew             uint16
	XData              uint16
	PData              uint16
	TokenRIDMap        uint16
}

func newStreamDispatch(dbi *DBI) *streamDispatch {
	return &streamDispatch{
		Info: 1, TPI: 2, DBI: 3,
		SectionHeaders:     dbi.SectionHeaderStream,
		SectionHeadersOrig: dbi.SectionHeaderOrigStream,
		OMAPToSrc:          dbi.OMAPToSrcStream,
		OMAPFromSrc:        dbi.OMAPFromSrcStream,
		FPO:                dbi.FPOStream,
		FPONew:             dbi.FPONewStream,
		XData:              dbi.XDataStream,
		PData:              dbi.PDataStream,
		TokenRIDMap:        dbi.TokenRIDMapStream,
	}
}

// present reports whether a dispatched stream index is a real stream
// rather than the dbiAbsent sentinel.
func present(idx uint16) bool { return idx != dbiAbsent }
