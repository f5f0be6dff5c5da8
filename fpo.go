// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

// FPORecord is one classic (pre-x64) FPO_DATA entry: the frame-size
// bookkeeping a debugger needs to unwind a stack frame that has no
// standard prologue. PrologBytes and the SEH/frame-type bits share a
// single trailing WORD on disk, per the real FPO_DATA layout.
type FPORecord struct {
	Offset      uint32
	ProcSize    uint32
	LocalsSize  uint32
	ParamsSize  uint16
	PrologBytes uint8
	Flags       uint8
}

const fpoRecordSize = 16

func parseFPO(rv *streamView) ([]FPORecord, error) {
	n := rv.Size() / fpoRecordSize
	out := make([]FPORecord, 0, n)
	for i := uint32(0); i < n; i++ {
		var f FPORecord
		f.Offset = rv.readUint32()
		f.ProcSize = rv.readUint32()
		f.LocalsSize = rv.readUint32()
		f.ParamsSize = rv.readUint16()
		packed := rv.readUint16()
		f.PrologBytes = uint8(packed & 0xFF)
		f.Flags = uint8(packed >> 8)
		if rv.err {
			return nil, ErrTruncated
		}
		out = append(out, f)
	}
	return out, nil
}

// FPONewRecord is one "new" (extended) FPO record, the successor
// format DBI's NewFPO sub-stream carries when present; it is kept
// opaque beyond its frame-size fields since no projector needs its
// program-string encoding.
type FPONewRecord struct {
	RVAStart   uint32
	CodeSize   uint32
	LocalsSize uint32
	ParamsSize uint32
}

const fpoNewRecordSize = 36

func parseFPONew(rv *streamView) ([]FPONewRecord, error) {
	n := rv.Size() / fpoNewRecordSize
	out := make([]FPONewRecord, 0, n)
	for i := uint32(0); i < n; i++ {
		var f FPONewRecord
		f.RVAStart = rv.readUint32()
		f.CodeSize = rv.readUint32()
		f.LocalsSize = rv.readUint32()
		f.ParamsSize = rv.readUint32()
		rv.readBytes(fpoNewRecordSize - 16)
		if rv.err {
			return nil, ErrTruncated
		}
		out = append(out, f)
	}
	return out, nil
}
