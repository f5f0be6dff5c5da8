// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import "sort"

// omapEntry is one (from, to) address pair in an OMAP table. The
// table is sorted by From and used for binary-search remap, mirroring
// how linkers emit it after code reordering (/OPT:REF, /OPT:ICF).
type omapEntry struct {
	From uint32
	To   uint32
}

// omapTable is a decoded OMAP_TO_SRC or OMAP_FROM_SRC sub-stream.
type omapTable struct {
	entries []omapEntry
}

func parseOMAP(rv *streamView) (*omapTable, error) {
	n := rv.Size() / 8
	t := &omapTable{entries: make([]omapEntry, 0, n)}
	for i := uint32(0); i < n; i++ {
		from := rv.readUint32()
		to := rv.readUint32()
		if rv.err {
			return nil, ErrTruncated
		}
		t.entries = append(t.entries, omapEntry{From: from, To: to})
	}
	return t, nil
}

// remap maps an address through the table via binary search over the
// monotone From column, per spec §4.4 and §4.7. A nil table (OMAP
// absent) or an empty table is the identity mapping. An address below
// the first entry maps directly; otherwise the preceding entry's To
// plus the address's offset past its From is used, unless that
// entry's To is 0 — a zero target means the address was discarded by
// the linker (e.g. folded/eliminated code) and has no mapped
// location, so remap reports 0 rather than a bogus offset from 0.
func (t *omapTable) remap(addr uint32) uint32 {
	if t == nil || len(t.entries) == 0 {
		return addr
	}
	entries := t.entries
	i := sort.Search(len(entries), func(i int) bool { return entries[i].From > addr })
	if i == 0 {
		return addr
	}
	e := entries[i-1]
	if e.To == 0 {
		return 0
	}
	return e.To + (addr - e.From)
}
