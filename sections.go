// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

// SectionHeader is one entry of the image's section table, as
// embedded in the DBI debug sub-header's section-headers stream. Only
// the fields the global-symbol projector needs are kept: a section's
// name is diagnostic only, never load-bearing for address resolution.
type SectionHeader struct {
	Name           [8]byte
	VirtualSize    uint32
	VirtualAddress uint32
}

const sectionHeaderRecordSize = 40

// parseSectionHeaders decodes a whole section-headers (or
// section-headers-orig) sub-stream into its fixed-size records.
func parseSectionHeaders(rv *streamView) ([]SectionHeader, error) {
	n := rv.Size() / sectionHeaderRecordSize
	out := make([]SectionHeader, 0, n)
	for i := uint32(0); i < n; i++ {
		var sh SectionHeader
		copy(sh.Name[:], rv.readBytes(8))
		sh.VirtualSize = rv.readUint32()
		sh.VirtualAddress = rv.readUint32()
		rv.readBytes(sectionHeaderRecordSize - 8 - 4 - 4) // pointers, relocations, characteristics
		if rv.err {
			return nil, ErrTruncated
		}
		out = append(out, sh)
	}
	return out, nil
}

// resolveRVA converts a (1-based section index, section offset) pair
// — the form symbol records carry — into an image-relative virtual
// address. An out-of-range section index reports ok=false instead of
// panicking, since a stripped or mismatched PDB can reference a
// section that no longer exists.
func resolveRVA(sections []SectionHeader, sectionIndex uint16, offset uint32) (uint32, bool) {
	if sectionIndex == 0 || int(sectionIndex) > len(sections) {
		return 0, false
	}
	sh := sections[sectionIndex-1]
	return sh.VirtualAddress + offset, true
}
