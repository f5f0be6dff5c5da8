// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import "fmt"

// symbolKindPub32 is the CodeView S_PUB32 symbol record kind, the only
// kind the global-symbol projector understands; every other kind in
// the symbol stream is skipped.
const symbolKindPub32 = 0x110E

// GlobalSymbol is one resolved public/global symbol: a name and the
// address it lives at once section, OMAP, and image-base offsets have
// all been folded in (C9). SymType carries the record's own pubsymflags
// word verbatim, per spec §3's {name, segment, offset, symtype} model.
type GlobalSymbol struct {
	Name    string
	Section uint16
	Offset  uint32
	SymType uint32
	RVA     uint32
	Address uint64
	IsCode  bool
}

// Demangler is an optional external collaborator that undoes C++ name
// mangling; PrintGlobals falls back to the raw mangled name when
// Demangler is nil or returns ok=false, per spec §6.
type Demangler func(mangled string) (plain string, ok bool)

// resolveGlobals decodes the public-symbol stream and resolves every
// PUB32 record's address through the section table and (if present)
// the OMAP-from-src table.
func resolveGlobals(rv *streamView, sections []SectionHeader, omap *omapTable, imageBase uint64) ([]GlobalSymbol, error) {
	var out []GlobalSymbol
	for rv.Remaining() > 0 {
		recLen := rv.readUint16()
		if rv.err {
			break
		}
		if recLen < 2 {
			return nil, &StreamError{StreamIndex: -1, Cause: ErrBadLeaf}
		}
		body := rv.readBytes(uint32(recLen))
		if rv.err {
			return nil, &StreamError{StreamIndex: -1, Cause: ErrTruncated}
		}
		r := &leafReader{b: body}
		kind := r.u16()
		if kind != symbolKindPub32 {
			continue
		}
		flags := r.u32()
		offset := r.u32()
		section := r.u16()
		name := r.cstring()
		if r.overrun() {
			continue // malformed record, skip rather than abort the whole stream
		}

		rva, ok := resolveRVA(sections, section, offset)
		if !ok {
			continue
		}
		rva = omap.remap(rva)

		out = append(out, GlobalSymbol{
			Name:    name,
			Section: section,
			Offset:  offset,
			SymType: flags,
			RVA:     rva,
			Address: imageBase + uint64(rva),
			IsCode:  flags&1 != 0,
		})
	}
	return out, nil
}

// PrintGlobals renders every resolved global symbol. demangle may be
// nil, in which case names are always printed mangled.
func (p *Parser) PrintGlobals(imageBase uint64, mode RenderMode, w interface{ Write([]byte) (int, error) }, sink JSONSink, demangle Demangler) error {
	if p.globals == nil {
		return &MissingStreamError{Kind: "global symbols"}
	}

	if mode == RenderJSON {
		sink.OpenArray("globals")
	}
	for _, g := range p.globals {
		addr := imageBase + uint64(g.RVA)
		name := g.Name
		if demangle != nil {
			if plain, ok := demangle(g.Name); ok {
				name = plain
			}
		}
		section := p.sectionName(g.Section)
		switch mode {
		case RenderHuman:
			fmt.Fprintf(w, "0x%08x  %d  %s  %s\n", addr, g.SymType, section, name)
		case RenderPackFormat:
			filtered := filterFlagName(name)
			fmt.Fprintf(w, "f pdb.%s = 0x%x # %d %s\n", filtered, addr, g.SymType, section)
			fmt.Fprintf(w, "\"fN pdb.%s %s\"\n", filtered, name)
		case RenderJSON:
			sink.OpenObject()
			sink.KeyNumber("address", addr)
			sink.KeyNumber("symtype", uint64(g.SymType))
			sink.KeyString("section_name", section)
			sink.KeyString("gdata_name", name)
			sink.End()
		}
	}
	if mode == RenderJSON {
		sink.End()
	}
	return nil
}

// filterFlagName sanitizes a symbol name for use as a flag/script
// identifier: spaces and punctuation that would break the "f pdb.<name>"
// line syntax are replaced with underscores. The source's
// rz_name_filter2 isn't part of the retrieved reference set, so this is
// a minimal rendition covering the characters a demangled C++ name
// (spaces, parens, commas, colons, angle brackets) actually produces.
func filterFlagName(name string) string {
	filtered := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '.':
			filtered[i] = c
		default:
			filtered[i] = '_'
		}
	}
	return string(filtered)
}

// sectionName returns a 1-based section's name, trimmed of trailing
// NUL padding, or "" if the index is out of range.
func (p *Parser) sectionName(sectionIndex uint16) string {
	if sectionIndex == 0 || int(sectionIndex) > len(p.sections) {
		return ""
	}
	raw := p.sections[sectionIndex-1].Name
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}
