// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package pdb decodes Microsoft Program Database (PDB) files: the
// MSF container, the type-information stream, and the subset of the
// debug information stream needed to resolve global symbol addresses.
package pdb

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/saferwall/pdb/log"
)

// MaxDefaultTypeRecordsCount bounds the number of TPI leaf records
// Parse will decode unless Options.MaxTypeRecords overrides it.
const MaxDefaultTypeRecordsCount = 2_000_000

// parserState tracks how far Parse has gotten, so a caller that
// inspects a Parser mid-failure (or before Parse is even called) gets
// a clear answer instead of a half-populated struct with no signal.
type parserState int

const (
	stateUnopened parserState = iota
	stateSuperblockRead
	stateRootMaterialised
	stateStreamsIndexed
	stateParsed
	stateFailed
	stateClosed
)

// Options configures Parse.
type Options struct {
	// Fast skips the TPI and global-symbol passes, leaving only the
	// superblock, PDB Info, and DBI fixed header decoded.
	Fast bool

	// MaxTypeRecords bounds the TPI stream's leaf-record count; 0
	// means MaxDefaultTypeRecordsCount.
	MaxTypeRecords uint32

	// ImageBase is added to every resolved RVA to produce
	// GlobalSymbol.Address. PrintGlobals does not read it; it takes
	// its own image base argument.
	ImageBase uint64

	// Logger is a custom logger; nil uses a stderr logger at Warn
	// level and above.
	Logger log.Logger
}

// Parser holds one open PDB's decoded state. Its zero value is not
// usable; construct one with Open, OpenFile, or OpenBytes.
type Parser struct {
	buf  Buffer
	data mmap.MMap
	f    *os.File

	opts  *Options
	log   *log.Helper
	state parserState

	container *container
	dispatch  *streamDispatch

	Info *Info
	DBI  *DBI

	graph *TypeGraph

	sections     []SectionHeader
	sectionsOrig []SectionHeader
	omapToSrc    *omapTable
	omapFromSrc  *omapTable
	fpo          []FPORecord
	fpoNew       []FPONewRecord

	globals []GlobalSymbol

	// Anomalies accumulates non-fatal stream-level issues found while
	// parsing: a missing symbol-record or section-headers stream, an
	// optional stream index that is out of range, and an optional or
	// global-symbol stream that fails to parse. Unrecognised leaf
	// kinds are not recorded. A populated Anomalies list never
	// implies Parse failed.
	Anomalies []string
}

func newParser(buf Buffer, opts *Options) *Parser {
	p := &Parser{buf: buf}
	if opts != nil {
		o := *opts
		p.opts = &o
	} else {
		p.opts = &Options{}
	}
	if p.opts.MaxTypeRecords == 0 {
		p.opts.MaxTypeRecords = MaxDefaultTypeRecordsCount
	}
	if p.opts.Logger == nil {
		p.log = log.NewStderrHelper()
	} else {
		p.log = log.NewHelper(p.opts.Logger)
	}
	return p
}

// Open wraps an already-available Buffer (an in-memory slice, a
// memory-mapped region, any ReaderAt-backed source) without taking
// ownership of it; Close is then a no-op on the buffer itself.
func Open(buf Buffer, opts *Options) (*Parser, error) {
	p := newParser(buf, opts)
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenBytes wraps an in-memory PDB image.
func OpenBytes(data []byte, opts *Options) (*Parser, error) {
	return Open(byteBuffer(data), opts)
}

// OpenFile memory-maps name and parses it; Close unmaps and closes
// the underlying file.
func OpenFile(name string, opts *Options) (*Parser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	p := newParser(byteBuffer(data), opts)
	p.data = data
	p.f = f
	if err := p.parse(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the memory mapping and file handle obtained by
// OpenFile. It is safe to call on a Parser obtained from Open or
// OpenBytes, where it simply does nothing.
func (p *Parser) Close() error {
	p.state = stateClosed
	if p.data != nil {
		_ = p.data.Unmap()
	}
	if p.f != nil {
		return p.f.Close()
	}
	return nil
}

// parse drives the Parser through its lifecycle: superblock, root
// directory, fixed-index dispatch, then (unless Fast) TPI and the
// global symbol table.
func (p *Parser) parse() error {
	c, err := parseSuperblock(p.buf)
	if err != nil {
		p.state = stateFailed
		return err
	}
	p.container = c
	p.state = stateSuperblockRead
	p.state = stateRootMaterialised // the root directory is decoded inside parseSuperblock

	if len(c.streams) < 4 {
		p.state = stateFailed
		return &StreamError{StreamIndex: 3, Cause: ErrCorruptDirectory}
	}

	infoRV, err := p.streamView(1)
	if err != nil {
		p.state = stateFailed
		return err
	}
	info, err := parseInfo(infoRV)
	if err != nil {
		p.state = stateFailed
		return err
	}
	p.Info = info

	dbiRV, err := p.streamView(3)
	if err != nil {
		p.state = stateFailed
		return err
	}
	dbi, err := parseDBI(dbiRV)
	if err != nil {
		p.state = stateFailed
		return err
	}
	p.DBI = dbi
	p.dispatch = newStreamDispatch(dbi)
	p.state = stateStreamsIndexed

	if p.opts.Fast {
		p.state = stateParsed
		return nil
	}

	tpiRV, err := p.streamView(2)
	if err != nil {
		p.state = stateFailed
		return err
	}
	graph, err := parseTPI(tpiRV, p.opts.MaxTypeRecords)
	if err != nil {
		p.state = stateFailed
		return err
	}
	p.graph = graph

	p.parseOptionalDebugStreams()

	if present(dbi.SymRecordStream) {
		symRV, err := p.streamView(int(dbi.SymRecordStream))
		if err != nil {
			p.Anomalies = append(p.Anomalies, "symbol record stream index out of range: "+err.Error())
		} else if globals, err := resolveGlobals(symRV, p.sections, p.omapFromSrc, p.opts.ImageBase); err != nil {
			p.log.Warnf("global symbol parsing failed: %v", err)
			p.Anomalies = append(p.Anomalies, "global symbol stream parse failed: "+err.Error())
		} else {
			p.globals = globals
		}
	} else {
		p.Anomalies = append(p.Anomalies, "no symbol record stream present")
	}

	p.state = stateParsed
	return nil
}

// parseOptionalDebugStreams decodes every sub-stream the debug
// sub-header points at, each independently: a missing or malformed
// optional stream is recorded as an anomaly and never aborts Parse.
func (p *Parser) parseOptionalDebugStreams() {
	d := p.dispatch

	if present(d.SectionHeaders) {
		if rv, err := p.streamView(int(d.SectionHeaders)); err != nil {
			p.Anomalies = append(p.Anomalies, "section headers stream index out of range: "+err.Error())
		} else if s, err := parseSectionHeaders(rv); err == nil {
			p.sections = s
		} else {
			p.Anomalies = append(p.Anomalies, "section headers stream parse failed: "+err.Error())
		}
	} else {
		p.Anomalies = append(p.Anomalies, "no section headers stream present")
	}

	if present(d.SectionHeadersOrig) {
		if rv, err := p.streamView(int(d.SectionHeadersOrig)); err != nil {
			p.Anomalies = append(p.Anomalies, "original section headers stream index out of range: "+err.Error())
		} else if s, err := parseSectionHeaders(rv); err == nil {
			p.sectionsOrig = s
		} else {
			p.Anomalies = append(p.Anomalies, "original section headers stream parse failed: "+err.Error())
		}
	}

	if present(d.OMAPToSrc) {
		if rv, err := p.streamView(int(d.OMAPToSrc)); err != nil {
			p.Anomalies = append(p.Anomalies, "OMAP-to-src stream index out of range: "+err.Error())
		} else if t, err := parseOMAP(rv); err == nil {
			p.omapToSrc = t
		} else {
			p.Anomalies = append(p.Anomalies, "OMAP-to-src stream parse failed: "+err.Error())
		}
	}

	if present(d.OMAPFromSrc) {
		if rv, err := p.streamView(int(d.OMAPFromSrc)); err != nil {
			p.Anomalies = append(p.Anomalies, "OMAP-from-src stream index out of range: "+err.Error())
		} else if t, err := parseOMAP(rv); err == nil {
			p.omapFromSrc = t
		} else {
			p.Anomalies = append(p.Anomalies, "OMAP-from-src stream parse failed: "+err.Error())
		}
	}

	if present(d.FPO) {
		if rv, err := p.streamView(int(d.FPO)); err != nil {
			p.Anomalies = append(p.Anomalies, "FPO stream index out of range: "+err.Error())
		} else if f, err := parseFPO(rv); err == nil {
			p.fpo = f
		} else {
			p.Anomalies = append(p.Anomalies, "FPO stream parse failed: "+err.Error())
		}
	}

	if present(d.FPONew) {
		if rv, err := p.streamView(int(d.FPONew)); err != nil {
			p.Anomalies = append(p.Anomalies, "new FPO stream index out of range: "+err.Error())
		} else if f, err := parseFPONew(rv); err == nil {
			p.fpoNew = f
		} else {
			p.Anomalies = append(p.Anomalies, "new FPO stream parse failed: "+err.Error())
		}
	}
}

// streamView builds a view over one of the container's streams. idx
// comes either from a fixed slot (1/2/3) or from a DBI debug-header
// field filtered only by present() (which excludes the 0xFFFF
// sentinel, not an out-of-range index) — a corrupt directory can still
// name a stream beyond the directory's actual stream count, so idx is
// bounds-checked here rather than trusted, per spec §7's error
// taxonomy.
func (p *Parser) streamView(idx int) (*streamView, error) {
	if idx < 0 || idx >= len(p.container.streams) {
		return nil, &StreamError{StreamIndex: idx, Cause: ErrCorruptDirectory}
	}
	s := &p.container.streams[idx]
	return newStreamView(p.buf, s, p.container.pageSize), nil
}

// Sections returns the current (post-OMAP) section table, or nil if
// the PDB carries no section-headers stream.
func (p *Parser) Sections() []SectionHeader { return p.sections }

// Globals returns every resolved public symbol. Call PrintGlobals
// instead for one of the three rendering modes.
func (p *Parser) Globals() []GlobalSymbol { return p.globals }

// TypeGraph exposes the decoded TPI stream for callers that want to
// walk it directly instead of going through PrintTypes.
func (p *Parser) TypeGraph() *TypeGraph { return p.graph }
