// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the MSF container decoder and the
// stream parsers built on top of it.
var (
	// ErrBadSignature is returned when the superblock bytes do not
	// match the PDB7 ("Microsoft C/C++ MSF 7.00...") signature.
	ErrBadSignature = errors.New("pdb: bad MSF superblock signature")

	// ErrUnsupportedVersion is returned when the file is recognisably a
	// PDB 2.00 ("JG") container. Only signature recognition is
	// supported for that variant.
	ErrUnsupportedVersion = errors.New("pdb: unsupported PDB version (2.00 \"JG\" container)")

	// ErrTruncated is returned on any short read against the
	// underlying buffer.
	ErrTruncated = errors.New("pdb: truncated read")

	// ErrBadContainer is returned when the superblock carries a
	// page_size < 1, a num_root_index_pages < 1, or an offset
	// multiplication that overflows.
	ErrBadContainer = errors.New("pdb: malformed MSF superblock")

	// ErrCorruptDirectory is returned when the root stream's directory
	// overruns its own bounds.
	ErrCorruptDirectory = errors.New("pdb: corrupt stream directory")

	// ErrOutsideBoundary is returned by the in-memory Buffer's ReadAt
	// when the read offset lies outside the file image. Stream views
	// do not return it; an overrun there sets the view's sticky error
	// flag instead.
	ErrOutsideBoundary = errors.New("pdb: read outside boundary")

	// ErrBadLeaf is returned when a TPI leaf record cannot be decoded.
	ErrBadLeaf = errors.New("pdb: malformed type leaf record")

	// ErrTooManyTypes is returned when the TPI stream declares more
	// type records than Options.MaxTypeRecords allows.
	ErrTooManyTypes = errors.New("pdb: type count exceeds configured maximum")
)

// StreamError reports a failure while parsing one specific stream.
// It wraps the underlying cause so callers can still errors.Is against
// the sentinels above.
type StreamError struct {
	StreamIndex int
	Cause       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("pdb: stream %d: %v", e.StreamIndex, e.Cause)
}

func (e *StreamError) Unwrap() error { return e.Cause }

// MissingStreamError is returned when an operation needs a stream
// that the DBI debug header marked absent (or that never parsed).
type MissingStreamError struct {
	Kind string
}

func (e *MissingStreamError) Error() string {
	return fmt.Sprintf("pdb: missing stream: %s", e.Kind)
}
