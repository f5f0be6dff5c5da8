// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import "io"

// Fuzz is a go-fuzz entry point: it decodes data as a PDB, walks the
// type graph and global symbol table, and reports interesting inputs
// to the fuzzer via the conventional return codes.
func Fuzz(data []byte) int {
	p, err := OpenBytes(data, nil)
	if err != nil {
		return 0
	}
	defer p.Close()

	if err := p.PrintTypes(RenderHuman, io.Discard, nil); err != nil {
		return 0
	}
	if err := p.PrintGlobals(0, RenderHuman, discardWriter{}, nil, nil); err != nil {
		return 0
	}
	return 1
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var _ io.Writer = discardWriter{}
