// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"encoding/json"
	"io"
	"strconv"
)

// JSONSink receives the JSON-mode projection as a stream of structural
// events rather than a single marshalled value, so a caller can fold
// it directly into a larger document (or re-stream it) without the
// projector ever constructing an intermediate tree.
type JSONSink interface {
	OpenObject()
	OpenArray(key string)
	KeyString(key, value string)
	KeyNumber(key string, value uint64)
	End()
}

// writerJSONSink is a reference JSONSink that renders straight to an
// io.Writer, used by the CLI and by tests that want a parseable
// result rather than a mock-assertion trace.
type writerJSONSink struct {
	w       io.Writer
	stack   []frame
	started bool
}

type frame struct {
	isArray    bool
	wroteFirst bool
}

// NewWriterJSONSink returns a JSONSink that writes compact JSON to w.
func NewWriterJSONSink(w io.Writer) JSONSink {
	return &writerJSONSink{w: w}
}

func (s *writerJSONSink) comma() {
	if len(s.stack) == 0 {
		return
	}
	top := &s.stack[len(s.stack)-1]
	if top.wroteFirst {
		io.WriteString(s.w, ",")
	}
	top.wroteFirst = true
}

func (s *writerJSONSink) OpenObject() {
	s.comma()
	io.WriteString(s.w, "{")
	s.stack = append(s.stack, frame{})
}

func (s *writerJSONSink) OpenArray(key string) {
	s.comma()
	if key != "" {
		s.writeKey(key)
	}
	io.WriteString(s.w, "[")
	s.stack = append(s.stack, frame{isArray: true})
}

func (s *writerJSONSink) writeKey(key string) {
	b, _ := json.Marshal(key)
	s.w.Write(b)
	io.WriteString(s.w, ":")
}

func (s *writerJSONSink) KeyString(key, value string) {
	s.comma()
	if key != "" {
		s.writeKey(key)
	}
	b, _ := json.Marshal(value)
	s.w.Write(b)
}

func (s *writerJSONSink) KeyNumber(key string, value uint64) {
	s.comma()
	if key != "" {
		s.writeKey(key)
	}
	io.WriteString(s.w, strconv.FormatUint(value, 10))
}

func (s *writerJSONSink) End() {
	if len(s.stack) == 0 {
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if top.isArray {
		io.WriteString(s.w, "]")
	} else {
		io.WriteString(s.w, "}")
	}
}
