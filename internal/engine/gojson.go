package engine

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"
)

// ErrTrailingData is returned by a JSON source when bytes other than
// whitespace follow the top-level value.
var ErrTrailingData = errors.New("unexpected data after top-level value")

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	expectingKey bool
}

type jsonSource struct {
	dec        *j.Decoder
	stack      []frame
	lastOffset int64
	done       bool
}

// ValidJSON reports whether data is a single well-formed JSON document.
// go-json's Valid also rejects numbers beyond float64 range, such as 1e400,
// so those documents get a second, purely grammatical check.
func ValidJSON(data []byte) bool { return j.Valid(data) || stdjson.Valid(data) }

// NewJSONBytes wraps a byte slice into a TokenSource for JSON backed by
// goccy/go-json. Numbers are surfaced as text so callers can decide between
// integer and floating point representations.
func NewJSONBytes(b []byte) TokenSource {
	dec := j.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return &jsonSource{dec: dec, lastOffset: -1}
}

func (s *jsonSource) NextToken() (Token, error) {
	if s.done {
		// The top-level value has been consumed; anything else is junk.
		if _, err := s.dec.Token(); err != io.EOF {
			return Token{}, ErrTrailingData
		}
		return Token{}, io.EOF
	}
	tok, err := s.dec.Token()
	if err != nil {
		if err == io.EOF {
			return Token{}, io.ErrUnexpectedEOF
		}
		return Token{}, err
	}
	s.lastOffset = s.dec.InputOffset()

	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			s.stack = append(s.stack, frame{kind: kindObject, expectingKey: true})
			return s.emit(Token{Kind: KindBeginObject}), nil
		case '}':
			s.pop()
			return s.emit(Token{Kind: KindEndObject}), nil
		case '[':
			s.stack = append(s.stack, frame{kind: kindArray})
			return s.emit(Token{Kind: KindBeginArray}), nil
		case ']':
			s.pop()
			return s.emit(Token{Kind: KindEndArray}), nil
		}
	case string:
		if n := len(s.stack); n > 0 {
			top := &s.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				top.expectingKey = false
				return Token{Kind: KindKey, String: v, Offset: s.lastOffset}, nil
			}
		}
		s.valueDone()
		return s.emit(Token{Kind: KindString, String: v}), nil
	case j.Number:
		s.valueDone()
		return s.emit(Token{Kind: KindNumber, Number: v.String()}), nil
	case float64:
		s.valueDone()
		return s.emit(Token{Kind: KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64)}), nil
	case bool:
		s.valueDone()
		return s.emit(Token{Kind: KindBool, Bool: v}), nil
	case nil:
		s.valueDone()
		return s.emit(Token{Kind: KindNull}), nil
	}
	return Token{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// emit stamps the offset and marks the document complete once the stack
// unwinds back to the top level.
func (s *jsonSource) emit(t Token) Token {
	t.Offset = s.lastOffset
	if len(s.stack) == 0 {
		s.done = true
	}
	return t
}

func (s *jsonSource) pop() {
	if n := len(s.stack); n > 0 {
		s.stack = s.stack[:n-1]
	}
	s.valueDone()
}

func (s *jsonSource) valueDone() {
	if n := len(s.stack); n > 0 {
		top := &s.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
		}
	}
}

func (s *jsonSource) Location() int64 { return s.lastOffset }
