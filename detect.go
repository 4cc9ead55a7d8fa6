package goplist

import (
	"bytes"

	"github.com/tidwall/jsonc"

	eng "github.com/reoring/goplist/internal/engine"
)

var (
	binaryMagic = []byte("bplist")
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
	xmlPrefixes = [][]byte{
		[]byte("<?xml"),
		[]byte("<!DOCTYPE plist"),
		[]byte("<plist"),
		[]byte("<!--"),
	}
)

// ErrUnrecognized is returned by Detect when the input matches none of the
// four formats. Its code is CodeParse.
var ErrUnrecognized = &Error{Code: CodeParse, Offset: -1, Message: "unrecognized property list format"}

// Detect classifies data by its leading bytes. It never fully parses the
// document; the only linear pass is strict JSON validation, used to tell
// JSON objects apart from OpenStep dictionaries.
func Detect(data []byte) (Format, error) {
	return detect(data, false)
}

func detect(data []byte, allowJSONComments bool) (Format, error) {
	if bytes.HasPrefix(data, binaryMagic) {
		return FormatBinary, nil
	}
	text := skipLeadingSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(text) == 0 {
		return FormatNone, ErrUnrecognized
	}
	for _, p := range xmlPrefixes {
		if bytes.HasPrefix(text, p) {
			return FormatXML, nil
		}
	}

	candidate := text
	if allowJSONComments {
		// jsonc blanks comments in place, so leading comments become spaces.
		candidate = skipLeadingSpace(jsonc.ToJSON(text))
	}
	if len(candidate) > 0 && (candidate[0] == '{' || candidate[0] == '[') && eng.ValidJSON(candidate) {
		return FormatJSON, nil
	}

	switch c := text[0]; {
	case c == '{', c == '(', c == '"', c == '\'', c == '<', c == '/':
		return FormatOpenStep, nil
	case c < 0x80 && !gsQuotable.ContainsByte(c):
		return FormatOpenStep, nil
	}
	return FormatNone, ErrUnrecognized
}

func skipLeadingSpace(b []byte) []byte {
	for len(b) > 0 && whitespace.ContainsByte(b[0]) {
		b = b[1:]
	}
	return b
}
