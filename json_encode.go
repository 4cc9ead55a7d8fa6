package goplist

import (
	"bytes"
	"encoding/base64"
	"math"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"

	eng "github.com/reoring/goplist/internal/engine"
)

const jsonIndent = "  "

type jsonPlistGenerator struct {
	buf *bytes.Buffer
	opt EncodeOpt
}

func encodeJSON(v Value, opt EncodeOpt) ([]byte, error) {
	g := &jsonPlistGenerator{buf: &bytes.Buffer{}, opt: opt}
	if err := g.writeValue(v, 0, ""); err != nil {
		return nil, err
	}
	if opt.Prettify {
		g.buf.WriteByte('\n')
	}
	if err := opt.checkOutput(FormatJSON, g.buf.Len()); err != nil {
		return nil, err
	}
	return g.buf.Bytes(), nil
}

func (g *jsonPlistGenerator) newline(depth int) {
	if !g.opt.Prettify {
		return
	}
	g.buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		g.buf.WriteString(jsonIndent)
	}
}

func (g *jsonPlistGenerator) writeString(s, path string) error {
	b, err := j.MarshalNoEscape(strings.ToValidUTF8(s, "�"))
	if err != nil {
		return &Error{Code: CodeFormat, Format: FormatJSON, Path: eng.NormalizePath(path), Offset: -1, Message: "cannot encode string", Cause: err}
	}
	g.buf.Write(b)
	return nil
}

func (g *jsonPlistGenerator) writeValue(v Value, depth int, path string) error {
	switch v := v.(type) {
	case Null:
		g.buf.WriteString("null")
	case Boolean:
		g.buf.WriteString(strconv.FormatBool(bool(v)))
	case Integer:
		g.buf.WriteString(v.String())
	case Real:
		s, ok := formatJSONReal(float64(v))
		if !ok {
			return newError(CodeFormat, FormatJSON, eng.NormalizePath(path), "NaN and infinite reals cannot be represented")
		}
		g.buf.WriteString(s)
	case String:
		return g.writeString(string(v), path)
	case Date:
		return g.writeString(formatISODate(v), path)
	case Data:
		return g.writeString(base64.StdEncoding.EncodeToString([]byte(v.b)), path)
	case Array:
		if depth+1 > g.opt.MaxDepth {
			return maxNesting(FormatJSON, path, -1)
		}
		g.buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				g.buf.WriteByte(',')
			}
			g.newline(depth + 1)
			if err := g.writeValue(item, depth+1, eng.JoinIndex(path, i)); err != nil {
				return err
			}
			if err := g.opt.checkOutput(FormatJSON, g.buf.Len()); err != nil {
				return err
			}
		}
		if len(v.items) > 0 {
			g.newline(depth)
		}
		g.buf.WriteByte(']')
	case Dictionary:
		if depth+1 > g.opt.MaxDepth {
			return maxNesting(FormatJSON, path, -1)
		}
		g.buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				g.buf.WriteByte(',')
			}
			g.newline(depth + 1)
			kpath := eng.JoinPointer(path, k)
			if err := g.writeString(k, kpath); err != nil {
				return err
			}
			g.buf.WriteByte(':')
			if g.opt.Prettify {
				g.buf.WriteByte(' ')
			}
			if err := g.writeValue(v.values[i], depth+1, kpath); err != nil {
				return err
			}
			if err := g.opt.checkOutput(FormatJSON, g.buf.Len()); err != nil {
				return err
			}
		}
		if len(v.keys) > 0 {
			g.newline(depth)
		}
		g.buf.WriteByte('}')
	default:
		return unknownValue(FormatJSON, path, v)
	}
	return nil
}

// formatJSONReal renders f so that it reads back as a Real: integral values
// carry a ".0" suffix. Layout follows encoding/json for the exponent range.
func formatJSONReal(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	abs := math.Abs(f)
	fmtByte := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		fmtByte = 'e'
	}
	s := strconv.FormatFloat(f, fmtByte, -1, 64)
	if fmtByte == 'e' {
		// clean up e-09 to e-9
		if n := len(s); n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
		return s, true
	}
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s, true
}
