package goplist

import (
	"bytes"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	eng "github.com/reoring/goplist/internal/engine"
)

type openStepGenerator struct {
	buf *bytes.Buffer
	opt EncodeOpt

	dictKvDelimiter string
}

// encodeOpenStep writes the untyped NeXTSTEP grammar. Numbers become text;
// booleans, dates and nulls have no spelling and fail with CodeFormat.
func encodeOpenStep(v Value, opt EncodeOpt) ([]byte, error) {
	g := &openStepGenerator{buf: &bytes.Buffer{}, opt: opt, dictKvDelimiter: "="}
	if opt.Prettify {
		g.dictKvDelimiter = " = "
	}
	if err := g.writeValue(v, 0, ""); err != nil {
		return nil, err
	}
	if opt.Prettify {
		g.buf.WriteByte('\n')
	}
	if err := opt.checkOutput(FormatOpenStep, g.buf.Len()); err != nil {
		return nil, err
	}
	return g.buf.Bytes(), nil
}

func (g *openStepGenerator) writeIndent(depth int) {
	if !g.opt.Prettify {
		return
	}
	g.buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		g.buf.WriteByte('\t')
	}
}

func (g *openStepGenerator) writeValue(v Value, depth int, path string) error {
	switch v := v.(type) {
	case Null:
		return unsupported(FormatOpenStep, path, KindNull)
	case Boolean:
		return unsupported(FormatOpenStep, path, KindBoolean)
	case Date:
		return unsupported(FormatOpenStep, path, KindDate)
	case Integer:
		g.buf.WriteString(openStepQuote(v.String()))
	case Real:
		g.buf.WriteString(openStepQuote(formatOpenStepReal(float64(v))))
	case String:
		g.buf.WriteString(openStepQuote(string(v)))
	case Data:
		g.writeData(v)
	case Array:
		if depth+1 > g.opt.MaxDepth {
			return maxNesting(FormatOpenStep, path, -1)
		}
		g.buf.WriteByte('(')
		for i, item := range v.items {
			if i > 0 {
				g.buf.WriteByte(',')
			}
			g.writeIndent(depth + 1)
			if err := g.writeValue(item, depth+1, eng.JoinIndex(path, i)); err != nil {
				return err
			}
			if err := g.opt.checkOutput(FormatOpenStep, g.buf.Len()); err != nil {
				return err
			}
		}
		if len(v.items) > 0 {
			g.writeIndent(depth)
		}
		g.buf.WriteByte(')')
	case Dictionary:
		if depth+1 > g.opt.MaxDepth {
			return maxNesting(FormatOpenStep, path, -1)
		}
		g.buf.WriteByte('{')
		for i, k := range v.keys {
			g.writeIndent(depth + 1)
			g.buf.WriteString(openStepQuote(k))
			g.buf.WriteString(g.dictKvDelimiter)
			if err := g.writeValue(v.values[i], depth+1, eng.JoinPointer(path, k)); err != nil {
				return err
			}
			if err := g.opt.checkOutput(FormatOpenStep, g.buf.Len()); err != nil {
				return err
			}
			g.buf.WriteByte(';')
		}
		if len(v.keys) > 0 {
			g.writeIndent(depth)
		}
		g.buf.WriteByte('}')
	default:
		return unknownValue(FormatOpenStep, path, v)
	}
	return nil
}

// writeData emits <hex> in groups of four bytes.
func (g *openStepGenerator) writeData(d Data) {
	g.buf.WriteByte('<')
	for i := 0; i < len(d.b); i += 4 {
		if i > 0 {
			g.buf.WriteByte(' ')
		}
		g.buf.WriteString(hex.EncodeToString([]byte(d.b[i:min(i+4, len(d.b))])))
	}
	g.buf.WriteByte('>')
}

func formatOpenStepReal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "+infinity"
	case math.IsInf(f, -1):
		return "-infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// openStepQuote returns s bare when every byte is legal in an unquoted
// string, otherwise quoted with backslash escapes. Non-ASCII text is kept
// as UTF-8.
func openStepQuote(s string) string {
	if s == "" {
		return `""`
	}
	s = strings.ToValidUTF8(s, "�")
	// A bareword opening with // or /* would read back as a comment.
	quote := strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/*")
	for i := 0; i < len(s) && !quote; i++ {
		if osQuotable.ContainsByte(s[i]) {
			quote = true
			break
		}
	}
	if !quote {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\a':
			sb.WriteString(`\a`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\v':
			sb.WriteString(`\v`)
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		default:
			if c < 0x20 || c == 0x7F {
				sb.WriteByte('\\')
				o := strconv.FormatUint(uint64(c), 8)
				sb.WriteString(strings.Repeat("0", 3-len(o)) + o)
				continue
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
