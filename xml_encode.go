package goplist

import (
	"bytes"
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	eng "github.com/reoring/goplist/internal/engine"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
`

// XML readers normalize a bare \r to \n, so it is written as a reference.
var xmlTextEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#13;")

// xmlDataLineLength is the width of wrapped base64 lines inside <data>.
const xmlDataLineLength = 68

type xmlPlistGenerator struct {
	buf *bytes.Buffer
	opt EncodeOpt
}

// encodeXML renders the tree with tab indentation, the layout Apple tools
// emit; indentation carries no meaning.
func encodeXML(v Value, opt EncodeOpt) ([]byte, error) {
	g := &xmlPlistGenerator{buf: &bytes.Buffer{}, opt: opt}
	g.buf.WriteString(xmlHeader)
	if err := g.writeValue(v, 0, ""); err != nil {
		return nil, err
	}
	g.buf.WriteString("</plist>\n")
	if err := opt.checkOutput(FormatXML, g.buf.Len()); err != nil {
		return nil, err
	}
	return g.buf.Bytes(), nil
}

func (g *xmlPlistGenerator) indent(depth int) {
	for i := 0; i < depth; i++ {
		g.buf.WriteByte('\t')
	}
}

func (g *xmlPlistGenerator) element(depth int, name, text string) {
	g.indent(depth)
	g.buf.WriteString("<" + name + ">")
	g.buf.WriteString(text)
	g.buf.WriteString("</" + name + ">\n")
}

func (g *xmlPlistGenerator) writeValue(v Value, depth int, path string) error {
	switch v := v.(type) {
	case Null:
		return unsupported(FormatXML, path, KindNull)
	case Boolean:
		g.indent(depth)
		if v {
			g.buf.WriteString("<true/>\n")
		} else {
			g.buf.WriteString("<false/>\n")
		}
	case Integer:
		g.element(depth, "integer", v.String())
	case Real:
		g.element(depth, "real", formatXMLReal(float64(v)))
	case String:
		s, err := xmlEscape(string(v), path)
		if err != nil {
			return err
		}
		g.element(depth, "string", s)
	case Date:
		g.element(depth, "date", formatISODate(v))
	case Data:
		g.writeData(v, depth)
	case Array:
		if depth+1 > g.opt.MaxDepth {
			return maxNesting(FormatXML, path, -1)
		}
		g.indent(depth)
		if len(v.items) == 0 {
			g.buf.WriteString("<array/>\n")
			return nil
		}
		g.buf.WriteString("<array>\n")
		for i, item := range v.items {
			if err := g.writeValue(item, depth+1, eng.JoinIndex(path, i)); err != nil {
				return err
			}
			if err := g.opt.checkOutput(FormatXML, g.buf.Len()); err != nil {
				return err
			}
		}
		g.indent(depth)
		g.buf.WriteString("</array>\n")
	case Dictionary:
		if depth+1 > g.opt.MaxDepth {
			return maxNesting(FormatXML, path, -1)
		}
		g.indent(depth)
		if len(v.keys) == 0 {
			g.buf.WriteString("<dict/>\n")
			return nil
		}
		g.buf.WriteString("<dict>\n")
		for i, k := range v.keys {
			kpath := eng.JoinPointer(path, k)
			ek, err := xmlEscape(k, kpath)
			if err != nil {
				return err
			}
			g.element(depth+1, "key", ek)
			if err := g.writeValue(v.values[i], depth+1, kpath); err != nil {
				return err
			}
			if err := g.opt.checkOutput(FormatXML, g.buf.Len()); err != nil {
				return err
			}
		}
		g.indent(depth)
		g.buf.WriteString("</dict>\n")
	default:
		return unknownValue(FormatXML, path, v)
	}
	return nil
}

func (g *xmlPlistGenerator) writeData(d Data, depth int) {
	enc := base64.StdEncoding.EncodeToString([]byte(d.b))
	if len(enc) <= xmlDataLineLength {
		g.element(depth, "data", enc)
		return
	}
	g.indent(depth)
	g.buf.WriteString("<data>\n")
	for len(enc) > 0 {
		n := min(len(enc), xmlDataLineLength)
		g.indent(depth)
		g.buf.WriteString(enc[:n])
		g.buf.WriteByte('\n')
		enc = enc[n:]
	}
	g.indent(depth)
	g.buf.WriteString("</data>\n")
}

func formatXMLReal(f float64) string {
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

// xmlEscape escapes markup characters and rejects text XML 1.0 cannot carry.
func xmlEscape(s, path string) (string, error) {
	if !utf8.ValidString(s) {
		return "", newError(CodeFormat, FormatXML, eng.NormalizePath(path), "string is not valid UTF-8")
	}
	for _, r := range s {
		if !isXMLChar(r) {
			return "", newError(CodeFormat, FormatXML, eng.NormalizePath(path),
				"character "+strconv.QuoteRune(r)+" cannot appear in XML")
		}
	}
	return xmlTextEscaper.Replace(s), nil
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
