package goplist

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	eng "github.com/reoring/goplist/internal/engine"
)

type xmlPlistParser struct {
	xmlDecoder         *xml.Decoder
	whitespaceReplacer *strings.Replacer
	opt                DecodeOpt
}

func decodeXML(data []byte, opt DecodeOpt) (Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Documents declaring encoding="ISO-8859-1" and friends are transcoded.
	dec.CharsetReader = charset.NewReaderLabel
	p := &xmlPlistParser{
		xmlDecoder:         dec,
		whitespaceReplacer: strings.NewReplacer("\t", "", "\n", "", " ", "", "\r", ""),
		opt:                opt,
	}
	return p.parseDocument()
}

func (p *xmlPlistParser) errorf(path, msg string, cause error) *Error {
	return &Error{Code: CodeParse, Format: FormatXML, Path: path, Offset: p.xmlDecoder.InputOffset(), Message: msg, Cause: cause}
}

// token returns the next token, reporting EOF inside an element as a parse
// error.
func (p *xmlPlistParser) token(path string) (xml.Token, error) {
	tok, err := p.xmlDecoder.Token()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, p.errorf(eng.NormalizePath(path), "malformed XML", err)
	}
	return tok, nil
}

func (p *xmlPlistParser) parseDocument() (Value, error) {
	var root Value
	seenPlist := false
	for {
		tok, err := p.xmlDecoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, p.errorf("", "malformed XML", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if seenPlist || t.Name.Local != "plist" {
				return nil, p.errorf("", "unexpected <"+t.Name.Local+"> outside the <plist> element", nil)
			}
			seenPlist = true
			v, err := p.parsePlistElement()
			if err != nil {
				return nil, err
			}
			root = v
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, p.errorf("", "text outside the <plist> element", nil)
			}
		}
	}
	if !seenPlist {
		return nil, p.errorf("", "no <plist> element", nil)
	}
	return root, nil
}

// parsePlistElement reads the single value inside <plist> up to </plist>.
func (p *xmlPlistParser) parsePlistElement() (Value, error) {
	var root Value
	for {
		tok, err := p.token("")
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if root == nil {
				return nil, p.errorf("", "empty <plist> element", nil)
			}
			return root, nil
		case xml.StartElement:
			if root != nil {
				return nil, p.errorf("", "more than one value inside <plist>", nil)
			}
			v, err := p.parseXMLElement(t, 0, "")
			if err != nil {
				return nil, err
			}
			root = v
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, p.errorf("", "unexpected text inside <plist>", nil)
			}
		}
	}
}

func (p *xmlPlistParser) parseXMLElement(element xml.StartElement, depth int, path string) (Value, error) {
	npath := eng.NormalizePath(path)
	switch element.Name.Local {
	case "string":
		s, err := p.readText(element, path)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case "integer":
		s, err := p.readText(element, path)
		if err != nil {
			return nil, err
		}
		n, err := parseXMLInteger(strings.TrimSpace(s))
		if err != nil {
			return nil, p.errorf(npath, "invalid <integer> "+strconv.Quote(s), err)
		}
		return n, nil
	case "real":
		s, err := p.readText(element, path)
		if err != nil {
			return nil, err
		}
		// ParseFloat also accepts nan, inf, +infinity and -infinity.
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, p.errorf(npath, "invalid <real> "+strconv.Quote(s), err)
		}
		return Real(f), nil
	case "true", "false":
		s, err := p.readText(element, path)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) != "" {
			return nil, p.errorf(npath, "<"+element.Name.Local+"> must be empty", nil)
		}
		return Boolean(element.Name.Local == "true"), nil
	case "date":
		s, err := p.readText(element, path)
		if err != nil {
			return nil, err
		}
		d, err := parseISODate(strings.TrimSpace(s))
		if err != nil {
			return nil, p.errorf(npath, "invalid <date> "+strconv.Quote(s), err)
		}
		return d, nil
	case "data":
		s, err := p.readText(element, path)
		if err != nil {
			return nil, err
		}
		b, err := decodeBase64(p.whitespaceReplacer.Replace(s))
		if err != nil {
			return nil, p.errorf(npath, "invalid base64 in <data>", err)
		}
		return NewData(b), nil
	case "array":
		if depth+1 > p.opt.MaxDepth {
			return nil, maxNesting(FormatXML, path, p.xmlDecoder.InputOffset())
		}
		return p.parseArray(depth, path)
	case "dict":
		if depth+1 > p.opt.MaxDepth {
			return nil, maxNesting(FormatXML, path, p.xmlDecoder.InputOffset())
		}
		return p.parseDict(depth, path)
	}
	return nil, p.errorf(npath, "unknown element <"+element.Name.Local+">", nil)
}

func (p *xmlPlistParser) parseArray(depth int, path string) (Value, error) {
	var items []Value
	for {
		tok, err := p.token(path)
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return Array{items: items}, nil
		case xml.StartElement:
			v, err := p.parseXMLElement(t, depth+1, eng.JoinIndex(path, len(items)))
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, p.errorf(eng.NormalizePath(path), "unexpected text inside <array>", nil)
			}
		}
	}
}

func (p *xmlPlistParser) parseDict(depth int, path string) (Value, error) {
	b := NewDictionary(p.opt.OnDuplicateKey)
	var key *string
	for {
		tok, err := p.token(path)
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if key != nil {
				return nil, p.errorf(eng.JoinPointer(path, *key), "missing value for <key>", nil)
			}
			return b.Build(), nil
		case xml.StartElement:
			if t.Name.Local == "key" {
				if key != nil {
					return nil, p.errorf(eng.JoinPointer(path, *key), "missing value for <key>", nil)
				}
				k, err := p.readText(t, path)
				if err != nil {
					return nil, err
				}
				key = &k
				continue
			}
			if key == nil {
				return nil, p.errorf(eng.NormalizePath(path), "value <"+t.Name.Local+"> without a <key>", nil)
			}
			vpath := eng.JoinPointer(path, *key)
			v, err := p.parseXMLElement(t, depth+1, vpath)
			if err != nil {
				return nil, err
			}
			if !b.Set(*key, v) {
				return nil, p.errorf(vpath, "key '"+*key+"' duplicated", nil)
			}
			key = nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, p.errorf(eng.NormalizePath(path), "unexpected text inside <dict>", nil)
			}
		}
	}
}

// readText collects the character data of a leaf element up to its end tag.
// Entity and character references are already resolved by encoding/xml.
func (p *xmlPlistParser) readText(element xml.StartElement, path string) (string, error) {
	var sb strings.Builder
	for {
		tok, err := p.token(path)
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return sb.String(), nil
		case xml.StartElement:
			return "", p.errorf(eng.NormalizePath(path), "unexpected <"+t.Name.Local+"> inside <"+element.Name.Local+">", nil)
		}
	}
}

func parseXMLInteger(s string) (Integer, error) {
	if s == "" {
		return Integer{}, errors.New("empty integer")
	}
	neg := s[0] == '-'
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	base := 10
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		digits, base = digits[2:], 16
	}
	if neg {
		n, err := strconv.ParseInt("-"+digits, base, 64)
		if err != nil {
			return Integer{}, err
		}
		return Int(n), nil
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return Integer{}, err
	}
	return Uint(n), nil
}

func decodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b2, err2 := base64.RawStdEncoding.DecodeString(s); err2 == nil {
			return b2, nil
		}
		return nil, err
	}
	return b, nil
}
