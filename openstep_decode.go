package goplist

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	eng "github.com/reoring/goplist/internal/engine"
)

// gnustepDateLayout is the layout of <*D...> values.
const gnustepDateLayout = "2006-01-02 15:04:05 -0700"

type openStepParser struct {
	data []byte
	pos  int
	opt  DecodeOpt
}

func decodeOpenStep(data []byte, opt DecodeOpt) (Value, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// Legacy files are NeXTSTEP/Latin-1 text. Offsets in errors refer to
		// the transcoded text.
		b, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, parseErrorAt(FormatOpenStep, -1, "cannot transcode Latin-1 input", err)
		}
		data = b
	}
	p := &openStepParser{data: data, opt: opt}
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.eof() {
		return nil, p.errorf("", "empty document")
	}
	v, err := p.parseValue(0, "")
	if err != nil {
		return nil, err
	}
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("", "unexpected "+strconv.QuoteRune(rune(p.data[p.pos]))+" after top-level value")
	}
	return v, nil
}

func (p *openStepParser) errorf(path, msg string) *Error {
	return &Error{Code: CodeParse, Format: FormatOpenStep, Path: eng.NormalizePath(path), Offset: int64(p.pos), Message: msg}
}

func (p *openStepParser) eof() bool { return p.pos >= len(p.data) }

func (p *openStepParser) peek() byte { return p.data[p.pos] }

// skipSpace consumes whitespace and // or /* */ comments.
func (p *openStepParser) skipSpace() error {
	for !p.eof() {
		c := p.peek()
		if whitespace.ContainsByte(c) {
			p.pos++
			continue
		}
		if c != '/' || p.pos+1 >= len(p.data) {
			return nil
		}
		switch p.data[p.pos+1] {
		case '/':
			p.pos += 2
			for !p.eof() && p.peek() != '\n' && p.peek() != '\r' {
				p.pos++
			}
		case '*':
			start := p.pos
			end := bytes.Index(p.data[p.pos+2:], []byte("*/"))
			if end < 0 {
				p.pos = start
				return p.errorf("", "unterminated comment")
			}
			p.pos += 2 + end + 2
		default:
			return nil
		}
	}
	return nil
}

func (p *openStepParser) parseValue(depth int, path string) (Value, error) {
	if p.eof() {
		return nil, p.errorf(path, "unexpected end of input, expected a value")
	}
	switch c := p.peek(); c {
	case '{':
		if depth+1 > p.opt.MaxDepth {
			return nil, maxNesting(FormatOpenStep, path, int64(p.pos))
		}
		p.pos++
		return p.parseDictionary(depth, path)
	case '(':
		if depth+1 > p.opt.MaxDepth {
			return nil, maxNesting(FormatOpenStep, path, int64(p.pos))
		}
		p.pos++
		return p.parseArray(depth, path)
	case '<':
		p.pos++
		if !p.eof() && p.peek() == '*' {
			return p.parseGNUStepValue(path)
		}
		return p.parseData(path)
	case '"', '\'':
		s, err := p.parseQuotedString(path)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	}
	s, err := p.parseUnquotedString(path)
	if err != nil {
		return nil, err
	}
	return String(s), nil
}

func (p *openStepParser) parseString(path string) (string, error) {
	if !p.eof() && (p.peek() == '"' || p.peek() == '\'') {
		return p.parseQuotedString(path)
	}
	return p.parseUnquotedString(path)
}

func (p *openStepParser) parseUnquotedString(path string) (string, error) {
	start := p.pos
	for !p.eof() && !gsQuotable.ContainsByte(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		if p.eof() {
			return "", p.errorf(path, "unexpected end of input")
		}
		return "", p.errorf(path, "unexpected "+strconv.QuoteRune(rune(p.peek())))
	}
	return string(p.data[start:p.pos]), nil
}

func (p *openStepParser) parseQuotedString(path string) (string, error) {
	quote := p.peek()
	start := p.pos
	p.pos++
	var sb strings.Builder
	for {
		if p.eof() {
			p.pos = start
			return "", p.errorf(path, "unterminated quoted string")
		}
		c := p.peek()
		p.pos++
		switch {
		case c == quote:
			return sb.String(), nil
		case c != '\\':
			sb.WriteByte(c)
			continue
		}
		if p.eof() {
			p.pos = start
			return "", p.errorf(path, "unterminated quoted string")
		}
		c = p.peek()
		p.pos++
		switch c {
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case 'U', 'u':
			r, err := p.parseUnicodeEscape(path)
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			p.pos--
			run, err := p.parseOctalRun(path)
			if err != nil {
				return "", err
			}
			writeOctalRun(&sb, run)
		default:
			// \\, \", \' and any other escaped byte stand for themselves.
			sb.WriteByte(c)
		}
	}
}

// parseOctalRun reads consecutive octal byte escapes, the first of which
// starts at p.pos just after its backslash. Each escape is up to three
// digits.
func (p *openStepParser) parseOctalRun(path string) ([]byte, error) {
	var run []byte
	for {
		n := 0
		for i := 0; i < 3 && !p.eof() && isOctalDigit(p.peek()); i++ {
			n = n*8 + int(p.peek()-'0')
			p.pos++
		}
		if n > 0xFF {
			return nil, p.errorf(path, "octal escape out of range")
		}
		run = append(run, byte(n))
		if p.pos+1 >= len(p.data) || p.data[p.pos] != '\\' || !isOctalDigit(p.data[p.pos+1]) {
			return run, nil
		}
		p.pos++
	}
}

// writeOctalRun keeps escaped bytes that form UTF-8 and reads anything else
// as Latin-1.
func writeOctalRun(sb *strings.Builder, run []byte) {
	if utf8.Valid(run) {
		sb.Write(run)
		return
	}
	for _, b := range run {
		sb.WriteRune(rune(b))
	}
}

func isOctalDigit(c byte) bool { return c >= '0' && c <= '7' }

// parseUnicodeEscape reads the hex digits following \U, joining a UTF-16
// surrogate pair written as two consecutive escapes.
func (p *openStepParser) parseUnicodeEscape(path string) (rune, error) {
	r, err := p.hexDigits(path)
	if err != nil {
		return 0, err
	}
	if utf16.IsSurrogate(r) && p.pos+1 < len(p.data) && p.data[p.pos] == '\\' &&
		(p.data[p.pos+1] == 'U' || p.data[p.pos+1] == 'u') {
		save := p.pos
		p.pos += 2
		r2, err := p.hexDigits(path)
		if err == nil {
			if joined := utf16.DecodeRune(r, r2); joined != utf8.RuneError {
				return joined, nil
			}
		}
		p.pos = save
	}
	if utf16.IsSurrogate(r) {
		return utf8.RuneError, nil
	}
	return r, nil
}

func (p *openStepParser) hexDigits(path string) (rune, error) {
	start := p.pos
	for p.pos < len(p.data) && p.pos-start < 4 && isHexDigit(p.data[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return 0, p.errorf(path, "missing hex digits in \\U escape")
	}
	n, _ := strconv.ParseUint(string(p.data[start:p.pos]), 16, 32)
	return rune(n), nil
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// parseData reads hex byte pairs up to '>'; whitespace between digits is
// ignored.
func (p *openStepParser) parseData(path string) (Value, error) {
	start := p.pos - 1
	end := bytes.IndexByte(p.data[p.pos:], '>')
	if end < 0 {
		p.pos = start
		return nil, p.errorf(path, "unterminated <data>")
	}
	digits := make([]byte, 0, end)
	for _, c := range p.data[p.pos : p.pos+end] {
		if whitespace.ContainsByte(c) {
			continue
		}
		if !isHexDigit(c) {
			p.pos = start
			return nil, p.errorf(path, "invalid character "+strconv.QuoteRune(rune(c))+" in <data>")
		}
		digits = append(digits, c)
	}
	if len(digits)%2 != 0 {
		p.pos = start
		return nil, p.errorf(path, "odd number of hex digits in <data>")
	}
	b := make([]byte, len(digits)/2)
	if _, err := hex.Decode(b, digits); err != nil {
		p.pos = start
		return nil, &Error{Code: CodeParse, Format: FormatOpenStep, Path: eng.NormalizePath(path), Offset: int64(start), Message: "invalid <data>", Cause: err}
	}
	p.pos += end + 1
	return Data{b: string(b)}, nil
}

// parseGNUStepValue reads the typed extensions <*I..>, <*R..>, <*B..> and
// <*D..>. The cursor sits on the '*'.
func (p *openStepParser) parseGNUStepValue(path string) (Value, error) {
	start := p.pos - 1
	end := bytes.IndexByte(p.data[p.pos:], '>')
	if end < 0 {
		p.pos = start
		return nil, p.errorf(path, "unterminated GNUstep value")
	}
	body := string(p.data[p.pos+1 : p.pos+end])
	fail := func(msg string, cause error) (Value, error) {
		return nil, &Error{Code: CodeParse, Format: FormatOpenStep, Path: eng.NormalizePath(path), Offset: int64(start), Message: msg, Cause: cause}
	}
	if body == "" {
		return fail("empty GNUstep value", nil)
	}
	typ, text := body[0], strings.TrimSpace(body[1:])
	var v Value
	switch typ {
	case 'I':
		n, err := parseXMLInteger(text)
		if err != nil {
			return fail("invalid GNUstep integer "+strconv.Quote(text), err)
		}
		v = n
	case 'R':
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fail("invalid GNUstep real "+strconv.Quote(text), err)
		}
		v = Real(f)
	case 'B':
		switch text {
		case "Y":
			v = Boolean(true)
		case "N":
			v = Boolean(false)
		default:
			return fail("invalid GNUstep boolean "+strconv.Quote(text), nil)
		}
	case 'D':
		t, err := time.Parse(gnustepDateLayout, text)
		if err != nil {
			return fail("invalid GNUstep date "+strconv.Quote(text), err)
		}
		v = DateFromTime(t)
	default:
		return fail("unknown GNUstep type "+strconv.QuoteRune(rune(typ)), nil)
	}
	p.pos += end + 1
	return v, nil
}

func (p *openStepParser) parseDictionary(depth int, path string) (Value, error) {
	b := NewDictionary(p.opt.OnDuplicateKey)
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return nil, p.errorf(path, "unterminated dictionary")
		}
		if p.peek() == '}' {
			p.pos++
			return b.Build(), nil
		}
		key, err := p.parseString(path)
		if err != nil {
			return nil, err
		}
		vpath := eng.JoinPointer(path, key)
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() || p.peek() != '=' {
			return nil, p.errorf(vpath, "missing '=' after dictionary key")
		}
		p.pos++
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		v, err := p.parseValue(depth+1, vpath)
		if err != nil {
			return nil, err
		}
		if !b.Set(key, v) {
			return nil, p.errorf(vpath, "key '"+key+"' duplicated")
		}
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		switch {
		case p.eof():
			return nil, p.errorf(path, "unterminated dictionary")
		case p.peek() == ';':
			p.pos++
		case p.peek() == '}':
			// The final entry may omit its ';'.
		default:
			return nil, p.errorf(vpath, "missing ';' after dictionary entry")
		}
	}
}

func (p *openStepParser) parseArray(depth int, path string) (Value, error) {
	var items []Value
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return nil, p.errorf(path, "unterminated array")
		}
		if p.peek() == ')' {
			p.pos++
			return Array{items: items}, nil
		}
		v, err := p.parseValue(depth+1, eng.JoinIndex(path, len(items)))
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		switch {
		case p.eof():
			return nil, p.errorf(path, "unterminated array")
		case p.peek() == ',':
			p.pos++
		case p.peek() == ')':
		default:
			return nil, p.errorf(path, "missing ',' between array elements")
		}
	}
}
