package goplist

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	eng "github.com/reoring/goplist/internal/engine"
)

type jsonPlistParser struct {
	src *eng.Enforcer
	opt DecodeOpt
}

func decodeJSON(data []byte, opt DecodeOpt) (Value, error) {
	if opt.AllowJSONComments {
		data = jsonc.ToJSON(data)
	}
	if !eng.ValidJSON(data) {
		return nil, parseErrorAt(FormatJSON, -1, "malformed JSON document", nil)
	}

	dup := eng.DupIgnore
	if opt.OnDuplicateKey == RejectDuplicates {
		dup = eng.DupError
	}
	p := &jsonPlistParser{
		src: eng.WrapWithEnforcement(eng.NewJSONBytes(data), eng.EnforceOptions{OnDuplicate: dup, MaxDepth: opt.MaxDepth}),
		opt: opt,
	}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	v, err := p.value(tok)
	if err != nil {
		return nil, err
	}
	if _, err := p.src.NextToken(); err != io.EOF {
		return nil, parseErrorAt(FormatJSON, p.src.Location(), "unexpected data after top-level value", err)
	}
	return v, nil
}

func (p *jsonPlistParser) next() (eng.Token, error) {
	tok, err := p.src.NextToken()
	if err != nil {
		var ie eng.IssueError
		if errors.As(err, &ie) {
			return eng.Token{}, fromIssue(FormatJSON, ie, p.src.Location())
		}
		return eng.Token{}, &Error{Code: CodeParse, Format: FormatJSON, Path: eng.NormalizePath(p.src.Path()),
			Offset: p.src.Location(), Message: "malformed JSON", Cause: err}
	}
	return tok, nil
}

func (p *jsonPlistParser) value(tok eng.Token) (Value, error) {
	switch tok.Kind {
	case eng.KindBeginObject:
		return p.object()
	case eng.KindBeginArray:
		return p.array()
	case eng.KindString:
		return String(strings.ToValidUTF8(tok.String, "�")), nil
	case eng.KindNumber:
		v, err := parseJSONNumber(tok.Number)
		if err != nil {
			return nil, &Error{Code: CodeParse, Format: FormatJSON, Path: eng.NormalizePath(p.src.Path()),
				Offset: tok.Offset, Message: "invalid number " + strconv.Quote(tok.Number), Cause: err}
		}
		return v, nil
	case eng.KindBool:
		return Boolean(tok.Bool), nil
	case eng.KindNull:
		return Null{}, nil
	}
	return nil, parseErrorAt(FormatJSON, tok.Offset, "unexpected "+tok.Kind.String()+" token", nil)
}

func (p *jsonPlistParser) object() (Value, error) {
	b := NewDictionary(p.opt.OnDuplicateKey)
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == eng.KindEndObject {
			return b.Build(), nil
		}
		if tok.Kind != eng.KindKey {
			return nil, parseErrorAt(FormatJSON, tok.Offset, "expected object key", nil)
		}
		key := strings.ToValidUTF8(tok.String, "�")
		vt, err := p.next()
		if err != nil {
			return nil, err
		}
		v, err := p.value(vt)
		if err != nil {
			return nil, err
		}
		// Rejection already happened in the enforcer; Set resolves the rest.
		b.Set(key, v)
	}
}

func (p *jsonPlistParser) array() (Value, error) {
	var items []Value
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == eng.KindEndArray {
			return Array{items: items}, nil
		}
		v, err := p.value(tok)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
}

// parseJSONNumber maps integral literals to Integer (falling back to the
// unsigned range, then to Real beyond 64 bits) and everything else to Real.
func parseJSONNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return Int(n), nil
		}
		if !strings.HasPrefix(s, "-") {
			if u, err := strconv.ParseUint(s, 10, 64); err == nil {
				return Uint(u), nil
			}
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var ne *strconv.NumError
		if !errors.As(err, &ne) || ne.Err != strconv.ErrRange {
			return nil, err
		}
	}
	return Real(f), nil
}
