package engine

// Enforcement wrapper for TokenSource to apply duplicate key rejection and
// max depth checks in a streaming fashion, tracking the JSON Pointer of the
// token being produced.

// DuplicateStrictness controls duplicate key handling.
type DuplicateStrictness int

const (
	DupIgnore DuplicateStrictness = iota
	DupError
)

// Issue codes produced by the enforcer.
const (
	IssueMaxDepth     = "max_depth"
	IssueDuplicateKey = "duplicate_key"
)

// SimpleIssue is a minimal issue representation used by internal helpers.
type SimpleIssue struct {
	Code    string
	Path    string
	Message string
}

// IssueError is a lightweight error carrying a SimpleIssue.
type IssueError struct{ SimpleIssue }

func (e IssueError) Error() string { return e.SimpleIssue.Message }

// EnforceOptions controls runtime enforcement behavior.
type EnforceOptions struct {
	OnDuplicate DuplicateStrictness
	MaxDepth    int
}

type dupFrame struct {
	kind         containerKind
	keys         map[string]struct{}
	expectingKey bool
	path         string
	nextIndex    int
	pendingKey   string
}

// Enforcer is a TokenSource that enforces the duplicate key policy and the
// maximum nesting depth of its inner source.
type Enforcer struct {
	inner TokenSource
	opt   EnforceOptions
	stack []dupFrame
	path  string
}

// WrapWithEnforcement returns an Enforcer around inner.
func WrapWithEnforcement(inner TokenSource, opt EnforceOptions) *Enforcer {
	return &Enforcer{inner: inner, opt: opt}
}

// Depth reports the number of containers currently open.
func (e *Enforcer) Depth() int { return len(e.stack) }

// Path returns the JSON Pointer of the most recently produced token.
func (e *Enforcer) Path() string { return e.path }

func (e *Enforcer) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}

	path := e.currentPathForToken(tok)

	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		f := dupFrame{kind: kindArray, path: path}
		if tok.Kind == KindBeginObject {
			f = dupFrame{kind: kindObject, keys: make(map[string]struct{}), expectingKey: true, path: path}
		}
		e.stack = append(e.stack, f)
		if e.opt.MaxDepth > 0 && len(e.stack) > e.opt.MaxDepth {
			return Token{}, IssueError{SimpleIssue{Code: IssueMaxDepth, Path: NormalizePath(path), Message: "max depth exceeded"}}
		}
	case KindEndObject, KindEndArray:
		if n := len(e.stack); n > 0 {
			e.stack = e.stack[:n-1]
		}
		e.valueDone()
	case KindKey:
		if n := len(e.stack); n > 0 {
			top := &e.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				if _, ok := top.keys[tok.String]; ok && e.opt.OnDuplicate == DupError {
					msg := "key '" + tok.String + "' duplicated"
					return Token{}, IssueError{SimpleIssue{Code: IssueDuplicateKey, Path: NormalizePath(path), Message: msg}}
				}
				top.keys[tok.String] = struct{}{}
				top.expectingKey = false
				top.pendingKey = tok.String
			}
		}
	case KindString, KindNumber, KindBool, KindNull:
		e.valueDone()
	}

	return tok, nil
}

func (e *Enforcer) valueDone() {
	if n := len(e.stack); n > 0 {
		top := &e.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
			top.pendingKey = ""
		}
	}
}

func (e *Enforcer) currentPathForToken(tok Token) string {
	if len(e.stack) == 0 {
		e.path = ""
		return e.path
	}

	top := &e.stack[len(e.stack)-1]
	switch tok.Kind {
	case KindKey:
		e.path = JoinPointer(top.path, tok.String)
	case KindBeginObject, KindBeginArray, KindString, KindNumber, KindBool, KindNull:
		if top.kind == kindArray {
			e.path = JoinIndex(top.path, top.nextIndex)
			top.nextIndex++
		} else if !top.expectingKey {
			e.path = JoinPointer(top.path, top.pendingKey)
		} else {
			e.path = top.path
		}
	default:
		e.path = top.path
	}
	return e.path
}

func (e *Enforcer) Location() int64 { return e.inner.Location() }
