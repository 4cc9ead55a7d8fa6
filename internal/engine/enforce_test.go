package engine

import (
	"errors"
	"io"
	"testing"
)

func drain(src TokenSource) ([]Token, error) {
	var toks []Token
	for {
		tok, err := src.NextToken()
		if err == io.EOF {
			return toks, nil
		}
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
	}
}

func TestEnforcer_DuplicateKey_Error(t *testing.T) {
	src := WrapWithEnforcement(NewJSONBytes([]byte(`[{"a":1,"a":2}]`)), EnforceOptions{OnDuplicate: DupError})
	_, err := drain(src)
	var ie IssueError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IssueError, got %v", err)
	}
	if ie.Code != IssueDuplicateKey {
		t.Fatalf("code = %s, want %s", ie.Code, IssueDuplicateKey)
	}
	if ie.Path != "/0/a" {
		t.Fatalf("path = %s, want /0/a", ie.Path)
	}
}

func TestEnforcer_DuplicateKey_Ignore(t *testing.T) {
	src := WrapWithEnforcement(NewJSONBytes([]byte(`{"a":1,"a":2}`)), EnforceOptions{})
	toks, err := drain(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != 6 {
		t.Fatalf("expected 6 tokens, got %d", len(toks))
	}
}

func TestEnforcer_MaxDepth(t *testing.T) {
	src := WrapWithEnforcement(NewJSONBytes([]byte(`{"a":{"b":{"c":1}}}`)), EnforceOptions{MaxDepth: 2})
	_, err := drain(src)
	var ie IssueError
	if !errors.As(err, &ie) || ie.Code != IssueMaxDepth {
		t.Fatalf("expected max_depth issue, got %v", err)
	}
	if ie.Path != "/a/b" {
		t.Fatalf("path = %s, want /a/b", ie.Path)
	}

	src = WrapWithEnforcement(NewJSONBytes([]byte(`{"a":{"b":{"c":1}}}`)), EnforceOptions{MaxDepth: 3})
	if _, err := drain(src); err != nil {
		t.Fatalf("depth 3 should pass: %v", err)
	}
}

func TestEnforcer_PathTracking(t *testing.T) {
	src := WrapWithEnforcement(NewJSONBytes([]byte(`{"x/y":[10,{"k~":true}]}`)), EnforceOptions{})
	var paths []string
	for {
		tok, err := src.NextToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Kind == KindNumber || tok.Kind == KindBool {
			paths = append(paths, src.Path())
		}
	}
	want := []string{"/x~1y/0", "/x~1y/1/k~0"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestEnforcer_Depth(t *testing.T) {
	e := WrapWithEnforcement(NewJSONBytes([]byte(`[[1]]`)), EnforceOptions{})
	want := []int{1, 2, 2, 1, 0}
	for i, d := range want {
		if _, err := e.NextToken(); err != nil {
			t.Fatalf("token %d: %v", i, err)
		}
		if e.Depth() != d {
			t.Fatalf("after token %d depth = %d, want %d", i, e.Depth(), d)
		}
	}
}
