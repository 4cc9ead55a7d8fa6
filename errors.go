package goplist

import (
	"errors"
	"fmt"
	"strings"

	eng "github.com/reoring/goplist/internal/engine"
)

// ErrorCode is the stable error taxonomy surfaced at the API boundary. The
// numeric values are part of the contract with bindings.
type ErrorCode int

const (
	CodeSuccess           ErrorCode = 0
	CodeInvalidArgument   ErrorCode = -1
	CodeFormat            ErrorCode = -2
	CodeParse             ErrorCode = -3
	CodeOutOfMemory       ErrorCode = -4
	CodeIO                ErrorCode = -5
	CodeCircularReference ErrorCode = -6
	CodeMaxNesting        ErrorCode = -7
	CodeUnknown           ErrorCode = -255
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeFormat:
		return "format_error"
	case CodeParse:
		return "parse_error"
	case CodeOutOfMemory:
		return "out_of_memory"
	case CodeIO:
		return "io_error"
	case CodeCircularReference:
		return "circular_reference"
	case CodeMaxNesting:
		return "max_nesting_exceeded"
	default:
		return "unknown"
	}
}

// Error describes a failed Detect, Decode or Encode call.
type Error struct {
	Code    ErrorCode
	Format  Format // Format being read or written (FormatNone when unknown).
	Path    string // JSON Pointer of the offending node (for example: /Items/2).
	Offset  int64  // Byte offset in the input (-1 when unknown or encoding).
	Message string
	Cause   error // Optional: underlying error.
}

func (e *Error) Error() string {
	b := &strings.Builder{}
	b.WriteString("goplist: ")
	if e.Format != FormatNone {
		b.WriteString(e.Format.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Code.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Path != "" {
		fmt.Fprintf(b, " at %s", e.Path)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(b, " (offset %d)", e.Offset)
	}
	if e.Cause != nil {
		fmt.Fprintf(b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument, Offset: -1}
	ErrFormat            = &Error{Code: CodeFormat, Offset: -1}
	ErrParse             = &Error{Code: CodeParse, Offset: -1}
	ErrOutOfMemory       = &Error{Code: CodeOutOfMemory, Offset: -1}
	ErrIO                = &Error{Code: CodeIO, Offset: -1}
	ErrCircularReference = &Error{Code: CodeCircularReference, Offset: -1}
	ErrMaxNesting        = &Error{Code: CodeMaxNesting, Offset: -1}
	ErrUnknown           = &Error{Code: CodeUnknown, Offset: -1}
)

// AsError extracts an *Error using errors.As internally.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code carried by err: CodeSuccess for nil and
// CodeUnknown for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeSuccess
	}
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return CodeUnknown
}

func newError(code ErrorCode, f Format, path, msg string) *Error {
	return &Error{Code: code, Format: f, Path: path, Offset: -1, Message: msg}
}

func parseErrorAt(f Format, offset int64, msg string, cause error) *Error {
	return &Error{Code: CodeParse, Format: f, Offset: offset, Message: msg, Cause: cause}
}

func invalidArgument(msg string) *Error {
	return newError(CodeInvalidArgument, FormatNone, "", msg)
}

// fromIssue converts an enforcement issue raised by the engine.
func fromIssue(f Format, ie eng.IssueError, offset int64) *Error {
	code := CodeParse
	if ie.Code == eng.IssueMaxDepth {
		code = CodeMaxNesting
	}
	return &Error{Code: code, Format: f, Path: ie.Path, Offset: offset, Message: ie.Message}
}

// unsupported reports a value the target format cannot express.
func unsupported(f Format, path string, k Kind) *Error {
	return newError(CodeFormat, f, eng.NormalizePath(path), k.String()+" values cannot be represented")
}

func unknownValue(f Format, path string, v Value) *Error {
	return newError(CodeUnknown, f, eng.NormalizePath(path), fmt.Sprintf("unexpected value type %T", v))
}

func maxNesting(f Format, path string, offset int64) *Error {
	return &Error{Code: CodeMaxNesting, Format: f, Path: eng.NormalizePath(path), Offset: offset, Message: "max depth exceeded"}
}
