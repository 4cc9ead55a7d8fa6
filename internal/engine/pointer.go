package engine

import (
	"strconv"
	"strings"
)

var jsonPointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func escapeJSONPointerToken(s string) string {
	return jsonPointerEscaper.Replace(s)
}

// JoinPointer appends a reference token to a JSON Pointer (RFC 6901).
// The empty string denotes the document root.
func JoinPointer(base, token string) string {
	return base + "/" + escapeJSONPointerToken(token)
}

// JoinIndex appends an array index to a JSON Pointer.
func JoinIndex(base string, i int) string {
	return base + "/" + strconv.Itoa(i)
}

// NormalizePath renders the root pointer as "/" for display.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
