package main

import (
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"golang.org/x/term"

	"github.com/reoring/goplist"
)

// useColor resolves --color against the output stream.
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// highlight writes text with terminal escape codes. OpenStep has no lexer
// and is written plain.
func highlight(w io.Writer, text string, f goplist.Format) error {
	var lexer string
	switch f {
	case goplist.FormatXML:
		lexer = "xml"
	case goplist.FormatJSON:
		lexer = "json"
	default:
		_, err := io.WriteString(w, text)
		return err
	}
	return quick.Highlight(w, text, lexer, "terminal256", "monokai")
}
