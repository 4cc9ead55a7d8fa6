package goplist_test

import (
	"errors"
	"testing"

	"github.com/reoring/goplist"
)

const (
	xmlDoc = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Name</key>
	<string>Test</string>
</dict>
</plist>
`
	jsonDoc     = `{"Name":"Test","Count":42,"Enabled":true,"Items":["one","two","three"]}`
	openStepDoc = `{ Name = Test; Count = 42; Items = (one, two, three); }`
)

func binaryDoc(t *testing.T) []byte {
	t.Helper()
	v, _, err := goplist.Decode([]byte(jsonDoc))
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	b, err := goplist.Encode(v, goplist.FormatBinary)
	if err != nil {
		t.Fatalf("encode binary: %v", err)
	}
	return b
}

func TestDetect_CanonicalDocuments(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want goplist.Format
	}{
		{"xml", []byte(xmlDoc), goplist.FormatXML},
		{"xml-bare", []byte("<plist><true/></plist>"), goplist.FormatXML},
		{"binary", binaryDoc(t), goplist.FormatBinary},
		{"json-object", []byte(jsonDoc), goplist.FormatJSON},
		{"json-array", []byte("  [1, 2, 3]\n"), goplist.FormatJSON},
		{"openstep-dict", []byte(openStepDoc), goplist.FormatOpenStep},
		{"openstep-array", []byte("(one, two,)"), goplist.FormatOpenStep},
		{"openstep-string", []byte(`"quoted"`), goplist.FormatOpenStep},
		{"openstep-data", []byte("<0fbd77 1c>"), goplist.FormatOpenStep},
		{"openstep-comment", []byte("// header\n{ a = b; }"), goplist.FormatOpenStep},
		{"json-like-openstep", []byte(`{"a" = "b";}`), goplist.FormatOpenStep},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := goplist.Detect(c.in)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if got != c.want {
				t.Fatalf("Detect = %s, want %s", got, c.want)
			}
		})
	}
}

func TestDetect_Unrecognized(t *testing.T) {
	for _, in := range [][]byte{nil, {}, []byte(" \n\t "), {0x00, 0x01}, {0xff, 0xfe, 0x00}, []byte("]")} {
		f, err := goplist.Detect(in)
		if err == nil {
			t.Fatalf("Detect(%q) = %s, expected error", in, f)
		}
		if f != goplist.FormatNone {
			t.Fatalf("Detect(%q) format = %s, want none", in, f)
		}
		if !errors.Is(err, goplist.ErrParse) {
			t.Fatalf("Detect(%q) error %v should match ErrParse", in, err)
		}
	}
}

func TestDetect_JSONComments(t *testing.T) {
	in := []byte("/* settings */\n{\"a\": 1, // trailing\n}")
	if f, _ := goplist.Detect(in); f != goplist.FormatOpenStep {
		t.Fatalf("without JSONC the document is not strict JSON, got %s", f)
	}
	v, f, err := goplist.Decode(in, goplist.DecodeOpt{AllowJSONComments: true})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f != goplist.FormatJSON {
		t.Fatalf("format = %s, want json", f)
	}
	want := goplist.NewDictionary(goplist.LastWins).Add("a", goplist.Int(1)).Build()
	if !goplist.Equal(v, want) {
		t.Fatalf("value mismatch")
	}
}
