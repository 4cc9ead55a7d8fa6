package goplist_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/reoring/goplist"
)

func decodeXMLString(t *testing.T, body string, opts ...goplist.DecodeOpt) (goplist.Value, error) {
	t.Helper()
	return goplist.DecodeFormat([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">`+body+`</plist>`), goplist.FormatXML, opts...)
}

func TestXML_DecodeTypes(t *testing.T) {
	v, err := decodeXMLString(t, `
<dict>
	<key>s</key><string>a &lt;b&gt; &amp; &#x263A;</string>
	<key>i</key><integer> -42 </integer>
	<key>hex</key><integer>0x1F</integer>
	<key>big</key><integer>18446744073709551615</integer>
	<key>r</key><real>2.5</real>
	<key>nan</key><real>nan</real>
	<key>inf</key><real>-infinity</real>
	<key>t</key><true/>
	<key>f</key><false/>
	<key>d</key><date>2001-01-01T00:01:00Z</date>
	<key>frac</key><date>2001-01-01T00:00:00.5Z</date>
	<key>b</key><data>
		AAEC
		/w==
	</data>
	<key>empty</key><string/>
	<key>a</key><array/>
	<key>o</key><dict/>
</dict>`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := goplist.NewDictionary(goplist.LastWins).
		Add("s", goplist.String("a <b> & ☺")).
		Add("i", goplist.Int(-42)).
		Add("hex", goplist.Int(31)).
		Add("big", goplist.Uint(math.MaxUint64)).
		Add("r", goplist.Real(2.5)).
		Add("nan", goplist.Real(math.NaN())).
		Add("inf", goplist.Real(math.Inf(-1))).
		Add("t", goplist.Boolean(true)).
		Add("f", goplist.Boolean(false)).
		Add("d", goplist.DateFromSeconds(60)).
		Add("frac", goplist.DateFromSeconds(0.5)).
		Add("b", goplist.NewData([]byte{0, 1, 2, 0xff})).
		Add("empty", goplist.String("")).
		Add("a", goplist.NewArray()).
		Add("o", goplist.NewDictionary(goplist.LastWins).Build()).
		Build()
	if !goplist.Equal(v, want) {
		t.Fatalf("mismatch:\n got %#v\nwant %#v", v, want)
	}
}

func TestXML_Malformed(t *testing.T) {
	cases := map[string]string{
		"orphaned key":    `<dict><key>a</key></dict>`,
		"two keys":        `<dict><key>a</key><key>b</key><string/></dict>`,
		"value no key":    `<dict><string>x</string></dict>`,
		"unknown element": `<dict><key>a</key><color>red</color></dict>`,
		"bad integer":     `<integer>12abc</integer>`,
		"bad real":        `<real>fast</real>`,
		"bad date":        `<date>yesterday</date>`,
		"bad base64":      `<data>!!!</data>`,
		"nonempty true":   `<true>yes</true>`,
		"two roots":       `<string>a</string><string>b</string>`,
		"empty plist":     ``,
		"stray text":      `<array>oops</array>`,
		"nested in leaf":  `<string><b>x</b></string>`,
		"unclosed":        `<array><string>x</string>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeXMLString(t, body)
			if goplist.CodeOf(err) != goplist.CodeParse {
				t.Fatalf("expected parse error, got %v", err)
			}
		})
	}
}

func TestXML_ErrorPath(t *testing.T) {
	_, err := decodeXMLString(t, `<dict><key>Items</key><array><integer>1</integer><integer>x</integer></array></dict>`)
	e, ok := goplist.AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if e.Path != "/Items/1" {
		t.Fatalf("path = %q, want /Items/1", e.Path)
	}
	if e.Format != goplist.FormatXML {
		t.Fatalf("format = %s", e.Format)
	}
}

func TestXML_DuplicateKeys(t *testing.T) {
	body := `<dict><key>a</key><integer>1</integer><key>b</key><integer>2</integer><key>a</key><integer>3</integer></dict>`
	last, err := decodeXMLString(t, body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	d := last.(goplist.Dictionary)
	if got, _ := d.Get("a"); !goplist.Equal(got, goplist.Int(3)) || d.Len() != 2 {
		t.Fatalf("last-wins: a = %v, len %d", got, d.Len())
	}
	if k, _ := d.Entry(0); k != "a" {
		t.Fatalf("last-wins keeps the first position, got %s", k)
	}

	first, err := decodeXMLString(t, body, goplist.DecodeOpt{OnDuplicateKey: goplist.FirstWins})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, _ := first.(goplist.Dictionary).Get("a"); !goplist.Equal(got, goplist.Int(1)) {
		t.Fatalf("first-wins: a = %v", got)
	}

	_, err = decodeXMLString(t, body, goplist.DecodeOpt{OnDuplicateKey: goplist.RejectDuplicates})
	if e, ok := goplist.AsError(err); !ok || e.Code != goplist.CodeParse || e.Path != "/a" {
		t.Fatalf("reject: %v", err)
	}
}

func TestXML_Latin1Declaration(t *testing.T) {
	doc := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><plist><string>caf\xe9</string></plist>")
	v, f, err := goplist.Decode(doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f != goplist.FormatXML || !goplist.Equal(v, goplist.String("café")) {
		t.Fatalf("got %v (%s)", v, f)
	}
}

func TestXML_Encode(t *testing.T) {
	v := goplist.NewDictionary(goplist.LastWins).
		Add("name", goplist.String("a&b <c>\r\n")).
		Add("n", goplist.Int(-7)).
		Add("r", goplist.Real(1)).
		Add("blob", goplist.NewData(bytes.Repeat([]byte{0xAB}, 100))).
		Add("list", goplist.NewArray()).
		Build()
	out, err := goplist.Encode(v, goplist.FormatXML)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN"`,
		"\t<key>name</key>\n\t<string>a&amp;b &lt;c&gt;&#13;\n</string>",
		"<integer>-7</integer>",
		"<real>1</real>",
		"<array/>",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q:\n%s", want, s)
		}
	}
	back, _, err := goplist.Decode(out)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if !goplist.Equal(back, v) {
		t.Fatalf("round trip mismatch:\n%s", s)
	}
}

func TestXML_EncodeRejects(t *testing.T) {
	if _, err := goplist.Encode(goplist.NewArray(goplist.Null{}), goplist.FormatXML); goplist.CodeOf(err) != goplist.CodeFormat {
		t.Fatalf("null: expected format error, got %v", err)
	}
	if _, err := goplist.Encode(goplist.String("bell\x07"), goplist.FormatXML); goplist.CodeOf(err) != goplist.CodeFormat {
		t.Fatalf("control character: expected format error, got %v", err)
	}
}
