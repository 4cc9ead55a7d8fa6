package goplist

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

// buildBplist assembles a document from raw object encodings using one-byte
// offsets and the given reference size.
func buildBplist(objects [][]byte, refSize uint8, numObjects, top uint64) []byte {
	var buf bytes.Buffer
	buf.WriteString("bplist00")
	offsets := make([]byte, 0, len(objects))
	for _, o := range objects {
		offsets = append(offsets, byte(buf.Len()))
		buf.Write(o)
	}
	table := uint64(buf.Len())
	buf.Write(offsets)
	var trailer [32]byte
	trailer[6] = 1
	trailer[7] = refSize
	binary.BigEndian.PutUint64(trailer[8:], numObjects)
	binary.BigEndian.PutUint64(trailer[16:], top)
	binary.BigEndian.PutUint64(trailer[24:], table)
	buf.Write(trailer[:])
	return buf.Bytes()
}

func trailerOf(t *testing.T, b []byte) bplistTrailer {
	t.Helper()
	p := &bplistParser{buf: b}
	if err := p.readTrailer(); err != nil {
		t.Fatalf("readTrailer: %v", err)
	}
	return p.trailer
}

func roundTripBinary(t *testing.T, v Value) Value {
	t.Helper()
	b, err := Encode(v, FormatBinary)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("bplist00")) {
		t.Fatalf("missing magic: %q", b[:8])
	}
	got, f, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f != FormatBinary {
		t.Fatalf("format = %s", f)
	}
	return got
}

func TestBinary_IntegerBoundaries(t *testing.T) {
	for _, v := range []Integer{
		Int(0), Int(1), Int(-1), Int(255), Int(256), Int(65535), Int(65536),
		Int(math.MaxInt32), Int(math.MaxUint32), Int(math.MaxUint32 + 1),
		Int(math.MaxInt64), Int(math.MinInt64), Uint(math.MaxInt64 + 1), Uint(math.MaxUint64),
	} {
		got := roundTripBinary(t, v)
		if !Equal(got, v) {
			t.Fatalf("round trip %s: got %v", v, got)
		}
	}
}

func TestBinary_ScalarsAndContainers(t *testing.T) {
	v := NewDictionary(LastWins).
		Add("null", Null{}).
		Add("true", Boolean(true)).
		Add("false", Boolean(false)).
		Add("half", Real(0.5)).
		Add("pi", Real(math.Pi)).
		Add("date", DateFromSeconds(123456.5)).
		Add("data", NewData([]byte{0, 1, 2, 0xff})).
		Add("empty-data", NewData(nil)).
		Add("ascii", String("hello")).
		Add("unicode", String("héllo wörld ✓ 😀")).
		Add("long", String(strings.Repeat("x", 300))).
		Add("empty-array", NewArray()).
		Add("empty-dict", NewDictionary(LastWins).Build()).
		Add("nested", NewArray(NewArray(Int(1)), NewDictionary(LastWins).Add("k", String("v")).Build())).
		Build()
	got := roundTripBinary(t, v)
	if !Equal(got, v) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, v)
	}
}

func TestBinary_DeduplicatesObjects(t *testing.T) {
	shared := NewDictionary(LastWins).Add("name", String("same")).Build()
	v := NewArray(shared, shared, shared, String("same"), String("name"))
	b, err := Encode(v, FormatBinary)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// "name", "same", the dictionary and the array.
	if n := trailerOf(t, b).NumObjects; n != 4 {
		t.Fatalf("NumObjects = %d, want 4", n)
	}
	got, _, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !Equal(got, v) {
		t.Fatalf("dedup changed the decoded tree")
	}
}

func TestBinary_UIDRoundTrip(t *testing.T) {
	v := NewDictionary(LastWins).Add("$top", NewDictionary(LastWins).Add("root", NewUID(1)).Build()).Build()
	b, err := Encode(v, FormatBinary)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(b, []byte{bpTagUID, 0x01}) {
		t.Fatalf("expected a one-byte UID object")
	}
	got, _, err := Decode(b)
	if err != nil || !Equal(got, v) {
		t.Fatalf("UID round trip: %v", err)
	}
}

func TestBinary_TopObjectOutOfRange(t *testing.T) {
	b := buildBplist([][]byte{{bpTagBoolTrue}}, 1, 1, 1)
	_, err := DecodeFormat(b, FormatBinary)
	if CodeOf(err) != CodeParse {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestBinary_ReferenceOutOfRange(t *testing.T) {
	b := buildBplist([][]byte{{bpTagArray | 1, 0x01}}, 1, 1, 0)
	_, err := DecodeFormat(b, FormatBinary)
	if CodeOf(err) != CodeParse {
		t.Fatalf("expected parse error, got %v", err)
	}
	if e, _ := AsError(err); e.Path != "/0" {
		t.Fatalf("path = %q, want /0", e.Path)
	}
}

func TestBinary_CircularReference(t *testing.T) {
	self := buildBplist([][]byte{{bpTagArray | 1, 0x00}}, 1, 1, 0)
	if _, err := DecodeFormat(self, FormatBinary); CodeOf(err) != CodeCircularReference {
		t.Fatalf("expected circular reference, got %v", err)
	}
	// 0 -> dict {1: 2}, 2 -> array [0]
	loop := buildBplist([][]byte{
		{bpTagDictionary | 1, 0x01, 0x02},
		{bpTagASCIIString | 1, 'k'},
		{bpTagArray | 1, 0x00},
	}, 1, 3, 0)
	if _, err := DecodeFormat(loop, FormatBinary); CodeOf(err) != CodeCircularReference {
		t.Fatalf("expected circular reference, got %v", err)
	}
}

func TestBinary_SharedChildrenAreNotCycles(t *testing.T) {
	// [1, 1] where both refs point at the same string.
	b := buildBplist([][]byte{
		{bpTagArray | 2, 0x01, 0x01},
		{bpTagASCIIString | 1, 'x'},
	}, 1, 2, 0)
	v, err := DecodeFormat(b, FormatBinary)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !Equal(v, NewArray(String("x"), String("x"))) {
		t.Fatalf("unexpected value %v", v)
	}
}

func TestBinary_SetAndFill(t *testing.T) {
	b := buildBplist([][]byte{
		{bpTagSet | 2, 0x01, 0x02},
		{bpTagFill},
		{bpTagReal | 2, 0x3f, 0xc0, 0x00, 0x00},
	}, 1, 3, 0)
	v, err := DecodeFormat(b, FormatBinary)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !Equal(v, NewArray(Null{}, Real(1.5))) {
		t.Fatalf("unexpected value %v", v)
	}
}

func TestBinary_Truncated(t *testing.T) {
	full := binaryFixture(t)
	for _, n := range []int{0, 8, 20, len(full) - 1} {
		if _, err := DecodeFormat(full[:n], FormatBinary); err == nil {
			t.Fatalf("truncated to %d bytes: expected error", n)
		}
	}
	if _, err := DecodeFormat([]byte("bplist00"+strings.Repeat("\x00", 40)), FormatBinary); CodeOf(err) != CodeParse {
		t.Fatalf("zero trailer: expected parse error, got %v", err)
	}
}

func TestBinary_MaxDepth(t *testing.T) {
	var v Value = String("leaf")
	for i := 0; i < 5; i++ {
		v = NewArray(v)
	}
	if _, err := Encode(v, FormatBinary, EncodeOpt{MaxDepth: 4}); CodeOf(err) != CodeMaxNesting {
		t.Fatalf("encode: expected max nesting, got %v", err)
	}
	b, err := Encode(v, FormatBinary)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, _, err := Decode(b, DecodeOpt{MaxDepth: 4}); CodeOf(err) != CodeMaxNesting {
		t.Fatalf("decode: expected max nesting, got %v", err)
	}
	if _, _, err := Decode(b, DecodeOpt{MaxDepth: 5}); err != nil {
		t.Fatalf("depth 5 should pass: %v", err)
	}
}

func TestBinary_MaxOutputBytes(t *testing.T) {
	v := String(strings.Repeat("a", 1000))
	if _, err := Encode(v, FormatBinary, EncodeOpt{MaxOutputBytes: 100}); CodeOf(err) != CodeOutOfMemory {
		t.Fatalf("expected out of memory, got %v", err)
	}
}

func binaryFixture(t *testing.T) []byte {
	t.Helper()
	v := NewDictionary(LastWins).Add("a", NewArray(Int(1), String("two"))).Build()
	b, err := Encode(v, FormatBinary)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

// doublingChain builds levels arrays where each holds two references to the
// next, ending in a one-character string. The expanded tree has
// 2^(levels+1)-1 nodes while the document stays a few bytes per level.
func doublingChain(levels int) []byte {
	objects := make([][]byte, 0, levels+1)
	for i := 0; i < levels; i++ {
		next := byte(i + 1)
		objects = append(objects, []byte{bpTagArray | 2, next, next})
	}
	objects = append(objects, []byte{bpTagASCIIString | 1, 'x'})
	return buildBplist(objects, 1, uint64(levels+1), 0)
}

func TestBinary_SharedExpansionIsBounded(t *testing.T) {
	b := doublingChain(60)
	_, err := DecodeFormat(b, FormatBinary)
	if CodeOf(err) != CodeOutOfMemory {
		t.Fatalf("expected out of memory for a %d-byte document, got %v", len(b), err)
	}

	small := doublingChain(10)
	if _, err := DecodeFormat(small, FormatBinary, DecodeOpt{MaxNodes: 2046}); CodeOf(err) != CodeOutOfMemory {
		t.Fatalf("MaxNodes 2046: expected out of memory, got %v", err)
	}
	v, err := DecodeFormat(small, FormatBinary, DecodeOpt{MaxNodes: 2047})
	if err != nil {
		t.Fatalf("MaxNodes 2047: %v", err)
	}
	out, err := Encode(v, FormatBinary)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n := trailerOf(t, out).NumObjects; n != 11 {
		t.Fatalf("NumObjects = %d, want 11", n)
	}
	back, err := DecodeFormat(out, FormatBinary)
	if err != nil || !Equal(back, v) {
		t.Fatalf("re-decode: %v", err)
	}
}

func TestBinary_EncodeSharedContainersOnce(t *testing.T) {
	var v Value = String("x")
	for i := 0; i < 60; i++ {
		v = NewArray(v, v)
	}
	if !Equal(v, v) {
		t.Fatalf("a tree equals itself")
	}
	out, err := Encode(v, FormatBinary)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n := trailerOf(t, out).NumObjects; n != 61 {
		t.Fatalf("NumObjects = %d, want 61", n)
	}
	if _, err := Encode(v, FormatBinary, EncodeOpt{MaxDepth: 59}); CodeOf(err) != CodeMaxNesting {
		t.Fatalf("shared containers must still respect MaxDepth, got %v", err)
	}
	for _, f := range []Format{FormatXML, FormatJSON, FormatOpenStep} {
		if _, err := Encode(v, f, EncodeOpt{MaxOutputBytes: 1 << 16}); CodeOf(err) != CodeOutOfMemory {
			t.Fatalf("%s: expected out of memory, got %v", f, err)
		}
	}
}

func TestBinary_WideUIDs(t *testing.T) {
	for _, n := range []uint64{0, math.MaxUint32, math.MaxUint32 + 1, 1 << 40, math.MaxUint64} {
		v := NewArray(NewUID(n))
		b, err := Encode(v, FormatBinary)
		if err != nil {
			t.Fatalf("%d: %v", n, err)
		}
		if !bytes.Contains(b, []byte{bpTagUID | (minUintWidth(n) - 1)}) {
			t.Fatalf("%d: no UID object in output", n)
		}
		got, err := DecodeFormat(b, FormatBinary)
		if err != nil || !Equal(got, v) {
			t.Fatalf("%d: round trip %v", n, err)
		}
		if u, ok := got.(Array).At(0).(Dictionary).uid(); !ok || u != n {
			t.Fatalf("%d: decoded uid %d, %v", n, u, ok)
		}
	}
}
