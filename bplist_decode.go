package goplist

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"

	eng "github.com/reoring/goplist/internal/engine"
)

type bplistTrailer struct {
	Unused            [5]uint8
	SortVersion       uint8
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

const (
	bplistHeaderSize  = 8
	bplistTrailerSize = 32
)

const (
	bpTagNull        uint8 = 0x00
	bpTagBoolFalse   uint8 = 0x08
	bpTagBoolTrue    uint8 = 0x09
	bpTagFill        uint8 = 0x0F
	bpTagInteger     uint8 = 0x10
	bpTagReal        uint8 = 0x20
	bpTagDate        uint8 = 0x30
	bpTagData        uint8 = 0x40
	bpTagASCIIString uint8 = 0x50
	bpTagUTF16String uint8 = 0x60
	bpTagUID         uint8 = 0x80
	bpTagArray       uint8 = 0xA0
	bpTagSet         uint8 = 0xC0
	bpTagDictionary  uint8 = 0xD0
)

const (
	objUnvisited uint8 = iota
	objDecoding
	objDone
)

type bplistParser struct {
	buf     []byte
	trailer bplistTrailer
	offsets []uint64
	opt     DecodeOpt

	// Decoded objects are shared between every reference to them; height
	// is the container nesting below each one and nodes its size once every
	// shared child is counted at each reference.
	objects  []Value
	height   []int
	nodes    []uint64
	state    []uint8
	maxNodes uint64
}

func decodeBinary(data []byte, opt DecodeOpt) (Value, error) {
	p := &bplistParser{buf: data, opt: opt, maxNodes: uint64(opt.MaxNodes)}
	if opt.MaxNodes <= 0 {
		p.maxNodes = max(DefaultMaxNodes, uint64(len(data)))
	}
	if err := p.readTrailer(); err != nil {
		return nil, err
	}
	if err := p.readOffsets(); err != nil {
		return nil, err
	}
	v, _, err := p.object(p.trailer.TopObject, 0, "")
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (p *bplistParser) fail(offset uint64, format string, a ...any) *Error {
	return parseErrorAt(FormatBinary, int64(offset), fmt.Sprintf(format, a...), nil)
}

func (p *bplistParser) readTrailer() error {
	if len(p.buf) < bplistHeaderSize+bplistTrailerSize+2 {
		return p.fail(0, "file too short for a binary property list")
	}
	if string(p.buf[:6]) != "bplist" || p.buf[6] != '0' || p.buf[7] < '0' || p.buf[7] > '9' {
		return p.fail(0, "unsupported binary property list version %q", p.buf[6:8])
	}

	t := p.buf[len(p.buf)-bplistTrailerSize:]
	p.trailer = bplistTrailer{
		SortVersion:       t[5],
		OffsetIntSize:     t[6],
		ObjectRefSize:     t[7],
		NumObjects:        binary.BigEndian.Uint64(t[8:16]),
		TopObject:         binary.BigEndian.Uint64(t[16:24]),
		OffsetTableOffset: binary.BigEndian.Uint64(t[24:32]),
	}
	copy(p.trailer.Unused[:], t[:5])

	tr := &p.trailer
	trailerStart := uint64(len(p.buf) - bplistTrailerSize)
	switch {
	case tr.OffsetIntSize < 1 || tr.OffsetIntSize > 8:
		return p.fail(trailerStart, "invalid offset size %d", tr.OffsetIntSize)
	case tr.ObjectRefSize < 1 || tr.ObjectRefSize > 8:
		return p.fail(trailerStart, "invalid object reference size %d", tr.ObjectRefSize)
	case tr.NumObjects == 0:
		return p.fail(trailerStart, "no objects")
	case tr.TopObject >= tr.NumObjects:
		return p.fail(trailerStart, "top object index %d out of range (%d objects)", tr.TopObject, tr.NumObjects)
	case tr.OffsetTableOffset < bplistHeaderSize || tr.OffsetTableOffset >= trailerStart:
		return p.fail(trailerStart, "offset table offset %d out of range", tr.OffsetTableOffset)
	}
	if room := (trailerStart - tr.OffsetTableOffset) / uint64(tr.OffsetIntSize); tr.NumObjects > room {
		return p.fail(trailerStart, "offset table for %d objects overruns the trailer", tr.NumObjects)
	}
	return nil
}

func (p *bplistParser) readOffsets() error {
	n := p.trailer.NumObjects
	size := uint64(p.trailer.OffsetIntSize)
	p.offsets = make([]uint64, n)
	p.objects = make([]Value, n)
	p.height = make([]int, n)
	p.nodes = make([]uint64, n)
	p.state = make([]uint8, n)
	base := p.trailer.OffsetTableOffset
	for i := uint64(0); i < n; i++ {
		at := base + i*size
		off := readUint(p.buf[at : at+size])
		if off < bplistHeaderSize || off >= p.trailer.OffsetTableOffset {
			return p.fail(at, "object %d offset %d out of range", i, off)
		}
		p.offsets[i] = off
	}
	return nil
}

// bytesAt returns n bytes starting at off, staying inside the object area.
func (p *bplistParser) bytesAt(off, n uint64) ([]byte, error) {
	limit := p.trailer.OffsetTableOffset
	if off > limit || n > limit-off {
		return nil, p.fail(off, "object data of %d bytes overruns the object table", n)
	}
	return p.buf[off : off+n], nil
}

// object decodes the object at index idx. depth is the number of containers
// enclosing it; the returned height counts the containers it holds.
func (p *bplistParser) object(idx uint64, depth int, path string) (Value, int, error) {
	if idx >= p.trailer.NumObjects {
		return nil, 0, &Error{Code: CodeParse, Format: FormatBinary, Path: eng.NormalizePath(path), Offset: -1,
			Message: fmt.Sprintf("object reference %d out of range (%d objects)", idx, p.trailer.NumObjects)}
	}
	switch p.state[idx] {
	case objDone:
		if depth+p.height[idx] > p.opt.MaxDepth {
			return nil, 0, maxNesting(FormatBinary, path, int64(p.offsets[idx]))
		}
		return p.objects[idx], p.height[idx], nil
	case objDecoding:
		return nil, 0, &Error{Code: CodeCircularReference, Format: FormatBinary, Path: eng.NormalizePath(path),
			Offset: int64(p.offsets[idx]), Message: fmt.Sprintf("object %d references itself", idx)}
	}

	p.state[idx] = objDecoding
	v, h, err := p.decodeObject(idx, depth, path)
	if err != nil {
		return nil, 0, err
	}
	p.state[idx] = objDone
	p.objects[idx] = v
	p.height[idx] = h
	if p.nodes[idx] == 0 {
		p.nodes[idx] = 1
	}
	return v, h, nil
}

// countNodes records the expanded size of the container idx, whose
// children are refs (keys included), and fails once it passes maxNodes.
func (p *bplistParser) countNodes(idx uint64, refs []uint64, path string) error {
	total := uint64(1)
	for _, ref := range refs {
		total = addNodes(total, p.nodes[ref])
	}
	p.nodes[idx] = total
	if total > p.maxNodes {
		return &Error{Code: CodeOutOfMemory, Format: FormatBinary, Path: eng.NormalizePath(path),
			Offset: int64(p.offsets[idx]), Message: fmt.Sprintf("shared objects expand to more than %d nodes", p.maxNodes)}
	}
	return nil
}

// addNodes adds without wrapping.
func addNodes(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func (p *bplistParser) decodeObject(idx uint64, depth int, path string) (Value, int, error) {
	off := p.offsets[idx]
	marker := p.buf[off]
	tag, info := marker&0xF0, marker&0x0F

	switch tag {
	case bpTagNull:
		switch marker {
		case bpTagNull, bpTagFill:
			return Null{}, 0, nil
		case bpTagBoolFalse:
			return Boolean(false), 0, nil
		case bpTagBoolTrue:
			return Boolean(true), 0, nil
		}
		return nil, 0, p.fail(off, "unknown singleton marker 0x%02x", marker)
	case bpTagInteger:
		n, err := p.readIntObject(off)
		return n, 0, err
	case bpTagReal:
		switch info {
		case 2:
			b, err := p.bytesAt(off+1, 4)
			if err != nil {
				return nil, 0, err
			}
			return Real(math.Float32frombits(binary.BigEndian.Uint32(b))), 0, nil
		case 3:
			b, err := p.bytesAt(off+1, 8)
			if err != nil {
				return nil, 0, err
			}
			return Real(math.Float64frombits(binary.BigEndian.Uint64(b))), 0, nil
		}
		return nil, 0, p.fail(off, "invalid real width %d", 1<<info)
	case bpTagDate:
		if info != 3 {
			return nil, 0, p.fail(off, "invalid date width %d", 1<<info)
		}
		b, err := p.bytesAt(off+1, 8)
		if err != nil {
			return nil, 0, err
		}
		return DateFromSeconds(math.Float64frombits(binary.BigEndian.Uint64(b))), 0, nil
	case bpTagData:
		n, start, err := p.countAt(off)
		if err != nil {
			return nil, 0, err
		}
		b, err := p.bytesAt(start, n)
		if err != nil {
			return nil, 0, err
		}
		return NewData(b), 0, nil
	case bpTagASCIIString:
		n, start, err := p.countAt(off)
		if err != nil {
			return nil, 0, err
		}
		b, err := p.bytesAt(start, n)
		if err != nil {
			return nil, 0, err
		}
		return String(asciiString(b)), 0, nil
	case bpTagUTF16String:
		n, start, err := p.countAt(off)
		if err != nil {
			return nil, 0, err
		}
		if n > math.MaxUint64/2 {
			return nil, 0, p.fail(off, "string length %d overflows", n)
		}
		b, err := p.bytesAt(start, n*2)
		if err != nil {
			return nil, 0, err
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(b[2*i:])
		}
		return String(string(utf16.Decode(units))), 0, nil
	case bpTagUID:
		width := uint64(info) + 1
		if width > 8 {
			return nil, 0, p.fail(off, "UID of %d bytes is too wide", width)
		}
		b, err := p.bytesAt(off+1, width)
		if err != nil {
			return nil, 0, err
		}
		return NewUID(readUint(b)), 0, nil
	case bpTagArray, bpTagSet:
		return p.decodeArray(idx, depth, path)
	case bpTagDictionary:
		return p.decodeDictionary(idx, depth, path)
	}
	return nil, 0, p.fail(off, "unknown object type 0x%02x", marker)
}

func (p *bplistParser) decodeArray(idx uint64, depth int, path string) (Value, int, error) {
	off := p.offsets[idx]
	if depth+1 > p.opt.MaxDepth {
		return nil, 0, maxNesting(FormatBinary, path, int64(off))
	}
	refs, err := p.refsAt(off, 1)
	if err != nil {
		return nil, 0, err
	}
	items := make([]Value, len(refs))
	height := 1
	for i, ref := range refs {
		v, h, err := p.object(ref, depth+1, eng.JoinIndex(path, i))
		if err != nil {
			return nil, 0, err
		}
		items[i] = v
		height = max(height, h+1)
	}
	if err := p.countNodes(idx, refs, path); err != nil {
		return nil, 0, err
	}
	return Array{items: items}, height, nil
}

func (p *bplistParser) decodeDictionary(idx uint64, depth int, path string) (Value, int, error) {
	off := p.offsets[idx]
	if depth+1 > p.opt.MaxDepth {
		return nil, 0, maxNesting(FormatBinary, path, int64(off))
	}
	refs, err := p.refsAt(off, 2)
	if err != nil {
		return nil, 0, err
	}
	n := len(refs) / 2
	keyRefs, valueRefs := refs[:n], refs[n:]

	b := NewDictionary(p.opt.OnDuplicateKey)
	height := 1
	for i := 0; i < n; i++ {
		kv, _, err := p.object(keyRefs[i], depth+1, path)
		if err != nil {
			return nil, 0, err
		}
		key, ok := kv.(String)
		if !ok {
			return nil, 0, &Error{Code: CodeParse, Format: FormatBinary, Path: eng.NormalizePath(path),
				Offset: int64(off), Message: fmt.Sprintf("dictionary key is a %s, not a string", kv.Kind())}
		}
		vpath := eng.JoinPointer(path, string(key))
		v, h, err := p.object(valueRefs[i], depth+1, vpath)
		if err != nil {
			return nil, 0, err
		}
		if !b.Set(string(key), v) {
			return nil, 0, &Error{Code: CodeParse, Format: FormatBinary, Path: vpath, Offset: int64(off),
				Message: "key '" + string(key) + "' duplicated"}
		}
		height = max(height, h+1)
	}
	if err := p.countNodes(idx, refs, path); err != nil {
		return nil, 0, err
	}
	return b.Build(), height, nil
}

// refsAt reads the reference list of the container at off. groups is 1 for
// arrays and 2 for dictionaries (key references, then value references).
func (p *bplistParser) refsAt(off uint64, groups uint64) ([]uint64, error) {
	n, start, err := p.countAt(off)
	if err != nil {
		return nil, err
	}
	size := uint64(p.trailer.ObjectRefSize)
	if n > (p.trailer.OffsetTableOffset/size)/groups {
		return nil, p.fail(off, "container of %d entries overruns the object table", n)
	}
	b, err := p.bytesAt(start, n*groups*size)
	if err != nil {
		return nil, err
	}
	refs := make([]uint64, n*groups)
	for i := range refs {
		refs[i] = readUint(b[uint64(i)*size : uint64(i+1)*size])
	}
	return refs, nil
}

// countAt decodes the length of the object at off: the marker's low nibble,
// or for 0xF an integer object that follows the marker. It returns the
// length and the offset where the payload starts.
func (p *bplistParser) countAt(off uint64) (uint64, uint64, error) {
	info := p.buf[off] & 0x0F
	if info != 0x0F {
		return uint64(info), off + 1, nil
	}
	b, err := p.bytesAt(off+1, 1)
	if err != nil {
		return 0, 0, err
	}
	if b[0]&0xF0 != bpTagInteger || b[0]&0x0F > 3 {
		return 0, 0, p.fail(off+1, "invalid length marker 0x%02x", b[0])
	}
	width := uint64(1) << (b[0] & 0x0F)
	nb, err := p.bytesAt(off+2, width)
	if err != nil {
		return 0, 0, err
	}
	return readUint(nb), off + 2 + width, nil
}

func (p *bplistParser) readIntObject(off uint64) (Integer, error) {
	info := p.buf[off] & 0x0F
	if info > 4 {
		return Integer{}, p.fail(off, "invalid integer width %d", 1<<info)
	}
	width := uint64(1) << info
	b, err := p.bytesAt(off+1, width)
	if err != nil {
		return Integer{}, err
	}
	switch width {
	case 1, 2, 4:
		return Uint(readUint(b)), nil
	case 8:
		return Int(int64(binary.BigEndian.Uint64(b))), nil
	}
	hi, lo := binary.BigEndian.Uint64(b[:8]), binary.BigEndian.Uint64(b[8:])
	switch {
	case hi == 0:
		return Uint(lo), nil
	case hi == math.MaxUint64 && lo > math.MaxInt64:
		return Int(int64(lo)), nil
	}
	return Integer{}, p.fail(off, "integer does not fit in 64 bits")
}

func readUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// asciiString converts an ASCII string object. Bytes above 0x7f are not
// ASCII; they are read as Latin-1 so the result is always valid UTF-8.
func asciiString(b []byte) string {
	for _, c := range b {
		if c >= 0x80 {
			s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
			if err != nil {
				break
			}
			return string(s)
		}
	}
	return string(b)
}
