package goplist

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"

	eng "github.com/reoring/goplist/internal/engine"
)

type bplistObject struct {
	v      Value
	refs   []uint64 // container children; dictionaries list keys, then values
	uid    uint64
	isUID  bool
	height int // container nesting at and below this object
}

// sharedKey identifies a container by its backing storage. Trees are
// immutable, so a container reached twice through the same storage is the
// same object and is flattened once.
type sharedKey struct {
	first *Value
	n     int
}

func sharedKeyOf(items []Value) (sharedKey, bool) {
	if len(items) == 0 {
		return sharedKey{}, false
	}
	return sharedKey{first: &items[0], n: len(items)}, true
}

// bplistGenerator flattens a tree into an object table, children before
// parents, sharing one entry between identical objects.
type bplistGenerator struct {
	opt     EncodeOpt
	objects []bplistObject
	seen    map[eng.Fingerprint]uint64
	shared  map[sharedKey]uint64
	buf     *bytes.Buffer
	refSize int
}

func encodeBinary(v Value, opt EncodeOpt) ([]byte, error) {
	g := &bplistGenerator{
		opt:    opt,
		seen:   make(map[eng.Fingerprint]uint64),
		shared: make(map[sharedKey]uint64),
	}
	top, err := g.flatten(v, 0, "")
	if err != nil {
		return nil, err
	}
	return g.generateDocument(top)
}

func (g *bplistGenerator) intern(fp eng.Fingerprint, obj bplistObject) uint64 {
	if idx, ok := g.seen[fp]; ok {
		return idx
	}
	idx := uint64(len(g.objects))
	g.objects = append(g.objects, obj)
	g.seen[fp] = idx
	return idx
}

// reuse returns the object already flattened for a shared container, if
// any, after checking that it still fits under MaxDepth at this depth.
func (g *bplistGenerator) reuse(key sharedKey, ok bool, depth int, path string) (uint64, bool, error) {
	if !ok {
		return 0, false, nil
	}
	idx, hit := g.shared[key]
	if !hit {
		return 0, false, nil
	}
	if depth+g.objects[idx].height > g.opt.MaxDepth {
		return 0, false, maxNesting(FormatBinary, path, -1)
	}
	return idx, true, nil
}

func (g *bplistGenerator) childHeight(refs []uint64) int {
	h := 0
	for _, r := range refs {
		h = max(h, g.objects[r].height)
	}
	return h + 1
}

func (g *bplistGenerator) flatten(v Value, depth int, path string) (uint64, error) {
	switch v := v.(type) {
	case Null:
		return g.intern(eng.NewFingerprint(bpTagNull).Sum(), bplistObject{v: v}), nil
	case Boolean:
		tag := bpTagBoolFalse
		if v {
			tag = bpTagBoolTrue
		}
		return g.intern(eng.NewFingerprint(tag).Sum(), bplistObject{v: v}), nil
	case Integer:
		fp := eng.NewFingerprint(bpTagInteger).Uint(v.bits)
		if v.unsigned {
			fp.Uint(1)
		}
		return g.intern(fp.Sum(), bplistObject{v: v}), nil
	case Real:
		fp := eng.NewFingerprint(bpTagReal).Uint(math.Float64bits(float64(v)))
		return g.intern(fp.Sum(), bplistObject{v: v}), nil
	case Date:
		fp := eng.NewFingerprint(bpTagDate).Uint(math.Float64bits(v.secs))
		return g.intern(fp.Sum(), bplistObject{v: v}), nil
	case Data:
		fp := eng.NewFingerprint(bpTagData).Bytes([]byte(v.b))
		return g.intern(fp.Sum(), bplistObject{v: v}), nil
	case String:
		fp := eng.NewFingerprint(bpTagASCIIString).Bytes([]byte(v))
		return g.intern(fp.Sum(), bplistObject{v: v}), nil
	case Array:
		key, keyed := sharedKeyOf(v.items)
		if idx, hit, err := g.reuse(key, keyed, depth, path); hit || err != nil {
			return idx, err
		}
		if depth+1 > g.opt.MaxDepth {
			return 0, maxNesting(FormatBinary, path, -1)
		}
		refs := make([]uint64, len(v.items))
		for i, item := range v.items {
			ref, err := g.flatten(item, depth+1, eng.JoinIndex(path, i))
			if err != nil {
				return 0, err
			}
			refs[i] = ref
		}
		fp := eng.NewFingerprint(bpTagArray).Uint(uint64(len(refs)))
		for _, r := range refs {
			fp.Uint(r)
		}
		idx := g.intern(fp.Sum(), bplistObject{v: v, refs: refs, height: g.childHeight(refs)})
		if keyed {
			g.shared[key] = idx
		}
		return idx, nil
	case Dictionary:
		if n, ok := v.uid(); ok {
			return g.intern(eng.NewFingerprint(bpTagUID).Uint(n).Sum(), bplistObject{v: v, uid: n, isUID: true}), nil
		}
		key, keyed := sharedKeyOf(v.values)
		if idx, hit, err := g.reuse(key, keyed, depth, path); hit || err != nil {
			return idx, err
		}
		if depth+1 > g.opt.MaxDepth {
			return 0, maxNesting(FormatBinary, path, -1)
		}
		n := len(v.keys)
		refs := make([]uint64, 2*n)
		for i, k := range v.keys {
			ref, err := g.flatten(String(k), depth+1, path)
			if err != nil {
				return 0, err
			}
			refs[i] = ref
		}
		for i, item := range v.values {
			ref, err := g.flatten(item, depth+1, eng.JoinPointer(path, v.keys[i]))
			if err != nil {
				return 0, err
			}
			refs[n+i] = ref
		}
		fp := eng.NewFingerprint(bpTagDictionary).Uint(uint64(n))
		for _, r := range refs {
			fp.Uint(r)
		}
		idx := g.intern(fp.Sum(), bplistObject{v: v, refs: refs, height: g.childHeight(refs)})
		if keyed {
			g.shared[key] = idx
		}
		return idx, nil
	}
	return 0, unknownValue(FormatBinary, path, v)
}

func (g *bplistGenerator) generateDocument(top uint64) ([]byte, error) {
	g.buf = bytes.NewBuffer(make([]byte, 0, 64+len(g.objects)*8))
	g.buf.WriteString("bplist00")
	g.refSize = int(minUintWidth(uint64(len(g.objects) - 1)))

	offsets := make([]uint64, len(g.objects))
	for i := range g.objects {
		offsets[i] = uint64(g.buf.Len())
		g.writeObject(&g.objects[i])
		if err := g.checkSize(); err != nil {
			return nil, err
		}
	}

	tableOffset := uint64(g.buf.Len())
	offsetSize := minUintWidth(tableOffset)
	for _, off := range offsets {
		g.writeUint(off, int(offsetSize))
	}

	var trailer [bplistTrailerSize]byte
	trailer[6] = offsetSize
	trailer[7] = byte(g.refSize)
	binary.BigEndian.PutUint64(trailer[8:], uint64(len(g.objects)))
	binary.BigEndian.PutUint64(trailer[16:], top)
	binary.BigEndian.PutUint64(trailer[24:], tableOffset)
	g.buf.Write(trailer[:])
	if err := g.checkSize(); err != nil {
		return nil, err
	}
	return g.buf.Bytes(), nil
}

func (g *bplistGenerator) checkSize() error {
	return g.opt.checkOutput(FormatBinary, g.buf.Len())
}

// minUintWidth returns the smallest of 1, 2, 4 and 8 bytes that holds v.
func minUintWidth(v uint64) uint8 {
	switch {
	case v <= math.MaxUint8:
		return 1
	case v <= math.MaxUint16:
		return 2
	case v <= math.MaxUint32:
		return 4
	}
	return 8
}

func (g *bplistGenerator) writeUint(v uint64, width int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	g.buf.Write(b[8-width:])
}

// writeMarker writes a type marker with an inline length, spilling lengths
// of 15 and above into a following integer object.
func (g *bplistGenerator) writeMarker(tag uint8, n int) {
	if n < 15 {
		g.buf.WriteByte(tag | uint8(n))
		return
	}
	g.buf.WriteByte(tag | 0x0F)
	g.writeInt(Uint(uint64(n)))
}

func (g *bplistGenerator) writeInt(n Integer) {
	switch {
	case n.unsigned:
		// 16-byte big-endian: the high half is zero for values above MaxInt64.
		g.buf.WriteByte(bpTagInteger | 4)
		g.writeUint(0, 8)
		g.writeUint(n.bits, 8)
	case n.Int64() < 0:
		g.buf.WriteByte(bpTagInteger | 3)
		g.writeUint(n.bits, 8)
	default:
		w := minUintWidth(n.bits)
		// 1, 2, 4, 8 bytes encode as 2^0 .. 2^3.
		g.buf.WriteByte(bpTagInteger | uint8(bitsLog2(w)))
		g.writeUint(n.bits, int(w))
	}
}

func bitsLog2(w uint8) int {
	switch w {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	}
	return 3
}

func (g *bplistGenerator) writeObject(obj *bplistObject) {
	switch v := obj.v.(type) {
	case Null:
		g.buf.WriteByte(bpTagNull)
	case Boolean:
		if v {
			g.buf.WriteByte(bpTagBoolTrue)
		} else {
			g.buf.WriteByte(bpTagBoolFalse)
		}
	case Integer:
		g.writeInt(v)
	case Real:
		f := float64(v)
		if float64(float32(f)) == f {
			g.buf.WriteByte(bpTagReal | 2)
			g.writeUint(uint64(math.Float32bits(float32(f))), 4)
		} else {
			g.buf.WriteByte(bpTagReal | 3)
			g.writeUint(math.Float64bits(f), 8)
		}
	case Date:
		g.buf.WriteByte(bpTagDate | 3)
		g.writeUint(math.Float64bits(v.secs), 8)
	case Data:
		g.writeMarker(bpTagData, len(v.b))
		g.buf.WriteString(v.b)
	case String:
		if isASCII(string(v)) {
			g.writeMarker(bpTagASCIIString, len(v))
			g.buf.WriteString(string(v))
			return
		}
		units := utf16.Encode([]rune(string(v)))
		g.writeMarker(bpTagUTF16String, len(units))
		for _, u := range units {
			g.writeUint(uint64(u), 2)
		}
	case Array:
		g.writeMarker(bpTagArray, len(obj.refs))
		g.writeRefs(obj.refs)
	case Dictionary:
		if obj.isUID {
			w := minUintWidth(obj.uid)
			g.buf.WriteByte(bpTagUID | (w - 1))
			g.writeUint(obj.uid, int(w))
			return
		}
		g.writeMarker(bpTagDictionary, len(obj.refs)/2)
		g.writeRefs(obj.refs)
	}
}

func (g *bplistGenerator) writeRefs(refs []uint64) {
	for _, r := range refs {
		g.writeUint(r, g.refSize)
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
