package goplist

import (
	"math"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindReal
	KindString
	KindDate
	KindData
	KindArray
	KindDictionary
)

var kindNames = [...]string{
	KindNull:       "null",
	KindBoolean:    "boolean",
	KindInteger:    "integer",
	KindReal:       "real",
	KindString:     "string",
	KindDate:       "date",
	KindData:       "data",
	KindArray:      "array",
	KindDictionary: "dictionary",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a node of a property list tree. The set of implementations is
// closed: Null, Boolean, Integer, Real, String, Date, Data, Array and
// Dictionary. Values are immutable once constructed and may be shared
// between goroutines.
type Value interface {
	Kind() Kind
	plistValue()
}

// Null is the empty marker. Only the binary and JSON formats can carry it.
type Null struct{}

// Boolean is a true/false value.
type Boolean bool

// Real is a 64-bit floating point value.
type Real float64

// String is UTF-8 text.
type String string

func (Null) Kind() Kind    { return KindNull }
func (Boolean) Kind() Kind { return KindBoolean }
func (Real) Kind() Kind    { return KindReal }
func (String) Kind() Kind  { return KindString }

func (Null) plistValue()    {}
func (Boolean) plistValue() {}
func (Real) plistValue()    {}
func (String) plistValue()  {}

// Integer is a 64-bit integer. Values above math.MaxInt64 are tracked as
// unsigned so the full uint64 range survives a round trip; everything else
// is stored signed.
type Integer struct {
	bits     uint64
	unsigned bool
}

// Int returns a signed Integer.
func Int(v int64) Integer { return Integer{bits: uint64(v)} }

// Uint returns an Integer holding v. Values that fit in an int64 are
// normalized to the signed form so equal numbers compare equal.
func Uint(v uint64) Integer {
	if v <= math.MaxInt64 {
		return Integer{bits: v}
	}
	return Integer{bits: v, unsigned: true}
}

func (Integer) Kind() Kind  { return KindInteger }
func (Integer) plistValue() {}

// IsUnsigned reports whether the value lies above math.MaxInt64.
func (i Integer) IsUnsigned() bool { return i.unsigned }

// Int64 returns the value as an int64. Unsigned values wrap.
func (i Integer) Int64() int64 { return int64(i.bits) }

// Uint64 returns the raw 64 bits.
func (i Integer) Uint64() uint64 { return i.bits }

// String renders the value in decimal.
func (i Integer) String() string {
	if i.unsigned {
		return strconv.FormatUint(i.bits, 10)
	}
	return strconv.FormatInt(int64(i.bits), 10)
}

// Data is an opaque byte sequence.
type Data struct{ b string }

// NewData copies b into a Data value.
func NewData(b []byte) Data { return Data{b: string(b)} }

func (Data) Kind() Kind  { return KindData }
func (Data) plistValue() {}

// Bytes returns a copy of the payload.
func (d Data) Bytes() []byte { return []byte(d.b) }

// Len returns the payload length in bytes.
func (d Data) Len() int { return len(d.b) }

// Array is an ordered sequence of values.
type Array struct{ items []Value }

// NewArray returns an Array holding a copy of items.
func NewArray(items ...Value) Array {
	if len(items) == 0 {
		return Array{}
	}
	return Array{items: append([]Value(nil), items...)}
}

func (Array) Kind() Kind  { return KindArray }
func (Array) plistValue() {}

// Len returns the number of elements.
func (a Array) Len() int { return len(a.items) }

// At returns the i-th element.
func (a Array) At(i int) Value { return a.items[i] }

// Values returns a copy of the elements.
func (a Array) Values() []Value { return append([]Value(nil), a.items...) }

// Dictionary is an ordered mapping of string keys to values. Iteration order
// is insertion order; keys are unique.
type Dictionary struct {
	keys   []string
	values []Value
	index  map[string]int
}

func (Dictionary) Kind() Kind  { return KindDictionary }
func (Dictionary) plistValue() {}

// Len returns the number of entries.
func (d Dictionary) Len() int { return len(d.keys) }

// Entry returns the i-th key and value in insertion order.
func (d Dictionary) Entry(i int) (string, Value) { return d.keys[i], d.values[i] }

// Keys returns a copy of the keys in insertion order.
func (d Dictionary) Keys() []string { return append([]string(nil), d.keys...) }

// Get looks up a key.
func (d Dictionary) Get(key string) (Value, bool) {
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.values[i], true
}

// DictionaryBuilder assembles a Dictionary, resolving repeated keys with its
// DuplicatePolicy.
type DictionaryBuilder struct {
	policy DuplicatePolicy
	keys   []string
	values []Value
	index  map[string]int
}

// NewDictionary starts a Dictionary. Under LastWins a repeated key keeps the
// position of its first occurrence and takes the newest value.
func NewDictionary(policy DuplicatePolicy) *DictionaryBuilder {
	return &DictionaryBuilder{policy: policy, index: make(map[string]int)}
}

// Set adds or resolves an entry. It returns false only when the key is a
// duplicate and the policy is RejectDuplicates; the builder is unchanged.
func (b *DictionaryBuilder) Set(key string, v Value) bool {
	if i, ok := b.index[key]; ok {
		switch b.policy {
		case FirstWins:
		case RejectDuplicates:
			return false
		default:
			b.values[i] = v
		}
		return true
	}
	b.index[key] = len(b.keys)
	b.keys = append(b.keys, key)
	b.values = append(b.values, v)
	return true
}

// Add is Set for callers building literals; duplicates follow the policy and
// rejected entries are dropped.
func (b *DictionaryBuilder) Add(key string, v Value) *DictionaryBuilder {
	b.Set(key, v)
	return b
}

// Build returns the Dictionary. The builder must not be used afterwards.
func (b *DictionaryBuilder) Build() Dictionary {
	d := Dictionary{keys: b.keys, values: b.values, index: b.index}
	*b = DictionaryBuilder{}
	return d
}

const uidKey = "CF$UID"

// NewUID returns the keyed-archiver reference {"CF$UID": n}.
func NewUID(n uint64) Dictionary {
	return NewDictionary(LastWins).Add(uidKey, Uint(n)).Build()
}

// uid reports whether d is a keyed-archiver reference and returns its value.
func (d Dictionary) uid() (uint64, bool) {
	if len(d.keys) != 1 || d.keys[0] != uidKey {
		return 0, false
	}
	n, ok := d.values[0].(Integer)
	if !ok || (!n.unsigned && n.Int64() < 0) {
		return 0, false
	}
	return n.bits, true
}
