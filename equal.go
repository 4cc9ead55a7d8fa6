package goplist

import "math"

// Equal reports whether two trees are deeply equal. Dictionaries compare
// keys in order, NaN equals NaN, and Dates tolerate sub-microsecond drift.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Boolean:
		return av == b.(Boolean)
	case Integer:
		return av == b.(Integer)
	case Real:
		bv := b.(Real)
		return av == bv || (math.IsNaN(float64(av)) && math.IsNaN(float64(bv)))
	case String:
		return av == b.(String)
	case Date:
		return av.equal(b.(Date))
	case Data:
		return av.b == b.(Data).b
	case Array:
		bv := b.(Array)
		if len(av.items) != len(bv.items) {
			return false
		}
		if sameStorage(av.items, bv.items) {
			return true
		}
		for i := range av.items {
			if !Equal(av.items[i], bv.items[i]) {
				return false
			}
		}
		return true
	case Dictionary:
		bv := b.(Dictionary)
		if len(av.keys) != len(bv.keys) {
			return false
		}
		if sameStorage(av.values, bv.values) && &av.keys[0] == &bv.keys[0] {
			return true
		}
		for i := range av.keys {
			if av.keys[i] != bv.keys[i] || !Equal(av.values[i], bv.values[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// sameStorage reports whether two equal-length slices share their backing
// array. Containers are immutable, so shared storage means equal contents.
func sameStorage(a, b []Value) bool {
	return len(a) > 0 && &a[0] == &b[0]
}
