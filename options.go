package goplist

// DefaultMaxDepth bounds container nesting when an option leaves MaxDepth
// at zero.
const DefaultMaxDepth = 256

// DefaultMaxNodes is the smallest node budget a binary decode gets when
// DecodeOpt.MaxNodes is zero; larger inputs get one node per input byte.
const DefaultMaxNodes = 1 << 22

// DuplicatePolicy decides what happens when a dictionary repeats a key.
type DuplicatePolicy int

const (
	LastWins         DuplicatePolicy = iota // Keep the first position, take the last value.
	FirstWins                               // Keep the first value, ignore later ones.
	RejectDuplicates                        // Fail the decode with CodeParse.
)

func (p DuplicatePolicy) String() string {
	switch p {
	case FirstWins:
		return "first"
	case RejectDuplicates:
		return "error"
	default:
		return "last"
	}
}

// DecodeOpt bundles decoding options.
type DecodeOpt struct {
	MaxDepth       int
	OnDuplicateKey DuplicatePolicy
	// AllowJSONComments accepts JSONC input: // and /* */ comments and
	// trailing commas are removed before JSON detection and decoding.
	AllowJSONComments bool
	// MaxNodes caps the size of a decoded binary tree, counting every
	// reference to a shared object separately. Exceeding it fails with
	// CodeOutOfMemory. Zero uses the larger of DefaultMaxNodes and the
	// input length.
	MaxNodes int
}

// EncodeOpt bundles encoding options.
type EncodeOpt struct {
	// Prettify adds newlines and indentation to JSON and OpenStep output.
	// XML is always tab-indented and binary output ignores it.
	Prettify bool
	MaxDepth int
	// MaxOutputBytes caps the encoded size; exceeding it fails with
	// CodeOutOfMemory. Zero means unlimited.
	MaxOutputBytes int64
}

// checkOutput fails once an encoder has written more than MaxOutputBytes.
// Encoders call it as containers fill, so an oversized tree stops early.
func (o EncodeOpt) checkOutput(f Format, written int) error {
	if o.MaxOutputBytes > 0 && int64(written) > o.MaxOutputBytes {
		return newError(CodeOutOfMemory, f, "", "output exceeds MaxOutputBytes")
	}
	return nil
}

func lastDecodeOpt(opts []DecodeOpt) DecodeOpt {
	var opt DecodeOpt
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = DefaultMaxDepth
	}
	return opt
}

func lastEncodeOpt(opts []EncodeOpt) EncodeOpt {
	var opt EncodeOpt
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = DefaultMaxDepth
	}
	return opt
}
