package goplist

type characterSet [4]uint64

func (s *characterSet) ContainsByte(ch byte) bool {
	return (s[ch/64]&(1<<(ch%64)) > 0)
}

// Bitmap of characters that end an unquoted string while reading an
// OpenStep or GNUstep property list. Low bits represent lower characters,
// and each uint64 represents 64 characters. Bytes above 0x7f always require
// quoting.
var gsQuotable = characterSet{
	0x78001385ffffffff,
	0xa800000138000000,
	0xffffffffffffffff,
	0xffffffffffffffff,
}

// Bitmap of characters that must be inside a quoted string when written to
// an OpenStep property list. It covers every byte in gsQuotable, so written
// barewords read back whole. '.' is legal unquoted but quoted on output, as
// CoreFoundation does.
var osQuotable = characterSet{
	0xfc007fefffffffff,
	0xf8000001f8000001,
	0xffffffffffffffff,
	0xffffffffffffffff,
}

// ASCII whitespace accepted between tokens: \t \n \v \f \r and space.
var whitespace = characterSet{
	0x0000000100003e00,
	0x0000000000000000,
	0x0000000000000000,
	0x0000000000000000,
}
