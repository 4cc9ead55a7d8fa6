// Package goplist reads and writes property lists in the XML, binary,
// JSON and OpenStep formats.
//
// Every format decodes into the same immutable Value tree and any tree can
// be encoded into any format that can express its contents:
//
//   - Binary carries every kind, including Null and keyed-archiver UIDs
//     (one-entry {"CF$UID": n} dictionaries).
//   - XML carries everything but Null.
//   - JSON writes Data as a base64 string and Date as an ISO-8601 string;
//     both read back as String. NaN and infinite reals are rejected.
//     Detection only recognizes JSON whose root is an object or array; a
//     scalar root such as 42 or "x" is detected as OpenStep, so read those
//     with DecodeFormat(data, FormatJSON).
//   - OpenStep is untyped text: Integer and Real are written as strings and
//     read back as String. Boolean, Date and Null are rejected. The GNUstep
//     <*I..>, <*R..>, <*B..> and <*D..> extensions are understood on input.
//
// Binary documents may reference one object from many places. Decoding
// bounds the expanded tree with DecodeOpt.MaxNodes, and the binary encoder
// writes each shared container once.
//
// Errors are *Error values with a stable ErrorCode, the JSON Pointer of the
// offending node and, when decoding, a byte offset.
//
// Design policy:
//   - Keep only public APIs in the root package; put reusable machinery under
//     internal/.
//   - Every call is all-or-nothing and safe for concurrent use.
//
// Typical usage:
//
//	v, f, err := goplist.Decode(data)
//	out, err := goplist.Encode(v, goplist.FormatBinary)
//	pretty, err := goplist.Encode(v, goplist.FormatJSON, goplist.EncodeOpt{Prettify: true})
package goplist
