package goplist

// version is the library release reported by Version.
const version = "1.0.0"

// Version returns the library version string.
func Version() string { return version }

// Decode detects the format of data and parses it into a tree. The detected
// format is returned alongside the value. On failure no partial tree is
// returned.
func Decode(data []byte, opts ...DecodeOpt) (Value, Format, error) {
	if len(data) == 0 {
		return nil, FormatNone, invalidArgument("empty input")
	}
	opt := lastDecodeOpt(opts)
	f, err := detect(data, opt.AllowJSONComments)
	if err != nil {
		return nil, FormatNone, err
	}
	v, err := decodeAs(data, f, opt)
	if err != nil {
		return nil, f, err
	}
	return v, f, nil
}

// DecodeFormat parses data as f, skipping detection. Bytes that do not
// conform to f fail with CodeParse.
func DecodeFormat(data []byte, f Format, opts ...DecodeOpt) (Value, error) {
	if len(data) == 0 {
		return nil, invalidArgument("empty input")
	}
	if !f.valid() {
		return nil, invalidArgument("unsupported format " + f.String())
	}
	return decodeAs(data, f, lastDecodeOpt(opts))
}

func decodeAs(data []byte, f Format, opt DecodeOpt) (Value, error) {
	switch f {
	case FormatBinary:
		return decodeBinary(data, opt)
	case FormatXML:
		return decodeXML(data, opt)
	case FormatJSON:
		return decodeJSON(data, opt)
	case FormatOpenStep:
		return decodeOpenStep(data, opt)
	}
	return nil, invalidArgument("unsupported format " + f.String())
}

// Encode serializes v as f. Values f cannot express fail with CodeFormat;
// see the package documentation for the per-format rules.
func Encode(v Value, f Format, opts ...EncodeOpt) ([]byte, error) {
	if v == nil {
		return nil, invalidArgument("nil value")
	}
	opt := lastEncodeOpt(opts)
	switch f {
	case FormatBinary:
		return encodeBinary(v, opt)
	case FormatXML:
		return encodeXML(v, opt)
	case FormatJSON:
		return encodeJSON(v, opt)
	case FormatOpenStep:
		return encodeOpenStep(v, opt)
	}
	return nil, invalidArgument("unsupported format " + f.String())
}
