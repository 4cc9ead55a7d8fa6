package goplist

import "strings"

// Format names a property list wire format. The numeric values are stable.
type Format int

const (
	FormatNone     Format = 0 // Unrecognized or not yet detected.
	FormatXML      Format = 1
	FormatBinary   Format = 2
	FormatJSON     Format = 3
	FormatOpenStep Format = 4
)

// Formats lists every supported wire format.
var Formats = []Format{FormatXML, FormatBinary, FormatJSON, FormatOpenStep}

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatBinary:
		return "binary"
	case FormatJSON:
		return "json"
	case FormatOpenStep:
		return "openstep"
	default:
		return "none"
	}
}

func (f Format) valid() bool { return f >= FormatXML && f <= FormatOpenStep }

// ParseFormat maps a format name (as printed by Format.String, plus the
// aliases "bin", "bplist", "ostep" and "ascii") to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "xml":
		return FormatXML, nil
	case "binary", "bin", "bplist":
		return FormatBinary, nil
	case "json":
		return FormatJSON, nil
	case "openstep", "ostep", "ascii":
		return FormatOpenStep, nil
	}
	return FormatNone, invalidArgument("unknown format " + `"` + name + `"`)
}
