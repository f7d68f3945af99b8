package proto

import "github.com/indigo-web/utils/uf"

// Proto is an HTTP version the engine is able to speak. HTTP/2 and above are never
// produced by the parser.
type Proto uint8

const (
	Unknown Proto = iota
	HTTP10
	HTTP11
)

var tokens = [...]string{Unknown: "", HTTP10: "HTTP/1.0", HTTP11: "HTTP/1.1"}

// String returns the version token as it appears on the wire, e.g. "HTTP/1.1".
func (p Proto) String() string {
	if int(p) >= len(tokens) {
		return ""
	}

	return tokens[p]
}

const (
	protoTokenLength   = len("HTTP/x.x")
	majorVersionOffset = len("HTTP/x") - 1
	minorVersionOffset = len("HTTP/x.x") - 1
	httpScheme         = "HTTP/"
)

var majorMinorVersionLUT = [10][10]Proto{
	1: {0: HTTP10, 1: HTTP11},
}

// FromBytes recognizes a version token. Anything other than HTTP/1.0 and HTTP/1.1
// (including a valid-looking HTTP/2.0) results in Unknown.
func FromBytes(raw []byte) Proto {
	if len(raw) != protoTokenLength || uf.B2S(raw[:majorVersionOffset]) != httpScheme ||
		raw[majorVersionOffset+1] != '.' {
		return Unknown
	}

	return Parse(raw[majorVersionOffset]-'0', raw[minorVersionOffset]-'0')
}

func Parse(major, minor uint8) Proto {
	if major > 9 || minor > 9 {
		return Unknown
	}

	return majorMinorVersionLUT[major][minor]
}
