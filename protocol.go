package refs

import "strings"

// Protocol selects the strategy used to resolve a reference.
type Protocol string

const (
	// ProtocolMetadata looks the lookup up in the global metadata.
	ProtocolMetadata Protocol = "metadata"
	// ProtocolFile resolves the lookup as a path relative to the referrer.
	ProtocolFile Protocol = "file"
	// ProtocolID matches the lookup against document ids.
	ProtocolID Protocol = "id"
)

// Reference is a parsed reference string.
type Reference struct {
	Protocol Protocol
	Lookup   string
	Raw      string
}

// ParseReference splits raw on its first ":". A reference without a
// delimiter is a file reference.
func ParseReference(raw string) Reference {
	protocol, lookup, found := strings.Cut(raw, ":")
	if !found {
		return Reference{Protocol: ProtocolFile, Lookup: raw, Raw: raw}
	}
	return Reference{Protocol: Protocol(protocol), Lookup: lookup, Raw: raw}
}

// String returns the reference in its explicit form.
func (r Reference) String() string {
	return string(r.Protocol) + ":" + r.Lookup
}
