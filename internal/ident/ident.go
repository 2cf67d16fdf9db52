package ident

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
)

// ID is the canonical identifier type used as a map key throughout the
// reference cache. All heterogeneous source encodings are converted to an ID
// before use; an encoding that cannot be resolved maps to Invalid.
type ID uuid.UUID

// Invalid is the sentinel returned for unresolvable encodings.
// Records keyed by Invalid are filtered out during snapshot construction.
var Invalid = ID(uuid.Nil)

// Valid reports whether the ID carries a resolved identifier.
func (id ID) Valid() bool {
	return id != Invalid
}

// String returns the canonical hyphenated text form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// FromString resolves a textual identifier.
//
// Accepted forms are anything uuid.Parse understands: the hyphenated
// canonical form, 32 hex digits without hyphens, braced, or urn:uuid: forms.
// Returns Invalid for anything else.
func FromString(s string) ID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return Invalid
	}
	return ID(parsed)
}

// FromBytes resolves a raw binary identifier. The slice must be exactly
// 16 bytes; anything else returns Invalid.
func FromBytes(b []byte) ID {
	parsed, err := uuid.FromBytes(b)
	if err != nil {
		return Invalid
	}
	return ID(parsed)
}

// structuredID is the object form some store documents use for identifiers.
//
// Two variants occur in practice:
//   - {"uuid": "<canonical text>"}   (structured)
//   - {"$bytes": "<base64 16 bytes>"} (binary-tagged)
type structuredID struct {
	UUID  string `json:"uuid"`
	Bytes string `json:"$bytes"`
}

// FromDocument resolves an identifier from its raw JSON document encoding.
//
// The reference store is not consistent about how identifiers are written;
// documents carry one of three encodings:
//
//   - a plain JSON string: "5f64c6f1-..." or 32 hex digits
//   - a structured object: {"uuid": "5f64c6f1-..."}
//   - a binary-tagged object: {"$bytes": "<base64 of 16 raw bytes>"}
//
// Any other shape, and any encoding whose content does not parse, resolves
// to Invalid. Callers drop Invalid-keyed records rather than treating the
// document as fatal.
func FromDocument(raw json.RawMessage) ID {
	if len(raw) == 0 {
		return Invalid
	}

	// Plain string form
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return FromString(s)
	}

	// Object forms
	var obj structuredID
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Invalid
	}
	if obj.UUID != "" {
		return FromString(obj.UUID)
	}
	if obj.Bytes != "" {
		decoded, err := base64.StdEncoding.DecodeString(obj.Bytes)
		if err != nil {
			return Invalid
		}
		return FromBytes(decoded)
	}

	return Invalid
}
