package body

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bytes is a raw byte payload. JSON encodes it as base64 (the encoding/json
// default for byte slices); YAML encodes it as a !!binary scalar so the
// type survives a round trip.
type Bytes []byte

// MarshalYAML implements yaml.Marshaler.
func (b Bytes) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!binary",
		Value: base64.StdEncoding.EncodeToString(b),
	}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Untagged strings are taken
// verbatim.
func (b *Bytes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a binary scalar", node.Line)
	}
	switch node.Tag {
	case "!!null":
		*b = nil
		return nil
	case "!!binary":
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(node.Value), ""))
		if err != nil {
			return fmt.Errorf("line %d: invalid !!binary value: %w", node.Line, err)
		}
		*b = data
		return nil
	}
	*b = Bytes(node.Value)
	return nil
}

// Clone returns an independent copy, preserving nil.
func (b Bytes) Clone() Bytes {
	if b == nil {
		return nil
	}
	out := make(Bytes, len(b))
	copy(out, b)
	return out
}

// Blob is a binary payload together with its declared media type.
type Blob struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	Data Bytes  `json:"data" yaml:"data"`
}
