package codec

import (
	"bytes"
	"encoding/gob"
)

// Gob is a codec backed by encoding/gob.
//
// Gob handles arbitrary Go values (structs, maps, slices) without tags, which
// makes it the natural default for a generic V. Interface-typed values must be
// registered with gob.Register by the caller.
type Gob struct{}

// Marshal encodes the value with a fresh gob encoder.
func (Gob) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v, which must be a pointer.
func (Gob) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Name returns "gob".
func (Gob) Name() string { return "gob" }
