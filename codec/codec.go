// Package codec turns cached values into bytes and back for the disk tier.
//
// The disk tier is overflow storage, not a persistence format: bytes written by
// one process are never read by another, so codecs carry no version header.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "gob", "":
		return Gob{}, true
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used when Options.Codec is nil.
var Default Codec = Gob{}
