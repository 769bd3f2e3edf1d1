package cache

import (
	"os"

	perrors "github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/tiercache/codec"
)

// DecodeOptions overlays YAML onto base and validates the result.
// Only the scalar fields carrying a yaml tag are read, plus "codec" naming a
// built-in codec; hooks and filesystems keep the values from base.
//
//	strategy: lfu
//	memory_size: 1000
//	disk_size: 100000
//	disk_enabled: true
//	disk_location: /var/cache/app
//	subfolders_pattern: "20060102|15"
//	compression: zstd
//	codec: json
func DecodeOptions[K comparable, V any](data []byte, base Options[K, V]) (Options[K, V], error) {
	opt := base
	if err := yaml.Unmarshal(data, &opt); err != nil {
		return base, perrors.Wrap(err, perrors.CodeInvalidConfig, "cache: cannot parse options")
	}
	var named struct {
		Codec string `yaml:"codec"`
	}
	if err := yaml.Unmarshal(data, &named); err != nil {
		return base, perrors.Wrap(err, perrors.CodeInvalidConfig, "cache: cannot parse options")
	}
	if named.Codec != "" {
		c, ok := codec.ByName(named.Codec)
		if !ok {
			return base, invalid("Codec", "cache: unknown codec %q", named.Codec)
		}
		opt.Codec = c
	}
	if err := opt.Validate(); err != nil {
		return base, err
	}
	return opt, nil
}

// LoadOptions reads path and applies DecodeOptions.
func LoadOptions[K comparable, V any](path string, base Options[K, V]) (Options[K, V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, perrors.WithContext(
			perrors.Wrap(err, perrors.CodeNotFound, "cache: cannot read options file"),
			"path", path,
		)
	}
	return DecodeOptions(data, base)
}
