package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	perrors "github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/tiercache/codec"
)

func TestDecodeOptions(t *testing.T) {
	t.Parallel()

	base := DefaultOptions[string, string]()
	base.PrintInternals = true

	opt, err := DecodeOptions([]byte(`
strategy: LFU
memory_size: 10
disk_size: 20
disk_enabled: true
disk_location: /tmp/tc
subfolders_pattern: "20060102|15"
compression: zstd
codec: json
no_update_existing: true
`), base)
	if err != nil {
		t.Fatalf("DecodeOptions: %v", err)
	}
	if opt.Strategy != StrategyLFU || opt.MemorySize != 10 || opt.DiskSize != 20 {
		t.Fatalf("decoded = %+v", opt)
	}
	if !opt.DiskEnabled || opt.DiskLocation != "/tmp/tc" || opt.SubfoldersPattern != "20060102|15" {
		t.Fatalf("disk fields = %+v", opt)
	}
	if opt.Compression != codec.CompressionZSTD || !opt.NoUpdateExisting {
		t.Fatalf("compression/update = %v/%v", opt.Compression, opt.NoUpdateExisting)
	}
	if opt.Codec == nil || opt.Codec.Name() != "json" {
		t.Fatalf("codec = %v", opt.Codec)
	}
	if !opt.PrintInternals {
		t.Fatal("fields absent from YAML must keep base values")
	}
}

func TestDecodeOptions_GoJSONCodec(t *testing.T) {
	t.Parallel()

	opt, err := DecodeOptions([]byte("codec: go-json\n"), DefaultOptions[string, string]())
	if err != nil {
		t.Fatalf("DecodeOptions: %v", err)
	}
	if _, ok := opt.Codec.(codec.GoJSON); !ok {
		t.Fatalf("codec = %T, want codec.GoJSON", opt.Codec)
	}
}

func TestDecodeOptions_Errors(t *testing.T) {
	t.Parallel()

	base := DefaultOptions[string, string]()
	for name, doc := range map[string]string{
		"strategy":    "strategy: arc",
		"compression": "compression: brotli",
		"memory":      "memory_size: 0",
		"codec":       "codec: msgpack",
		"syntax":      "memory_size: [",
	} {
		opt, err := DecodeOptions([]byte(doc), base)
		if err == nil {
			t.Fatalf("%s: want error", name)
		}
		if code := perrors.GetCode(err); code != perrors.CodeInvalidConfig {
			t.Fatalf("%s: code = %v (%v)", name, code, err)
		}
		if opt.MemorySize != base.MemorySize {
			t.Fatalf("%s: base must be returned on error", name)
		}
	}
	if _, err := DecodeOptions([]byte("memory_size: 0"), base); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("validation error must wrap ErrInvalidConfig, got %v", err)
	}
}

func TestLoadOptions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.yaml")
	if err := os.WriteFile(path, []byte("memory_size: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	opt, err := LoadOptions(path, DefaultOptions[int, int]())
	if err != nil || opt.MemorySize != 7 {
		t.Fatalf("LoadOptions = %d, %v", opt.MemorySize, err)
	}

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"), DefaultOptions[int, int]())
	if perrors.GetCode(err) != perrors.CodeNotFound {
		t.Fatalf("missing file code = %v", perrors.GetCode(err))
	}
}
