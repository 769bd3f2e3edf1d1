// Package disk implements the overflow tier: one file per cached entry on a
// billy filesystem, with slot and byte accounting.
//
// The store keeps no index on disk. Membership lives in the tier coordinator,
// so files left behind by a previous process are never read back.
package disk

import (
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	perrors "github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/codec"
	iutil "github.com/IvanBrykalov/tiercache/internal/util"
)

// PathSeparator is the placeholder for a directory boundary in a subfolder
// pattern, e.g. "20060102|15|04" yields "20240131/09/45".
const PathSeparator = "|"

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// Options configures a Store.
type Options struct {
	// FS is the filesystem rooted at the disk location.
	FS billy.Filesystem
	// Codec encodes values; nil uses codec.Default.
	Codec codec.Codec
	// Compression is applied after encoding.
	Compression codec.Compression
	// SubfoldersPattern is a Go time layout using PathSeparator between
	// directory levels. Empty disables subfolder bucketing.
	SubfoldersPattern string
	Logger            logrus.FieldLogger
}

// Store persists a single value per key.
// It is not safe for concurrent use; the cache lock serializes all calls.
type Store[K comparable, V any] struct {
	fs          billy.Filesystem
	codec       codec.Codec
	compression codec.Compression
	pattern     string
	log         logrus.FieldLogger

	size  int   // occupied slots
	bytes int64 // bytes on disk

	// pending holds files whose entries were removed but whose deletion
	// failed. They are retried before every Add, Remove and Clear.
	pending map[string]struct{}
}

// New returns an empty store. It does not touch the filesystem.
func New[K comparable, V any](opt Options) *Store[K, V] {
	if opt.Codec == nil {
		opt.Codec = codec.Default
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	return &Store[K, V]{
		fs:          opt.FS,
		codec:       opt.Codec,
		compression: opt.Compression,
		pattern:     opt.SubfoldersPattern,
		log:         opt.Logger,
		pending:     make(map[string]struct{}),
	}
}

// Subfolder formats t with the configured pattern.
// It returns "" when bucketing is disabled.
func (s *Store[K, V]) Subfolder(t time.Time) string {
	if s.pattern == "" {
		return ""
	}
	return FormatSubfolder(s.pattern, t)
}

// FormatSubfolder renders a subfolder pattern as a slash-separated path.
func FormatSubfolder(pattern string, t time.Time) string {
	parts := strings.Split(t.Format(pattern), PathSeparator)
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// Add writes a new entry. The slot is counted only if the write succeeds.
func (s *Store[K, V]) Add(key K, subfolder string, v V) error {
	s.retryPending()
	name := s.fileName(key, subfolder)
	n, err := s.write(name, subfolder, v)
	if err != nil {
		return err
	}
	delete(s.pending, name) // overwritten
	s.size++
	s.bytes += n
	return nil
}

// Update overwrites the file of an existing entry.
func (s *Store[K, V]) Update(key K, subfolder string, v V) error {
	name := s.fileName(key, subfolder)
	old := s.fileSize(name)
	n, err := s.write(name, subfolder, v)
	if err != nil {
		return err
	}
	s.bytes += n - old
	return nil
}

// Value reads and decodes the entry's file.
func (s *Store[K, V]) Value(key K, subfolder string) (V, error) {
	var zero V
	name := s.fileName(key, subfolder)

	data, err := util.ReadFile(s.fs, name)
	if err != nil {
		return zero, s.fail(err, "disk: read failed", name)
	}
	data, err = codec.Decompress(data, s.compression)
	if err != nil {
		return zero, s.fail(err, "disk: decompress failed", name)
	}
	var v V
	if err := s.codec.Unmarshal(data, &v); err != nil {
		return zero, s.fail(err, "disk: decode failed", name)
	}
	return v, nil
}

// Remove releases the entry's slot and deletes its file. If the deletion
// fails the file is queued for retry and the error is returned; the slot is
// released either way.
func (s *Store[K, V]) Remove(key K, subfolder string) error {
	s.retryPending()
	name := s.fileName(key, subfolder)
	size := s.fileSize(name)
	s.size--
	s.bytes -= size
	if s.bytes < 0 {
		s.bytes = 0
	}
	if err := s.fs.Remove(name); err != nil {
		s.pending[name] = struct{}{}
		return s.fail(err, "disk: remove failed", name)
	}
	s.pruneEmpty(name)
	return nil
}

// Clear deletes everything under the disk location and resets the counters.
func (s *Store[K, V]) Clear() error {
	s.size, s.bytes = 0, 0
	defer s.retryPending()

	entries, err := s.fs.ReadDir("/")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return s.fail(err, "disk: clear failed", "/")
	}
	var firstErr error
	for _, e := range entries {
		if err := util.RemoveAll(s.fs, e.Name()); err != nil && firstErr == nil {
			firstErr = s.fail(err, "disk: clear failed", e.Name())
		}
	}
	return firstErr
}

// Len returns the number of occupied slots.
func (s *Store[K, V]) Len() int { return s.size }

// SizeBytes returns the number of bytes written for live entries.
func (s *Store[K, V]) SizeBytes() int64 { return s.bytes }

// Pending returns the number of removed entries whose files still await deletion.
func (s *Store[K, V]) Pending() int { return len(s.pending) }

// FileName returns the path of the file holding key.
func (s *Store[K, V]) FileName(key K, subfolder string) string {
	return s.fileName(key, subfolder)
}

// -------------------- internals --------------------

func (s *Store[K, V]) fileName(key K, subfolder string) string {
	if subfolder == "" {
		return iutil.HashName(key)
	}
	return s.fs.Join(subfolder, iutil.HashName(key))
}

func (s *Store[K, V]) write(name, subfolder string, v V) (int64, error) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return 0, s.fail(err, "disk: encode failed", name)
	}
	data, err = codec.Compress(data, s.compression)
	if err != nil {
		return 0, s.fail(err, "disk: compress failed", name)
	}
	if subfolder != "" {
		if err := s.fs.MkdirAll(subfolder, dirPerm); err != nil {
			return 0, s.fail(err, "disk: create subfolder failed", subfolder)
		}
	}
	if err := util.WriteFile(s.fs, name, data, filePerm); err != nil {
		return 0, s.fail(err, "disk: write failed", name)
	}
	return int64(len(data)), nil
}

func (s *Store[K, V]) fileSize(name string) int64 {
	fi, err := s.fs.Stat(name)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func (s *Store[K, V]) retryPending() {
	for name := range s.pending {
		if err := s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
			continue
		}
		delete(s.pending, name)
		s.log.WithField("file", name).Debug("disk: deferred remove done")
		s.pruneEmpty(name)
	}
}

// pruneEmpty removes the empty subfolder levels above file, deepest first.
func (s *Store[K, V]) pruneEmpty(file string) {
	parts := strings.Split(file, "/")
	parts = parts[:len(parts)-1]
	for i := len(parts); i > 0; i-- {
		dir := s.fs.Join(parts[:i]...)
		entries, err := s.fs.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := s.fs.Remove(dir); err != nil {
			return
		}
	}
}

func (s *Store[K, V]) fail(cause error, msg, file string) error {
	err := perrors.WithContext(
		perrors.Wrap(cause, perrors.CodeExecutionFailed, msg),
		"file", file,
	)
	s.log.WithError(cause).WithField("file", file).Error(msg)
	return err
}
