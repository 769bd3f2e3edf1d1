package tier

import (
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"
	perrors "github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/codec"
	"github.com/IvanBrykalov/tiercache/internal/disk"
)

// Options configures a Coordinator. Sizes are assumed validated by the caller.
type Options struct {
	MemorySize int
	DiskSize   int

	// DiskEnabled turns on the overflow tier; DiskFS must then be non-nil.
	DiskEnabled bool
	DiskFS      billy.Filesystem

	Codec             codec.Codec
	Compression       codec.Compression
	SubfoldersPattern string

	// Now is sampled once per entry for its subfolder. Nil => time.Now.
	Now    func() time.Time
	Logger logrus.FieldLogger
}

// Coordinator owns the memory map and the disk store and decides where each
// value lives. It is not safe for concurrent use.
type Coordinator[K comparable, V any] struct {
	memory    map[K]V
	disk      *disk.Store[K, V] // nil when the disk tier is disabled
	maxMemory int
	maxDisk   int
	now       func() time.Time
	log       logrus.FieldLogger
}

var _ Store[string, int] = (*Coordinator[string, int])(nil)

// NewCoordinator builds a coordinator with empty tiers.
func NewCoordinator[K comparable, V any](opt Options) *Coordinator[K, V] {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	c := &Coordinator[K, V]{
		memory:    make(map[K]V, opt.MemorySize),
		maxMemory: opt.MemorySize,
		maxDisk:   opt.DiskSize,
		now:       opt.Now,
		log:       opt.Logger,
	}
	if opt.DiskEnabled {
		c.disk = disk.New[K, V](disk.Options{
			FS:                opt.DiskFS,
			Codec:             opt.Codec,
			Compression:       opt.Compression,
			SubfoldersPattern: opt.SubfoldersPattern,
			Logger:            opt.Logger,
		})
	}
	return c
}

// Place stores the value of a new entry: memory first, then disk.
// It panics with ErrStoreExhausted if neither tier has room.
func (c *Coordinator[K, V]) Place(e *Entry[K, V], v V) (Tier, error) {
	if c.disk != nil && e.subfolder == "" {
		e.subfolder = c.disk.Subfolder(c.now())
	}

	if len(c.memory) < c.maxMemory {
		c.memory[e.key] = v
		e.tier = Memory
		return Memory, nil
	}

	if c.disk != nil && c.disk.Len() < c.maxDisk {
		if err := c.disk.Add(e.key, e.subfolder, v); err != nil {
			return Disk, err
		}
		e.tier = Disk
		return Disk, nil
	}

	c.log.WithFields(logrus.Fields{
		"key":    e.key,
		"memory": len(c.memory),
		"disk":   c.diskLen(),
	}).Error("tier: no room to place entry")
	panic(ErrStoreExhausted)
}

// Fetch reads the value from the entry's tier.
func (c *Coordinator[K, V]) Fetch(e *Entry[K, V]) (V, error) {
	if e.tier == Disk {
		return c.disk.Value(e.key, e.subfolder)
	}
	v, ok := c.memory[e.key]
	if !ok {
		var zero V
		return zero, perrors.WithContext(
			perrors.New(perrors.CodeNotFound, "tier: memory value missing"), "key", e.key)
	}
	return v, nil
}

// Update overwrites the value in the entry's current tier.
func (c *Coordinator[K, V]) Update(e *Entry[K, V], v V) error {
	if e.tier == Disk {
		return c.disk.Update(e.key, e.subfolder, v)
	}
	c.memory[e.key] = v
	return nil
}

// SwitchTier moves the value to the other tier and updates e.
// Capacity is not checked: the engine decides when a swap is due.
// A promotion succeeds once the value is read; a failed file deletion is
// left to the disk store to retry.
func (c *Coordinator[K, V]) SwitchTier(e *Entry[K, V]) (Tier, error) {
	if c.disk == nil {
		return e.tier, perrors.New(perrors.CodeInvalidInput, "tier: disk tier disabled")
	}

	if e.tier == Memory {
		v := c.memory[e.key]
		if err := c.disk.Add(e.key, e.subfolder, v); err != nil {
			return Memory, err
		}
		delete(c.memory, e.key)
		e.tier = Disk
		c.log.WithField("key", e.key).Debug("tier: moved to disk")
		return Disk, nil
	}

	v, err := c.disk.Value(e.key, e.subfolder)
	if err != nil {
		return Disk, err
	}
	if err := c.disk.Remove(e.key, e.subfolder); err != nil {
		c.log.WithError(err).WithField("key", e.key).Warn("tier: disk file kept for deferred removal")
	}
	c.memory[e.key] = v
	e.tier = Memory
	c.log.WithField("key", e.key).Debug("tier: moved to memory")
	return Memory, nil
}

// Remove deletes the value from whichever tier holds it.
// For disk entries the file is deleted even when it can no longer be read.
func (c *Coordinator[K, V]) Remove(e *Entry[K, V]) (V, bool) {
	c.log.WithField("key", e.key).Debug("tier: removing from store")
	if e.tier == Disk {
		v, err := c.disk.Value(e.key, e.subfolder)
		_ = c.disk.Remove(e.key, e.subfolder) // slot released; failed deletes are retried
		return v, err == nil
	}
	v, ok := c.memory[e.key]
	delete(c.memory, e.key)
	return v, ok
}

// IsMemoryFull reports whether the memory map is at capacity.
func (c *Coordinator[K, V]) IsMemoryFull() bool { return len(c.memory) >= c.maxMemory }

// DiskEnabled reports whether the overflow tier exists.
func (c *Coordinator[K, V]) DiskEnabled() bool { return c.disk != nil }

// Capacity returns MemorySize, plus DiskSize when the disk tier is enabled.
func (c *Coordinator[K, V]) Capacity() int {
	if c.disk == nil {
		return c.maxMemory
	}
	return c.maxMemory + c.maxDisk
}

// Len returns the number of stored values across both tiers. Files queued for
// deferred deletion do not count.
func (c *Coordinator[K, V]) Len() int { return len(c.memory) + c.diskLen() }

// Clear empties both tiers.
func (c *Coordinator[K, V]) Clear() error {
	c.memory = make(map[K]V, c.maxMemory)
	if c.disk != nil {
		return c.disk.Clear()
	}
	return nil
}

// Stats is a point-in-time occupancy snapshot.
type Stats struct {
	MemoryEntries int
	DiskEntries   int
	DiskBytes     int64
	DiskPending   int // removed entries whose files await deletion
	MaxMemory     int
	MaxDisk       int
	DiskEnabled   bool
}

// Stats returns occupancy counters for both tiers.
func (c *Coordinator[K, V]) Stats() Stats {
	s := Stats{
		MemoryEntries: len(c.memory),
		MaxMemory:     c.maxMemory,
		DiskEnabled:   c.disk != nil,
	}
	if c.disk != nil {
		s.DiskEntries = c.disk.Len()
		s.DiskBytes = c.disk.SizeBytes()
		s.DiskPending = c.disk.Pending()
		s.MaxDisk = c.maxDisk
	}
	return s
}

// String renders fill ratios, e.g. "[Memory: 100%] [DiskObjects:  40%] [DiskSize: 3 KB]".
func (c *Coordinator[K, V]) String() string {
	s := fmt.Sprintf("[Memory: %3d%%]", len(c.memory)*100/c.maxMemory)
	if c.disk != nil {
		s += fmt.Sprintf(" [DiskObjects: %3d%%] [DiskSize: %d KB]",
			c.disk.Len()*100/c.maxDisk, c.disk.SizeBytes()/1024)
	}
	return s
}

func (c *Coordinator[K, V]) diskLen() int {
	if c.disk == nil {
		return 0
	}
	return c.disk.Len()
}
