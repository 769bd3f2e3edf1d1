// Package testutil holds test doubles shared by the package tests.
package testutil

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
)

// ErrInjected is returned by FaultyFS for every injected failure.
var ErrInjected = errors.New("injected fault")

// FaultyFS wraps a billy.Filesystem and fails writes, reads or removes
// while the matching flag is set. Flags may be flipped between calls.
type FaultyFS struct {
	billy.Filesystem

	FailWrites  atomic.Bool
	FailReads   atomic.Bool
	FailRemoves atomic.Bool
}

// NewFaultyFS wraps fs with all faults disabled.
func NewFaultyFS(fs billy.Filesystem) *FaultyFS { return &FaultyFS{Filesystem: fs} }

// OpenFile fails file creation when FailWrites is set.
func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	if f.FailWrites.Load() && flag&os.O_CREATE != 0 {
		return nil, ErrInjected
	}
	if f.FailReads.Load() && flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return nil, ErrInjected
	}
	return f.Filesystem.OpenFile(name, flag, perm)
}

// Open fails when FailReads is set.
func (f *FaultyFS) Open(name string) (billy.File, error) {
	if f.FailReads.Load() {
		return nil, ErrInjected
	}
	return f.Filesystem.Open(name)
}

// Remove fails when FailRemoves is set.
func (f *FaultyFS) Remove(name string) error {
	if f.FailRemoves.Load() {
		return ErrInjected
	}
	return f.Filesystem.Remove(name)
}

// QuietLogger discards everything.
func QuietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
