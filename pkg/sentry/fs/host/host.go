// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package host provides a filesystem backed by one host directory.
//
// Every regular file directly inside the directory is a file of the
// simulated filesystem. The directory is locked for the lifetime of the
// Filesystem so that two kernels never share it.
package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/fs"
)

// lockFilename is the name of the lock file inside the root directory. It
// is not visible through the Filesystem.
const lockFilename = ".vmcore.lock"

// inode is an open host file.
type inode struct {
	f    *os.File
	size int64
}

// ReadAt implements fs.Inode.ReadAt.
func (i *inode) ReadAt(p []byte, off int64) (int, error) {
	n, err := i.f.ReadAt(p, off)
	if err != nil && n == len(p) {
		err = nil
	}
	return n, translate(err)
}

// WriteAt implements fs.Inode.WriteAt.
func (i *inode) WriteAt(p []byte, off int64) (int, error) {
	n, err := i.f.WriteAt(p, off)
	return n, translate(err)
}

// Size implements fs.Inode.Size.
func (i *inode) Size() int64 {
	return i.size
}

// Release implements fs.Inode.Release.
func (i *inode) Release() {
	if err := i.f.Close(); err != nil {
		log.Warningf("Closing host file %q: %v", i.f.Name(), err)
	}
}

// Filesystem is an fs.Filesystem over a host directory.
type Filesystem struct {
	root string
	lock *flock.Flock
}

// New locks root and returns a Filesystem over it. If another process holds
// the lock, New retries with exponential backoff for up to timeout.
func New(root string, timeout time.Duration) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating filesystem root %q: %v", root, err)
	}
	lockPath := filepath.Join(root, lockFilename)
	l := flock.New(lockPath)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = timeout
	op := func() error {
		ok, err := l.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return fmt.Errorf("%q is locked by another process", lockPath)
		}
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("acquiring lock on filesystem root %q: %v", root, err)
	}
	log.Infof("Host filesystem at %q", root)
	return &Filesystem{root: root, lock: l}, nil
}

// Close releases the root lock.
func (h *Filesystem) Close() error {
	return h.lock.Unlock()
}

// Root returns the host directory.
func (h *Filesystem) Root() string {
	return h.root
}

func (h *Filesystem) path(name string) (string, error) {
	if err := fs.ValidateName(name); err != nil {
		return "", err
	}
	if name == lockFilename || name == "." || name == ".." {
		return "", linuxerr.EACCES
	}
	return filepath.Join(h.root, name), nil
}

// Create implements fs.Filesystem.Create.
func (h *Filesystem) Create(ctx context.Context, name string, size int64) error {
	if size < 0 {
		return linuxerr.EINVAL
	}
	p, err := h.path(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return translate(err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		os.Remove(p)
		return translate(err)
	}
	ctx.Debugf("host: created %q (%d bytes)", p, size)
	return nil
}

// Remove implements fs.Filesystem.Remove.
func (h *Filesystem) Remove(ctx context.Context, name string) error {
	p, err := h.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return translate(err)
	}
	ctx.Debugf("host: removed %q", p)
	return nil
}

// Open implements fs.Filesystem.Open.
func (h *Filesystem) Open(ctx context.Context, name string) (*fs.File, error) {
	p, err := h.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_RDWR, 0)
	if err != nil {
		return nil, translate(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, translate(err)
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, linuxerr.EACCES
	}
	return fs.NewFile(name, &inode{f: f, size: st.Size()}), nil
}

// translate maps host errors onto the errors the kernel understands.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENOENT:
			return linuxerr.ENOENT
		case unix.EEXIST:
			return linuxerr.EEXIST
		case unix.ENOSPC:
			return linuxerr.ENOSPC
		case unix.EACCES, unix.EPERM, unix.EISDIR:
			return linuxerr.EACCES
		case unix.ENAMETOOLONG:
			return linuxerr.ENAMETOOLONG
		}
	}
	log.Warningf("Host filesystem error: %v", err)
	return linuxerr.EIO
}
