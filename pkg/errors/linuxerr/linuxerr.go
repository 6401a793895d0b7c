// Copyright 2021 The gVisor Authors.
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

// Package linuxerr contains syscall error codes exported as an error interface
// pointers. This allows for fast comparison and return operations comperable
// to unix.Errno constants.
package linuxerr

import (
	goerrors "errors"

	"gvisor.dev/vmcore/pkg/abi/linux/errno"
	"gvisor.dev/vmcore/pkg/errors"
)

// The following errors are the ones the memory core, the file table and the
// process syscalls can produce. Handlers return them unwrapped so that
// callers can compare by identity.
var (
	EPERM        = errors.New(errno.EPERM, "operation not permitted")
	ENOENT       = errors.New(errno.ENOENT, "no such file or directory")
	ESRCH        = errors.New(errno.ESRCH, "no such process")
	EIO          = errors.New(errno.EIO, "I/O error")
	E2BIG        = errors.New(errno.E2BIG, "argument list too long")
	ENOEXEC      = errors.New(errno.ENOEXEC, "exec format error")
	EBADF        = errors.New(errno.EBADF, "bad file number")
	ECHILD       = errors.New(errno.ECHILD, "no child processes")
	ENOMEM       = errors.New(errno.ENOMEM, "out of memory")
	EACCES       = errors.New(errno.EACCES, "permission denied")
	EFAULT       = errors.New(errno.EFAULT, "bad address")
	EBUSY        = errors.New(errno.EBUSY, "device or resource busy")
	EEXIST       = errors.New(errno.EEXIST, "file exists")
	EINVAL       = errors.New(errno.EINVAL, "invalid argument")
	ENOSPC       = errors.New(errno.ENOSPC, "no space left on device")
	ESPIPE       = errors.New(errno.ESPIPE, "illegal seek")
	ENAMETOOLONG = errors.New(errno.ENAMETOOLONG, "file name too long")
	ENOSYS       = errors.New(errno.ENOSYS, "invalid system call number")
)

// Equals compares a linuxerr to a given error. It unwraps err, so errors
// annotated with fmt.Errorf("...: %w", linuxerr.EFAULT) still compare equal.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == nil
	}
	var le *errors.Error
	if !goerrors.As(err, &le) {
		return false
	}
	return le == e
}

// ToError converts an errno to an error from this package, or nil if the
// errno is not one of the errors above.
func ToError(no errno.Errno) *errors.Error {
	for _, e := range []*errors.Error{
		EPERM, ENOENT, ESRCH, EIO, E2BIG, ENOEXEC, EBADF, ECHILD, ENOMEM,
		EACCES, EFAULT, EBUSY, EEXIST, EINVAL, ENOSPC, ESPIPE, ENAMETOOLONG,
		ENOSYS,
	} {
		if e.Errno() == no {
			return e
		}
	}
	return nil
}
