// Package shm implements the shared-memory + gRPC inference transport:
// the preprocessed image is written into a POSIX shared-memory region
// that the model server reads directly, avoiding a serialize/copy round
// trip for large frames.
package shm

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/unix"
)

// Region is a scoped handle over one POSIX shared-memory segment. Its
// lifecycle is create → mmap → write → register (with the server) →
// infer → unregister → munmap → shm_unlink. Close() guarantees release on
// every exit path; a region is registered at most once and unregistered
// at most once, guarded by a one-shot atomic flag against double
// unregister, the same idempotent-stop pattern used by the scheduler's
// Stop() methods elsewhere in this codebase.
type Region struct {
	name       string
	size       int
	fd         int
	data       []byte
	unregister func() error

	unregistered atomic.Bool
}

// Name derives a collision-resistant shared-memory segment name from a
// random salt via blake2b, so concurrently running cameras never clash
// over the same /dev/shm entry.
func Name(prefix string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("shm: generate salt: %w", err)
	}
	sum := blake2b.Sum256(salt)
	return fmt.Sprintf("/%s-%s", prefix, hex.EncodeToString(sum[:8])), nil
}

// posixShmPath maps a POSIX shared-memory name (leading "/", no other
// slashes, per shm_open(3)) to its Linux tmpfs-backed path. Go's x/sys/unix
// doesn't wrap the glibc shm_open/shm_unlink convenience functions, but on
// Linux they are themselves a thin layer over open(2)/unlink(2) against
// /dev/shm, which this package talks to directly.
func posixShmPath(name string) string {
	return "/dev/shm/" + strings.TrimPrefix(name, "/")
}

// Create allocates a new shared-memory segment of size bytes and maps it
// into this process's address space.
func Create(name string, size int) (*Region, error) {
	path := posixShmPath(name)
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("ftruncate %s: %w", path, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &Region{name: name, size: size, fd: fd, data: data}, nil
}

// Write copies b into the mapped region. b must not exceed the region's
// capacity.
func (r *Region) Write(b []byte) error {
	if len(b) > len(r.data) {
		return fmt.Errorf("shm: payload %d bytes exceeds region capacity %d", len(b), len(r.data))
	}
	copy(r.data, b)
	return nil
}

func (r *Region) Name() string { return r.name }
func (r *Region) Size() int    { return r.size }

// SetUnregisterFunc wires the server-side unregister call that must run
// before the region is unmapped; Close invokes it exactly once.
func (r *Region) SetUnregisterFunc(fn func() error) { r.unregister = fn }

// Close runs unregister (once), then munmap, then shm_unlink, swallowing
// a second Close so defer-heavy callers can invoke it unconditionally.
func (r *Region) Close() error {
	if !r.unregistered.CompareAndSwap(false, true) {
		return nil
	}

	var firstErr error
	if r.unregister != nil {
		if err := r.unregister(); err != nil {
			firstErr = fmt.Errorf("unregister: %w", err)
		}
	}
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("munmap: %w", err)
		}
	}
	unix.Close(r.fd)
	if err := unix.Unlink(posixShmPath(r.name)); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shm_unlink: %w", err)
	}
	return firstErr
}
