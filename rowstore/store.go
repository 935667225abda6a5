package rowstore

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultMaxSize is the default ceiling of the store file size
const DefaultMaxSize int64 = 10_000_000

var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrCapacityExceeded = errors.New("store is full")
	ErrShortWrite       = errors.New("short write")
)

// File is what Handle needs from an open store. *os.File implements it
type File interface {
	io.Writer
	Stat() (os.FileInfo, error)
	Sync() error
	Close() error
}

// Handle is a store file opened for appending
type Handle struct {
	Path string
	// if true, Sync() after writing a record
	Sync bool

	file File
}

// NewHandle returns a handle for f, which must be opened for appending
func NewHandle(path string, f File) *Handle {
	return &Handle{
		Path: path,
		file: f,
	}
}

// OpenForAppend opens the store, creating it if needed.
// The directory must exist
func OpenForAppend(path string) (*Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: store path is empty", ErrStoreUnavailable)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return NewHandle(path, f), nil
}

// Size returns current size of the store
func (h *Handle) Size() (int64, error) {
	st, err := h.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return st.Size(), nil
}

// CheckCapacity fails if size reached the ceiling.
// ceiling <= 0 means DefaultMaxSize
func CheckCapacity(size int64, ceiling int64) error {
	if ceiling <= 0 {
		ceiling = DefaultMaxSize
	}
	if size >= ceiling {
		return fmt.Errorf("%w: size %d, max %d", ErrCapacityExceeded, size, ceiling)
	}
	return nil
}

// writeAll writes d in a single Write() call.
// we don't retry partial writes: a record must be appended in one write
// to not interleave with records appended by other processes
func writeAll(w io.Writer, d []byte) error {
	n, err := w.Write(d)
	if n != len(d) {
		if err == nil {
			err = io.ErrShortWrite
		}
		return fmt.Errorf("%w: wrote %d of %d bytes: %w", ErrShortWrite, n, len(d), err)
	}
	return err
}

// WriteRecord appends an encoded record
func (h *Handle) WriteRecord(rec []byte) error {
	if h.file == nil {
		return os.ErrClosed
	}
	if err := writeAll(h.file, rec); err != nil {
		return err
	}
	if h.Sync {
		return h.file.Sync()
	}
	return nil
}

// Close closes the store. It's safe to call multiple times
func (h *Handle) Close() error {
	if h == nil || h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}
