// Package catalog implements the local resource index (C1): the
// thread-safe set of files one peer offers on the LAN.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

const (
	MaxNameLength = 256
	MaxPathLength = 4096
	MaxFileSize   int64 = 1 << 30 // 1 GiB
	MaxEntries    = 1000
)

var (
	ErrBadInput      = errors.New("catalog: bad input")
	ErrNotFound      = errors.New("catalog: resource not found")
	ErrLimitExceeded = errors.New("catalog: limit exceeded")
)

// Descriptor is one catalog entry.
type Descriptor struct {
	Name         string
	Path         string
	Size         int64
	LastModified time.Time
}

// Entry pairs a name with its descriptor, as returned by Snapshot.
type Entry struct {
	Name       string
	Descriptor Descriptor
}

// Index is the local resource catalog. The zero value is not usable;
// construct with New.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

// New returns an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]Descriptor)}
}

// Add registers path under name, replacing any existing descriptor for
// that name. It returns added=true when name was not previously
// present. Add fails with ErrNotFound if path does not resolve to a
// readable regular file, and with ErrLimitExceeded if name or path
// exceed their length limits, the file exceeds MaxFileSize, or the
// catalog is full and name is new.
func (idx *Index) Add(name, path string) (added bool, err error) {
	if name == "" {
		return false, fmt.Errorf("catalog: name must not be empty: %w", ErrBadInput)
	}
	if len(name) > MaxNameLength {
		return false, fmt.Errorf("catalog: name %q exceeds %d bytes: %w", name, MaxNameLength, ErrLimitExceeded)
	}
	if len(path) > MaxPathLength {
		return false, fmt.Errorf("catalog: path exceeds %d bytes: %w", MaxPathLength, ErrLimitExceeded)
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("catalog: %s: %w", path, ErrNotFound)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("catalog: %s is not a regular file: %w", path, ErrNotFound)
	}
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("catalog: %s is not readable: %w", path, ErrNotFound)
	}
	f.Close()
	if info.Size() > MaxFileSize {
		return false, fmt.Errorf("catalog: %s is %d bytes, exceeds limit of %d: %w", path, info.Size(), MaxFileSize, ErrLimitExceeded)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, existed := idx.entries[name]
	if !existed && len(idx.entries) >= MaxEntries {
		return false, fmt.Errorf("catalog: already holds %d entries: %w", MaxEntries, ErrLimitExceeded)
	}

	idx.entries[name] = Descriptor{
		Name:         name,
		Path:         path,
		Size:         info.Size(),
		LastModified: time.Now(),
	}

	return !existed, nil
}

// Remove deletes the descriptor for name, reporting whether it existed.
func (idx *Index) Remove(name string) (existed bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, existed = idx.entries[name]
	delete(idx.entries, name)
	return existed
}

// Get returns the descriptor registered under name, if any.
func (idx *Index) Get(name string) (Descriptor, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	d, ok := idx.entries[name]
	return d, ok
}

// PathOf returns the filesystem path registered under name, if any.
func (idx *Index) PathOf(name string) (string, bool) {
	d, ok := idx.Get(name)
	if !ok {
		return "", false
	}
	return d.Path, true
}

// Snapshot returns a point-in-time copy of the catalog ordered by name,
// safe to iterate without holding any lock.
func (idx *Index) Snapshot() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Entry, 0, len(idx.entries))
	for name, d := range idx.entries {
		out = append(out, Entry{Name: name, Descriptor: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len reports the current number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
