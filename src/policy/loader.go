package policy

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Error reports a policy that is missing, unreadable or malformed.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("policy %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Loader resolves a policy identifier to a compiled policy. A failed load must
// return an error; callers never fall back to a default policy.
type Loader interface {
	Load(path string) (*Policy, error)
}

// FileLoader reads and compiles the policy file on every call.
type FileLoader struct{}

// Load reads the policy at path.
func (FileLoader) Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Source: path, Err: fmt.Errorf("reading policy: %w", err)}
	}
	return Parse(data, path)
}

// CachingLoader keeps compiled policies in memory and reloads a file only when
// its modification time or size changes.
type CachingLoader struct {
	next Loader

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	policy  *Policy
}

// NewCachingLoader wraps next. If next is nil, FileLoader is used.
func NewCachingLoader(next Loader) *CachingLoader {
	if next == nil {
		next = FileLoader{}
	}
	return &CachingLoader{
		next:    next,
		entries: make(map[string]cacheEntry),
	}
}

// Load returns the cached policy for path if the file is unchanged, otherwise
// it loads it again through the wrapped loader.
func (l *CachingLoader) Load(path string) (*Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		l.evict(path)
		return nil, &Error{Source: path, Err: fmt.Errorf("reading policy: %w", err)}
	}

	l.mu.RLock()
	entry, ok := l.entries[path]
	l.mu.RUnlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.policy, nil
	}

	p, err := l.next.Load(path)
	if err != nil {
		l.evict(path)
		return nil, err
	}

	l.mu.Lock()
	l.entries[path] = cacheEntry{modTime: info.ModTime(), size: info.Size(), policy: p}
	l.mu.Unlock()
	return p, nil
}

func (l *CachingLoader) evict(path string) {
	l.mu.Lock()
	delete(l.entries, path)
	l.mu.Unlock()
}
