// Package cache implements a two-tier cache with an in-process memory tier
// and a persistent disk tier, each with its own maximum age.
//
// Every resource class owns a directory holding a manifest that maps keys to
// their payload, either inline or in a sibling payload file. Payload files
// are always written before the manifest that references them, and a
// manifest or payload that cannot be decoded is treated as a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"k8s.io/utils/clock"
)

// Status classifies the result of a lookup.
type Status int

const (
	// Miss means no usable entry exists.
	Miss Status = iota
	// Stale means an entry exists but is older than its tier's maximum age.
	Stale
	// Fresh means an entry is within its tier's maximum age.
	Fresh
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// Entry is a cached value with its write time and optional validator.
type Entry[T any] struct {
	Value     T
	WrittenAt time.Time
	// Validator is an opaque token, such as an ETag or a content length,
	// used to revalidate a stale entry without downloading it again.
	Validator string
}

// Policy holds the maximum ages of both tiers. A non-positive age never expires.
type Policy struct {
	MemoryMaxAge time.Duration
	DiskMaxAge   time.Duration
}

func fresh(now, writtenAt time.Time, maxAge time.Duration) bool {
	return maxAge <= 0 || now.Sub(writtenAt) <= maxAge
}

// Options configures a Store.
type Options struct {
	dir    string
	fs     afero.Fs
	clock  clock.PassiveClock
	policy Policy
	inline bool
}

// Option applies a configuration to Options.
type Option func(*Options)

// WithDir enables the disk tier rooted at dir.
func WithDir(dir string) Option {
	return func(o *Options) { o.dir = dir }
}

// WithFs sets the filesystem backing the disk tier.
func WithFs(fsys afero.Fs) Option {
	return func(o *Options) { o.fs = fsys }
}

// WithClock sets the clock used for write times and freshness.
func WithClock(c clock.PassiveClock) Option {
	return func(o *Options) { o.clock = c }
}

// WithPolicy sets the tier maximum ages.
func WithPolicy(p Policy) Option {
	return func(o *Options) { o.policy = p }
}

// WithInlinePayload stores payloads inside the manifest instead of one file per key.
func WithInlinePayload() Option {
	return func(o *Options) { o.inline = true }
}

type memEntry[T any] struct {
	Entry[T]
	gen uint64
}

// Store caches values of one resource class.
type Store[T any] struct {
	class string
	codec Codec[T]
	opts  Options

	mu  sync.RWMutex
	mem map[string]*memEntry[T]
	gen uint64

	// diskMu serializes manifest reads and writes.
	diskMu sync.Mutex
	wg     sync.WaitGroup
}

// New returns a Store for class. Without WithDir only the memory tier is used.
func New[T any](class string, codec Codec[T], opts ...Option) *Store[T] {
	o := Options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dir != "" && o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.dir == "" {
		o.fs = nil
	}
	return &Store[T]{
		class: class,
		codec: codec,
		opts:  o,
		mem:   make(map[string]*memEntry[T]),
	}
}

// Class returns the resource class name.
func (s *Store[T]) Class() string { return s.class }

// Get returns the value for key when either tier holds a fresh entry.
func (s *Store[T]) Get(ctx context.Context, key string) (T, bool) {
	e, st := s.Lookup(ctx, key)
	if st != Fresh {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Lookup returns the best entry for key. A fresh memory entry wins; otherwise
// a fresh disk entry is promoted to memory. Stale entries are returned so
// callers can revalidate them.
func (s *Store[T]) Lookup(ctx context.Context, key string) (Entry[T], Status) {
	now := s.opts.clock.Now()

	s.mu.RLock()
	m := s.mem[key]
	s.mu.RUnlock()
	if m != nil && fresh(now, m.WrittenAt, s.opts.policy.MemoryMaxAge) {
		return m.Entry, Fresh
	}

	e, st := s.readDisk(ctx, key, now)
	switch st {
	case Fresh:
		promoted := &memEntry[T]{Entry: Entry[T]{Value: e.Value, WrittenAt: now, Validator: e.Validator}}
		s.mu.Lock()
		if cur := s.mem[key]; cur == m {
			s.gen++
			promoted.gen = s.gen
			s.mem[key] = promoted
		}
		s.mu.Unlock()
		return e, Fresh
	case Stale:
		if m != nil && m.WrittenAt.After(e.WrittenAt) {
			return m.Entry, Stale
		}
		return e, Stale
	}
	if m != nil {
		return m.Entry, Stale
	}
	return Entry[T]{}, Miss
}

func (s *Store[T]) readDisk(ctx context.Context, key string, now time.Time) (Entry[T], Status) {
	if s.opts.fs == nil {
		return Entry[T]{}, Miss
	}
	s.diskMu.Lock()
	defer s.diskMu.Unlock()

	man, err := s.loadManifest()
	if err != nil {
		slog.WarnContext(ctx, "Cache manifest unreadable; treating as miss", "class", s.class, "error", err)
		return Entry[T]{}, Miss
	}
	me, ok := man.Entries[key]
	if !ok {
		return Entry[T]{}, Miss
	}
	data, err := s.readPayload(me)
	if err != nil {
		slog.WarnContext(ctx, "Cache payload unreadable; treating as miss", "class", s.class, "key", key, "error", err)
		return Entry[T]{}, Miss
	}
	v, err := s.codec.Decode(data)
	if err != nil {
		slog.WarnContext(ctx, "Cache payload corrupt; treating as miss", "class", s.class, "key", key, "error", err)
		return Entry[T]{}, Miss
	}
	e := Entry[T]{Value: v, WrittenAt: me.WrittenAt, Validator: me.Validator}
	if fresh(now, me.WrittenAt, s.opts.policy.DiskMaxAge) {
		return e, Fresh
	}
	return e, Stale
}

// Put stores value in memory immediately and persists it to disk in the
// background. Disk failures are logged and never reported to the caller.
func (s *Store[T]) Put(ctx context.Context, key string, value T, validator string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mem[key] = &memEntry[T]{
		Entry: Entry[T]{Value: value, WrittenAt: s.opts.clock.Now(), Validator: validator},
		gen:   gen,
	}
	s.mu.Unlock()

	if s.opts.fs == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Go(func() { s.persist(ctx, key, gen) })
}

func (s *Store[T]) persist(ctx context.Context, key string, gen uint64) {
	s.diskMu.Lock()
	defer s.diskMu.Unlock()

	s.mu.RLock()
	m := s.mem[key]
	s.mu.RUnlock()
	if m == nil || m.gen != gen {
		slog.DebugContext(ctx, "Cache entry superseded; skip disk write", "class", s.class, "key", key)
		return
	}

	data, err := s.codec.Encode(m.Value)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode cache entry", "class", s.class, "key", key, "error", err)
		return
	}
	man, err := s.loadManifest()
	if err != nil {
		slog.WarnContext(ctx, "Replacing unreadable cache manifest", "class", s.class, "error", err)
		man = newManifest()
	}
	me := manifestEntry{WrittenAt: m.WrittenAt, Validator: m.Validator}
	if s.opts.inline {
		me.Inline = data
	} else {
		me.File = payloadName(key)
		if err := writeFileAtomic(s.opts.fs, s.payloadPath(me.File), data); err != nil {
			slog.WarnContext(ctx, "Failed to write cache payload", "class", s.class, "key", key, "error", err)
			return
		}
	}
	man.Entries[key] = me
	if err := s.saveManifest(man); err != nil {
		slog.WarnContext(ctx, "Failed to write cache manifest", "class", s.class, "error", err)
		return
	}
	slog.DebugContext(ctx, "Cache entry persisted", "class", s.class, "key", key, "bytes", len(data))
}

func (s *Store[T]) payloadPath(name string) string {
	return filepath.Join(s.classDir(), name)
}

// Clear removes key from both tiers.
func (s *Store[T]) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.mem, key)
	s.gen++
	s.mu.Unlock()

	if s.opts.fs == nil {
		return nil
	}
	s.diskMu.Lock()
	defer s.diskMu.Unlock()

	man, err := s.loadManifest()
	if err != nil {
		slog.WarnContext(ctx, "Removing unreadable cache manifest", "class", s.class, "error", err)
		if rerr := s.opts.fs.Remove(s.manifestPath()); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove manifest: %w", rerr)
		}
		return nil
	}
	me, ok := man.Entries[key]
	if !ok {
		return nil
	}
	delete(man.Entries, key)
	if err := s.saveManifest(man); err != nil {
		return err
	}
	if me.File != "" {
		if err := s.opts.fs.Remove(s.payloadPath(me.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove payload: %w", err)
		}
	}
	return nil
}

// ClearAll removes every entry of the class from both tiers.
func (s *Store[T]) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	s.mem = make(map[string]*memEntry[T])
	s.gen++
	s.mu.Unlock()

	if s.opts.fs == nil {
		return nil
	}
	s.diskMu.Lock()
	defer s.diskMu.Unlock()
	if err := s.opts.fs.RemoveAll(s.classDir()); err != nil {
		return fmt.Errorf("failed to clear %s cache: %w", s.class, err)
	}
	slog.InfoContext(ctx, "Cache cleared", "class", s.class)
	return nil
}

// Size returns the number of bytes the class occupies on disk.
func (s *Store[T]) Size() (int64, error) {
	if s.opts.fs == nil {
		return 0, nil
	}
	s.diskMu.Lock()
	defer s.diskMu.Unlock()

	var total int64
	err := afero.Walk(s.opts.fs, s.classDir(), func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Flush blocks until pending disk writes complete. It must not run concurrently with Put.
func (s *Store[T]) Flush() { s.wg.Wait() }
