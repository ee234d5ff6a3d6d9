// Package readme retrieves plugin READMEs and caches them sanitized for display.
package readme

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"pluginstore.shikanime.studio/internal/cache"
	"pluginstore.shikanime.studio/internal/encoding"
	"pluginstore.shikanime.studio/internal/plugin"
)

// Source downloads the raw README of a repository, decoded to plain text.
type Source interface {
	Readme(ctx context.Context, owner, name string) ([]byte, error)
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	cache *cache.Store[[]string]
}

// FetcherOption applies a configuration to FetcherOptions.
type FetcherOption func(*FetcherOptions)

// WithCache sets the store holding sanitized READMEs.
func WithCache(s *cache.Store[[]string]) FetcherOption {
	return func(o *FetcherOptions) { o.cache = s }
}

// Fetcher returns sanitized README lines, cache first.
type Fetcher struct {
	src   Source
	cache *cache.Store[[]string]
	group singleflight.Group
}

// NewFetcher returns a Fetcher reading from src. The cache defaults to a memory-only store.
func NewFetcher(src Source, opts ...FetcherOption) *Fetcher {
	var o FetcherOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = cache.New("readme", cache.Lines{})
	}
	return &Fetcher{src: src, cache: o.cache}
}

// Fetch returns the sanitized README of fullName ("owner/name"). A malformed
// name fails with plugin.ErrValidation before any I/O. force bypasses the cache.
func (f *Fetcher) Fetch(ctx context.Context, fullName string, force bool) ([]string, error) {
	tracer := otel.Tracer("pluginstore/readme")
	ctx, span := tracer.Start(ctx, "Fetcher.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("readme.repository", fullName), attribute.Bool("readme.force", force))

	owner, name, err := plugin.SplitFullName(fullName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !force {
		if lines, ok := f.cache.Get(ctx, fullName); ok {
			slog.DebugContext(ctx, "README cache fresh; skip fetch", "repository", fullName)
			return lines, nil
		}
	}

	v, err, _ := f.group.Do(fullName, func() (any, error) {
		raw, err := f.src.Readme(ctx, owner, name)
		if err != nil {
			return nil, err
		}
		lines := encoding.Sanitize(SplitLines(raw))
		f.cache.Put(ctx, fullName, lines, "")
		slog.InfoContext(ctx, "README fetched", "repository", fullName, "lines", len(lines))
		return lines, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return v.([]string), nil
}

// Clear drops the cached README of fullName.
func (f *Fetcher) Clear(ctx context.Context, fullName string) error {
	return f.cache.Clear(ctx, fullName)
}

// SplitLines splits text on newlines and strips carriage returns.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
