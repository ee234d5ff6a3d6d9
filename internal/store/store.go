// Package store wires the caches, catalogue client, README pipeline and
// install resolver behind one explicit application context.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"pluginstore.shikanime.studio/internal/cache"
	"pluginstore.shikanime.studio/internal/catalogue"
	"pluginstore.shikanime.studio/internal/config"
	"pluginstore.shikanime.studio/internal/debounce"
	"pluginstore.shikanime.studio/internal/encoding"
	"pluginstore.shikanime.studio/internal/fetch"
	"pluginstore.shikanime.studio/internal/install"
	"pluginstore.shikanime.studio/internal/plugin"
	"pluginstore.shikanime.studio/internal/query"
	"pluginstore.shikanime.studio/internal/readme"
	"pluginstore.shikanime.studio/internal/sorting"
	"pluginstore.shikanime.studio/internal/store/github"
)

// StoreOptions holds collaborators that replace the defaults built from config.
type StoreOptions struct {
	fs        afero.Fs
	clock     clock.WithDelayedExecution
	transport http.RoundTripper
	source    readme.Source
}

// StoreOption applies a configuration to StoreOptions.
type StoreOption func(*StoreOptions)

// WithFs sets the filesystem of the disk cache tier.
func WithFs(fs afero.Fs) StoreOption {
	return func(o *StoreOptions) { o.fs = fs }
}

// WithClock sets the clock used by caches and the preview debouncer.
func WithClock(c clock.WithDelayedExecution) StoreOption {
	return func(o *StoreOptions) { o.clock = c }
}

// WithTransport sets the HTTP transport of every outgoing request.
func WithTransport(rt http.RoundTripper) StoreOption {
	return func(o *StoreOptions) { o.transport = rt }
}

// WithReadmeSource overrides the README source selected by readme.source.
func WithReadmeSource(src readme.Source) StoreOption {
	return func(o *StoreOptions) { o.source = src }
}

// Store is the application context shared by the CLI and the HTTP server.
type Store struct {
	opts config.Options

	plugins  *cache.Store[*plugin.Snapshot]
	readmes  *cache.Store[[]string]
	installs *cache.Store[map[string]string]

	catalogue *catalogue.Client
	sessions  *sessionCatalogue
	readme    *readme.Fetcher
	resolver  *install.Resolver
	debouncer *debounce.Debouncer

	snapshot atomic.Pointer[plugin.Snapshot]
}

// NewForConfig builds a Store from validated configuration.
func NewForConfig(cfg *config.Config) (*Store, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return New(opts)
}

// New builds a Store from opts.
func New(opts config.Options, storeOpts ...StoreOption) (*Store, error) {
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, errs
	}
	o := StoreOptions{clock: clock.RealClock{}, transport: http.DefaultTransport}
	for _, opt := range storeOpts {
		opt(&o)
	}

	fetcher := fetch.NewClient(
		fetch.WithTimeout(opts.Catalogue.Timeout),
		fetch.WithUserAgent(opts.Catalogue.UserAgent),
		fetch.WithTransport(o.transport),
	)
	cacheOpts := func(c config.CacheClass, extra ...cache.Option) []cache.Option {
		return append([]cache.Option{
			cache.WithDir(opts.Cache.Dir),
			cache.WithFs(o.fs),
			cache.WithClock(o.clock),
			cache.WithPolicy(cache.Policy{MemoryMaxAge: c.MemoryMaxAge, DiskMaxAge: c.DiskMaxAge}),
		}, extra...)
	}

	s := &Store{
		opts:     opts,
		plugins:  cache.New("plugins", catalogue.SnapshotCodec, cacheOpts(opts.Cache.Plugins, cache.WithInlinePayload())...),
		readmes:  cache.New("readme", cache.Lines{}, cacheOpts(opts.Cache.Readme)...),
		installs: cache.New("install", catalogue.InstallCodec, cacheOpts(opts.Cache.Install, cache.WithInlinePayload())...),
	}

	catOpts := []catalogue.Option{
		catalogue.WithPluginsURL(opts.Catalogue.URL),
		catalogue.WithFetcher(fetcher),
		catalogue.WithPluginCache(s.plugins),
		catalogue.WithInstallCache(s.installs),
	}
	resolverOpts := []install.Option{}
	for _, m := range plugin.Managers {
		mo := opts.Install.Manager(m)
		if mo.URL != "" {
			catOpts = append(catOpts, catalogue.WithInstallURL(m, mo.URL))
		}
		resolverOpts = append(resolverOpts, install.WithTargetDir(m, mo.TargetDir))
	}
	s.catalogue = catalogue.NewClient(catOpts...)
	s.sessions = newSessionCatalogue(s.catalogue)
	if len(s.catalogue.Managers()) > 0 {
		resolverOpts = append(resolverOpts, install.WithCatalogue(s.sessions))
	}
	s.resolver = install.NewResolver(resolverOpts...)

	src := o.source
	if src == nil {
		var err error
		if src, err = newReadmeSource(opts, fetcher); err != nil {
			return nil, err
		}
	}
	s.readme = readme.NewFetcher(src, readme.WithCache(s.readmes))
	s.debouncer = debounce.New(o.clock, opts.Readme.Debounce)
	return s, nil
}

func newReadmeSource(opts config.Options, fetcher *fetch.Client) (readme.Source, error) {
	if opts.Readme.Source == config.ReadmeSourceRaw {
		return readme.NewRawSource(fetcher, opts.Readme.RawURL), nil
	}
	ghOpts := []github.GitHubClientOption{github.WithHTTPClient(fetcher.HTTPClient())}
	if token := ptr.Deref(opts.GitHub.Token, ""); token != "" {
		ghOpts = append(ghOpts, github.WithToken(token))
	}
	if base := ptr.Deref(opts.GitHub.BaseURL, ""); base != "" {
		ghOpts = append(ghOpts, github.WithBaseURL(base))
	}
	c, err := github.NewClient(ghOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return c, nil
}

// Options returns the configuration the Store was built with.
func (s *Store) Options() config.Options { return s.opts }

// Plugins returns the plugin database, cache first. force always downloads.
func (s *Store) Plugins(ctx context.Context, force bool) (*plugin.Snapshot, error) {
	snap, err := s.catalogue.FetchPluginList(ctx, force)
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(snap)
	return snap, nil
}

// Snapshot returns the last plugin database loaded in this session, or nil.
func (s *Store) Snapshot() *plugin.Snapshot { return s.snapshot.Load() }

// SearchRequest selects and orders plugins.
type SearchRequest struct {
	Query     string
	Sort      sorting.Key
	Installed plugin.Installed
	// Limit caps the number of returned items. Zero returns all.
	Limit int
	Force bool
}

// SearchResult holds the matching plugins. Total counts matches before Limit.
type SearchResult struct {
	Total int                 `json:"total"`
	Items []plugin.Repository `json:"items"`
}

// Search filters the plugin database with req.Query and orders it by req.Sort.
// A malformed query fails before any I/O.
func (s *Store) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	tracer := otel.Tracer("pluginstore/store")
	ctx, span := tracer.Start(ctx, "Store.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.query", req.Query),
		attribute.String("search.sort", req.Sort.String()),
	)

	if _, err := query.Parse(req.Query); err != nil {
		recordError(span, err)
		return nil, err
	}
	snap, err := s.Plugins(ctx, req.Force)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	items, err := query.Apply(snap.Items, req.Query)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	items = sorting.Apply(items, req.Sort, req.Installed)
	res := &SearchResult{Total: len(items), Items: items}
	if req.Limit > 0 && len(items) > req.Limit {
		res.Items = items[:req.Limit]
	}
	span.SetAttributes(attribute.Int("search.total", res.Total))
	slog.DebugContext(ctx, "Searched plugins", "query", req.Query, "sort", req.Sort, "total", res.Total)
	return res, nil
}

// Readme returns the sanitized README of fullName.
func (s *Store) Readme(ctx context.Context, fullName string, force bool) ([]string, error) {
	return s.readme.Fetch(ctx, fullName, force)
}

// Outline returns the headings of the README of fullName.
func (s *Store) Outline(ctx context.Context, fullName string) ([]encoding.Heading, error) {
	lines, err := s.Readme(ctx, fullName, false)
	if err != nil {
		return nil, err
	}
	return encoding.Outline(lines)
}

// PreviewReadme fetches the README of fullName after the debounce delay and
// passes it to deliver unless a newer preview superseded it.
func (s *Store) PreviewReadme(ctx context.Context, fullName string, deliver func([]string, error)) *debounce.Task {
	return s.debouncer.Trigger(func(t *debounce.Task) {
		lines, err := s.Readme(ctx, fullName, false)
		if !t.Deliver(func() { deliver(lines, err) }) {
			slog.DebugContext(ctx, "Dropped superseded README preview", "repository", fullName)
		}
	})
}

// Install resolves the install snippet of fullName for manager.
func (s *Store) Install(ctx context.Context, fullName string, manager plugin.Manager) (install.Snippet, error) {
	if _, _, err := plugin.SplitFullName(fullName); err != nil {
		return install.Snippet{}, err
	}
	snap, err := s.Plugins(ctx, false)
	if err != nil {
		return install.Snippet{}, err
	}
	repo, err := snap.Lookup(fullName)
	if err != nil {
		return install.Snippet{}, err
	}
	return s.resolver.Resolve(ctx, repo, manager)
}

// LoadResult summarizes a Load.
type LoadResult struct {
	Snapshot *plugin.Snapshot
	// Unavailable maps managers whose install catalogue failed to load to the cause.
	Unavailable map[plugin.Manager]error
}

// Load fetches the plugin database and every install catalogue concurrently.
// Only a plugin database failure fails the load. A failed install catalogue
// is unavailable for the rest of the session and Install falls back to inline
// snippets for it.
func (s *Store) Load(ctx context.Context, force bool) (*LoadResult, error) {
	tracer := otel.Tracer("pluginstore/store")
	ctx, span := tracer.Start(ctx, "Store.Load")
	defer span.End()

	res := &LoadResult{Unavailable: make(map[plugin.Manager]error)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.Plugins(gctx, force)
		if err != nil {
			return err
		}
		res.Snapshot = snap
		return nil
	})
	for _, m := range s.catalogue.Managers() {
		g.Go(func() error {
			if _, err := s.catalogue.FetchInstallCatalogue(gctx, m, force); err != nil {
				slog.WarnContext(ctx, "Installation unavailable for this session", "manager", m, "error", err)
				s.sessions.fail(m, err)
				mu.Lock()
				res.Unavailable[m] = err
				mu.Unlock()
				return nil
			}
			s.sessions.reset(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordError(span, err)
		return nil, err
	}
	slog.InfoContext(ctx, "Catalogue loaded",
		"items", len(res.Snapshot.Items), "unavailable", len(res.Unavailable))
	return res, nil
}

// CacheUsage reports the disk usage of one cache class.
type CacheUsage struct {
	Class string `json:"class"`
	Bytes int64  `json:"bytes"`
}

// CacheSize returns the disk usage of every cache class.
func (s *Store) CacheSize() ([]CacheUsage, error) {
	var errs []error
	usage := make([]CacheUsage, 0, 3)
	for _, c := range s.classes() {
		n, err := c.size()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.class, err))
		}
		usage = append(usage, CacheUsage{Class: c.class, Bytes: n})
	}
	return usage, errors.Join(errs...)
}

// ClearCache drops every cached resource of both tiers and forgets
// session-level install failures.
func (s *Store) ClearCache(ctx context.Context) error {
	var errs []error
	for _, c := range s.classes() {
		if err := c.clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.class, err))
		}
	}
	s.snapshot.Store(nil)
	s.sessions.resetAll()
	slog.InfoContext(ctx, "Cache cleared", "dir", s.opts.Cache.Dir)
	return errors.Join(errs...)
}

// Close stops pending previews and waits for background cache writes.
func (s *Store) Close() error {
	s.debouncer.Stop()
	for _, c := range s.classes() {
		c.flush()
	}
	return nil
}

type cacheClass struct {
	class string
	size  func() (int64, error)
	clear func(context.Context) error
	flush func()
}

func (s *Store) classes() []cacheClass {
	return []cacheClass{
		{s.plugins.Class(), s.plugins.Size, s.plugins.ClearAll, s.plugins.Flush},
		{s.readmes.Class(), s.readmes.Size, s.readmes.ClearAll, s.readmes.Flush},
		{s.installs.Class(), s.installs.Size, s.installs.ClearAll, s.installs.Flush},
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
