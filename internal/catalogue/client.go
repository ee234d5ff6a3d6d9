// Package catalogue fetches the plugin database and the per-manager install
// catalogues, serving them from cache whenever possible.
package catalogue

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"pluginstore.shikanime.studio/internal/cache"
	"pluginstore.shikanime.studio/internal/fetch"
	"pluginstore.shikanime.studio/internal/plugin"
)

const pluginsKey = "db"

// SnapshotCodec stores snapshots as JSON and validates them on decode.
var SnapshotCodec cache.Codec[*plugin.Snapshot] = cache.Funcs[*plugin.Snapshot]{
	EncodeFunc: func(s *plugin.Snapshot) ([]byte, error) { return json.Marshal(s) },
	DecodeFunc: plugin.ParseSnapshot,
}

// InstallCodec stores install catalogues as JSON.
var InstallCodec cache.Codec[map[string]string] = cache.JSON[map[string]string]{}

// Options configures a Client.
type Options struct {
	pluginsURL  string
	installURLs map[plugin.Manager]string
	fetcher     *fetch.Client
	plugins     *cache.Store[*plugin.Snapshot]
	installs    *cache.Store[map[string]string]
}

// Option applies a configuration to Options.
type Option func(*Options)

// WithPluginsURL sets the plugin database location.
func WithPluginsURL(url string) Option {
	return func(o *Options) { o.pluginsURL = url }
}

// WithInstallURL sets the install catalogue location of manager.
func WithInstallURL(m plugin.Manager, url string) Option {
	return func(o *Options) { o.installURLs[m] = url }
}

// WithFetcher sets the HTTP client.
func WithFetcher(f *fetch.Client) Option {
	return func(o *Options) { o.fetcher = f }
}

// WithPluginCache sets the cache holding plugin database snapshots.
func WithPluginCache(s *cache.Store[*plugin.Snapshot]) Option {
	return func(o *Options) { o.plugins = s }
}

// WithInstallCache sets the cache holding install catalogues.
func WithInstallCache(s *cache.Store[map[string]string]) Option {
	return func(o *Options) { o.installs = s }
}

// Client retrieves catalogue resources.
type Client struct {
	opts  Options
	group singleflight.Group
}

// NewClient returns a Client. Caches default to memory-only stores.
func NewClient(opts ...Option) *Client {
	o := Options{installURLs: make(map[plugin.Manager]string)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = fetch.NewClient()
	}
	if o.plugins == nil {
		o.plugins = cache.New("plugins", SnapshotCodec)
	}
	if o.installs == nil {
		o.installs = cache.New("install", InstallCodec)
	}
	return &Client{opts: o}
}

// FetchPluginList returns the plugin database. A fresh cached copy is
// returned without network access. A stale copy is revalidated with a HEAD
// request and kept when its validator is unchanged. force discards the
// cached copy and always downloads. Concurrent calls share one request
// whatever their force flag.
func (c *Client) FetchPluginList(ctx context.Context, force bool) (*plugin.Snapshot, error) {
	tracer := otel.Tracer("pluginstore/catalogue")
	ctx, span := tracer.Start(ctx, "Client.FetchPluginList")
	defer span.End()
	span.SetAttributes(attribute.Bool("catalogue.force", force))

	v, err, _ := c.group.Do(pluginsKey, func() (any, error) {
		return c.fetchPluginList(ctx, force)
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return v.(*plugin.Snapshot), nil
}

func (c *Client) fetchPluginList(ctx context.Context, force bool) (*plugin.Snapshot, error) {
	if force {
		if err := c.opts.plugins.Clear(ctx, pluginsKey); err != nil {
			slog.WarnContext(ctx, "Failed to clear plugin list cache", "error", err)
		}
	} else {
		e, st := c.opts.plugins.Lookup(ctx, pluginsKey)
		switch st {
		case cache.Fresh:
			slog.DebugContext(ctx, "Plugin list cache fresh; skip fetch", "written_at", e.WrittenAt)
			return e.Value, nil
		case cache.Stale:
			if snap, ok := c.revalidate(ctx, e); ok {
				return snap, nil
			}
		}
	}

	resp, err := c.opts.fetcher.Get(ctx, c.opts.pluginsURL)
	if err != nil {
		return nil, err
	}
	snap, err := plugin.ParseSnapshot(resp.Body)
	if err != nil {
		return nil, err
	}
	c.opts.plugins.Put(ctx, pluginsKey, snap, resp.Validator)
	slog.InfoContext(ctx, "Plugin list fetched", "items", len(snap.Items), "validator", resp.Validator)
	return snap, nil
}

// revalidate probes the plugin database and refreshes the stale entry when it is unchanged.
func (c *Client) revalidate(ctx context.Context, e cache.Entry[*plugin.Snapshot]) (*plugin.Snapshot, bool) {
	if e.Validator == "" {
		return nil, false
	}
	current, err := c.opts.fetcher.Validator(ctx, c.opts.pluginsURL)
	if err != nil {
		slog.WarnContext(ctx, "Plugin list probe failed; fall back to full fetch", "error", err)
		return nil, false
	}
	if current != e.Validator {
		slog.InfoContext(ctx, "Plugin list changed upstream", "cached", e.Validator, "current", current)
		return nil, false
	}
	c.opts.plugins.Put(ctx, pluginsKey, e.Value, current)
	slog.InfoContext(ctx, "Plugin list unchanged; refresh cache timestamp", "validator", current)
	return e.Value, true
}

// FetchInstallCatalogue returns the install snippets of manager keyed by full name.
func (c *Client) FetchInstallCatalogue(ctx context.Context, manager plugin.Manager, force bool) (map[string]string, error) {
	tracer := otel.Tracer("pluginstore/catalogue")
	ctx, span := tracer.Start(ctx, "Client.FetchInstallCatalogue")
	defer span.End()
	span.SetAttributes(
		attribute.String("catalogue.manager", string(manager)),
		attribute.Bool("catalogue.force", force),
	)

	url, ok := c.opts.installURLs[manager]
	if !ok || url == "" {
		err := plugin.Validationf("no install catalogue for manager %q", manager)
		recordError(span, err)
		return nil, err
	}
	v, err, _ := c.group.Do("install:"+string(manager), func() (any, error) {
		return c.fetchInstallCatalogue(ctx, manager, url, force)
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return v.(map[string]string), nil
}

func (c *Client) fetchInstallCatalogue(ctx context.Context, manager plugin.Manager, url string, force bool) (map[string]string, error) {
	if force {
		if err := c.opts.installs.Clear(ctx, string(manager)); err != nil {
			slog.WarnContext(ctx, "Failed to clear install catalogue cache", "manager", manager, "error", err)
		}
	} else if items, ok := c.opts.installs.Get(ctx, string(manager)); ok {
		slog.DebugContext(ctx, "Install catalogue cache fresh; skip fetch", "manager", manager)
		return items, nil
	}

	resp, err := c.opts.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Items *map[string]string `json:"items"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, plugin.Parsef("install catalogue %s: %v", manager, err)
	}
	if payload.Items == nil {
		return nil, plugin.Parsef("install catalogue %s: missing items", manager)
	}
	items := *payload.Items
	c.opts.installs.Put(ctx, string(manager), items, resp.Validator)
	slog.InfoContext(ctx, "Install catalogue fetched", "manager", manager, "items", len(items))
	return items, nil
}

// Managers returns the managers with a configured install catalogue.
func (c *Client) Managers() []plugin.Manager {
	var out []plugin.Manager
	for _, m := range plugin.Managers {
		if c.opts.installURLs[m] != "" {
			out = append(out, m)
		}
	}
	return out
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
