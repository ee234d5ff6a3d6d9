// Package install resolves the install snippet of a plugin for a manager.
package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pluginstore.shikanime.studio/internal/plugin"
)

// ErrUnavailable reports that no snippet exists for a plugin and manager.
var ErrUnavailable = errors.New("installation unavailable")

// Catalogue provides the install catalogue of a manager keyed by full name.
type Catalogue interface {
	FetchInstallCatalogue(ctx context.Context, manager plugin.Manager, force bool) (map[string]string, error)
}

// Snippet is a resolved install snippet.
type Snippet struct {
	FullName     string            `json:"full_name"`
	Manager      plugin.Manager    `json:"manager"`
	Text         string            `json:"snippet"`
	Provenance   plugin.Provenance `json:"provenance"`
	MigratedFrom plugin.Manager    `json:"migrated_from,omitempty"`
	TargetPath   string            `json:"target_path,omitempty"`
}

// Options configures a Resolver.
type Options struct {
	catalogue  Catalogue
	targetDirs map[plugin.Manager]string
}

// Option applies a configuration to Options.
type Option func(*Options)

// WithCatalogue sets the source of install catalogues. Without one only
// inline snippets are used.
func WithCatalogue(c Catalogue) Option {
	return func(o *Options) { o.catalogue = c }
}

// WithTargetDir sets the directory snippets of m are written to.
func WithTargetDir(m plugin.Manager, dir string) Option {
	return func(o *Options) { o.targetDirs[m] = dir }
}

// Resolver picks the snippet of a plugin: the manager's catalogue first,
// then the record's inline entry.
type Resolver struct {
	opts Options
}

func NewResolver(opts ...Option) *Resolver {
	o := Options{targetDirs: make(map[plugin.Manager]string)}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resolver{opts: o}
}

// Resolve returns the snippet of repo for manager. Catalogue failures are
// logged and fall back to the inline entry; ErrUnavailable is returned when
// neither has one.
func (r *Resolver) Resolve(ctx context.Context, repo *plugin.Repository, manager plugin.Manager) (Snippet, error) {
	tracer := otel.Tracer("pluginstore/install")
	ctx, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("install.repository", repo.FullName),
		attribute.String("install.manager", string(manager)),
	)

	s := Snippet{FullName: repo.FullName, Manager: manager, TargetPath: r.TargetPath(repo, manager)}
	if r.opts.catalogue != nil {
		items, err := r.opts.catalogue.FetchInstallCatalogue(ctx, manager, false)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Install catalogue unavailable; fall back to inline entry",
				"manager", manager, "error", err)
		case strings.TrimSpace(items[repo.FullName]) != "":
			s.Text = items[repo.FullName]
			s.Provenance = plugin.ProvenanceNative
			return s, nil
		}
	}
	if entry, ok := repo.Install[manager]; ok && strings.TrimSpace(entry.Snippet) != "" {
		s.Text = entry.Snippet
		s.Provenance = entry.Provenance
		s.MigratedFrom = entry.MigratedFrom
		return s, nil
	}

	err := fmt.Errorf("%w: %s for %s", ErrUnavailable, repo.FullName, manager)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return Snippet{}, err
}

// TargetPath returns where the snippet of repo for m belongs, or "" when no
// target directory is configured.
func (r *Resolver) TargetPath(repo *plugin.Repository, m plugin.Manager) string {
	dir := r.opts.targetDirs[m]
	if dir == "" {
		return ""
	}
	name := repo.Name
	if name == "" {
		_, name, _ = strings.Cut(repo.FullName, "/")
	}
	return filepath.Join(dir, NormalizeName(name)+".lua")
}

// NormalizeName turns a repository name into a file stem: a trailing
// ".nvim", ".vim", ".lua" or "-nvim" is dropped and remaining dots become dashes.
func NormalizeName(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".nvim", ".vim", ".lua", "-nvim"} {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return strings.ReplaceAll(name, ".", "-")
}
