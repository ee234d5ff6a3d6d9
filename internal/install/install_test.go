package install

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pluginstore.shikanime.studio/internal/plugin"
)

type fakeCatalogue struct {
	items map[plugin.Manager]map[string]string
	err   error
	calls int
}

func (f *fakeCatalogue) FetchInstallCatalogue(_ context.Context, m plugin.Manager, _ bool) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items[m], nil
}

func telescope() *plugin.Repository {
	return &plugin.Repository{
		FullName: "nvim-telescope/telescope.nvim",
		Name:     "telescope.nvim",
		Install: map[plugin.Manager]plugin.InstallSpec{
			plugin.ManagerLazy: {Snippet: "{ 'nvim-telescope/telescope.nvim' }", Provenance: plugin.ProvenanceNative},
			plugin.ManagerVimPack: {
				Snippet:      "vim.pack.add({ 'https://github.com/nvim-telescope/telescope.nvim' })",
				Provenance:   plugin.ProvenanceMigrated,
				MigratedFrom: plugin.ManagerLazy,
			},
		},
	}
}

func TestResolveCatalogueWins(t *testing.T) {
	t.Parallel()
	cat := &fakeCatalogue{items: map[plugin.Manager]map[string]string{
		plugin.ManagerLazy: {"nvim-telescope/telescope.nvim": "return { 'nvim-telescope/telescope.nvim', tag = '0.1.8' }"},
	}}
	r := NewResolver(WithCatalogue(cat), WithTargetDir(plugin.ManagerLazy, "/nvim/lua/plugins"))

	s, err := r.Resolve(context.Background(), telescope(), plugin.ManagerLazy)
	require.NoError(t, err)
	assert.Equal(t, "return { 'nvim-telescope/telescope.nvim', tag = '0.1.8' }", s.Text)
	assert.Equal(t, plugin.ProvenanceNative, s.Provenance)
	assert.Equal(t, filepath.Join("/nvim/lua/plugins", "telescope.lua"), s.TargetPath)
	assert.Equal(t, 1, cat.calls)
}

func TestResolveFallsBackToInline(t *testing.T) {
	t.Parallel()
	cat := &fakeCatalogue{items: map[plugin.Manager]map[string]string{}}
	r := NewResolver(WithCatalogue(cat))

	s, err := r.Resolve(context.Background(), telescope(), plugin.ManagerVimPack)
	require.NoError(t, err)
	assert.Equal(t, plugin.ProvenanceMigrated, s.Provenance)
	assert.Equal(t, plugin.ManagerLazy, s.MigratedFrom)
	assert.Empty(t, s.TargetPath)
}

func TestResolveCatalogueFailureDegrades(t *testing.T) {
	t.Parallel()
	cat := &fakeCatalogue{err: errors.New("boom")}
	r := NewResolver(WithCatalogue(cat))

	s, err := r.Resolve(context.Background(), telescope(), plugin.ManagerLazy)
	require.NoError(t, err)
	assert.Equal(t, "{ 'nvim-telescope/telescope.nvim' }", s.Text)

	repo := telescope()
	repo.Install = nil
	_, err = r.Resolve(context.Background(), repo, plugin.ManagerLazy)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveWithoutCatalogue(t *testing.T) {
	t.Parallel()
	r := NewResolver()
	repo := &plugin.Repository{FullName: "a/b", Name: "b"}
	_, err := r.Resolve(context.Background(), repo, plugin.ManagerLazy)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"telescope.nvim":  "telescope",
		"vim-fugitive":    "vim-fugitive",
		"lualine.nvim":    "lualine",
		"plenary.lua":     "plenary",
		"tokyonight-nvim": "tokyonight",
		"nvim-cmp":        "nvim-cmp",
		"vim-airline.vim": "vim-airline",
		"mini.ai":         "mini-ai",
		".nvim":           "-nvim",
	} {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}
