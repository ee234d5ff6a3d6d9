package plugin

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const database = `{
  "meta": {"total_count": 2, "created_at": "2025-01-02T03:04:05Z", "max_full_name_length": 28},
  "items": [
    {
      "full_name": "nvim-telescope/telescope.nvim",
      "author": "nvim-telescope",
      "name": "telescope.nvim",
      "url": "https://github.com/nvim-telescope/telescope.nvim",
      "description": "Find, Filter, Preview, Pick.",
      "tags": ["fuzzy-finder", "lua"],
      "stars": 17000,
      "issues": 120,
      "forks": 900,
      "created_at": "2020-08-31T00:00:00Z",
      "updated_at": "2025-01-01T00:00:00Z",
      "install": {
        "lazy.nvim": "{ 'nvim-telescope/telescope.nvim' }",
        "vim.pack": {"snippet": "vim.pack.add({ 'https://github.com/nvim-telescope/telescope.nvim' })", "migrated_from": "lazy.nvim"}
      }
    },
    {
      "full_name": "folke/lazy.nvim",
      "author": "folke",
      "name": "lazy.nvim",
      "url": "https://github.com/folke/lazy.nvim",
      "stars": 15000,
      "issues": 10,
      "forks": 300,
      "created_at": "2022-11-20T00:00:00Z",
      "updated_at": "2025-01-02T00:00:00Z"
    }
  ]
}`

func TestParseSnapshot(t *testing.T) {
	t.Parallel()

	s, err := ParseSnapshot([]byte(database))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Meta.TotalCount)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), s.Meta.CreatedAt)
	assert.Equal(t, map[string]int{"max_full_name_length": 28}, s.Meta.Hints)
	require.Len(t, s.Items, 2)

	r, err := s.Lookup("nvim-telescope/telescope.nvim")
	require.NoError(t, err)
	assert.Equal(t, []string{"fuzzy-finder", "lua"}, r.Tags)
	assert.Equal(t, ProvenanceNative, r.Install[ManagerLazy].Provenance)
	assert.Equal(t, ProvenanceMigrated, r.Install[ManagerVimPack].Provenance)
	assert.Equal(t, ManagerLazy, r.Install[ManagerVimPack].MigratedFrom)

	_, err = s.Lookup("nobody/nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseSnapshotRejectsSchemaMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `<html>`},
		{"missing items", `{"meta": {"total_count": 0}}`},
		{"missing meta", `{"items": []}`},
		{"duplicate", `{"meta": {}, "items": [{"full_name": "a/b"}, {"full_name": "a/b"}]}`},
		{"negative stars", `{"meta": {}, "items": [{"full_name": "a/b", "stars": -1}]}`},
		{"empty full name", `{"meta": {}, "items": [{"name": "b"}]}`},
		{"empty full name with foreign url", `{"meta": {}, "items": [{"url": "https://gitlab.com/a/b"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSnapshot([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParseSnapshotDerivesFullNameFromURL(t *testing.T) {
	t.Parallel()

	s, err := ParseSnapshot([]byte(`{"meta": {}, "items": [{"url": "https://github.com/folke/lazy.nvim"}]}`))
	require.NoError(t, err)
	r, err := s.Lookup("folke/lazy.nvim")
	require.NoError(t, err)
	assert.Equal(t, "folke", r.Author)
	assert.Equal(t, "lazy.nvim", r.Name)
}

func TestSnapshotWithoutIndex(t *testing.T) {
	t.Parallel()

	s := &Snapshot{Items: []Repository{{FullName: "a/b"}}}
	r, err := s.Lookup("a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", r.FullName)
}

func TestSplitFullName(t *testing.T) {
	t.Parallel()

	owner, name, err := SplitFullName("folke/lazy.nvim")
	require.NoError(t, err)
	assert.Equal(t, "folke", owner)
	assert.Equal(t, "lazy.nvim", name)

	for _, bad := range []string{"", "folke", "folke/", "/lazy", "a/b/c", "a b/c", "../x", "a/.."} {
		_, _, err := SplitFullName(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestFullNameFromURL(t *testing.T) {
	t.Parallel()

	got, err := FullNameFromURL("https://github.com/folke/lazy.nvim")
	require.NoError(t, err)
	assert.Equal(t, "folke/lazy.nvim", got)

	got, err = FullNameFromURL("https://github.com/folke/lazy.nvim.git")
	require.NoError(t, err)
	assert.Equal(t, "folke/lazy.nvim", got)

	_, err = FullNameFromURL("https://gitlab.com/folke/lazy.nvim")
	assert.Error(t, err)
}

func TestParseManager(t *testing.T) {
	t.Parallel()

	m, err := ParseManager("vim.pack")
	require.NoError(t, err)
	assert.Equal(t, ManagerVimPack, m)

	_, err = ParseManager("packer")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestInstalled(t *testing.T) {
	t.Parallel()

	in := NewInstalled("lazy.nvim", " ", "nvim-telescope/telescope.nvim")
	assert.True(t, in.Has(&Repository{Name: "lazy.nvim", FullName: "folke/lazy.nvim"}))
	assert.True(t, in.Has(&Repository{Name: "telescope.nvim", FullName: "nvim-telescope/telescope.nvim"}))
	assert.False(t, in.Has(&Repository{Name: "mini.nvim", FullName: "echasnovski/mini.nvim"}))
	assert.Len(t, in, 2)
}

func TestProtocolError(t *testing.T) {
	t.Parallel()

	err := error(&ProtocolError{URL: "https://example.com/db.json", Status: 503, Body: "down"})
	assert.ErrorIs(t, err, ErrProtocol)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.Status)
	assert.Contains(t, err.Error(), "503")
}
