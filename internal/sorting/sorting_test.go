package sorting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pluginstore.shikanime.studio/internal/plugin"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fixtures() []plugin.Repository {
	return []plugin.Repository{
		{FullName: "a/one", Name: "one", Stars: 10, UpdatedAt: epoch.Add(2 * time.Hour), CreatedAt: epoch},
		{FullName: "b/two", Name: "two", Stars: 30, UpdatedAt: epoch.Add(1 * time.Hour), CreatedAt: epoch.Add(3 * time.Hour)},
		{FullName: "c/three", Name: "three", Stars: 10, UpdatedAt: epoch.Add(2 * time.Hour), CreatedAt: epoch.Add(1 * time.Hour)},
		{FullName: "d/four", Name: "four", Stars: 30, UpdatedAt: epoch, CreatedAt: epoch.Add(3 * time.Hour)},
	}
}

func names(items []plugin.Repository) []string {
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = r.FullName
	}
	return out
}

func TestApply(t *testing.T) {
	t.Parallel()

	installed := plugin.NewInstalled("three", "d/four")
	tests := []struct {
		key  Key
		want []string
	}{
		{Default, []string{"a/one", "b/two", "c/three", "d/four"}},
		{MostStars, []string{"b/two", "d/four", "a/one", "c/three"}},
		{RecentlyUpdated, []string{"a/one", "c/three", "b/two", "d/four"}},
		{RecentlyCreated, []string{"b/two", "d/four", "c/three", "a/one"}},
		{Installed, []string{"c/three", "d/four", "a/one", "b/two"}},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			t.Parallel()
			items := fixtures()
			got := Apply(items, tt.key, installed)
			assert.Equal(t, tt.want, names(got))
			assert.Equal(t, names(fixtures()), names(items), "input must not be reordered")
		})
	}
}

func TestApplyInstalledWithoutLookup(t *testing.T) {
	t.Parallel()

	got := Apply(fixtures(), Installed, nil)
	assert.Equal(t, names(fixtures()), names(got))
}

func TestApplyIsPermutation(t *testing.T) {
	t.Parallel()

	for _, k := range Keys {
		got := Apply(fixtures(), k, plugin.NewInstalled("one"))
		assert.ElementsMatch(t, names(fixtures()), names(got), k.String())
	}
}

func TestApplyEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Apply(nil, MostStars, nil))
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	for _, k := range Keys {
		got, err := ParseKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKey("")
	require.NoError(t, err)
	assert.Equal(t, Default, got)

	_, err = ParseKey("alphabetical")
	assert.ErrorIs(t, err, plugin.ErrValidation)
}
