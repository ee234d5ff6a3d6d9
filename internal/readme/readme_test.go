package readme

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pluginstore.shikanime.studio/internal/fetch"
	"pluginstore.shikanime.studio/internal/plugin"
)

type fakeSource struct {
	body    string
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (s *fakeSource) Readme(_ context.Context, owner, name string) ([]byte, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

func TestFetchSanitizesAndCaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &fakeSource{body: "\r\n![badge](b.svg)\r\n# lazy.nvim   \r\n\r\n\r\ntext\r\n"}
	f := NewFetcher(src)

	lines, err := f.Fetch(ctx, "folke/lazy.nvim", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"# lazy.nvim", "", "text"}, lines)

	again, err := f.Fetch(ctx, "folke/lazy.nvim", false)
	require.NoError(t, err)
	assert.Equal(t, lines, again)
	assert.Equal(t, int32(1), src.calls.Load())

	_, err = f.Fetch(ctx, "folke/lazy.nvim", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())

	require.NoError(t, f.Clear(ctx, "folke/lazy.nvim"))
	_, err = f.Fetch(ctx, "folke/lazy.nvim", false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestFetchForcedCallJoinsInFlightFetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &fakeSource{body: "# lazy.nvim", release: make(chan struct{})}
	f := NewFetcher(src)

	var wg sync.WaitGroup
	wg.Go(func() {
		_, err := f.Fetch(ctx, "folke/lazy.nvim", false)
		assert.NoError(t, err)
	})
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	wg.Go(func() {
		lines, err := f.Fetch(ctx, "folke/lazy.nvim", true)
		assert.NoError(t, err)
		assert.Equal(t, []string{"# lazy.nvim"}, lines)
	})
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestFetchRejectsMalformedNames(t *testing.T) {
	t.Parallel()
	src := &fakeSource{body: "x"}
	f := NewFetcher(src)

	for _, name := range []string{"", "folke", "folke/lazy.nvim/extra", "folke/ lazy", "../../etc/passwd"} {
		_, err := f.Fetch(context.Background(), name, false)
		assert.ErrorIs(t, err, plugin.ErrValidation, name)
	}
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestFetchErrorIsNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &fakeSource{err: &plugin.ProtocolError{URL: "x", Status: http.StatusNotFound}}
	f := NewFetcher(src)

	_, err := f.Fetch(ctx, "a/b", false)
	require.ErrorIs(t, err, plugin.ErrProtocol)

	src.err = nil
	src.body = "ok"
	lines, err := f.Fetch(ctx, "a/b", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, lines)
}

func TestRawSource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/folke/lazy.nvim/HEAD/README.md" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("# lazy.nvim\n"))
	}))
	defer server.Close()

	f := NewFetcher(NewRawSource(fetch.NewClient(), server.URL+"/{owner}/{name}/HEAD/README.md"))
	lines, err := f.Fetch(context.Background(), "folke/lazy.nvim", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"# lazy.nvim"}, lines)

	_, err = f.Fetch(context.Background(), "folke/missing", false)
	var pe *plugin.ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusNotFound, pe.Status)
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SplitLines(nil))
	assert.Equal(t, []string{"a", "b", ""}, SplitLines([]byte("a\r\nb\n")))
}
