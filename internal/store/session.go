package store

import (
	"context"
	"fmt"
	"sync"

	"pluginstore.shikanime.studio/internal/catalogue"
	"pluginstore.shikanime.studio/internal/install"
	"pluginstore.shikanime.studio/internal/plugin"
)

// sessionCatalogue remembers install catalogues that failed to load so the
// rest of the session does not retry them.
type sessionCatalogue struct {
	c *catalogue.Client

	mu     sync.RWMutex
	failed map[plugin.Manager]error
}

var _ install.Catalogue = (*sessionCatalogue)(nil)

func newSessionCatalogue(c *catalogue.Client) *sessionCatalogue {
	return &sessionCatalogue{c: c, failed: make(map[plugin.Manager]error)}
}

func (s *sessionCatalogue) FetchInstallCatalogue(ctx context.Context, m plugin.Manager, force bool) (map[string]string, error) {
	s.mu.RLock()
	err := s.failed[m]
	s.mu.RUnlock()
	if err != nil && !force {
		return nil, fmt.Errorf("%w: %w", install.ErrUnavailable, err)
	}
	return s.c.FetchInstallCatalogue(ctx, m, force)
}

func (s *sessionCatalogue) fail(m plugin.Manager, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[m] = err
}

func (s *sessionCatalogue) reset(m plugin.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failed, m)
}

func (s *sessionCatalogue) resetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failed)
}
