package readme

import (
	"context"
	"strings"

	"pluginstore.shikanime.studio/internal/fetch"
)

// DefaultRawURL is the raw-content location of a repository README.
const DefaultRawURL = "https://raw.githubusercontent.com/{full_name}/HEAD/README.md"

// RawSource downloads READMEs as plain text from a URL template. The
// template may reference {owner}, {name} and {full_name}.
type RawSource struct {
	fetcher  *fetch.Client
	template string
}

// NewRawSource returns a RawSource. An empty template selects DefaultRawURL.
func NewRawSource(f *fetch.Client, template string) *RawSource {
	if template == "" {
		template = DefaultRawURL
	}
	return &RawSource{fetcher: f, template: template}
}

func (s *RawSource) Readme(ctx context.Context, owner, name string) ([]byte, error) {
	url := strings.NewReplacer(
		"{full_name}", owner+"/"+name,
		"{owner}", owner,
		"{name}", name,
	).Replace(s.template)
	resp, err := s.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
