// Package registry holds the ordered list of feeds a device can pick from.
package registry

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bft-labs/feedrelay/internal/domain"
)

var defaults = []domain.FeedSource{
	{Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml"},
	{Name: "NY Times", URL: "https://rss.nytimes.com/services/xml/rss/nyt/World.xml"},
	{Name: "NPR News", URL: "https://feeds.npr.org/1001/rss.xml"},
	{Name: "Guardian", URL: "https://www.theguardian.com/world/rss"},
	{Name: "Le Monde", URL: "https://www.lemonde.fr/rss/une.xml"},
	{Name: "Reuters", URL: "https://feeds.reuters.com/reuters/topNews"},
}

// Defaults returns a copy of the built-in feed list.
func Defaults() []domain.FeedSource {
	out := make([]domain.FeedSource, len(defaults))
	copy(out, defaults)
	return out
}

// Registry is an immutable, never empty, ordered feed list.
// A feed is identified by its position.
type Registry struct {
	sources []domain.FeedSource
	custom  bool
}

// New creates a registry over sources, falling back to the defaults when the
// list is empty or malformed.
func New(sources []domain.FeedSource) *Registry {
	if Valid(sources) != nil {
		return &Registry{sources: Defaults()}
	}
	out := make([]domain.FeedSource, len(sources))
	copy(out, sources)
	return &Registry{sources: out, custom: true}
}

// Load builds the registry from persisted preferences.
func Load(prefs domain.Preferences) *Registry {
	return New(prefs.Feeds)
}

// Valid reports why sources cannot replace the defaults, or nil.
func Valid(sources []domain.FeedSource) error {
	if len(sources) == 0 {
		return fmt.Errorf("feed list is empty")
	}
	for i, s := range sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("feed %d: name is required", i)
		}
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("feed %d: url is required", i)
		}
	}
	return nil
}

// Sources returns a copy of the feed list.
func (r *Registry) Sources() []domain.FeedSource {
	out := make([]domain.FeedSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Len returns the number of feeds.
func (r *Registry) Len() int { return len(r.sources) }

// Name returns the name of feed i, or "" when out of range.
func (r *Registry) Name(i int) string {
	if i < 0 || i >= len(r.sources) {
		return ""
	}
	return r.sources[i].Name
}

// Custom reports whether the list came from preferences.
func (r *Registry) Custom() bool { return r.custom }

// Resolve returns the URL of feed i. An out-of-range index resolves to the
// first built-in feed, whatever the current list is.
func (r *Registry) Resolve(i int) string {
	if i >= 0 && i < len(r.sources) {
		return r.sources[i].URL
	}
	return defaults[0].URL
}

type yamlDoc struct {
	Feeds []domain.FeedSource `yaml:"feeds"`
}

// ReadYAML decodes a feed list of the form
//
//	feeds:
//	  - name: BBC World
//	    url: https://feeds.bbci.co.uk/news/world/rss.xml
//
// and checks it with Valid.
func ReadYAML(r io.Reader) ([]domain.FeedSource, error) {
	var doc yamlDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: feed list is empty", domain.ErrInvalidConfig)
		}
		return nil, fmt.Errorf("decode feed list: %w", err)
	}
	for i := range doc.Feeds {
		doc.Feeds[i].Name = strings.TrimSpace(doc.Feeds[i].Name)
		doc.Feeds[i].URL = strings.TrimSpace(doc.Feeds[i].URL)
	}
	if err := Valid(doc.Feeds); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return doc.Feeds, nil
}

// WriteYAML encodes sources in the format ReadYAML accepts.
func WriteYAML(w io.Writer, sources []domain.FeedSource) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDoc{Feeds: sources}); err != nil {
		return fmt.Errorf("encode feed list: %w", err)
	}
	return enc.Close()
}
