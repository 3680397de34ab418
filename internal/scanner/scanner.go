package scanner

import (
	"context"
	"fmt"

	"DataPaperIndex/internal/domain"
)

// DefaultStrategy is used by journals that do not name a scanner.
const DefaultStrategy = "rss"

// Request carries everything a strategy needs to read one journal feed.
type Request struct {
	Journal string
	FeedURL string
	Options map[string]string
}

// Scanner captures a single feed-reading strategy.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.FeedEntry, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(s Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[s.Name()] = s
}

// Resolve returns a scanner by name; an empty name resolves DefaultStrategy.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if name == "" {
		name = DefaultStrategy
	}
	if s, ok := r.scanners[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
