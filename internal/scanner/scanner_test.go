package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DataPaperIndex/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.FeedEntry, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubScanner{name: DefaultStrategy})
	reg.Register(stubScanner{name: "atom"})

	s, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategy, s.Name())

	s, err = reg.Resolve("atom")
	require.NoError(t, err)
	assert.Equal(t, "atom", s.Name())

	_, err = reg.Resolve("html")
	assert.EqualError(t, err, "scanner html is not registered")
}

func TestRegisterOnZeroRegistry(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(stubScanner{name: "rss"})
	_, err := reg.Resolve("rss")
	assert.NoError(t, err)
}
