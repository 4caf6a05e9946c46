package site

import (
	"context"
	"testing"

	"site-service/internal/model"
	"site-service/pkg/cache"
	"site-service/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootPathsComputesAndCaches(t *testing.T) {
	resolver, st := newTestResolver(
		model.Site{ID: 1, Hostname: "example.com", Port: 80, RootPath: "/home/"},
		model.Site{ID: 2, Hostname: "example.com", Port: 8000, RootPath: "/home/dev/"},
		model.Site{ID: 3, Hostname: "secure.com", Port: 443, RootPath: "/"},
	)
	ctx := context.Background()

	paths, err := resolver.RootPaths(ctx)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	// Most specific root path first.
	assert.Equal(t, uint(2), paths[0].SiteID)
	assert.Equal(t, "/home/dev/", paths[0].RootPath)
	assert.Equal(t, "http://example.com:8000", paths[0].RootURL)

	assert.Equal(t, "http://example.com", paths[1].RootURL)
	assert.Equal(t, "https://secure.com", paths[2].RootURL)

	require.Equal(t, 1, st.listCalls)

	// Cache hit is authoritative: a store mutation without invalidation is
	// not observed.
	st.sites[0].RootPath = "/changed/"
	again, err := resolver.RootPaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, paths, again)
	assert.Equal(t, 1, st.listCalls)
}

func TestClearRootPathsCacheForcesRecompute(t *testing.T) {
	resolver, st := newTestResolver(
		model.Site{ID: 1, Hostname: "example.com", Port: 80, RootPath: "/home/"},
	)
	ctx := context.Background()

	_, err := resolver.RootPaths(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.listCalls)

	st.sites[0].RootPath = "/moved/"
	require.NoError(t, resolver.ClearRootPathsCache(ctx))

	paths, err := resolver.RootPaths(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.listCalls)
	assert.Equal(t, "/moved/", paths[0].RootPath)
}

func TestRootPathsLocalized(t *testing.T) {
	st := &fakeSiteStore{sites: []model.Site{
		{ID: 1, Hostname: "example.com", Port: 80, RootPath: "/home/"},
	}}
	cfg := &config.SiteConfig{
		DefaultPort: 80,
		I18NEnabled: true,
		Languages:   []string{"en", "fr"},
	}
	resolver := NewResolver(st, cache.NewMemoryCache(), cfg)

	paths, err := resolver.RootPaths(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	byLang := map[string]string{}
	for _, p := range paths {
		byLang[p.LanguageCode] = p.RootPath
	}
	assert.Equal(t, "/en/home/", byLang["en"])
	assert.Equal(t, "/fr/home/", byLang["fr"])
}
