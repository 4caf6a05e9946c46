package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"site-service/internal/model"
	"site-service/internal/store"
	"site-service/pkg/cache"
	"site-service/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSiteStore struct {
	sites     []model.Site
	listCalls int
}

func (f *fakeSiteStore) SitesByHostname(ctx context.Context, hostname string) ([]model.Site, error) {
	var out []model.Site
	for _, s := range f.sites {
		if s.Hostname == hostname {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSiteStore) AllSites(ctx context.Context) ([]model.Site, error) {
	f.listCalls++
	return f.sites, nil
}

func (f *fakeSiteStore) SiteByID(ctx context.Context, id uint) (*model.Site, error) {
	for i := range f.sites {
		if f.sites[i].ID == id {
			return &f.sites[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeSiteStore) CreateSiteWithCreator(ctx context.Context, site *model.Site, creatorUserID uint) (*model.SiteUser, error) {
	site.ID = uint(len(f.sites) + 1)
	f.sites = append(f.sites, *site)
	return &model.SiteUser{SiteID: site.ID, UserID: creatorUserID, IsActive: true, IsSuperuser: true}, nil
}

func (f *fakeSiteStore) UpdateSite(ctx context.Context, site *model.Site) error { return nil }
func (f *fakeSiteStore) DeleteSite(ctx context.Context, id uint) error          { return nil }

func newTestResolver(sites ...model.Site) (*Resolver, *fakeSiteStore) {
	st := &fakeSiteStore{sites: sites}
	cfg := &config.SiteConfig{DefaultPort: 80, Languages: []string{"en"}}
	return NewResolver(st, cache.NewMemoryCache(), cfg), st
}

func TestResolveHost(t *testing.T) {
	siteA := model.Site{ID: 1, Hostname: "example.com", Port: 80, SiteName: "A"}
	siteB := model.Site{ID: 2, Hostname: "example.com", Port: 8000, SiteName: "B"}
	siteC := model.Site{ID: 3, Hostname: "other.com", Port: 80, SiteName: "C"}

	tests := []struct {
		name     string
		sites    []model.Site
		hostname string
		port     int
		wantID   uint
		wantErr  error
	}{
		{
			name:     "exact hostname and port",
			sites:    []model.Site{siteA, siteB, siteC},
			hostname: "example.com",
			port:     8000,
			wantID:   2,
		},
		{
			name:     "default-port site wins over other hostname match",
			sites:    []model.Site{siteA, siteB, siteC},
			hostname: "example.com",
			port:     9999,
			wantID:   1,
		},
		{
			name:     "port 80 request picks port-80 site",
			sites:    []model.Site{siteA, siteB, siteC},
			hostname: "example.com",
			port:     80,
			wantID:   1,
		},
		{
			name:     "single hostname match ignores port",
			sites:    []model.Site{siteC},
			hostname: "other.com",
			port:     4444,
			wantID:   3,
		},
		{
			name:     "hostname is case-insensitive",
			sites:    []model.Site{siteA, siteB},
			hostname: "EXAMPLE.com",
			port:     8000,
			wantID:   2,
		},
		{
			name:     "unknown hostname",
			sites:    []model.Site{siteA, siteB, siteC},
			hostname: "missing.com",
			port:     80,
			wantErr:  ErrSiteNotFound,
		},
		{
			name: "no default-port candidate falls back to lowest id",
			sites: []model.Site{
				{ID: 5, Hostname: "multi.com", Port: 8001},
				{ID: 6, Hostname: "multi.com", Port: 8002},
			},
			hostname: "multi.com",
			port:     9999,
			wantID:   5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, _ := newTestResolver(tt.sites...)

			got, err := resolver.ResolveHost(context.Background(), tt.hostname, tt.port)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestResolveHostNeverReturnsWrongSite(t *testing.T) {
	sites := []model.Site{
		{ID: 1, Hostname: "a.com", Port: 80},
		{ID: 2, Hostname: "b.com", Port: 80},
		{ID: 3, Hostname: "b.com", Port: 8000},
	}
	resolver, _ := newTestResolver(sites...)

	for _, s := range sites {
		got, err := resolver.ResolveHost(context.Background(), s.Hostname, s.Port)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID, "resolve(%s, %d)", s.Hostname, s.Port)
	}
}

func TestForRequestMemoizes(t *testing.T) {
	resolver, st := newTestResolver(model.Site{ID: 1, Hostname: "example.com", Port: 80})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "example.com"
	c := e.NewContext(req, httptest.NewRecorder())

	first, err := resolver.ForRequest(c)
	require.NoError(t, err)
	require.Equal(t, uint(1), first.ID)

	// Mutating the site table mid-request must not change the outcome.
	st.sites = nil

	second, err := resolver.ForRequest(c)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestForRequestMemoizesNotFound(t *testing.T) {
	resolver, st := newTestResolver()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "ghost.com"
	c := e.NewContext(req, httptest.NewRecorder())

	_, err := resolver.ForRequest(c)
	require.ErrorIs(t, err, ErrSiteNotFound)

	// A site appearing mid-request must not change the memoized outcome.
	st.sites = []model.Site{{ID: 1, Hostname: "ghost.com", Port: 80}}

	_, err = resolver.ForRequest(c)
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		host     string
		wantName string
		wantPort int
	}{
		{"example.com", "example.com", 80},
		{"example.com:8000", "example.com", 8000},
		{"EXAMPLE.COM:8000", "example.com", 8000},
		{"example.com:notaport", "example.com", 80},
		{"[::1]", "::1", 80},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			name, port := splitHostPort(tt.host, 80)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}
