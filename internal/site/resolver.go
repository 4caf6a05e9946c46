// Package site resolves inbound hostname/port pairs to Site records and
// derives the cacheable root paths used to build public URLs.
package site

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"site-service/internal/model"
	"site-service/internal/store"
	"site-service/pkg/cache"
	"site-service/pkg/config"
	"site-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrSiteNotFound is returned when no site matches the requested hostname
var ErrSiteNotFound = errors.New("site: no site found for hostname")

// Match ranks, best first. Candidates with an exact hostname+port match win;
// a hostname match on the deployment default port beats the remaining
// hostname-only matches.
const (
	matchHostnamePort = iota
	matchHostnameDefaultPort
	matchHostname
)

// Resolver maps hostname/port pairs to sites
type Resolver struct {
	store       store.SiteStore
	cache       cache.Cache
	defaultPort int
	i18nEnabled bool
	languages   []string
}

// NewResolver creates a site resolver
func NewResolver(st store.SiteStore, c cache.Cache, cfg *config.SiteConfig) *Resolver {
	return &Resolver{
		store:       st,
		cache:       c,
		defaultPort: cfg.DefaultPort,
		i18nEnabled: cfg.I18NEnabled,
		languages:   cfg.Languages,
	}
}

// ResolveHost returns the single best-matching site for a hostname and port.
// Ambiguity never fails the request: equally ranked candidates are broken by
// lowest id and logged. Only a total absence of a hostname match returns
// ErrSiteNotFound.
func (r *Resolver) ResolveHost(ctx context.Context, hostname string, port int) (*model.Site, error) {
	hostname = strings.ToLower(hostname)

	sites, err := r.store.SitesByHostname(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("resolve %s:%d: %w", hostname, port, err)
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("%w: %s:%d", ErrSiteNotFound, hostname, port)
	}

	// Stable sort keeps the store's id ordering within equal ranks, so the
	// lowest id wins ties deterministically.
	sort.SliceStable(sites, func(i, j int) bool {
		return r.rank(&sites[i], port) < r.rank(&sites[j], port)
	})

	best := &sites[0]
	if len(sites) > 1 && r.rank(best, port) != matchHostnamePort {
		logger.FromContext(ctx).Warn("requested site has more than one candidate",
			zap.String("hostname", hostname),
			zap.Int("port", port),
			zap.Uint("selected_site_id", best.ID))
	}

	return best, nil
}

func (r *Resolver) rank(s *model.Site, port int) int {
	switch {
	case s.Port == port:
		return matchHostnamePort
	case s.Port == r.defaultPort:
		return matchHostnameDefaultPort
	default:
		return matchHostname
	}
}

const requestSiteKey = "resolved_site"

type resolution struct {
	site *model.Site
	err  error
}

// ForRequest resolves the site for an HTTP request, memoizing the outcome
// (including a not-found outcome) on the request context. Repeated calls
// within one request return the identical result even if the site table
// mutates mid-request.
func (r *Resolver) ForRequest(c echo.Context) (*model.Site, error) {
	if res, ok := c.Get(requestSiteKey).(*resolution); ok {
		return res.site, res.err
	}

	hostname, port := splitHostPort(c.Request().Host, r.defaultPort)
	site, err := r.ResolveHost(c.Request().Context(), hostname, port)

	c.Set(requestSiteKey, &resolution{site: site, err: err})
	return site, err
}

// Attach overrides the memoized site for this request, used when a resolved
// site user pins the request to its site.
func Attach(c echo.Context, s *model.Site) {
	c.Set(requestSiteKey, &resolution{site: s})
}

// FromEcho returns the site previously resolved for this request, if any
func FromEcho(c echo.Context) (*model.Site, bool) {
	res, ok := c.Get(requestSiteKey).(*resolution)
	if !ok || res.site == nil {
		return nil, false
	}
	return res.site, true
}

// splitHostPort separates a Host header into hostname and port, falling back
// to the given default when no port is present or it does not parse.
func splitHostPort(host string, defaultPort int) (string, int) {
	hostname := host
	port := defaultPort
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host[idx:], "]") {
		hostname = host[:idx]
		if p, err := parsePort(host[idx+1:]); err == nil {
			port = p
		}
	}
	return strings.ToLower(strings.Trim(hostname, "[]")), port
}

func parsePort(s string) (int, error) {
	var p int
	if _, err := fmt.Sscanf(s, "%d", &p); err != nil {
		return 0, err
	}
	if p <= 0 || p > 65535 {
		return 0, fmt.Errorf("port out of range: %d", p)
	}
	return p, nil
}
