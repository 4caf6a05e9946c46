package middleware

import (
	"errors"
	"net/http"
	"regexp"

	"site-service/internal/model"
	"site-service/internal/perm"
	"site-service/internal/session"
	"site-service/internal/site"
	"site-service/internal/siteuser"
	"site-service/internal/store"
	"site-service/pkg/logger"
	"site-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SiteResolution resolves the request's site from the Host header exactly
// once per request. An unmatched host gets a well-defined 404, never a crash.
func SiteResolution(resolver *site.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			resolved, err := resolver.ForRequest(c)
			if errors.Is(err, site.ErrSiteNotFound) {
				log.Warn("no site for request host", zap.String("host", c.Request().Host))
				prometheus.RecordSiteResolution("not_found")
				return c.JSON(http.StatusNotFound, echo.Map{"error": "no site configured for this host"})
			}
			if err != nil {
				log.Error("site resolution failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "site resolution failed"})
			}

			prometheus.RecordSiteResolution("resolved")
			c.Set("site", resolved)
			return next(c)
		}
	}
}

// SiteUserResolution attaches the session's site-scoped identity to requests
// whose path matches one of the configured patterns, and an Authorizer to
// every request so permission checks work with or without an identity.
// A stale session pointer downgrades the request to unscoped checks instead
// of failing it.
func SiteUserResolution(users store.UserStore, resolver *siteuser.Resolver, registry *perm.Registry, pathPatterns []string) echo.MiddlewareFunc {
	patterns := make([]*regexp.Regexp, 0, len(pathPatterns))
	for _, p := range pathPatterns {
		// Patterns are validated at startup; see config.Validate.
		patterns = append(patterns, regexp.MustCompile(p))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authorizer := siteuser.NewAuthorizer(siteuser.DenyAll{}, registry, nil)
			c.Set("authorizer", authorizer)

			userID, ok := c.Get("user_id").(uint)
			if !ok {
				return next(c)
			}

			matched := false
			for _, pattern := range patterns {
				if pattern.MatchString(c.Request().URL.Path) {
					matched = true
					break
				}
			}
			if !matched {
				return next(c)
			}

			sess, ok := session.FromEcho(c)
			if !ok {
				return next(c)
			}

			ctx := c.Request().Context()

			user, err := users.UserByID(ctx, userID)
			if err != nil {
				log.Error("failed to load user for site-user resolution", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "user lookup failed"})
			}

			su, err := resolver.Resolve(ctx, user, sess)
			if errors.Is(err, siteuser.ErrSiteUserNotFound) {
				// Recoverable: the caller sees unscoped permission behavior
				// and can prompt re-selection.
				log.Warn("no site user for session site",
					zap.Uint("user_id", userID))
				prometheus.RecordAuthError("site_user_not_found")
				return next(c)
			}
			if err != nil {
				log.Error("site-user resolution failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "site user resolution failed"})
			}

			c.Set("site_user", su)
			site.Attach(c, &su.Site)
			authorizer.Attach(su)

			return next(c)
		}
	}
}

// SiteUserFromEcho returns the site user attached to the request, if any
func SiteUserFromEcho(c echo.Context) (*model.SiteUser, bool) {
	su, ok := c.Get("site_user").(*model.SiteUser)
	return su, ok
}

// AuthorizerFromEcho returns the request's permission surface
func AuthorizerFromEcho(c echo.Context) (*siteuser.Authorizer, bool) {
	a, ok := c.Get("authorizer").(*siteuser.Authorizer)
	return a, ok
}
