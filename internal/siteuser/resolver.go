// Package siteuser resolves the site-scoped identity of an authenticated
// user and adapts legacy unscoped permission checks onto it.
package siteuser

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"site-service/internal/model"
	"site-service/internal/session"
	"site-service/internal/store"
	"site-service/pkg/logger"

	"go.uber.org/zap"
)

// ErrSiteUserNotFound is returned when no site user exists for a site/user
// pair, e.g. a session still pointing at a site the user was removed from.
// Callers recover by falling back or prompting re-selection, never by
// failing the request outright.
var ErrSiteUserNotFound = errors.New("siteuser: no site user for site and user")

// SessionSiteIDKey is the session field holding the active site id
const SessionSiteIDKey = "site_id"

// Resolver maps an authenticated user plus session state to a site user
type Resolver struct {
	store store.SiteUserStore
}

// NewResolver creates a site-user resolver
func NewResolver(st store.SiteUserStore) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the site user for the session's active site. When the
// session has no usable pointer it falls back to the user's default site,
// then to the most recently created membership, persisting the choice into
// the session. A pointer to a site the user no longer belongs to yields
// ErrSiteUserNotFound.
func (r *Resolver) Resolve(ctx context.Context, user *model.User, sess *session.Session) (*model.SiteUser, error) {
	siteID, ok := sessionSiteID(sess)
	if !ok {
		var err error
		siteID, err = r.defaultSiteID(ctx, user)
		if err != nil {
			return nil, err
		}
		sess.Set(SessionSiteIDKey, strconv.FormatUint(uint64(siteID), 10))
	}

	su, err := r.store.SiteUserBySiteAndUser(ctx, siteID, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		logger.FromContext(ctx).Warn("session points at a site the user has no access to",
			zap.Uint("user_id", user.ID),
			zap.Uint("site_id", siteID))
		return nil, fmt.Errorf("%w: site %d, user %d", ErrSiteUserNotFound, siteID, user.ID)
	}
	if err != nil {
		return nil, err
	}

	return su, nil
}

// Switch changes the session's active site after validating that an active
// membership exists. On failure the session is left untouched.
func (r *Resolver) Switch(ctx context.Context, user *model.User, sess *session.Session, siteID uint) (*model.SiteUser, error) {
	su, err := r.store.SiteUserBySiteAndUser(ctx, siteID, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: site %d, user %d", ErrSiteUserNotFound, siteID, user.ID)
	}
	if err != nil {
		return nil, err
	}
	if !su.IsActive {
		return nil, fmt.Errorf("%w: site user is inactive", ErrSiteUserNotFound)
	}

	sess.Set(SessionSiteIDKey, strconv.FormatUint(uint64(siteID), 10))

	logger.FromContext(ctx).Info("user switched site",
		zap.Uint("user_id", user.ID),
		zap.Uint("site_id", siteID))

	return su, nil
}

// SetDefault records the user's default site after validating membership
func (r *Resolver) SetDefault(ctx context.Context, user *model.User, siteID uint) error {
	if _, err := r.store.SiteUserBySiteAndUser(ctx, siteID, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: site %d, user %d", ErrSiteUserNotFound, siteID, user.ID)
		}
		return err
	}
	return r.store.SetDefaultSite(ctx, user.ID, siteID)
}

// defaultSiteID picks the site to use when the session has no pointer: the
// user's recorded default site, else the most recent membership.
func (r *Resolver) defaultSiteID(ctx context.Context, user *model.User) (uint, error) {
	if user.DefaultSiteID != nil {
		return *user.DefaultSiteID, nil
	}

	latest, err := r.store.LatestSiteUserForUser(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: user %d has no site memberships", ErrSiteUserNotFound, user.ID)
	}
	if err != nil {
		return 0, err
	}
	return latest.SiteID, nil
}

// sessionSiteID reads the active site id from the session, treating a
// missing or malformed value as unset.
func sessionSiteID(sess *session.Session) (uint, bool) {
	raw, ok := sess.Get(SessionSiteIDKey)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
