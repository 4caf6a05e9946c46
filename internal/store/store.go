// Package store defines the persistence surface for sites, site users and
// permissions, and provides the gorm-backed implementation.
package store

import (
	"context"
	"errors"

	"site-service/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// SiteStore is the persistence surface used by site resolution
type SiteStore interface {
	// SitesByHostname returns all sites whose hostname equals the given
	// (already lowercased) hostname, ordered by id ascending.
	SitesByHostname(ctx context.Context, hostname string) ([]model.Site, error)
	// AllSites returns every site, used for root-path derivation.
	AllSites(ctx context.Context) ([]model.Site, error)
	SiteByID(ctx context.Context, id uint) (*model.Site, error)
	// CreateSiteWithCreator creates the site and its first site user (the
	// creator, as an active superuser) atomically. A site without at least
	// one site user must never be observable.
	CreateSiteWithCreator(ctx context.Context, site *model.Site, creatorUserID uint) (*model.SiteUser, error)
	UpdateSite(ctx context.Context, site *model.Site) error
	DeleteSite(ctx context.Context, id uint) error
}

// SiteUserStore is the persistence surface for site-user memberships
type SiteUserStore interface {
	// SiteUserBySiteAndUser loads the membership for a (site, user) pair
	// with the Site relation populated.
	SiteUserBySiteAndUser(ctx context.Context, siteID, userID uint) (*model.SiteUser, error)
	// LatestSiteUserForUser returns the user's most recently created
	// membership, used as the default when the session has no site pointer.
	LatestSiteUserForUser(ctx context.Context, userID uint) (*model.SiteUser, error)
	SiteUsersForUser(ctx context.Context, userID uint) ([]model.SiteUser, error)
	CreateSiteUser(ctx context.Context, su *model.SiteUser) error
	UpdateSiteUser(ctx context.Context, su *model.SiteUser) error
	DeleteSiteUser(ctx context.Context, siteID, userID uint) error
	CountSuperusers(ctx context.Context, siteID uint) (int64, error)
	// SetDefaultSite records the user's default site choice.
	SetDefaultSite(ctx context.Context, userID, siteID uint) error
	// ClearDefaultSite unsets the user's default site choice.
	ClearDefaultSite(ctx context.Context, userID uint) error
}

// PermissionStore is the persistence surface consulted by the store-backed
// permission provider.
type PermissionStore interface {
	// DirectPermissions returns permissions granted to the site user directly.
	DirectPermissions(ctx context.Context, su *model.SiteUser) ([]model.Permission, error)
	// GroupPermissions returns permissions granted through the site user's groups.
	GroupPermissions(ctx context.Context, su *model.SiteUser) ([]model.Permission, error)
	// AllPermissions returns the full permission table, used for superusers.
	AllPermissions(ctx context.Context) ([]model.Permission, error)
	// SiteUsersWithPermission returns memberships holding the permission via
	// direct or group grant. isActive filters on the active flag when
	// non-nil; includeSuperusers adds active superusers unconditionally.
	SiteUsersWithPermission(ctx context.Context, appLabel, codename string, isActive *bool, includeSuperusers bool) ([]model.SiteUser, error)
}

// UserStore is the persistence surface for platform user accounts
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id uint) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}
