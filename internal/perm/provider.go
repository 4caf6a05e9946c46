// Package perm evaluates site-scoped permissions through a registry of
// pluggable providers. Providers opt into capabilities by implementing the
// corresponding interface; the registry only calls what a provider declares.
package perm

import (
	"context"
	"errors"
	"strings"

	"site-service/internal/model"
)

var (
	// ErrPermissionDenied is returned by a provider to short-circuit a
	// permission check as denied, overriding providers not yet consulted.
	// It is never surfaced to callers; a denial is a normal false result.
	ErrPermissionDenied = errors.New("perm: permission denied")

	// ErrInvalidPermissionArgument reports a malformed permission name or a
	// wrong-typed argument. This is a programming error, not a denial.
	ErrInvalidPermissionArgument = errors.New("perm: invalid permission argument")
)

// Provider is a registered permission source. A provider implements any
// subset of the capability interfaces below.
type Provider interface{}

// UserPermissionProvider supplies permissions granted to a site user directly
type UserPermissionProvider interface {
	SiteUserPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error)
}

// GroupPermissionProvider supplies permissions granted through group membership
type GroupPermissionProvider interface {
	SiteGroupPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error)
}

// AllPermissionProvider supplies the combined permission set of a site user
type AllPermissionProvider interface {
	SiteAllPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error)
}

// PermissionChecker answers single permission checks. Returning
// ErrPermissionDenied denies immediately regardless of later providers.
type PermissionChecker interface {
	HasSitePermission(ctx context.Context, su *model.SiteUser, perm string, obj interface{}) (bool, error)
}

// ModulePermissionProvider answers whether a site user holds any permission
// under an app label.
type ModulePermissionProvider interface {
	HasModuleSitePermissions(ctx context.Context, su *model.SiteUser, appLabel string) (bool, error)
}

// SiteUserQuerier answers bulk "who holds this permission" queries
type SiteUserQuerier interface {
	QuerySiteUsersWithPermission(ctx context.Context, appLabel, codename string, opts QueryOptions) ([]model.SiteUser, error)
}

// QueryOptions filter SiteUsersWithPermission results
type QueryOptions struct {
	// IsActive filters on the active flag when non-nil.
	IsActive *bool
	// IncludeSuperusers adds active superusers regardless of grants.
	IncludeSuperusers bool
	// Object requests object-level filtering; bulk object-level queries are
	// not supported and return an empty result.
	Object interface{}
}

// DefaultQueryOptions matches the default query surface: active site users
// only, superusers included.
func DefaultQueryOptions() QueryOptions {
	active := true
	return QueryOptions{IsActive: &active, IncludeSuperusers: true}
}

// SplitPermission parses "app_label.codename", rejecting malformed names
func SplitPermission(perm string) (appLabel, codename string, err error) {
	appLabel, codename, ok := strings.Cut(perm, ".")
	if !ok || appLabel == "" || codename == "" {
		return "", "", ErrInvalidPermissionArgument
	}
	return appLabel, codename, nil
}
