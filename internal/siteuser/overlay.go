package siteuser

import (
	"context"

	"site-service/internal/model"
	"site-service/internal/perm"
)

// BasePermissions is the legacy, unscoped permission surface. Call sites
// written against it keep working whether or not a site user is attached.
type BasePermissions interface {
	Permissions(ctx context.Context, obj interface{}) (map[string]struct{}, error)
	GroupPermissions(ctx context.Context, obj interface{}) (map[string]struct{}, error)
	AllPermissions(ctx context.Context, obj interface{}) (map[string]struct{}, error)
	HasPermission(ctx context.Context, permName string, obj interface{}) (bool, error)
	HasModulePermission(ctx context.Context, appLabel string) (bool, error)
}

// DenyAll is the zero-value base surface: no permissions. Used when there is
// no unscoped permission system to fall back to.
type DenyAll struct{}

func (DenyAll) Permissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (DenyAll) GroupPermissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (DenyAll) AllPermissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (DenyAll) HasPermission(ctx context.Context, permName string, obj interface{}) (bool, error) {
	return false, nil
}

func (DenyAll) HasModulePermission(ctx context.Context, appLabel string) (bool, error) {
	return false, nil
}

var permCacheKinds = [...]string{model.PermCacheUser, model.PermCacheGroup, model.PermCacheAll}

// Authorizer implements BasePermissions. With a site user attached it
// delegates every check to the site-scoped evaluation, round-tripping the
// per-kind permission caches between itself and the identity so repeated
// checks within a request stay cheap; without one it falls through to the
// base surface. Construct one per request.
type Authorizer struct {
	base     BasePermissions
	registry *perm.Registry
	siteUser *model.SiteUser

	// Mirrors of the identity's per-kind caches, kept so a re-attached
	// identity instance does not lose already-loaded permission sets.
	caches map[string]map[string]struct{}
}

// NewAuthorizer wraps the base surface; su may be nil when the request has
// no site-scoped identity.
func NewAuthorizer(base BasePermissions, registry *perm.Registry, su *model.SiteUser) *Authorizer {
	if base == nil {
		base = DenyAll{}
	}
	return &Authorizer{
		base:     base,
		registry: registry,
		siteUser: su,
		caches:   make(map[string]map[string]struct{}, len(permCacheKinds)),
	}
}

// Attach replaces the site user the authorizer delegates to
func (a *Authorizer) Attach(su *model.SiteUser) {
	a.siteUser = su
}

// SiteUser returns the attached identity, if any
func (a *Authorizer) SiteUser() (*model.SiteUser, bool) {
	return a.siteUser, a.siteUser != nil
}

// scoped runs fn against the attached identity with the cached permission
// sets restored first and captured back afterwards.
func scoped[T any](a *Authorizer, fn func(su *model.SiteUser) (T, error)) (T, error) {
	for _, kind := range permCacheKinds {
		if cached, ok := a.caches[kind]; ok {
			if _, loaded := a.siteUser.CachedPermissions(kind); !loaded {
				a.siteUser.SetCachedPermissions(kind, cached)
			}
		}
	}

	res, err := fn(a.siteUser)

	for _, kind := range permCacheKinds {
		if cached, ok := a.siteUser.CachedPermissions(kind); ok {
			a.caches[kind] = cached
		}
	}
	return res, err
}

func (a *Authorizer) Permissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	if a.siteUser == nil {
		return a.base.Permissions(ctx, obj)
	}
	return scoped(a, func(su *model.SiteUser) (map[string]struct{}, error) {
		return a.registry.UserPermissions(ctx, su, obj)
	})
}

func (a *Authorizer) GroupPermissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	if a.siteUser == nil {
		return a.base.GroupPermissions(ctx, obj)
	}
	return scoped(a, func(su *model.SiteUser) (map[string]struct{}, error) {
		return a.registry.GroupPermissions(ctx, su, obj)
	})
}

func (a *Authorizer) AllPermissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	if a.siteUser == nil {
		return a.base.AllPermissions(ctx, obj)
	}
	return scoped(a, func(su *model.SiteUser) (map[string]struct{}, error) {
		return a.registry.AllPermissions(ctx, su, obj)
	})
}

func (a *Authorizer) HasPermission(ctx context.Context, permName string, obj interface{}) (bool, error) {
	if a.siteUser == nil {
		return a.base.HasPermission(ctx, permName, obj)
	}
	return scoped(a, func(su *model.SiteUser) (bool, error) {
		return a.registry.HasPermission(ctx, su, permName, obj)
	})
}

// HasPermissions reports whether every listed permission is held
func (a *Authorizer) HasPermissions(ctx context.Context, perms []string, obj interface{}) (bool, error) {
	for _, p := range perms {
		granted, err := a.HasPermission(ctx, p, obj)
		if err != nil {
			return false, err
		}
		if !granted {
			return false, nil
		}
	}
	return true, nil
}

func (a *Authorizer) HasModulePermission(ctx context.Context, appLabel string) (bool, error) {
	if a.siteUser == nil {
		return a.base.HasModulePermission(ctx, appLabel)
	}
	return scoped(a, func(su *model.SiteUser) (bool, error) {
		return a.registry.HasModulePermission(ctx, su, appLabel)
	})
}
