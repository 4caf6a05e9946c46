package perm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"site-service/internal/model"
)

// Registry aggregates permission decisions across registered providers
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry over the given providers, consulted in order
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// UserPermissions unions the direct permissions of a site user across all
// providers that supply them.
func (r *Registry) UserPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error) {
	perms := make(map[string]struct{})
	for _, p := range r.providers {
		provider, ok := p.(UserPermissionProvider)
		if !ok {
			continue
		}
		set, err := provider.SiteUserPermissions(ctx, su, obj)
		if err != nil {
			return nil, err
		}
		for perm := range set {
			perms[perm] = struct{}{}
		}
	}
	return perms, nil
}

// GroupPermissions unions the group-granted permissions of a site user
func (r *Registry) GroupPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error) {
	perms := make(map[string]struct{})
	for _, p := range r.providers {
		provider, ok := p.(GroupPermissionProvider)
		if !ok {
			continue
		}
		set, err := provider.SiteGroupPermissions(ctx, su, obj)
		if err != nil {
			return nil, err
		}
		for perm := range set {
			perms[perm] = struct{}{}
		}
	}
	return perms, nil
}

// AllPermissions unions the combined permission sets of a site user
func (r *Registry) AllPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error) {
	perms := make(map[string]struct{})
	for _, p := range r.providers {
		provider, ok := p.(AllPermissionProvider)
		if !ok {
			continue
		}
		set, err := provider.SiteAllPermissions(ctx, su, obj)
		if err != nil {
			return nil, err
		}
		for perm := range set {
			perms[perm] = struct{}{}
		}
	}
	return perms, nil
}

// HasPermission reports whether the site user holds perm. Active superusers
// hold every permission. A provider returning true grants immediately; a
// provider returning ErrPermissionDenied denies immediately, overriding
// providers not yet consulted. No signal means false, never an error.
func (r *Registry) HasPermission(ctx context.Context, su *model.SiteUser, perm string, obj interface{}) (bool, error) {
	if su.IsActive && su.IsSuperuser {
		return true, nil
	}

	for _, p := range r.providers {
		checker, ok := p.(PermissionChecker)
		if !ok {
			continue
		}
		granted, err := checker.HasSitePermission(ctx, su, perm, obj)
		if errors.Is(err, ErrPermissionDenied) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}
	}
	return false, nil
}

// HasPermissions reports whether the site user holds every permission listed
func (r *Registry) HasPermissions(ctx context.Context, su *model.SiteUser, perms []string, obj interface{}) (bool, error) {
	if perms == nil {
		return false, fmt.Errorf("%w: perm list must not be nil", ErrInvalidPermissionArgument)
	}
	for _, perm := range perms {
		granted, err := r.HasPermission(ctx, su, perm, obj)
		if err != nil {
			return false, err
		}
		if !granted {
			return false, nil
		}
	}
	return true, nil
}

// HasModulePermission reports whether the site user holds any permission
// under the given app label.
func (r *Registry) HasModulePermission(ctx context.Context, su *model.SiteUser, appLabel string) (bool, error) {
	if su.IsActive && su.IsSuperuser {
		return true, nil
	}

	for _, p := range r.providers {
		provider, ok := p.(ModulePermissionProvider)
		if !ok {
			continue
		}
		granted, err := provider.HasModuleSitePermissions(ctx, su, appLabel)
		if errors.Is(err, ErrPermissionDenied) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}
	}
	return false, nil
}

// SiteUsersWithPermission returns site users holding perm via direct or group
// grant. Object-level bulk queries are not supported and return an empty
// result. A malformed perm name is reported as ErrInvalidPermissionArgument.
func (r *Registry) SiteUsersWithPermission(ctx context.Context, perm string, opts QueryOptions) ([]model.SiteUser, error) {
	appLabel, codename, err := SplitPermission(strings.TrimSpace(perm))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not of the form app_label.codename", ErrInvalidPermissionArgument, perm)
	}

	if opts.Object != nil {
		return []model.SiteUser{}, nil
	}

	seen := make(map[uint]struct{})
	var out []model.SiteUser
	for _, p := range r.providers {
		querier, ok := p.(SiteUserQuerier)
		if !ok {
			continue
		}
		sus, err := querier.QuerySiteUsersWithPermission(ctx, appLabel, codename, opts)
		if err != nil {
			return nil, err
		}
		for _, su := range sus {
			if _, dup := seen[su.ID]; dup {
				continue
			}
			seen[su.ID] = struct{}{}
			out = append(out, su)
		}
	}
	return out, nil
}
