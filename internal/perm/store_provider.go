package perm

import (
	"context"
	"strings"

	"site-service/internal/model"
	"site-service/internal/store"
)

// StoreProvider evaluates permissions from the backing store. Permission sets
// are cached on the SiteUser instance per kind; a freshly loaded instance
// re-queries, which is the only invalidation.
type StoreProvider struct {
	store store.PermissionStore
}

// NewStoreProvider creates the store-backed permission provider
func NewStoreProvider(st store.PermissionStore) *StoreProvider {
	return &StoreProvider{store: st}
}

// permissions returns the cached permission set of the given kind, loading it
// on first use. Inactive site users have no permissions. Object-scoped calls
// bypass the cache and the superuser shortcut entirely.
func (p *StoreProvider) permissions(ctx context.Context, su *model.SiteUser, kind string, obj interface{}) (map[string]struct{}, error) {
	if !su.IsActive || obj != nil {
		return map[string]struct{}{}, nil
	}

	if cached, ok := su.CachedPermissions(kind); ok {
		return cached, nil
	}

	var (
		rows []model.Permission
		err  error
	)
	if su.IsSuperuser {
		// Superusers hold every permission; skip the grant union.
		rows, err = p.store.AllPermissions(ctx)
	} else {
		switch kind {
		case model.PermCacheUser:
			rows, err = p.store.DirectPermissions(ctx, su)
		case model.PermCacheGroup:
			rows, err = p.store.GroupPermissions(ctx, su)
		}
	}
	if err != nil {
		return nil, err
	}

	perms := make(map[string]struct{}, len(rows))
	for i := range rows {
		perms[rows[i].String()] = struct{}{}
	}
	su.SetCachedPermissions(kind, perms)
	return perms, nil
}

func (p *StoreProvider) SiteUserPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error) {
	return p.permissions(ctx, su, model.PermCacheUser, obj)
}

func (p *StoreProvider) SiteGroupPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error) {
	return p.permissions(ctx, su, model.PermCacheGroup, obj)
}

func (p *StoreProvider) SiteAllPermissions(ctx context.Context, su *model.SiteUser, obj interface{}) (map[string]struct{}, error) {
	if !su.IsActive || obj != nil {
		return map[string]struct{}{}, nil
	}

	if cached, ok := su.CachedPermissions(model.PermCacheAll); ok {
		return cached, nil
	}

	userPerms, err := p.SiteUserPermissions(ctx, su, nil)
	if err != nil {
		return nil, err
	}
	groupPerms, err := p.SiteGroupPermissions(ctx, su, nil)
	if err != nil {
		return nil, err
	}

	perms := make(map[string]struct{}, len(userPerms)+len(groupPerms))
	for perm := range userPerms {
		perms[perm] = struct{}{}
	}
	for perm := range groupPerms {
		perms[perm] = struct{}{}
	}
	su.SetCachedPermissions(model.PermCacheAll, perms)
	return perms, nil
}

func (p *StoreProvider) HasSitePermission(ctx context.Context, su *model.SiteUser, perm string, obj interface{}) (bool, error) {
	if !su.IsActive {
		return false, nil
	}
	perms, err := p.SiteAllPermissions(ctx, su, obj)
	if err != nil {
		return false, err
	}
	_, ok := perms[perm]
	return ok, nil
}

func (p *StoreProvider) HasModuleSitePermissions(ctx context.Context, su *model.SiteUser, appLabel string) (bool, error) {
	if !su.IsActive {
		return false, nil
	}
	perms, err := p.SiteAllPermissions(ctx, su, nil)
	if err != nil {
		return false, err
	}
	prefix := appLabel + "."
	for perm := range perms {
		if strings.HasPrefix(perm, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (p *StoreProvider) QuerySiteUsersWithPermission(ctx context.Context, appLabel, codename string, opts QueryOptions) ([]model.SiteUser, error) {
	return p.store.SiteUsersWithPermission(ctx, appLabel, codename, opts.IsActive, opts.IncludeSuperusers)
}
