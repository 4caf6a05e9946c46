package perm

import (
	"context"
	"testing"

	"site-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePermissionStore counts queries so tests can assert cache behavior.
type fakePermissionStore struct {
	direct []model.Permission
	group  []model.Permission
	all    []model.Permission

	directCalls int
	groupCalls  int
	allCalls    int

	queried []model.SiteUser
}

func (f *fakePermissionStore) DirectPermissions(ctx context.Context, su *model.SiteUser) ([]model.Permission, error) {
	f.directCalls++
	return f.direct, nil
}

func (f *fakePermissionStore) GroupPermissions(ctx context.Context, su *model.SiteUser) ([]model.Permission, error) {
	f.groupCalls++
	return f.group, nil
}

func (f *fakePermissionStore) AllPermissions(ctx context.Context) ([]model.Permission, error) {
	f.allCalls++
	return f.all, nil
}

func (f *fakePermissionStore) SiteUsersWithPermission(ctx context.Context, appLabel, codename string, isActive *bool, includeSuperusers bool) ([]model.SiteUser, error) {
	return f.queried, nil
}

func mkPerm(appLabel, codename string) model.Permission {
	return model.Permission{AppLabel: appLabel, Codename: codename}
}

func TestStoreProviderCachesPerInstance(t *testing.T) {
	st := &fakePermissionStore{
		direct: []model.Permission{mkPerm("pages", "edit")},
		group:  []model.Permission{mkPerm("pages", "publish")},
	}
	provider := NewStoreProvider(st)
	su := &model.SiteUser{ID: 1, IsActive: true}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := provider.SiteAllPermissions(ctx, su, nil)
		require.NoError(t, err)
		assert.Equal(t, perms("pages.edit", "pages.publish"), got)
	}
	assert.Equal(t, 1, st.directCalls)
	assert.Equal(t, 1, st.groupCalls)

	// The cache lives on the instance; a freshly loaded SiteUser re-queries.
	fresh := &model.SiteUser{ID: 1, IsActive: true}
	_, err := provider.SiteAllPermissions(ctx, fresh, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, st.directCalls)
	assert.Equal(t, 2, st.groupCalls)
}

func TestStoreProviderSuperuserGetsEveryPermission(t *testing.T) {
	st := &fakePermissionStore{
		all: []model.Permission{mkPerm("pages", "edit"), mkPerm("docs", "view")},
	}
	provider := NewStoreProvider(st)
	su := &model.SiteUser{ID: 1, IsActive: true, IsSuperuser: true}
	ctx := context.Background()

	got, err := provider.SiteUserPermissions(ctx, su, nil)
	require.NoError(t, err)
	assert.Equal(t, perms("pages.edit", "docs.view"), got)
	assert.Equal(t, 0, st.directCalls, "superuser must not consult grants")
}

func TestStoreProviderInactiveHasNothing(t *testing.T) {
	st := &fakePermissionStore{
		direct: []model.Permission{mkPerm("pages", "edit")},
	}
	provider := NewStoreProvider(st)
	su := &model.SiteUser{ID: 1, IsActive: false, IsSuperuser: true}
	ctx := context.Background()

	got, err := provider.SiteAllPermissions(ctx, su, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	granted, err := provider.HasSitePermission(ctx, su, "pages.edit", nil)
	require.NoError(t, err)
	assert.False(t, granted)

	assert.Equal(t, 0, st.directCalls)
	assert.Equal(t, 0, st.allCalls)
}

func TestStoreProviderObjectScopedBypassesCache(t *testing.T) {
	st := &fakePermissionStore{
		direct: []model.Permission{mkPerm("pages", "edit")},
	}
	provider := NewStoreProvider(st)
	su := &model.SiteUser{ID: 1, IsActive: true}
	ctx := context.Background()

	got, err := provider.SiteUserPermissions(ctx, su, struct{}{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, st.directCalls)

	// The empty object-scoped result must not have been cached.
	got, err = provider.SiteUserPermissions(ctx, su, nil)
	require.NoError(t, err)
	assert.Equal(t, perms("pages.edit"), got)
}

func TestStoreProviderHasSitePermission(t *testing.T) {
	st := &fakePermissionStore{
		direct: []model.Permission{mkPerm("pages", "edit")},
		group:  []model.Permission{mkPerm("pages", "publish")},
	}
	provider := NewStoreProvider(st)
	su := &model.SiteUser{ID: 1, IsActive: true}
	ctx := context.Background()

	granted, err := provider.HasSitePermission(ctx, su, "pages.publish", nil)
	require.NoError(t, err)
	assert.True(t, granted, "group grants must count")

	granted, err = provider.HasSitePermission(ctx, su, "pages.delete", nil)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestStoreProviderHasModuleSitePermissions(t *testing.T) {
	st := &fakePermissionStore{
		direct: []model.Permission{mkPerm("pages", "edit")},
	}
	provider := NewStoreProvider(st)
	su := &model.SiteUser{ID: 1, IsActive: true}
	ctx := context.Background()

	granted, err := provider.HasModuleSitePermissions(ctx, su, "pages")
	require.NoError(t, err)
	assert.True(t, granted)

	// Prefix matching is on the app label, not a raw string prefix.
	granted, err = provider.HasModuleSitePermissions(ctx, su, "page")
	require.NoError(t, err)
	assert.False(t, granted)

	granted, err = provider.HasModuleSitePermissions(ctx, su, "docs")
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestSplitPermission(t *testing.T) {
	appLabel, codename, err := SplitPermission("pages.edit")
	require.NoError(t, err)
	assert.Equal(t, "pages", appLabel)
	assert.Equal(t, "edit", codename)

	// Only the first dot separates; codenames may contain dots.
	appLabel, codename, err = SplitPermission("pages.edit.live")
	require.NoError(t, err)
	assert.Equal(t, "pages", appLabel)
	assert.Equal(t, "edit.live", codename)

	for _, malformed := range []string{"", "pagesedit", ".edit", "pages."} {
		_, _, err := SplitPermission(malformed)
		assert.Error(t, err, "perm %q", malformed)
	}
}
