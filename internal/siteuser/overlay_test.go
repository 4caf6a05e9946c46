package siteuser

import (
	"context"
	"testing"

	"site-service/internal/model"
	"site-service/internal/perm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPermStore serves fixed permissions and counts queries.
type countingPermStore struct {
	direct []model.Permission
	group  []model.Permission
	all    []model.Permission

	directCalls int
	groupCalls  int
}

func (c *countingPermStore) DirectPermissions(ctx context.Context, su *model.SiteUser) ([]model.Permission, error) {
	c.directCalls++
	return c.direct, nil
}

func (c *countingPermStore) GroupPermissions(ctx context.Context, su *model.SiteUser) ([]model.Permission, error) {
	c.groupCalls++
	return c.group, nil
}

func (c *countingPermStore) AllPermissions(ctx context.Context) ([]model.Permission, error) {
	return c.all, nil
}

func (c *countingPermStore) SiteUsersWithPermission(ctx context.Context, appLabel, codename string, isActive *bool, includeSuperusers bool) ([]model.SiteUser, error) {
	return nil, nil
}

// staticBase is a legacy permission surface granting a fixed set.
type staticBase struct {
	granted map[string]struct{}
}

func (b staticBase) Permissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	return b.granted, nil
}

func (b staticBase) GroupPermissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (b staticBase) AllPermissions(ctx context.Context, obj interface{}) (map[string]struct{}, error) {
	return b.granted, nil
}

func (b staticBase) HasPermission(ctx context.Context, permName string, obj interface{}) (bool, error) {
	_, ok := b.granted[permName]
	return ok, nil
}

func (b staticBase) HasModulePermission(ctx context.Context, appLabel string) (bool, error) {
	return false, nil
}

func grantSet(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func newTestAuthorizer(st *countingPermStore, su *model.SiteUser) *Authorizer {
	registry := perm.NewRegistry(perm.NewStoreProvider(st))
	return NewAuthorizer(staticBase{granted: grantSet("legacy.thing")}, registry, su)
}

func TestAuthorizerFallsBackToBase(t *testing.T) {
	authorizer := newTestAuthorizer(&countingPermStore{}, nil)
	ctx := context.Background()

	granted, err := authorizer.HasPermission(ctx, "legacy.thing", nil)
	require.NoError(t, err)
	assert.True(t, granted)

	all, err := authorizer.AllPermissions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, grantSet("legacy.thing"), all)

	_, attached := authorizer.SiteUser()
	assert.False(t, attached)
}

func TestAuthorizerNilBaseDeniesAll(t *testing.T) {
	registry := perm.NewRegistry()
	authorizer := NewAuthorizer(nil, registry, nil)

	granted, err := authorizer.HasPermission(context.Background(), "legacy.thing", nil)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestAuthorizerDelegatesToSiteScope(t *testing.T) {
	st := &countingPermStore{
		direct: []model.Permission{{AppLabel: "pages", Codename: "edit"}},
	}
	su := &model.SiteUser{ID: 1, SiteID: 10, UserID: 1, IsActive: true}
	authorizer := newTestAuthorizer(st, su)
	ctx := context.Background()

	// The base would grant legacy.thing, but an attached identity means the
	// site-scoped evaluation decides.
	granted, err := authorizer.HasPermission(ctx, "legacy.thing", nil)
	require.NoError(t, err)
	assert.False(t, granted)

	granted, err = authorizer.HasPermission(ctx, "pages.edit", nil)
	require.NoError(t, err)
	assert.True(t, granted)

	ok, err := authorizer.HasPermissions(ctx, []string{"pages.edit", "legacy.thing"}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	granted, err = authorizer.HasModulePermission(ctx, "pages")
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestAuthorizerCachesAcrossAttach(t *testing.T) {
	st := &countingPermStore{
		direct: []model.Permission{{AppLabel: "pages", Codename: "edit"}},
	}
	su := &model.SiteUser{ID: 1, SiteID: 10, UserID: 1, IsActive: true}
	authorizer := newTestAuthorizer(st, su)
	ctx := context.Background()

	_, err := authorizer.AllPermissions(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, st.directCalls)
	require.Equal(t, 1, st.groupCalls)

	// A freshly loaded instance of the same identity inherits the mirrored
	// caches instead of re-querying.
	fresh := &model.SiteUser{ID: 1, SiteID: 10, UserID: 1, IsActive: true}
	authorizer.Attach(fresh)

	all, err := authorizer.AllPermissions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, grantSet("pages.edit"), all)
	assert.Equal(t, 1, st.directCalls)
	assert.Equal(t, 1, st.groupCalls)

	granted, err := authorizer.HasPermission(ctx, "pages.edit", nil)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 1, st.directCalls)
}
