package model

import (
	"time"

	"gorm.io/gorm"
)

// Permission cache kinds stored on a SiteUser instance.
const (
	PermCacheUser  = "user"
	PermCacheGroup = "group"
	PermCacheAll   = "all"
)

// SiteUser associates a user account with one site and carries the user's
// permission state within that site. A user holds at most one SiteUser per
// site but may hold SiteUsers in many sites.
type SiteUser struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	SiteID      uint           `json:"site_id" gorm:"not null;uniqueIndex:idx_site_users_site_user"`
	UserID      uint           `json:"user_id" gorm:"not null;uniqueIndex:idx_site_users_site_user"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	IsSuperuser bool           `json:"is_superuser" gorm:"default:false"`
	Groups      []SiteGroup    `json:"groups,omitempty" gorm:"many2many:site_user_groups"`
	Permissions []Permission   `json:"permissions,omitempty" gorm:"many2many:site_user_permissions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Site Site `json:"site,omitempty" gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
	User User `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	// Per-kind permission caches, valid for the lifetime of this instance.
	// Never invalidated in place: a fresh load is the invalidation.
	permCaches map[string]map[string]struct{} `gorm:"-"`
}

// CachedPermissions returns the cached permission set for a kind
// ("user", "group" or "all"), if one has been stored on this instance.
func (su *SiteUser) CachedPermissions(kind string) (map[string]struct{}, bool) {
	perms, ok := su.permCaches[kind]
	return perms, ok
}

// SetCachedPermissions stores a permission set for a kind on this instance
func (su *SiteUser) SetCachedPermissions(kind string, perms map[string]struct{}) {
	if su.permCaches == nil {
		su.permCaches = make(map[string]map[string]struct{}, 3)
	}
	su.permCaches[kind] = perms
}
