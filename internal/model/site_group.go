package model

import (
	"time"

	"gorm.io/gorm"
)

// SiteGroup buckets site users to apply permissions to them as a set.
// Group names are unique within a site, not globally.
type SiteGroup struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(150);uniqueIndex:idx_site_groups_name_site"`
	SiteID      uint           `json:"site_id" gorm:"not null;uniqueIndex:idx_site_groups_name_site"`
	Permissions []Permission   `json:"permissions,omitempty" gorm:"many2many:site_group_permissions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Site Site `json:"site,omitempty" gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
}

func (g *SiteGroup) String() string {
	return g.Name
}
