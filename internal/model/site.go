package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Site represents a logical site (tenant) identified by hostname and port.
// The (hostname, port) pair is unique across the deployment.
type Site struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Hostname string `json:"hostname" gorm:"type:varchar(255);index;uniqueIndex:idx_sites_hostname_port"`
	Port     int    `json:"port" gorm:"default:80;uniqueIndex:idx_sites_hostname_port"`
	SiteName string `json:"site_name" gorm:"type:varchar(255)"`
	// RootPath is the internal URL path of the site's content root,
	// e.g. "/home/". Root-path derivation expands it per language when
	// localization is enabled.
	RootPath  string         `json:"root_path" gorm:"type:varchar(255);default:'/'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeSave normalizes the hostname so comparisons are case-insensitive
func (s *Site) BeforeSave(tx *gorm.DB) error {
	s.Hostname = strings.ToLower(s.Hostname)
	return nil
}

// RootURL returns the public base URL of the site
func (s *Site) RootURL() string {
	switch s.Port {
	case 80:
		return "http://" + s.Hostname
	case 443:
		return "https://" + s.Hostname
	default:
		return fmt.Sprintf("http://%s:%d", s.Hostname, s.Port)
	}
}

func (s *Site) String() string {
	if s.SiteName != "" {
		return s.SiteName
	}
	if s.Port == 80 {
		return s.Hostname
	}
	return fmt.Sprintf("%s:%d", s.Hostname, s.Port)
}
