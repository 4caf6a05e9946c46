package model

// Permission is a named capability, rendered as "app_label.codename"
type Permission struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	AppLabel string `json:"app_label" gorm:"type:varchar(100);uniqueIndex:idx_permissions_label_codename"`
	Codename string `json:"codename" gorm:"type:varchar(100);uniqueIndex:idx_permissions_label_codename"`
	Name     string `json:"name" gorm:"type:varchar(255)"`
}

func (p *Permission) String() string {
	return p.AppLabel + "." + p.Codename
}
