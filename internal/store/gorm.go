package store

import (
	"context"
	"errors"
	"strings"

	"site-service/internal/model"

	"gorm.io/gorm"
)

// GormStore implements the store interfaces on top of gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a gorm-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) SitesByHostname(ctx context.Context, hostname string) ([]model.Site, error) {
	var sites []model.Site
	result := s.db.WithContext(ctx).
		Where("hostname = ?", strings.ToLower(hostname)).
		Order("id").
		Find(&sites)
	if result.Error != nil {
		return nil, result.Error
	}
	return sites, nil
}

func (s *GormStore) AllSites(ctx context.Context) ([]model.Site, error) {
	var sites []model.Site
	if result := s.db.WithContext(ctx).Order("id").Find(&sites); result.Error != nil {
		return nil, result.Error
	}
	return sites, nil
}

func (s *GormStore) SiteByID(ctx context.Context, id uint) (*model.Site, error) {
	var site model.Site
	result := s.db.WithContext(ctx).First(&site, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &site, nil
}

func (s *GormStore) CreateSiteWithCreator(ctx context.Context, site *model.Site, creatorUserID uint) (*model.SiteUser, error) {
	var siteUser *model.SiteUser

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(site); result.Error != nil {
			return result.Error
		}

		siteUser = &model.SiteUser{
			SiteID:      site.ID,
			UserID:      creatorUserID,
			IsActive:    true,
			IsSuperuser: true,
		}
		if result := tx.Create(siteUser); result.Error != nil {
			return result.Error
		}

		return tx.Model(&model.User{}).
			Where("id = ?", creatorUserID).
			Update("default_site_id", site.ID).Error
	})
	if err != nil {
		return nil, err
	}

	siteUser.Site = *site
	return siteUser, nil
}

func (s *GormStore) UpdateSite(ctx context.Context, site *model.Site) error {
	return s.db.WithContext(ctx).Save(site).Error
}

func (s *GormStore) DeleteSite(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", id).Delete(&model.SiteUser{}).Error; err != nil {
			return err
		}
		if err := tx.Where("site_id = ?", id).Delete(&model.SiteGroup{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Site{}, id).Error
	})
}

func (s *GormStore) SiteUserBySiteAndUser(ctx context.Context, siteID, userID uint) (*model.SiteUser, error) {
	var su model.SiteUser
	result := s.db.WithContext(ctx).
		Preload("Site").
		Where("site_id = ? AND user_id = ?", siteID, userID).
		First(&su)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &su, nil
}

func (s *GormStore) LatestSiteUserForUser(ctx context.Context, userID uint) (*model.SiteUser, error) {
	var su model.SiteUser
	result := s.db.WithContext(ctx).
		Preload("Site").
		Where("user_id = ?", userID).
		Order("id DESC").
		First(&su)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &su, nil
}

func (s *GormStore) SiteUsersForUser(ctx context.Context, userID uint) ([]model.SiteUser, error) {
	var sus []model.SiteUser
	result := s.db.WithContext(ctx).
		Preload("Site").
		Where("user_id = ?", userID).
		Order("id").
		Find(&sus)
	if result.Error != nil {
		return nil, result.Error
	}
	return sus, nil
}

func (s *GormStore) CreateSiteUser(ctx context.Context, su *model.SiteUser) error {
	return s.db.WithContext(ctx).Create(su).Error
}

func (s *GormStore) UpdateSiteUser(ctx context.Context, su *model.SiteUser) error {
	return s.db.WithContext(ctx).Save(su).Error
}

func (s *GormStore) DeleteSiteUser(ctx context.Context, siteID, userID uint) error {
	result := s.db.WithContext(ctx).
		Where("site_id = ? AND user_id = ?", siteID, userID).
		Delete(&model.SiteUser{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CountSuperusers(ctx context.Context, siteID uint) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).
		Model(&model.SiteUser{}).
		Where("site_id = ? AND is_superuser = ? AND is_active = ?", siteID, true, true).
		Count(&count)
	return count, result.Error
}

func (s *GormStore) SetDefaultSite(ctx context.Context, userID, siteID uint) error {
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("default_site_id", siteID).Error
}

func (s *GormStore) ClearDefaultSite(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("default_site_id", nil).Error
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	result := s.db.WithContext(ctx).Where("email = ?", email).First(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

func (s *GormStore) UserByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	result := s.db.WithContext(ctx).First(&user, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *GormStore) DirectPermissions(ctx context.Context, su *model.SiteUser) ([]model.Permission, error) {
	var perms []model.Permission
	err := s.db.WithContext(ctx).
		Joins("JOIN site_user_permissions sup ON sup.permission_id = permissions.id").
		Where("sup.site_user_id = ?", su.ID).
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *GormStore) GroupPermissions(ctx context.Context, su *model.SiteUser) ([]model.Permission, error) {
	var perms []model.Permission
	err := s.db.WithContext(ctx).
		Distinct("permissions.*").
		Joins("JOIN site_group_permissions sgp ON sgp.permission_id = permissions.id").
		Joins("JOIN site_user_groups sug ON sug.site_group_id = sgp.site_group_id").
		Where("sug.site_user_id = ?", su.ID).
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *GormStore) AllPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := s.db.WithContext(ctx).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *GormStore) SiteUsersWithPermission(ctx context.Context, appLabel, codename string, isActive *bool, includeSuperusers bool) ([]model.SiteUser, error) {
	holders := s.db.WithContext(ctx).
		Model(&model.SiteUser{}).
		Select("site_users.id").
		Joins("LEFT JOIN site_user_permissions sup ON sup.site_user_id = site_users.id").
		Joins("LEFT JOIN site_user_groups sug ON sug.site_user_id = site_users.id").
		Joins("LEFT JOIN site_group_permissions sgp ON sgp.site_group_id = sug.site_group_id").
		Joins("LEFT JOIN permissions dp ON dp.id = sup.permission_id").
		Joins("LEFT JOIN permissions gp ON gp.id = sgp.permission_id").
		Where(
			s.db.Where("dp.app_label = ? AND dp.codename = ?", appLabel, codename).
				Or("gp.app_label = ? AND gp.codename = ?", appLabel, codename),
		)

	query := s.db.WithContext(ctx).Model(&model.SiteUser{})
	if includeSuperusers {
		query = query.Where(
			s.db.Where("site_users.id IN (?)", holders).Or("is_superuser = ?", true),
		)
	} else {
		query = query.Where("site_users.id IN (?)", holders)
	}
	if isActive != nil {
		query = query.Where("is_active = ?", *isActive)
	}

	var sus []model.SiteUser
	if err := query.Distinct().Order("site_users.id").Find(&sus).Error; err != nil {
		return nil, err
	}
	return sus, nil
}
