package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"site-service/internal/middleware"
	"site-service/internal/model"
	"site-service/internal/store"
	"site-service/pkg/logger"
	"site-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SiteUserHandler manages site memberships
type SiteUserHandler struct {
	users     store.UserStore
	siteUsers store.SiteUserStore
}

// NewSiteUserHandler creates a SiteUserHandler
func NewSiteUserHandler(users store.UserStore, siteUsers store.SiteUserStore) *SiteUserHandler {
	return &SiteUserHandler{users: users, siteUsers: siteUsers}
}

// requireSuperuser loads the acting user's membership for a site and checks
// the superuser flag.
func (h *SiteUserHandler) requireSuperuser(c echo.Context, siteID, userID uint) (*model.SiteUser, bool) {
	su, err := h.siteUsers.SiteUserBySiteAndUser(c.Request().Context(), siteID, userID)
	if err != nil || !su.IsActive || !su.IsSuperuser {
		return nil, false
	}
	return su, true
}

// AddUserToSite grants a user membership in a site. Requires an active
// superuser membership in that site. Granting to an existing member updates
// the superuser flag instead.
func (h *SiteUserHandler) AddUserToSite(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSiteOperation("add_user")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		prometheus.RecordAuthError("unauthorized_site_user_add")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		SiteID      uint   `json:"site_id"`
		UserEmail   string `json:"user_email"`
		IsSuperuser bool   `json:"is_superuser,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.SiteID == 0 || req.UserEmail == "" {
		prometheus.RecordAuthError("incomplete_site_user_add")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "site_id and user_email are required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	ctx := c.Request().Context()

	if _, ok := h.requireSuperuser(c, req.SiteID, userID); !ok {
		log.Warn("Unauthorized attempt to add user to site",
			zap.Uint("requesting_user_id", userID),
			zap.Uint("site_id", req.SiteID))
		prometheus.RecordAuthError("site_permission_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
	}

	user, err := h.users.UserByEmail(ctx, req.UserEmail)
	if err != nil {
		log.Warn("User not found", zap.String("email", req.UserEmail))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	existing, err := h.siteUsers.SiteUserBySiteAndUser(ctx, req.SiteID, user.ID)
	if err == nil {
		if existing.IsSuperuser != req.IsSuperuser {
			existing.IsSuperuser = req.IsSuperuser
			if err := h.siteUsers.UpdateSiteUser(ctx, existing); err != nil {
				log.Error("Failed to update site user", zap.Error(err))
				prometheus.RecordAuthError("site_user_update_failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update site user"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message":   "Site user updated",
			"site_user": existing,
		})
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("Failed to check existing membership", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "membership lookup failed"})
	}

	newSiteUser := model.SiteUser{
		SiteID:      req.SiteID,
		UserID:      user.ID,
		IsActive:    true,
		IsSuperuser: req.IsSuperuser,
	}
	if err := h.siteUsers.CreateSiteUser(ctx, &newSiteUser); err != nil {
		log.Error("Failed to add user to site", zap.Error(err))
		prometheus.RecordAuthError("site_user_add_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add user to site"})
	}

	log.Info("Added user to site",
		zap.Uint("site_id", req.SiteID),
		zap.String("user_email", req.UserEmail),
		zap.Bool("is_superuser", req.IsSuperuser))

	return c.JSON(http.StatusCreated, echo.Map{
		"message":   "User added to site successfully",
		"site_user": newSiteUser,
	})
}

// RemoveUserFromSite revokes a user's membership. Requires an active
// superuser membership in the site; the last active superuser cannot be
// removed.
func (h *SiteUserHandler) RemoveUserFromSite(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSiteOperation("remove_user")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		prometheus.RecordAuthError("unauthorized_site_user_remove")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	siteID, err := strconv.ParseUint(c.Param("site_id"), 10, 32)
	if err != nil {
		prometheus.RecordAuthError("invalid_site_id")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid site ID"})
	}
	targetUserID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		prometheus.RecordAuthError("invalid_user_id")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	ctx := c.Request().Context()

	if _, ok := h.requireSuperuser(c, uint(siteID), userID); !ok {
		log.Warn("Unauthorized attempt to remove user from site",
			zap.Uint("requesting_user_id", userID),
			zap.Uint64("site_id", siteID))
		prometheus.RecordAuthError("site_permission_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
	}

	target, err := h.siteUsers.SiteUserBySiteAndUser(ctx, uint(siteID), uint(targetUserID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found in this site"})
		}
		log.Error("Failed to load site user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "membership lookup failed"})
	}

	if target.IsActive && target.IsSuperuser {
		count, err := h.siteUsers.CountSuperusers(ctx, uint(siteID))
		if err != nil {
			log.Error("Failed to count superusers", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "membership lookup failed"})
		}
		if count <= 1 {
			log.Warn("Attempted to remove the last superuser",
				zap.Uint64("site_id", siteID),
				zap.Uint64("user_id", targetUserID))
			prometheus.RecordAuthError("last_superuser_removal_blocked")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot remove the last superuser"})
		}
	}

	if err := h.siteUsers.DeleteSiteUser(ctx, uint(siteID), uint(targetUserID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found in this site"})
		}
		log.Error("Failed to remove user from site", zap.Error(err))
		prometheus.RecordAuthError("site_user_remove_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove user from site"})
	}

	// Repoint the removed user's default site if it referenced this one.
	if removedUser, err := h.users.UserByID(ctx, uint(targetUserID)); err == nil {
		if removedUser.DefaultSiteID != nil && *removedUser.DefaultSiteID == uint(siteID) {
			if latest, err := h.siteUsers.LatestSiteUserForUser(ctx, uint(targetUserID)); err == nil {
				_ = h.siteUsers.SetDefaultSite(ctx, uint(targetUserID), latest.SiteID)
			} else {
				_ = h.siteUsers.ClearDefaultSite(ctx, uint(targetUserID))
			}
		}
	}

	log.Info("Removed user from site",
		zap.Uint64("site_id", siteID),
		zap.Uint64("user_id", targetUserID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "User removed from site successfully",
	})
}

// MyPermissions returns the permission set of the request's site-scoped
// identity through the compatibility surface, so it behaves whether or not
// an identity is attached.
func (h *SiteUserHandler) MyPermissions(c echo.Context) error {
	log := logger.FromEcho(c)

	authorizer, ok := middleware.AuthorizerFromEcho(c)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "no permission surface bound to request"})
	}

	perms, err := authorizer.AllPermissions(c.Request().Context(), nil)
	if err != nil {
		log.Error("Failed to load permissions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load permissions"})
	}

	names := make([]string, 0, len(perms))
	for p := range perms {
		names = append(names, p)
	}
	sort.Strings(names)

	response := echo.Map{"permissions": names}
	if su, attached := authorizer.SiteUser(); attached {
		response["site_id"] = su.SiteID
		response["is_superuser"] = su.IsSuperuser
	}

	return c.JSON(http.StatusOK, response)
}
