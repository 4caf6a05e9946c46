package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"site-service/internal/model"
	"site-service/internal/session"
	"site-service/internal/site"
	"site-service/internal/siteuser"
	"site-service/internal/store"
	"site-service/pkg/logger"
	"site-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SiteHandler serves site CRUD, selection and root-path lookups
type SiteHandler struct {
	sites      store.SiteStore
	siteUsers  store.SiteUserStore
	users      store.UserStore
	resolver   *site.Resolver
	suResolver *siteuser.Resolver
}

// NewSiteHandler creates a SiteHandler
func NewSiteHandler(sites store.SiteStore, siteUsers store.SiteUserStore, users store.UserStore, resolver *site.Resolver, suResolver *siteuser.Resolver) *SiteHandler {
	return &SiteHandler{
		sites:      sites,
		siteUsers:  siteUsers,
		users:      users,
		resolver:   resolver,
		suResolver: suResolver,
	}
}

// CreateSite creates a site together with its first site user (the creator,
// as an active superuser) in one transaction, then invalidates root paths.
func (h *SiteHandler) CreateSite(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSiteOperation("create")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		log.Error("Failed to get user ID from context")
		prometheus.RecordAuthError("unauthorized_site_creation")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Hostname string `json:"hostname"`
		Port     int    `json:"port,omitempty"`
		SiteName string `json:"site_name,omitempty"`
		RootPath string `json:"root_path,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse site creation request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Hostname == "" {
		prometheus.RecordAuthError("incomplete_site_creation")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hostname is required"})
	}
	if req.Port == 0 {
		req.Port = 80
	}
	if req.RootPath == "" {
		req.RootPath = "/"
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	newSite := model.Site{
		Hostname: req.Hostname,
		Port:     req.Port,
		SiteName: req.SiteName,
		RootPath: req.RootPath,
	}

	ctx := c.Request().Context()
	siteUser, err := h.sites.CreateSiteWithCreator(ctx, &newSite, userID)
	if err != nil {
		log.Error("Failed to create site", zap.Error(err))
		prometheus.RecordAuthError("site_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "site creation failed"})
	}

	// Structural change: cached root paths are stale from here on.
	if err := h.resolver.ClearRootPathsCache(ctx); err != nil {
		log.Error("Failed to clear root paths cache", zap.Error(err))
	}

	log.Info("Site created",
		zap.String("hostname", newSite.Hostname),
		zap.Int("port", newSite.Port),
		zap.Uint("id", newSite.ID),
		zap.Uint("creator_site_user_id", siteUser.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message":   "Site created successfully",
		"site":      newSite,
		"site_user": siteUser,
	})
}

// GetSite retrieves site details, restricted to members
func (h *SiteHandler) GetSite(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSiteOperation("access")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		prometheus.RecordAuthError("unauthorized_site_access")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		prometheus.RecordAuthError("invalid_site_id")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid site ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	ctx := c.Request().Context()

	requested, err := h.sites.SiteByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			prometheus.RecordAuthError("site_not_found")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "site not found"})
		}
		log.Error("Failed to load site", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "site lookup failed"})
	}

	if _, err := h.siteUsers.SiteUserBySiteAndUser(ctx, requested.ID, userID); err != nil {
		log.Warn("Unauthorized site access attempt",
			zap.Uint("requesting_user_id", userID),
			zap.Uint("site_id", requested.ID))
		prometheus.RecordAuthError("site_access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	return c.JSON(http.StatusOK, requested)
}

// ListUserSites retrieves all sites the authenticated user belongs to
func (h *SiteHandler) ListUserSites(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSiteOperation("list")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		prometheus.RecordAuthError("unauthorized_site_listing")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	siteUsers, err := h.siteUsers.SiteUsersForUser(c.Request().Context(), userID)
	if err != nil {
		log.Error("Failed to retrieve user's sites", zap.Error(err))
		prometheus.RecordAuthError("site_retrieval_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve sites"})
	}

	type SiteResponse struct {
		ID          uint      `json:"id"`
		Hostname    string    `json:"hostname"`
		Port        int       `json:"port"`
		SiteName    string    `json:"site_name"`
		IsActive    bool      `json:"is_active"`
		IsSuperuser bool      `json:"is_superuser"`
		CreatedAt   time.Time `json:"created_at"`
	}

	response := make([]SiteResponse, 0, len(siteUsers))
	for _, su := range siteUsers {
		response = append(response, SiteResponse{
			ID:          su.SiteID,
			Hostname:    su.Site.Hostname,
			Port:        su.Site.Port,
			SiteName:    su.Site.SiteName,
			IsActive:    su.IsActive,
			IsSuperuser: su.IsSuperuser,
			CreatedAt:   su.Site.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, response)
}

// SwitchSite changes the session's active site after validating membership.
// A failed switch leaves the previous session state untouched.
func (h *SiteHandler) SwitchSite(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSiteOperation("switch")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		prometheus.RecordAuthError("unauthorized_site_switch")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	sess, ok := session.FromEcho(c)
	if !ok {
		log.Error("No session bound to request")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session unavailable"})
	}

	var req struct {
		SiteID uint `json:"site_id"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.SiteID == 0 {
		prometheus.RecordAuthError("invalid_site_id")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "site_id is required"})
	}

	ctx := c.Request().Context()
	user, err := h.users.UserByID(ctx, userID)
	if err != nil {
		log.Error("Failed to load user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "user lookup failed"})
	}

	su, err := h.suResolver.Switch(ctx, user, sess, req.SiteID)
	if err != nil {
		if errors.Is(err, siteuser.ErrSiteUserNotFound) {
			log.Warn("Unauthorized site switch attempt",
				zap.Uint("user_id", userID),
				zap.Uint("site_id", req.SiteID))
			prometheus.RecordAuthError("site_access_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "no access to that site"})
		}
		log.Error("Failed to switch site", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "site switch failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Active site switched",
		"site": echo.Map{
			"id":           su.SiteID,
			"hostname":     su.Site.Hostname,
			"port":         su.Site.Port,
			"site_name":    su.Site.SiteName,
			"is_superuser": su.IsSuperuser,
		},
	})
}

// SetDefaultSite records a site as the user's default
func (h *SiteHandler) SetDefaultSite(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSiteOperation("set_default")

	userID, ok := c.Get("user_id").(uint)
	if !ok {
		prometheus.RecordAuthError("unauthorized_default_site_set")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		SiteID uint `json:"site_id"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.SiteID == 0 {
		prometheus.RecordAuthError("invalid_site_id")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "site_id is required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	ctx := c.Request().Context()
	user, err := h.users.UserByID(ctx, userID)
	if err != nil {
		log.Error("Failed to load user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "user lookup failed"})
	}

	if err := h.suResolver.SetDefault(ctx, user, req.SiteID); err != nil {
		if errors.Is(err, siteuser.ErrSiteUserNotFound) {
			log.Warn("Unauthorized default site set attempt",
				zap.Uint("user_id", userID),
				zap.Uint("site_id", req.SiteID))
			prometheus.RecordAuthError("site_access_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "no access to that site"})
		}
		log.Error("Failed to set default site", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to set default site"})
	}

	log.Info("Set default site for user",
		zap.Uint("user_id", userID),
		zap.Uint("site_id", req.SiteID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Default site set successfully",
		"site_id": req.SiteID,
	})
}

// RootPaths returns the derived root paths of every site, cache-backed
func (h *SiteHandler) RootPaths(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSiteOperation("root_paths")

	paths, err := h.resolver.RootPaths(c.Request().Context())
	if err != nil {
		log.Error("Failed to compute root paths", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute root paths"})
	}

	return c.JSON(http.StatusOK, paths)
}

// CurrentSite returns the site resolved for this request
func (h *SiteHandler) CurrentSite(c echo.Context) error {
	resolved, ok := site.FromEcho(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no site resolved for this request"})
	}
	return c.JSON(http.StatusOK, resolved)
}
