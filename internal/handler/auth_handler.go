package handler

import (
	"errors"
	"net/http"
	"time"

	"site-service/internal/model"
	"site-service/internal/store"
	"site-service/pkg/jwtutil"
	"site-service/pkg/logger"
	"site-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler serves registration and login
type AuthHandler struct {
	users     store.UserStore
	siteUsers store.SiteUserStore
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(users store.UserStore, siteUsers store.SiteUserStore) *AuthHandler {
	return &AuthHandler{users: users, siteUsers: siteUsers}
}

// Register handles user registration
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	user := model.User{
		Email:    req.Email,
		Password: string(hashed),
	}
	if err := h.users.CreateUser(c.Request().Context(), &user); err != nil {
		log.Error("Failed to create user", zap.Error(err))
		prometheus.RecordAuthError("registration_failed")
		return c.JSON(http.StatusConflict, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered", zap.String("email", user.Email), zap.Uint("id", user.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login authenticates a user and issues a JWT, carrying the user's active
// site when one can be determined.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		SiteID   *uint  `json:"site_id,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := c.Request().Context()

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.users.UserByEmail(ctx, req.Email)
	if err != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Pick the site context for the token: the requested site (membership
	// verified), else the user's default site.
	var siteID *uint
	var siteName string

	if req.SiteID != nil {
		su, err := h.siteUsers.SiteUserBySiteAndUser(ctx, *req.SiteID, user.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Warn("User has no access to requested site",
					zap.String("email", req.Email),
					zap.Uint("site_id", *req.SiteID))
				prometheus.RecordAuthError("site_access_denied")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied to the requested site"})
			}
			log.Error("Failed to load site user", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}
		siteID = req.SiteID
		siteName = su.Site.String()
	} else if user.DefaultSiteID != nil {
		if su, err := h.siteUsers.SiteUserBySiteAndUser(ctx, *user.DefaultSiteID, user.ID); err == nil {
			siteID = user.DefaultSiteID
			siteName = su.Site.String()
		}
	}

	var token string
	if siteID != nil {
		token, err = jwtutil.GenerateTokenWithSite(user.Email, user.ID, siteID, siteName)
	} else {
		token, err = jwtutil.GenerateToken(user.Email, user.ID)
	}
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	prometheus.IncreaseActiveSessions()

	log.Info("User logged in", zap.String("email", user.Email))

	return c.JSON(http.StatusOK, echo.Map{"token": token})
}
