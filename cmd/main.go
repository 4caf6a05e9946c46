package main

import (
	"time"

	"site-service/internal/handler"
	"site-service/internal/middleware"
	"site-service/internal/model"
	"site-service/internal/perm"
	"site-service/internal/session"
	"site-service/internal/site"
	"site-service/internal/siteuser"
	"site-service/internal/store"
	"site-service/pkg/cache"
	"site-service/pkg/config"
	"site-service/pkg/database"
	"site-service/pkg/jwtutil"
	"site-service/pkg/logger"
	"site-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables.
	// Misconfiguration (bad path patterns, unknown session backend) is fatal
	// here, never handled per request.
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting site service...", cfg.LogFields()...)

	// Initialize database
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := database.MigrateModels(
		&model.User{},
		&model.Site{},
		&model.SiteGroup{},
		&model.SiteUser{},
		&model.Permission{},
	); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Initialize Prometheus metrics
	prometheus.InitMetrics()

	// Root-path cache and session store share the redis client when the
	// redis backend is configured.
	var (
		rootPathCache cache.Cache
		sessionStore  session.Store
	)
	if cfg.Session.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rootPathCache = cache.NewRedisCache(client)
		sessionStore = session.NewRedisStore(client, cfg.Session.TTL)
		log.Info("Using redis session and cache backend", zap.String("addr", cfg.Redis.Addr))
	} else {
		rootPathCache = cache.NewMemoryCache()
		sessionStore = session.NewMemoryStore()
		log.Info("Using in-memory session and cache backend")
	}

	// Wire the core: store, site resolver, permission chain, identity resolver
	gormStore := store.NewGormStore(db)
	siteResolver := site.NewResolver(gormStore, rootPathCache, &cfg.Site)
	registry := perm.NewRegistry(perm.NewStoreProvider(gormStore))
	suResolver := siteuser.NewResolver(gormStore)

	authHandler := handler.NewAuthHandler(gormStore, gormStore)
	siteHandler := handler.NewSiteHandler(gormStore, gormStore, gormStore, siteResolver, suResolver)
	siteUserHandler := handler.NewSiteUserHandler(gormStore, gormStore)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", prometheus.Handler())

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// API routes - authenticated, site-resolved, session-bound
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)
	api.Use(session.Middleware(sessionStore, cfg.Session.CookieName, cfg.Session.TTL))
	api.Use(middleware.SiteResolution(siteResolver))
	api.Use(middleware.SiteUserResolution(gormStore, suResolver, registry, cfg.Site.SiteUserPaths))

	// Site selection - after login but before site-specific resources
	siteAuth := api.Group("/site-auth")
	siteAuth.POST("/switch", siteHandler.SwitchSite)
	siteAuth.POST("/default", siteHandler.SetDefaultSite)

	// Site management
	sites := api.Group("/sites")
	sites.POST("", siteHandler.CreateSite)
	sites.GET("", siteHandler.ListUserSites)
	sites.GET("/current", siteHandler.CurrentSite)
	sites.GET("/root-paths", siteHandler.RootPaths)
	sites.GET("/:id", siteHandler.GetSite)

	// Site membership management
	siteUsers := api.Group("/site-users")
	siteUsers.POST("", siteUserHandler.AddUserToSite)
	siteUsers.GET("/me/permissions", siteUserHandler.MyPermissions)
	siteUsers.DELETE("/:site_id/:user_id", siteUserHandler.RemoveUserFromSite)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))

	e.Server.ReadHeaderTimeout = 10 * time.Second
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
