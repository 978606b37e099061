package main

import (
  "context"
  "fmt"
  "os"
  "time"

  "github.com/conservaproj/conserva-backend/internal/cache"
  "github.com/conservaproj/conserva-backend/internal/config"
  "github.com/conservaproj/conserva-backend/internal/db"
  "github.com/conservaproj/conserva-backend/internal/forecast"
  "github.com/conservaproj/conserva-backend/internal/handlers"
  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/middleware"
  "github.com/conservaproj/conserva-backend/internal/observability"
  "github.com/conservaproj/conserva-backend/internal/repos"
  "github.com/conservaproj/conserva-backend/internal/server"
  "github.com/conservaproj/conserva-backend/internal/services"
  "github.com/conservaproj/conserva-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Config
  log.Info("Loading configuration from main...")
  cfg, err := config.Load(os.Getenv("CONFIG_PATH"), log)
  if err != nil {
    log.Error("Could not load configuration", "error", err)
    os.Exit(1)
  }
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

  // Tracing
  otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "conserva-backend",
    Environment: os.Getenv("DEPLOY_ENV"),
    Version:     os.Getenv("SERVICE_VERSION"),
  })
  if otelShutdown != nil {
    defer func() {
      ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
      defer cancel()
      if err := otelShutdown(ctx); err != nil {
        log.Warn("otel shutdown failed", "error", err)
      }
    }()
  }

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Cache
  log.Info("Setting up project cache from main...")
  var projectCache cache.ProjectCache
  if cfg.Cache.RedisAddr != "" {
    projectCache, err = cache.NewRedisProjectCache(log, cfg.Cache.RedisAddr, cfg.Cache.TTL())
    if err != nil {
      log.Warn("Redis cache init failed, using in-memory cache", "error", err)
      projectCache = cache.NewMemoryProjectCache()
    }
  } else {
    projectCache = cache.NewMemoryProjectCache()
  }

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  projectRepo := repos.NewProjectRepo(thePG, log)
  collaboratorRepo := repos.NewCollaboratorRepo(thePG, log)

  // Forecast client
  forecastClient, err := forecast.NewClient(log, forecast.ClientConfig{
    BaseURL: cfg.Forecast.BaseURL,
    Timeout: cfg.Forecast.Timeout(),
  })
  if err != nil {
    log.Error("Could not init forecast client", "error", err)
    os.Exit(1)
  }

  // Services
  log.Info("Setting up Services from main...")
  imageService, err := services.NewProjectImageService(log)
  if err != nil {
    log.Warn("Could not init ProjectImageService, placeholders disabled", "error", err)
    imageService = nil
  }
  authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
  userService := services.NewUserService(thePG, log, userRepo)
  projectService := services.NewProjectService(thePG, log, projectRepo, collaboratorRepo, userRepo, projectCache, imageService)
  forecastService := services.NewForecastService(thePG, log, forecastClient, projectRepo, projectService, projectCache)
  reportService := services.NewReportService(thePG, log, projectRepo, collaboratorRepo, projectService)

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(authService)
  userHandler := handlers.NewUserHandler(userService)
  projectHandler := handlers.NewProjectHandler(projectService)
  forecastHandler := handlers.NewForecastHandler(log, forecastService)
  reportHandler := handlers.NewReportHandler(reportService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    ServiceName:     "conserva-backend",
    CORSOrigins:     cfg.Server.CORSOrigins,
    MediaDir:        utils.GetEnv("MEDIA_DIR", "./media", log),
    AuthHandler:     authHandler,
    AuthMiddleware:  authMiddleware,
    UserHandler:     userHandler,
    ProjectHandler:  projectHandler,
    ForecastHandler: forecastHandler,
    ReportHandler:   reportHandler,
  })

  fmt.Printf("Server listening on :%s\n", cfg.Server.Port)
  if err := router.Run(":" + cfg.Server.Port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
