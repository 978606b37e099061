package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/conservaproj/conserva-backend/internal/handlers"
  "github.com/conservaproj/conserva-backend/internal/middleware"
)

type RouterConfig struct {
  ServiceName     string
  CORSOrigins     []string
  MediaDir        string
  AuthHandler     *handlers.AuthHandler
  AuthMiddleware  *middleware.AuthMiddleware
  UserHandler     *handlers.UserHandler
  ProjectHandler  *handlers.ProjectHandler
  ForecastHandler *handlers.ForecastHandler
  ReportHandler   *handlers.ReportHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  router.Use(otelgin.Middleware(cfg.ServiceName))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins:     cfg.CORSOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  // Placeholder project images are served straight off disk.
  if cfg.MediaDir != "" {
    router.Static("/media", cfg.MediaDir)
  }

  // ===============
  // || Public    ||
  // ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  api := router.Group("/api")
  {
    api.POST("/register", cfg.AuthHandler.Register)
    api.POST("/login", cfg.AuthHandler.Login)
  }

  // ===============
  // || Protected ||
  // ===============
  protected := router.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // Auth
  protected.POST("/refresh", cfg.AuthHandler.Refresh)
  protected.POST("/logout", cfg.AuthHandler.Logout)
  // User
  protected.GET("/user", cfg.UserHandler.GetMe)
  protected.PUT("/user", cfg.UserHandler.UpdateProfile)
  // Projects
  protected.GET("/projects", cfg.ProjectHandler.List)
  protected.POST("/projects", cfg.ProjectHandler.Create)
  protected.GET("/projects/:projectID", cfg.ProjectHandler.Get)
  protected.PUT("/projects/:projectID", cfg.ProjectHandler.Update)
  protected.DELETE("/projects/:projectID", cfg.ProjectHandler.Delete)
  protected.PUT("/projects/:projectID/details", cfg.ProjectHandler.UpdateDetails)
  protected.PUT("/projects/:projectID/diagnostic", cfg.ProjectHandler.UpdateDiagnostic)
  // Collaborators
  protected.GET("/projects/:projectID/collaborators", cfg.ProjectHandler.ListCollaborators)
  protected.POST("/projects/:projectID/collaborators", cfg.ProjectHandler.AddCollaborator)
  protected.DELETE("/projects/:projectID/collaborators/:userID", cfg.ProjectHandler.RemoveCollaborator)
  // Forecast
  protected.POST("/projects/:projectID/forecast", cfg.ForecastHandler.Run)
  protected.GET("/projects/:projectID/report", cfg.ReportHandler.Get)
  protected.GET("/forecast/status", cfg.ForecastHandler.Status)
  protected.GET("/forecast/boundary-names", cfg.ForecastHandler.BoundaryNames)
  protected.GET("/forecast/reporting-form", cfg.ForecastHandler.ReportingForm)

  return router
}
