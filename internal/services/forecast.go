package services

import (
  "context"
  "strings"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/conservaproj/conserva-backend/internal/cache"
  "github.com/conservaproj/conserva-backend/internal/forecast"
  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/repos"
)

// ForecastInput is the raw form state for one forecast run.
type ForecastInput struct {
  CSV               string
  PotentialAdopters string
  TargetAdoption    string
  Width             int
  Height            int
}

// ForecastOutcome separates what the user sees from what was stored. A failed
// persist does not retract the just-computed result: Saved goes false, the
// save error is carried alongside, and the plot and rates stay displayable.
type ForecastOutcome struct {
  PlotDataURI string         `json:"plot_data_uri"`
  Independent float64        `json:"independent"`
  Social      float64        `json:"social"`
  Saved       bool           `json:"saved"`
  SaveError   string         `json:"save_error,omitempty"`
  Details     datatypes.JSON `json:"details,omitempty"`
}

const (
  ForecastStatusUp    = "up"
  ForecastStatusDown  = "down"
  ForecastStatusError = "error"
)

type ForecastService interface {
  // RunForecast validates, calls the forecasting service, then persists the
  // fitted parameters, strictly in that order. Persistence runs only after a
  // successful fit.
  RunForecast(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, input ForecastInput) (*ForecastOutcome, error)
  ServiceStatus(ctx context.Context) string
  BoundaryNames(ctx context.Context, country, region, district string) ([]string, error)
  ReportingForm(ctx context.Context) ([]byte, string, error)
}

type forecastService struct {
  db             *gorm.DB
  log            *logger.Logger
  client         forecast.Client
  projectRepo    repos.ProjectRepo
  projectService ProjectService
  projectCache   cache.ProjectCache
}

func NewForecastService(
  db *gorm.DB,
  baseLog *logger.Logger,
  client forecast.Client,
  projectRepo repos.ProjectRepo,
  projectService ProjectService,
  projectCache cache.ProjectCache,
) ForecastService {
  return &forecastService{
    db:             db,
    log:            baseLog.With("service", "ForecastService"),
    client:         client,
    projectRepo:    projectRepo,
    projectService: projectService,
    projectCache:   projectCache,
  }
}

func (fs *forecastService) RunForecast(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, input ForecastInput) (*ForecastOutcome, error) {
  if _, err := fs.projectService.AuthorizeAccess(ctx, tx, projectID, true); err != nil {
    return nil, err
  }

  req, err := forecast.AssembleRunRequest(input.CSV, input.PotentialAdopters, input.TargetAdoption, input.Width, input.Height)
  if err != nil {
    return nil, err
  }

  result, err := fs.client.Run(ctx, req)
  if err != nil {
    fs.log.Warn("Forecast run failed", "error", err, "project_id", projectID)
    return nil, err
  }

  outcome := &ForecastOutcome{
    PlotDataURI: result.Plot.DataURI(),
    Independent: result.Independent,
    Social:      result.Social,
  }

  targetAdoption := strings.TrimSpace(input.TargetAdoption)
  merged, err := fs.projectRepo.MergeDetails(ctx, fs.dbOr(tx), projectID, func(details map[string]interface{}) error {
    // growth is overwritten whole: a re-run starts from a clean fit and any
    // previously reported adoption or probability no longer applies to it
    details["growth"] = map[string]interface{}{
      "independent": result.Independent,
      "social":      result.Social,
    }
    if targetAdoption != "" {
      details["targetAdoption"] = targetAdoption
    }
    return nil
  })
  if err != nil {
    persistErr := &forecast.PersistenceError{Err: err}
    fs.log.Error("Forecast result persist failed, keeping result displayable", "error", err, "project_id", projectID)
    outcome.Saved = false
    outcome.SaveError = persistErr.Error()
    return outcome, nil
  }

  outcome.Saved = true
  outcome.Details = merged.Details
  fs.projectCache.Set(ctx, merged)
  return outcome, nil
}

func (fs *forecastService) ServiceStatus(ctx context.Context) string {
  err := fs.client.Wake(ctx)
  if err == nil {
    return ForecastStatusUp
  }
  switch err.(type) {
  case *forecast.TransportError:
    return ForecastStatusDown
  default:
    return ForecastStatusError
  }
}

func (fs *forecastService) BoundaryNames(ctx context.Context, country, region, district string) ([]string, error) {
  return fs.client.BoundaryNames(ctx, country, region, district)
}

func (fs *forecastService) ReportingForm(ctx context.Context) ([]byte, string, error) {
  return fs.client.ReportingForm(ctx)
}

func (fs *forecastService) dbOr(tx *gorm.DB) *gorm.DB {
  if tx != nil {
    return tx
  }
  return fs.db
}
