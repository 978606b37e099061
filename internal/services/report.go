package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/gorm"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/metrics"
  "github.com/conservaproj/conserva-backend/internal/repos"
  "github.com/conservaproj/conserva-backend/internal/types"
)

// SummaryReport is the assembled payload behind the printable project report.
// Every percentage in it is derived from the stored raw counts at read time.
type SummaryReport struct {
  Project     ReportProject     `json:"project"`
  Monitoring  ReportMonitoring  `json:"monitoring"`
  Adoption    ReportAdoption    `json:"adoption"`
  Forecast    *ReportForecast   `json:"forecast,omitempty"`
  Diagnostic  *ReportDiagnostic `json:"diagnostic,omitempty"`
  GeneratedAt time.Time         `json:"generated_at"`
}

type ReportProject struct {
  ID            uuid.UUID `json:"id"`
  Name          string    `json:"name"`
  Description   string    `json:"description"`
  CountryCode   string    `json:"country_code"`
  ImageURL      string    `json:"image_url,omitempty"`
  Collaborators int       `json:"collaborators"`
}

type ReportMonitoring struct {
  StartingDate        string   `json:"starting_date,omitempty"`
  EndingDate          string   `json:"ending_date,omitempty"`
  EngagementType      string   `json:"engagement_type,omitempty"`
  MonitoringFrequency string   `json:"monitoring_frequency,omitempty"`
  ResourcesType       []string `json:"resources_type,omitempty"`
}

type ReportAdoption struct {
  PotentialAdopters   string `json:"potential_adopters,omitempty"`
  TargetAdoption      string `json:"target_adoption,omitempty"`
  TargetOfPoolPercent string `json:"target_of_pool_percent"`
  UnitSingular        string `json:"unit_singular"`
  UnitPlural          string `json:"unit_plural"`
}

// ReportForecast is present only when a forecast has been run; its absence
// means "no forecast yet", never zero rates.
type ReportForecast struct {
  IndependentPercent   float64  `json:"independent_percent"`
  SocialPercent        float64  `json:"social_percent"`
  LastReportedAdoption *float64 `json:"last_reported_adoption,omitempty"`
  ReachedOfPoolPercent string   `json:"reached_of_pool_percent,omitempty"`
  ProbabilityOfSuccess string   `json:"probability_of_success,omitempty"`
}

type ReportDiagnostic struct {
  Responses    int     `json:"responses"`
  AverageScore float64 `json:"average_score"`
}

type ReportService interface {
  BuildReport(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*SummaryReport, error)
}

type reportService struct {
  db               *gorm.DB
  log              *logger.Logger
  projectRepo      repos.ProjectRepo
  collaboratorRepo repos.CollaboratorRepo
  projectService   ProjectService
}

func NewReportService(
  db *gorm.DB,
  baseLog *logger.Logger,
  projectRepo repos.ProjectRepo,
  collaboratorRepo repos.CollaboratorRepo,
  projectService ProjectService,
) ReportService {
  return &reportService{
    db:               db,
    log:              baseLog.With("service", "ReportService"),
    projectRepo:      projectRepo,
    collaboratorRepo: collaboratorRepo,
    projectService:   projectService,
  }
}

func (rs *reportService) BuildReport(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*SummaryReport, error) {
  if _, err := rs.projectService.AuthorizeAccess(ctx, tx, projectID, false); err != nil {
    return nil, err
  }

  transaction := tx
  if transaction == nil {
    transaction = rs.db
  }

  // reports want the durable state, not a possibly stale snapshot, so both
  // loads go straight to the database
  var project *types.Project
  var collaborators []*types.ProjectCollaborator
  g, gctx := errgroup.WithContext(ctx)
  g.Go(func() error {
    projects, err := rs.projectRepo.GetByIDs(gctx, transaction, []uuid.UUID{projectID})
    if err != nil {
      return fmt.Errorf("load project: %w", err)
    }
    if len(projects) == 0 {
      return ErrProjectNotFound
    }
    project = projects[0]
    return nil
  })
  g.Go(func() error {
    var err error
    collaborators, err = rs.collaboratorRepo.GetByProjectIDs(gctx, transaction, []uuid.UUID{projectID})
    if err != nil {
      return fmt.Errorf("load collaborators: %w", err)
    }
    return nil
  })
  if err := g.Wait(); err != nil {
    rs.log.Error("BuildReport loads failed", "error", err, "project_id", projectID)
    return nil, err
  }

  details, err := types.DecodeDetails(project.Details)
  if err != nil {
    return nil, fmt.Errorf("decode details: %w", err)
  }

  report := &SummaryReport{
    Project: ReportProject{
      ID:            project.ID,
      Name:          project.Name,
      Description:   project.Description,
      CountryCode:   project.CountryCode,
      ImageURL:      project.ImageURL,
      Collaborators: len(collaborators),
    },
    Monitoring: ReportMonitoring{
      StartingDate:        details.StartingDate,
      EndingDate:          details.EndingDate,
      EngagementType:      details.EngagementType,
      MonitoringFrequency: details.MonitoringFrequency,
      ResourcesType:       details.ResourcesType,
    },
    Adoption: ReportAdoption{
      PotentialAdopters:   details.PotentialAdopters,
      TargetAdoption:      details.TargetAdoption,
      TargetOfPoolPercent: metrics.AsPercentageCounts(details.TargetAdoption, details.PotentialAdopters),
      UnitSingular:        metrics.AdoptionUnit(details.EngagementType, false),
      UnitPlural:          metrics.AdoptionUnit(details.EngagementType, true),
    },
    GeneratedAt: time.Now(),
  }

  if details.Growth != nil {
    block := &ReportForecast{
      IndependentPercent:   details.Growth.Independent,
      SocialPercent:        details.Growth.Social,
      LastReportedAdoption: details.Growth.LastReportedAdoption,
      ProbabilityOfSuccess: metrics.FormatProbability(details.Growth.ProbabilityOfSuccess),
    }
    if details.Growth.LastReportedAdoption != nil {
      block.ReachedOfPoolPercent = metrics.AsPercentageCounts(
        fmt.Sprintf("%g", *details.Growth.LastReportedAdoption),
        details.PotentialAdopters,
      )
    }
    report.Forecast = block
  }

  responses, err := types.DecodeDiagnostic(project.ContextDiagnostic)
  if err != nil {
    return nil, fmt.Errorf("decode diagnostic: %w", err)
  }
  if len(responses) > 0 {
    total := 0
    for _, likert := range responses {
      total += likert
    }
    report.Diagnostic = &ReportDiagnostic{
      Responses:    len(responses),
      AverageScore: float64(total) / float64(len(responses)),
    }
  }

  return report, nil
}
