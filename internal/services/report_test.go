package services

import (
  "context"
  "testing"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/repos"
  "github.com/conservaproj/conserva-backend/internal/types"
)

type fakeCollaboratorRepo struct {
  repos.CollaboratorRepo
  rows []*types.ProjectCollaborator
}

func (f *fakeCollaboratorRepo) GetByProjectIDs(ctx context.Context, tx *gorm.DB, projectIDs []uuid.UUID) ([]*types.ProjectCollaborator, error) {
  return f.rows, nil
}

func newReportFixture(t *testing.T, project *types.Project, collaborators int) ReportService {
  t.Helper()
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  rows := make([]*types.ProjectCollaborator, 0, collaborators)
  for i := 0; i < collaborators; i++ {
    rows = append(rows, &types.ProjectCollaborator{ProjectID: project.ID, UserID: uuid.New()})
  }
  return NewReportService(
    nil,
    log,
    &fakeProjectRepo{project: project},
    &fakeCollaboratorRepo{rows: rows},
    &fakeAuthorizer{project: project},
  )
}

func TestBuildReportWithForecast(t *testing.T) {
  project := &types.Project{
    ID:          uuid.New(),
    Name:        "Mangrove restoration",
    CountryCode: "KE",
    Details: datatypes.JSON(`{
      "potentialAdopters": "100",
      "targetAdoption": "40",
      "startingDate": "2024-01-01",
      "endingDate": "2024-06-01",
      "engagementType": "village",
      "growth": {"independent": 3.2, "social": 1.1, "lastReportedAdoption": 25, "probabilityOfSuccess": 72.4}
    }`),
  }
  svc := newReportFixture(t, project, 3)

  report, err := svc.BuildReport(context.Background(), nil, project.ID)
  if err != nil {
    t.Fatalf("BuildReport: %v", err)
  }
  if report.Project.Collaborators != 3 {
    t.Fatalf("collaborators: want=3 got=%d", report.Project.Collaborators)
  }
  if report.Adoption.TargetOfPoolPercent != "40%" {
    t.Fatalf("target of pool: want=40%% got=%s", report.Adoption.TargetOfPoolPercent)
  }
  if report.Adoption.UnitSingular != "village" || report.Adoption.UnitPlural != "villages" {
    t.Fatalf("units: got=%s/%s", report.Adoption.UnitSingular, report.Adoption.UnitPlural)
  }
  if report.Forecast == nil {
    t.Fatalf("forecast block missing despite stored growth")
  }
  if report.Forecast.IndependentPercent != 3.2 || report.Forecast.SocialPercent != 1.1 {
    t.Fatalf("forecast rates: got=%+v", report.Forecast)
  }
  if report.Forecast.ReachedOfPoolPercent != "25%" {
    t.Fatalf("reached of pool: want=25%% got=%s", report.Forecast.ReachedOfPoolPercent)
  }
  if report.Forecast.ProbabilityOfSuccess != "72.40%" {
    t.Fatalf("probability: want=72.40%% got=%s", report.Forecast.ProbabilityOfSuccess)
  }
}

func TestBuildReportWithoutForecast(t *testing.T) {
  project := &types.Project{
    ID:      uuid.New(),
    Name:    "Terrace farming",
    Details: datatypes.JSON(`{"potentialAdopters": "abc"}`),
  }
  svc := newReportFixture(t, project, 1)

  report, err := svc.BuildReport(context.Background(), nil, project.ID)
  if err != nil {
    t.Fatalf("BuildReport: %v", err)
  }
  if report.Forecast != nil {
    t.Fatalf("forecast block present without stored growth: %+v", report.Forecast)
  }
  if report.Diagnostic != nil {
    t.Fatalf("diagnostic block present without responses")
  }
  if report.Adoption.TargetOfPoolPercent != "N/A" {
    t.Fatalf("unparseable counts must read N/A, got=%s", report.Adoption.TargetOfPoolPercent)
  }
  if report.Adoption.UnitSingular != "adopter" || report.Adoption.UnitPlural != "adopters" {
    t.Fatalf("default units: got=%s/%s", report.Adoption.UnitSingular, report.Adoption.UnitPlural)
  }
}

func TestBuildReportDiagnosticAverage(t *testing.T) {
  project := &types.Project{
    ID:                uuid.New(),
    Name:              "Beekeeping co-op",
    Details:           datatypes.JSON(`{}`),
    ContextDiagnostic: datatypes.JSON(`{"q1": 4, "q2": 2, "q3": 3}`),
  }
  svc := newReportFixture(t, project, 1)

  report, err := svc.BuildReport(context.Background(), nil, project.ID)
  if err != nil {
    t.Fatalf("BuildReport: %v", err)
  }
  if report.Diagnostic == nil {
    t.Fatalf("diagnostic block missing")
  }
  if report.Diagnostic.Responses != 3 {
    t.Fatalf("responses: want=3 got=%d", report.Diagnostic.Responses)
  }
  if report.Diagnostic.AverageScore != 3.0 {
    t.Fatalf("average: want=3 got=%v", report.Diagnostic.AverageScore)
  }
}
