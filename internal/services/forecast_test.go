package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "net/http"
  "net/http/httptest"
  "testing"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/conservaproj/conserva-backend/internal/cache"
  "github.com/conservaproj/conserva-backend/internal/forecast"
  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/metrics"
  "github.com/conservaproj/conserva-backend/internal/repos"
  "github.com/conservaproj/conserva-backend/internal/types"
)

type fakeForecastClient struct {
  runCalls   int
  runResult  *forecast.RunResult
  runErr     error
  wakeErr    error
  lastRunReq *forecast.RunRequest
}

func (f *fakeForecastClient) Wake(ctx context.Context) error { return f.wakeErr }

func (f *fakeForecastClient) Run(ctx context.Context, req *forecast.RunRequest) (*forecast.RunResult, error) {
  f.runCalls++
  f.lastRunReq = req
  if f.runErr != nil {
    return nil, f.runErr
  }
  return f.runResult, nil
}

func (f *fakeForecastClient) BoundaryNames(ctx context.Context, country, region, district string) ([]string, error) {
  return nil, nil
}

func (f *fakeForecastClient) ReportingForm(ctx context.Context) ([]byte, string, error) {
  return nil, "", nil
}

type fakeProjectRepo struct {
  repos.ProjectRepo
  project    *types.Project
  mergeCalls int
  mergeErr   error
}

func (f *fakeProjectRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Project, error) {
  if f.project == nil {
    return nil, nil
  }
  return []*types.Project{f.project}, nil
}

func (f *fakeProjectRepo) MergeDetails(ctx context.Context, tx *gorm.DB, id uuid.UUID, mutate func(map[string]interface{}) error) (*types.Project, error) {
  f.mergeCalls++
  if f.mergeErr != nil {
    return nil, f.mergeErr
  }
  details, err := types.DecodeDetailsMap(f.project.Details)
  if err != nil {
    return nil, err
  }
  if err := mutate(details); err != nil {
    return nil, err
  }
  raw, err := json.Marshal(details)
  if err != nil {
    return nil, err
  }
  f.project.Details = datatypes.JSON(raw)
  f.project.DetailsVersion++
  return f.project, nil
}

type fakeAuthorizer struct {
  ProjectService
  project *types.Project
  err     error
}

func (f *fakeAuthorizer) AuthorizeAccess(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, editor bool) (*types.Project, error) {
  if f.err != nil {
    return nil, f.err
  }
  return f.project, nil
}

func newForecastFixture(t *testing.T, client forecast.Client, repo repos.ProjectRepo, project *types.Project) (ForecastService, cache.ProjectCache) {
  t.Helper()
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  projectCache := cache.NewMemoryProjectCache()
  svc := NewForecastService(nil, log, client, repo, &fakeAuthorizer{project: project}, projectCache)
  return svc, projectCache
}

func seedForecastProject(details string) *types.Project {
  return &types.Project{
    ID:      uuid.New(),
    UserID:  uuid.New(),
    Name:    "Community woodlots",
    Details: datatypes.JSON(details),
  }
}

const validCSV = "date,count\n2024-01-01,5\n2024-02-01,12"

func TestRunForecastValidationBlocksClient(t *testing.T) {
  client := &fakeForecastClient{}
  project := seedForecastProject(`{}`)
  repo := &fakeProjectRepo{project: project}
  svc, _ := newForecastFixture(t, client, repo, project)

  _, err := svc.RunForecast(context.Background(), nil, project.ID, ForecastInput{
    CSV:               "",
    PotentialAdopters: "100",
  })
  var vErr *forecast.ValidationError
  if !errors.As(err, &vErr) {
    t.Fatalf("want ValidationError got=%v", err)
  }
  if client.runCalls != 0 {
    t.Fatalf("client called despite validation failure: calls=%d", client.runCalls)
  }
  if repo.mergeCalls != 0 {
    t.Fatalf("persist attempted despite validation failure: calls=%d", repo.mergeCalls)
  }
}

func TestRunForecastPersistsGrowth(t *testing.T) {
  client := &fakeForecastClient{
    runResult: &forecast.RunResult{
      Plot:        forecast.Plot{MIMEType: "image/png", Base64: "AAA="},
      Independent: 3.2,
      Social:      1.1,
    },
  }
  project := seedForecastProject(`{"startingDate":"2024-01-01","endingDate":"2024-06-01"}`)
  repo := &fakeProjectRepo{project: project}
  svc, projectCache := newForecastFixture(t, client, repo, project)

  outcome, err := svc.RunForecast(context.Background(), nil, project.ID, ForecastInput{
    CSV:               validCSV,
    PotentialAdopters: "100",
    TargetAdoption:    "40",
  })
  if err != nil {
    t.Fatalf("RunForecast: %v", err)
  }
  if !outcome.Saved {
    t.Fatalf("outcome not saved: %+v", outcome)
  }
  if outcome.PlotDataURI != "data:image/png;base64,AAA=" {
    t.Fatalf("plot data uri: got=%s", outcome.PlotDataURI)
  }

  details, err := types.DecodeDetails(project.Details)
  if err != nil {
    t.Fatalf("decode details: %v", err)
  }
  if details.Growth == nil || details.Growth.Independent != 3.2 || details.Growth.Social != 1.1 {
    t.Fatalf("growth not persisted: %+v", details.Growth)
  }
  if details.StartingDate != "2024-01-01" || details.EndingDate != "2024-06-01" {
    t.Fatalf("unrelated keys clobbered: %+v", details)
  }
  if details.TargetAdoption != "40" {
    t.Fatalf("targetAdoption not updated: got=%s", details.TargetAdoption)
  }

  snapshot, ok := projectCache.Get(context.Background(), project.ID)
  if !ok {
    t.Fatalf("cache not primed after persist")
  }
  if string(snapshot.Details) != string(project.Details) {
    t.Fatalf("cache snapshot stale: got=%s", snapshot.Details)
  }
}

func TestRunForecastPersistFailureKeepsResult(t *testing.T) {
  client := &fakeForecastClient{
    runResult: &forecast.RunResult{
      Plot:        forecast.Plot{MIMEType: "image/png", Base64: "AAA="},
      Independent: 3.2,
      Social:      1.1,
    },
  }
  project := seedForecastProject(`{}`)
  repo := &fakeProjectRepo{project: project, mergeErr: fmt.Errorf("connection reset")}
  svc, projectCache := newForecastFixture(t, client, repo, project)

  outcome, err := svc.RunForecast(context.Background(), nil, project.ID, ForecastInput{
    CSV:               validCSV,
    PotentialAdopters: "100",
  })
  if err != nil {
    t.Fatalf("persist failure must not fail the run: %v", err)
  }
  if outcome.Saved {
    t.Fatalf("outcome marked saved despite persist failure")
  }
  if outcome.SaveError == "" {
    t.Fatalf("save error missing from outcome")
  }
  if outcome.PlotDataURI == "" || outcome.Independent != 3.2 {
    t.Fatalf("computed result retracted on persist failure: %+v", outcome)
  }
  if _, ok := projectCache.Get(context.Background(), project.ID); ok {
    t.Fatalf("cache primed despite persist failure")
  }
}

func TestRunForecastClientFailurePropagates(t *testing.T) {
  client := &fakeForecastClient{runErr: &forecast.ServiceError{Status: 502}}
  project := seedForecastProject(`{}`)
  repo := &fakeProjectRepo{project: project}
  svc, _ := newForecastFixture(t, client, repo, project)

  _, err := svc.RunForecast(context.Background(), nil, project.ID, ForecastInput{
    CSV:               validCSV,
    PotentialAdopters: "100",
  })
  var svcErr *forecast.ServiceError
  if !errors.As(err, &svcErr) {
    t.Fatalf("want ServiceError got=%v", err)
  }
  if repo.mergeCalls != 0 {
    t.Fatalf("persist attempted after client failure: calls=%d", repo.mergeCalls)
  }
}

func TestRunForecastAuthorizationBlocks(t *testing.T) {
  client := &fakeForecastClient{}
  project := seedForecastProject(`{}`)
  repo := &fakeProjectRepo{project: project}
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  svc := NewForecastService(nil, log, client, repo, &fakeAuthorizer{err: ErrForbidden}, cache.NewMemoryProjectCache())

  _, err = svc.RunForecast(context.Background(), nil, project.ID, ForecastInput{
    CSV:               validCSV,
    PotentialAdopters: "100",
  })
  if !errors.Is(err, ErrForbidden) {
    t.Fatalf("want ErrForbidden got=%v", err)
  }
  if client.runCalls != 0 {
    t.Fatalf("client called despite authorization failure")
  }
}

func TestRunForecastEndToEnd(t *testing.T) {
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/run-forecast" {
      t.Errorf("path: got=%s", r.URL.Path)
    }
    if got := r.URL.Query().Get("potentialAdopters"); got != "100" {
      t.Errorf("potentialAdopters: got=%s", got)
    }
    w.Header().Set("Content-Type", "application/json")
    _, _ = w.Write([]byte(`{"plot":{"type":"image/png","base64":"AAA="},"parameters":{"independent":[3.2],"social":[1.1]}}`))
  }))
  defer srv.Close()

  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  client, err := forecast.NewClient(log, forecast.ClientConfig{BaseURL: srv.URL})
  if err != nil {
    t.Fatalf("NewClient: %v", err)
  }
  project := seedForecastProject(`{"potentialAdopters":"100"}`)
  repo := &fakeProjectRepo{project: project}
  svc := NewForecastService(nil, log, client, repo, &fakeAuthorizer{project: project}, cache.NewMemoryProjectCache())

  outcome, err := svc.RunForecast(context.Background(), nil, project.ID, ForecastInput{
    CSV:               "date,count\n2024-01-01,5\n2024-02-01,12",
    PotentialAdopters: "100",
    TargetAdoption:    "40",
  })
  if err != nil {
    t.Fatalf("RunForecast: %v", err)
  }
  if !outcome.Saved || outcome.Independent != 3.2 || outcome.Social != 1.1 {
    t.Fatalf("outcome: %+v", outcome)
  }

  details, err := types.DecodeDetails(project.Details)
  if err != nil {
    t.Fatalf("decode details: %v", err)
  }
  if details.Growth == nil || details.Growth.Independent != 3.2 || details.Growth.Social != 1.1 {
    t.Fatalf("persisted growth: %+v", details.Growth)
  }
  if got := metrics.AsPercentageCounts(details.TargetAdoption, details.PotentialAdopters); got != "40%" {
    t.Fatalf("target of pool: want=40%% got=%s", got)
  }
}

func TestServiceStatusMapping(t *testing.T) {
  cases := []struct {
    name string
    err  error
    want string
  }{
    {"up", nil, ForecastStatusUp},
    {"down on transport failure", &forecast.TransportError{Err: fmt.Errorf("dial tcp: refused")}, ForecastStatusDown},
    {"error on service failure", &forecast.ServiceError{Status: 503}, ForecastStatusError},
    {"error on malformed probe", &forecast.MalformedResponseError{Body: "<html>"}, ForecastStatusError},
  }
  for _, tc := range cases {
    client := &fakeForecastClient{wakeErr: tc.err}
    project := seedForecastProject(`{}`)
    svc, _ := newForecastFixture(t, client, &fakeProjectRepo{project: project}, project)
    if got := svc.ServiceStatus(context.Background()); got != tc.want {
      t.Fatalf("%s: want=%s got=%s", tc.name, tc.want, got)
    }
  }
}
