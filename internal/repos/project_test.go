package repos

import (
  "context"
  "encoding/json"
  "errors"
  "testing"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/types"
)

// The project table is created by hand here: the production DDL relies on
// postgres uuid defaults that sqlite cannot express, and the merge logic under
// test does not depend on them.
const projectTableDDL = `
CREATE TABLE project (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  country_code TEXT,
  image_key TEXT,
  image_url TEXT,
  details TEXT,
  details_version INTEGER NOT NULL DEFAULT 0,
  context_diagnostic TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
)`

func newTestDB(t *testing.T) *gorm.DB {
  t.Helper()
  db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=busy_timeout(5000)"), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("open sqlite: %v", err)
  }
  if err := db.Exec("DROP TABLE IF EXISTS project").Error; err != nil {
    t.Fatalf("drop table: %v", err)
  }
  if err := db.Exec(projectTableDDL).Error; err != nil {
    t.Fatalf("create table: %v", err)
  }
  return db
}

func newProjectRepo(t *testing.T, db *gorm.DB) ProjectRepo {
  t.Helper()
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  return NewProjectRepo(db, log)
}

func seedProject(t *testing.T, db *gorm.DB, details string) uuid.UUID {
  t.Helper()
  id := uuid.New()
  project := &types.Project{
    ID:      id,
    UserID:  uuid.New(),
    Name:    "Mangrove restoration",
    Details: datatypes.JSON(details),
  }
  if err := db.Create(project).Error; err != nil {
    t.Fatalf("seed project: %v", err)
  }
  return id
}

func TestMergeDetailsPreservesUnrelatedKeys(t *testing.T) {
  db := newTestDB(t)
  repo := newProjectRepo(t, db)
  id := seedProject(t, db, `{"startingDate":"2024-01-01","endingDate":"2024-06-01","engagementType":"village","customKey":{"nested":true}}`)

  merged, err := repo.MergeDetails(context.Background(), nil, id, func(details map[string]interface{}) error {
    details["growth"] = map[string]interface{}{"independent": 5.0, "social": 2.0}
    return nil
  })
  if err != nil {
    t.Fatalf("MergeDetails: %v", err)
  }

  got := map[string]interface{}{}
  if err := json.Unmarshal(merged.Details, &got); err != nil {
    t.Fatalf("decode merged details: %v", err)
  }
  if got["startingDate"] != "2024-01-01" || got["endingDate"] != "2024-06-01" {
    t.Fatalf("date keys clobbered: got=%v", got)
  }
  if got["engagementType"] != "village" {
    t.Fatalf("engagementType clobbered: got=%v", got["engagementType"])
  }
  custom, ok := got["customKey"].(map[string]interface{})
  if !ok || custom["nested"] != true {
    t.Fatalf("unknown key not preserved verbatim: got=%v", got["customKey"])
  }
  growth, ok := got["growth"].(map[string]interface{})
  if !ok || growth["independent"] != 5.0 || growth["social"] != 2.0 {
    t.Fatalf("growth not written: got=%v", got["growth"])
  }
  if merged.DetailsVersion != 1 {
    t.Fatalf("details version: want=1 got=%d", merged.DetailsVersion)
  }
}

func TestMergeDetailsIdempotent(t *testing.T) {
  db := newTestDB(t)
  repo := newProjectRepo(t, db)
  id := seedProject(t, db, `{"startingDate":"2024-01-01"}`)

  mutate := func(details map[string]interface{}) error {
    details["growth"] = map[string]interface{}{"independent": 5.0, "social": 2.0}
    return nil
  }
  first, err := repo.MergeDetails(context.Background(), nil, id, mutate)
  if err != nil {
    t.Fatalf("first merge: %v", err)
  }
  second, err := repo.MergeDetails(context.Background(), nil, id, mutate)
  if err != nil {
    t.Fatalf("second merge: %v", err)
  }
  if string(first.Details) != string(second.Details) {
    t.Fatalf("merge not idempotent: first=%s second=%s", first.Details, second.Details)
  }
}

func TestMergeDetailsOverwritesGrowthWhole(t *testing.T) {
  db := newTestDB(t)
  repo := newProjectRepo(t, db)
  id := seedProject(t, db, `{"growth":{"independent":1.0,"social":0.5,"lastReportedAdoption":17,"probabilityOfSuccess":62.1}}`)

  merged, err := repo.MergeDetails(context.Background(), nil, id, func(details map[string]interface{}) error {
    details["growth"] = map[string]interface{}{"independent": 3.2, "social": 1.1}
    return nil
  })
  if err != nil {
    t.Fatalf("MergeDetails: %v", err)
  }
  decoded, err := types.DecodeDetails(merged.Details)
  if err != nil {
    t.Fatalf("decode: %v", err)
  }
  if decoded.Growth == nil {
    t.Fatalf("growth missing after overwrite")
  }
  if decoded.Growth.Independent != 3.2 || decoded.Growth.Social != 1.1 {
    t.Fatalf("growth rates: got=%+v", decoded.Growth)
  }
  if decoded.Growth.LastReportedAdoption != nil || decoded.Growth.ProbabilityOfSuccess != nil {
    t.Fatalf("stale sub-fields survived the overwrite: got=%+v", decoded.Growth)
  }
}

func TestMergeDetailsRetriesOnceOnConflict(t *testing.T) {
  db := newTestDB(t)
  repo := newProjectRepo(t, db)
  id := seedProject(t, db, `{}`)

  calls := 0
  merged, err := repo.MergeDetails(context.Background(), nil, id, func(details map[string]interface{}) error {
    calls++
    if calls == 1 {
      // concurrent edit lands between this read and the guarded write
      if err := db.Exec("UPDATE project SET details_version = details_version + 1 WHERE id = ?", id).Error; err != nil {
        return err
      }
    }
    details["growth"] = map[string]interface{}{"independent": 5.0, "social": 2.0}
    return nil
  })
  if err != nil {
    t.Fatalf("MergeDetails after conflict: %v", err)
  }
  if calls != 2 {
    t.Fatalf("mutate calls: want=2 got=%d", calls)
  }
  if merged.DetailsVersion != 2 {
    t.Fatalf("details version after retry: want=2 got=%d", merged.DetailsVersion)
  }
}

func TestMergeDetailsSurfacesPersistentConflict(t *testing.T) {
  db := newTestDB(t)
  repo := newProjectRepo(t, db)
  id := seedProject(t, db, `{}`)

  _, err := repo.MergeDetails(context.Background(), nil, id, func(details map[string]interface{}) error {
    if err := db.Exec("UPDATE project SET details_version = details_version + 1 WHERE id = ?", id).Error; err != nil {
      return err
    }
    details["growth"] = map[string]interface{}{"independent": 5.0, "social": 2.0}
    return nil
  })
  if !errors.Is(err, ErrDetailsConflict) {
    t.Fatalf("want ErrDetailsConflict got=%v", err)
  }
}

func TestMergeDetailsMissingProject(t *testing.T) {
  db := newTestDB(t)
  repo := newProjectRepo(t, db)

  _, err := repo.MergeDetails(context.Background(), nil, uuid.New(), func(details map[string]interface{}) error {
    return nil
  })
  if !errors.Is(err, ErrProjectNotFound) {
    t.Fatalf("want ErrProjectNotFound got=%v", err)
  }
}

func TestUpdateDiagnostic(t *testing.T) {
  db := newTestDB(t)
  repo := newProjectRepo(t, db)
  id := seedProject(t, db, `{}`)

  if err := repo.UpdateDiagnostic(context.Background(), nil, id, map[string]int{"q1": 4, "q2": 2}); err != nil {
    t.Fatalf("UpdateDiagnostic: %v", err)
  }
  projects, err := repo.GetByIDs(context.Background(), nil, []uuid.UUID{id})
  if err != nil || len(projects) != 1 {
    t.Fatalf("GetByIDs: err=%v len=%d", err, len(projects))
  }
  responses, err := types.DecodeDiagnostic(projects[0].ContextDiagnostic)
  if err != nil {
    t.Fatalf("decode diagnostic: %v", err)
  }
  if responses["q1"] != 4 || responses["q2"] != 2 {
    t.Fatalf("diagnostic responses: got=%v", responses)
  }

  if err := repo.UpdateDiagnostic(context.Background(), nil, uuid.New(), map[string]int{"q1": 1}); !errors.Is(err, ErrProjectNotFound) {
    t.Fatalf("missing project: want ErrProjectNotFound got=%v", err)
  }
}
