package repos

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/types"
)

var (
  ErrProjectNotFound = errors.New("project not found")

  // ErrDetailsConflict means the details document changed between the fresh
  // read and the version-checked write, twice in a row.
  ErrDetailsConflict = errors.New("project details modified concurrently")
)

type ProjectRepo interface {
  Create(ctx context.Context, tx *gorm.DB, projects []*types.Project) ([]*types.Project, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Project, error)
  GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Project, error)
  Update(ctx context.Context, tx *gorm.DB, project *types.Project) error
  Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  // MergeDetails is a read-modify-write over the whole details document:
  // it re-reads the current document, applies mutate to the decoded map (every
  // unknown key preserved), and writes back guarded by the details version.
  // A concurrent edit triggers one re-read and retry before surfacing
  // ErrDetailsConflict.
  MergeDetails(ctx context.Context, tx *gorm.DB, id uuid.UUID, mutate func(details map[string]interface{}) error) (*types.Project, error)
  UpdateDiagnostic(ctx context.Context, tx *gorm.DB, id uuid.UUID, responses map[string]int) error
}

type projectRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
  return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (pr *projectRepo) Create(ctx context.Context, tx *gorm.DB, projects []*types.Project) ([]*types.Project, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  if len(projects) == 0 {
    return []*types.Project{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&projects).Error; err != nil {
    return nil, err
  }
  return projects, nil
}

func (pr *projectRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Project, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  var results []*types.Project
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (pr *projectRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Project, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  var results []*types.Project
  if len(userIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("user_id IN ?", userIDs).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (pr *projectRepo) Update(ctx context.Context, tx *gorm.DB, project *types.Project) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  return transaction.WithContext(ctx).Save(project).Error
}

func (pr *projectRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  return transaction.WithContext(ctx).
    Where("id = ?", id).
    Delete(&types.Project{}).Error
}

const mergeDetailsAttempts = 2

func (pr *projectRepo) MergeDetails(ctx context.Context, tx *gorm.DB, id uuid.UUID, mutate func(details map[string]interface{}) error) (*types.Project, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  var lastErr error
  for attempt := 0; attempt < mergeDetailsAttempts; attempt++ {
    var project types.Project
    if err := transaction.WithContext(ctx).
      Where("id = ?", id).
      First(&project).Error; err != nil {
      if errors.Is(err, gorm.ErrRecordNotFound) {
        return nil, ErrProjectNotFound
      }
      return nil, err
    }

    details, err := types.DecodeDetailsMap(project.Details)
    if err != nil {
      return nil, fmt.Errorf("decode details for project %s: %w", id, err)
    }
    if err := mutate(details); err != nil {
      return nil, err
    }
    raw, err := json.Marshal(details)
    if err != nil {
      return nil, fmt.Errorf("encode details for project %s: %w", id, err)
    }

    res := transaction.WithContext(ctx).
      Model(&types.Project{}).
      Where("id = ? AND details_version = ?", id, project.DetailsVersion).
      Updates(map[string]interface{}{
        "details":         datatypes.JSON(raw),
        "details_version": project.DetailsVersion + 1,
        "updated_at":      time.Now(),
      })
    if res.Error != nil {
      return nil, res.Error
    }
    if res.RowsAffected == 1 {
      project.Details = datatypes.JSON(raw)
      project.DetailsVersion = project.DetailsVersion + 1
      return &project, nil
    }
    pr.log.Warn("Details version conflict, re-reading", "project_id", id, "attempt", attempt+1)
    lastErr = ErrDetailsConflict
  }
  return nil, lastErr
}

func (pr *projectRepo) UpdateDiagnostic(ctx context.Context, tx *gorm.DB, id uuid.UUID, responses map[string]int) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  raw, err := json.Marshal(responses)
  if err != nil {
    return err
  }
  res := transaction.WithContext(ctx).
    Model(&types.Project{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "context_diagnostic": datatypes.JSON(raw),
      "updated_at":         time.Now(),
    })
  if res.Error != nil {
    return res.Error
  }
  if res.RowsAffected == 0 {
    return ErrProjectNotFound
  }
  return nil
}
