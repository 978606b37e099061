package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/types"
)

type CollaboratorRepo interface {
  Create(ctx context.Context, tx *gorm.DB, collaborators []*types.ProjectCollaborator) ([]*types.ProjectCollaborator, error)
  GetByProjectIDs(ctx context.Context, tx *gorm.DB, projectIDs []uuid.UUID) ([]*types.ProjectCollaborator, error)
  GetByProjectAndUser(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) (*types.ProjectCollaborator, error)
  DeleteByProjectAndUser(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) error
}

type collaboratorRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCollaboratorRepo(db *gorm.DB, baseLog *logger.Logger) CollaboratorRepo {
  return &collaboratorRepo{db: db, log: baseLog.With("repo", "CollaboratorRepo")}
}

func (cr *collaboratorRepo) Create(ctx context.Context, tx *gorm.DB, collaborators []*types.ProjectCollaborator) ([]*types.ProjectCollaborator, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  if len(collaborators) == 0 {
    return []*types.ProjectCollaborator{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&collaborators).Error; err != nil {
    return nil, err
  }
  return collaborators, nil
}

func (cr *collaboratorRepo) GetByProjectIDs(ctx context.Context, tx *gorm.DB, projectIDs []uuid.UUID) ([]*types.ProjectCollaborator, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var results []*types.ProjectCollaborator
  if len(projectIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("project_id IN ?", projectIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (cr *collaboratorRepo) GetByProjectAndUser(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) (*types.ProjectCollaborator, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var result types.ProjectCollaborator
  err := transaction.WithContext(ctx).
    Where("project_id = ? AND user_id = ?", projectID, userID).
    First(&result).Error
  if err != nil {
    if err == gorm.ErrRecordNotFound {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (cr *collaboratorRepo) DeleteByProjectAndUser(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  return transaction.WithContext(ctx).
    Where("project_id = ? AND user_id = ?", projectID, userID).
    Delete(&types.ProjectCollaborator{}).Error
}
