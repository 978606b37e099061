package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "strconv"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/conservaproj/conserva-backend/internal/cache"
  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/repos"
  "github.com/conservaproj/conserva-backend/internal/requestdata"
  "github.com/conservaproj/conserva-backend/internal/types"
)

var (
  ErrForbidden       = errors.New("forbidden")
  ErrProjectNotFound = repos.ErrProjectNotFound
)

type CreateProjectInput struct {
  Name        string
  Description string
  CountryCode string
  Details     *DetailsInput
}

// DetailsInput carries the structured-form fields. Empty strings mean "leave
// the stored value alone": updates are merged key by key into the details
// document, never written wholesale.
type DetailsInput struct {
  PotentialAdopters   string
  TargetAdoption      string
  StartingDate        string
  EndingDate          string
  EngagementType      string
  MonitoringFrequency string
  ResourcesType       []string
}

type ProjectService interface {
  CreateProject(ctx context.Context, tx *gorm.DB, input CreateProjectInput) (*types.Project, error)
  GetProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.Project, error)
  ListProjects(ctx context.Context, tx *gorm.DB) ([]*types.Project, error)
  UpdateProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, name, description, countryCode string) (*types.Project, error)
  DeleteProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error
  UpdateDetails(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, input DetailsInput) (*types.Project, error)
  UpdateDiagnostic(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, responses map[string]int) error
  AddCollaborator(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID, role string) (*types.ProjectCollaborator, error)
  ListCollaborators(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectCollaborator, error)
  RemoveCollaborator(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) error

  // AuthorizeAccess loads the project and verifies the request's user is the
  // owner or a collaborator; editor=true additionally requires write rights.
  AuthorizeAccess(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, editor bool) (*types.Project, error)
}

type projectService struct {
  db               *gorm.DB
  log              *logger.Logger
  projectRepo      repos.ProjectRepo
  collaboratorRepo repos.CollaboratorRepo
  userRepo         repos.UserRepo
  projectCache     cache.ProjectCache
  imageService     ProjectImageService
}

func NewProjectService(
  db *gorm.DB,
  baseLog *logger.Logger,
  projectRepo repos.ProjectRepo,
  collaboratorRepo repos.CollaboratorRepo,
  userRepo repos.UserRepo,
  projectCache cache.ProjectCache,
  imageService ProjectImageService,
) ProjectService {
  return &projectService{
    db:               db,
    log:              baseLog.With("service", "ProjectService"),
    projectRepo:      projectRepo,
    collaboratorRepo: collaboratorRepo,
    userRepo:         userRepo,
    projectCache:     projectCache,
    imageService:     imageService,
  }
}

func requestUserID(ctx context.Context) (uuid.UUID, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return uuid.Nil, fmt.Errorf("Request data not set in context")
  }
  return rd.UserID, nil
}

func (ps *projectService) CreateProject(ctx context.Context, tx *gorm.DB, input CreateProjectInput) (*types.Project, error) {
  userID, err := requestUserID(ctx)
  if err != nil {
    return nil, err
  }
  name := strings.TrimSpace(input.Name)
  if name == "" {
    return nil, fmt.Errorf("A project name is required")
  }

  details := map[string]interface{}{}
  if input.Details != nil {
    if err := applyDetailsInput(details, *input.Details); err != nil {
      return nil, err
    }
  }
  rawDetails, err := json.Marshal(details)
  if err != nil {
    return nil, fmt.Errorf("encode details: %w", err)
  }

  now := time.Now()
  project := &types.Project{
    ID:          uuid.New(),
    UserID:      userID,
    Name:        name,
    Description: strings.TrimSpace(input.Description),
    CountryCode: strings.ToUpper(strings.TrimSpace(input.CountryCode)),
    Details:     datatypes.JSON(rawDetails),
    CreatedAt:   now,
    UpdatedAt:   now,
  }

  if ps.imageService != nil {
    key, url, imgErr := ps.imageService.RenderPlaceholder(ctx, project.ID, name)
    if imgErr != nil {
      ps.log.Warn("Placeholder image render failed, continuing without", "error", imgErr, "project_id", project.ID)
    } else {
      project.ImageKey = key
      project.ImageURL = url
    }
  }

  err = ps.dbOr(tx).WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
    if _, err := ps.projectRepo.Create(ctx, innerTx, []*types.Project{project}); err != nil {
      return fmt.Errorf("create project: %w", err)
    }
    owner := &types.ProjectCollaborator{
      ID:        uuid.New(),
      ProjectID: project.ID,
      UserID:    userID,
      Role:      types.CollaboratorRoleOwner,
    }
    if _, err := ps.collaboratorRepo.Create(ctx, innerTx, []*types.ProjectCollaborator{owner}); err != nil {
      return fmt.Errorf("create owner collaborator: %w", err)
    }
    return nil
  })
  if err != nil {
    ps.log.Error("CreateProject failed", "error", err, "user_id", userID)
    return nil, err
  }

  ps.projectCache.Set(ctx, project)
  return project, nil
}

func (ps *projectService) GetProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.Project, error) {
  return ps.AuthorizeAccess(ctx, tx, projectID, false)
}

func (ps *projectService) ListProjects(ctx context.Context, tx *gorm.DB) ([]*types.Project, error) {
  userID, err := requestUserID(ctx)
  if err != nil {
    return nil, err
  }
  projects, err := ps.projectRepo.GetByUserIDs(ctx, ps.dbOr(tx), []uuid.UUID{userID})
  if err != nil {
    ps.log.Error("ListProjects failed", "error", err, "user_id", userID)
    return nil, fmt.Errorf("list projects: %w", err)
  }
  return projects, nil
}

func (ps *projectService) UpdateProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, name, description, countryCode string) (*types.Project, error) {
  project, err := ps.AuthorizeAccess(ctx, tx, projectID, true)
  if err != nil {
    return nil, err
  }
  if v := strings.TrimSpace(name); v != "" {
    project.Name = v
  }
  if v := strings.TrimSpace(description); v != "" {
    project.Description = v
  }
  if v := strings.ToUpper(strings.TrimSpace(countryCode)); v != "" {
    project.CountryCode = v
  }
  project.UpdatedAt = time.Now()
  if err := ps.projectRepo.Update(ctx, ps.dbOr(tx), project); err != nil {
    ps.log.Error("UpdateProject failed", "error", err, "project_id", projectID)
    return nil, fmt.Errorf("update project: %w", err)
  }
  ps.projectCache.Set(ctx, project)
  return project, nil
}

func (ps *projectService) DeleteProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error {
  project, err := ps.AuthorizeAccess(ctx, tx, projectID, true)
  if err != nil {
    return err
  }
  userID, _ := requestUserID(ctx)
  if project.UserID != userID {
    return ErrForbidden
  }
  if err := ps.projectRepo.Delete(ctx, ps.dbOr(tx), projectID); err != nil {
    ps.log.Error("DeleteProject failed", "error", err, "project_id", projectID)
    return fmt.Errorf("delete project: %w", err)
  }
  ps.projectCache.Invalidate(ctx, projectID)
  return nil
}

func (ps *projectService) UpdateDetails(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, input DetailsInput) (*types.Project, error) {
  if _, err := ps.AuthorizeAccess(ctx, tx, projectID, true); err != nil {
    return nil, err
  }
  merged, err := ps.projectRepo.MergeDetails(ctx, ps.dbOr(tx), projectID, func(details map[string]interface{}) error {
    return applyDetailsInput(details, input)
  })
  if err != nil {
    ps.log.Error("UpdateDetails failed", "error", err, "project_id", projectID)
    return nil, err
  }
  ps.projectCache.Set(ctx, merged)
  return merged, nil
}

func (ps *projectService) UpdateDiagnostic(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, responses map[string]int) error {
  if _, err := ps.AuthorizeAccess(ctx, tx, projectID, true); err != nil {
    return err
  }
  for question, likert := range responses {
    if likert < 1 || likert > 5 {
      return fmt.Errorf("Likert response for %q out of range: %d", question, likert)
    }
  }
  if err := ps.projectRepo.UpdateDiagnostic(ctx, ps.dbOr(tx), projectID, responses); err != nil {
    ps.log.Error("UpdateDiagnostic failed", "error", err, "project_id", projectID)
    return err
  }
  ps.projectCache.Invalidate(ctx, projectID)
  return nil
}

func (ps *projectService) AddCollaborator(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID, role string) (*types.ProjectCollaborator, error) {
  project, err := ps.AuthorizeAccess(ctx, tx, projectID, true)
  if err != nil {
    return nil, err
  }
  requester, _ := requestUserID(ctx)
  if project.UserID != requester {
    return nil, ErrForbidden
  }
  switch role {
  case types.CollaboratorRoleEditor, types.CollaboratorRoleViewer:
  default:
    return nil, fmt.Errorf("invalid collaborator role %q", role)
  }
  users, err := ps.userRepo.GetByIDs(ctx, ps.dbOr(tx), []uuid.UUID{userID})
  if err != nil {
    return nil, fmt.Errorf("load collaborator user: %w", err)
  }
  if len(users) == 0 {
    return nil, fmt.Errorf("collaborator user not found")
  }
  existing, err := ps.collaboratorRepo.GetByProjectAndUser(ctx, ps.dbOr(tx), projectID, userID)
  if err != nil {
    return nil, fmt.Errorf("check collaborator: %w", err)
  }
  if existing != nil {
    return nil, fmt.Errorf("user is already a collaborator")
  }
  collaborator := &types.ProjectCollaborator{
    ID:        uuid.New(),
    ProjectID: projectID,
    UserID:    userID,
    Role:      role,
  }
  if _, err := ps.collaboratorRepo.Create(ctx, ps.dbOr(tx), []*types.ProjectCollaborator{collaborator}); err != nil {
    ps.log.Error("AddCollaborator failed", "error", err, "project_id", projectID)
    return nil, fmt.Errorf("add collaborator: %w", err)
  }
  return collaborator, nil
}

func (ps *projectService) ListCollaborators(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectCollaborator, error) {
  if _, err := ps.AuthorizeAccess(ctx, tx, projectID, false); err != nil {
    return nil, err
  }
  collaborators, err := ps.collaboratorRepo.GetByProjectIDs(ctx, ps.dbOr(tx), []uuid.UUID{projectID})
  if err != nil {
    ps.log.Error("ListCollaborators failed", "error", err, "project_id", projectID)
    return nil, fmt.Errorf("list collaborators: %w", err)
  }
  return collaborators, nil
}

func (ps *projectService) RemoveCollaborator(ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID) error {
  project, err := ps.AuthorizeAccess(ctx, tx, projectID, true)
  if err != nil {
    return err
  }
  requester, _ := requestUserID(ctx)
  if project.UserID != requester {
    return ErrForbidden
  }
  if project.UserID == userID {
    return fmt.Errorf("cannot remove the project owner")
  }
  if err := ps.collaboratorRepo.DeleteByProjectAndUser(ctx, ps.dbOr(tx), projectID, userID); err != nil {
    ps.log.Error("RemoveCollaborator failed", "error", err, "project_id", projectID)
    return fmt.Errorf("remove collaborator: %w", err)
  }
  return nil
}

func (ps *projectService) AuthorizeAccess(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, editor bool) (*types.Project, error) {
  userID, err := requestUserID(ctx)
  if err != nil {
    return nil, err
  }

  project, cached := ps.projectCache.Get(ctx, projectID)
  if !cached {
    projects, err := ps.projectRepo.GetByIDs(ctx, ps.dbOr(tx), []uuid.UUID{projectID})
    if err != nil {
      return nil, fmt.Errorf("load project: %w", err)
    }
    if len(projects) == 0 {
      return nil, ErrProjectNotFound
    }
    project = projects[0]
    ps.projectCache.Set(ctx, project)
  }

  if project.UserID == userID {
    return project, nil
  }
  collaborator, err := ps.collaboratorRepo.GetByProjectAndUser(ctx, ps.dbOr(tx), projectID, userID)
  if err != nil {
    return nil, fmt.Errorf("check collaborator: %w", err)
  }
  if collaborator == nil {
    return nil, ErrForbidden
  }
  if editor && collaborator.Role == types.CollaboratorRoleViewer {
    return nil, ErrForbidden
  }
  return project, nil
}

func (ps *projectService) dbOr(tx *gorm.DB) *gorm.DB {
  if tx != nil {
    return tx
  }
  return ps.db
}

const detailsDateLayout = "2006-01-02"

func applyDetailsInput(details map[string]interface{}, input DetailsInput) error {
  if v := strings.TrimSpace(input.PotentialAdopters); v != "" {
    if n, err := strconv.Atoi(v); err != nil || n < 0 {
      return fmt.Errorf("potentialAdopters must be a non-negative integer")
    }
    details["potentialAdopters"] = v
  }
  if v := strings.TrimSpace(input.TargetAdoption); v != "" {
    if n, err := strconv.Atoi(v); err != nil || n < 0 {
      return fmt.Errorf("targetAdoption must be a non-negative integer")
    }
    details["targetAdoption"] = v
  }
  if v := strings.TrimSpace(input.StartingDate); v != "" {
    if _, err := time.Parse(detailsDateLayout, v); err != nil {
      return fmt.Errorf("startingDate must be an ISO date: %w", err)
    }
    details["startingDate"] = v
  }
  if v := strings.TrimSpace(input.EndingDate); v != "" {
    if _, err := time.Parse(detailsDateLayout, v); err != nil {
      return fmt.Errorf("endingDate must be an ISO date: %w", err)
    }
    details["endingDate"] = v
  }
  if v := strings.TrimSpace(input.EngagementType); v != "" {
    if !types.ValidEngagementType(v) {
      return fmt.Errorf("invalid engagementType %q", v)
    }
    details["engagementType"] = v
  }
  if v := strings.TrimSpace(input.MonitoringFrequency); v != "" {
    if !types.ValidMonitoringFrequency(v) {
      return fmt.Errorf("invalid monitoringFrequency %q", v)
    }
    details["monitoringFrequency"] = v
  }
  if input.ResourcesType != nil {
    details["resourcesType"] = input.ResourcesType
  }
  return nil
}
