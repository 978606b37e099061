package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/conservaproj/conserva-backend/internal/repos"
  "github.com/conservaproj/conserva-backend/internal/services"
)

type ProjectHandler struct {
  projectService services.ProjectService
}

func NewProjectHandler(projectService services.ProjectService) *ProjectHandler {
  return &ProjectHandler{projectService: projectService}
}

type detailsBody struct {
  PotentialAdopters   string   `json:"potential_adopters"`
  TargetAdoption      string   `json:"target_adoption"`
  StartingDate        string   `json:"starting_date"`
  EndingDate          string   `json:"ending_date"`
  EngagementType      string   `json:"engagement_type"`
  MonitoringFrequency string   `json:"monitoring_frequency"`
  ResourcesType       []string `json:"resources_type"`
}

func (b *detailsBody) toInput() *services.DetailsInput {
  if b == nil {
    return nil
  }
  return &services.DetailsInput{
    PotentialAdopters:   b.PotentialAdopters,
    TargetAdoption:      b.TargetAdoption,
    StartingDate:        b.StartingDate,
    EndingDate:          b.EndingDate,
    EngagementType:      b.EngagementType,
    MonitoringFrequency: b.MonitoringFrequency,
    ResourcesType:       b.ResourcesType,
  }
}

func (ph *ProjectHandler) Create(c *gin.Context) {
  var req struct {
    Name        string       `json:"name"`
    Description string       `json:"description"`
    CountryCode string       `json:"country_code"`
    Details     *detailsBody `json:"details"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_body", "invalid request body")
    return
  }
  project, err := ph.projectService.CreateProject(c.Request.Context(), nil, services.CreateProjectInput{
    Name:        req.Name,
    Description: req.Description,
    CountryCode: req.CountryCode,
    Details:     req.Details.toInput(),
  })
  if err != nil {
    RespondError(c, http.StatusBadRequest, "create_failed", err)
    return
  }
  RespondOK(c, gin.H{"project": project})
}

func (ph *ProjectHandler) Get(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  project, err := ph.projectService.GetProject(c.Request.Context(), nil, projectID)
  if err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"project": project})
}

func (ph *ProjectHandler) List(c *gin.Context) {
  projects, err := ph.projectService.ListProjects(c.Request.Context(), nil)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "list_failed", err)
    return
  }
  RespondOK(c, gin.H{"projects": projects})
}

func (ph *ProjectHandler) Update(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  var req struct {
    Name        string `json:"name"`
    Description string `json:"description"`
    CountryCode string `json:"country_code"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_body", "invalid request body")
    return
  }
  project, err := ph.projectService.UpdateProject(c.Request.Context(), nil, projectID, req.Name, req.Description, req.CountryCode)
  if err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"project": project})
}

func (ph *ProjectHandler) Delete(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  if err := ph.projectService.DeleteProject(c.Request.Context(), nil, projectID); err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"success": true})
}

func (ph *ProjectHandler) UpdateDetails(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  var req detailsBody
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_body", "invalid request body")
    return
  }
  project, err := ph.projectService.UpdateDetails(c.Request.Context(), nil, projectID, *req.toInput())
  if err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"project": project})
}

func (ph *ProjectHandler) UpdateDiagnostic(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  var req struct {
    Responses map[string]int `json:"responses"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_body", "invalid request body")
    return
  }
  if err := ph.projectService.UpdateDiagnostic(c.Request.Context(), nil, projectID, req.Responses); err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"success": true})
}

func (ph *ProjectHandler) AddCollaborator(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  var req struct {
    UserID string `json:"user_id"`
    Role   string `json:"role"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_body", "invalid request body")
    return
  }
  userID, err := uuid.Parse(req.UserID)
  if err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_user_id", "invalid user id")
    return
  }
  collaborator, err := ph.projectService.AddCollaborator(c.Request.Context(), nil, projectID, userID, req.Role)
  if err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"collaborator": collaborator})
}

func (ph *ProjectHandler) ListCollaborators(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  collaborators, err := ph.projectService.ListCollaborators(c.Request.Context(), nil, projectID)
  if err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"collaborators": collaborators})
}

func (ph *ProjectHandler) RemoveCollaborator(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  userID, err := uuid.Parse(c.Param("userID"))
  if err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_user_id", "invalid user id")
    return
  }
  if err := ph.projectService.RemoveCollaborator(c.Request.Context(), nil, projectID, userID); err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"success": true})
}

func projectIDParam(c *gin.Context) (uuid.UUID, bool) {
  projectID, err := uuid.Parse(c.Param("projectID"))
  if err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_project_id", "invalid project id")
    return uuid.Nil, false
  }
  return projectID, true
}

func respondProjectError(c *gin.Context, err error) {
  switch {
  case errors.Is(err, services.ErrProjectNotFound):
    RespondError(c, http.StatusNotFound, "not_found", err)
  case errors.Is(err, services.ErrForbidden):
    RespondError(c, http.StatusForbidden, "forbidden", err)
  case errors.Is(err, repos.ErrDetailsConflict):
    RespondError(c, http.StatusConflict, "details_conflict", err)
  default:
    RespondError(c, http.StatusBadRequest, "project_error", err)
  }
}
