package handlers

import (
  "github.com/gin-gonic/gin"

  "github.com/conservaproj/conserva-backend/internal/services"
)

type ReportHandler struct {
  reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
  return &ReportHandler{reportService: reportService}
}

func (rh *ReportHandler) Get(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }
  report, err := rh.reportService.BuildReport(c.Request.Context(), nil, projectID)
  if err != nil {
    respondProjectError(c, err)
    return
  }
  RespondOK(c, gin.H{"report": report})
}
