package handlers

import (
  "errors"
  "io"
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"

  "github.com/conservaproj/conserva-backend/internal/forecast"
  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/services"
)

// forecastFailureMessage is the only thing a failed run tells the user; the
// technical detail stays in the logs.
const forecastFailureMessage = "Failed to load plot. Please try again later."

type ForecastHandler struct {
  log             *logger.Logger
  forecastService services.ForecastService
}

func NewForecastHandler(baseLog *logger.Logger, forecastService services.ForecastService) *ForecastHandler {
  return &ForecastHandler{
    log:             baseLog.With("handler", "ForecastHandler"),
    forecastService: forecastService,
  }
}

// Run accepts the monitoring CSV either as a multipart "file" field or as the
// raw request body, with the remaining parameters in the query string.
func (fh *ForecastHandler) Run(c *gin.Context) {
  projectID, ok := projectIDParam(c)
  if !ok {
    return
  }

  csvText, err := readCSV(c)
  if err != nil {
    RespondErrorMessage(c, http.StatusBadRequest, "invalid_csv", "could not read monitoring data")
    return
  }

  input := services.ForecastInput{
    CSV:               csvText,
    PotentialAdopters: c.Query("potentialAdopters"),
    TargetAdoption:    c.Query("targetAdoption"),
    Width:             intQuery(c, "width"),
    Height:            intQuery(c, "height"),
  }

  outcome, err := fh.forecastService.RunForecast(c.Request.Context(), nil, projectID, input)
  if err != nil {
    fh.respondRunError(c, err)
    return
  }
  RespondOK(c, outcome)
}

func (fh *ForecastHandler) respondRunError(c *gin.Context, err error) {
  var vErr *forecast.ValidationError
  switch {
  case errors.As(err, &vErr):
    RespondError(c, http.StatusBadRequest, "invalid_input", vErr)
  case errors.Is(err, services.ErrProjectNotFound):
    RespondError(c, http.StatusNotFound, "not_found", err)
  case errors.Is(err, services.ErrForbidden):
    RespondError(c, http.StatusForbidden, "forbidden", err)
  default:
    fh.log.Error("Forecast run failed", "error", err)
    RespondErrorMessage(c, http.StatusBadGateway, "forecast_failed", forecastFailureMessage)
  }
}

func (fh *ForecastHandler) Status(c *gin.Context) {
  RespondOK(c, gin.H{"status": fh.forecastService.ServiceStatus(c.Request.Context())})
}

func (fh *ForecastHandler) BoundaryNames(c *gin.Context) {
  names, err := fh.forecastService.BoundaryNames(
    c.Request.Context(),
    c.Query("country"),
    c.Query("region"),
    c.Query("district"),
  )
  if err != nil {
    fh.log.Error("Boundary names lookup failed", "error", err)
    RespondErrorMessage(c, http.StatusBadGateway, "boundary_names_failed", forecastFailureMessage)
    return
  }
  RespondOK(c, gin.H{"names": names})
}

func (fh *ForecastHandler) ReportingForm(c *gin.Context) {
  body, contentType, err := fh.forecastService.ReportingForm(c.Request.Context())
  if err != nil {
    fh.log.Error("Reporting form fetch failed", "error", err)
    RespondErrorMessage(c, http.StatusBadGateway, "reporting_form_failed", forecastFailureMessage)
    return
  }
  c.Data(http.StatusOK, contentType, body)
}

func readCSV(c *gin.Context) (string, error) {
  if file, err := c.FormFile("file"); err == nil {
    f, err := file.Open()
    if err != nil {
      return "", err
    }
    defer f.Close()
    raw, err := io.ReadAll(f)
    if err != nil {
      return "", err
    }
    return string(raw), nil
  }
  raw, err := io.ReadAll(c.Request.Body)
  if err != nil {
    return "", err
  }
  return string(raw), nil
}

func intQuery(c *gin.Context, key string) int {
  v, err := strconv.Atoi(c.Query(key))
  if err != nil {
    return 0
  }
  return v
}
