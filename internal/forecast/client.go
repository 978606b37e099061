package forecast

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "net/url"
  "strings"
  "time"

  "github.com/conservaproj/conserva-backend/internal/logger"
)

// Plot is the rendered forecast figure as returned by the service.
type Plot struct {
  MIMEType string `json:"mime_type"`
  Base64   string `json:"base64"`
}

// DataURI reconstructs a displayable image reference from the MIME type and
// base64 payload.
func (p Plot) DataURI() string {
  return "data:" + p.MIMEType + ";base64," + p.Base64
}

// RunResult carries the primary fitted rates and the plot. The service returns
// parameter series; only the first element of each is consumed.
type RunResult struct {
  Plot        Plot    `json:"plot"`
  Independent float64 `json:"independent"`
  Social      float64 `json:"social"`
}

// Client talks to the external R forecasting service. Run is a single POST
// with no retries: the service can be slow waking from idle, and readiness is
// reported through the separate Wake probe, never by retrying the run itself.
type Client interface {
  Wake(ctx context.Context) error
  Run(ctx context.Context, req *RunRequest) (*RunResult, error)
  BoundaryNames(ctx context.Context, country, region, district string) ([]string, error)
  ReportingForm(ctx context.Context) ([]byte, string, error)
}

type client struct {
  log        *logger.Logger
  baseURL    string
  httpClient *http.Client
}

type ClientConfig struct {
  BaseURL string
  Timeout time.Duration
}

func NewClient(log *logger.Logger, cfg ClientConfig) (Client, error) {
  baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
  if baseURL == "" {
    return nil, fmt.Errorf("missing forecasting service base URL")
  }
  timeout := cfg.Timeout
  if timeout <= 0 {
    // fits can outlast a cold start, so the default is generous
    timeout = 300 * time.Second
  }
  return &client{
    log:        log.With("service", "ForecastClient"),
    baseURL:    baseURL,
    httpClient: &http.Client{Timeout: timeout},
  }, nil
}

func (c *client) Wake(ctx context.Context) error {
  req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/wake", nil)
  if err != nil {
    return err
  }
  resp, err := c.httpClient.Do(req)
  if err != nil {
    return &TransportError{Err: err}
  }
  defer resp.Body.Close()
  body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    return &ServiceError{Status: resp.StatusCode, Body: string(body)}
  }
  var probe json.RawMessage
  if err := json.Unmarshal(body, &probe); err != nil {
    return &MalformedResponseError{Body: string(body), Err: err}
  }
  return nil
}

type runEnvelope struct {
  Plot struct {
    Type   string `json:"type"`
    Base64 string `json:"base64"`
  } `json:"plot"`
  Parameters struct {
    Independent []float64 `json:"independent"`
    Social      []float64 `json:"social"`
  } `json:"parameters"`
}

func (c *client) Run(ctx context.Context, runReq *RunRequest) (*RunResult, error) {
  endpoint := c.baseURL + "/run-forecast?" + runReq.Query().Encode()
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(runReq.CSV))
  if err != nil {
    return nil, err
  }
  req.Header.Set("Content-Type", "text/csv")

  resp, err := c.httpClient.Do(req)
  if err != nil {
    c.log.Warn("Forecast run transport failure", "error", err)
    return nil, &TransportError{Err: err}
  }
  defer resp.Body.Close()
  body, err := io.ReadAll(resp.Body)
  if err != nil {
    return nil, &TransportError{Err: err}
  }
  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    c.log.Warn("Forecast run service failure", "status", resp.StatusCode)
    return nil, &ServiceError{Status: resp.StatusCode, Body: string(body)}
  }

  var envelope runEnvelope
  if err := json.Unmarshal(body, &envelope); err != nil {
    c.log.Error("Forecast run returned invalid JSON", "error", err, "body", string(body))
    return nil, &MalformedResponseError{Body: string(body), Err: err}
  }
  if len(envelope.Parameters.Independent) == 0 || len(envelope.Parameters.Social) == 0 {
    c.log.Error("Forecast run response missing fitted parameters", "body", string(body))
    return nil, &MalformedResponseError{Body: string(body)}
  }
  if envelope.Plot.Base64 == "" {
    c.log.Error("Forecast run response missing plot", "body", string(body))
    return nil, &MalformedResponseError{Body: string(body)}
  }

  return &RunResult{
    Plot:        Plot{MIMEType: envelope.Plot.Type, Base64: envelope.Plot.Base64},
    Independent: envelope.Parameters.Independent[0],
    Social:      envelope.Parameters.Social[0],
  }, nil
}

func (c *client) BoundaryNames(ctx context.Context, country, region, district string) ([]string, error) {
  q := url.Values{}
  if country != "" {
    q.Set("country", country)
  }
  if region != "" {
    q.Set("region", region)
  }
  if district != "" {
    q.Set("district", district)
  }
  req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/boundary-names?"+q.Encode(), nil)
  if err != nil {
    return nil, err
  }
  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, &TransportError{Err: err}
  }
  defer resp.Body.Close()
  body, err := io.ReadAll(resp.Body)
  if err != nil {
    return nil, &TransportError{Err: err}
  }
  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    return nil, &ServiceError{Status: resp.StatusCode, Body: string(body)}
  }
  var names []string
  if err := json.Unmarshal(body, &names); err != nil {
    return nil, &MalformedResponseError{Body: string(body), Err: err}
  }
  return names, nil
}

func (c *client) ReportingForm(ctx context.Context) ([]byte, string, error) {
  req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/standard-reporting-form", nil)
  if err != nil {
    return nil, "", err
  }
  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, "", &TransportError{Err: err}
  }
  defer resp.Body.Close()
  body, err := io.ReadAll(resp.Body)
  if err != nil {
    return nil, "", &TransportError{Err: err}
  }
  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    return nil, "", &ServiceError{Status: resp.StatusCode, Body: string(body)}
  }
  contentType := resp.Header.Get("Content-Type")
  if contentType == "" {
    contentType = "text/csv"
  }
  return body, contentType, nil
}
