package forecast

import (
  "net/url"
  "strconv"
  "strings"
)

// RunRequest is a validated, ready-to-send forecast run. CSV is forwarded
// byte-exact: the forecasting service parses it positionally.
type RunRequest struct {
  PotentialAdopters int
  TargetAdoption    *int
  Width             int
  Height            int
  CSV               []byte
}

// AssembleRunRequest validates raw form state and packages it for the client.
// An empty CSV or a count that does not parse as a non-negative integer fails
// fast with a *ValidationError so garbage never reaches the wire.
func AssembleRunRequest(csvText, potentialAdopters, targetAdoption string, width, height int) (*RunRequest, error) {
  if strings.TrimSpace(csvText) == "" {
    return nil, &ValidationError{Field: "csv", Reason: "historical adoption data is required"}
  }
  pool, err := parseCount(potentialAdopters)
  if err != nil {
    return nil, &ValidationError{Field: "potentialAdopters", Reason: "must be a non-negative integer"}
  }
  req := &RunRequest{
    PotentialAdopters: pool,
    CSV:               []byte(csvText),
  }
  if strings.TrimSpace(targetAdoption) != "" {
    target, err := parseCount(targetAdoption)
    if err != nil {
      return nil, &ValidationError{Field: "targetAdoption", Reason: "must be a non-negative integer"}
    }
    req.TargetAdoption = &target
  }
  if width > 0 {
    req.Width = width
  }
  if height > 0 {
    req.Height = height
  }
  return req, nil
}

func parseCount(raw string) (int, error) {
  n, err := strconv.Atoi(strings.TrimSpace(raw))
  if err != nil {
    return 0, err
  }
  if n < 0 {
    return 0, strconv.ErrRange
  }
  return n, nil
}

// Query renders the request's query parameters in the collaborator's expected
// form.
func (r *RunRequest) Query() url.Values {
  q := url.Values{}
  q.Set("potentialAdopters", strconv.Itoa(r.PotentialAdopters))
  if r.TargetAdoption != nil {
    q.Set("targetAdoption", strconv.Itoa(*r.TargetAdoption))
  }
  if r.Width > 0 {
    q.Set("width", strconv.Itoa(r.Width))
  }
  if r.Height > 0 {
    q.Set("height", strconv.Itoa(r.Height))
  }
  return q
}
