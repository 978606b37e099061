package metrics

import (
  "math"
  "strconv"
  "strings"
)

// NotApplicable is rendered whenever a percentage cannot be derived (zero or
// missing pool, unparsable counts). Raw counts are the only thing persisted;
// every percentage is recomputed on read so later edits to the counts correct
// all displayed values.
const NotApplicable = "N/A"

// AsPercentage renders numerator/denominator as a display percentage with at
// most one decimal place. It never panics and never renders NaN or Inf.
func AsPercentage(numerator, denominator float64) string {
  if !isFinite(denominator) || denominator <= 0 {
    return NotApplicable
  }
  if !isFinite(numerator) || numerator < 0 {
    return NotApplicable
  }
  value := numerator / denominator * 100
  rounded := math.Round(value*10) / 10
  return strconv.FormatFloat(rounded, 'f', -1, 64) + "%"
}

// AsPercentageCounts is AsPercentage over the string-encoded counts stored in
// the project details document.
func AsPercentageCounts(numerator, denominator string) string {
  n, err := strconv.ParseFloat(strings.TrimSpace(numerator), 64)
  if err != nil {
    return NotApplicable
  }
  d, err := strconv.ParseFloat(strings.TrimSpace(denominator), 64)
  if err != nil {
    return NotApplicable
  }
  return AsPercentage(n, d)
}

// AdoptionUnit maps an engagement type to the noun used next to adoption
// counts in reports.
func AdoptionUnit(engagementType string, plural bool) string {
  singular := map[string]string{
    "individual":   "individual",
    "settlement":   "settlement",
    "village":      "village",
    "municipality": "municipality",
  }[engagementType]
  if singular == "" {
    singular = "adopter"
  }
  if !plural {
    return singular
  }
  if singular == "municipality" {
    return "municipalities"
  }
  return singular + "s"
}

// FormatProbability renders a pass-through probability-of-success with exactly
// two decimals and a trailing percent sign. The value is never computed
// locally; nil means the forecasting service has not reported one.
func FormatProbability(p *float64) string {
  if p == nil || !isFinite(*p) {
    return ""
  }
  return strconv.FormatFloat(*p, 'f', 2, 64) + "%"
}

func isFinite(v float64) bool {
  return !math.IsNaN(v) && !math.IsInf(v, 0)
}
