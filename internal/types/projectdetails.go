package types

import (
  "encoding/json"

  "gorm.io/datatypes"
)

// ProjectDetails is the typed view of the project's jsonb details document.
// Counts are kept string-encoded, matching what the intake forms submit; the
// derived-metrics layer parses them on read. The stored document may carry keys
// this struct does not know about, so writes must never round-trip through it
// (see repos.ProjectRepo.MergeDetails).
type ProjectDetails struct {
  PotentialAdopters   string        `json:"potentialAdopters,omitempty"`
  TargetAdoption      string        `json:"targetAdoption,omitempty"`
  StartingDate        string        `json:"startingDate,omitempty"`
  EndingDate          string        `json:"endingDate,omitempty"`
  EngagementType      string        `json:"engagementType,omitempty"`
  MonitoringFrequency string        `json:"monitoringFrequency,omitempty"`
  ResourcesType       []string      `json:"resourcesType,omitempty"`
  Growth              *GrowthResult `json:"growth,omitempty"`
}

// GrowthResult holds the fitted diffusion-model parameters written by the
// forecast pipeline. A nil Growth on ProjectDetails means no forecast has been
// run yet; zero values inside a present Growth are real fitted values.
type GrowthResult struct {
  Independent          float64  `json:"independent"`
  Social               float64  `json:"social"`
  LastReportedAdoption *float64 `json:"lastReportedAdoption,omitempty"`
  ProbabilityOfSuccess *float64 `json:"probabilityOfSuccess,omitempty"`
}

const (
  EngagementIndividual   = "individual"
  EngagementSettlement   = "settlement"
  EngagementVillage      = "village"
  EngagementMunicipality = "municipality"
)

var EngagementTypes = []string{
  EngagementIndividual,
  EngagementSettlement,
  EngagementVillage,
  EngagementMunicipality,
}

var MonitoringFrequencies = []string{
  "daily",
  "weekly",
  "bi-weekly",
  "monthly",
  "bi-monthly",
  "quarterly",
  "semi-annually",
  "annually",
}

func ValidEngagementType(v string) bool {
  for _, t := range EngagementTypes {
    if t == v {
      return true
    }
  }
  return false
}

func ValidMonitoringFrequency(v string) bool {
  for _, f := range MonitoringFrequencies {
    if f == v {
      return true
    }
  }
  return false
}

// DecodeDetails parses the stored document into the typed view. An empty or
// null document decodes to the zero value.
func DecodeDetails(raw datatypes.JSON) (*ProjectDetails, error) {
  details := &ProjectDetails{}
  if len(raw) == 0 || string(raw) == "null" {
    return details, nil
  }
  if err := json.Unmarshal(raw, details); err != nil {
    return nil, err
  }
  return details, nil
}

// DecodeDetailsMap parses the stored document with every key preserved, for
// read-modify-write merges.
func DecodeDetailsMap(raw datatypes.JSON) (map[string]interface{}, error) {
  out := map[string]interface{}{}
  if len(raw) == 0 || string(raw) == "null" {
    return out, nil
  }
  if err := json.Unmarshal(raw, &out); err != nil {
    return nil, err
  }
  return out, nil
}

// DecodeDiagnostic parses the context diagnostic document (question id to
// Likert response).
func DecodeDiagnostic(raw datatypes.JSON) (map[string]int, error) {
  out := map[string]int{}
  if len(raw) == 0 || string(raw) == "null" {
    return out, nil
  }
  if err := json.Unmarshal(raw, &out); err != nil {
    return nil, err
  }
  return out, nil
}
