package forecast

import (
  "errors"
  "testing"
)

func TestAssembleRejectsEmptyCSV(t *testing.T) {
  _, err := AssembleRunRequest("", "100", "40", 0, 0)
  var vErr *ValidationError
  if !errors.As(err, &vErr) {
    t.Fatalf("empty csv: want ValidationError got=%v", err)
  }
  if vErr.Field != "csv" {
    t.Fatalf("empty csv field: want=csv got=%s", vErr.Field)
  }
  if _, err := AssembleRunRequest("   \n\t", "100", "", 0, 0); !errors.As(err, &vErr) {
    t.Fatalf("whitespace csv: want ValidationError got=%v", err)
  }
}

func TestAssembleRejectsBadPotentialAdopters(t *testing.T) {
  for _, raw := range []string{"", "abc", "-3", "12.5"} {
    _, err := AssembleRunRequest("date,count\n2024-01-01,5", raw, "", 0, 0)
    var vErr *ValidationError
    if !errors.As(err, &vErr) {
      t.Fatalf("potentialAdopters=%q: want ValidationError got=%v", raw, err)
    }
    if vErr.Field != "potentialAdopters" {
      t.Fatalf("potentialAdopters=%q field: want=potentialAdopters got=%s", raw, vErr.Field)
    }
  }
}

func TestAssembleRejectsBadTargetAdoption(t *testing.T) {
  _, err := AssembleRunRequest("date,count\n2024-01-01,5", "100", "-1", 0, 0)
  var vErr *ValidationError
  if !errors.As(err, &vErr) {
    t.Fatalf("negative target: want ValidationError got=%v", err)
  }
}

func TestAssembleOptionalFields(t *testing.T) {
  req, err := AssembleRunRequest("date,count\n2024-01-01,5", "100", "", 0, 0)
  if err != nil {
    t.Fatalf("assemble: %v", err)
  }
  if req.TargetAdoption != nil {
    t.Fatalf("target: want nil got=%v", *req.TargetAdoption)
  }
  q := req.Query()
  if q.Get("potentialAdopters") != "100" {
    t.Fatalf("potentialAdopters param: want=100 got=%s", q.Get("potentialAdopters"))
  }
  if _, ok := q["targetAdoption"]; ok {
    t.Fatalf("targetAdoption param should be absent")
  }
  if _, ok := q["width"]; ok {
    t.Fatalf("width param should be absent when unset")
  }
}

func TestAssembleKeepsCSVByteExact(t *testing.T) {
  csv := "date,count\r\n2024-01-01, 5\r\n"
  req, err := AssembleRunRequest(csv, "100", "40", 640, 480)
  if err != nil {
    t.Fatalf("assemble: %v", err)
  }
  if string(req.CSV) != csv {
    t.Fatalf("csv body changed: want=%q got=%q", csv, string(req.CSV))
  }
  q := req.Query()
  if q.Get("targetAdoption") != "40" || q.Get("width") != "640" || q.Get("height") != "480" {
    t.Fatalf("query params: got=%v", q)
  }
}
