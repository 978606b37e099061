package forecast

import "fmt"

// ValidationError marks bad user input caught before any network call.
type ValidationError struct {
  Field  string
  Reason string
}

func (e *ValidationError) Error() string {
  return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError marks an unreachable forecasting service.
type TransportError struct {
  Err error
}

func (e *TransportError) Error() string {
  return fmt.Sprintf("forecasting service unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError marks a non-2xx answer from the forecasting service.
type ServiceError struct {
  Status int
  Body   string
}

func (e *ServiceError) Error() string {
  return fmt.Sprintf("forecasting service returned %d", e.Status)
}

// MalformedResponseError marks a 2xx answer whose body is not valid JSON or is
// missing the expected fields. Body carries the raw payload for diagnosis.
type MalformedResponseError struct {
  Body string
  Err  error
}

func (e *MalformedResponseError) Error() string {
  if e.Err != nil {
    return fmt.Sprintf("invalid forecasting service response: %v", e.Err)
  }
  return "invalid forecasting service response"
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// PersistenceError marks a failed write of an otherwise successful forecast
// result. The fitted parameters and plot are still usable by the caller.
type PersistenceError struct {
  Err error
}

func (e *PersistenceError) Error() string {
  return fmt.Sprintf("persist forecast result: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
