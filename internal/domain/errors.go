package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails a business rule or a wizard
// stage precondition is unmet (e.g. arrival set before departure, seats out
// of range). It is recovered as a field-level message.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrLocationNotFound is returned when the geocoding collaborator answered
// but had no candidate for the supplied text.
var ErrLocationNotFound = errors.New("location not found")

// ErrGeocodeUnavailable is returned when the geocoding collaborator could
// not be reached or timed out. Non-fatal: the stage simply stays incomplete.
var ErrGeocodeUnavailable = errors.New("geocoding unavailable")

// ErrRouteUnavailable is returned when the directions collaborator could not
// produce routes. Callers fall back to a straight-line estimate.
var ErrRouteUnavailable = errors.New("route unavailable")

// ErrPersistence is returned when the trip store rejected a write.
var ErrPersistence = errors.New("persistence error")

// ErrReturnTripFailed marks a publish where the outbound trip was stored but
// the return trip was not. The outbound trip stays published.
var ErrReturnTripFailed = errors.New("outbound published, return failed")

// ErrStaleResponse marks a collaborator response that arrived after a newer
// request for the same field was issued. It never leaves the wizard.
var ErrStaleResponse = errors.New("stale response")

// ErrDraftReset is returned when a wizard was resumed at a stage whose
// prior-stage data was incomplete and had to be reset to the first stage.
var ErrDraftReset = errors.New("draft reset")

// ErrWizardClosed is returned for any operation on a wizard that has already
// been published or abandoned.
var ErrWizardClosed = errors.New("wizard closed")
