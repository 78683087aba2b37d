package service

import "errors"

var (
	// ErrValidation marks input rejected before any storage or transport
	// call. Wrapped errors carry the specific field failure.
	ErrValidation = errors.New("validation failed")

	// ErrSurveyNotActive is returned when a submission targets a survey
	// that is not currently in progress.
	ErrSurveyNotActive = errors.New("survey is not accepting responses")

	// ErrResponseFrozen is returned when a submission targets a response
	// already marked complete.
	ErrResponseFrozen = errors.New("response has already been submitted")

	// ErrSurveyNotFound is returned when the referenced survey does not exist.
	ErrSurveyNotFound = errors.New("survey not found")

	// ErrStorageFailure wraps persistence-layer failures.
	ErrStorageFailure = errors.New("storage failure")
)
