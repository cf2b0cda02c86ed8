package domain

import "errors"

var (
	// ErrInvalidConfig is returned when a sprint configuration fails validation.
	ErrInvalidConfig = errors.New("invalid sprint config")
	// ErrInvalidInteraction is returned for a malformed answer or skip.
	ErrInvalidInteraction = errors.New("invalid interaction")
	// ErrInvalidFilter is returned for an unknown review filter.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrUnauthenticated is returned when no identity accompanies a request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the identity does not own the session.
	ErrForbidden = errors.New("session belongs to another user")
	// ErrNoQuestionsAvailable is returned when the pool is empty for a filter.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("sprint session not found")
	// ErrQuestionNotFound indicates the question bank has no such question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionNotInSession indicates the question is not part of the sprint.
	ErrQuestionNotInSession = errors.New("question not part of this sprint")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrSessionNotActive is returned when the session left IN_PROGRESS.
	ErrSessionNotActive = errors.New("sprint session not active")
	// ErrSessionCompleted is returned when completion is requested twice.
	ErrSessionCompleted = errors.New("sprint session already completed")
)

// Kind groups errors so callers can react without matching every sentinel.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthenticated"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindState        Kind = "state"
	KindUpstream     Kind = "upstream"
)

// KindOf classifies err. Anything unrecognised is an upstream failure.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidInteraction),
		errors.Is(err, ErrInvalidFilter),
		errors.Is(err, ErrQuestionNotInSession),
		errors.Is(err, ErrOptionNotFound):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrNoQuestionsAvailable):
		return KindNotFound
	case errors.Is(err, ErrSessionNotActive),
		errors.Is(err, ErrSessionCompleted):
		return KindState
	}
	return KindUpstream
}
