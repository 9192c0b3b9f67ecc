package services

import "errors"

// Shared errors used across services and the HTTP error mapping.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed     = errors.New("validation failed")
	ErrInvalidScore         = errors.New("scores must be non-negative integers")
	ErrInvalidPhase         = errors.New("unknown tournament phase")
	ErrMatchAlreadyStarted  = errors.New("match has already started, predictions are closed")
	ErrMatchLocked          = errors.New("match is administratively locked")
	ErrMatchNotFinished     = errors.New("match has not finished")
	ErrParticipantBlocked   = errors.New("participant is blocked in this league")
	ErrPhaseLocked          = errors.New("phase is locked")
	ErrPhaseAlreadyUnlocked = errors.New("phase is already unlocked")
	ErrBracketPickInvalid   = errors.New("bracket pick references an unknown match or team")
	ErrBracketPhaseClosed   = errors.New("bracket picks for this match are closed")
	ErrShootoutWinnerUnknown = errors.New("shootout winner is not one of the match teams")

	// Authorization
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Entity-specific not-found errors; more context than the generic one.
	ErrMatchNotFound       = errors.New("match not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrLeagueNotFound      = errors.New("league not found")
	ErrPredictionNotFound  = errors.New("prediction not found")
	ErrBracketNotFound     = errors.New("bracket not found")
	ErrPhaseStatusNotFound = errors.New("phase status not found")
)
