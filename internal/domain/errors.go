package domain

import "errors"

// Domain errors
var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrParticipantNotFound = errors.New("participant not found in competition")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrAlreadyParticipant  = errors.New("user is already a participant")
	ErrAlreadyInvited      = errors.New("user already has a pending invitation")
	ErrCompetitionPrivate  = errors.New("competition is not public")
	ErrCompetitionStarted  = errors.New("competition has already started")
	ErrCompetitionEnded    = errors.New("competition has ended")
	ErrCreatorCannotLeave  = errors.New("creator must delete the competition, not leave it")
	ErrNotCreator          = errors.New("only the creator may do this")
	ErrFieldLocked         = errors.New("field is not editable in the current status")
	ErrInvalidDates        = errors.New("end date must be after start date")
	ErrInvalidScoringType  = errors.New("unknown scoring type")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrSyncInProgress      = errors.New("a sync for this participant is already in progress")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrCompetitionNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrInvitationNotFound)
}

// IsAuthorizationError checks if an error is terminal for the caller and not
// fixable by resubmitting the same request.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrCreatorCannotLeave) ||
		errors.Is(err, ErrNotCreator) ||
		errors.Is(err, ErrCompetitionPrivate)
}
