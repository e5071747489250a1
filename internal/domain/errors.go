package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccountInactive     = errors.New("account inactive")
	ErrProviderFailure     = errors.New("provider failure")

	// Operational gates. Handlers surface these so a blocked job fails
	// visibly and is retried once the flag is cleared.
	ErrKillSwitchEnabled  = errors.New("kill switch enabled")
	ErrGenerationDisabled = errors.New("generation disabled")
	ErrPublishingDisabled = errors.New("publishing disabled")
)
