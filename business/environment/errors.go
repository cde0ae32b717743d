package environment

import "errors"

var (
	ErrInvalidAction            = errors.New("invalid action")
	ErrMissingRewardComponent   = errors.New("missing reward component")
	ErrNonFiniteRewardComponent = errors.New("non-finite reward component")
	ErrEpisodeTerminated        = errors.New("episode already terminated")
	ErrNotReset                 = errors.New("environment has not been reset")
	ErrObservationShape         = errors.New("observation has wrong length")
	ErrNegativeWeight           = errors.New("reward weight must be a non-negative finite number")
	ErrUnknownRewardComponent   = errors.New("unknown reward component")
	ErrInvalidParam             = errors.New("invalid environment parameter")
)
