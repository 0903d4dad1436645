package errors

import "fmt"

var (
	// Terminal for the triggering event and reported back to the
	// originating connection. They never partially mutate state.
	ErrValidation  = fmt.Errorf("validation failed")
	ErrUnknownUser = fmt.Errorf("unknown user")
	ErrForbidden   = fmt.Errorf("forbidden")

	// ErrStorageUnavailable aborts the in-flight operation. Writes already
	// committed before the failure are kept, no compensating rollback.
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")

	ErrNotFound           = fmt.Errorf("not found")
	ErrConversationExists = fmt.Errorf("conversation already exists")
	ErrSameParticipant    = fmt.Errorf("a conversation requires two distinct participants")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password complexity not met")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrOnlyWordFiles = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords    = fmt.Errorf("no words have been found")
)
