package domain

import "errors"

// Domain errors
var (
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrUserNotFound          = errors.New("user not found")
	ErrDuplicateRequest      = errors.New("friend request already sent")
	ErrAlreadyFriends        = errors.New("already friends")
	ErrRequestNotFound       = errors.New("friend request not found")
	ErrNotFriends            = errors.New("not friends")
	ErrSelfRequest           = errors.New("cannot send a friend request to yourself")
	ErrUnknownGame           = errors.New("unknown game")
	ErrInvalidScore          = errors.New("invalid score value")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrUsernameTaken         = errors.New("username already taken")
	ErrInvalidUsername       = errors.New("invalid username")
	ErrUsernameBanned        = errors.New("username not allowed")
	ErrNotParticipant        = errors.New("not a participant of this chat")
	ErrAccountExists         = errors.New("account already exists")
	ErrAccountNotFound       = errors.New("account not found")
	ErrRemoteOperationFailed = errors.New("remote operation failed")
	ErrInternalError         = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrNotFriends) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsConflictError checks if an error reports an already existing relationship or name
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrAlreadyFriends) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrAccountExists)
}

// IsValidationError checks if an error was caused by bad caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrSelfRequest) ||
		errors.Is(err, ErrUnknownGame) ||
		errors.Is(err, ErrInvalidScore) ||
		errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrUsernameBanned)
}

// Error kinds reported to clients
const (
	KindNotAuthenticated = "not_authenticated"
	KindNotFound         = "not_found"
	KindConflict         = "conflict"
	KindInvalid          = "invalid_request"
	KindForbidden        = "forbidden"
	KindUnavailable      = "unavailable"
	KindInternal         = "internal"
)

// KindOf classifies err for client responses
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case IsNotFoundError(err):
		return KindNotFound
	case IsConflictError(err):
		return KindConflict
	case IsValidationError(err):
		return KindInvalid
	case errors.Is(err, ErrNotParticipant):
		return KindForbidden
	case errors.Is(err, ErrRemoteOperationFailed):
		return KindUnavailable
	default:
		return KindInternal
	}
}
