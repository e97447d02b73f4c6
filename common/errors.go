package common

const (
	ErrCodeBadRequestInvalidBody     = "bad_request.body.invalid"
	ErrCodeBadRequestInvalidUsername = "bad_request.body.username.invalid"
	ErrCodeBadRequestInvalidEmail    = "bad_request.body.email.invalid"
	ErrCodeUnauthorized              = "unauthorized"
	ErrCodeNotFoundQueue             = "not_found.queue"
	ErrCodeConflictUser              = "conflict.user"
	ErrCodeInternal                  = "internal"
)

var (
	ErrBadRequestInvalidUsername = GuardianError{Code: ErrCodeBadRequestInvalidUsername}
	ErrBadRequestInvalidEmail    = GuardianError{Code: ErrCodeBadRequestInvalidEmail}
	ErrNotFoundQueue             = GuardianError{Code: ErrCodeNotFoundQueue}
	ErrConflictUser              = GuardianError{Code: ErrCodeConflictUser}
	ErrInternal                  = GuardianError{Code: ErrCodeInternal}
)

type GuardianError struct {
	Code string
}

func (ge GuardianError) Error() string {
	return ge.Code
}
