// internal/membership/domain.go
package membership

import "errors"

var (
	// ErrDuplicateUsername rejects a registration for a taken username.
	ErrDuplicateUsername = errors.New("username is already taken")

	// ErrMemberNotFound means the username resolves to nobody.
	ErrMemberNotFound = errors.New("member not found")

	// ErrRateLimited rejects a registration burst.
	ErrRateLimited = errors.New("registration rate limit exceeded")
)
