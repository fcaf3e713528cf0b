package services

import (
	"errors"
	"strings"
)

// ErrInvalidCredentials is returned on any login failure. One message for
// both bad usernames and bad passwords, so account existence is never
// disclosed.
var ErrInvalidCredentials = errors.New("invalid username/email or password")

// ValidationErrors is a list of human-readable messages describing why a
// submission was rejected. The request is never partially applied.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return strings.Join(v, "; ")
}

// AsValidationErrors unwraps err into ValidationErrors if it is one.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
