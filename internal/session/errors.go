package session

import "fmt"

// AuthenticationError reports a failed login step. It is fatal for a run.
type AuthenticationError struct {
	Step string
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed at %s: %v", e.Step, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
