package accounts

import "fmt"

// EmailTakenError is returned when an account already uses the email.
type EmailTakenError struct {
	Email string
}

// Error implements the error interface.
func (e EmailTakenError) Error() string {
	return fmt.Sprintf("email %q is already registered", e.Email)
}

// InvalidCredentialsError is returned for an unknown email, a wrong password
// or a disabled account. The cases are deliberately indistinguishable.
type InvalidCredentialsError struct{}

// Error implements the error interface.
func (InvalidCredentialsError) Error() string {
	return "invalid email or password"
}

// UnauthenticatedError is returned when a token is missing, malformed,
// expired or revoked.
type UnauthenticatedError struct {
	Reason string
}

// Error implements the error interface.
func (e UnauthenticatedError) Error() string {
	return "unauthenticated: " + e.Reason
}

// UserNotFoundError is returned when the requested user does not exist.
type UserNotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e UserNotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.ID)
}

// InvalidInputError is returned for account input that fails validation.
type InvalidInputError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e InvalidInputError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}
