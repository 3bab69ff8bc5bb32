package ghdb

import (
	"errors"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v75/github"
)

// ErrNotFound is returned when a path, ref or commit does not exist.
var ErrNotFound = errors.New("not found")

// ConflictError is returned when GitHub rejects a write because the caller's
// view of the repository is stale: a file SHA that no longer matches, a
// missing SHA for an existing file, or a ref update that is not a fast forward.
type ConflictError struct {
	Path   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Path, e.Reason)
}

// IsConflict reports whether err is (or wraps) a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// classify maps a go-github error onto the package's sentinel errors. Only
// write operations turn 409/422 into conflicts; on reads they stay plain errors.
func classify(op, path string, err error, write bool) error {
	if err == nil {
		return nil
	}
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
		case http.StatusConflict, http.StatusUnprocessableEntity:
			if write {
				return &ConflictError{Path: path, Reason: ghErr.Message}
			}
		}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
