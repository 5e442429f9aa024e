package errutil

import (
	"errors"
	"net/http"
)

const internalServerErrorMsg = "internal server error"

type HttpError struct {
	code int
	err  error
}

func (e *HttpError) Error() string {
	return e.err.Error()
}

func (e *HttpError) Unwrap() error {
	return e.err
}

func (e *HttpError) Code() int {
	return e.code
}

func newHttpError(code int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(code))
	}
	return &HttpError{code: code, err: err}
}

func BadRequestError(err error) error {
	return newHttpError(http.StatusBadRequest, err)
}

func ValidationError(err error) error {
	return newHttpError(http.StatusBadRequest, err)
}

func UnauthorizedError(err error) error {
	return newHttpError(http.StatusUnauthorized, err)
}

func ForbiddenError(err error) error {
	return newHttpError(http.StatusForbidden, err)
}

func NotFoundError(err error) error {
	return newHttpError(http.StatusNotFound, err)
}

func InternalServerError(err error) error {
	return newHttpError(http.StatusInternalServerError, err)
}

// ParseHttpError maps err to a status code and a message safe to show the caller.
// Errors that are not HttpError never leak their text.
func ParseHttpError(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		if httpErr.code >= http.StatusInternalServerError {
			return httpErr.code, internalServerErrorMsg
		}
		return httpErr.code, httpErr.Error()
	}

	return http.StatusInternalServerError, internalServerErrorMsg
}

func IsNotFound(err error) bool {
	var httpErr *HttpError
	return errors.As(err, &httpErr) && httpErr.code == http.StatusNotFound
}
