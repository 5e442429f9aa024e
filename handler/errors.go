package handler

import (
	"engage/pkg/errutil"
	"engage/repo"
	"errors"
	"fmt"
)

var (
	ErrUnauthorized         = errutil.UnauthorizedError(errors.New("unauthorized"))
	ErrNoRecipients         = errutil.BadRequestError(errors.New("no recipients"))
	ErrNotificationNotFound = repo.ErrNotificationNotFound
)

func invalidRequest(format string, args ...interface{}) error {
	return errutil.ValidationError(fmt.Errorf("invalid request: "+format, args...))
}

var (
	errUnsupportedScheme = errors.New("unsupported url scheme")
	errMissingHost       = errors.New("missing url host")
)
