package reports

import "cityfix/core/apperr"

func validationError(key, format string, args ...any) error {
	return apperr.New(apperr.KindValidation, key, format, args...)
}

func authorizationError(key, format string, args ...any) error {
	return apperr.New(apperr.KindAuthorization, key, format, args...)
}

func notFoundError(key, format string, args ...any) error {
	return apperr.New(apperr.KindNotFound, key, format, args...)
}

func invalidTransitionError(key, format string, args ...any) error {
	return apperr.New(apperr.KindInvalidTransition, key, format, args...)
}
