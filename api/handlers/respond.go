package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cityfix/core/apperr"
	"cityfix/core/auth"
	"cityfix/core/roles"
	"cityfix/core/store"
	"cityfix/core/utils"
	"github.com/go-playground/validator/v10"
)

const payloadMaxBytes = 1 << 20

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(code, key, message string) map[string]any {
	return map[string]any{
		"error": map[string]string{
			"code":     code,
			"i18n_key": key,
			"message":  message,
		},
	}
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidTransition, apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders workflow errors with their kind and i18n key. Anything
// else is logged and hidden behind a 500.
func writeError(w http.ResponseWriter, logger *utils.Logger, r *http.Request, err error) {
	var werr *apperr.Error
	if errors.As(err, &werr) {
		writeJSON(w, statusForKind(werr.Kind), errorBody(string(werr.Kind), werr.Key, werr.Message))
		return
	}
	if errors.Is(err, store.ErrConflict) {
		writeJSON(w, http.StatusConflict, errorBody(string(apperr.KindConflict), "common.error.conflict", "concurrent update"))
		return
	}
	if logger != nil {
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, http.StatusInternalServerError, errorBody("internal", "common.error.internal", "internal server error"))
}

// decodeJSON reads a bounded body into dst and runs the struct's validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, payloadMaxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.NewValidationError("common.error.emptyBody", "request body is required")
		}
		return apperr.NewValidationError("common.error.badJSON", err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.NewValidationError("common.error.invalidPayload", describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func currentActor(w http.ResponseWriter, r *http.Request) (*roles.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return actor, true
}
