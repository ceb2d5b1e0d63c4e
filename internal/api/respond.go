package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rentalhub/internal/database"
	"rentalhub/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const internalErrorMessage = "internal error"

// statusFromError maps the service taxonomy onto HTTP codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrRentalConflict):
		// date overlap at creation is reported as bad input
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError hides internal failures from the caller and logs them in full.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	code := statusFromError(err)
	if code == http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int64("actor_id", actorFromContext(r.Context())).
			Msg("request failed")
		writeError(w, code, internalErrorMessage)
		return
	}
	writeError(w, code, err.Error())
}

// decodeAndValidate reads a JSON body into dst and runs its struct tags.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := v.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return errors.New(describeValidation(fieldErrs))
		}
		return err
	}
	return nil
}

func describeValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "min", "max", "gte", "lte", "len":
			parts = append(parts, field+" must satisfy "+fe.Tag()+"="+fe.Param())
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
