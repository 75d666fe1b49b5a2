package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"chefitup/internal/app"
	"chefitup/internal/assistant"
	"chefitup/internal/instacart"
	"chefitup/internal/mealplan"
	"chefitup/internal/recipe"
	"chefitup/internal/session"
	"chefitup/internal/shopping"
	"chefitup/internal/supabase"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return badRequest{fmt.Errorf("invalid JSON payload: %w", err)}
	}
	return validate.Struct(dst)
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		br         badRequest
		validation validator.ValidationErrors
		provider   *assistant.ProviderError
		parse      *assistant.ParseError
		export     *instacart.ExportError
		remote     *supabase.Error
	)

	switch {
	case errors.As(err, &br), errors.As(err, &validation),
		errors.Is(err, mealplan.ErrInvalidWeekStart),
		errors.Is(err, mealplan.ErrInvalidServings),
		errors.Is(err, mealplan.ErrInvalidSlot),
		errors.Is(err, mealplan.ErrMissingRecipe),
		errors.Is(err, mealplan.ErrMissingUser),
		errors.Is(err, shopping.ErrEmptyName),
		errors.Is(err, assistant.ErrEmptyPrompt),
		errors.Is(err, assistant.ErrInvalidURL),
		errors.Is(err, session.ErrInvalidHouseholdSize),
		errors.Is(err, session.ErrMissingCredentials),
		errors.Is(err, session.ErrConfirmationRequired),
		errors.Is(err, app.ErrNothingToExport):
		return http.StatusBadRequest

	case errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrNotSignedIn):
		return http.StatusUnauthorized

	case errors.Is(err, shopping.ErrUnknownRecipe):
		return http.StatusConflict

	case errors.Is(err, recipe.ErrNotFound),
		errors.Is(err, mealplan.ErrUnknownRecipe),
		errors.Is(err, shopping.ErrItemNotFound):
		return http.StatusNotFound

	case errors.Is(err, assistant.ErrProviderUnavailable),
		errors.Is(err, app.ErrAuthUnavailable):
		return http.StatusServiceUnavailable

	case errors.As(err, &remote):
		if remote.StatusCode >= 400 && remote.StatusCode < 500 {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway

	case errors.As(err, &provider), errors.As(err, &parse), errors.As(err, &export):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()

	var validation validator.ValidationErrors
	switch {
	case errors.As(err, &validation):
		msg = describeValidation(validation)
	case status == http.StatusInternalServerError:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal server error"
	case status == http.StatusBadGateway:
		s.logger.Warn("upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeErrorMessage(w, status, msg)
}

func describeValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "url":
			parts = append(parts, field+" must be a valid URL")
		default:
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, "; ")
}
