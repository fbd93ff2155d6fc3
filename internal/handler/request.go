// Package handler provides HTTP handlers for the dashboard API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/pkg/response"
)

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

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierrors.ErrBadRequest.WithMessage("Invalid request body")
	}
	return validationError(v.Struct(dst))
}

// validationError converts validator output into a 400 with per-field details.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apierrors.ErrBadRequest.WithMessage("Invalid request body")
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = "failed on " + fe.Tag()
	}
	return apierrors.NewValidationErrors(fields)
}

// writeError writes err and logs the detail of anything masked as a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if !apierrors.IsAPIError(err) {
		logger.Error("request failed", slog.String("error", err.Error()))
	}
	response.Error(w, err)
}
