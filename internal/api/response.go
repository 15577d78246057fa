package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"Error"`
}

// MessageResponse is the body of successful requests that return no data.
type MessageResponse struct {
	Message string `json:"Message"`
}

// CreatePanelRequest is the body of POST / and PUT /{panelID}.
type CreatePanelRequest struct {
	Items []string `json:"items" validate:"required"`
}

// UpdateParameterRequest is the body of PUT /parameters/{paramID}.
type UpdateParameterRequest struct {
	Value *int `json:"value" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON writes data as a JSON response.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// writeError writes {"Error": message}.
func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: message})
}

// decodeRequest parses the JSON body into v and checks its struct tags.
// The returned message is suitable for an ErrorResponse.
func decodeRequest(r *http.Request, v any) (string, bool) {
	defer func() { _ = r.Body.Close() }()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return fmt.Sprintf("Invalid type for %s", typeErr.Field), false
		case errors.Is(err, io.EOF):
			return "Request body is required", false
		default:
			return "Invalid JSON", false
		}
	}

	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Sprintf("%s is %s", fieldErrs[0].Field(), fieldErrs[0].Tag()), false
		}
		return err.Error(), false
	}
	return "", true
}
