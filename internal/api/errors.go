package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/job"
	"github.com/alecgard/venuedesk/internal/profile"
	"github.com/alecgard/venuedesk/internal/user"
	"github.com/alecgard/venuedesk/internal/venue"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

var validate = validator.New()

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// decodeValid reads the body into v and checks its validate tags. It writes
// the error response and returns false when the request must stop.
func decodeValid(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := readJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

var validationErrors = []error{
	venue.ErrNameRequired,
	job.ErrTitleRequired,
	job.ErrMessageRequired,
	job.ErrPhotoRequired,
	job.ErrInvalidPriority,
	job.ErrInvalidStatus,
	profile.ErrInvalidRole,
	profile.ErrDisplayNameRequired,
	user.ErrCredentialsRequired,
}

// writeServiceError maps an error from a service or the store to a response.
// Store and provider messages are passed through unchanged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	// A half-created venue is reported as such whatever the second write's
	// cause, so the caller learns which venue was left without members.
	var partial *venue.PartialCreateError
	if errors.As(err, &partial) {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   errorDetail{Code: "partial_create", Message: err.Error()},
			"venueId": partial.VenueID,
		})
		return
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, docstore.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, docstore.ErrAlreadyExists), errors.Is(err, user.ErrEmailTaken):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, docstore.ErrInvalidPath), errors.Is(err, docstore.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		slog.Error("request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
