package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"cdr.dev/slog"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/internal/database"
)

// A single validator instance is used, because it caches struct parsing.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Response is the body of every error and every bare acknowledgement.
type Response struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError is a validation failure scoped to one input field.
type FieldError struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, Response{Message: message})
}

// respondError writes err using its kind. Unclassified errors are logged
// with their cause and answered with a generic message.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnexpected {
		h.log.Error(r.Context(), "unexpected error",
			slog.F("method", r.Method),
			slog.F("path", r.URL.Path),
			slog.F("request_id", requestIDFrom(r.Context())),
			slog.Error(err))
	} else if kind == apperr.KindUpstream {
		h.log.Warn(r.Context(), "upstream failure", slog.F("path", r.URL.Path), slog.Error(err))
	}
	respondJSON(w, apperr.HTTPStatus(kind), Response{Message: apperr.Message(err)})
}

// read decodes the JSON body into value and validates it. On failure the
// response has been written and false is returned.
func read(w http.ResponseWriter, r *http.Request, value any) bool {
	if err := json.NewDecoder(r.Body).Decode(value); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body: " + err.Error()})
		return false
	}
	return valid(w, value)
}

func valid(w http.ResponseWriter, value any) bool {
	err := validate.Struct(value)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{
				Field:  fe.Field(),
				Detail: "Validation failed for tag \"" + fe.Tag() + "\"",
			})
		}
		respondJSON(w, http.StatusBadRequest, Response{Message: "Validation failed", Errors: out})
		return false
	}
	respondJSON(w, http.StatusInternalServerError, Response{Message: "validation: " + err.Error()})
	return false
}

// pagination reads skip and limit, defaulting limit and bounding both.
func pagination(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	limit = database.DefaultLimit
	if s := q.Get("skip"); s != "" {
		offset, err = strconv.Atoi(s)
		if err != nil || offset < 0 {
			return 0, 0, apperr.Invalid("skip must be a non-negative integer")
		}
	}
	if s := q.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 || limit > database.MaxLimit {
			return 0, 0, apperr.Invalid("limit must be between 1 and %d", database.MaxLimit)
		}
	}
	return offset, limit, nil
}

// dateParam parses an optional YYYY-MM-DD (or RFC 3339) query parameter.
func dateParam(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Invalid("%s must be a date (YYYY-MM-DD)", name)
}

// listParam accepts repeated and comma-separated values.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
