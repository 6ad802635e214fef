package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

// errorBody is the wire shape for every failed request.
type errorBody struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Details   any    `json:"details"`
}

// Responder centralizes response writing and error translation. It is the
// single place where errors become HTTP status codes and bodies, so handlers
// forward failures here instead of formatting them.
type Responder struct {
	logger     *slog.Logger
	production bool
}

func NewResponder(logger *slog.Logger, production bool) *Responder {
	return &Responder{logger: logger, production: production}
}

// WriteJSON encodes the data to JSON and writes the response header and body.
func (rsp *Responder) WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		reqID := middleware.GetReqID(r.Context())
		rsp.logger.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(js); err != nil {
		rsp.logger.ErrorContext(r.Context(), "Failed to write response body", slog.Any("error", err))
	}
}

// Error translates a failure into the error body, in priority order:
// domain AppError, validation errors, storage duplicate-key, everything else.
// Internal details are only exposed outside production mode.
func (rsp *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	rsp.logger.ErrorContext(r.Context(), "Error occurred",
		slog.Any("error", err),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	)

	var appErr *AppError
	if errors.As(err, &appErr) {
		rsp.WriteJSON(w, r, appErr.StatusCode, errorBody{
			Success:   false,
			ErrorCode: appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
		})
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		rsp.WriteJSON(w, r, http.StatusBadRequest, errorBody{
			Success:   false,
			ErrorCode: CodeValidation,
			Message:   "Validation failed",
			Details:   fieldErrors(verrs),
		})
		return
	}

	if mongo.IsDuplicateKeyError(err) {
		rsp.WriteJSON(w, r, http.StatusConflict, errorBody{
			Success:   false,
			ErrorCode: CodeDuplicateKey,
			Message:   "Duplicate key error",
			Details:   map[string]any{"duplicateFields": duplicateKeyFields(err)},
		})
		return
	}

	details := map[string]any{}
	if !rsp.production {
		details["name"] = fmt.Sprintf("%T", err)
		details["message"] = err.Error()
	}
	rsp.WriteJSON(w, r, http.StatusInternalServerError, errorBody{
		Success:   false,
		ErrorCode: CodeInternalServer,
		Message:   "An unexpected error occurred",
		Details:   details,
	})
}

// NotFoundHandler produces the taxonomy's 404 body for unmatched routes.
func (rsp *Responder) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp.WriteJSON(w, r, http.StatusNotFound, errorBody{
			Success:   false,
			ErrorCode: CodeNotFound,
			Message:   "Resource not found",
			Details: map[string]any{
				"path":   r.URL.Path,
				"method": r.Method,
			},
		})
	}
}

// MethodNotAllowedHandler mirrors NotFoundHandler for wrong-method hits.
func (rsp *Responder) MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp.WriteJSON(w, r, http.StatusMethodNotAllowed, errorBody{
			Success:   false,
			ErrorCode: CodeBadRequest,
			Message:   "Method not allowed",
			Details: map[string]any{
				"path":   r.URL.Path,
				"method": r.Method,
			},
		})
	}
}

// duplicateKeyFields extracts the offending index fields from a Mongo
// duplicate-key write error message ("... index: username_1 dup key ...").
func duplicateKeyFields(err error) []string {
	var fields []string
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return fields
	}
	for _, writeErr := range we.WriteErrors {
		msg := writeErr.Message
		idx := strings.Index(msg, "index: ")
		if idx < 0 {
			continue
		}
		name := msg[idx+len("index: "):]
		if end := strings.IndexAny(name, " \t"); end >= 0 {
			name = name[:end]
		}
		// index names follow the <field>_<direction> convention
		if cut := strings.LastIndex(name, "_"); cut > 0 {
			name = name[:cut]
		}
		fields = append(fields, name)
	}
	return fields
}

// ErrEmptyBody reports a request without a body. Callers that accept an
// empty payload (partial updates) can match it with errors.Is.
var ErrEmptyBody = errors.New("body must not be empty")

// DecodeJSONBody reads and decodes a JSON request body safely.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q (wanted %s)", unmarshalTypeError.Field, unmarshalTypeError.Type)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

		case errors.Is(err, io.EOF):
			return ErrEmptyBody

		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

		default:
			return fmt.Errorf("error decoding JSON body: %w", err)
		}
	}

	// Reject trailing data after the first JSON object
	if err = dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}
