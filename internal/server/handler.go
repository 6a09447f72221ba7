package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
	"estatehub/internal/database"
)

type envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind   apperror.Kind `json:"kind"`
	Detail string        `json:"detail,omitempty"`
}

func (s Server) writeJsonResponse(w http.ResponseWriter, response any, statusCode int) {
	if resp, err := json.Marshal(response); err != nil {
		s.Logger.Errorf("Error encoding response: %+v, err: %v", response, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(statusCode)
		if _, err = w.Write(resp); err != nil {
			s.Logger.Errorf("Error writing JSON response: %s, err: %v", resp, err)
		}
	}
}

func (s Server) writeData(w http.ResponseWriter, message string, data any, statusCode int) {
	s.writeJsonResponse(w, envelope{Success: true, Message: message, Data: data}, statusCode)
}

// writeError classifies err and writes the error envelope. Server-side
// failures are logged at ERROR with their cause, client errors at DEBUG.
func (s Server) writeError(w http.ResponseWriter, r *http.Request, fn string, err error) {
	tid := getTraceContext(r.Context()).traceID
	ae := apperror.From(err)
	if ae.Status() >= http.StatusInternalServerError {
		s.Logger.Errorf("%s: %s, err: %v, TraceID: %s", fn, ae.Message, err, tid)
	} else {
		s.Logger.Debugf("%s: %s, err: %v, TraceID: %s", fn, ae.Message, err, tid)
	}

	body := &errorBody{Kind: ae.Kind}
	if ae.Status() >= http.StatusInternalServerError {
		body.Detail = "TraceID: " + tid
	}
	s.writeJsonResponse(w, envelope{Success: false, Message: ae.Message, Error: body}, ae.Status())
}

func (s Server) notFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, "notFoundHandler", apperror.NotFound("Resource"))
	}
}

func (s Server) methodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJsonResponse(w, envelope{
			Success: false,
			Message: http.StatusText(http.StatusMethodNotAllowed),
			Error:   &errorBody{Kind: apperror.KindValidation},
		}, http.StatusMethodNotAllowed)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.New(apperror.KindValidation, "Invalid request body", err)
	}
	return nil
}

// pathID parses the named route variable. A malformed id cannot match any
// document, so it reports resource as not found.
func pathID(r *http.Request, name string, resource string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		return id, apperror.NotFound(resource)
	}
	return id, nil
}

// storeError maps storage sentinels to API errors without leaking driver
// messages.
func storeError(err error, resource string) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return apperror.New(apperror.KindNotFound, resource+" not found", err)
	case errors.Is(err, database.ErrDuplicate):
		return apperror.New(apperror.KindConflict, resource+" already exists", err)
	}
	return apperror.Unhandled(err)
}

// storeErrorOr maps a not-found result to notFound instead of the generic
// resource error.
func storeErrorOr(err error, notFound error) error {
	if errors.Is(err, database.ErrNotFound) {
		return notFound
	}
	return storeError(err, "")
}
