/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package httpapi

import "encoding/json"
import "errors"
import "net/http"

import "github.com/cantido/hematite/streamlog"
import "github.com/cantido/hematite/streammgr"

// kind classifies an error for the error-handling table below. httpapi is
// the only package that knows about HTTP status codes; streamlog and
// streammgr surface plain Go errors.
type kind int

const (
	kindInvalidStreamID kind = iota
	kindInvalidEvent
	kindInvalidRequest
	kindUnauthenticated
	kindForbidden
	kindNotFound
	kindRevisionMismatch
	kindCorruptStream
	kindUnavailable
)

func (k kind) status() int {
	switch k {
	case kindInvalidStreamID, kindInvalidRequest:
		return http.StatusBadRequest
	case kindInvalidEvent:
		return http.StatusUnprocessableEntity
	case kindUnauthenticated:
		return http.StatusUnauthorized
	case kindForbidden:
		return http.StatusForbidden
	case kindNotFound:
		return http.StatusNotFound
	case kindRevisionMismatch:
		return http.StatusConflict
	case kindCorruptStream:
		return http.StatusInternalServerError
	case kindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// apiError is the translated form of an internal error, ready to be
// written as a JSON:API error body.
type apiError struct {
	Kind   kind
	Detail string
	Extra  map[string]interface{} // e.g. {"expected": 0, "actual": 3} for 409s
}

func (e *apiError) Error() string { return e.Detail }

// classify maps an internal error from streammgr/streamlog/cloudevents
// into an error kind.
func classify(err error) *apiError {
	var revMismatch *streamlog.RevisionMismatchError
	var corrupt *streamlog.CorruptStreamError
	var invalidEvent *streamlog.InvalidEventError

	switch {
	case errors.As(err, &revMismatch):
		return &apiError{
			Kind:   kindRevisionMismatch,
			Detail: err.Error(),
			Extra: map[string]interface{}{
				"expected": revMismatch.Expected,
				"actual":   revMismatch.Actual,
			},
		}
	case errors.As(err, &corrupt):
		return &apiError{Kind: kindCorruptStream, Detail: err.Error()}
	case errors.As(err, &invalidEvent):
		return &apiError{Kind: kindInvalidEvent, Detail: err.Error()}
	case errors.Is(err, streamlog.ErrNotFound):
		return &apiError{Kind: kindNotFound, Detail: err.Error()}
	case errors.Is(err, streamlog.ErrUnavailable):
		return &apiError{Kind: kindUnavailable, Detail: err.Error()}
	case errors.Is(err, streamlog.ErrEmptyBatch):
		return &apiError{Kind: kindInvalidRequest, Detail: err.Error()}
	case errors.Is(err, streammgr.ErrInvalidStreamID):
		return &apiError{Kind: kindInvalidStreamID, Detail: err.Error()}
	case errors.Is(err, streammgr.ErrBusy):
		return &apiError{Kind: kindUnavailable, Detail: err.Error()}
	default:
		return &apiError{Kind: kindCorruptStream, Detail: err.Error()}
	}
}

// jsonAPIError is the wire shape of a JSON:API error document.
type jsonAPIError struct {
	Errors []jsonAPIErrorObject `json:"errors"`
}

type jsonAPIErrorObject struct {
	Status string                 `json:"status"`
	Title  string                 `json:"title"`
	Meta   map[string]interface{} `json:"meta,omitempty"`
}

func writeError(w http.ResponseWriter, err error) int {
	ae := classify(err)
	status := ae.Kind.status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonAPIError{
		Errors: []jsonAPIErrorObject{{
			Status: http.StatusText(status),
			Title:  ae.Detail,
			Meta:   ae.Extra,
		}},
	})
	return status
}

func writeForbidden(w http.ResponseWriter) int {
	status := kindForbidden.status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonAPIError{
		Errors: []jsonAPIErrorObject{{Status: http.StatusText(status), Title: "policy denied access to this stream"}},
	})
	return status
}

func writeUnauthenticated(w http.ResponseWriter) int {
	status := kindUnauthenticated.status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonAPIError{
		Errors: []jsonAPIErrorObject{{Status: http.StatusText(status), Title: "unauthenticated"}},
	})
	return status
}

func writeInvalidRequest(w http.ResponseWriter, detail string) int {
	status := kindInvalidRequest.status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonAPIError{
		Errors: []jsonAPIErrorObject{{Status: http.StatusText(status), Title: detail}},
	})
	return status
}
