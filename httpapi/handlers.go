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

/*

Package httpapi publishes the JSON:API-style HTTP surface over
gorilla/mux, used here for its path-variable routing. Every handler
here does exactly what a thin boundary adapter allows: parse the
request, authenticate, validate the stream ID, call into streammgr,
and translate the result to a status code and a JSON:API body. No
business logic lives in this package.

*/
package httpapi

import "context"
import "encoding/json"
import "io"
import "net/http"
import "strconv"

import "github.com/gorilla/mux"

import "github.com/cantido/hematite/cloudevents"
import "github.com/cantido/hematite/streamlog"
import "github.com/cantido/hematite/streammgr"

type streamResource struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}

type streamDocument struct {
	Data streamResource `json:"data"`
}

type eventResource struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	Attributes cloudevents.Event `json:"attributes"`
}

type eventDocument struct {
	Data eventResource `json:"data"`
}

type eventListLinks struct {
	Next string `json:"next,omitempty"`
}

type eventListDocument struct {
	Data  []eventResource `json:"data"`
	Links eventListLinks  `json:"links"`
}

func (s *Server) acquire(ctx context.Context, w http.ResponseWriter, streamID string) (*streammgr.Handle, bool) {
	if err := streammgr.ValidateStreamID(streamID); err != nil {
		writeError(w, err)
		return nil, false
	}
	h, err := s.manager.Get(ctx, streamID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return h, true
}

// acquireExisting is acquire for read-only endpoints: a stream that has
// never been appended to is 404, not an implicitly created empty log.
func (s *Server) acquireExisting(ctx context.Context, w http.ResponseWriter, streamID string) (*streammgr.Handle, bool) {
	if err := streammgr.ValidateStreamID(streamID); err != nil {
		writeError(w, err)
		return nil, false
	}
	if !s.manager.Exists(streamID) {
		writeError(w, streamlog.ErrNotFound)
		return nil, false
	}
	return s.acquire(ctx, w, streamID)
}

// handleAppend implements POST /streams/{stream}/events.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	streamID := mux.Vars(r)["stream"]
	h, ok := s.acquire(r.Context(), w, streamID)
	if !ok {
		return
	}
	defer h.Release()

	body, err := readLimited(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	_, payloads, err := cloudevents.ParseBatch(body)
	if err != nil {
		writeError(w, &streamlog.InvalidEventError{Index: 0, Err: err})
		return
	}

	var expected *uint64
	if raw := r.URL.Query().Get("expected_revision"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeInvalidRequest(w, "expected_revision must be a non-negative integer")
			return
		}
		expected = &n
	}

	revision, err := h.Log().Append(r.Context(), payloads, expected)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(streamDocument{Data: streamResource{
		Type:       "stream",
		ID:         streamID,
		Attributes: map[string]interface{}{"revision": revision},
	}})
}

// handleReadOne implements GET /streams/{stream}/events/{revision}.
func (s *Server) handleReadOne(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	streamID := vars["stream"]
	h, ok := s.acquireExisting(r.Context(), w, streamID)
	if !ok {
		return
	}
	defer h.Release()

	revision, err := strconv.ParseUint(vars["revision"], 10, 64)
	if err != nil {
		writeInvalidRequest(w, "revision must be a non-negative integer")
		return
	}

	payload, err := h.Log().Read(revision)
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := cloudevents.Parse(payload)
	if err != nil {
		writeError(w, &streamlog.CorruptStreamError{})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(eventDocument{Data: eventResource{
		Type:       "event",
		ID:         strconv.FormatUint(revision, 10),
		Attributes: event,
	}})
}

// handleReadPage implements GET /streams/{stream}/events?page[offset]=o&page[limit]=l.
func (s *Server) handleReadPage(w http.ResponseWriter, r *http.Request) {
	streamID := mux.Vars(r)["stream"]
	h, ok := s.acquire(r.Context(), w, streamID)
	if !ok {
		return
	}
	defer h.Release()

	offset, err := parseUintParam(r, "page[offset]", 0)
	if err != nil {
		writeInvalidRequest(w, "page[offset] must be a non-negative integer")
		return
	}
	limit, err := parseUintParam(r, "page[limit]", streamlog.MaxPageLimit)
	if err != nil {
		writeInvalidRequest(w, "page[limit] must be a non-negative integer")
		return
	}

	payloads, next, err := h.Log().ReadPage(offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resources := make([]eventResource, 0, len(payloads))
	for i, payload := range payloads {
		event, err := cloudevents.Parse(payload)
		if err != nil {
			writeError(w, &streamlog.CorruptStreamError{})
			return
		}
		resources = append(resources, eventResource{
			Type:       "event",
			ID:         strconv.FormatUint(offset+uint64(i), 10),
			Attributes: event,
		})
	}

	doc := eventListDocument{Data: resources}
	if next < h.Log().Length() {
		doc.Links.Next = "?page[offset]=" + strconv.FormatUint(next, 10) + "&page[limit]=" + strconv.FormatUint(limit, 10)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}

// handleStreamInfo implements GET /streams/{stream}.
func (s *Server) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	streamID := mux.Vars(r)["stream"]
	h, ok := s.acquireExisting(r.Context(), w, streamID)
	if !ok {
		return
	}
	defer h.Release()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(streamDocument{Data: streamResource{
		Type:       "stream",
		ID:         streamID,
		Attributes: map[string]interface{}{"revision": h.Log().Length()},
	}})
}

func parseUintParam(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

const maxBodyBytes = 64 * 1024 * 1024

func readLimited(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
}
