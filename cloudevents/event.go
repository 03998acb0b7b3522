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

Package cloudevents implements just enough of the CloudEvents v1.0
structured-JSON envelope to validate documents before they are admitted
into a stream. Storage treats the document as opaque bytes beyond this
check; this package never interprets `data`.

*/
package cloudevents

import "encoding/json"
import "fmt"

// Event is a parsed CloudEvents v1.0 envelope. Data is kept as raw JSON;
// storage never needs to interpret it.
type Event struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Subject         string          `json:"subject,omitempty"`
	Time            string          `json:"time,omitempty"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	DataSchema      string          `json:"dataschema,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// InvalidEventError describes why a document failed CloudEvents validation.
type InvalidEventError struct {
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: %s", e.Reason)
}

// Parse decodes and validates a single CloudEvents structured-JSON document.
// It asserts specversion == "1.0" and non-empty id/source/type, per the
// required-fields list in the data model.
func Parse(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, &InvalidEventError{Reason: "not valid JSON: " + err.Error()}
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate checks the required CloudEvents v1.0 fields are present.
func (e Event) Validate() error {
	if e.SpecVersion != "1.0" {
		return &InvalidEventError{Reason: fmt.Sprintf("unsupported specversion %q", e.SpecVersion)}
	}
	if e.ID == "" {
		return &InvalidEventError{Reason: "missing id"}
	}
	if e.Source == "" {
		return &InvalidEventError{Reason: "missing source"}
	}
	if e.Type == "" {
		return &InvalidEventError{Reason: "missing type"}
	}
	return nil
}

// ParseBatch validates a JSON array of CloudEvents documents, as posted to
// the append endpoint. Validation is atomic: the first invalid element
// fails the whole batch, and raw per-element payloads are returned so the
// caller can re-encode them verbatim without re-serializing through Go's
// map ordering.
func ParseBatch(body []byte) ([]Event, [][]byte, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, &InvalidEventError{Reason: "request body is not a JSON array: " + err.Error()}
	}
	if len(raw) == 0 {
		return nil, nil, &InvalidEventError{Reason: "batch must contain at least one event"}
	}
	events := make([]Event, len(raw))
	payloads := make([][]byte, len(raw))
	for i, r := range raw {
		ev, err := Parse(r)
		if err != nil {
			return nil, nil, err
		}
		events[i] = ev
		payloads[i] = []byte(r)
	}
	return events, payloads, nil
}
