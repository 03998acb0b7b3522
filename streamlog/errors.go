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
package streamlog

import "errors"
import "fmt"

// ErrNotFound is returned by Read when the requested revision is at or
// past the stream's current length.
var ErrNotFound = errors.New("streamlog: revision not found")

// ErrUnavailable is returned by every operation on a poisoned log handle,
// and by a fatal I/O error at the moment it is discovered.
var ErrUnavailable = errors.New("streamlog: log is unavailable")

// ErrEmptyBatch is returned when Append is called with zero events.
var ErrEmptyBatch = errors.New("streamlog: batch must contain at least one event")

// RevisionMismatchError is returned when an append's expected_revision
// does not match the stream's current revision count. No state changes
// when this error is returned.
type RevisionMismatchError struct {
	Expected uint64
	Actual   uint64
}

func (e *RevisionMismatchError) Error() string {
	return fmt.Sprintf("streamlog: expected revision %d, actual %d", e.Expected, e.Actual)
}

// CorruptStreamError is fatal: a record before the tail failed its CRC
// check and the log cannot self-heal. It is raised both at Open (scanning
// the whole file) and at Read (checking one record).
type CorruptStreamError struct {
	Offset int64
}

func (e *CorruptStreamError) Error() string {
	return fmt.Sprintf("streamlog: corrupt record at offset %d", e.Offset)
}

// InvalidEventError wraps a cloudevents validation failure encountered
// while preparing a batch. No write happens when this is returned.
type InvalidEventError struct {
	Index int
	Err   error
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("streamlog: event %d failed validation: %v", e.Index, e.Err)
}

func (e *InvalidEventError) Unwrap() error { return e.Err }
