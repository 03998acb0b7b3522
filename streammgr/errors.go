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
package streammgr

import "errors"

// ErrInvalidStreamID is returned when a stream ID is not a safe, single
// filesystem path segment.
var ErrInvalidStreamID = errors.New("streammgr: invalid stream id")

// ErrBusy is returned when every cached handle is pinned (refcount > 0)
// and none frees up within the bounded eviction wait.
var ErrBusy = errors.New("streammgr: too many open streams, none evictable")
