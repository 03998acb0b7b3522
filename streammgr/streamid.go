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

import "regexp"

// streamIDPattern is the data model's stream ID grammar: a safe, single
// filesystem path segment. It rejects "/", "\", ".", null bytes, and
// anything outside this alphabet by construction, not by denylist.
var streamIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

// ValidateStreamID reports whether id is a legal stream identifier.
func ValidateStreamID(id string) error {
	if !streamIDPattern.MatchString(id) {
		return ErrInvalidStreamID
	}
	return nil
}
