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
package auth

// Policy decides whether an authenticated identity may access a stream.
// The default, IdentityOnly, allows any authenticated subject to access
// any stream. A deployment may supply a stricter Policy without
// touching httpapi.
type Policy interface {
	Authorize(id Identity, streamID string) bool
}

// IdentityOnly is the default policy: identity-only authorization, no
// per-stream ACL.
type IdentityOnly struct{}

func (IdentityOnly) Authorize(Identity, string) bool { return true }
