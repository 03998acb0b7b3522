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
package record

import "errors"

// ErrTorn is returned when a record's bytes end before a full frame could
// be read, i.e. a torn trailing record. The stream log open path treats
// this specially (truncate and continue); it is never fatal on its own.
var ErrTorn = errors.New("record: torn (incomplete) record")

// ErrCorrupt is returned when a record's CRC does not match its payload.
// Unlike ErrTorn this is fatal: the file has a bad record that is not at
// the tail, and is not self-healed.
var ErrCorrupt = errors.New("record: crc32 mismatch")

// ErrTooLarge is returned when a record's declared length exceeds
// MaxPayload.
var ErrTooLarge = errors.New("record: payload exceeds maximum size")
