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

Package record implements the on-disk framing for one stored event:

	len:u32be || payload:len bytes || crc32:u32be

len is the byte length of payload; crc32 is IEEE 802.3 over payload only.
Records are densely concatenated with no header and no footer, so decoding
is purely a function of a byte cursor.

*/
package record

import "encoding/binary"
import "hash/crc32"
import "io"

// MaxPayload is the largest payload accepted, per the wire format's upper
// bound. A length field above this is always rejected as TooLarge before
// any read is attempted, so a corrupt length can't trigger a huge alloc.
const MaxPayload = 16 * 1024 * 1024

const headerSize = 4 // u32be length
const trailerSize = 4 // u32be crc32
const frameOverhead = headerSize + trailerSize

// Encode frames payload into the on-disk record format. It never fails
// for payloads within MaxPayload; callers must bound the payload before
// calling this.
func Encode(payload []byte) []byte {
	buf := make([]byte, frameOverhead+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	copy(buf[4:], payload)
	sum := crc32.ChecksumIEEE(payload)
	binary.BigEndian.PutUint32(buf[4+len(payload):], sum)
	return buf
}

// EncodeBatch frames several payloads into one contiguous buffer, in
// order, for a single atomic write.
func EncodeBatch(payloads [][]byte) ([]byte, error) {
	size := 0
	for _, p := range payloads {
		if len(p) > MaxPayload {
			return nil, ErrTooLarge
		}
		size += frameOverhead + len(p)
	}
	buf := make([]byte, 0, size)
	for _, p := range payloads {
		buf = append(buf, Encode(p)...)
	}
	return buf, nil
}

// Decode reads exactly one record from r, starting at the caller's
// current offset into r. It returns the payload and the total number of
// bytes the record occupied on disk (len(payload) + frameOverhead).
func Decode(r io.Reader) (payload []byte, size int64, err error) {
	var header [headerSize]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, 0, ErrTorn
		}
		if err == io.ErrUnexpectedEOF {
			return nil, 0, ErrTorn
		}
		return nil, 0, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxPayload {
		return nil, 0, ErrTooLarge
	}
	payload = make([]byte, length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return nil, 0, ErrTorn
	}
	var trailer [trailerSize]byte
	if _, err = io.ReadFull(r, trailer[:]); err != nil {
		return nil, 0, ErrTorn
	}
	want := binary.BigEndian.Uint32(trailer[:])
	got := crc32.ChecksumIEEE(payload)
	if want != got {
		return nil, 0, ErrCorrupt
	}
	return payload, int64(frameOverhead + length), nil
}
