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

import "bytes"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte(`{}`),
		[]byte(``),
		[]byte(`{"specversion":"1.0","id":"a","source":"s","type":"t"}`),
		bytes.Repeat([]byte("x"), 70000),
	}
	for _, payload := range cases {
		encoded := Encode(payload)
		got, size, err := Decode(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		assert.EqualValues(t, len(encoded), size)
	}
}

func TestDecodeTornAtEOF(t *testing.T) {
	full := Encode([]byte("hello world"))
	for cut := 0; cut < len(full); cut++ {
		_, _, err := Decode(bytes.NewReader(full[:cut]))
		assert.ErrorIs(t, err, ErrTorn, "cut at %d", cut)
	}
}

func TestDecodeCorruptCRC(t *testing.T) {
	full := Encode([]byte("hello world"))
	full[len(full)-1] ^= 0xFF
	_, _, err := Decode(bytes.NewReader(full))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeTooLarge(t *testing.T) {
	buf := make([]byte, 4)
	// declare a length bigger than MaxPayload
	buf[0], buf[1], buf[2], buf[3] = 0xFF, 0xFF, 0xFF, 0xFF
	_, _, err := Decode(bytes.NewReader(buf))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestEncodeBatchRejectsOversizedPayload(t *testing.T) {
	oversized := bytes.Repeat([]byte("a"), MaxPayload+1)
	_, err := EncodeBatch([][]byte{[]byte("ok"), oversized})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestEncodeBatchConcatenatesInOrder(t *testing.T) {
	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	buf, err := EncodeBatch(payloads)
	require.NoError(t, err)

	r := bytes.NewReader(buf)
	for _, want := range payloads {
		got, _, err := Decode(r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, _, err = Decode(r)
	assert.ErrorIs(t, err, ErrTorn)
}
