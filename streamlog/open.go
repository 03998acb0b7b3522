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

import "bufio"
import "os"

import "github.com/cantido/hematite/record"

// scanResult is the product of a full, sequential pass over a stream
// file at open time: all in-memory state is re-derived from a single
// scan rather than trusted from a side file.
type scanResult struct {
	offsets []int64 // offsets[i] = byte offset of record for revision i
	tail    int64   // offset immediately after the last good record
}

// scanAndRecover opens (creating if missing) the file at path, scans it
// from byte 0 decoding records, and truncates exactly one trailing torn
// record if present. A corrupt record anywhere before the tail is fatal
// and is never self-healed.
func scanAndRecover(path string) (*os.File, scanResult, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		return nil, scanResult{}, err
	}

	result, err := scanFile(f)
	if err != nil {
		f.Close()
		return nil, scanResult{}, err
	}

	if stat, statErr := f.Stat(); statErr == nil && stat.Size() != result.tail {
		// trailing bytes after the last good record didn't form a full
		// frame: a torn write. Truncate and move on, per the data model's
		// crash-recovery invariant.
		if err := f.Truncate(result.tail); err != nil {
			f.Close()
			return nil, scanResult{}, err
		}
	}

	return f, result, nil
}

func scanFile(f *os.File) (scanResult, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return scanResult{}, err
	}

	var result scanResult
	var cursor int64
	r := bufio.NewReader(f)

	for {
		_, size, err := record.Decode(r)
		if err == nil {
			result.offsets = append(result.offsets, cursor)
			cursor += size
			result.tail = cursor
			continue
		}
		if err == record.ErrTorn {
			// either clean EOF (cursor already == tail) or a torn
			// trailing record; both are handled the same way by the
			// caller: truncate to the last known-good cursor.
			result.tail = cursor
			return result, nil
		}
		if err == record.ErrCorrupt || err == record.ErrTooLarge {
			return scanResult{}, &CorruptStreamError{Offset: cursor}
		}
		return scanResult{}, err
	}
}
