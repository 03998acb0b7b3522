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

import "context"
import "fmt"
import "os"
import "path/filepath"
import "testing"
import "time"

import "github.com/prometheus/client_golang/prometheus"
import dto "github.com/prometheus/client_model/go"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

import "github.com/cantido/hematite/telemetry"

func newTestLog(t *testing.T) (*StreamLog, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "s1")
	sl, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sl.Close() })
	return sl, path
}

func cloudEvent(id string) []byte {
	return []byte(fmt.Sprintf(`{"specversion":"1.0","id":%q,"source":"test","type":"t"}`, id))
}

func TestAppendAndLength(t *testing.T) {
	sl, _ := newTestLog(t)
	rev, err := sl.Append(context.Background(), [][]byte{cloudEvent("a"), cloudEvent("b")}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rev)
	assert.EqualValues(t, 2, sl.Length())

	rev, err = sl.Append(context.Background(), [][]byte{cloudEvent("c")}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, rev)
}

func TestReadReturnsAppendedBytes(t *testing.T) {
	sl, _ := newTestLog(t)
	payloads := [][]byte{cloudEvent("a"), cloudEvent("b"), cloudEvent("c")}
	_, err := sl.Append(context.Background(), payloads, nil)
	require.NoError(t, err)

	for i, want := range payloads {
		got, err := sl.Read(uint64(i))
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(got))
	}
}

func TestReadNotFound(t *testing.T) {
	sl, _ := newTestLog(t)
	_, err := sl.Append(context.Background(), [][]byte{cloudEvent("a")}, nil)
	require.NoError(t, err)

	_, err = sl.Read(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = sl.Read(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpectedRevisionMatchSucceeds(t *testing.T) {
	sl, _ := newTestLog(t)
	zero := uint64(0)
	rev, err := sl.Append(context.Background(), [][]byte{cloudEvent("a")}, &zero)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rev)
}

func TestExpectedRevisionMismatchFailsWithNoWrite(t *testing.T) {
	sl, _ := newTestLog(t)
	_, err := sl.Append(context.Background(), [][]byte{cloudEvent("a"), cloudEvent("b"), cloudEvent("c")}, nil)
	require.NoError(t, err)

	bad := uint64(0)
	_, err = sl.Append(context.Background(), [][]byte{cloudEvent("d")}, &bad)
	var mismatch *RevisionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.EqualValues(t, 0, mismatch.Expected)
	assert.EqualValues(t, 3, mismatch.Actual)
	assert.EqualValues(t, 3, sl.Length(), "failed append must not change state")
}

func TestInvalidEventRejectsWholeBatchAtomically(t *testing.T) {
	sl, _ := newTestLog(t)
	bad := []byte(`{"specversion":"2.0","id":"x","source":"s","type":"t"}`)
	_, err := sl.Append(context.Background(), [][]byte{cloudEvent("a"), bad}, nil)
	require.Error(t, err)
	assert.EqualValues(t, 0, sl.Length(), "invalid batch must not write any event")
}

func TestReadPage(t *testing.T) {
	sl, _ := newTestLog(t)
	var payloads [][]byte
	for i := 0; i < 5; i++ {
		payloads = append(payloads, cloudEvent(fmt.Sprintf("e%d", i)))
	}
	_, err := sl.Append(context.Background(), payloads, nil)
	require.NoError(t, err)

	events, next, err := sl.ReadPage(1, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.EqualValues(t, 3, next)

	events, next, err = sl.ReadPage(4, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.EqualValues(t, 5, next)

	events, next, err = sl.ReadPage(5, 10)
	require.NoError(t, err)
	assert.Len(t, events, 0)
	assert.EqualValues(t, 5, next)
}

func TestReopenPreservesAppendedData(t *testing.T) {
	sl, path := newTestLog(t)
	_, err := sl.Append(context.Background(), [][]byte{cloudEvent("a"), cloudEvent("b")}, nil)
	require.NoError(t, err)
	require.NoError(t, sl.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.EqualValues(t, 2, reopened.Length())
	got, err := reopened.Read(1)
	require.NoError(t, err)
	assert.JSONEq(t, string(cloudEvent("b")), string(got))
}

func TestOpenTruncatesTornTrailingRecord(t *testing.T) {
	sl, path := newTestLog(t)
	_, err := sl.Append(context.Background(), [][]byte{cloudEvent("a"), cloudEvent("b")}, nil)
	require.NoError(t, err)
	require.NoError(t, sl.Close())

	// simulate a crash mid-write of a third record: append a truncated
	// frame (good length header but short payload) directly to the file.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0640)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x00, 0x00, 0x10, 0x00, 'h', 'i'}) // declares 4096 bytes, supplies 2
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.EqualValues(t, 2, reopened.Length(), "torn trailing record must be truncated away")
	rev, err := reopened.Append(context.Background(), [][]byte{cloudEvent("c")}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, rev)
}

func TestStatsReflectAppends(t *testing.T) {
	sl, _ := newTestLog(t)
	_, err := sl.Append(context.Background(), [][]byte{cloudEvent("a"), cloudEvent("b")}, nil)
	require.NoError(t, err)

	stats := sl.Stats()
	assert.False(t, stats.Poisoned)
	assert.EqualValues(t, 2, stats.Revisions)
	assert.EqualValues(t, 2, stats.AppendsAccepted)
	assert.Greater(t, stats.LastFsync, time.Duration(0))
}

func TestAppendObservesFsyncDurationMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	dir := t.TempDir()
	sl, err := Open(filepath.Join(dir, "s1"), metrics)
	require.NoError(t, err)
	t.Cleanup(func() { sl.Close() })

	_, err = sl.Append(context.Background(), [][]byte{cloudEvent("a")}, nil)
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, metrics.FsyncDuration.Write(&m))
	assert.EqualValues(t, 1, m.GetHistogram().GetSampleCount())
}

func TestOpenFailsFatallyOnCorruptNonTrailingRecord(t *testing.T) {
	sl, path := newTestLog(t)
	_, err := sl.Append(context.Background(), [][]byte{cloudEvent("a"), cloudEvent("b")}, nil)
	require.NoError(t, err)
	require.NoError(t, sl.Close())

	// flip a byte inside the first record's payload so its CRC no longer matches.
	f, err := os.OpenFile(path, os.O_RDWR, 0640)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF}, 10)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(path, nil)
	var corrupt *CorruptStreamError
	assert.ErrorAs(t, err, &corrupt)
}
