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

Package streamlog implements the durable per-stream log: one open file,
an in-memory offset index rebuilt on open, and an append protocol that is
atomic per batch and durable (fsync) before it acknowledges.

Appends are serialized by a dedicated per-stream worker goroutine rather
than a held mutex, so that a slow fsync on this stream's append never
blocks a concurrent Read of this same stream's already-committed
revisions. Reads take an immutable snapshot of the index atomically and
never block on the append worker.

*/
package streamlog

import "context"
import "io"
import "os"
import "sync"
import "sync/atomic"
import "time"

import "github.com/cantido/hematite/cloudevents"
import "github.com/cantido/hematite/record"
import "github.com/cantido/hematite/telemetry"

// MaxPageLimit bounds how many events a single ReadPage call returns.
const MaxPageLimit = 1000

type indexSnapshot struct {
	offsets []int64 // byte offset of the start of each revision's record
	tail    int64
}

// Stats is a point-in-time snapshot of operational counters, for metrics.
type Stats struct {
	Poisoned        bool
	Revisions       uint64
	LastFsync       time.Duration
	AppendsAccepted uint64
}

// StreamLog owns one stream's file handle, its in-memory index, and the
// goroutine that serializes appends onto it.
type StreamLog struct {
	path    string
	file    *os.File
	metrics *telemetry.Metrics

	idx atomic.Pointer[indexSnapshot]

	jobs     chan appendJob
	workerWG sync.WaitGroup

	poisoned atomic.Bool
	lastFsync atomic.Int64 // nanoseconds
	accepted  atomic.Uint64

	closeOnce sync.Once
}

type appendJob struct {
	ctx              context.Context
	payloads         [][]byte
	encoded          []byte
	expectedRevision *uint64
	result           chan appendResult
}

type appendResult struct {
	newRevision uint64
	err         error
}

// Open scans path (creating it if missing), truncating a torn trailing
// record if found, and returns a ready StreamLog. A corrupt record
// anywhere before the tail is a fatal CorruptStreamError. metrics may be
// nil, in which case no fsync-duration observations are recorded.
func Open(path string, metrics *telemetry.Metrics) (*StreamLog, error) {
	f, scanned, err := scanAndRecover(path)
	if err != nil {
		return nil, err
	}

	sl := &StreamLog{
		path:    path,
		file:    f,
		metrics: metrics,
		jobs:    make(chan appendJob, 8),
	}
	snap := &indexSnapshot{offsets: scanned.offsets, tail: scanned.tail}
	sl.idx.Store(snap)

	sl.workerWG.Add(1)
	go sl.runWorker()

	return sl, nil
}

// Length returns the stream's current revision count. Cheap: reads an
// atomically published slice header, no I/O and no lock.
func (sl *StreamLog) Length() uint64 {
	return uint64(len(sl.idx.Load().offsets))
}

// Stats reports operational counters for telemetry.
func (sl *StreamLog) Stats() Stats {
	return Stats{
		Poisoned:        sl.poisoned.Load(),
		Revisions:       sl.Length(),
		LastFsync:       time.Duration(sl.lastFsync.Load()),
		AppendsAccepted: sl.accepted.Load(),
	}
}

// Append validates and durably appends a batch of raw CloudEvents JSON
// payloads as one atomic operation. If expectedRevision is non-nil, the
// append fails RevisionMismatchError (no write) unless it equals the
// stream's current length.
func (sl *StreamLog) Append(ctx context.Context, payloads [][]byte, expectedRevision *uint64) (uint64, error) {
	if sl.poisoned.Load() {
		return 0, ErrUnavailable
	}
	if len(payloads) == 0 {
		return 0, ErrEmptyBatch
	}

	// Validate the whole batch before any write is attempted. This can
	// run with no lock held: it only reads caller-supplied bytes.
	for i, p := range payloads {
		if _, err := cloudevents.Parse(p); err != nil {
			return 0, &InvalidEventError{Index: i, Err: err}
		}
	}

	encoded, err := record.EncodeBatch(payloads)
	if err != nil {
		return 0, &InvalidEventError{Index: -1, Err: err}
	}

	job := appendJob{
		ctx:              ctx,
		payloads:         payloads,
		expectedRevision: expectedRevision,
		result:           make(chan appendResult, 1),
	}
	job.encoded = encoded

	select {
	case sl.jobs <- job:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	res := <-job.result
	return res.newRevision, res.err
}

// Read returns the payload stored at revision, or ErrNotFound if the
// stream is shorter. CRC is re-verified on every read.
func (sl *StreamLog) Read(revision uint64) ([]byte, error) {
	if sl.poisoned.Load() {
		return nil, ErrUnavailable
	}
	snap := sl.idx.Load()
	if revision >= uint64(len(snap.offsets)) {
		return nil, ErrNotFound
	}
	start := snap.offsets[revision]
	sr := io.NewSectionReader(sl.file, start, snap.tail-start)
	payload, _, err := record.Decode(sr)
	if err == record.ErrCorrupt || err == record.ErrTooLarge {
		return nil, &CorruptStreamError{Offset: start}
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// ReadPage returns up to limit events starting at offset, in revision
// order, plus the offset to resume at (offset + len(events)). limit is
// capped at MaxPageLimit.
func (sl *StreamLog) ReadPage(offset uint64, limit uint64) (events [][]byte, next uint64, err error) {
	if sl.poisoned.Load() {
		return nil, 0, ErrUnavailable
	}
	if limit == 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	snap := sl.idx.Load()
	length := uint64(len(snap.offsets))
	if offset >= length {
		return nil, offset, nil
	}
	end := offset + limit
	if end > length {
		end = length
	}
	events = make([][]byte, 0, end-offset)
	for r := offset; r < end; r++ {
		ev, readErr := sl.Read(r)
		if readErr != nil {
			return nil, 0, readErr
		}
		events = append(events, ev)
	}
	return events, offset + uint64(len(events)), nil
}

// Close stops the append worker and releases the file handle. Safe to
// call more than once.
func (sl *StreamLog) Close() error {
	var err error
	sl.closeOnce.Do(func() {
		close(sl.jobs)
		sl.workerWG.Wait()
		err = sl.file.Close()
	})
	return err
}

func (sl *StreamLog) runWorker() {
	defer sl.workerWG.Done()
	for job := range sl.jobs {
		sl.processJob(job)
	}
}

func (sl *StreamLog) processJob(job appendJob) {
	if sl.poisoned.Load() {
		job.result <- appendResult{err: ErrUnavailable}
		return
	}

	snap := sl.idx.Load()
	current := uint64(len(snap.offsets))
	if job.expectedRevision != nil && *job.expectedRevision != current {
		job.result <- appendResult{err: &RevisionMismatchError{Expected: *job.expectedRevision, Actual: current}}
		return
	}

	n, err := sl.file.Write(job.encoded)
	if err != nil || n != len(job.encoded) {
		sl.poisoned.Store(true)
		job.result <- appendResult{err: ErrUnavailable}
		return
	}

	fsyncStart := time.Now()
	if err := sl.file.Sync(); err != nil {
		sl.poisoned.Store(true)
		job.result <- appendResult{err: ErrUnavailable}
		return
	}
	fsyncDuration := time.Since(fsyncStart)
	sl.lastFsync.Store(int64(fsyncDuration))
	if sl.metrics != nil {
		sl.metrics.FsyncDuration.Observe(fsyncDuration.Seconds())
	}

	newOffsets := make([]int64, len(snap.offsets), len(snap.offsets)+len(job.payloads))
	copy(newOffsets, snap.offsets)
	cursor := snap.tail
	for _, p := range job.payloads {
		newOffsets = append(newOffsets, cursor)
		cursor += int64(4 + len(p) + 4)
	}
	newSnap := &indexSnapshot{offsets: newOffsets, tail: cursor}
	sl.idx.Store(newSnap)
	sl.accepted.Add(uint64(len(job.payloads)))

	job.result <- appendResult{newRevision: uint64(len(newOffsets))}
}
