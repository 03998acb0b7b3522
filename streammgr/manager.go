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

Package streammgr multiplexes many concurrently accessed stream logs onto
a bounded number of open file handles. It maps stream ID -> StreamLog
through a sharded concurrent map so that unrelated stream IDs never
contend on the same lock, with capacity-bounded LRU eviction: the
least-recently-used zero-refcount handle ages out first when the
manager is at capacity.

*/
package streammgr

import "context"
import "fmt"
import "hash/fnv"
import "os"
import "path/filepath"
import "sync"
import "sync/atomic"
import "time"

import "github.com/dc0d/onexit"
import "golang.org/x/sync/singleflight"

import "github.com/cantido/hematite/streamlog"
import "github.com/cantido/hematite/telemetry"

const shardCount = 32

// DefaultCapacity is the manager's default handle-count cap.
const DefaultCapacity = 1024

// DefaultEvictWait is how long Get blocks looking for an evictable handle
// before failing Busy.
const DefaultEvictWait = 5 * time.Second

type entry struct {
	id       string
	log      *streamlog.StreamLog
	refCount int32 // guarded by the owning shard's mutex
	lastUsed int64 // unix nanoseconds; guarded by the owning shard's mutex
}

type shard struct {
	mu sync.Mutex
	m  map[string]*entry
}

// Manager is a stream manager: lookup-or-open with a
// per-key single-flight guard, LRU eviction bounded by Capacity, and a
// sharded lock discipline so independent streams never block each other.
type Manager struct {
	streamsDir string
	capacity   int
	evictWait  time.Duration
	metrics    *telemetry.Metrics

	shards [shardCount]*shard
	count  atomic.Int64

	sf singleflight.Group

	evictedMu   sync.Mutex
	evictedCond *sync.Cond

	onEvict func(id string) // test hook, optional
}

// New returns a Manager rooted at streamsDir, which must already exist.
// capacity <= 0 uses DefaultCapacity; evictWait <= 0 uses DefaultEvictWait.
// metrics may be nil, in which case the manager reports no open-stream
// gauge or eviction counts.
func New(streamsDir string, capacity int, evictWait time.Duration, metrics *telemetry.Metrics) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if evictWait <= 0 {
		evictWait = DefaultEvictWait
	}
	mgr := &Manager{
		streamsDir: streamsDir,
		capacity:   capacity,
		evictWait:  evictWait,
		metrics:    metrics,
	}
	for i := range mgr.shards {
		mgr.shards[i] = &shard{m: make(map[string]*entry)}
	}
	mgr.evictedCond = sync.NewCond(&mgr.evictedMu)

	// drain-on-shutdown: flush is unnecessary (every append is already
	// durable) but open file descriptors must still be released.
	onexit.Register(func() { mgr.CloseAll() })

	return mgr
}

func (mgr *Manager) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return mgr.shards[h.Sum32()%shardCount]
}

// Handle is a reference-counted lease on one stream's open log. Callers
// must call Release when done so the manager can evict it under
// capacity pressure.
type Handle struct {
	mgr   *Manager
	shard *shard
	e     *entry
}

// Log returns the underlying stream log for reads and appends.
func (h *Handle) Log() *streamlog.StreamLog { return h.e.log }

// Release drops this handle's reference. It must be called exactly once
// per successful Get.
func (h *Handle) Release() {
	h.shard.mu.Lock()
	h.e.refCount--
	zero := h.e.refCount == 0
	h.shard.mu.Unlock()
	if zero {
		h.mgr.evictedCond.Broadcast()
	}
}

// Get resolves stream ID to a Handle on its log, opening the log lazily
// (at most once, even under concurrent callers of the same ID) and
// evicting another handle if the manager is at capacity.
func (mgr *Manager) Get(ctx context.Context, id string) (*Handle, error) {
	if err := ValidateStreamID(id); err != nil {
		return nil, err
	}

	sh := mgr.shardFor(id)

	sh.mu.Lock()
	if e, ok := sh.m[id]; ok {
		e.refCount++
		e.lastUsed = time.Now().UnixNano()
		sh.mu.Unlock()
		return &Handle{mgr: mgr, shard: sh, e: e}, nil
	}
	sh.mu.Unlock()

	v, err, _ := mgr.sf.Do(id, func() (interface{}, error) {
		// another caller's open may have finished since the lookup above
		sh.mu.Lock()
		if e, ok := sh.m[id]; ok {
			sh.mu.Unlock()
			return e, nil
		}
		sh.mu.Unlock()
		if err := mgr.ensureCapacity(ctx); err != nil {
			return nil, err
		}
		log, err := streamlog.Open(filepath.Join(mgr.streamsDir, id), mgr.metrics)
		if err != nil {
			return nil, err
		}
		e := &entry{id: id, log: log}
		sh.mu.Lock()
		sh.m[id] = e
		sh.mu.Unlock()
		mgr.count.Add(1)
		mgr.reportOpenCount()
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	e := v.(*entry)
	sh.mu.Lock()
	e.refCount++
	e.lastUsed = time.Now().UnixNano()
	sh.mu.Unlock()
	return &Handle{mgr: mgr, shard: sh, e: e}, nil
}

// OpenCount reports the number of stream log handles currently cached.
func (mgr *Manager) OpenCount() int {
	return int(mgr.count.Load())
}

// reportOpenCount publishes the current handle count to the open-streams
// gauge. No-op if the manager was built without metrics.
func (mgr *Manager) reportOpenCount() {
	if mgr.metrics != nil {
		mgr.metrics.OpenStreams.Set(float64(mgr.count.Load()))
	}
}

// Exists reports whether stream id has ever been appended to, without
// the side effect of lazily creating its file the way Get/streamlog.Open
// do. A file that Get created but that holds no events does not count.
// Callers that must answer 404 for a stream never written use this
// before calling Get.
func (mgr *Manager) Exists(id string) bool {
	if err := ValidateStreamID(id); err != nil {
		return false
	}
	sh := mgr.shardFor(id)
	sh.mu.Lock()
	e, cached := sh.m[id]
	sh.mu.Unlock()
	if cached {
		return e.log.Length() > 0
	}
	fi, err := os.Stat(filepath.Join(mgr.streamsDir, id))
	return err == nil && fi.Size() > 0
}

// ensureCapacity evicts the least-recently-used zero-refcount handle if
// the manager is at capacity. It blocks up to evictWait for one to free
// up, and fails ErrBusy if none does.
func (mgr *Manager) ensureCapacity(ctx context.Context) error {
	deadline := time.Now().Add(mgr.evictWait)
	for {
		if int(mgr.count.Load()) < mgr.capacity {
			return nil
		}
		if mgr.tryEvictOne() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return ErrBusy
		}
		mgr.waitForRelease(deadline)
	}
}

func (mgr *Manager) waitForRelease(deadline time.Time) {
	timer := time.AfterFunc(time.Until(deadline), func() { mgr.evictedCond.Broadcast() })
	defer timer.Stop()
	mgr.evictedMu.Lock()
	mgr.evictedCond.Wait()
	mgr.evictedMu.Unlock()
}

// tryEvictOne scans all shards for the globally least-recently-used
// zero-refcount entry and evicts it. Each shard is locked only briefly
// to read candidate metadata or to perform the eviction itself; no lock
// is held across file I/O except the owning shard's, for the duration of
// a map delete (Close happens after the shard lock is released).
func (mgr *Manager) tryEvictOne() bool {
	var bestShard *shard
	var bestEntry *entry
	var bestLastUsed int64

	for _, sh := range mgr.shards {
		sh.mu.Lock()
		for _, e := range sh.m {
			if e.refCount == 0 && (bestEntry == nil || e.lastUsed < bestLastUsed) {
				bestShard, bestEntry, bestLastUsed = sh, e, e.lastUsed
			}
		}
		sh.mu.Unlock()
	}

	if bestEntry == nil {
		return false
	}

	bestShard.mu.Lock()
	cur, ok := bestShard.m[bestEntry.id]
	if !ok || cur != bestEntry || cur.refCount != 0 {
		bestShard.mu.Unlock()
		return false // raced with a concurrent Get; try again next loop
	}
	delete(bestShard.m, bestEntry.id)
	bestShard.mu.Unlock()

	mgr.count.Add(-1)
	mgr.reportOpenCount()
	if mgr.metrics != nil {
		mgr.metrics.Evictions.Inc()
	}
	if mgr.onEvict != nil {
		mgr.onEvict(bestEntry.id)
	}
	bestEntry.log.Close()
	return true
}

// CloseAll drains and closes every cached stream log. Used at process
// shutdown and registered automatically via onexit in New.
func (mgr *Manager) CloseAll() {
	for _, sh := range mgr.shards {
		sh.mu.Lock()
		for id, e := range sh.m {
			e.log.Close()
			delete(sh.m, id)
			mgr.count.Add(-1)
		}
		sh.mu.Unlock()
	}
	mgr.reportOpenCount()
}

func (mgr *Manager) String() string {
	return fmt.Sprintf("streammgr(dir=%s cap=%d open=%d)", mgr.streamsDir, mgr.capacity, mgr.OpenCount())
}
