// Package eventlog keeps a bounded, rate-limited audit trail of combat
// events and appends it to a JSONL file in the background.
package eventlog

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	BufferSize            = 1024                   // ring buffer size
	MaxRecordsPerSec      = 2000                   // global rate limit
	MaxRecordsPerSession  = 50                     // per-session rate limit per second
	FlushBatchSize        = 64                     // records per write batch
	FlushInterval         = 200 * time.Millisecond // how often to flush
	SessionLimiterCleanup = 5 * time.Minute        // idle limiter expiry
)

type sessionLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// EventLog buffers records in a ring and drops the oldest on overflow
type EventLog struct {
	mu    sync.Mutex
	ring  [BufferSize]Record
	head  uint64 // next sequence to write
	tail  uint64 // next sequence to flush
	total uint64

	global   *rate.Limiter
	sessions sync.Map // map[string]*sessionLimiter

	out     io.Writer
	closer  io.Closer
	outMu   sync.Mutex
	log     *zap.Logger
	wg      sync.WaitGroup
	stop    chan struct{}
	stopped sync.Once
	running atomic.Bool

	dropped atomic.Uint64
}

// New creates an idle event log
func New(logger *zap.Logger) *EventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{
		global: rate.NewLimiter(MaxRecordsPerSec, MaxRecordsPerSec/10),
		log:    logger,
		stop:   make(chan struct{}),
	}
}

// Start opens path for append and starts the writer. An empty path keeps
// records in memory only.
func (el *EventLog) Start(path string) error {
	if path == "" {
		return el.StartWriter(nil)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	el.closer = f
	return el.StartWriter(f)
}

// StartWriter starts the writer goroutines against w
func (el *EventLog) StartWriter(w io.Writer) error {
	if !el.running.CompareAndSwap(false, true) {
		return nil
	}
	el.out = w
	el.wg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Stop flushes pending records and closes the output
func (el *EventLog) Stop() {
	el.stopped.Do(func() {
		el.running.Store(false)
		close(el.stop)
		el.wg.Wait()
		if el.closer != nil {
			if err := el.closer.Close(); err != nil {
				el.log.Warn("event log close failed", zap.Error(err))
			}
		}
	})
}

// Emit appends a record. It returns false when the log is stopped or the
// record was rate limited.
func (el *EventLog) Emit(r Record) bool {
	if !el.running.Load() {
		return false
	}
	if !el.global.Allow() {
		el.dropped.Add(1)
		return false
	}
	if r.SessionID != "" && !el.sessionLimiter(r.SessionID).Allow() {
		el.dropped.Add(1)
		return false
	}

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.head-el.tail >= BufferSize {
		// overwrite the oldest unflushed record
		el.tail++
		el.dropped.Add(1)
	}
	el.head++
	r.Sequence = el.head
	el.ring[el.head%BufferSize] = r
	el.total++
	return true
}

// EmitSimple builds and emits a record
func (el *EventLog) EmitSimple(t Type, sessionID string, round int, payload interface{}) bool {
	return el.Emit(NewRecord(t, sessionID, round, payload))
}

func (el *EventLog) sessionLimiter(id string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.sessions.Load(id); ok {
		sl := v.(*sessionLimiter)
		sl.lastUsed.Store(now)
		return sl.limiter
	}
	sl := &sessionLimiter{limiter: rate.NewLimiter(MaxRecordsPerSession, MaxRecordsPerSession)}
	sl.lastUsed.Store(now)
	actual, _ := el.sessions.LoadOrStore(id, sl)
	return actual.(*sessionLimiter).limiter
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-el.stop:
			el.Flush()
			return
		case <-ticker.C:
			el.Flush()
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.wg.Done()
	ticker := time.NewTicker(SessionLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-SessionLimiterCleanup).UnixNano()
			el.sessions.Range(func(key, value interface{}) bool {
				if value.(*sessionLimiter).lastUsed.Load() < cutoff {
					el.sessions.Delete(key)
				}
				return true
			})
		}
	}
}

// collect removes up to FlushBatchSize records from the ring
func (el *EventLog) collect(batch []Record) []Record {
	el.mu.Lock()
	defer el.mu.Unlock()
	for el.tail < el.head && len(batch) < FlushBatchSize {
		el.tail++
		batch = append(batch, el.ring[el.tail%BufferSize])
	}
	return batch
}

// Flush writes every pending record
func (el *EventLog) Flush() {
	batch := make([]Record, 0, FlushBatchSize)
	for {
		batch = el.collect(batch[:0])
		if len(batch) == 0 {
			return
		}
		el.write(batch)
	}
}

func (el *EventLog) write(batch []Record) {
	el.outMu.Lock()
	defer el.outMu.Unlock()
	if el.out == nil {
		return
	}
	w := bufio.NewWriter(el.out)
	enc := json.NewEncoder(w)
	for _, r := range batch {
		if err := enc.Encode(r); err != nil {
			el.log.Warn("event log encode failed", zap.Error(err), zap.Stringer("type", r.Type))
		}
	}
	if err := w.Flush(); err != nil {
		el.log.Warn("event log write failed", zap.Error(err))
	}
}

// Stats returns counters for monitoring
func (el *EventLog) Stats() map[string]interface{} {
	el.mu.Lock()
	pending := el.head - el.tail
	total := el.total
	el.mu.Unlock()
	return map[string]interface{}{
		"total":   total,
		"dropped": el.dropped.Load(),
		"pending": pending,
		"running": el.running.Load(),
	}
}

// Dropped returns how many records were rate limited or overwritten
func (el *EventLog) Dropped() uint64 {
	return el.dropped.Load()
}
