// Package delayqueue implements DelayQueue (spec §3, §4.6, component C6):
// the bounded, single-consumer pacing queue that sits between the AAC
// encoder tap and the audio RTP writer. MediaCodec-style encoders emit AAC
// output in bursts; without pacing, frames would reach the writer faster
// than their presentation times dictate, bloating the downstream buffer
// and letting audio race ahead of video. Grounded in the teacher's
// condition-variable consumer loop style (internal/logger,
// internal/asyncwriter) generalized to this domain's anchor/sleep policy.
package delayqueue

import (
	"sync"
	"time"

	"github.com/rtsp-streamer/internal/buffer"
	"github.com/rtsp-streamer/internal/deque"
	"github.com/rtsp-streamer/internal/logger"
)

const capacity = 30

// Callback receives a paced frame. It must not retain the Frame's Data
// slice beyond the call; DelayQueue reuses a single scratch Frame.
type Callback func(*buffer.Frame)

// DelayQueue paces frames by presentation time against a wall-clock
// anchor established by the first frame it releases.
type DelayQueue struct {
	pool *buffer.HierarchyPool

	mutex sync.Mutex
	cond  *sync.Cond
	q     *deque.Deque[*buffer.Cell]

	running  bool
	anchored bool
	startWall time.Time
	firstPTSus int64

	scratch buffer.Frame
	cb      Callback
	log     logger.Writer
}

// New builds a DelayQueue drawing frame storage from pool and delivering
// paced frames to cb. cb runs on the queue's own consumer goroutine. A
// nil log discards every line.
func New(pool *buffer.HierarchyPool, scratchCap int, cb Callback, log logger.Writer) *DelayQueue {
	d := &DelayQueue{
		pool:    pool,
		q:       deque.New[*buffer.Cell](capacity),
		scratch: buffer.NewFrame(scratchCap),
		cb:      cb,
		log:     log,
	}
	d.cond = sync.NewCond(&d.mutex)
	return d
}

func (d *DelayQueue) logf(level logger.Level, format string, args ...interface{}) {
	if d.log != nil {
		d.log.Log(level, format, args...)
	}
}

// Start launches the consumer goroutine. Safe to call once.
func (d *DelayQueue) Start() {
	d.mutex.Lock()
	d.running = true
	d.mutex.Unlock()
	go d.run()
}

// Stop signals the consumer to exit and returns without waiting for it.
// The consumer delivers any frames still queued before it exits.
func (d *DelayQueue) Stop() {
	d.mutex.Lock()
	d.running = false
	d.mutex.Unlock()
	d.cond.Broadcast()
}

// Enqueue copies data into a pool cell and pushes it. If the queue is
// already at capacity, the oldest cell is dropped and released first
// (spec §4.6). Returns an error only if no cell can be acquired for the
// incoming frame (oversized or pool exhausted).
func (d *DelayQueue) Enqueue(data []byte, ptsUs int64, flags buffer.Flags) error {
	d.mutex.Lock()
	if d.q.Len() == d.q.Cap() {
		if old, ok := d.q.PopFront(); ok {
			old.Release()
		}
	}
	cell, err := d.pool.Acquire(len(data))
	if err != nil {
		d.mutex.Unlock()
		d.logf(logger.Warn, "delayqueue: dropping %d-byte frame: %v", len(data), err)
		return err
	}
	cell.Frame.Set(data, ptsUs, flags)
	d.q.PushBack(cell)
	d.mutex.Unlock()
	d.cond.Signal()
	return nil
}

func (d *DelayQueue) run() {
	for {
		d.mutex.Lock()
		for d.q.Len() == 0 && d.running {
			d.cond.Wait()
		}
		if !d.running && d.q.Len() == 0 {
			d.mutex.Unlock()
			return
		}
		cell, _ := d.q.PopFront()
		d.mutex.Unlock()

		delay := d.delayFor(cell.Frame.PresentationTimeUs)
		if delay > 0 {
			d.mutex.Lock()
			d.q.PushFront(cell)
			d.mutex.Unlock()
			time.Sleep(delay)
			continue
		}

		d.scratch.CopyFrom(cell.Frame)
		cell.Release()
		d.cb(&d.scratch)
	}
}

// delayFor returns how long to wait before releasing a frame with the
// given presentation time, anchoring on the first call (spec §4.6).
func (d *DelayQueue) delayFor(ptsUs int64) time.Duration {
	now := time.Now()
	if !d.anchored {
		d.anchored = true
		d.startWall = now
		d.firstPTSus = ptsUs
		return 0
	}
	expectedElapsed := time.Duration(ptsUs-d.firstPTSus) * time.Microsecond
	actualElapsed := now.Sub(d.startWall)
	if expectedElapsed <= actualElapsed {
		return 0
	}
	return expectedElapsed - actualElapsed
}
