// Package encodertap implements EncoderTap (spec §3, §4.7, component C7):
// a bounded fan-out point between an external encoder callback and up to
// two downstream listeners (the two RTSP client slots). The video tap
// additionally discovers and caches VPS/SPS/PPS parameter sets; the audio
// tap forwards through a DelayQueue for pacing. Grounded in the teacher's
// internal/stream listener-registration pattern (sub_stream.go), adapted
// to this domain's fixed two-listener bound and parameter-set latch.
package encodertap

import (
	"encoding/base64"
	"errors"
	"sync"

	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/rtsp-streamer/internal/buffer"
	"github.com/rtsp-streamer/internal/delayqueue"
	"github.com/rtsp-streamer/internal/logger"
	"github.com/rtsp-streamer/internal/nal"
)

// ErrTooManyListeners is returned by AddListener when the tap already has
// two registered listeners (spec §4.7: "bounded to 2 concurrent
// listeners").
var ErrTooManyListeners = errors.New("encodertap: too many listeners")

// Listener receives every non-codec-config frame forwarded by a tap.
type Listener func(frame *buffer.Frame)

type registration struct {
	ctx interface{}
	cb  Listener
}

// Tap fans a single encoder callback out to at most two listeners.
// Listeners are invoked synchronously, in registration order, under the
// tap's own lock -- they must not block.
type Tap struct {
	mutex     sync.Mutex
	listeners []registration
}

// AddListener registers cb under identity ctx (used by RemoveListener).
func (t *Tap) AddListener(ctx interface{}, cb Listener) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if len(t.listeners) >= 2 {
		return ErrTooManyListeners
	}
	t.listeners = append(t.listeners, registration{ctx: ctx, cb: cb})
	return nil
}

// RemoveListener unregisters the listener previously added under ctx.
func (t *Tap) RemoveListener(ctx interface{}) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for i, r := range t.listeners {
		if r.ctx == ctx {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

func (t *Tap) dispatch(frame *buffer.Frame) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for _, r := range t.listeners {
		r.cb(frame)
	}
}

// ParameterSets holds the base64-encoded VPS/SPS/PPS discovered from
// CODEC_CONFIG frames (spec §4.7), plus the latch DESCRIBE waits on
// (spec §4.10: "DESCRIBE ... may block until parameter sets are
// available"; testable property §8 #9).
type ParameterSets struct {
	mutex         sync.Mutex
	initialized   bool
	vps, sps, pps string

	readyOnce sync.Once
	readyCh   chan struct{}
}

func (p *ParameterSets) readyChan() chan struct{} {
	p.readyOnce.Do(func() { p.readyCh = make(chan struct{}) })
	return p.readyCh
}

// Get returns the cached parameter sets and whether they have been
// discovered yet. It never blocks.
func (p *ParameterSets) Get() (vps, sps, pps string, ok bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.vps, p.sps, p.pps, p.initialized
}

// WaitReady blocks until the first complete VPS/SPS/PPS triple has been
// observed, or cancel fires first. A nil or never-closed cancel waits
// indefinitely.
func (p *ParameterSets) WaitReady(cancel <-chan struct{}) bool {
	p.mutex.Lock()
	if p.initialized {
		p.mutex.Unlock()
		return true
	}
	p.mutex.Unlock()
	select {
	case <-p.readyChan():
		return true
	case <-cancel:
		return false
	}
}

func (p *ParameterSets) set(t mch265.NALUType, raw []byte) {
	encoded := base64.StdEncoding.EncodeToString(raw)
	p.mutex.Lock()
	switch t {
	case mch265.NALUType_VPS_NUT:
		p.vps = encoded
	case mch265.NALUType_SPS_NUT:
		p.sps = encoded
	case mch265.NALUType_PPS_NUT:
		p.pps = encoded
	}
	justReady := !p.initialized && p.vps != "" && p.sps != "" && p.pps != ""
	if justReady {
		p.initialized = true
	}
	p.mutex.Unlock()
	if justReady {
		close(p.readyChan())
	}
}

// VideoTap is the EncoderTap instance sitting in front of VideoStream. It
// intercepts CODEC_CONFIG frames for parameter-set discovery and forwards
// everything else verbatim.
type VideoTap struct {
	Tap
	Params ParameterSets

	units [16]nal.Unit
}

// OnFrame is the callback the external video encoder invokes for every
// access unit (spec §4.7).
func (v *VideoTap) OnFrame(frame *buffer.Frame) {
	if frame.Flags&buffer.FlagCodecConfig != 0 {
		data := frame.Payload()
		units := nal.Extract(data, 0, len(data), v.units[:0], len(v.units))
		for _, u := range units {
			if !u.Valid() {
				continue
			}
			t := nal.Type(data, u)
			if nal.IsParameterSet(t) {
				v.Params.set(t, data[u.HeaderOffset():u.End])
			}
		}
		return
	}
	v.dispatch(frame)
}

// AudioTap sits in front of the audio DelayQueue: it suppresses
// CODEC_CONFIG frames and paces everything else before fan-out.
type AudioTap struct {
	Tap
	queue *delayqueue.DelayQueue
}

// NewAudioTap builds an AudioTap backed by a fresh DelayQueue drawing
// storage from pool. A nil log discards every line.
func NewAudioTap(pool *buffer.HierarchyPool, scratchCap int, log logger.Writer) *AudioTap {
	a := &AudioTap{}
	a.queue = delayqueue.New(pool, scratchCap, func(f *buffer.Frame) {
		a.dispatch(f)
	}, log)
	a.queue.Start()
	return a
}

// OnFrame is the callback the external audio encoder invokes for every
// access unit. A frame that the DelayQueue cannot accept (pool exhausted
// or oversized, spec §7) is dropped; DelayQueue.Enqueue already logs it.
func (a *AudioTap) OnFrame(frame *buffer.Frame) {
	if frame.Flags&buffer.FlagCodecConfig != 0 {
		return
	}
	_ = a.queue.Enqueue(frame.Payload(), frame.PresentationTimeUs, frame.Flags)
}

// Stop tears down the audio pacing consumer.
func (a *AudioTap) Stop() {
	a.queue.Stop()
}
