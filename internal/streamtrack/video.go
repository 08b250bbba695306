package streamtrack

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/rtsp-streamer/internal/buffer"
	"github.com/rtsp-streamer/internal/logger"
	"github.com/rtsp-streamer/internal/nal"
	"github.com/rtsp-streamer/internal/packetizer"
	"github.com/rtsp-streamer/internal/stats"
)

// frameKind classifies which slot a video access unit landed in.
type frameKind int

const (
	frameNone frameKind = iota
	frameIFrame
	frameNonIFrame
)

const maxNALsPerAU = 16

// VideoStream is the per-track RTP writer for the H.265 path (spec
// §4.8). It keeps a second, keyframe-sized buffer pair alongside the
// regular one so a cached key frame can be retransmitted to recover a
// client that connects between key frames.
type VideoStream struct {
	base

	frameBuf [2]buffer.Frame // NORMAL_VIDEO capacity, non-key frames
	keyBuf   [2]buffer.Frame // MAX_VIDEO capacity, key frames
	kind     [2]frameKind

	haveKeyframe atomic.Bool

	units [maxNALsPerAU]nal.Unit
}

// NewVideoStream builds an idle VideoStream. A nil log discards every
// line.
func NewVideoStream(conf Config, normalCap, maxCap int, st *stats.Stats, log logger.Writer) *VideoStream {
	v := &VideoStream{}
	v.initBase(conf, st, log)
	v.frameBuf[0] = buffer.NewFrame(normalCap)
	v.frameBuf[1] = buffer.NewFrame(normalCap)
	v.keyBuf[0] = buffer.NewFrame(maxCap)
	v.keyBuf[1] = buffer.NewFrame(maxCap)
	return v
}

// Start transitions Idle->Running and launches the writer goroutine.
func (v *VideoStream) Start(conn io.Writer, rtpChannel, rtcpChannel byte, ssrc uint32) bool {
	if !v.startCommon(conn, rtpChannel, rtcpChannel, ssrc) {
		return false
	}
	v.haveKeyframe.Store(false)
	go v.run()
	return true
}

// Stop transitions Running->Stopping and waits for the writer to exit.
func (v *VideoStream) Stop() {
	v.stopCommon()
}

// OnFrame is the EncoderTap listener callback (spec §4.8): copies into
// the keyframe slot if the access unit is a key frame, else the regular
// slot, always publishing through the shared write_idx. An access unit
// larger than its slot's capacity is dropped without advancing the
// sequence number (spec §7: "Oversize frame ... do not advance sequence
// number").
func (v *VideoStream) OnFrame(frame *buffer.Frame) {
	v.mutex.Lock()
	w := 1 - v.readIdx.Load()
	isKey := frame.Flags&buffer.FlagKeyFrame != 0
	var fit bool
	if isKey {
		fit = v.keyBuf[w].CopyFrom(frame)
		if fit {
			v.kind[w] = frameIFrame
		}
	} else {
		fit = v.frameBuf[w].CopyFrom(frame)
		if fit {
			v.kind[w] = frameNonIFrame
		}
	}
	if !fit {
		v.mutex.Unlock()
		v.logf(logger.Warn, "video: dropping oversize access unit (%d bytes, key=%v)", frame.Size, isKey)
		return
	}
	v.ready[w] = true
	v.writeIdx.Store(w)
	v.cond.Signal()
	v.mutex.Unlock()
	if isKey {
		v.haveKeyframe.Store(true)
	}
	if v.stats != nil {
		v.stats.OnReceive(time.Now().UnixMicro())
	}
}

func (v *VideoStream) currentFrame(w int32) *buffer.Frame {
	if v.kind[w] == frameIFrame {
		return &v.keyBuf[w]
	}
	return &v.frameBuf[w]
}

func (v *VideoStream) run() {
	defer close(v.done)
	for {
		v.mutex.Lock()
		var w int32
		for {
			if State(v.state.Load()) != StateRunning {
				v.mutex.Unlock()
				return
			}
			w = v.writeIdx.Load()
			pts := v.currentFrame(w).PresentationTimeUs
			if v.ready[w] && pts > v.lastPTSus && (v.kind[w] == frameIFrame || v.haveKeyframe.Load()) {
				break
			}
			v.cond.Wait()
		}

		v.readIdx.Store(w)
		v.cond.Broadcast()
		for v.writeIdx.Load() == w && State(v.state.Load()) == StateRunning {
			v.cond.Wait()
		}
		if State(v.state.Load()) != StateRunning {
			v.mutex.Unlock()
			return
		}

		kind := v.kind[w]
		cur := v.currentFrame(w)
		payload := append([]byte(nil), cur.Payload()...)
		ptsUs := cur.PresentationTimeUs
		var retransmit []byte
		var retransmitPTS int64
		if kind == frameNonIFrame && v.keyBuf[w].PresentationTimeUs > v.lastPTSus {
			retransmit = append([]byte(nil), v.keyBuf[w].Payload()...)
			retransmitPTS = v.keyBuf[w].PresentationTimeUs
		}
		v.ready[w] = false
		v.mutex.Unlock()

		if retransmit != nil {
			if !v.sendAccessUnit(retransmit, retransmitPTS) {
				return
			}
		}
		if !v.sendAccessUnit(payload, ptsUs) {
			return
		}
		v.maybeSendSR()
	}
}

// sendAccessUnit packetizes and sends every NAL unit in data, using one
// RTP timestamp for the whole access unit (spec §4.8: "Packetize-and-
// send").
func (v *VideoStream) sendAccessUnit(data []byte, ptsUs int64) bool {
	rtpTS := v.calculateRTPTimestamp(ptsUs)
	units := nal.Extract(data, 0, len(data), v.units[:0], maxNALsPerAU)

	lastValid := -1
	for i, u := range units {
		if u.Valid() {
			lastValid = i
		}
	}

	sentAny := false
	for i, u := range units {
		if !u.Valid() {
			continue
		}
		srcOffset := u.Start
		for srcOffset < u.End {
			n, err := packetizer.WriteH265(v.scratch, v.rtpChannel, v.conf.PayloadType, v.nextSeq(), rtpTS, v.ssrc, data, u, &srcOffset, i == lastValid)
			if err != nil {
				return false
			}
			if _, err := v.conn.Write(v.scratch[:n]); err != nil {
				return false
			}
			v.packetCnt++
			v.octetCnt += uint32(n)
			sentAny = true
		}
	}
	if sentAny {
		v.recordWatermark(rtpTS, ptsUs)
	}
	return true
}
