package streamtrack

import (
	"io"
	"time"

	"github.com/rtsp-streamer/internal/buffer"
	"github.com/rtsp-streamer/internal/logger"
	"github.com/rtsp-streamer/internal/packetizer"
	"github.com/rtsp-streamer/internal/stats"
)

// AudioStream is the per-track RTP writer for the AAC path (spec §4.8).
type AudioStream struct {
	base

	frameBuf [2]buffer.Frame
}

// NewAudioStream builds an idle AudioStream whose double buffer cells
// hold up to maxFrameSize bytes each. A nil log discards every line.
func NewAudioStream(conf Config, maxFrameSize int, st *stats.Stats, log logger.Writer) *AudioStream {
	a := &AudioStream{}
	a.initBase(conf, st, log)
	a.frameBuf[0] = buffer.NewFrame(maxFrameSize)
	a.frameBuf[1] = buffer.NewFrame(maxFrameSize)
	return a
}

// Start transitions Idle->Running and launches the writer goroutine.
// Idempotent: returns false without effect if already running.
func (a *AudioStream) Start(conn io.Writer, rtpChannel, rtcpChannel byte, ssrc uint32) bool {
	if !a.startCommon(conn, rtpChannel, rtcpChannel, ssrc) {
		return false
	}
	go a.run()
	return true
}

// Stop transitions Running->Stopping and waits for the writer to exit.
// Idempotent.
func (a *AudioStream) Stop() {
	a.stopCommon()
}

// OnFrame is the EncoderTap listener callback (the producer side of the
// double buffer, spec §4.8). An oversize access unit is dropped without
// advancing the sequence number (spec §7).
func (a *AudioStream) OnFrame(frame *buffer.Frame) {
	a.mutex.Lock()
	w := 1 - a.readIdx.Load()
	if !a.frameBuf[w].CopyFrom(frame) {
		a.mutex.Unlock()
		a.logf(logger.Warn, "audio: dropping oversize access unit (%d bytes)", frame.Size)
		return
	}
	a.ready[w] = true
	a.writeIdx.Store(w)
	a.cond.Signal()
	a.mutex.Unlock()
	if a.stats != nil {
		a.stats.OnReceive(time.Now().UnixMicro())
	}
}

func (a *AudioStream) run() {
	defer close(a.done)
	for {
		a.mutex.Lock()
		var w int32
		for {
			if State(a.state.Load()) != StateRunning {
				a.mutex.Unlock()
				return
			}
			w = a.writeIdx.Load()
			if a.ready[w] && a.frameBuf[w].PresentationTimeUs > a.lastPTSus {
				break
			}
			a.cond.Wait()
		}

		a.readIdx.Store(w)
		a.cond.Broadcast()
		for a.writeIdx.Load() == w && State(a.state.Load()) == StateRunning {
			a.cond.Wait()
		}
		if State(a.state.Load()) != StateRunning {
			a.mutex.Unlock()
			return
		}

		ptsUs := a.frameBuf[w].PresentationTimeUs
		payload := append([]byte(nil), a.frameBuf[w].Payload()...)
		a.ready[w] = false
		a.mutex.Unlock()

		rtpTS := a.calculateRTPTimestamp(ptsUs)
		n, err := packetizer.WriteAAC(a.scratch, a.rtpChannel, a.conf.PayloadType, a.nextSeq(), rtpTS, a.ssrc, payload)
		if err != nil {
			return
		}
		if _, err := a.conn.Write(a.scratch[:n]); err != nil {
			return
		}
		a.recordSent(rtpTS, ptsUs, n)
		a.maybeSendSR()
	}
}
