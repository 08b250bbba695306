// Package stats implements StreamStats (spec §3, §4.12, component C12):
// per-track running counters and Welford online variance, logged
// periodically at Debug level. Purely observational -- nothing here ever
// returns an error, mirroring the teacher's internal/stats package, whose
// counters are likewise fire-and-forget atomics with a no-op Close.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/rtsp-streamer/internal/logger"
)

// logInterval is how many received frames elapse between Debug log lines
// (spec §6: "stats log interval 10,000 frames").
const logInterval = 10000

// Stats holds one track's running metrics. All counters are safe for
// concurrent use; the Welford accumulators are owned by the single
// producer/consumer pair that calls StartProcess/EndProcess and
// OnSend/OnReceive, matching the rest of the pipeline's single-writer
// discipline.
type Stats struct {
	FramesReceived atomic.Int64
	FramesSent     atomic.Int64

	processCount int64
	processMean  float64
	processM2    float64

	interarrivalCount int64
	interarrivalMean  float64
	interarrivalM2    float64

	lastSendUs int64
	lastRecvUs int64

	processStart time.Time

	log logger.Writer
	tag string
}

// New builds a Stats block that logs through parent, prefixed with tag
// (e.g. "video" or "audio").
func New(parent logger.Writer, tag string) *Stats {
	return &Stats{log: parent, tag: tag}
}

// StartProcess marks the beginning of one frame's processing span.
func (s *Stats) StartProcess() {
	s.processStart = time.Now()
}

// EndProcess closes the processing span opened by StartProcess and folds
// its duration into the running Welford mean.
func (s *Stats) EndProcess() {
	if s.processStart.IsZero() {
		return
	}
	elapsedUs := float64(time.Since(s.processStart).Microseconds())
	s.processCount++
	delta := elapsedUs - s.processMean
	s.processMean += delta / float64(s.processCount)
	s.processM2 += delta * (elapsedUs - s.processMean)
}

// OnReceive records that a frame was received at recvUs (its wall-clock
// arrival time in microseconds) and folds the send/receive cadence delta
// into a second Welford accumulator.
func (s *Stats) OnReceive(recvUs int64) {
	n := s.FramesReceived.Add(1)
	if s.lastRecvUs != 0 && s.lastSendUs != 0 {
		recvDelta := recvUs - s.lastRecvUs
		sendDelta := s.lastSendUs - s.lastRecvUs
		variance := float64(sendDelta - recvDelta)
		s.interarrivalCount++
		delta := variance - s.interarrivalMean
		s.interarrivalMean += delta / float64(s.interarrivalCount)
		s.interarrivalM2 += delta * (variance - s.interarrivalMean)
	}
	s.lastRecvUs = recvUs

	if n%logInterval == 0 {
		s.logSnapshot()
	}
}

// OnSend records that a frame was sent at sendUs.
func (s *Stats) OnSend(sendUs int64) {
	s.FramesSent.Add(1)
	s.lastSendUs = sendUs
}

func (s *Stats) logSnapshot() {
	if s.log == nil {
		return
	}
	s.log.Log(logger.Debug, "[%s] received=%d sent=%d avg_process_us=%.1f interarrival_variance_us=%.1f",
		s.tag, s.FramesReceived.Load(), s.FramesSent.Load(), s.processMean, s.interarrivalMean)
}
