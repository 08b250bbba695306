// Package rtspsession implements RtspClient (spec §3, §4.10, component
// C10): the per-connection RTSP/1.0 protocol state machine. Grounded in
// the teacher's internal/servers/rtsp/session.go connection lifecycle and
// in gortsplib's request/response model, reduced to the five methods and
// fixed response shapes spec §4.10 requires.
package rtspsession

import "github.com/rtsp-streamer/internal/encodertap"

// Media describes the server-wide, write-once-at-startup track layout
// (spec §5: "RtspMedia: written once at server start, read-only
// thereafter").
type Media struct {
	VideoEnabled bool
	AudioEnabled bool

	VideoTrackIdx int
	AudioTrackIdx int

	VideoParams *encodertap.ParameterSets
}

// Interleave channels (spec §6).
const (
	VideoRTPChannel  = 0
	VideoRTCPChannel = 1
	AudioRTPChannel  = 2
	AudioRTCPChannel = 3
)

// ChannelsForTrack maps a SETUP trackID to its RTP/RTCP interleave
// channels (spec §4.10: "Track->channel mapping").
func (m *Media) ChannelsForTrack(trackID int) (rtp, rtcp int, ok bool) {
	if m.VideoEnabled && trackID == m.VideoTrackIdx {
		return VideoRTPChannel, VideoRTCPChannel, true
	}
	if m.AudioEnabled && trackID == m.AudioTrackIdx {
		return AudioRTPChannel, AudioRTCPChannel, true
	}
	return 0, 0, false
}
