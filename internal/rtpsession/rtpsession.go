// Package rtpsession implements RtpSession (spec §3, §4.9, component C9):
// the bundle of one AudioStream and one VideoStream bound to a single
// client socket. Grounded in the teacher's per-connection session types
// (internal/servers/rtsp/session.go), which likewise bundle several
// per-track writers behind one start/stop lifecycle.
package rtpsession

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/rtsp-streamer/internal/streamtrack"
)

// Session bundles the audio and video RTP writers for one client. Either
// track may be nil if that media type was not set up.
type Session struct {
	Video *streamtrack.VideoStream
	Audio *streamtrack.AudioStream
}

func randSSRC() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// Start starts every enabled track (one whose RTSP channel is >= 0) with
// a freshly generated SSRC (spec §4.9).
func (s *Session) Start(conn io.Writer, videoChannel, videoRTCPChannel, audioChannel, audioRTCPChannel int) {
	if s.Video != nil && videoChannel >= 0 {
		s.Video.Start(conn, byte(videoChannel), byte(videoRTCPChannel), randSSRC())
	}
	if s.Audio != nil && audioChannel >= 0 {
		s.Audio.Start(conn, byte(audioChannel), byte(audioRTCPChannel), randSSRC())
	}
}

// Stop stops both tracks.
func (s *Session) Stop() {
	if s.Video != nil {
		s.Video.Stop()
	}
	if s.Audio != nil {
		s.Audio.Stop()
	}
}

// Running reports whether either track is still running (spec §4.9:
// "logical OR over the two tracks").
func (s *Session) Running() bool {
	return (s.Video != nil && s.Video.Running()) || (s.Audio != nil && s.Audio.Running())
}
