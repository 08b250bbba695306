// Package conf contains the struct that holds the configuration of the server.
//
// Every tunable named in the specification is a compile-time constant: there
// is no YAML or environment loader, because there is nothing for the server
// to reconfigure at runtime (see the Non-goals around dynamic renegotiation).
// Config exists as a struct rather than bare package constants so tests can
// shrink buffer sizes without mutating shared globals.
package conf

import "time"

// Protocol-fixed values (RFC 2326 interleave channels, RTP payload types).
const (
	VideoInterleaveRTP  = 0
	VideoInterleaveRTCP = 1
	AudioInterleaveRTP  = 2
	AudioInterleaveRTCP = 3

	PayloadTypeAAC  = 96
	PayloadTypeH265 = 97

	VideoClockRate = 90000
	AudioClockRate = 44100
)

// Config holds every compile-time tunable of the server.
type Config struct {
	// RTSPPort is the TCP port the server listens on.
	RTSPPort int

	// MaxClients is the fixed number of concurrent RTSP client slots.
	MaxClients int

	// MaxTapListeners is the maximum number of listeners an EncoderTap accepts.
	MaxTapListeners int

	// NormalVideoFrameSize is the capacity of a non-keyframe video buffer cell.
	NormalVideoFrameSize int

	// MaxVideoFrameSize is the capacity of a keyframe video buffer cell.
	MaxVideoFrameSize int

	// MaxAudioFrameSize is the capacity of an audio buffer cell.
	MaxAudioFrameSize int

	// RTPMaxPacketSize is the largest RTP packet (including the 4-byte TCP
	// interleave prefix) the packetizer is allowed to emit.
	RTPMaxPacketSize int

	// AudioQueueDepth is the capacity of the audio DelayQueue (C6).
	AudioQueueDepth int

	// RTCPSRInterval is how often an RTCP Sender Report is considered due.
	RTCPSRInterval time.Duration

	// RTCPSRMinPackets is the minimum cumulative packet count before the
	// first RTCP SR may be emitted.
	RTCPSRMinPackets uint32

	// StatsLogInterval is the number of received frames between stats log lines.
	StatsLogInterval uint64

	// EncoderPollTimeout is the encoder dequeue wait. No package in this
	// module reads it; the DelayQueue consumer waits without a timeout.
	EncoderPollTimeout time.Duration
}

// Default returns the server's compile-time configuration, per spec §6.
func Default() Config {
	return Config{
		RTSPPort:             8554,
		MaxClients:           2,
		MaxTapListeners:      2,
		NormalVideoFrameSize: 32 * 1024,
		MaxVideoFrameSize:    128 * 1024,
		MaxAudioFrameSize:    512,
		RTPMaxPacketSize:     1024,
		AudioQueueDepth:      30,
		RTCPSRInterval:       2 * time.Second,
		RTCPSRMinPackets:     50,
		StatsLogInterval:     10000,
		EncoderPollTimeout:   100 * time.Millisecond,
	}
}
