package packetizer

import (
	"time"

	"github.com/pion/rtcp"
)

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// ntpTime converts a wall-clock instant to an RFC 3550 64-bit fixed-point
// NTP timestamp (32 bits of seconds, 32 bits of fraction).
func ntpTime(t time.Time) uint64 {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) * (1 << 32) / 1e9
	return secs<<32 | frac
}

// WriteRTCPSenderReport builds an RTCP Sender Report (spec §4.4.3) for one
// stream's cumulative counters and writes it, interleave-prefixed, to dst.
func WriteRTCPSenderReport(
	dst []byte,
	channel byte,
	ssrc uint32,
	now time.Time,
	rtpTimestamp uint32,
	packetCount, octetCount uint32,
) (int, error) {
	sr := &rtcp.SenderReport{
		SSRC:        ssrc,
		NTPTime:     ntpTime(now),
		RTPTime:     rtpTimestamp,
		PacketCount: packetCount,
		OctetCount:  octetCount,
	}
	raw, err := sr.Marshal()
	if err != nil {
		return 0, err
	}
	if tcpPrefixSize+len(raw) > len(dst) {
		return 0, ErrBufferTooSmall
	}
	copy(dst[tcpPrefixSize:], raw)
	writePrefix(dst, channel, len(raw))
	return tcpPrefixSize + len(raw), nil
}
