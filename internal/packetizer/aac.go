package packetizer

import "errors"

// ErrAACTooLarge is returned when a single access unit cannot be
// represented in one RTP packet. The pipeline never fragments AAC (spec
// §4.4.2) -- audio frames are small and fixed-size by construction.
var ErrAACTooLarge = errors.New("packetizer: aac access unit too large for one packet")

const (
	aacAUHeadersLen = 2 // AU-headers-length field itself (RFC 3640 §3.2.1)
	aacAUHeaderLen  = 2 // one AU-header: 13-bit size + 3-bit index
)

// WriteAAC packetizes a single AAC access unit as MPEG4-GENERIC/RTP (RFC
// 3640 §3.2). The pipeline only ever carries one AU per RTP packet, so
// AU-headers-length is always 16 (one AU-header of 16 bits) and the
// AU-index is always 0.
func WriteAAC(
	dst []byte,
	channel byte,
	payloadType uint8,
	seq uint16,
	timestamp, ssrc uint32,
	au []byte,
) (int, error) {
	dstCap := len(dst) - tcpPrefixSize
	payloadLen := aacAUHeadersLen + aacAUHeaderLen + len(au)
	if rtpHeaderSize+payloadLen > dstCap {
		return 0, ErrAACTooLarge
	}

	payload := make([]byte, payloadLen)
	// AU-headers-length in bits, big-endian: one 16-bit AU-header.
	payload[0] = 0x00
	payload[1] = 0x10
	// AU-header: 13-bit size, 3-bit index (always 0).
	size := uint16(len(au)) & 0x1FFF
	payload[2] = byte(size >> 5)
	payload[3] = byte(size<<3) & 0xF8
	copy(payload[aacAUHeadersLen+aacAUHeaderLen:], au)

	return marshalRTP(dst, channel, payloadType, seq, timestamp, ssrc, true, payload)
}
