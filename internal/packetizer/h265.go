// Package packetizer implements the stateless H.265, AAC-LATM and RTCP SR
// wire encoders (spec §4.4). Every packet is built as a pion/rtp or
// pion/rtcp struct and marshaled directly into the caller's buffer,
// immediately after a 4-byte `$<ch><len16>` TCP interleave prefix
// (RFC 2326 §10.12).
package packetizer

import (
	"errors"

	"github.com/pion/rtp"

	"github.com/rtsp-streamer/internal/nal"
)

// ErrBufferTooSmall is returned when dst cannot hold even a minimal packet.
var ErrBufferTooSmall = errors.New("packetizer: destination buffer too small")

const (
	tcpPrefixSize  = 4
	rtpHeaderSize  = 12
	h265PayloadHdr = 2
	h265FUOverhead = 3 // FU payload header (2) + FU header (1)

	fuType = 49
)

func writePrefix(dst []byte, channel byte, length int) {
	dst[0] = 0x24
	dst[1] = channel
	dst[2] = byte(length >> 8)
	dst[3] = byte(length)
}

func marshalRTP(dst []byte, channel byte, pt uint8, seq uint16, ts, ssrc uint32, marker bool, payload []byte) (int, error) {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
			Marker:         marker,
		},
		Payload: payload,
	}
	size := pkt.MarshalSize()
	if tcpPrefixSize+size > len(dst) {
		return 0, ErrBufferTooSmall
	}
	n, err := pkt.MarshalTo(dst[tcpPrefixSize:])
	if err != nil {
		return 0, err
	}
	writePrefix(dst, channel, n)
	return tcpPrefixSize + n, nil
}

// WriteH265 packetizes the part of unit u starting at *srcOffset, advancing
// *srcOffset past whatever it consumed. The caller loops until *srcOffset
// reaches u.End. payloadType is always 97 (spec §6); marker is set on the
// packet that completes the access unit (RFC 7798 §4.4.3) -- the caller
// passes auMarker=true only for the final NAL of the access unit.
//
// Returns the number of bytes written to dst (including the 4-byte TCP
// prefix), or an error if not even a minimal FU header fits.
func WriteH265(
	dst []byte,
	channel byte,
	payloadType uint8,
	seq uint16,
	timestamp, ssrc uint32,
	data []byte,
	u nal.Unit,
	srcOffset *int,
	auMarker bool,
) (int, error) {
	if *srcOffset < u.Start || *srcOffset >= u.End || u.End > len(data) {
		return 0, errors.New("packetizer: invalid NAL offset")
	}

	headerOff := u.HeaderOffset()
	bodyLen := u.End - headerOff // header (2 bytes) + payload, verbatim NAL content

	dstCap := len(dst) - tcpPrefixSize

	isSegmentStart := *srcOffset == u.Start
	isSingle := isSegmentStart && rtpHeaderSize+bodyLen <= dstCap

	if isSingle {
		n, err := marshalRTP(dst, channel, payloadType, seq, timestamp, ssrc, auMarker, data[headerOff:u.End])
		if err != nil {
			return 0, err
		}
		*srcOffset = u.End
		return n, nil
	}

	// Fragmentation Unit (RFC 7798 §4.4.3). The NAL header travels in the
	// FU payload header, so fragment data starts after it.
	if *srcOffset == u.Start {
		*srcOffset = headerOff + h265PayloadHdr
	}

	avail := dstCap - rtpHeaderSize - h265FUOverhead
	if avail <= 0 {
		return 0, ErrBufferTooSmall
	}

	remaining := u.End - *srcOffset
	chunk := remaining
	isEnd := true
	if chunk > avail {
		chunk = avail
		isEnd = false
	}

	header0 := data[headerOff]
	header1 := data[headerOff+1]
	nalType := (header0 >> 1) & 0x3F

	fuPayload := make([]byte, h265FUOverhead+chunk)
	fuPayload[0] = (header0 & 0x81) | ((fuType << 1) & 0x7E)
	fuPayload[1] = header1
	fuHeader := nalType
	if isSegmentStart {
		fuHeader |= 0x80
	}
	if isEnd {
		fuHeader |= 0x40
	}
	fuPayload[2] = fuHeader
	copy(fuPayload[h265FUOverhead:], data[*srcOffset:*srcOffset+chunk])

	marker := isEnd && auMarker
	n, err := marshalRTP(dst, channel, payloadType, seq, timestamp, ssrc, marker, fuPayload)
	if err != nil {
		return 0, err
	}
	*srcOffset += chunk
	return n, nil
}
