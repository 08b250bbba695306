package rtspsession

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestSetup(t *testing.T) {
	raw := "SETUP rtsp://127.0.0.1:8554/stream/trackID=0 RTSP/1.0\r\n" +
		"CSeq: 3\r\n" +
		"Transport: RTP/AVP/TCP;unicast;interleaved=0-1\r\n" +
		"\r\n"
	req := parseRequest(raw)
	require.Equal(t, "SETUP", req.Method)
	require.True(t, req.HasCSeq)
	require.Equal(t, 3, req.CSeq)
	require.True(t, req.HasTrackID)
	require.Equal(t, 0, req.TrackID)
	require.True(t, req.HasTCPTransport)
}

func TestParseRequestMissingCSeq(t *testing.T) {
	req := parseRequest("OPTIONS rtsp://x RTSP/1.0\r\n\r\n")
	require.False(t, req.HasCSeq)
}

func TestParseRequestRejectsNonTCPTransport(t *testing.T) {
	raw := "SETUP rtsp://x/trackID=1 RTSP/1.0\r\nCSeq: 5\r\nTransport: RTP/AVP;unicast;client_port=8000-8001\r\n\r\n"
	req := parseRequest(raw)
	require.True(t, req.HasCSeq)
	require.False(t, req.HasTCPTransport)
}

func TestFirstInt(t *testing.T) {
	n, ok := firstInt(" 42\r")
	require.True(t, ok)
	require.Equal(t, 42, n)

	_, ok = firstInt("no digits here")
	require.False(t, ok)
}
