package rtspsession

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtsp-streamer/internal/encodertap"
	"github.com/rtsp-streamer/internal/rtpsession"
)

func TestClientOptionsThenTeardown(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	media := &Media{VideoEnabled: true, VideoTrackIdx: 0, VideoParams: &encodertap.ParameterSets{}}
	c := New(serverConn, media, &rtpsession.Session{}, nil, nil, 0)

	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()

	rw := bufio.NewReadWriter(bufio.NewReader(clientConn), bufio.NewWriter(clientConn))
	resp := sendRequest(t, rw, "OPTIONS rtsp://x RTSP/1.0\r\nCSeq: 1\r\n\r\n")
	require.Contains(t, resp, "200 OK")

	resp = sendRequest(t, rw, "TEARDOWN rtsp://x RTSP/1.0\r\nCSeq: 2\r\n\r\n")
	require.Contains(t, resp, "200 OK")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after TEARDOWN")
	}
}

func sendRequest(t *testing.T, rw *bufio.ReadWriter, req string) string {
	t.Helper()
	_, err := rw.WriteString(req)
	require.NoError(t, err)
	require.NoError(t, rw.Flush())

	var resp string
	for {
		line, err := rw.ReadString('\n')
		require.NoError(t, err)
		resp += line
		if line == "\r\n" {
			break
		}
	}
	return resp
}
