package rtspsession

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rtsp-streamer/internal/logger"
	"github.com/rtsp-streamer/internal/rtpsession"
)

// Client is one connected client's protocol worker (spec §4.10). Exactly
// one goroutine drives Run; the RTP writers started by Session run on
// their own goroutines and never touch the RTSP request/response stream.
type Client struct {
	id      string
	conn    net.Conn
	media   *Media
	session *rtpsession.Session
	log     logger.Writer
	ctx     context.Context

	playing atomic.Bool
}

// New builds a Client wrapping conn. session's tracks must already be
// built (Idle) but not started; New does not start them. A nil log
// discards every line rather than requiring every caller (including
// tests) to supply one. slotIndex is this client's fixed slot in the
// server's client table; it becomes the RTSP Session identifier
// (client_<slotIndex>), grounded in original_source's S_RtspClient.cpp
// ("client_%d" formatted from the slot index, not a generated token). A
// nil ctx blocks indefinitely on parameter-set waits rather than being
// cancellable.
func New(conn net.Conn, media *Media, session *rtpsession.Session, log logger.Writer, ctx context.Context, slotIndex int) *Client {
	if log == nil {
		log = discardLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Client{
		id:      strconv.Itoa(slotIndex),
		conn:    conn,
		media:   media,
		session: session,
		log:     log,
		ctx:     ctx,
	}
}

type discardLogger struct{}

func (discardLogger) Log(logger.Level, string, ...interface{}) {}

// Run drives the request/response loop until TEARDOWN, disconnect, or a
// read error. It returns when the client is done; callers join on it by
// simply waiting for Run to return (spec §4.11: "joining any previous
// worker in that slot").
func (c *Client) Run() {
	c.log.Log(logger.Debug, "client %s connected from %s", c.id, c.conn.RemoteAddr())
	defer func() {
		c.session.Stop()
		c.log.Log(logger.Debug, "client %s disconnected", c.id)
	}()

	reader := bufio.NewReader(c.conn)
	for {
		raw, err := readRequest(reader)
		if err != nil {
			return
		}
		if raw == "" {
			continue
		}
		req := parseRequest(raw)
		if !req.HasCSeq {
			// Stray interleaved frame arriving on the same socket, or an
			// unparsable line -- ignored without a response (spec §4.10).
			continue
		}
		c.log.Log(logger.Debug, "client %s -> %s (CSeq %d)", c.id, req.Method, req.CSeq)

		resp := c.handle(req)
		if _, err := c.conn.Write([]byte(resp)); err != nil {
			return
		}
		if req.Method == "TEARDOWN" {
			return
		}
	}
}

// readRequest reads lines until a blank line terminates the request
// header block, returning the accumulated raw text.
func readRequest(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		sb.WriteString(line)
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}
	return sb.String(), nil
}

func (c *Client) handle(req request) string {
	switch req.Method {
	case "OPTIONS":
		return fmt.Sprintf("RTSP/1.0 200 OK\r\nCSeq: %d\r\nPublic: OPTIONS, DESCRIBE, SETUP, PLAY, TEARDOWN\r\n\r\n", req.CSeq)

	case "DESCRIBE":
		return c.handleDescribe(req)

	case "SETUP":
		return c.handleSetup(req)

	case "PLAY":
		return c.handlePlay(req)

	case "TEARDOWN":
		c.session.Stop()
		return fmt.Sprintf("RTSP/1.0 200 OK\r\nCSeq: %d\r\nSession: client_%s\r\n\r\n", req.CSeq, c.id)

	default:
		return fmt.Sprintf("RTSP/1.0 501 Not Implemented\r\nCSeq: %d\r\n\r\n", req.CSeq)
	}
}

func (c *Client) handleDescribe(req request) string {
	host, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		host = c.conn.LocalAddr().String()
	}
	body, err := c.media.buildSDP(host, c.ctx.Done())
	if err != nil {
		return fmt.Sprintf("RTSP/1.0 500 Internal Server Error\r\nCSeq: %d\r\n\r\n", req.CSeq)
	}
	return fmt.Sprintf("RTSP/1.0 200 OK\r\nCSeq: %d\r\nContent-Type: application/sdp\r\nContent-Length: %d\r\n\r\n%s",
		req.CSeq, len(body), body)
}

func (c *Client) handleSetup(req request) string {
	if !req.HasTrackID {
		return fmt.Sprintf("RTSP/1.0 501 Not Implemented\r\nCSeq: %d\r\n\r\n", req.CSeq)
	}
	rtpCh, _, ok := c.media.ChannelsForTrack(req.TrackID)
	if !ok {
		return fmt.Sprintf("RTSP/1.0 501 Not Implemented\r\nCSeq: %d\r\n\r\n", req.CSeq)
	}
	if !req.HasTCPTransport {
		return fmt.Sprintf(
			"RTSP/1.0 461 Unsupported Transport\r\nCSeq: %d\r\nSupported: Transport: RTP/AVP/TCP;unicast;interleaved=%d-%d\r\n\r\n",
			req.CSeq, rtpCh, rtpCh+1)
	}
	return fmt.Sprintf(
		"RTSP/1.0 200 OK\r\nCSeq: %d\r\nTransport: RTP/AVP/TCP;unicast;interleaved=%d-%d\r\nSession: client_%s\r\n\r\n",
		req.CSeq, rtpCh, rtpCh+1, c.id)
}

func (c *Client) handlePlay(req request) string {
	if c.playing.CompareAndSwap(false, true) {
		videoCh, videoRTCPCh, audioCh, audioRTCPCh := -1, -1, -1, -1
		if c.media.VideoEnabled {
			videoCh, videoRTCPCh = VideoRTPChannel, VideoRTCPChannel
		}
		if c.media.AudioEnabled {
			audioCh, audioRTCPCh = AudioRTPChannel, AudioRTCPChannel
		}
		c.session.Start(c.conn, videoCh, videoRTCPCh, audioCh, audioRTCPCh)
	}
	return fmt.Sprintf("RTSP/1.0 200 OK\r\nCSeq: %d\r\nSession: client_%s\r\n\r\n", req.CSeq, c.id)
}
