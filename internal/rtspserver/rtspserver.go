// Package rtspserver implements RtspServer (spec §3, §4.11, component
// C11): the accept loop and fixed client slot table. Grounded in the
// teacher's internal/servers/rtsp/server.go accept-loop shape, reduced to
// a fixed two-slot table (spec §6: "max 2 clients") and translated from
// the original's self-pipe cancellable listener to context.Context plus
// internal/cancelsocket.
package rtspserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rtsp-streamer/internal/cancelsocket"
	"github.com/rtsp-streamer/internal/conf"
	"github.com/rtsp-streamer/internal/encodertap"
	"github.com/rtsp-streamer/internal/logger"
	"github.com/rtsp-streamer/internal/rtpsession"
	"github.com/rtsp-streamer/internal/rtspsession"
	"github.com/rtsp-streamer/internal/stats"
	"github.com/rtsp-streamer/internal/streamtrack"
)

type discardLogger struct{}

func (discardLogger) Log(logger.Level, string, ...interface{}) {}

// Server owns the listening socket and the fixed client slot table.
type Server struct {
	conf conf.Config
	log  logger.Writer
	// acceptWarn rate-limits repeated Accept() failures so a flapping
	// network interface cannot flood the log (teacher's
	// logger.NewLimitedLogger, internal/logger/limited_logger.go).
	acceptWarn logger.Writer

	videoTap *encodertap.VideoTap
	audioTap *encodertap.AudioTap
	media    rtspsession.Media

	ctx    context.Context
	cancel context.CancelFunc
	ln     *cancelsocket.Listener

	slots      []chan struct{}
	acceptDone chan struct{}

	stopOnce sync.Once
}

// New builds a Server wired to the given encoder taps. videoEnabled and
// audioEnabled decide which tracks appear in SDP and get track indices
// assigned (spec §4.10: "sequentially 0,1,... in the order (video,
// audio)").
func New(c conf.Config, videoTap *encodertap.VideoTap, audioTap *encodertap.AudioTap, log logger.Writer, videoEnabled, audioEnabled bool) *Server {
	if log == nil {
		log = discardLogger{}
	}
	s := &Server{
		conf:       c,
		log:        log,
		acceptWarn: logger.NewLimitedLogger(log),
		videoTap:   videoTap,
		audioTap:   audioTap,
		slots:      make([]chan struct{}, c.MaxClients),
	}

	idx := 0
	s.media.VideoEnabled = videoEnabled
	if videoEnabled {
		s.media.VideoTrackIdx = idx
		idx++
		s.media.VideoParams = &videoTap.Params
	}
	s.media.AudioEnabled = audioEnabled
	if audioEnabled {
		s.media.AudioTrackIdx = idx
	}
	return s
}

// Start binds the listener and launches the acceptor goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.conf.RTSPPort))
	if err != nil {
		return err
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.ln = cancelsocket.NewListener(s.ctx, ln)
	s.acceptDone = make(chan struct{})
	go s.acceptLoop()
	return nil
}

// Stop signals shutdown, unblocks the listener and every client
// connection, and joins the acceptor and all client workers (spec
// §4.11: "Shutdown"). Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.ln.Cancel()
		<-s.acceptDone
		for _, done := range s.slots {
			if done != nil {
				<-done
			}
		}
	})
}

func (s *Server) acceptLoop() {
	defer close(s.acceptDone)
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, cancelsocket.ErrCancelled) {
				return
			}
			s.acceptWarn.Log(logger.Warn, "accept: %v", err)
			continue
		}

		idx := s.findFreeSlot()
		if idx < 0 {
			conn.Close()
			continue
		}
		s.assign(idx, conn)
	}
}

func (s *Server) findFreeSlot() int {
	for i, done := range s.slots {
		if done == nil {
			return i
		}
		select {
		case <-done:
			return i
		default:
		}
	}
	return -1
}

func (s *Server) assign(idx int, rawConn net.Conn) {
	conn := cancelsocket.NewConn(s.ctx, rawConn)

	trackConf := streamtrack.Config{
		ClockRate:      0, // set per track below
		RTPMaxPacket:   s.conf.RTPMaxPacketSize,
		RTCPSRInterval: s.conf.RTCPSRInterval,
		RTCPSRMinPkts:  s.conf.RTCPSRMinPackets,
	}

	session := &rtpsession.Session{}
	ctx := new(int) // unique listener identity for this client's lifetime

	if s.media.VideoEnabled {
		vc := trackConf
		vc.PayloadType = conf.PayloadTypeH265
		vc.ClockRate = conf.VideoClockRate
		video := streamtrack.NewVideoStream(vc, s.conf.NormalVideoFrameSize, s.conf.MaxVideoFrameSize, stats.New(s.log, "video"), s.log)
		s.videoTap.AddListener(ctx, video.OnFrame)
		session.Video = video
	}
	if s.media.AudioEnabled {
		ac := trackConf
		ac.PayloadType = conf.PayloadTypeAAC
		ac.ClockRate = conf.AudioClockRate
		audio := streamtrack.NewAudioStream(ac, s.conf.MaxAudioFrameSize, stats.New(s.log, "audio"), s.log)
		s.audioTap.AddListener(ctx, audio.OnFrame)
		session.Audio = audio
	}

	client := rtspsession.New(conn, &s.media, session, s.log, s.ctx, idx)
	done := make(chan struct{})
	s.slots[idx] = done
	go func() {
		client.Run()
		if s.media.VideoEnabled {
			s.videoTap.RemoveListener(ctx)
		}
		if s.media.AudioEnabled {
			s.audioTap.RemoveListener(ctx)
		}
		close(done)
	}()
}
