// Command rtsp-streamer wires the streaming pipeline together and serves
// RTSP on the configured port. It owns no capture or encoding logic
// itself (spec §1 Non-goals): a real deployment links this package
// against platform-specific VideoEncoderTap/AudioEncoderTap producers
// that call VideoTap.OnFrame / AudioTap.OnFrame as access units arrive.
// Grounded in the teacher's trivial main.go (core.New().Wait()) pattern.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rtsp-streamer/internal/buffer"
	"github.com/rtsp-streamer/internal/conf"
	"github.com/rtsp-streamer/internal/encodertap"
	"github.com/rtsp-streamer/internal/logger"
	"github.com/rtsp-streamer/internal/rtspserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	log := &logger.Logger{
		Level:        logger.Info,
		Destinations: []logger.Destination{logger.DestinationStdout},
	}
	if err := log.Initialize(); err != nil {
		return err
	}
	defer log.Close()

	c := conf.Default()

	videoTap := &encodertap.VideoTap{}
	audioPool := buffer.NewHierarchyPool(c.AudioQueueDepth, c.MaxAudioFrameSize, c.MaxAudioFrameSize)
	audioTap := encodertap.NewAudioTap(audioPool, c.MaxAudioFrameSize, log)
	defer audioTap.Stop()

	srv := rtspserver.New(c, videoTap, audioTap, log, true, true)
	if err := srv.Start(); err != nil {
		return err
	}
	log.Log(logger.Info, "listening on :%d", c.RTSPPort)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	srv.Stop()
	return nil
}
