package rtspsession

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/rtsp-streamer/internal/buffer"
	"github.com/rtsp-streamer/internal/encodertap"
)

// readyParams builds a ParameterSets already populated with a VPS/SPS/PPS
// triple, the way a VideoTap would have it after its first codec-config
// access unit, so buildSDP's wait (spec §4.7, §4.10) returns immediately.
func readyParams(t *testing.T) *encodertap.ParameterSets {
	t.Helper()
	vt := &encodertap.VideoTap{}
	var data []byte
	data = append(data, naluAnnexB(mch265.NALUType_VPS_NUT, []byte{1, 2})...)
	data = append(data, naluAnnexB(mch265.NALUType_SPS_NUT, []byte{3, 4})...)
	data = append(data, naluAnnexB(mch265.NALUType_PPS_NUT, []byte{5, 6})...)
	f := buffer.NewFrame(len(data))
	f.Set(data, 0, buffer.FlagCodecConfig)
	vt.OnFrame(&f)
	_, _, _, ok := vt.Params.Get()
	require.True(t, ok)
	return &vt.Params
}

func naluAnnexB(t mch265.NALUType, body []byte) []byte {
	out := append([]byte{0, 0, 0, 1}, byte(t)<<1, 0x01)
	return append(out, body...)
}

func TestBuildSDPIncludesBothTracks(t *testing.T) {
	m := &Media{
		VideoEnabled: true, AudioEnabled: true,
		VideoTrackIdx: 0, AudioTrackIdx: 1,
		VideoParams: readyParams(t),
	}

	body, err := m.buildSDP("192.0.2.1", nil)
	require.NoError(t, err)
	text := string(body)

	require.Contains(t, text, "m=video 0 RTP/AVP 97")
	require.Contains(t, text, "m=audio 0 RTP/AVP 96")
	require.Contains(t, text, "a=rtpmap:97 H265/90000")
	require.Contains(t, text, "a=rtpmap:96 MPEG4-GENERIC/44100/1")
	require.Contains(t, text, "a=control:trackID=0")
	require.Contains(t, text, "a=control:trackID=1")
	require.Contains(t, text, "c=IN IP4 192.0.2.1")

	fmtp := ""
	for _, line := range strings.Split(text, "\r\n") {
		if strings.HasPrefix(line, "a=fmtp:97 ") {
			fmtp = line
		}
	}
	require.NotEmpty(t, fmtp, "expected an H265 fmtp line")
	require.Contains(t, fmtp, "sprop-vps=")
	require.Contains(t, fmtp, "sprop-sps=")
	require.Contains(t, fmtp, "sprop-pps=")
	require.NotContains(t, fmtp, "sprop-vps=;", "sprop-vps must not be empty")
	require.NotContains(t, fmtp, "sprop-sps=;", "sprop-sps must not be empty")
}

func TestBuildSDPVideoOnlyOmitsAudioMediaDescription(t *testing.T) {
	m := &Media{VideoEnabled: true, VideoTrackIdx: 0, VideoParams: readyParams(t)}

	body, err := m.buildSDP("192.0.2.1", nil)
	require.NoError(t, err)
	text := string(body)

	require.True(t, strings.Contains(text, "m=video"))
	require.False(t, strings.Contains(text, "m=audio"))
}

// TestBuildSDPBlocksUntilParameterSetsReady is the testable property from
// spec §8 #9: DESCRIBE completes only after a codec-config access unit
// has been processed. It must not return before that frame arrives, and
// must return once it does.
func TestBuildSDPBlocksUntilParameterSetsReady(t *testing.T) {
	vt := &encodertap.VideoTap{}
	m := &Media{VideoEnabled: true, VideoTrackIdx: 0, VideoParams: &vt.Params}

	done := make(chan struct{})
	go func() {
		_, err := m.buildSDP("192.0.2.1", nil)
		require.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("buildSDP returned before parameter sets were available")
	case <-time.After(100 * time.Millisecond):
	}

	var data []byte
	data = append(data, naluAnnexB(mch265.NALUType_VPS_NUT, []byte{1, 2})...)
	data = append(data, naluAnnexB(mch265.NALUType_SPS_NUT, []byte{3, 4})...)
	data = append(data, naluAnnexB(mch265.NALUType_PPS_NUT, []byte{5, 6})...)
	f := buffer.NewFrame(len(data))
	f.Set(data, 0, buffer.FlagCodecConfig)
	vt.OnFrame(&f)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("buildSDP did not unblock after parameter sets became available")
	}
}

// TestBuildSDPCancelledBeforeReadyReturnsError verifies DESCRIBE gives up
// cleanly (instead of hanging the client worker forever) when its cancel
// channel fires before parameter sets ever arrive, e.g. on server
// shutdown.
func TestBuildSDPCancelledBeforeReadyReturnsError(t *testing.T) {
	m := &Media{VideoEnabled: true, VideoTrackIdx: 0, VideoParams: &encodertap.ParameterSets{}}

	cancel := make(chan struct{})
	close(cancel)

	_, err := m.buildSDP("192.0.2.1", cancel)
	require.Error(t, err)
}
