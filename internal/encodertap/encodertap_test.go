package encodertap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/rtsp-streamer/internal/buffer"
)

func TestAddListenerBoundedToTwo(t *testing.T) {
	var tap Tap
	require.NoError(t, tap.AddListener(1, func(*buffer.Frame) {}))
	require.NoError(t, tap.AddListener(2, func(*buffer.Frame) {}))
	require.ErrorIs(t, tap.AddListener(3, func(*buffer.Frame) {}), ErrTooManyListeners)
}

func TestRemoveListenerThenReAddSucceeds(t *testing.T) {
	var tap Tap
	require.NoError(t, tap.AddListener(1, func(*buffer.Frame) {}))
	require.NoError(t, tap.AddListener(2, func(*buffer.Frame) {}))
	tap.RemoveListener(1)
	require.NoError(t, tap.AddListener(3, func(*buffer.Frame) {}))
}

func TestDispatchInvokesAllListeners(t *testing.T) {
	var tap Tap
	var order []int
	tap.AddListener(1, func(*buffer.Frame) { order = append(order, 1) })
	tap.AddListener(2, func(*buffer.Frame) { order = append(order, 2) })

	f := buffer.NewFrame(16)
	tap.dispatch(&f)
	require.Equal(t, []int{1, 2}, order)
}

func naluWithHeaderAnnexB(t mch265.NALUType, body []byte) []byte {
	out := append([]byte{0, 0, 0, 1}, byte(t)<<1, 0x01)
	return append(out, body...)
}

func TestVideoTapDiscoversParameterSetsFromCodecConfigFrame(t *testing.T) {
	vt := &VideoTap{}

	var data []byte
	data = append(data, naluWithHeaderAnnexB(mch265.NALUType_VPS_NUT, []byte{1, 2})...)
	data = append(data, naluWithHeaderAnnexB(mch265.NALUType_SPS_NUT, []byte{3, 4})...)
	data = append(data, naluWithHeaderAnnexB(mch265.NALUType_PPS_NUT, []byte{5, 6})...)

	f := buffer.NewFrame(len(data))
	f.Set(data, 0, buffer.FlagCodecConfig)

	vt.OnFrame(&f)

	vps, sps, pps, ok := vt.Params.Get()
	require.True(t, ok)
	require.NotEmpty(t, vps)
	require.NotEmpty(t, sps)
	require.NotEmpty(t, pps)
}

func TestVideoTapForwardsNonCodecConfigFrames(t *testing.T) {
	vt := &VideoTap{}
	var received *buffer.Frame
	vt.AddListener(1, func(f *buffer.Frame) { received = f })

	f := buffer.NewFrame(16)
	f.Set([]byte("payload"), 100, buffer.FlagKeyFrame)
	vt.OnFrame(&f)

	require.NotNil(t, received)
	require.Equal(t, []byte("payload"), received.Payload())
}

func TestParameterSetsWaitReadyBlocksUntilSet(t *testing.T) {
	var p ParameterSets

	done := make(chan bool, 1)
	go func() { done <- p.WaitReady(nil) }()

	select {
	case <-done:
		t.Fatal("WaitReady returned before parameter sets were set")
	case <-time.After(50 * time.Millisecond):
	}

	p.set(mch265.NALUType_VPS_NUT, []byte{1})
	p.set(mch265.NALUType_SPS_NUT, []byte{2})
	p.set(mch265.NALUType_PPS_NUT, []byte{3})

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not unblock")
	}
}

func TestParameterSetsWaitReadyHonorsCancel(t *testing.T) {
	var p ParameterSets
	cancel := make(chan struct{})
	close(cancel)
	require.False(t, p.WaitReady(cancel))
}

func TestAudioTapSuppressesCodecConfigFrames(t *testing.T) {
	pool := buffer.NewHierarchyPool(4, 64, 64)
	at := NewAudioTap(pool, 64, nil)
	defer at.Stop()

	var called bool
	at.AddListener(1, func(*buffer.Frame) { called = true })

	f := buffer.NewFrame(16)
	f.Set([]byte("cfg"), 0, buffer.FlagCodecConfig)
	at.OnFrame(&f)

	require.False(t, called)
}
