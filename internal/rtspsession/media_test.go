package rtspsession

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelsForTrack(t *testing.T) {
	m := &Media{VideoEnabled: true, AudioEnabled: true, VideoTrackIdx: 0, AudioTrackIdx: 1}

	rtp, rtcp, ok := m.ChannelsForTrack(0)
	require.True(t, ok)
	require.Equal(t, VideoRTPChannel, rtp)
	require.Equal(t, VideoRTCPChannel, rtcp)

	rtp, rtcp, ok = m.ChannelsForTrack(1)
	require.True(t, ok)
	require.Equal(t, AudioRTPChannel, rtp)
	require.Equal(t, AudioRTCPChannel, rtcp)

	_, _, ok = m.ChannelsForTrack(2)
	require.False(t, ok)
}

func TestChannelsForTrackAudioOnly(t *testing.T) {
	m := &Media{AudioEnabled: true, AudioTrackIdx: 0}
	_, _, ok := m.ChannelsForTrack(1)
	require.False(t, ok)
	rtp, rtcp, ok := m.ChannelsForTrack(0)
	require.True(t, ok)
	require.Equal(t, AudioRTPChannel, rtp)
	require.Equal(t, AudioRTCPChannel, rtcp)
}
