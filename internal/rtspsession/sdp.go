package rtspsession

import (
	"errors"
	"fmt"

	"github.com/pion/sdp/v3"
)

// errParamsUnavailable is returned when DESCRIBE's wait for the first
// codec-config access unit is cancelled before parameter sets arrive
// (the server passes its own context, so this happens on shutdown).
var errParamsUnavailable = errors.New("rtspsession: parameter sets not yet available")

// buildSDP renders the session description for this client (spec §4.10:
// "SDP layout"). clientIP is the connection's local (peer-visible)
// address, used in the session-level connection line. If the video
// track is enabled, buildSDP blocks until the first VPS/SPS/PPS triple
// has been observed or cancel fires (spec §4.7, §4.10: DESCRIBE "may
// block until parameter sets are available"; testable property §8 #9).
func (m *Media) buildSDP(clientIP string, cancel <-chan struct{}) ([]byte, error) {
	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "127.0.0.1",
		},
		SessionName: "Camera Stream",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: clientIP},
		},
		TimeDescriptions: []sdp.TimeDescription{{}},
		Attributes:       []sdp.Attribute{{Key: "control", Value: "*"}},
	}

	if m.VideoEnabled {
		if !m.VideoParams.WaitReady(cancel) {
			return nil, errParamsUnavailable
		}
		vps, sps, pps, _ := m.VideoParams.Get()
		sd.MediaDescriptions = append(sd.MediaDescriptions, &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   "video",
				Port:    sdp.RangedPort{Value: 0},
				Protos:  []string{"RTP", "AVP"},
				Formats: []string{"97"},
			},
			Attributes: []sdp.Attribute{
				{Key: "rtpmap", Value: "97 H265/90000"},
				{Key: "fmtp", Value: fmt.Sprintf("97 sprop-vps=%s;sprop-sps=%s;sprop-pps=%s", vps, sps, pps)},
				{Key: "control", Value: fmt.Sprintf("trackID=%d", m.VideoTrackIdx)},
			},
		})
	}

	if m.AudioEnabled {
		sd.MediaDescriptions = append(sd.MediaDescriptions, &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   "audio",
				Port:    sdp.RangedPort{Value: 0},
				Protos:  []string{"RTP", "AVP"},
				Formats: []string{"96"},
			},
			Attributes: []sdp.Attribute{
				{Key: "rtpmap", Value: "96 MPEG4-GENERIC/44100/1"},
				{Key: "fmtp", Value: "96 streamtype=5; profile-level-id=15; mode=AAC-hbr; config=1208; SizeLength=13; IndexLength=3; IndexDeltaLength=3;"},
				{Key: "control", Value: fmt.Sprintf("trackID=%d", m.AudioTrackIdx)},
			},
		})
	}

	return sd.Marshal()
}
