package nal

import (
	"testing"

	"github.com/stretchr/testify/require"

	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

// naluHeader builds a 2-byte H.265 NAL unit header for the given type.
func naluHeader(t mch265.NALUType) [2]byte {
	b0 := byte(t) << 1
	return [2]byte{b0, 0x01}
}

func TestExtractSplitsOnFourByteStartCodes(t *testing.T) {
	var data []byte
	vps := naluHeader(mch265.NALUType_VPS_NUT)
	sps := naluHeader(mch265.NALUType_SPS_NUT)
	data = append(data, 0, 0, 0, 1)
	data = append(data, vps[:]...)
	data = append(data, 0xAA)
	data = append(data, 0, 0, 0, 1)
	data = append(data, sps[:]...)
	data = append(data, 0xBB, 0xCC)

	units := Extract(data, 0, len(data), nil, 16)
	require.Len(t, units, 2)
	require.True(t, units[0].Valid())
	require.Equal(t, 4, units[0].CodeSize)
	require.Equal(t, mch265.NALUType_VPS_NUT, Type(data, units[0]))
	require.Equal(t, mch265.NALUType_SPS_NUT, Type(data, units[1]))

	// last unit extends to end of buffer
	require.Equal(t, len(data), units[1].End)
}

func TestExtractHandlesThreeByteStartCodes(t *testing.T) {
	data := []byte{0, 0, 1, 0x26, 0x01, 0xDE, 0xAD}
	units := Extract(data, 0, len(data), nil, 16)
	require.Len(t, units, 1)
	require.Equal(t, 3, units[0].CodeSize)
	require.Equal(t, len(data), units[0].End)
}

func TestExtractStopsAtMax(t *testing.T) {
	var data []byte
	for i := 0; i < 5; i++ {
		data = append(data, 0, 0, 0, 1, 0x26, 0x01, 0xFF)
	}
	units := Extract(data, 0, len(data), nil, 3)
	require.Len(t, units, 3)
}

func TestFindStartReturnsMinusOneWhenAbsent(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	require.Equal(t, -1, FindStart(data, 0, len(data)))
}

func TestIsParameterSetAndIRAP(t *testing.T) {
	require.True(t, IsParameterSet(mch265.NALUType_VPS_NUT))
	require.True(t, IsParameterSet(mch265.NALUType_SPS_NUT))
	require.True(t, IsParameterSet(mch265.NALUType_PPS_NUT))
	require.False(t, IsParameterSet(mch265.NALUType(0))) // TRAIL_N

	require.True(t, IsIRAP(mch265.NALUType_IDR_W_RADL))
	require.True(t, IsIRAP(mch265.NALUType_CRA_NUT))
	require.False(t, IsIRAP(mch265.NALUType(0))) // TRAIL_N
}

func TestUnitHeaderOffsetAndBodySize(t *testing.T) {
	u := Unit{Start: 10, CodeSize: 4, End: 20}
	require.Equal(t, 14, u.HeaderOffset())
	require.Equal(t, 6, u.BodySize())
}
