// Package nal locates and classifies H.265 NAL units inside an Annex-B byte
// stream (spec §3, §4.5). It is used both to fragment access units for RTP
// and to discover VPS/SPS/PPS parameter sets.
package nal

import (
	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

// Unit is a byte-offset reference into a source buffer; it never copies.
type Unit struct {
	Start    int
	CodeSize int // 3 or 4, the length of the Annex-B start code
	End      int
}

// Valid reports whether the unit spans a non-empty range with a real
// start-code length.
func (u Unit) Valid() bool {
	return u.End > u.Start && u.CodeSize > 0
}

// HeaderOffset returns the offset of the two-byte NAL header, i.e. the
// first byte after the start code.
func (u Unit) HeaderOffset() int {
	return u.Start + u.CodeSize
}

// BodySize returns the NAL unit's content length (header + payload),
// excluding the Annex-B start code.
func (u Unit) BodySize() int {
	return u.End - u.Start - u.CodeSize
}

// FindStart scans data[from:to] for the first Annex-B start code
// (00 00 01 or 00 00 00 01), returning the offset of its leading 0x00, or
// -1 if none is found. to is clamped to len(data).
func FindStart(data []byte, from, to int) int {
	if to > len(data) {
		to = len(data)
	}
	for i := from; i+2 < to; i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			if i > from && data[i-1] == 0 {
				return i - 1
			}
			return i
		}
	}
	return -1
}

func startCodeLenAt(data []byte, leadingZero int) int {
	if data[leadingZero+2] == 1 {
		return 3
	}
	return 4
}

// Extract walks data[from:to] and appends every NAL unit found to out,
// returning the extended slice. The last unit extends to `to`. At most
// max units are extracted; extraction stops early if that bound is hit.
func Extract(data []byte, from, to int, out []Unit, max int) []Unit {
	if to > len(data) {
		to = len(data)
	}

	start := FindStart(data, from, to)
	if start < 0 {
		return out
	}
	codeSize := startCodeLenAt(data, start)

	for len(out) < max {
		contentStart := start + codeSize
		next := FindStart(data, contentStart, to)
		if next < 0 {
			out = append(out, Unit{Start: start, CodeSize: codeSize, End: to})
			break
		}
		nextCodeSize := startCodeLenAt(data, next)
		out = append(out, Unit{Start: start, CodeSize: codeSize, End: next})
		start = next
		codeSize = nextCodeSize
	}

	return out
}

// Type returns the H.265 NAL unit type of u within data.
func Type(data []byte, u Unit) mch265.NALUType {
	return mch265.NALUType((data[u.HeaderOffset()] >> 1) & 0x3F)
}

// IsParameterSet reports whether t is VPS, SPS or PPS.
func IsParameterSet(t mch265.NALUType) bool {
	switch t {
	case mch265.NALUType_VPS_NUT, mch265.NALUType_SPS_NUT, mch265.NALUType_PPS_NUT:
		return true
	default:
		return false
	}
}

// IsIRAP reports whether t is one of the intra random access point
// (key frame) NAL unit types: IDR_W_RADL, IDR_N_LP or CRA_NUT.
func IsIRAP(t mch265.NALUType) bool {
	switch t {
	case mch265.NALUType_IDR_W_RADL, mch265.NALUType_IDR_N_LP, mch265.NALUType_CRA_NUT:
		return true
	default:
		return false
	}
}
