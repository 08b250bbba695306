// Package buffer implements FrameBuffer and HierarchyPool, the fixed-capacity
// byte containers and slab allocator the streaming pipeline copies encoded
// frames through (spec §3, §4.1).
package buffer

// Flags is a bitset carried alongside a frame.
type Flags uint32

// Frame flag bits.
const (
	FlagKeyFrame    Flags = 0x01
	FlagCodecConfig Flags = 0x02
	FlagEndOfStream Flags = 0x04
)

// Frame is a fixed-capacity byte container plus metadata. It is always
// passed by value or through a *Cell handle; Data is pre-allocated to Cap
// and Size indicates how much of it is valid.
type Frame struct {
	Data               []byte
	Size               int
	PresentationTimeUs int64
	Flags              Flags
}

// NewFrame allocates a Frame with the given fixed capacity.
func NewFrame(capacity int) Frame {
	return Frame{Data: make([]byte, capacity)}
}

// Payload returns the valid portion of Data.
func (f *Frame) Payload() []byte {
	return f.Data[:f.Size]
}

// Set copies src into the frame, recording size and metadata. It reports
// whether src fit within the frame's capacity.
func (f *Frame) Set(src []byte, ptsUs int64, flags Flags) bool {
	if len(src) > cap(f.Data) {
		return false
	}
	f.Data = f.Data[:len(src)]
	copy(f.Data, src)
	f.Size = len(src)
	f.PresentationTimeUs = ptsUs
	f.Flags = flags
	return true
}

// CopyFrom duplicates another frame's valid contents and metadata into f's
// existing backing array. It reports false, leaving f unchanged, when
// src's contents exceed f's capacity.
func (f *Frame) CopyFrom(src *Frame) bool {
	return f.Set(src.Payload(), src.PresentationTimeUs, src.Flags)
}
