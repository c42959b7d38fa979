// Package types holds the data model shared across the capture, encode,
// audio, replay and mux packages.
package types

import "unsafe"

// Pixel formats a Frame's storage may hold.
const (
	PixFmtBGRA = 0 // 32-bit RGB, alpha ignored; used by the window capture path
	PixFmtNV12 = 1 // planar Y + interleaved UV; used by the NvFBC display path
)

// Frame is the encoder's GPU-resident destination buffer. Either Ptr (a CUDA
// device pointer, zero-copy) or Data is populated, never both. Its Width and
// Height equal record_width/record_height rounded down to even numbers and
// do not change for the frame's lifetime except across a window-resize
// teardown/recreate.
type Frame struct {
	Data   []byte
	Ptr    unsafe.Pointer
	Width  int
	Height int
	Stride int
	IsCUDA bool
	PixFmt int

	// IsCUDAArray distinguishes the window path's CUDA-graphics-interop
	// array (Ptr holds a CUarray) from the display path's raw device
	// pointer (Ptr holds a CUdeviceptr); the encoder's memcpy source
	// memory type depends on which one it is.
	IsCUDAArray bool

	// SrcX/SrcY/SrcWidth/SrcHeight describe the sub-rectangle of Ptr the
	// encoder should copy from, in source-texture coordinates. Only
	// meaningful when IsCUDAArray is true: a partially off-screen window
	// (compositor-overlay fallback) offsets SrcX/SrcY, and a resize
	// shrink or off-screen clamp shrinks SrcWidth/SrcHeight below
	// Width/Height. Clear is true whenever the sub-rectangle doesn't
	// cover the full destination, telling the encoder to blank the
	// destination to black before the copy.
	SrcX, SrcY          int
	SrcWidth, SrcHeight int
	Clear               bool
}

// CapturedRegion is the per-tick source rectangle inside the capture
// source's texture. Windows with negative screen coordinates yield a
// clamped region; Clamped is true whenever SourceX/SourceY needed
// adjustment, signalling the caller to clear the destination before copy.
type CapturedRegion struct {
	SourceX int
	SourceY int
	Width   int
	Height  int
	Clamped bool
}

// EncodedPacket is one muxer-ready unit of compressed data. PTS always
// equals DTS: B-frames are never produced. Timestamps are in the producing
// encoder's time base (1/fps for video, 1/sample_rate for audio).
type EncodedPacket struct {
	Data        []byte
	StreamIndex int
	PTS         int64
	DTS         int64
	Keyframe    bool
	TimeBaseNum int
	TimeBaseDen int
}

// ReplayBufferEntry is an owned EncodedPacket retained in the replay
// buffer. Entries belonging to the same StreamIndex are strictly
// monotonic in PTS within the buffer.
type ReplayBufferEntry struct {
	Packet      EncodedPacket
	StreamIndex int
}

// AudioTrack tracks one requested PulseAudio input end-to-end: the
// PulseAudio source spec the user asked for, its muxer stream index
// (assigned sequentially starting at 1; video is always 0), its running PTS
// counter (advances by FrameSize samples per emitted frame), and whether it
// is a silent placeholder track (no PulseAudio handle at all).
type AudioTrack struct {
	InputSpec           string
	AssignedStreamIndex int
	PTSCounter          int64
	FrameSize           int
	SampleRate          int
	Silent              bool
}

// CaptureSource is the shared contract for WindowCapture and DisplayCapture:
// a GPU-to-GPU copy into the encoder's destination Frame, never a CPU round
// trip. Modelled as a tagged variant per backend, not an inheritance
// hierarchy — each implementation carries its own per-tick state.
type CaptureSource interface {
	CaptureInto(frame *Frame) error
	Width() int
	Height() int
	Close()
}

// CUDAProvider is implemented by a CaptureSource that owns (or shares) the
// CUDA context the encoder must attach its hardware-frame pool to.
type CUDAProvider interface {
	CUDAContext() unsafe.Pointer
	CuMemcpy2D() unsafe.Pointer
}

// ClearProvider is implemented by capture sources whose frames can carry a
// sub-rectangle smaller than the destination (only WindowCapture): it
// resolves the cuMemsetD8 symbol the encoder needs to blank the NV12
// destination to black around that sub-rectangle.
type ClearProvider interface {
	CuMemsetD8() unsafe.Pointer
}

// VideoEncoder is the hardware H.264/H.265 encoder contract. Encode may
// return a nil packet with a nil error when the encoder buffers the frame
// internally without yet emitting output.
type VideoEncoder interface {
	Encode(frame *Frame, pts int64, keyframe bool) (*EncodedPacket, error)
	Close()
}

// AudioEncoder is the AAC encoder contract for one audio track. Samples are
// interleaved S16 PCM (nil submits a silence frame); the encoder resamples
// to its native planar float format internally.
type AudioEncoder interface {
	Encode(samples []int16, pts int64) (*EncodedPacket, error)
	FrameSize() int
	SampleRate() int
	Close()
}

// Muxer is the container-writer contract shared by the live pipeline and
// the replay snapshot task. Each writes to its own file handle.
type Muxer interface {
	WriteHeader() error
	WritePacket(pkt *EncodedPacket) error
	WriteTrailer() error
	Close() error
}
