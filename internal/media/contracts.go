package media

import "context"

// FrameListener receives per-stream frame callbacks from a Source. A source calls
// AcceptFrame, then AllocateBuffer, then ReceiveFrame (or ReceiveFrameConst) once
// per enabled stream per frame tick.
type FrameListener interface {
	// AcceptFrame reports whether the listener wants the stream's data for this frame.
	AcceptFrame(streamID int, frame *FrameInfo) bool

	// AllocateBuffer returns a buffer of at least size bytes owned by the listener.
	AllocateBuffer(streamID int, size int) ([]byte, error)

	// DeallocateBuffer tells the listener the source no longer uses buf.
	DeallocateBuffer(streamID int, buf []byte)

	// ReceiveFrame delivers data written into a buffer returned by AllocateBuffer.
	ReceiveFrame(streamID int, buf []byte) error

	// ReceiveFrameConst delivers data the caller keeps ownership of.
	ReceiveFrameConst(streamID int, data []byte) error
}

// Source produces coded or raw stream data frame by frame.
type Source interface {
	NumStreams() int
	StreamInfo(streamIndex int) (*StreamInfo, bool)
	IsDisabled(streamIndex int) bool
	DisableStream(streamIndex int)

	// FinaliseBlank gives placeholder picture streams their real geometry.
	FinaliseBlank(info *StreamInfo)

	// ReadFrame drives the listener callbacks for the next frame of every enabled
	// stream. It returns io.EOF once the essence is exhausted.
	ReadFrame(ctx context.Context, listener FrameListener) (*FrameInfo, error)

	Close() error
}

// Sink consumes decoded stream frames. GetStreamBuffer and ReceiveStreamFrame may
// be called concurrently from several connector goroutines.
type Sink interface {
	// AcceptStream is a side-effect free capability probe.
	AcceptStream(info *StreamInfo) bool
	RegisterStream(sinkStreamID int, info *StreamInfo) error

	AcceptStreamFrame(sinkStreamID int, frame *FrameInfo) bool
	GetStreamBuffer(sinkStreamID int, size int) ([]byte, error)
	ReceiveStreamFrame(sinkStreamID int, data []byte) error

	CompleteFrame(frame *FrameInfo) error
	CancelFrame()

	Close() error
}
