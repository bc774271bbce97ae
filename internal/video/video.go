// Package video turns a directory of frame images into a video file and
// reads video files back one frame at a time.
package video

import (
	"context"
	"errors"
	"image"
)

var (
	ErrNoFrames   = errors.New("no frames found to process")
	ErrCannotOpen = errors.New("cannot open video")
)

// Artifact describes an encoded video written by the Assembler.
type Artifact struct {
	Path       string
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
}

// StreamInfo is what a decoder knows about a video before reading it.
// FrameCount is zero when the container does not record it.
type StreamInfo struct {
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
}

type Encoder interface {
	Create(ctx context.Context, path string, width, height int, fps float64) (FrameWriter, error)
}

type FrameWriter interface {
	WriteFrame(img image.Image) error
	Close() error
}

type Decoder interface {
	Open(ctx context.Context, path string) (FrameReader, error)
}

// FrameReader yields frames in presentation order. ReadFrame returns io.EOF
// once the stream is exhausted.
type FrameReader interface {
	Info() StreamInfo
	ReadFrame() (image.Image, error)
	Close() error
}

// Codec is the combined encoder and decoder used by the pipeline.
type Codec interface {
	Encoder
	Decoder
}
