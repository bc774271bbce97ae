// Package videotest provides an in-memory video codec and frame helpers for
// tests that should not depend on ffmpeg.
package videotest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kdimtricp/sharpframe/internal/video"
)

// Codec keeps encoded videos in memory, keyed by path. Create also writes a
// small placeholder file at the path so callers that stat the output see it.
type Codec struct {
	mu     sync.Mutex
	videos map[string]*clip
}

type clip struct {
	info   video.StreamInfo
	frames []image.Image
}

func NewCodec() *Codec {
	return &Codec{videos: make(map[string]*clip)}
}

// Put registers frames as the content of path, bypassing the encoder.
func (c *Codec) Put(path string, fps float64, frames ...image.Image) {
	info := video.StreamInfo{FrameRate: fps, FrameCount: len(frames)}
	if len(frames) > 0 {
		b := frames[0].Bounds()
		info.Width, info.Height = b.Dx(), b.Dy()
	}
	c.mu.Lock()
	c.videos[path] = &clip{info: info, frames: frames}
	c.mu.Unlock()
}

// Frames returns the frames stored at path, or nil.
func (c *Codec) Frames(path string) []image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.videos[path]; ok {
		return v.frames
	}
	return nil
}

// Info returns the stream parameters recorded for path.
func (c *Codec) Info(path string) (video.StreamInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.videos[path]
	if !ok {
		return video.StreamInfo{}, false
	}
	return v.info, true
}

func (c *Codec) Create(ctx context.Context, path string, width, height int, fps float64) (video.FrameWriter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	return &writer{
		codec: c,
		path:  path,
		info:  video.StreamInfo{Width: width, Height: height, FrameRate: fps},
	}, nil
}

type writer struct {
	codec  *Codec
	path   string
	info   video.StreamInfo
	frames []image.Image
}

func (w *writer) WriteFrame(img image.Image) error {
	w.frames = append(w.frames, img)
	return nil
}

func (w *writer) Close() error {
	if err := os.WriteFile(w.path, []byte("videotest"), 0644); err != nil {
		return err
	}
	w.info.FrameCount = len(w.frames)
	w.codec.mu.Lock()
	w.codec.videos[w.path] = &clip{info: w.info, frames: w.frames}
	w.codec.mu.Unlock()
	return nil
}

func (c *Codec) Open(ctx context.Context, path string) (video.FrameReader, error) {
	c.mu.Lock()
	v, ok := c.videos[path]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", video.ErrCannotOpen, path)
	}
	return &reader{clip: v}, nil
}

type reader struct {
	clip *clip
	next int
}

func (r *reader) Info() video.StreamInfo {
	return r.clip.info
}

func (r *reader) ReadFrame() (image.Image, error) {
	if r.next >= len(r.clip.frames) {
		return nil, io.EOF
	}
	img := r.clip.frames[r.next]
	r.next++
	return img, nil
}

func (r *reader) Close() error {
	return nil
}

// Solid returns a w x h frame filled with c. Its sharpness score is zero.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// Checker returns a black and white checkerboard with square cells of the
// given size. Smaller cells give higher sharpness scores.
func Checker(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

// WriteJPEG encodes img as a high quality JPEG at dir/name.
func WriteJPEG(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("failed to encode %s: %v", name, err)
	}
	return path
}
