package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// FFmpeg encodes and decodes video by piping raw RGB24 frames through the
// ffmpeg binary. Output files use the MPEG-4 Part 2 codec in an mp4 container.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpeg() (*FFmpeg, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	log.Debug().Str("ffmpeg", ffmpegPath).Str("ffprobe", ffprobePath).Msg("Found ffmpeg")

	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}, nil
}

func (f *FFmpeg) FFmpegPath() string  { return f.ffmpegPath }
func (f *FFmpeg) FFprobePath() string { return f.ffprobePath }

func (f *FFmpeg) Create(ctx context.Context, path string, width, height int, fps float64) (FrameWriter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	args := []string{
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", "mpeg4",
		"-q:v", "2",
		"-pix_fmt", "yuv420p",
		"-metadata", "comment=" + frameSizeTag(width, height),
		path,
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	w := &ffmpegWriter{
		cmd:    cmd,
		stdin:  stdin,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
		canvas: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
	cmd.Stderr = &w.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return w, nil
}

type ffmpegWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
	height int
	buf    []byte
	canvas *image.RGBA
	closed bool
}

func (w *ffmpegWriter) WriteFrame(img image.Image) error {
	rgba := w.toCanvas(img)
	packRGB(w.buf, rgba)
	if _, err := w.stdin.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write frame to ffmpeg: %w (%s)", err, bytes.TrimSpace(w.stderr.Bytes()))
	}
	return nil
}

// toCanvas places img at the top-left corner of a frame-sized canvas,
// cropping or leaving black borders when the sizes differ.
func (w *ffmpegWriter) toCanvas(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect == w.canvas.Rect {
		return rgba
	}
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		draw.Draw(w.canvas, w.canvas.Rect, image.Black, image.Point{}, draw.Src)
	}
	draw.Draw(w.canvas, w.canvas.Rect, img, b.Min, draw.Src)
	return w.canvas
}

func (w *ffmpegWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.stdin.Close(); err != nil {
		return fmt.Errorf("failed to close ffmpeg stdin: %w", err)
	}
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode failed: %w\nOutput: %s", err, w.stderr.String())
	}
	return nil
}

func (f *FFmpeg) Open(ctx context.Context, path string) (FrameReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}

	info, err := probe(ctx, f.ffprobePath, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCannotOpen, path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-v", "error",
		"-i", path,
		"-vf", fmt.Sprintf("crop=%d:%d:0:0", info.Width, info.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	r := &ffmpegReader{
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		info:   info,
		buf:    make([]byte, info.Width*info.Height*3),
	}
	cmd.Stderr = &r.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", ErrCannotOpen, err)
	}
	return r, nil
}

type ffmpegReader struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr bytes.Buffer
	info   StreamInfo
	buf    []byte
	waited bool
}

func (r *ffmpegReader) Info() StreamInfo {
	return r.info
}

func (r *ffmpegReader) ReadFrame() (image.Image, error) {
	if r.waited {
		return nil, io.EOF
	}
	_, err := io.ReadFull(r.stdout, r.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if werr := r.wait(); werr != nil {
			return nil, fmt.Errorf("ffmpeg decode failed: %w\nOutput: %s", werr, r.stderr.String())
		}
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, r.info.Width, r.info.Height))
	unpackRGB(img, r.buf)
	return img, nil
}

func (r *ffmpegReader) wait() error {
	r.waited = true
	return r.cmd.Wait()
}

// Close stops the decoder. Stopping before the end of the stream is not an
// error.
func (r *ffmpegReader) Close() error {
	defer r.cancel()
	if r.waited {
		return nil
	}
	r.cancel()
	r.wait()
	return nil
}

func packRGB(dst []byte, src *image.RGBA) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	j := 0
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			dst[j] = row[x]
			dst[j+1] = row[x+1]
			dst[j+2] = row[x+2]
			j += 3
		}
	}
}

func unpackRGB(dst *image.RGBA, src []byte) {
	j := 0
	for i := 0; i < len(src); i += 3 {
		dst.Pix[j] = src[i]
		dst.Pix[j+1] = src[i+1]
		dst.Pix[j+2] = src[i+2]
		dst.Pix[j+3] = 0xff
		j += 4
	}
}
