package video_test

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"testing"

	"github.com/kdimtricp/sharpframe/internal/video"
	"github.com/kdimtricp/sharpframe/internal/video/videotest"
)

func newFFmpeg(t *testing.T) *video.FFmpeg {
	t.Helper()
	ff, err := video.NewFFmpeg()
	if err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}
	return ff
}

func TestFFmpegRoundTrip(t *testing.T) {
	ff := newFFmpeg(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		width, height int
	}{
		{"even size", 64, 48},
		{"odd size", 63, 47},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frameDir := t.TempDir()
			for i := 0; i < 12; i++ {
				level := uint8(i * 20)
				name := fmt.Sprintf("frame_20240101_120000_%04d.jpg", i)
				videotest.WriteJPEG(t, frameDir, name, videotest.Solid(tt.width, tt.height, color.Gray{Y: level}))
			}

			out := filepath.Join(t.TempDir(), "output.mp4")
			artifact, err := video.NewAssembler(ff).Assemble(ctx, frameDir, out, 5)
			if err != nil {
				t.Fatalf("Assemble() error: %v", err)
			}
			if artifact.FrameCount != 12 {
				t.Fatalf("FrameCount = %d, want 12", artifact.FrameCount)
			}

			reader, err := ff.Open(ctx, out)
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			defer reader.Close()

			info := reader.Info()
			if info.Width != artifact.Width || info.Height != artifact.Height {
				t.Errorf("decoded size = %dx%d, want %dx%d", info.Width, info.Height, artifact.Width, artifact.Height)
			}

			count := 0
			for {
				img, err := reader.ReadFrame()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("ReadFrame() error: %v", err)
				}
				if b := img.Bounds(); b.Dx() != tt.width || b.Dy() != tt.height {
					t.Fatalf("frame %d size = %dx%d, want %dx%d", count, b.Dx(), b.Dy(), tt.width, tt.height)
				}
				// the last column must carry picture, not padding
				level := count * 20
				r, _, _, _ := img.At(tt.width-1, tt.height/2).RGBA()
				if diff := int(r>>8) - level; diff < -16 || diff > 16 {
					t.Errorf("frame %d right edge = %d, want about %d", count, r>>8, level)
				}
				count++
			}
			if count != 12 {
				t.Errorf("decoded %d frames, want 12", count)
			}
		})
	}
}

func TestFFmpegOpenMissingFile(t *testing.T) {
	ff := newFFmpeg(t)
	_, err := ff.Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, video.ErrCannotOpen) {
		t.Fatalf("expected ErrCannotOpen, got %v", err)
	}
}
