package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/kdimtricp/sharpframe/internal/storage"
)

const DefaultProgressEvery = 50

type Assembler struct {
	encoder       Encoder
	progressEvery int
}

func NewAssembler(encoder Encoder) *Assembler {
	return &Assembler{
		encoder:       encoder,
		progressEvery: DefaultProgressEvery,
	}
}

// Assemble encodes every frame in frameDir, in natural filename order, into a
// single video at outputPath. The first frame fixes the output dimensions.
// Frames of a different size are written without scaling. When frameDir holds
// no frames ErrNoFrames is returned and nothing is written.
func (a *Assembler) Assemble(ctx context.Context, frameDir, outputPath string, fps float64) (*Artifact, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate: %v", fps)
	}

	frames, err := storage.ListFrameFiles(frameDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoFrames
		}
		return nil, err
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	first, err := decodeImage(frames[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read first frame: %w", err)
	}
	bounds := first.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	log.Info().
		Int("frames", len(frames)).
		Int("width", width).
		Int("height", height).
		Float64("fps", fps).
		Str("output", outputPath).
		Msg("Assembling video")

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	writer, err := a.encoder.Create(ctx, outputPath, width, height, fps)
	if err != nil {
		return nil, fmt.Errorf("failed to open video encoder: %w", err)
	}

	written := 0
	for i, path := range frames {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return nil, err
		}

		img := first
		if i > 0 {
			img, err = decodeImage(path)
			if err != nil {
				log.Warn().Err(err).Str("frame", filepath.Base(path)).Msg("Skipping unreadable frame")
				continue
			}
			if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
				log.Warn().
					Str("frame", filepath.Base(path)).
					Int("width", b.Dx()).
					Int("height", b.Dy()).
					Msg("Frame size differs from first frame")
			}
		}

		if err := writer.WriteFrame(img); err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to write frame %s: %w", filepath.Base(path), err)
		}
		written++

		if a.progressEvery > 0 && written%a.progressEvery == 0 {
			log.Info().Int("written", written).Int("total", len(frames)).Msg("Assembly progress")
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize video: %w", err)
	}

	log.Info().Int("frames", written).Str("output", outputPath).Msg("Video assembled")

	return &Artifact{
		Path:       outputPath,
		Width:      width,
		Height:     height,
		FrameRate:  fps,
		FrameCount: written,
	}, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
