package sharpness

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/kdimtricp/sharpframe/internal/video"
)

const (
	DefaultPrefix        = "best_frame"
	DefaultProgressEvery = 100
	jpegQuality          = 95
)

var ErrNoFramesScored = errors.New("no frames were scored")

// BestFrame is the highest scoring frame of a scan.
type BestFrame struct {
	Index int
	Score float64
	Image image.Image
	// Path is where the frame was saved as JPEG.
	Path string
}

type Scanner struct {
	decoder       video.Decoder
	outputDir     string
	prefix        string
	progressEvery int
}

func NewScanner(decoder video.Decoder, outputDir string) *Scanner {
	return &Scanner{
		decoder:       decoder,
		outputDir:     outputDir,
		prefix:        DefaultPrefix,
		progressEvery: DefaultProgressEvery,
	}
}

// FileName is the name a best frame is saved under.
func FileName(prefix string, index int, score float64) string {
	return fmt.Sprintf("%s_%d_score_%.2f.jpg", prefix, index, score)
}

// Scan decodes videoPath and scores every interval-th frame, starting with
// frame 0. A frame replaces the current best only when its score is strictly
// higher, so the earliest frame wins a tie. The winner is written to the
// scanner's output directory.
func (s *Scanner) Scan(ctx context.Context, videoPath string, interval int) (*BestFrame, error) {
	if interval < 1 {
		interval = 1
	}

	reader, err := s.decoder.Open(ctx, videoPath)
	if err != nil {
		if errors.Is(err, video.ErrCannotOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", video.ErrCannotOpen, err)
	}
	defer reader.Close()

	info := reader.Info()
	log.Info().
		Str("video", videoPath).
		Int("total_frames", info.FrameCount).
		Float64("fps", info.FrameRate).
		Int("interval", interval).
		Msg("Scanning video for sharpest frame")

	var best *BestFrame
	index := 0
	for ; ; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", index, err)
		}

		if index%interval == 0 {
			score := Score(img)
			if best == nil || score > best.Score {
				best = &BestFrame{Index: index, Score: score, Image: img}
			}
		}

		if s.progressEvery > 0 && (index+1)%s.progressEvery == 0 {
			log.Info().Int("processed", index+1).Int("total", info.FrameCount).Msg("Scan progress")
		}
	}

	if best == nil {
		return nil, ErrNoFramesScored
	}

	path, err := s.save(best)
	if err != nil {
		return nil, err
	}
	best.Path = path

	log.Info().
		Int("frames", index).
		Int("best_index", best.Index).
		Float64("best_score", best.Score).
		Str("path", path).
		Msg("Sharpest frame selected")

	return best, nil
}

func (s *Scanner) save(best *BestFrame) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.outputDir, FileName(s.prefix, best.Index, best.Score))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create best frame file: %w", err)
	}

	err = jpeg.Encode(f, best.Image, &jpeg.Options{Quality: jpegQuality})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save best frame: %w", err)
	}
	return path, nil
}
