// Package publish uploads the selected frame to an image host and returns a
// public URL for it.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kdimtricp/sharpframe/internal/config"
)

// MaxImageSize is the largest file accepted for upload.
const MaxImageSize = 10 << 20

var (
	ErrMissingField = errors.New("host response missing required field")
	ErrTooLarge     = errors.New("image exceeds upload size limit")
)

// HostError is a failure reported by the image host itself.
type HostError struct {
	StatusCode int
	Message    string
}

func (e *HostError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image host returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("image host returned status %d: %s", e.StatusCode, e.Message)
}

// Metadata is optional information attached to an upload.
type Metadata struct {
	Title       string
	Description string
	Album       string
}

// HostedImage is a successfully published image. Link is always set.
type HostedImage struct {
	Link       string
	ID         string
	DeleteHash string
	Width      int
	Height     int
	Size       int64
	ExpiresAt  time.Time
}

type Publisher interface {
	Publish(ctx context.Context, imagePath string, meta Metadata) (*HostedImage, error)
}

// New builds the publisher selected by cfg.Backend.
func New(ctx context.Context, cfg config.PublishConfig) (Publisher, error) {
	switch cfg.Backend {
	case config.PublishImgur:
		return NewImgurClient(cfg.ImgurClientID), nil
	case config.PublishS3:
		return NewS3Publisher(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, cfg.S3URLExpiry)
	default:
		return nil, fmt.Errorf("unsupported publish backend: %q", cfg.Backend)
	}
}

// readImage loads the file at path after checking it exists and is within
// limit bytes.
func readImage(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("image file not found: %w", err)
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}
