package storage

import (
	"errors"
	"io"
	"time"
)

const FrameExt = ".jpg"

var ErrEmptyFrame = errors.New("empty frame")

// Storage is the frame store the ingestion endpoint writes into and the
// video assembler reads from.
type Storage interface {
	SaveFrame(r io.Reader, ordinal int64, capturedAt time.Time) (string, error)
	ListFrames() ([]string, error)
	Clear() error
	Dir() string
}
