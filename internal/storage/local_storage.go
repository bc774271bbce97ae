package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	"github.com/rs/zerolog/log"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// FrameName builds frame_<YYYYMMDD_HHMMSS>_<ordinal>.jpg. Within one capture
// session natural ordering of these names reproduces capture order.
func FrameName(capturedAt time.Time, ordinal int64) string {
	return fmt.Sprintf("frame_%s_%04d%s", capturedAt.Format("20060102_150405"), ordinal, FrameExt)
}

func (ls *LocalStorage) Dir() string {
	return ls.basePath
}

// SaveFrame writes one frame under a name derived from its ordinal and returns
// that name. Callers must hand out distinct ordinals.
func (ls *LocalStorage) SaveFrame(r io.Reader, ordinal int64, capturedAt time.Time) (string, error) {
	filename := FrameName(capturedAt, ordinal)
	fullPath := filepath.Join(ls.basePath, filename)

	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(dst, r)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save frame: %w", err)
	}
	if n == 0 {
		os.Remove(fullPath)
		return "", ErrEmptyFrame
	}

	return filename, nil
}

func (ls *LocalStorage) ListFrames() ([]string, error) {
	return ListFrameFiles(ls.basePath)
}

// ListFrameFiles returns the full paths of every frame file in dir, sorted in
// natural order so that frame_2 precedes frame_10.
func ListFrameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), FrameExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	SortNatural(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// SortNatural sorts names comparing embedded digit runs as integers.
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return natural.Less(names[i], names[j])
	})
}

// Clear removes every frame from the store. Other files are left alone.
func (ls *LocalStorage) Clear() error {
	frames, err := ls.ListFrames()
	if err != nil {
		return err
	}
	for _, path := range frames {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove frame: %w", err)
		}
	}
	log.Info().Int("removed", len(frames)).Str("dir", ls.basePath).Msg("Frame store cleared")
	return nil
}
