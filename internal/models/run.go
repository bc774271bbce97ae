package models

import (
	"time"

	"github.com/google/uuid"
)

// Run records one processing run from trigger to completion.
type Run struct {
	ID         string    `json:"id"`
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	FrameCount int       `json:"frame_count"`
	VideoPath  string    `json:"video_path,omitempty"`
	BestIndex  int       `json:"best_index"`
	BestScore  float64   `json:"best_score"`
	BestPath   string    `json:"best_path,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	Annotation string    `json:"annotation,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func NewRun() *Run {
	return &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		BestIndex: -1,
	}
}

// Duration is the elapsed time of a finished run, or zero while it runs.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
