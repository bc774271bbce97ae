package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kdimtricp/sharpframe/internal/models"
	"github.com/kdimtricp/sharpframe/internal/pipeline"
	"github.com/kdimtricp/sharpframe/internal/session"
	"github.com/kdimtricp/sharpframe/internal/storage"
	"github.com/kdimtricp/sharpframe/internal/video"
)

const (
	msgFrameReceived = "Frame received"
	msgNoFrames      = "No frames found to process"
	msgComplete      = "Processing complete"
	msgNotReady      = "Processing not complete yet"
)

type Processor interface {
	Process(ctx context.Context) (*models.Run, error)
	Status() pipeline.Status
}

type App struct {
	Storage       storage.Storage
	State         *session.State
	Pipeline      Processor
	MaxUploadSize int64
	// Now stamps uploaded frames. Defaults to time.Now.
	Now func() time.Time
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// UploadHandler stores the raw request body as the next frame.
func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if app.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	}

	ordinal := app.State.NextOrdinal()
	filename, err := app.Storage.SaveFrame(r.Body, ordinal, app.now())
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, storage.ErrEmptyFrame):
			respondText(w, http.StatusBadRequest, "Error: empty frame")
		case errors.As(err, &maxErr):
			respondText(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Error: frame exceeds %d bytes", maxErr.Limit))
		default:
			log.Error().Err(err).Int64("ordinal", ordinal).Msg("Failed to save frame")
			respondText(w, http.StatusInternalServerError, "Error: "+err.Error())
		}
		return
	}

	app.State.FrameStored()
	log.Debug().Str("file", filename).Int64("ordinal", ordinal).Msg("Frame received")
	respondText(w, http.StatusOK, msgFrameReceived)
}

// FinishedHandler runs the processing pipeline and reports its outcome.
// Publish and caption failures still answer 200; the annotation simply stays
// unavailable.
func (app *App) FinishedHandler(w http.ResponseWriter, r *http.Request) {
	run, err := app.Pipeline.Process(r.Context())
	switch {
	case errors.Is(err, video.ErrNoFrames):
		respondText(w, http.StatusBadRequest, msgNoFrames)
	case err != nil:
		log.Error().Err(err).Msg("Processing failed")
		respondText(w, http.StatusInternalServerError, err.Error())
	default:
		if run != nil && run.Error != "" {
			log.Warn().Str("run_id", run.ID).Str("error", run.Error).Msg("Processing finished without an annotation")
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": msgComplete})
	}
}

func (app *App) GetResponseHandler(w http.ResponseWriter, r *http.Request) {
	text, ok := app.State.Annotation()
	if !ok {
		respondJSON(w, http.StatusAccepted, map[string]string{"response": msgNotReady})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"response": text})
}

type statusResponse struct {
	Stage          string      `json:"stage"`
	FramesReceived int64       `json:"frames_received"`
	LastRun        *models.Run `json:"last_run,omitempty"`
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	st := app.Pipeline.Status()
	respondJSON(w, http.StatusOK, statusResponse{
		Stage:          st.Stage.String(),
		FramesReceived: app.State.Received(),
		LastRun:        st.LastRun,
	})
}

func (app *App) now() time.Time {
	if app.Now != nil {
		return app.Now()
	}
	return time.Now()
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(message))
}
