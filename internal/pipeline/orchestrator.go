// Package pipeline runs the processing sequence triggered once frame capture
// has finished: assemble video, pick the sharpest frame, publish it and
// caption it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/kdimtricp/sharpframe/internal/models"
	"github.com/kdimtricp/sharpframe/internal/publish"
	"github.com/kdimtricp/sharpframe/internal/session"
	"github.com/kdimtricp/sharpframe/internal/sharpness"
	"github.com/kdimtricp/sharpframe/internal/video"
)

// ErrRunPanicked wraps a panic raised by a collaborator during a run.
var ErrRunPanicked = errors.New("processing run panicked")

type Assembler interface {
	Assemble(ctx context.Context, frameDir, outputPath string, fps float64) (*video.Artifact, error)
}

type Scanner interface {
	Scan(ctx context.Context, videoPath string, interval int) (*sharpness.BestFrame, error)
}

type Annotator interface {
	Describe(ctx context.Context, imageURL string) (string, error)
}

type Options struct {
	FrameDir        string
	VideoPath       string
	FrameRate       float64
	SampleInterval  int
	ExternalTimeout time.Duration
}

type Status struct {
	Stage   Stage
	LastRun *models.Run
}

type Orchestrator struct {
	assembler Assembler
	scanner   Scanner
	publisher publish.Publisher
	annotator Annotator
	state     *session.State
	opts      Options

	group singleflight.Group

	mu    sync.RWMutex
	stage Stage
	last  *models.Run
}

func New(assembler Assembler, scanner Scanner, publisher publish.Publisher, annotator Annotator, state *session.State, opts Options) *Orchestrator {
	if opts.SampleInterval < 1 {
		opts.SampleInterval = 1
	}
	return &Orchestrator{
		assembler: assembler,
		scanner:   scanner,
		publisher: publisher,
		annotator: annotator,
		state:     state,
		opts:      opts,
	}
}

// Process runs the pipeline once. A call made while a run is in flight waits
// for that run and shares its outcome. The run itself is detached from ctx:
// if ctx ends first Process returns ctx.Err() and the run carries on.
//
// Errors are returned only when assembly or scanning fails. A failure while
// publishing or captioning is logged and recorded on the run, which then ends
// in StageFailed, but Process still returns a nil error.
func (o *Orchestrator) Process(ctx context.Context) (*models.Run, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan("process", func() (any, error) {
		return o.run(runCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debug().Msg("Processing trigger joined an in-flight run")
		}
		run, _ := res.Val.(*models.Run)
		return run, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the current stage and a snapshot of the latest run.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st := Status{Stage: o.stage}
	if o.last != nil {
		snap := *o.last
		st.LastRun = &snap
	}
	return st
}

// run executes on a goroutine owned by singleflight, out of reach of the HTTP
// recoverer, so a panic is turned into a failed run here.
func (o *Orchestrator) run(ctx context.Context) (run *models.Run, err error) {
	run = models.NewRun()
	logger := log.With().Str("run_id", run.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRunPanicked, r)
			logger.Error().
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Processing run panicked")
			o.fail(run, err)
		}
	}()

	o.state.ClearAnnotation()
	o.record(run, StageAssemblingVideo)
	logger.Info().Str("frame_dir", o.opts.FrameDir).Msg("Processing started")

	artifact, err := o.assembler.Assemble(ctx, o.opts.FrameDir, o.opts.VideoPath, o.opts.FrameRate)
	if err != nil {
		o.fail(run, err)
		return run, err
	}
	run.FrameCount = artifact.FrameCount
	run.VideoPath = artifact.Path

	o.record(run, StageScanningFrames)
	best, err := o.scanner.Scan(ctx, artifact.Path, o.opts.SampleInterval)
	if err != nil {
		o.fail(run, err)
		return run, err
	}
	run.BestIndex = best.Index
	run.BestScore = best.Score
	run.BestPath = best.Path

	o.record(run, StagePublishing)
	hosted, err := o.publish(ctx, best)
	if err != nil {
		logger.Error().Err(err).Str("path", best.Path).Msg("Failed to publish best frame")
		o.fail(run, err)
		return run, nil
	}
	run.ImageURL = hosted.Link

	o.record(run, StageAnnotating)
	text, err := o.annotate(ctx, hosted.Link)
	if err != nil {
		logger.Error().Err(err).Str("url", hosted.Link).Msg("Failed to caption best frame")
		o.fail(run, err)
		return run, nil
	}
	run.Annotation = text
	o.state.SetAnnotation(text)

	o.record(run, StageDone)
	logger.Info().
		Int("frames", run.FrameCount).
		Int("best_index", run.BestIndex).
		Float64("best_score", run.BestScore).
		Dur("duration", run.Duration()).
		Msg("Processing complete")

	return run, nil
}

func (o *Orchestrator) publish(ctx context.Context, best *sharpness.BestFrame) (*publish.HostedImage, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	hosted, err := o.publisher.Publish(ctx, best.Path, publish.Metadata{
		Title:       fmt.Sprintf("Best frame %d", best.Index),
		Description: fmt.Sprintf("Sharpness score %.2f", best.Score),
	})
	if err != nil {
		return nil, err
	}
	if hosted == nil || hosted.Link == "" {
		return nil, fmt.Errorf("%w: link", publish.ErrMissingField)
	}
	return hosted, nil
}

func (o *Orchestrator) annotate(ctx context.Context, imageURL string) (string, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	return o.annotator.Describe(ctx, imageURL)
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.ExternalTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.opts.ExternalTimeout)
}

func (o *Orchestrator) fail(run *models.Run, err error) {
	run.Error = err.Error()
	o.record(run, StageFailed)
}

func (o *Orchestrator) record(run *models.Run, stage Stage) {
	run.Stage = stage.String()
	if stage.Terminal() {
		run.FinishedAt = time.Now()
	}

	snap := *run
	o.mu.Lock()
	o.stage = stage
	o.last = &snap
	o.mu.Unlock()
}
