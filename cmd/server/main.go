package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/sharpframe/internal/ai"
	"github.com/kdimtricp/sharpframe/internal/api"
	"github.com/kdimtricp/sharpframe/internal/config"
	"github.com/kdimtricp/sharpframe/internal/logging"
	"github.com/kdimtricp/sharpframe/internal/pipeline"
	"github.com/kdimtricp/sharpframe/internal/publish"
	"github.com/kdimtricp/sharpframe/internal/session"
	"github.com/kdimtricp/sharpframe/internal/sharpness"
	"github.com/kdimtricp/sharpframe/internal/storage"
	"github.com/kdimtricp/sharpframe/internal/video"
)

var (
	portFlag      string
	uploadDirFlag string
	outputDirFlag string
	videoFlag     string
	fpsFlag       float64
	logLevelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Collect camera frames and caption the sharpest one",
	Long: `Server accepts JPEG frames on POST /upload. POST /finished assembles them
into a video, picks the sharpest frame, publishes it to an image host and asks a
vision model to describe it. GET /get_response returns the description.

Flags override the matching environment variables.

Examples:
  server
  server --port 8080 --fps 10
  server --upload-dir /var/frames --log-level debug`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&portFlag, "port", "", "Port to listen on (env PORT, default 5000)")
	rootCmd.Flags().StringVar(&uploadDirFlag, "upload-dir", "", "Directory for received frames (env UPLOAD_DIR)")
	rootCmd.Flags().StringVar(&outputDirFlag, "output-dir", "", "Directory for the best frame (env OUTPUT_DIR)")
	rootCmd.Flags().StringVar(&videoFlag, "video", "", "Path of the assembled video (env VIDEO_PATH)")
	rootCmd.Flags().Float64Var(&fpsFlag, "fps", 0, "Frame rate of the assembled video (env FRAME_RATE)")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portFlag
	}
	if flags.Changed("upload-dir") {
		cfg.UploadDir = uploadDirFlag
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDirFlag
	}
	if flags.Changed("video") {
		cfg.VideoPath = videoFlag
	}
	if flags.Changed("fps") {
		cfg.FrameRate = fpsFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}
}

func runMain(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "console")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyFlags(cmd, cfg)
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	if cfg.ClearUploadsOnStart {
		if err := localStorage.Clear(); err != nil {
			log.Fatal().Err(err).Msg("Failed to clear upload directory")
		}
	}

	codec, err := video.NewFFmpeg()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize video codec")
	}

	ctx := context.Background()
	publisher, err := publish.New(ctx, cfg.Publish)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize publisher")
	}
	captionClient, err := ai.NewCaptionClient(ctx, cfg.Caption)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize caption client")
	}

	state := session.NewState()
	orchestrator := pipeline.New(
		video.NewAssembler(codec),
		sharpness.NewScanner(codec, cfg.OutputDir),
		publisher,
		ai.NewCaptionService(captionClient, cfg.Caption.DisplayWidth),
		state,
		pipeline.Options{
			FrameDir:        localStorage.Dir(),
			VideoPath:       cfg.VideoPath,
			FrameRate:       cfg.FrameRate,
			SampleInterval:  cfg.SampleInterval,
			ExternalTimeout: cfg.ExternalTimeout,
		},
	)

	app := &api.App{
		Storage:       localStorage,
		State:         state,
		Pipeline:      orchestrator,
		MaxUploadSize: cfg.MaxFrameSize,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(app),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("upload_dir", cfg.UploadDir).
		Str("output_dir", cfg.OutputDir).
		Float64("fps", cfg.FrameRate).
		Str("publish", cfg.Publish.Backend).
		Str("caption", cfg.Caption.Backend).
		Msg("Server started. Waiting for frames...")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
