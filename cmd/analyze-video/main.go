package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/sharpframe/internal/logging"
	"github.com/kdimtricp/sharpframe/internal/sharpness"
	"github.com/kdimtricp/sharpframe/internal/video"
)

var (
	framesFlag       string
	videoFlag        string
	outputDirFlag    string
	fpsFlag          float64
	intervalFlag     int
	skipAssembleFlag bool
	verboseFlag      bool
)

var rootCmd = &cobra.Command{
	Use:   "analyze-video",
	Short: "Find the sharpest frame of a frame directory or video",
	Long: `Analyze-video assembles a directory of JPEG frames into a video and
reports the frame with the highest variance of Laplacian. The frame is saved
to the output directory. No image host or language model is contacted.

Examples:
  analyze-video --frames uploads
  analyze-video --video clip.mp4 --skip-assemble --interval 5`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&framesFlag, "frames", "uploads", "Directory of frame images")
	rootCmd.Flags().StringVar(&videoFlag, "video", "output.mp4", "Video to write, or to read with --skip-assemble")
	rootCmd.Flags().StringVar(&outputDirFlag, "output-dir", "output", "Directory for the best frame")
	rootCmd.Flags().Float64Var(&fpsFlag, "fps", 5, "Frame rate of the assembled video")
	rootCmd.Flags().IntVar(&intervalFlag, "interval", 1, "Score every n-th frame")
	rootCmd.Flags().BoolVar(&skipAssembleFlag, "skip-assemble", false, "Scan an existing video instead of assembling one")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := "info"
	if verboseFlag {
		level = "debug"
	}
	logging.Init(level, "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	codec, err := video.NewFFmpeg()
	if err != nil {
		return err
	}

	videoPath := videoFlag
	if !skipAssembleFlag {
		artifact, err := video.NewAssembler(codec).Assemble(ctx, framesFlag, videoFlag, fpsFlag)
		if errors.Is(err, video.ErrNoFrames) {
			return fmt.Errorf("no frames found in %s", framesFlag)
		}
		if err != nil {
			return err
		}
		videoPath = artifact.Path
		log.Info().Int("frames", artifact.FrameCount).Str("video", videoPath).Msg("Video ready")
	}

	best, err := sharpness.NewScanner(codec, outputDirFlag).Scan(ctx, videoPath, intervalFlag)
	if err != nil {
		return err
	}

	fmt.Printf("Best frame: %d\n", best.Index)
	fmt.Printf("Score: %.2f\n", best.Score)
	fmt.Printf("Saved to: %s\n", best.Path)
	return nil
}
