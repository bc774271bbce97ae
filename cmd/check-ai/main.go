package main

import (
	"fmt"
	"os"

	"github.com/kdimtricp/sharpframe/internal/config"
	"github.com/kdimtricp/sharpframe/internal/video"
)

func main() {
	fmt.Println("Checking sharpframe environment")
	fmt.Println("===============================")

	ok := true

	ff, err := video.NewFFmpeg()
	if err != nil {
		fmt.Printf("  video codec missing: %v\n", err)
		ok = false
	} else {
		fmt.Printf("  %-8s %s\n", "ffmpeg", ff.FFmpegPath())
		fmt.Printf("  %-8s %s\n", "ffprobe", ff.FFprobePath())
	}
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Publish backend: %s\n", cfg.Publish.Backend)
	if err := cfg.Publish.Validate(); err != nil {
		fmt.Printf("  not ready: %v\n", err)
		ok = false
	} else {
		fmt.Println("  ready")
	}

	fmt.Printf("Caption backend: %s\n", cfg.Caption.Backend)
	if err := cfg.Caption.Validate(); err != nil {
		fmt.Printf("  not ready: %v\n", err)
		ok = false
	} else {
		fmt.Println("  ready")
	}

	fmt.Println()
	fmt.Printf("Frames:  %s\n", cfg.UploadDir)
	fmt.Printf("Video:   %s at %.2f fps\n", cfg.VideoPath, cfg.FrameRate)
	fmt.Printf("Output:  %s\n", cfg.OutputDir)

	if !ok {
		os.Exit(1)
	}
}
