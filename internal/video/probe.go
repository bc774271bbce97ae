package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
}

type ffprobeStream struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
}

// frameSizeTag records the frame size in the container comment. yuv420p needs
// even dimensions, so odd-sized frames are padded on encode and cropped back
// to this size on decode.
func frameSizeTag(width, height int) string {
	return fmt.Sprintf("frame_size=%dx%d", width, height)
}

func parseFrameSizeTag(value string) (int, int, bool) {
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "frame_size=%dx%d", &w, &h); err != nil {
		return 0, 0, false
	}
	return w, h, w > 0 && h > 0
}

// probe reads the dimensions, frame rate and frame count of the first video
// stream in path.
func probe(ctx context.Context, ffprobePath, path string) (StreamInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames:format_tags=comment",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return StreamInfo{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (StreamInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return StreamInfo{}, fmt.Errorf("no video stream found")
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
	}

	info := StreamInfo{Width: s.Width, Height: s.Height}
	for key, value := range out.Format.Tags {
		if !strings.EqualFold(key, "comment") {
			continue
		}
		if w, h, ok := parseFrameSizeTag(value); ok && w <= s.Width && h <= s.Height {
			info.Width, info.Height = w, h
		}
	}
	info.FrameRate = parseFrameRate(s.AvgFrameRate)
	if info.FrameRate <= 0 {
		info.FrameRate = parseFrameRate(s.RFrameRate)
	}
	if n, err := strconv.Atoi(s.NbFrames); err == nil {
		info.FrameCount = n
	}
	return info, nil
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func parseFrameRate(value string) float64 {
	parts := strings.Split(value, "/")
	if len(parts) == 2 {
		num, _ := strconv.ParseFloat(parts[0], 64)
		den, _ := strconv.ParseFloat(parts[1], 64)
		if den != 0 {
			return num / den
		}
		return 0
	}
	rate, _ := strconv.ParseFloat(value, 64)
	return rate
}
