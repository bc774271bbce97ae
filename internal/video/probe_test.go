package video

import (
	"math"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"5/1", 5},
		{"30000/1001", 29.97002997},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseFrameRate(tt.input)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("parseFrameRate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseProbe(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    StreamInfo
		wantErr bool
	}{
		{
			name:   "complete stream",
			output: `{"streams":[{"width":640,"height":480,"r_frame_rate":"5/1","avg_frame_rate":"5/1","nb_frames":"42"}]}`,
			want:   StreamInfo{Width: 640, Height: 480, FrameRate: 5, FrameCount: 42},
		},
		{
			name:   "avg rate missing falls back to r_frame_rate",
			output: `{"streams":[{"width":2,"height":2,"r_frame_rate":"25/1","avg_frame_rate":"0/0"}]}`,
			want:   StreamInfo{Width: 2, Height: 2, FrameRate: 25},
		},
		{
			name:   "frame size tag crops padding",
			output: `{"streams":[{"width":64,"height":48,"avg_frame_rate":"5/1"}],"format":{"tags":{"comment":"frame_size=63x47"}}}`,
			want:   StreamInfo{Width: 63, Height: 47, FrameRate: 5},
		},
		{
			name:   "frame size tag larger than stream is ignored",
			output: `{"streams":[{"width":64,"height":48,"avg_frame_rate":"5/1"}],"format":{"tags":{"comment":"frame_size=80x60"}}}`,
			want:   StreamInfo{Width: 64, Height: 48, FrameRate: 5},
		},
		{
			name:   "unrelated comment",
			output: `{"streams":[{"width":64,"height":48,"avg_frame_rate":"5/1"}],"format":{"tags":{"comment":"holiday"}}}`,
			want:   StreamInfo{Width: 64, Height: 48, FrameRate: 5},
		},
		{
			name:    "no streams",
			output:  `{"streams":[]}`,
			wantErr: true,
		},
		{
			name:    "zero size",
			output:  `{"streams":[{"width":0,"height":0}]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			output:  `ffprobe exploded`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbe([]byte(tt.output))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProbe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseProbe() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
