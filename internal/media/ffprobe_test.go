package media

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractDuration(t *testing.T) {
	tests := []struct {
		name    string
		result  *FFprobeResult
		want    float64
		wantErr bool
	}{
		{
			name: "video stream duration",
			result: &FFprobeResult{
				Streams: []Stream{{CodecType: "video", Duration: "120.5"}},
				Format:  Format{Duration: "121.0"},
			},
			want: 120.5,
		},
		{
			name: "duration from format only",
			result: &FFprobeResult{
				Streams: []Stream{{CodecType: "video"}},
				Format:  Format{Duration: "300.123"},
			},
			want: 300.123,
		},
		{
			name: "audio only",
			result: &FFprobeResult{
				Streams: []Stream{{CodecType: "audio", Duration: "10"}},
				Format:  Format{Duration: "180.5"},
			},
			want: 180.5,
		},
		{
			name: "no duration",
			result: &FFprobeResult{
				Streams: []Stream{{CodecType: "video"}},
			},
			wantErr: true,
		},
		{
			name: "garbage duration",
			result: &FFprobeResult{
				Format: Format{Duration: "N/A"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractDuration(tt.result)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSource) {
					t.Errorf("extractDuration() error = %v, want ErrInvalidSource", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractDuration() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("extractDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFFprobeJSONParsing(t *testing.T) {
	sampleJSON := `{
		"streams": [
			{"index": 0, "codec_name": "h264", "codec_type": "video", "duration": "120.000000"},
			{"index": 1, "codec_name": "aac", "codec_type": "audio"}
		],
		"format": {"filename": "test.mp4", "format_name": "mov,mp4", "duration": "120.000000"}
	}`

	var result FFprobeResult
	if err := json.Unmarshal([]byte(sampleJSON), &result); err != nil {
		t.Fatalf("Failed to parse sample JSON: %v", err)
	}

	d, err := extractDuration(&result)
	if err != nil {
		t.Fatalf("extractDuration failed: %v", err)
	}
	if d != 120 {
		t.Errorf("Duration = %v, want 120", d)
	}
}

func TestProbeDurationErrors(t *testing.T) {
	if err := CheckFFprobeInstalled(); err != nil {
		t.Skip("FFprobe not installed, skipping integration tests")
	}

	_, err := ProbeDuration(context.Background(), "/nonexistent/file.mp4")
	if err == nil {
		t.Error("ProbeDuration() expected error, got nil")
	}
}
