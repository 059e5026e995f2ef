// export_test.go contains tests for the export helpers.
//
// Go Pattern: Table-driven tests are the standard Go testing pattern.
// You define a slice of test cases (each with a name, inputs, and expected
// outputs), then loop through them.
package handlers

import (
	"strings"
	"testing"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// TestFormatDuration verifies human-readable duration formatting.
func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int
		expected string
	}{
		{"zero", 0, "0s"},
		{"seconds only", 45, "45s"},
		{"minutes and seconds", 125, "2m 5s"},
		{"hours minutes seconds", 3723, "1h 2m 3s"},
		{"exact hour", 3600, "1h 0m 0s"},
		{"exact minute", 60, "1m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.seconds)
			if result != tt.expected {
				t.Errorf("formatDuration(%d) = %q, want %q", tt.seconds, result, tt.expected)
			}
		})
	}
}

// TestSanitizeFilename verifies filename sanitization.
func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean filename",
			input:    "Singing Stream",
			expected: "Singing Stream",
		},
		{
			name:     "slashes and colons",
			input:    "Part 1/2: Karaoke",
			expected: "Part 1-2- Karaoke",
		},
		{
			name:     "special characters",
			input:    "Who won? <Finals>",
			expected: "Who won- -Finals-",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "long title gets truncated",
			input:    strings.Repeat("a", 200),
			expected: strings.Repeat("a", 100),
		},
		{
			name:     "multi-byte characters truncate on rune boundary",
			input:    strings.Repeat("歌", 150),
			expected: strings.Repeat("歌", 100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestExportFilename(t *testing.T) {
	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		q         string
		channelID string
		want      string
	}{
		{"query wins", "歌枠", "UC1", "holo-search-歌枠-20240309"},
		{"channel fallback", "", "UC1", "holo-search-UC1-20240309"},
		{"nothing", "  ", "", "holo-search-videos-20240309"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exportFilename(tt.q, tt.channelID, day); got != tt.want {
				t.Errorf("exportFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCSVRow(t *testing.T) {
	duration := 3723
	topic := models.TopicMusicCover
	v := models.Video{
		ID:          "abc123",
		Title:       "Cover, live",
		ChannelID:   "UC1",
		ChannelName: "One",
		AvailableAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:    &duration,
		Status:      models.StatusPast,
		TopicID:     &topic,
	}
	got := csvRow(&v)
	want := []string{
		"abc123", "Cover, live", "UC1", "One", "2024-01-02T03:04:05Z",
		"3723", "1h 2m 3s", "past", models.TopicMusicCover, "https://www.youtube.com/watch?v=abc123",
	}
	if len(got) != len(csvHeader) {
		t.Fatalf("row has %d columns, header has %d", len(got), len(csvHeader))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %s = %q, want %q", csvHeader[i], got[i], want[i])
		}
	}
}
