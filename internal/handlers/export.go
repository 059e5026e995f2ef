// export.go handles search result export in multiple formats.
//
// Supported formats:
//   - json: items with their full upstream payloads, plus the total
//   - csv:  one row per video with the indexed fields
//
// Go Pattern: Each export format is its own function. Adding a format means
// a new case in the switch and a new writer function.
package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

var csvHeader = []string{
	"id", "title", "channel_id", "channel_name", "available_at",
	"duration", "duration_human", "status", "topic_id", "url",
}

// ExportSearch exports the results of a search as a file download.
// GET /api/search/export?format=json|csv&<search params>
//
// Takes the same filters as /api/search. The limit defaults to and is
// capped at ExportMaxRows.
func (h *Handler) ExportSearch(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	// Validate format before doing any store work
	if format != "json" && format != "csv" {
		errorJSON(c, http.StatusBadRequest, "invalid_format", "Supported formats: json, csv")
		return
	}

	req, ok := h.bindSearch(c, h.opts.ExportMaxRows, h.opts.ExportMaxRows)
	if !ok {
		return
	}

	items, total, err := h.search(c.Request.Context(), req)
	if err != nil {
		log.Printf("❌ Export failed: %v", err)
		errorJSON(c, http.StatusInternalServerError, "export_failed", "Export failed")
		return
	}

	filename := exportFilename(req.filter.TextQuery, req.filter.ChannelID, time.Now().UTC())

	switch format {
	case "json":
		exportJSON(c, items, total, filename)
	case "csv":
		exportCSV(c, items, filename)
	}
}

// exportJSON returns the page as indented JSON.
func exportJSON(c *gin.Context, items []models.Video, total int, filename string) {
	jsonBytes, err := json.MarshalIndent(models.SearchResponse{Items: items, Total: total}, "", "  ")
	if err != nil {
		log.Printf("❌ Export JSON encoding failed: %v", err)
		errorJSON(c, http.StatusInternalServerError, "export_failed", "Failed to generate JSON export")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, filename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", jsonBytes)
}

// exportCSV streams the page as CSV.
func exportCSV(c *gin.Context, items []models.Video, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, filename))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(csvHeader)
	for i := range items {
		_ = w.Write(csvRow(&items[i]))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("⚠️  CSV export interrupted: %v", err)
	}
}

func csvRow(v *models.Video) []string {
	duration, human := "", ""
	if v.Duration != nil {
		duration = strconv.Itoa(*v.Duration)
		human = formatDuration(*v.Duration)
	}
	return []string{
		v.ID,
		v.Title,
		v.ChannelID,
		v.ChannelName,
		v.AvailableAt.UTC().Format(time.RFC3339),
		duration,
		human,
		string(v.Status),
		v.Topic(),
		"https://www.youtube.com/watch?v=" + v.ID,
	}
}

// --- Helper Functions ---

// exportFilename names the download after the query, then the channel.
func exportFilename(q, channelID string, now time.Time) string {
	subject := sanitizeFilename(q)
	if subject == "" {
		subject = sanitizeFilename(channelID)
	}
	if subject == "" {
		subject = "videos"
	}
	return fmt.Sprintf("holo-search-%s-%s", subject, now.Format("20060102"))
}

// formatDuration converts seconds to a human-readable duration string.
func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// sanitizeFilename removes characters that aren't safe for filenames.
// Go Pattern: Keep it simple. Replace unsafe characters with hyphens and
// trim the result; this only feeds the Content-Disposition header.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-",
		"|", "-", "\n", " ", "\r", "",
	)
	name = replacer.Replace(name)

	// Collapse multiple hyphens/spaces
	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}

	name = strings.TrimSpace(name)

	// Limit length without splitting a multi-byte character
	if r := []rune(name); len(r) > 100 {
		name = string(r[:100])
	}

	return name
}
