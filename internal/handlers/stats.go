// stats.go serves per-channel statistics.
//
// Every route takes channel_id; the year-scoped ones also take year. All
// of them answer {"items": [...]}.
package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// statsScope reads channel_id and, when needYear is set, year. On failure
// it writes a 422 and returns false.
func statsScope(c *gin.Context, needYear bool) (string, int, bool) {
	channelID := strings.TrimSpace(c.Query("channel_id"))
	if channelID == "" {
		errorJSON(c, http.StatusUnprocessableEntity, "invalid_filter", "channel_id is required")
		return "", 0, false
	}
	if !needYear {
		return channelID, 0, true
	}

	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil || year < 1 || year > 9999 {
		errorJSON(c, http.StatusUnprocessableEntity, "invalid_filter", "year must be an integer between 1 and 9999")
		return "", 0, false
	}
	return channelID, year, true
}

// respondItems writes {"items": items} or logs err and writes a generic 500.
// Go Pattern: A generic helper keeps the eight stats handlers one-liners
// while each keeps its own element type in the response.
func respondItems[T any](c *gin.Context, what string, items []T, err error) {
	if err != nil {
		log.Printf("❌ %s stats failed: %v", what, err)
		errorJSON(c, http.StatusInternalServerError, "stats_failed", "Failed to compute statistics")
		return
	}
	c.JSON(http.StatusOK, models.ItemsResponse[T]{Items: items})
}

// YearlyStats counts a channel's videos per year.
// GET /api/stats/yearly?channel_id=
func (h *Handler) YearlyStats(c *gin.Context) {
	channelID, _, ok := statsScope(c, false)
	if !ok {
		return
	}
	items, err := h.Stats.YearlyCounts(c.Request.Context(), channelID)
	respondItems(c, "yearly", items, err)
}

// MonthlyStats counts one year of a channel's videos per month.
// GET /api/stats/monthly?channel_id=&year=
func (h *Handler) MonthlyStats(c *gin.Context) {
	channelID, year, ok := statsScope(c, true)
	if !ok {
		return
	}
	items, err := h.Stats.MonthlyCounts(c.Request.Context(), channelID, year)
	respondItems(c, "monthly", items, err)
}

// YearlyMembershipStats counts members-only videos per year.
// GET /api/stats/yearly-membership?channel_id=
func (h *Handler) YearlyMembershipStats(c *gin.Context) {
	channelID, _, ok := statsScope(c, false)
	if !ok {
		return
	}
	items, err := h.Stats.YearlyMembershipCounts(c.Request.Context(), channelID)
	respondItems(c, "yearly membership", items, err)
}

// MembershipStats counts one year of members-only videos per month.
// GET /api/stats/membership?channel_id=&year=
func (h *Handler) MembershipStats(c *gin.Context) {
	channelID, year, ok := statsScope(c, true)
	if !ok {
		return
	}
	items, err := h.Stats.MonthlyMembershipCounts(c.Request.Context(), channelID, year)
	respondItems(c, "membership", items, err)
}

// CollabStats ranks collaborators over the channel's whole history.
// GET /api/stats/collab?channel_id=
func (h *Handler) CollabStats(c *gin.Context) {
	channelID, _, ok := statsScope(c, false)
	if !ok {
		return
	}
	items, err := h.Stats.CollaboratorStats(c.Request.Context(), channelID, 0)
	respondItems(c, "collab", items, err)
}

// YearlyCollabStats ranks collaborators within one year.
// GET /api/stats/yearly-collab?channel_id=&year=
func (h *Handler) YearlyCollabStats(c *gin.Context) {
	channelID, year, ok := statsScope(c, true)
	if !ok {
		return
	}
	items, err := h.Stats.CollaboratorStats(c.Request.Context(), channelID, year)
	respondItems(c, "yearly collab", items, err)
}

// TopicStats ranks topics over the channel's whole history.
// GET /api/stats/topic?channel_id=
func (h *Handler) TopicStats(c *gin.Context) {
	channelID, _, ok := statsScope(c, false)
	if !ok {
		return
	}
	items, err := h.Stats.TopicPopularity(c.Request.Context(), channelID, 0)
	respondItems(c, "topic", items, err)
}

// YearlyTopicStats ranks topics within one year.
// GET /api/stats/yearly-topic?channel_id=&year=
func (h *Handler) YearlyTopicStats(c *gin.Context) {
	channelID, year, ok := statsScope(c, true)
	if !ok {
		return
	}
	items, err := h.Stats.TopicPopularity(c.Request.Context(), channelID, year)
	respondItems(c, "yearly topic", items, err)
}
